package job

import (
	"context"
	"time"

	"crowdfunding/internal/logger"
	"crowdfunding/internal/metrics"
	"crowdfunding/internal/model"
	"crowdfunding/internal/repository"

	"gorm.io/gorm"
)

// Publisher 消息投递出口，mq.Producer 实现了它
type Publisher interface {
	Send(topic, key, value string) (partition int32, offset int64, err error)
}

// OutboxSender 把已提交的事件从发件箱投递到 Kafka
//
// 按 id 顺序投递，遇到失败立即结束本批，下一轮从失败的那条重新开始，
// 保证同一项目的事件不会乱序。超过最大重试次数的消息标记为 FAILED 后跳过。
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	metrics    *metrics.Metrics
	maxRetry   int
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, m *metrics.Metrics, maxRetry int) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		metrics:    m,
		maxRetry:   maxRetry,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	logger.Info("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			logger.Info("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		logger.Error("[OutboxSender] 查询消息失败: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if !s.sendMessage(ctx, msg) {
			break
		}
		sent++
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	partition, offset, err := s.publisher.Send(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		s.metrics.OutboxPublished.WithLabelValues("ok").Inc()
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			// 已投递但状态没更新，下一轮会重复投递，消费方按 (project_id, kind) 去重
			logger.Error("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
			return false
		}
		logger.Debug("[OutboxSender] 消息发送成功: id=%d, event=%s, key=%s, partition=%d, offset=%d",
			msg.ID, msg.EventType, msg.MessageKey, partition, offset)
		return true
	}

	s.metrics.OutboxPublished.WithLabelValues("error").Inc()
	logger.Warn("[OutboxSender] 消息发送失败: id=%d, retry=%d, err=%v", msg.ID, msg.RetryCount, err)

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		logger.Error("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
	}

	if msg.RetryCount+1 >= s.maxRetry {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			logger.Error("[OutboxSender] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		} else {
			logger.Error("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d, key=%s", msg.ID, msg.MessageKey)
		}
	}
	return false
}
