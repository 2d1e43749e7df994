package job

import (
	"context"
	"time"

	"crowdfunding/internal/logger"
	"crowdfunding/internal/metrics"
	"crowdfunding/internal/model"
	"crowdfunding/internal/repository"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// OutboxBacklogJob 统计发件箱积压，FAILED 的消息需要人工介入
type OutboxBacklogJob struct {
	outboxRepo *repository.OutboxRepository
	metrics    *metrics.Metrics
	interval   time.Duration
}

func NewOutboxBacklogJob(db *gorm.DB, m *metrics.Metrics, interval time.Duration) *OutboxBacklogJob {
	return &OutboxBacklogJob{
		outboxRepo: repository.NewOutboxRepository(db),
		metrics:    m,
		interval:   interval,
	}
}

func (j *OutboxBacklogJob) GetName() string {
	return "outbox_backlog"
}

func (j *OutboxBacklogJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *OutboxBacklogJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	for _, status := range []string{model.OutboxStatusPending, model.OutboxStatusFailed} {
		count, err := j.outboxRepo.CountByStatus(ctx, status)
		if err != nil {
			logger.Error("[OutboxBacklog] 统计消息失败: status=%s, err=%v", status, err)
			continue
		}
		j.metrics.OutboxBacklog.WithLabelValues(status).Set(float64(count))
		if status == model.OutboxStatusFailed && count > 0 {
			logger.Warn("[OutboxBacklog] 存在投递失败的消息: count=%d", count)
		}
	}
}
