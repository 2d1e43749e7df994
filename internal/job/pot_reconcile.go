package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crowdfunding/internal/logger"
	"crowdfunding/internal/metrics"
	"crowdfunding/internal/repository"

	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// PotShortfall 资金池余额不足以覆盖进行中项目的已筹金额
type PotShortfall struct {
	PotAccount string
	Expected   uint64 // 进行中项目 total_fund 之和
	Balance    uint64
}

// PotReconcileJob 资金池对账
//
// 进行中项目的 total_fund 都还躺在资金池里，所以资金池余额必须不小于它们的和。
// 对不上说明有人绕过状态机动了资金池账户，只告警不修复。
type PotReconcileJob struct {
	projectRepo *repository.ProjectRepository
	accountRepo *repository.AccountRepository
	metrics     *metrics.Metrics
	pool        *ants.Pool
	interval    time.Duration
}

func NewPotReconcileJob(db *gorm.DB, m *metrics.Metrics, interval time.Duration, workers int) (*PotReconcileJob, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("创建对账协程池失败: %w", err)
	}
	return &PotReconcileJob{
		projectRepo: repository.NewProjectRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		metrics:     m,
		pool:        pool,
		interval:    interval,
	}, nil
}

func (j *PotReconcileJob) GetName() string {
	return "pot_reconcile"
}

func (j *PotReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *PotReconcileJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	shortfalls, err := j.Run(ctx)
	if err != nil {
		logger.Error("[PotReconcile] 对账失败: %v", err)
		return
	}
	for _, s := range shortfalls {
		logger.Warn("[PotReconcile] 资金池余额不足: pot=%s, expected=%d, balance=%d", s.PotAccount, s.Expected, s.Balance)
	}
}

// Run 逐个资金池核对余额，返回所有对不上的资金池
func (j *PotReconcileJob) Run(ctx context.Context) ([]PotShortfall, error) {
	totals, err := j.projectRepo.SumActiveByPot(ctx)
	if err != nil {
		return nil, fmt.Errorf("汇总资金池失败: %w", err)
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		shortfalls []PotShortfall
		firstErr   error
	)
	for _, total := range totals {
		total := total
		wg.Add(1)
		submitErr := j.pool.Submit(func() {
			defer wg.Done()
			shortfall, err := j.check(ctx, total)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if shortfall != nil {
				shortfalls = append(shortfalls, *shortfall)
			}
		})
		if submitErr != nil {
			wg.Done()
			return nil, fmt.Errorf("提交对账任务失败: %w", submitErr)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return shortfalls, nil
}

func (j *PotReconcileJob) check(ctx context.Context, total repository.PotTotal) (*PotShortfall, error) {
	var balance uint64
	account, err := j.accountRepo.GetByAccountID(ctx, nil, total.PotAccount)
	switch {
	case err == nil:
		balance = account.Balance
	case errors.Is(err, repository.ErrAccountNotFound):
	default:
		return nil, fmt.Errorf("查询资金池 %s 失败: %w", total.PotAccount, err)
	}

	gauge := j.metrics.PotShortfall.WithLabelValues(total.PotAccount)
	if balance >= total.Total {
		gauge.Set(0)
		return nil, nil
	}
	gauge.Set(float64(total.Total - balance))
	return &PotShortfall{PotAccount: total.PotAccount, Expected: total.Total, Balance: balance}, nil
}

func (j *PotReconcileJob) Release() {
	j.pool.Release()
}
