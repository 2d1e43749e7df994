package job

import (
	"fmt"

	"crowdfunding/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// Job 定时任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 定时任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
}

func NewManager(jobs ...Job) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("创建调度器失败: %w", err)
	}

	m := &Manager{scheduler: s}
	for _, job := range jobs {
		if err := m.register(job); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("注册任务 %s 失败: %w", job.GetName(), err)
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	logger.Info("[Scheduler] 定时任务启动, jobs=%d", len(m.jobs))
}

// Stop 停止调度并释放任务持有的资源
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("[Scheduler] 停止调度器失败: %v", err)
	}
	for _, job := range m.jobs {
		if r, ok := job.(interface{ Release() }); ok {
			r.Release()
		}
	}
	logger.Info("[Scheduler] 定时任务已停止")
}
