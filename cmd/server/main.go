package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crowdfunding/internal/config"
	"crowdfunding/internal/crowdfund"
	"crowdfunding/internal/handler"
	"crowdfunding/internal/infrastructure/cache"
	"crowdfunding/internal/infrastructure/database"
	"crowdfunding/internal/infrastructure/lock"
	"crowdfunding/internal/infrastructure/mq"
	"crowdfunding/internal/job"
	"crowdfunding/internal/logger"
	"crowdfunding/internal/metrics"
	"crowdfunding/internal/repository"
	"crowdfunding/internal/service"
	"crowdfunding/pkg/idgen"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const reconcileWorkers = 8

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	idgen.Init(1)

	db := database.MustOpen(&cfg.Database)
	redisClient := cache.MustRedis(&cfg.Redis)
	defer redisClient.Close()

	producer, err := mq.NewProducer(&cfg.Kafka)
	if err != nil {
		logger.Fatal("[Kafka] %v", err)
	}
	defer producer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 状态机：数据库事务 + 发件箱
	backend := repository.NewLedgerBackend(db, cfg.Business.ExistentialDeposit, cfg.Kafka.Topic.CrowdfundEvents)
	ledger := crowdfund.NewLedger(backend, crowdfund.WithInitiatorMustBeOwner(cfg.Business.InitiatorMustBeOwner))
	locker := lock.NewProjectLocker(redisClient, time.Duration(cfg.Business.LockTTLSeconds)*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 后台任务
	outboxSender := job.NewOutboxSender(db, producer, m, cfg.Business.MaxRetryCount)
	go outboxSender.Start(ctx)

	interval := time.Duration(cfg.Business.ReconcileIntervalSeconds) * time.Second
	reconcileJob, err := job.NewPotReconcileJob(db, m, interval, reconcileWorkers)
	if err != nil {
		logger.Fatal("[Scheduler] %v", err)
	}
	scheduler, err := job.NewManager(reconcileJob, job.NewOutboxBacklogJob(db, m, interval))
	if err != nil {
		logger.Fatal("[Scheduler] %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	h := handler.NewHandler(
		service.NewCrowdfundService(ledger, locker, m),
		service.NewAccountService(db, cfg.Business.AllowRecharge),
	)
	router := handler.SetupRouter(cfg, h, reg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// 先停 HTTP，再停后台任务，保证已提交的事件还能被投递
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务关闭异常: %v", err)
	}
	outboxSender.ProcessPending(shutdownCtx)
	cancel()

	logger.Info("服务已关闭")
}
