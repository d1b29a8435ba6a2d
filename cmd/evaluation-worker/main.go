package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hushhire/internal/assessment/repository"
	"hushhire/internal/common/cache"
	"hushhire/internal/common/db"
	"hushhire/internal/common/mq"
	"hushhire/internal/common/storage"
	"hushhire/internal/evaluation/artifact"
	"hushhire/internal/evaluation/sandbox"
	"hushhire/internal/evaluation/service"
	"hushhire/internal/notify"
	"hushhire/pkg/utils/logger"
)

const defaultConfigPath = "configs/evaluation_worker.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQL(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCache(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka)
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	runner, closeRunner, err := buildRunner(appCfg.Runner)
	if err != nil {
		logger.Error(context.Background(), "init sandbox runner failed", zap.Error(err))
		return
	}
	defer closeRunner()

	var artifacts *artifact.Store
	if appCfg.MinIO.Endpoint != "" {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		artifacts = artifact.NewStore(objStorage, appCfg.MinIO.Bucket)
	}

	assessmentRepo := repository.NewAssessmentRepository(mysqlDB, redisCache)
	questionRepo := repository.NewQuestionRepository(mysqlDB, redisCache)
	statusCache := repository.NewStatusCache(redisCache, appCfg.Status.TTL)
	publisher := repository.NewMQEventPublisher(mqClient, appCfg.Topics.Events, appCfg.Topics.Evaluation)

	evalSvc, err := service.NewService(service.Config{
		Assessments: assessmentRepo,
		Questions:   questionRepo,
		StatusCache: statusCache,
		Publisher:   publisher,
		Runner:      runner,
		Artifacts:   artifacts,
		WorkRoot:    appCfg.Worker.WorkRoot,
		PoolSize:    appCfg.Worker.PoolSize,
		RunTimeout:  appCfg.Worker.RunTimeout,
	})
	if err != nil {
		logger.Error(context.Background(), "init evaluation service failed", zap.Error(err))
		return
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mqClient.Subscribe(runCtx, appCfg.Topics.Evaluation, evalSvc.HandleMessage); err != nil {
		logger.Error(context.Background(), "subscribe evaluation topic failed", zap.Error(err))
		return
	}

	notifier := notify.NewNotifier(mqClient, notify.LogSender{}, appCfg.Topics.Events)
	if err := notifier.Subscribe(runCtx); err != nil {
		logger.Error(context.Background(), "subscribe event topic failed", zap.Error(err))
		return
	}

	if err := mqClient.Start(); err != nil {
		logger.Error(context.Background(), "start kafka consumer failed", zap.Error(err))
		return
	}

	sweeper := service.NewSweeper(assessmentRepo, publisher, appCfg.Worker.SweepInterval, appCfg.Worker.StaleAfter)
	go sweeper.Run(runCtx)

	metricsServer := &http.Server{Addr: appCfg.MetricsAddr, Handler: metricsHandler()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "metrics server started", zap.String("addr", appCfg.MetricsAddr))
		errCh <- metricsServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "metrics server stopped", zap.Error(err))
		}
	case <-runCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "metrics server shutdown failed", zap.Error(err))
	}
	_ = mqClient.Stop()
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func buildRunner(cfg RunnerConfig) (sandbox.Runner, func(), error) {
	switch cfg.Mode {
	case "docker":
		runner, err := sandbox.NewDockerRunner(cfg.Docker)
		if err != nil {
			return nil, nil, err
		}
		return runner, func() { _ = runner.Close() }, nil
	case "process":
		runner, err := sandbox.NewProcessRunner(cfg.EvaluatorPath)
		if err != nil {
			return nil, nil, err
		}
		return runner, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown runner mode %q", cfg.Mode)
	}
}
