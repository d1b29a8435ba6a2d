package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hushhire/internal/assessment/controller"
	"hushhire/internal/assessment/repository"
	"hushhire/internal/assessment/service"
	"hushhire/internal/common/auth"
	"hushhire/internal/common/cache"
	"hushhire/internal/common/db"
	"hushhire/internal/common/middleware"
	"hushhire/internal/common/mq"
	"hushhire/pkg/utils/logger"
)

const defaultConfigPath = "configs/assessment_service.yaml"

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

	tokenManager, err := auth.NewManager(appCfg.JWT)
	if err != nil {
		logger.Error(context.Background(), "init jwt manager failed", zap.Error(err))
		return
	}

	assessmentRepo := repository.NewAssessmentRepository(mysqlDB, redisCache)
	questionRepo := repository.NewQuestionRepository(mysqlDB, redisCache)
	statusCache := repository.NewStatusCache(redisCache, appCfg.Status.TTL)
	publisher := repository.NewMQEventPublisher(mqClient, appCfg.Topics.Events, appCfg.Topics.Evaluation)

	assessmentSvc := service.NewAssessmentService(assessmentRepo, questionRepo, statusCache, publisher, publisher)
	questionSvc := service.NewQuestionService(questionRepo)

	httpServer := buildHTTPServer(appCfg.Server, tokenManager, assessmentSvc, questionSvc)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "assessment http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, tokenManager *auth.Manager, assessmentSvc *service.AssessmentService, questionSvc *service.QuestionService) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	router.Use(requestLogger())

	h := controller.NewAssessmentController(assessmentSvc, questionSvc)

	manager := router.Group("/api/v1/assessments")
	manager.Use(middleware.AuthMiddleware(tokenManager))
	manager.POST("", h.Create)
	manager.GET("", h.List)
	manager.GET("/:id", h.Get)
	manager.POST("/:id/send", h.Send)
	manager.POST("/:id/resend", h.Resend)
	manager.POST("/:id/cancel", h.Cancel)
	manager.POST("/:id/evaluate", h.Evaluate)

	candidate := router.Group("/api/v1/candidate/:token")
	candidate.GET("", h.CandidateGet)
	candidate.POST("/accept", h.Accept)
	candidate.POST("/start", h.Start)
	candidate.GET("/questions", h.Questions)
	candidate.POST("/question", h.ChooseQuestion)
	candidate.PUT("/code", h.SaveCode)
	candidate.POST("/submit", h.Submit)
	candidate.GET("/status", h.Status)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
