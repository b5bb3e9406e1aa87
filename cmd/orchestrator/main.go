package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"virtus/internal/ai"
	"virtus/internal/config"
	cronrunner "virtus/internal/cron"
	"virtus/internal/db"
	"virtus/internal/gateway"
	"virtus/internal/handler"
	"virtus/internal/logger"
	"virtus/internal/models"
	"virtus/internal/predict"
	"virtus/internal/retry"
	"virtus/internal/service"
	"virtus/internal/state"
)

func main() {
	cfgPath := os.Getenv("VIRTUS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("VIRTUS_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gateway.New(dbConn, cfg.DB, logger)
	store.FetchLimit = cfg.State.FetchLimit

	manager := state.NewManager(store, cfg.State, logger)
	store.OnAuthFailure = func(message string) {
		manager.LogActivity("SYSTEM", "credential rejected by remote store", models.SeverityCritical)
	}

	gen, err := ai.NewOpenAIGenerator(cfg.AI, logger)
	if err != nil {
		logger.Fatal("ai client init failed", zap.Error(err))
	}
	retryOpts := retry.DefaultOptions()
	retryOpts.Attempts = cfg.AI.RetryAttempts
	retryOpts.InitialDelay = cfg.AI.RetryDelay
	retryOpts.MaxDelay = cfg.AI.MaxRetryDelay
	retryOpts.Logger = logger
	predictor := &predict.Client{
		Gen:         gen,
		Logger:      logger,
		Scan:        cfg.Scan,
		Retry:       retryOpts,
		Temperature: float32(cfg.AI.Temperature),
		MaxTokens:   cfg.AI.MaxTokens,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Initialize(ctx)
	go manager.Run(ctx)

	healthHandler := &handler.HealthHandler{Store: store}
	healthHandler.Register(engine)
	ticketHandler := &handler.TicketHandler{State: manager}
	ticketHandler.Register(engine)
	scanHandler := &handler.ScanHandler{
		State:   manager,
		Scanner: predictor,
		Context: store,
		Logger:  logger,
		BaseCtx: ctx,
	}
	scanHandler.Register(engine)
	debateHandler := &handler.DebateHandler{State: manager, Debater: predictor, Logger: logger}
	debateHandler.Register(engine)
	activityHandler := &handler.ActivityHandler{State: manager}
	activityHandler.Register(engine)
	systemHandler := &handler.SystemHandler{State: manager, Summary: store}
	systemHandler.Register(engine)
	credentialHandler := &handler.CredentialHandler{State: manager, Rotator: store, Logger: logger}
	credentialHandler.Register(engine)
	streamHandler := &handler.StreamHandler{State: manager, Logger: logger}
	streamHandler.Register(engine)

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.PostMortem.Enabled {
		postMortem := service.NewPostMortem(predictor, store, manager, logger)
		if _, err := cronRunner.Add(cfg.PostMortem.Spec, func(ctx context.Context) {
			if err := postMortem.Run(ctx); err != nil {
				logger.Warn("post-mortem run failed", zap.Error(err))
			}
		}); err != nil {
			logger.Fatal("post-mortem schedule invalid", zap.Error(err))
		}
	}
	if cfg.Automation.Enabled {
		modules := make([]models.ModuleType, 0, len(cfg.Automation.Modules))
		for _, raw := range cfg.Automation.Modules {
			module, ok := models.ParseModule(raw)
			if !ok || !module.IsScoped() {
				logger.Warn("skipping unknown automation module", zap.String("module", raw))
				continue
			}
			modules = append(modules, module)
		}
		auto := &service.Automation{
			Scanner: predictor,
			Context: store,
			State:   manager,
			Logger:  logger,
			Modules: modules,
		}
		if _, err := cronRunner.Add(cfg.Automation.Spec, auto.Run); err != nil {
			logger.Fatal("automation schedule invalid", zap.Error(err))
		}
	}
	cronRunner.Start()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	cronRunner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Warn("db close failed", zap.Error(err))
	}
	logger.Info("bye")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
