package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/config"
	"crypto-signal-agent/internal/pipeline/decision"
	"crypto-signal-agent/internal/pipeline/delivery/consumer"
	delivery "crypto-signal-agent/internal/pipeline/delivery/http"
	"crypto-signal-agent/internal/pipeline/ingest"
	"crypto-signal-agent/internal/pipeline/normalizer"
	"crypto-signal-agent/internal/pipeline/personalization"
	"crypto-signal-agent/internal/pipeline/repository"
	"crypto-signal-agent/internal/pipeline/scoring"
	"crypto-signal-agent/internal/pipeline/service"
	"crypto-signal-agent/pkg/common"
	"crypto-signal-agent/pkg/logger"
	"crypto-signal-agent/pkg/postgres"
	"crypto-signal-agent/pkg/redis"
	"crypto-signal-agent/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the signal pipeline service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Signal Pipeline Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Create the feedback consumer group if it doesn't exist
	if err := redisClient.XGroupCreateMkStream(context.Background(), common.RedisStreamFeedback, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}

	// Initialize repositories
	subscriberRepo := repository.NewSubscriberRepository(db.DB)
	eventRepo := repository.NewEventRepository(db.DB)
	alertRepo := repository.NewAlertRepository(db.DB)
	feedbackRepo := repository.NewFeedbackRepository(db.DB)
	weightRepo := repository.NewCategoryWeightRepository(db.DB)

	// Initialize scoring components
	norm := normalizer.New(cfg.Pipeline.KnownSymbols, map[entity.SourceType]float64{
		entity.SourceTypeOnChain: cfg.Scoring.CredibilityOnChain,
		entity.SourceTypeNews:    cfg.Scoring.CredibilityNews,
		entity.SourceTypeSocial:  cfg.Scoring.CredibilitySocial,
	})
	scorer := scoring.New(cfg.Scoring, cfg.Personalization)
	density := scoring.NewDensityWindow(cfg.Scoring.NoiseWindow)
	store := personalization.NewStore(cfg.Personalization, weightRepo)
	engine := decision.NewEngine(decision.NewRedisDedupStore(redisClient), appLogger)

	// Initialize source adapters
	var adapters []ingest.Adapter
	for _, source := range cfg.Pipeline.EnabledSources {
		switch entity.SourceType(source) {
		case entity.SourceTypeOnChain:
			adapters = append(adapters, ingest.NewOnChainAdapter(cfg.Etherscan, appLogger))
			adapters = append(adapters, ingest.NewHyperliquidAdapter(cfg.Hyperliquid, appLogger))
		case entity.SourceTypeNews:
			adapters = append(adapters, ingest.NewNewsAdapter(cfg.Pipeline.NewsFeeds, norm, appLogger))
		case entity.SourceTypeSocial:
			adapters = append(adapters, ingest.NewSocialAdapter(cfg.Pipeline.SocialSearch, cfg.Pipeline.SocialMaxTerms, norm, appLogger))
		default:
			appLogger.Warn("Unknown source in enabled_sources", logger.StringField("source", source))
		}
	}

	// Initialize Telegram notifier (optional)
	var notifier telegram.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	} else {
		appLogger.Warn("Telegram bot token not configured, alert delivery disabled")
	}

	// Initialize services
	pipelineSvc := service.NewPipelineService(cfg, adapters, norm, scorer, density, store, engine,
		subscriberRepo, eventRepo, alertRepo, notifier, appLogger)
	feedbackSvc := service.NewFeedbackService(store, subscriberRepo, eventRepo, feedbackRepo, appLogger)
	alertSvc := service.NewAlertService(alertRepo, subscriberRepo, appLogger)
	subscriberSvc := service.NewSubscriberService(subscriberRepo, appLogger)

	// Start the scoring cycle scheduler
	if err := pipelineSvc.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start pipeline scheduler", logger.ErrorField(err))
	}

	// Initialize and start the feedback stream consumer
	redisConsumer := consumer.NewRedisConsumer(redisClient.Client, feedbackSvc, appLogger)
	redisConsumer.Start(ctx)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	feedbackHandler := delivery.NewFeedbackHandler(feedbackSvc, appLogger)
	feedbackGroup := apiV1.Group("/feedback")
	feedbackHandler.RegisterRoutes(feedbackGroup)

	alertHandler := delivery.NewAlertHandler(alertSvc, appLogger)
	subscriberHandler := delivery.NewSubscriberHandler(subscriberSvc, appLogger)
	subscribersGroup := apiV1.Group("/subscribers")
	alertHandler.RegisterRoutes(subscribersGroup)
	subscriberHandler.RegisterRoutes(subscribersGroup)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	pipelineSvc.Stop()
	redisConsumer.Stop()

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "pipeline-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-pipeline.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing pipeline-service CLI: %s\n", err)
		os.Exit(1)
	}
}
