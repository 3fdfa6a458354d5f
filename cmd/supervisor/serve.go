package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliang-cn/chatsupervisor/internal/api"
	"github.com/liliang-cn/chatsupervisor/internal/config"
	"github.com/liliang-cn/chatsupervisor/internal/events"
	"github.com/liliang-cn/chatsupervisor/internal/knowledge"
	"github.com/liliang-cn/chatsupervisor/internal/logger"
	"github.com/liliang-cn/chatsupervisor/internal/metrics"
	"github.com/liliang-cn/chatsupervisor/internal/repository"
	"github.com/liliang-cn/chatsupervisor/internal/service"
	"github.com/liliang-cn/chatsupervisor/internal/supervisor"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return serve(cmd.Context(), configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	kb, err := knowledge.Load(cfg.KnowledgeBase.Path)
	if err != nil {
		log.Error("Failed to load knowledge base", zap.String("path", cfg.KnowledgeBase.Path), zap.Error(err))
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}

	metrics.Init()

	// Intervention delivery
	broker := events.NewBroker(cfg.Events.BufferSize, log)
	notifiers := events.Fanout{broker}

	if cfg.Events.Redis.Enabled() {
		client, err := events.NewRedisClient(ctx, events.RedisConfig{
			Addr:     cfg.Events.Redis.Addr,
			Password: cfg.Events.Redis.Password,
			DB:       cfg.Events.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, interventions stay in-process", zap.Error(err))
		} else {
			publisher := events.NewRedisPublisher(client, cfg.Events.Redis.Channel, cfg.Events.Redis.Timeout, log)
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
			log.Info("Publishing interventions to Redis",
				zap.String("addr", cfg.Events.Redis.Addr),
				zap.String("channel", publisher.Channel()),
			)
		}
	}

	engine := supervisor.NewEngine(kb)
	aggregator := supervisor.NewAggregator(notifiers, log)
	store := repository.NewConversationRepository()

	pool, err := service.NewWorkerPool(cfg.Demo.Workers, log)
	if err != nil {
		return err
	}
	defer pool.Release()

	// Initialize services
	supervisorService := service.NewSupervisorService(engine, aggregator, store, pool, log)
	simulationService := service.NewSimulationService(engine, aggregator, store, pool, log)

	if cfg.Demo.Conversations > 0 {
		seeded, err := simulationService.Seed(ctx, cfg.Demo.Conversations, cfg.Demo.Seed)
		if err != nil {
			log.Warn("Failed to seed demo conversations", zap.Error(err))
		} else {
			log.Info("Seeded demo conversations", zap.Int("count", len(seeded)))
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := api.SetupRouter(supervisorService, broker, api.RouterConfig{
		AllowOrigins: cfg.CORS.AllowOrigins,
		Logger:       log,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting supervisor server",
			zap.String("address", cfg.Address()),
			zap.Int("products", len(kb.Products)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Server exited")
	return nil
}
