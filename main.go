package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/config"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/handler"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/middleware"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pipeline"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pkg/logger"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Local development secrets; missing .env is fine
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	objectStore, err := service.NewObjectStoreService(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize object store", "error", err)
		os.Exit(1)
	}

	if err := objectStore.EnsureBuckets(ctx,
		cfg.Buckets.Incoming, cfg.Buckets.Audited, cfg.Buckets.Archived); err != nil {
		slog.Error("failed to ensure buckets", "error", err)
		os.Exit(1)
	}

	ledger, err := service.NewLedgerService(ctx, cfg.Ledger.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to ledger database", "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	if err := ledger.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure ledger schema", "error", err)
		os.Exit(1)
	}

	deps := pipeline.Dependencies{
		Objects:  objectStore,
		Docs:     service.NewDocStoreService(cfg.DocStore.URL),
		OCR:      service.NewOCRService(&cfg.OCR),
		Notifier: service.NewNotifyService(&cfg.Notify),
		Ledger:   ledger,
		Tokens:   service.NewIAMService(&cfg.IAM),
	}
	orchestrator := pipeline.NewOrchestrator(cfg, deps)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	checksHandler := handler.NewChecksHandler(cfg, deps, orchestrator)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimit(100, time.Minute))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/checks/upload", checksHandler.Upload)
		protected.POST("/checks/scan", checksHandler.Scan)
		protected.GET("/checks", checksHandler.List)
		protected.GET("/checks/:id", checksHandler.Get)
	}

	// Background scanner drives the pipeline on a fixed interval
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runScanLoop(ctx, orchestrator, time.Duration(cfg.Pipeline.ScanIntervalSeconds)*time.Second)
	}()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	slog.Info("shutting down server...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// runScanLoop polls the incoming bucket until the context is canceled. An
// interval of zero disables the loop; scans can still be triggered over
// the API.
func runScanLoop(ctx context.Context, orchestrator *pipeline.Orchestrator, interval time.Duration) {
	if interval <= 0 {
		slog.Info("periodic scanning disabled")
		return
	}

	slog.Info("periodic scanning enabled", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := orchestrator.Run(ctx)
			if err != nil {
				slog.Error("scheduled pipeline run failed", "error", err)
				continue
			}
			if stats.Discovered > 0 {
				slog.Info("scheduled pipeline run finished",
					"discovered", stats.Discovered,
					"processed", stats.Processed,
					"rejected", stats.Rejected,
					"failed", stats.Failed,
				)
			}
		}
	}
}
