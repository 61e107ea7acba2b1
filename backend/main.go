package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AnTengye/cvintake/backend/config"
	"github.com/AnTengye/cvintake/backend/extract"
	"github.com/AnTengye/cvintake/backend/handler"
	"github.com/AnTengye/cvintake/backend/middleware"
	"github.com/AnTengye/cvintake/backend/pkg/logger"
	"github.com/AnTengye/cvintake/backend/service"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load(config.Path())
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

	ctx := context.Background()

	// Initialize persistence
	store, err := service.OpenStore(&cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("store opened", "driver", cfg.Store.Driver)

	// Initialize services
	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize MINIO service", "error", err)
		os.Exit(1)
	}

	// Ensure bucket exists
	if err := minioSvc.EnsureBucket(ctx); err != nil {
		slog.Error("failed to ensure MINIO bucket", "error", err)
		os.Exit(1)
	}

	pdfcoSvc := service.NewPDFCoService(&cfg.PDFCo)
	if !pdfcoSvc.Enabled() {
		slog.Warn("pdf.co api key not configured, extraction will fetch documents directly")
	}
	engine := extract.NewEngine(service.NewDocumentRetriever(pdfcoSvc, &cfg.Extract))

	var sheets service.SheetAppender
	if cfg.Sheets.SpreadsheetID != "" {
		sheetsSvc, err := service.NewSheetsService(ctx, &cfg.Sheets)
		if err != nil {
			slog.Error("failed to initialize sheets service", "error", err)
			os.Exit(1)
		}
		sheets = sheetsSvc
	}

	var notifier service.Notifier
	if webhookSvc := service.NewWebhookService(&cfg.Webhook); webhookSvc.Enabled() {
		notifier = webhookSvc
	}

	var sender service.EmailSender
	if cfg.Email.From != "" && cfg.Email.CredentialsFile != "" {
		gmail, err := service.NewGmailSender(ctx, &cfg.Email)
		if err != nil {
			slog.Error("failed to initialize gmail sender", "error", err)
			os.Exit(1)
		}
		sender = gmail
	} else {
		slog.Warn("email sender not configured, scheduled emails will be reported as errors")
	}

	submissions := service.NewSubmissionService(service.SubmissionDeps{
		Blobs:      minioSvc,
		Extractor:  engine,
		Store:      store,
		Emails:     store,
		Sheets:     sheets,
		Notifier:   notifier,
		EmailDelay: cfg.Email.Delay,
	})

	slog.Info("integrations configured",
		"pdfco", pdfcoSvc.Enabled(),
		"sheets", sheets != nil,
		"webhook", notifier != nil,
		"email", sender != nil,
	)

	router := newRouter(cfg, routes{
		extract: handler.NewExtractHandler(minioSvc, engine, cfg.Server.MaxUploadMB),
		applications: handler.NewApplicationHandler(handler.ApplicationDeps{
			Submitter:   submissions,
			Store:       store,
			Exporter:    service.NewExportService(store),
			Blobs:       minioSvc,
			MaxUploadMB: cfg.Server.MaxUploadMB,
		}),
		emails: handler.NewEmailHandler(service.NewEmailDispatcher(store, sender, &cfg.Email)),
	})

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
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
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return
	}

	slog.Info("server exited gracefully")
}

type routes struct {
	extract      *handler.ExtractHandler
	applications *handler.ApplicationHandler
	emails       *handler.EmailHandler
}

func newRouter(cfg *config.Config, h routes) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	router.Use(middleware.RequestID())     // Request ID for tracing
	router.Use(middleware.Recovery())      // Panic recovery
	router.Use(middleware.RequestLogger()) // Access logging
	router.Use(corsMiddleware())           // CORS
	router.Use(cacheMiddleware())          // Cache control

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")

	// Public form endpoints
	public := api.Group("/")
	public.Use(middleware.RateLimit(&cfg.RateLimit))
	{
		public.POST("/extract-cv", h.extract.ExtractCV)
		public.POST("/applications", h.applications.Submit)
	}

	// Scheduler trigger
	scheduled := api.Group("/send-scheduled-emails")
	scheduled.Use(middleware.AuthMiddleware(&cfg.Auth), middleware.RequireRole(middleware.RoleAdmin, middleware.RoleScheduler))
	{
		scheduled.GET("", h.emails.SendScheduled)
		scheduled.POST("", h.emails.SendScheduled)
	}

	// Review routes
	admin := api.Group("/applications")
	admin.Use(middleware.AuthMiddleware(&cfg.Auth), middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.GET("", h.applications.List)
		admin.GET("/export.xlsx", h.applications.Export)
		admin.GET("/:id", h.applications.Get)
		admin.PATCH("/:id/status", h.applications.UpdateStatus)
		admin.DELETE("/:id", h.applications.Delete)
	}

	return router
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition, Retry-After")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// cacheMiddleware keeps API responses out of caches
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
