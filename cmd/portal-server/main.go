package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"seva-portal/internal/api"
	commonaws "seva-portal/internal/common/aws"
	"seva-portal/internal/common/blob"
	"seva-portal/internal/common/config"
	"seva-portal/internal/common/database"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/common/observability"
	"seva-portal/internal/intake"
	"seva-portal/internal/services/application"
	"seva-portal/internal/services/assignment"
	"seva-portal/internal/services/document"
	"seva-portal/internal/services/identity"
	"seva-portal/internal/services/notify"
	"seva-portal/internal/services/status"
	"seva-portal/internal/store"
	"seva-portal/pkg/catalog"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting portal server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		rdb = database.NewRedis(cfg.Database.Redis)
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init object storage ---
	blobStore, err := blob.NewS3Store(ctx, cfg.Blob)
	if err != nil {
		zapLog.Fatal("s3 client initialization failed", zap.Error(err))
	}

	// --- Init notification channels ---
	var emailSender notify.EmailSender
	var smsSender notify.SMSSender
	if cfg.Notifications.AWS.SES.Enabled {
		sesClient, err := commonaws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client initialization failed", zap.Error(err))
		}
		emailSender = sesClient
	}
	if cfg.Notifications.AWS.SNS.Enabled {
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client initialization failed", zap.Error(err))
		}
		smsSender = snsClient
	}
	notifier := notify.NewService(emailSender, smsSender, cfg.Notifications, log)

	// --- Stores ---
	appStore := store.NewApplicationStore(pg.DB)
	docStore := store.NewDocumentStore(pg.DB)
	opStore := store.NewOperatorStore(pg.DB)
	userStore := store.NewUserStore(pg.DB)
	auditStore := store.NewAuditStore(pg.DB)

	// --- Services ---
	identitySvc := identity.NewService(
		pg.DB, userStore, opStore, auditStore, rdb.Client,
		time.Duration(cfg.Auth.SessionTTL)*time.Second,
		cfg.Auth.BcryptCost,
		log,
	).WithNotifier(notifier)
	applicationSvc := application.NewService(appStore, docStore, auditStore, log)
	assignmentSvc := assignment.NewService(appStore, docStore, auditStore, notifier, log)
	documentSvc := document.NewService(docStore, appStore, blobStore, log)
	statusSvc := status.NewService(
		appStore, documentSvc, rdb.Client,
		time.Duration(cfg.Auth.StatusCacheTTL)*time.Second,
		log,
	)

	var serviceCatalog *catalog.ServiceCatalog
	if cfg.App.CatalogPath != "" {
		serviceCatalog, err = catalog.LoadCatalog(cfg.App.CatalogPath)
		if err != nil {
			zapLog.Fatal("service catalog load failed", zap.Error(err))
		}
		zapLog.Info("service catalog loaded",
			zap.Int("services", len(serviceCatalog.Services)))
	}

	intakeHandler, err := intake.NewHandler(applicationSvc, log)
	if err != nil {
		zapLog.Fatal("intake schema compilation failed", zap.Error(err))
	}

	server := api.NewServer(api.Deps{
		Identity:      identitySvc,
		Applications:  applicationSvc,
		Assignments:   assignmentSvc,
		Documents:     documentSvc,
		Status:        statusSvc,
		Intake:        intakeHandler,
		Catalog:       serviceCatalog,
		Observability: obs,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Metrics on a separate listener, never exposed on the public port.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.Server.MetricsAddress,
		Handler: metricsMux,
	}

	go func() {
		zapLog.Info("metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		zapLog.Info("portal server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutdown signal received, draining connections...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics server shutdown error", zap.Error(err))
	}

	zapLog.Info("portal server stopped")
}
