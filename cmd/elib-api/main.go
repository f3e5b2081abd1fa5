package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/rcffuta/elib-api/api/swagger"
	"github.com/rcffuta/elib-api/internal/handler"
	"github.com/rcffuta/elib-api/internal/repository"
	"github.com/rcffuta/elib-api/internal/router"
	"github.com/rcffuta/elib-api/internal/service"
	"github.com/rcffuta/elib-api/pkg/cache"
	"github.com/rcffuta/elib-api/pkg/config"
	"github.com/rcffuta/elib-api/pkg/database"
	"github.com/rcffuta/elib-api/pkg/jobs"
	"github.com/rcffuta/elib-api/pkg/logger"
	"github.com/rcffuta/elib-api/pkg/storage"
)

// @title RCF e-Library API
// @version 1.0.0
// @description Course materials library for students with admin management and download analytics.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// The API keeps serving without a cache.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	location, err := time.LoadLocation(cfg.Analytics.Timezone)
	if err != nil {
		logr.Warn("unknown analytics timezone, using UTC", zap.String("timezone", cfg.Analytics.Timezone))
		location = time.UTC
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	downloadRepo := repository.NewDownloadRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "elib", logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	librarySvc := service.NewLibraryService(courseRepo, materialRepo, downloadRepo, userRepo, cacheSvc, metricsSvc, logr, service.LibraryConfig{
		GeneralPrefixes: cfg.Library.GeneralPrefixes,
		Levels:          cfg.Library.Levels,
		PageSize:        cfg.Library.PageSize,
		AtomicCounter:   cfg.Library.AtomicDownloadCounter,
	})
	courseSvc := service.NewCourseService(courseRepo, validate, cacheSvc, logr, cfg.Library.Levels)
	materialSvc := service.NewMaterialService(materialRepo, courseRepo, validate, cacheSvc, logr)
	uploadSvc := service.NewUploadService(storage.NewMediaSigner(cfg.Media.CloudName, cfg.Media.APIKey, cfg.Media.APISecret, cfg.Media.Folder), logr)
	analyticsSvc := service.NewAnalyticsService(materialRepo, downloadRepo, courseRepo, cacheSvc, metricsSvc, logr, service.AnalyticsConfig{
		TopLimit:    cfg.Analytics.TopLimit,
		RecentLimit: cfg.Analytics.RecentLimit,
		Location:    location,
		CacheTTL:    cfg.Analytics.CacheTTL,
	})

	handlers := router.Handlers{
		Auth: handler.NewAuthHandler(authSvc, handler.CookieConfig{
			Name:   cfg.JWT.CookieName,
			MaxAge: int(cfg.JWT.CookieMaxAge / time.Second),
			Secure: cfg.Env == config.EnvProduction,
		}),
		Library:   handler.NewLibraryHandler(librarySvc),
		Courses:   handler.NewCourseHandler(courseSvc),
		Materials: handler.NewMaterialHandler(materialSvc, uploadSvc),
		Metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"database": db.PingContext,
			"cache":    cacheRepo.Ping,
		}),
	}
	if cfg.Analytics.Enabled {
		handlers.Analytics = handler.NewAnalyticsHandler(analyticsSvc)
	}

	if cfg.Reports.Enabled {
		reportQueue, reportSvc, err := buildReports(cfg, logr, validate, metricsSvc, location, reportRepo, materialRepo, downloadRepo, courseRepo)
		if err != nil {
			logr.Fatal("failed to init reports", zap.Error(err))
		}
		reportQueue.Start(ctx)
		defer reportQueue.Stop()
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
		handlers.Reports = handler.NewReportHandler(reportSvc)
	}

	engine := router.New(router.Options{
		APIPrefix:          cfg.APIPrefix,
		CookieName:         cfg.JWT.CookieName,
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
		EnableSwagger:      cfg.Env != config.EnvProduction,
		DownloadsPerMinute: cfg.RateLimit.DownloadsPerMinute,
		LoginPerMinute:     cfg.RateLimit.LoginPerMinute,
	}, logr, metricsSvc, authSvc, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildReports(
	cfg *config.Config,
	logr *zap.Logger,
	validate *validator.Validate,
	metricsSvc *service.MetricsService,
	location *time.Location,
	reportRepo *repository.ReportRepository,
	materialRepo *repository.MaterialRepository,
	downloadRepo *repository.DownloadRepository,
	courseRepo *repository.CourseRepository,
) (*jobs.Queue, *service.ReportService, error) {
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(materialRepo, downloadRepo, courseRepo, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
		Location:  location,
	}, logr)

	worker := service.NewReportWorker(reportRepo, exporter, metricsSvc, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		JobTimeout: 2 * time.Minute,
		Logger:     logr,
	})

	reportSvc := service.NewReportService(reportRepo, queue, exporter, validate, metricsSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	return queue, reportSvc, nil
}
