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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/outfit-wizard-api/api/swagger"
	"github.com/noah-isme/outfit-wizard-api/internal/handler"
	"github.com/noah-isme/outfit-wizard-api/internal/middleware"
	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/internal/repository"
	"github.com/noah-isme/outfit-wizard-api/internal/service"
	"github.com/noah-isme/outfit-wizard-api/pkg/cache"
	"github.com/noah-isme/outfit-wizard-api/pkg/config"
	"github.com/noah-isme/outfit-wizard-api/pkg/database"
	"github.com/noah-isme/outfit-wizard-api/pkg/export"
	"github.com/noah-isme/outfit-wizard-api/pkg/jobs"
	"github.com/noah-isme/outfit-wizard-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/outfit-wizard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/outfit-wizard-api/pkg/middleware/requestid"
	"github.com/noah-isme/outfit-wizard-api/pkg/storage"
)

// @title Outfit Wizard API
// @version 1.0.0
// @description Wardrobe management, outfit composition and colour recommendations
// @BasePath /api/v1
// @schemes http
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

	metrics := service.NewMetricsService()

	pool, err := database.NewPool(cfg.Database, database.PoolOptions{Observer: metrics, Logger: logr})
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer pool.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		logr.Fatal("failed to ensure schema", zap.Error(err))
	}

	files, err := storage.NewLocalStorage(cfg.Storage.Root, cfg.Storage.UploadDir, cfg.Storage.WardrobeDir, cfg.Storage.CompositeDir)
	if err != nil {
		logr.Fatal("failed to prepare storage", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, preference cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()
	signer := storage.NewSignedURLSigner(cfg.Storage.ImageURLSecret, cfg.Storage.ImageURLTTL)
	links := service.NewImageLinker(signer, cfg.APIPrefix)

	userRepo := repository.NewUserRepository(pool)
	itemRepo := repository.NewItemRepository(pool)
	outfitRepo := repository.NewOutfitRepository(pool)
	settingsRepo := repository.NewCleanupSettingsRepository(pool)
	cacheRepo := repository.NewCacheRepository(redisClient, "wizard:", logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Preferences.CacheTTL, logr, cfg.Preferences.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	preferenceSvc := service.NewPreferenceService(outfitRepo, cacheSvc, cfg.Preferences.CacheTTL, logr)
	wardrobeSvc := service.NewWardrobeService(itemRepo, files, links, preferenceSvc, metrics, validate, logr, service.WardrobeConfig{UploadDir: cfg.Storage.UploadDir})
	composerSvc := service.NewComposerService(itemRepo, preferenceSvc, files, links, metrics, validate, logr, service.ComposerConfig{CompositeDir: cfg.Storage.CompositeDir}, nil)
	outfitSvc := service.NewOutfitService(outfitRepo, itemRepo, userRepo, preferenceSvc, files, links, validate, logr, service.OutfitConfig{
		WardrobeDir:  cfg.Storage.WardrobeDir,
		CompositeDir: cfg.Storage.CompositeDir,
	})
	exportSvc := service.NewExportService(itemRepo, outfitRepo, files, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	maintenanceSvc := service.NewMaintenanceService(settingsRepo, outfitRepo, files, wardrobeSvc, metrics, validate, logr, service.MaintenanceConfig{
		WardrobeDir:  cfg.Storage.WardrobeDir,
		CompositeDir: cfg.Storage.CompositeDir,
	})
	backupSvc := service.NewBackupService(service.ExecRunner{}, metrics, logr, service.BackupConfig{
		Dir:         cfg.Backup.Dir,
		StorageRoot: files.Root(),
		ManagedDirs: []string{cfg.Storage.UploadDir, cfg.Storage.WardrobeDir, cfg.Storage.CompositeDir},
		DatabaseURL: database.CommandDSN(cfg.Database),
		PgDumpPath:  cfg.Backup.PgDumpPath,
		PsqlPath:    cfg.Backup.PsqlPath,
		KeepPerKind: cfg.Backup.KeepPerKind,
		DaysToKeep:  cfg.Backup.DaysToKeep,
	})

	if cfg.Maintenance.Enabled {
		queue := jobs.NewQueue("maintenance", jobs.QueueConfig{Workers: cfg.Maintenance.Workers, Logger: logr})
		maintenanceSvc.RegisterJobs(queue)
		queue.Start(ctx)
		queue.Every(cfg.Maintenance.Tick, service.JobCompositeCleanup, false)
		queue.Every(cfg.Maintenance.Tick, service.JobReconcileOrphans, nil)
		defer queue.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics.Handler(), pool)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:        handler.NewAuthHandler(authSvc),
		items:       handler.NewItemHandler(wardrobeSvc, cfg.Storage.MaxUploadBytes),
		outfits:     handler.NewOutfitHandler(composerSvc, outfitSvc),
		preferences: handler.NewPreferenceHandler(preferenceSvc),
		images:      handler.NewImageHandler(signer, files, cfg.Storage.WardrobeDir, cfg.Storage.CompositeDir),
		exports:     handler.NewExportHandler(exportSvc),
		admin:       handler.NewAdminHandler(maintenanceSvc, backupSvc, wardrobeSvc),
		tokens:      authSvc,
		limiter:     middleware.NewRateLimiter(cfg.RateLimit.PerMinute),
		logger:      logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
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

type routeDeps struct {
	auth        *handler.AuthHandler
	items       *handler.ItemHandler
	outfits     *handler.OutfitHandler
	preferences *handler.PreferenceHandler
	images      *handler.ImageHandler
	exports     *handler.ExportHandler
	admin       *handler.AdminHandler
	tokens      middleware.TokenValidator
	limiter     *middleware.RateLimiter
	logger      *zap.Logger
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	api.POST("/auth/register", d.auth.Register)
	api.POST("/auth/login", d.auth.Login)
	api.GET("/images/:token", d.images.Serve)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.tokens))
	secured.GET("/auth/me", d.auth.Me)

	limited := d.limiter.Middleware()

	items := secured.Group("/items")
	items.GET("", d.items.List)
	items.POST("", limited, d.items.Add)
	items.POST("/bulk-delete", d.items.BulkDelete)
	items.GET("/:id", d.items.Get)
	items.PUT("/:id", d.items.Edit)
	items.PATCH("/:id/details", d.items.UpdateDetails)
	items.PUT("/:id/image", limited, d.items.UpdateImage)
	items.DELETE("/:id", d.items.Delete)
	items.GET("/:id/price-history", d.items.PriceHistory)
	items.GET("/:id/colour-history", d.items.ColourHistory)
	items.GET("/:id/similar", d.items.Similar)

	outfits := secured.Group("/outfits")
	outfits.POST("/compose", limited, d.outfits.Compose)
	outfits.POST("", d.outfits.Save)
	outfits.GET("", d.outfits.List)
	outfits.GET("/shared", d.outfits.Shared)
	outfits.GET("/:id", d.outfits.Get)
	outfits.PATCH("/:id", d.outfits.UpdateDetails)
	outfits.DELETE("/:id", d.outfits.Delete)
	outfits.POST("/:id/share", d.outfits.Share)
	outfits.DELETE("/:id/share/:userId", d.outfits.Unshare)

	secured.GET("/preferences", d.preferences.Preferences)
	secured.GET("/colours/recommend", d.preferences.Recommend)

	secured.GET("/exports/items.csv", d.exports.ItemsCSV)
	secured.GET("/exports/lookbook.pdf", d.exports.Lookbook)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin), middleware.Audit(d.logger, "admin"))
	admin.POST("/orphans/reconcile", d.admin.ReconcileOrphans)
	admin.GET("/cleanup", d.admin.CleanupStats)
	admin.PATCH("/cleanup", d.admin.UpdateCleanup)
	admin.POST("/cleanup/run", d.admin.RunCleanup)
	admin.POST("/backups", d.admin.CreateBackup)
	admin.GET("/backups", d.admin.ListBackups)
	admin.POST("/backups/verify", d.admin.VerifyBackup)
	admin.POST("/backups/restore", d.admin.RestoreBackup)
	admin.POST("/backups/rotate", d.admin.RotateBackups)
}
