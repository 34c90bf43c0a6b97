package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/config"
	"github.com/medscan/scangate/internal/handler"
	"github.com/medscan/scangate/internal/middleware"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/logger"
	"github.com/medscan/scangate/internal/repository"
	"github.com/medscan/scangate/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	logger.Info("✅ Connected to PostgreSQL")

	gdb, err := repository.NewGormDB(cfg)
	if err != nil {
		log.Fatalf("Failed to open ORM session: %v", err)
	}

	deviceRepo, err := repository.NewGormDeviceRepo(gdb)
	if err != nil {
		log.Fatalf("Failed to prepare devices table: %v", err)
	}
	userRepo, err := repository.NewGormUserRepo(gdb)
	if err != nil {
		log.Fatalf("Failed to prepare users table: %v", err)
	}
	dictRepo, err := repository.NewGormDictRepo(gdb)
	if err != nil {
		log.Fatalf("Failed to prepare dict_items table: %v", err)
	}
	usageRepo := repository.NewPostgresUsageRepo(db)
	auditRepo := repository.NewPostgresAuditRepo(db)

	// WeCom token cache (Redis > Memory)
	var tokenCache repository.TokenCache
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			tokenCache = repository.NewRedisTokenCache(redisClient, cfg.Redis.TokenCachePrefix)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, token cache falls back to memory", "error", err)
		}
	}
	if tokenCache == nil {
		tokenCache = repository.NewMemoryTokenCache()
	}

	// 3. Initialize Services
	auditSvc, err := service.NewAuditService(cfg.Audit.LogDir, auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}
	authSvc := service.NewAuthService(userRepo, tokenCache, cfg)
	dictSvc := service.NewDictService(dictRepo)
	usageSvc := service.NewUsageService(usageRepo, deviceRepo, cfg)
	exportSvc := service.NewExportService(usageRepo, dictSvc, cfg)

	// 4. Initialize Handlers
	authHandler := handler.NewAuthHandler(authSvc, auditSvc)
	usageHandler := handler.NewUsageHandler(usageSvc, exportSvc, auditSvc)
	deviceHandler := handler.NewDeviceHandler(deviceRepo, auditSvc)
	dictHandler := handler.NewDictHandler(dictRepo, auditSvc)
	userHandler := handler.NewUserHandler(userRepo, auditSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)

	// 5. Setup Router
	r := gin.Default()

	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "scangate"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")

	// Public auth endpoints
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/auth/wecom/callback", authHandler.WeComCallback)

	// Authenticated routes
	authed := v1.Group("")
	authed.Use(middleware.AuthRequired(authSvc))
	authed.Use(middleware.RateLimit(cfg))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.POST("/usage-records", usageHandler.Create)
		authed.GET("/usage-records", usageHandler.List)
		authed.GET("/usage-records/count", usageHandler.Count)
		authed.POST("/usage-records/:id/undo", usageHandler.Undo)

		authed.GET("/devices", deviceHandler.List)
		authed.GET("/devices/code/:code", deviceHandler.GetByCode)
		authed.GET("/dicts/:type", dictHandler.ListByType)
	}

	// Export carries its own 401/403 split, so identity is optional here.
	export := v1.Group("")
	export.Use(middleware.AuthOptional(authSvc))
	{
		export.GET("/usage-records/export", usageHandler.Export)
	}

	// Device management (device_admin or sys_admin)
	deviceAdmin := v1.Group("")
	deviceAdmin.Use(middleware.AuthRequired(authSvc))
	deviceAdmin.Use(middleware.RequireRole(model.RoleDeviceAdmin, model.RoleSysAdmin))
	{
		deviceAdmin.POST("/devices", deviceHandler.Create)
		deviceAdmin.PUT("/devices/:id", deviceHandler.Update)
		deviceAdmin.DELETE("/devices/:id", deviceHandler.Delete)
	}

	// System administration (sys_admin only)
	sysAdmin := v1.Group("")
	sysAdmin.Use(middleware.AuthRequired(authSvc))
	sysAdmin.Use(middleware.RequireRole(model.RoleSysAdmin))
	{
		sysAdmin.POST("/dicts", dictHandler.Create)
		sysAdmin.PUT("/dicts/:id", dictHandler.Update)
		sysAdmin.DELETE("/dicts/:id", dictHandler.Delete)

		sysAdmin.GET("/users", userHandler.List)
		sysAdmin.PUT("/users/:id", userHandler.Update)

		sysAdmin.GET("/audit-logs", auditHandler.List)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 ScanGate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	auditSvc.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	logger.Info("Server exited")
}
