package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/uni-portal/api/swagger"
	"github.com/noah-isme/uni-portal/internal/client"
	"github.com/noah-isme/uni-portal/internal/handler"
	"github.com/noah-isme/uni-portal/internal/middleware"
	"github.com/noah-isme/uni-portal/internal/models"
	"github.com/noah-isme/uni-portal/internal/repository"
	"github.com/noah-isme/uni-portal/internal/service"
	"github.com/noah-isme/uni-portal/pkg/cache"
	"github.com/noah-isme/uni-portal/pkg/config"
	"github.com/noah-isme/uni-portal/pkg/database"
	"github.com/noah-isme/uni-portal/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-portal/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-portal/pkg/middleware/requestid"
)

// @title University Portal Gateway
// @version 1.0.0
// @description Session gateway in front of the university REST API
// @BasePath /
// @schemes http https

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	readiness := map[string]handler.ReadinessCheck{"redis": cache.Ping(redisClient)}

	var db *sqlx.DB
	var auditSvc *service.AuditService
	if cfg.Audit.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck

		auditRepo := repository.NewAuditRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			logr.Fatal("failed to prepare audit schema", zap.Error(err))
		}
		auditSvc = service.NewAuditService(auditRepo, service.AuditConfig{
			Enabled:    true,
			Workers:    cfg.Audit.Workers,
			Retries:    cfg.Audit.Retries,
			RetryDelay: 500 * time.Millisecond,
		}, logr)
		auditSvc.Start(context.Background())
		readiness["postgres"] = db.PingContext
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	backend := client.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, logr,
		client.WithObserver(metricsSvc),
		client.WithValidator(validate),
	)

	tokens := service.NewTokenManager(service.TokenManagerConfig{
		RefreshThreshold: cfg.Token.RefreshThreshold,
		MaxRetries:       cfg.Token.MaxRetries,
		BaseDelay:        cfg.Token.BaseDelay,
	}, metricsSvc, logr)

	sessionRepo := repository.NewSessionRepository(redisClient)
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metricsSvc, cfg.Cache.CatalogTTL, logr, cfg.Cache.Enabled)

	dashboardSvc := service.NewDashboardService(backend, cacheSvc, cfg.Cache.DashboardTTL, logr)
	validatorSvc := service.NewEnrollmentValidator(backend, metricsSvc, logr)
	courseSvc := service.NewCourseService(backend, cacheSvc, dashboardSvc, auditSvc, validate, logr, cfg.Cache.CatalogTTL)
	registrationSvc := service.NewRegistrationService(backend, validatorSvc, dashboardSvc, auditSvc, logr)
	authSvc := service.NewAuthService(backend, sessionRepo, tokens, auditSvc, validate, logr, cfg.Session.TTL)
	profileSvc := service.NewProfileService(backend, authSvc, auditSvc, validate, logr)

	cookie := middleware.SessionCookie{
		Name:   cfg.Session.CookieName,
		Domain: cfg.Session.CookieDomain,
		Secure: cfg.Session.Secure,
		TTL:    cfg.Session.TTL,
	}

	authHandler := handler.NewAuthHandler(authSvc, cookie)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, cookie)
	courseHandler := handler.NewCourseHandler(courseSvc, cookie)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc, cookie)
	profileHandler := handler.NewProfileHandler(profileSvc, cookie)
	auditHandler := handler.NewAuditHandler(auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.RequestMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.Session(authSvc, cookie))

	secured.POST("/auth/refresh", authHandler.Refresh)
	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)

	secured.GET("/dashboard", dashboardHandler.Get)

	staff := middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	courses := secured.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.POST("", staff, courseHandler.Create)
	courses.PUT("/:id", staff, courseHandler.Update)
	courses.DELETE("/:id", adminOnly, courseHandler.Delete)

	enrollLimiter := middleware.NewRateLimiter(cfg.RateLimit.EnrollPerMinute, cfg.RateLimit.Burst)
	registrations := secured.Group("/registrations")
	registrations.GET("/my", registrationHandler.My)
	registrations.GET("/validate/:courseId", studentOnly, registrationHandler.Validate)
	registrations.POST("/enroll/:courseId", studentOnly, enrollLimiter.Middleware(), registrationHandler.Enroll)
	registrations.DELETE("/drop/:courseId", studentOnly, enrollLimiter.Middleware(), registrationHandler.Drop)
	registrations.GET("/course/:courseId", staff, registrationHandler.ForCourse)
	registrations.GET("/transcript", studentOnly, registrationHandler.Transcript)

	secured.GET("/profile", profileHandler.Get)
	secured.PUT("/profile", profileHandler.Update)

	secured.GET("/admin/audit-logs", adminOnly, auditHandler.List)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "backend", cfg.Backend.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	auditSvc.Stop()
}
