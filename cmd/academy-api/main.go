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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ritmo-academy/academy-api/api/swagger"
	"github.com/ritmo-academy/academy-api/internal/handler"
	"github.com/ritmo-academy/academy-api/internal/middleware"
	"github.com/ritmo-academy/academy-api/internal/models"
	"github.com/ritmo-academy/academy-api/internal/repository"
	"github.com/ritmo-academy/academy-api/internal/service"
	"github.com/ritmo-academy/academy-api/pkg/cache"
	"github.com/ritmo-academy/academy-api/pkg/config"
	"github.com/ritmo-academy/academy-api/pkg/database"
	"github.com/ritmo-academy/academy-api/pkg/jobs"
	"github.com/ritmo-academy/academy-api/pkg/logger"
	corsmiddleware "github.com/ritmo-academy/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ritmo-academy/academy-api/pkg/middleware/requestid"
	"github.com/ritmo-academy/academy-api/pkg/storage"
)

// @title Ritmo Academy API
// @version 1.0.0
// @description Dance academy management API with a package-credit ledger core
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API serves uncached responses when redis is down.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	classRepo := repository.NewClassRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(userRepo, studentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "academy-api",
	})

	ledgerSvc := service.NewLedgerService(service.LedgerServiceParams{
		Ledger:      ledgerRepo,
		Students:    studentRepo,
		Classes:     classRepo,
		Attendances: attendanceRepo,
		Audit:       userRepo,
		Cache:       cacheSvc,
		Metrics:     metricsSvc,
		Validator:   validate,
		Logger:      logr,
		Config: service.LedgerConfig{
			ReversalWindow: cfg.Ledger.ReversalWindow,
			DebitRetries:   cfg.Ledger.DebitRetries,
		},
	})

	packageSvc := service.NewPackageService(packageRepo, studentRepo, userRepo, ledgerRepo, cacheSvc, validate, logr, nil)
	classSvc := service.NewClassService(classRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, logr)
	recordSvc := service.NewRecordService(attendanceRepo, packageRepo, paymentRepo, logr)
	calendarSvc := service.NewCalendarService(classRepo, logr)

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Attendances: attendanceRepo,
		Packages:    packageRepo,
		Classes:     classRepo,
		Analytics:   analyticsRepo,
		Cache:       cacheSvc,
		Logger:      logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:          cfg.Dashboard.CacheTTL,
			ChurnExpiryDays:   cfg.Dashboard.ChurnExpiryDays,
			ChurnCreditsFloor: cfg.Dashboard.ChurnCreditsFloor,
			RecentAttendances: cfg.Dashboard.RecentAttendances,
		},
	})

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare reports storage", "error", err)
		}
		reportSvc = service.NewReportService(service.ReportServiceParams{
			Repo:        reportRepo,
			Payments:    paymentRepo,
			Attendances: attendanceRepo,
			Store:       store,
			Signer:      storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
			QueueConfig: jobs.QueueConfig{
				Workers:    cfg.Reports.WorkerConcurrency,
				MaxRetries: cfg.Reports.WorkerRetries,
				Logger:     logr,
			},
			Validate: validate,
			Logger:   logr,
		})
		reportSvc.Start(ctx)
		defer reportSvc.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, studentRepo)
	recordHandler := handler.NewRecordHandler(recordSvc, studentRepo)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	packageHandler := handler.NewPackageHandler(packageSvc)
	attendanceHandler := handler.NewAttendanceHandler(ledgerSvc, attendanceSvc)
	classHandler := handler.NewClassHandler(classSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	userHandler := handler.NewUserHandler(authSvc)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.POST("/refresh", authHandler.Refresh)

	authed := api.Group("", middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)

	authed.GET("/dashboard", middleware.RBAC(models.RoleStudent), dashboardHandler.Student)
	authed.GET("/record", middleware.RBAC(models.RoleStudent), recordHandler.Own)
	authed.GET("/calendar/classes", calendarHandler.Weekly)
	authed.GET("/packages", packageHandler.Catalog)
	authed.GET("/classes", classHandler.List)
	authed.GET("/classes/:id", classHandler.Get)

	staff := middleware.RBAC(models.RoleAdmin, models.RoleReceptionist)
	authed.GET("/students", staff, studentHandler.List)
	authed.GET("/students/:id", staff, studentHandler.Get)
	authed.PUT("/students/:id", staff, middleware.Audit(userRepo, models.AuditActionUpdate, "students"), studentHandler.Update)
	authed.DELETE("/students/:id", middleware.RBAC(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionDelete, "students"), studentHandler.Deactivate)
	authed.GET("/students/:id/record", staff, recordHandler.ByStudent)
	authed.GET("/students/:id/packages", middleware.StudentSelfOrStaff(studentRepo), packageHandler.StudentPackages)
	authed.POST("/students/:id/packages", staff, packageHandler.Purchase)
	authed.GET("/student-packages/:id/ledger", staff, packageHandler.Ledger)
	authed.POST("/student-packages/:id/revoke", middleware.RBAC(models.RoleAdmin), packageHandler.Revoke)
	authed.POST("/student-packages/:id/extend", middleware.RBAC(models.RoleAdmin), packageHandler.Extend)

	authed.POST("/attendances", staff, attendanceHandler.CheckIn)
	authed.POST("/attendances/:id/reverse", staff, attendanceHandler.Reverse)
	authed.GET("/attendances", staff, attendanceHandler.List)

	authed.GET("/payments", middleware.RBAC(models.RoleAdmin), paymentHandler.List)
	authed.GET("/payments/:id", middleware.RBAC(models.RoleAdmin), paymentHandler.Get)

	admin := authed.Group("/admin", middleware.RBAC(models.RoleAdmin))
	admin.GET("/dashboard", dashboardHandler.Admin)
	admin.GET("/metrics", metricsHandler.Snapshot)
	admin.POST("/packages", middleware.Audit(userRepo, models.AuditActionCreate, "package_definitions"), packageHandler.Create)
	admin.PUT("/packages/:id", middleware.Audit(userRepo, models.AuditActionUpdate, "package_definitions"), packageHandler.Update)
	admin.DELETE("/packages/:id", middleware.Audit(userRepo, models.AuditActionDelete, "package_definitions"), packageHandler.Deactivate)
	admin.POST("/classes", middleware.Audit(userRepo, models.AuditActionCreate, "classes"), classHandler.Create)
	admin.PUT("/classes/:id", middleware.Audit(userRepo, models.AuditActionUpdate, "classes"), classHandler.Update)
	admin.DELETE("/classes/:id", middleware.Audit(userRepo, models.AuditActionDelete, "classes"), classHandler.Deactivate)
	admin.GET("/teachers", classHandler.Teachers)
	admin.GET("/rooms", classHandler.Rooms)
	admin.GET("/users", userHandler.List)
	admin.POST("/users", userHandler.CreateStaff)

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		admin.POST("/reports", reportHandler.Request)
		admin.GET("/reports/:id", reportHandler.Status)
		authed.GET("/reports/download", reportHandler.Download)
	}

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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
