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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-enrollment-api/api/swagger"
	"github.com/noah-isme/sma-enrollment-api/internal/handler"
	"github.com/noah-isme/sma-enrollment-api/internal/middleware"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/internal/repository"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
	"github.com/noah-isme/sma-enrollment-api/pkg/cache"
	"github.com/noah-isme/sma-enrollment-api/pkg/calendarfile"
	"github.com/noah-isme/sma-enrollment-api/pkg/config"
	"github.com/noah-isme/sma-enrollment-api/pkg/database"
	"github.com/noah-isme/sma-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-enrollment-api/pkg/middleware/requestid"
)

// @title SMA Enrollment API
// @version 1.0.0
// @description Course section allocation, waitlists and schedule change approvals
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and event publishing disabled", zap.Error(err))
	}

	app, err := build(ctx, cfg, logr, db, redisClient)
	if err != nil {
		logr.Fatal("failed to start services", zap.Error(err))
	}
	defer app.shutdown()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
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

type application struct {
	router   *gin.Engine
	shutdown func()
}

func build(ctx context.Context, cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	sectionRepo := repository.NewSectionRepository(db)
	seatRepo := repository.NewStudentSectionRepository(db)
	requestRepo := repository.NewEnrollmentRequestRepository(db)
	changeRepo := repository.NewScheduleChangeRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var (
		cacheStore service.CacheRepository
		sinks      = []service.EventSink{service.NewLogSink(logr)}
	)
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheStore = cacheRepo
		sinks = append(sinks, service.NewPubSubSink(cacheRepo, cfg.Notifications.Channel))
	}
	cacheSvc := service.NewCacheService(cacheStore, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	notifier := service.NewNotificationService(service.NotificationConfig{
		Enabled: cfg.Notifications.Enabled,
		Workers: cfg.Notifications.Workers,
		Retries: cfg.Notifications.Retries,
	}, logr, metrics, sinks...)

	maxWaitlist := 0
	if cfg.Enrollment.WaitlistMaxLength != nil {
		maxWaitlist = *cfg.Enrollment.WaitlistMaxLength
	}
	tracker := service.NewSectionCapacityTracker(maxWaitlist, logr)
	scorer := service.NewPriorityScorer(cfg.Enrollment.PreferenceWeight, cfg.Enrollment.PriorityWeight)

	calendarSvc := service.NewCalendarService(calendarRepo, sectionRepo, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(requestRepo, seatRepo, sectionRepo, tracker, scorer, notifier, auditRepo, metrics,
		service.EnrollmentOptions{AllocateOnSubmit: cfg.Enrollment.AllocateOnSubmit, Workers: cfg.Enrollment.AllocationWorkers},
		validate, logr)
	workflowSvc := service.NewScheduleChangeService(changeRepo, seatRepo, sectionRepo, calendarSvc, tracker, enrollmentSvc, notifier, auditRepo, metrics,
		service.WorkflowOptions{
			SLAHoursNormal:       cfg.Workflow.SLAHoursNormal,
			SLAHoursUrgent:       cfg.Workflow.SLAHoursUrgent,
			AutoApproveThreshold: cfg.Workflow.AutoApproveThreshold,
			EscalationEnabled:    cfg.Workflow.EscalationEnabled,
			EscalationTarget:     cfg.Workflow.EscalationTarget,
		}, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, seatRepo, calendarRepo, tracker, enrollmentSvc, auditRepo, validate, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	seed, err := calendarfile.Load(cfg.Calendar.SeedFile)
	if err != nil {
		return nil, err
	}
	if _, err := calendarSvc.Import(ctx, seed); err != nil {
		return nil, fmt.Errorf("import calendar seed: %w", err)
	}

	// Seats are rebuilt from postgres before any request is served.
	if err := enrollmentSvc.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore seat tracker: %w", err)
	}

	workers, cancelWorkers := context.WithCancel(ctx)
	notifier.Start(workers)
	enrollmentSvc.Start(workers)
	workflowSvc.StartSLAMonitor(workers, cfg.Workflow.SweepInterval)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = cache.Ping(redisClient)
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:        authSvc,
		audit:       auditRepo,
		logger:      logr,
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		sections:    handler.NewSectionHandler(sectionSvc, enrollmentSvc),
		changes:     handler.NewScheduleChangeHandler(workflowSvc),
		calendar:    handler.NewCalendarHandler(calendarSvc, workflowSvc),
	})

	return &application{
		router: r,
		shutdown: func() {
			cancelWorkers()
			enrollmentSvc.Stop()
			notifier.Stop()
			if redisClient != nil {
				_ = redisClient.Close()
			}
		},
	}, nil
}

type routeDeps struct {
	auth        middleware.TokenValidator
	audit       middleware.AuditWriter
	logger      *zap.Logger
	enrollments *handler.EnrollmentHandler
	sections    *handler.SectionHandler
	changes     *handler.ScheduleChangeHandler
	calendar    *handler.CalendarHandler
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	api.Use(middleware.JWT(d.auth))
	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	enrollments := api.Group("/enrollments")
	enrollments.POST("", d.enrollments.Submit)
	enrollments.GET("", d.enrollments.List)
	enrollments.POST("/allocate", staff, middleware.Audit(d.audit, d.logger, models.AuditActionAllocationRun, "enrollment_request"), d.enrollments.Allocate)
	enrollments.GET("/:id", d.enrollments.Get)
	enrollments.POST("/:id/withdraw", d.enrollments.Withdraw)

	sections := api.Group("/sections")
	sections.GET("", d.sections.List)
	sections.POST("", staff, d.sections.Create)
	sections.GET("/:id", d.sections.Get)
	sections.GET("/:id/roster", staff, d.sections.Roster)
	sections.GET("/:id/timers", d.calendar.SectionTimers)
	sections.PUT("/:id/capacity", staff, d.sections.UpdateCapacity)
	sections.POST("/:id/drop", d.sections.DropSeat)

	changes := api.Group("/schedule-changes")
	changes.POST("", d.changes.Submit)
	changes.GET("", d.changes.List)
	changes.POST("/sweep", middleware.RequireReviewer(), middleware.Audit(d.audit, d.logger, models.AuditActionSLASweep, "schedule_change"), d.changes.Sweep)
	changes.GET("/:id", d.changes.Get)
	changes.POST("/:id/review", middleware.RequireReviewer(), d.changes.Review)
	changes.POST("/:id/cancel", d.changes.Cancel)

	calendar := api.Group("/calendar")
	calendar.GET("/grading-periods", d.calendar.ListGradingPeriods)
	calendar.GET("/grading-periods/current", d.calendar.CurrentGradingPeriod)
	calendar.POST("/grading-periods", staff, d.calendar.CreateGradingPeriod)
	calendar.POST("/period-timers", staff, d.calendar.CreatePeriodTimer)
	calendar.POST("/conflicts", d.calendar.CheckConflicts)
}
