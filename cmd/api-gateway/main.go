package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campus-hub/clearance-api/api/swagger"
	"github.com/campus-hub/clearance-api/internal/handler"
	"github.com/campus-hub/clearance-api/internal/middleware"
	"github.com/campus-hub/clearance-api/internal/models"
	"github.com/campus-hub/clearance-api/internal/repository"
	"github.com/campus-hub/clearance-api/internal/service"
	"github.com/campus-hub/clearance-api/pkg/cache"
	"github.com/campus-hub/clearance-api/pkg/config"
	"github.com/campus-hub/clearance-api/pkg/database"
	"github.com/campus-hub/clearance-api/pkg/export"
	"github.com/campus-hub/clearance-api/pkg/jobs"
	"github.com/campus-hub/clearance-api/pkg/logger"
	corsmiddleware "github.com/campus-hub/clearance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campus-hub/clearance-api/pkg/middleware/requestid"
	"github.com/campus-hub/clearance-api/pkg/storage"
)

// @title Campus Hub Clearance API
// @version 1.0.0
// @description Multi-stage student clearance approval workflow
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Fatal("failed to init certificate storage", zap.Error(err))
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	clearanceRepo := repository.NewClearanceRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	directory := service.NewRoleDirectory(roleRepo, logr)
	authService := service.NewAuthService(userRepo, cacheRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenTTL:      cfg.Reset.TokenTTL,
		Issuer:             "clearance-api",
		Audience:           []string{"clearance-web"},
	})
	requestService := service.NewRequestService(studentRepo, clearanceRepo, approvalRepo, directory, userRepo, metrics, logr)
	workflowService := service.NewWorkflowService(approvalRepo, clearanceRepo, studentRepo, userRepo, directory, cacheRepo, metrics, userRepo, logr)
	studentService := service.NewStudentService(studentRepo, userRepo, logr, cfg.Import.MaxRows)
	adminService := service.NewAdminService(clearanceRepo, roleRepo, userRepo, export.NewCSVExporter(), validate, userRepo, logr)

	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
	certificateService := service.NewCertificateService(certificateRepo, clearanceRepo, studentRepo, workflowService,
		export.NewCertificateRenderer(), store, signer, metrics, userRepo, logr, cfg.Certificates.Institution)

	certificateQueue := jobs.NewQueue("certificates", certificateService.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Certificates.WorkerConcurrency,
		MaxRetries: cfg.Certificates.WorkerRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	certificateQueue.Start(ctx)
	defer certificateQueue.Stop()

	workflowService.OnFinalApproval(func(requestID, studentID string) {
		err := certificateQueue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Type:    "certificate.render",
			Payload: service.CertificateJobPayload{RequestID: requestID, StudentID: studentID},
		})
		if err != nil {
			logr.Warn("failed to enqueue certificate job", zap.String("request_id", requestID), zap.Error(err))
		}
	})

	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(studentService, requestService)
	staffHandler := handler.NewStaffHandler(workflowService)
	certificateHandler := handler.NewCertificateHandler(certificateService)
	adminHandler := handler.NewAdminHandler(adminService, studentService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	// Signed certificate links carry their own authorization in the token.
	api.GET("/certificates/download", certificateHandler.ServeSigned)

	student := api.Group("", middleware.JWT(authService), middleware.RequireRoles(models.RoleStudent))
	{
		student.GET("/students/me", studentHandler.Profile)
		student.GET("/clearance/types", studentHandler.ListTypes)
		student.POST("/clearance/requests", studentHandler.Submit)
		student.GET("/clearance/requests/status", studentHandler.Status)
		student.GET("/clearance/requests/:id/certificate", certificateHandler.Download)
		student.GET("/clearance/requests/:id/certificate/link", certificateHandler.SignedLink)
	}

	staff := api.Group("/staff", middleware.JWT(authService), middleware.RequireRoles(models.RoleStaff))
	{
		staff.GET("/profile", staffHandler.Profile)
		staff.GET("/requests", staffHandler.Queue)
		staff.GET("/requests/:id", staffHandler.RequestStatus)
		staff.POST("/requests/:id/decision", staffHandler.Decide)
	}

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	{
		admin.GET("/profile", adminHandler.Profile)
		admin.GET("/clearance-types", adminHandler.ListTypes)
		admin.POST("/clearance-types", adminHandler.CreateType)
		admin.PUT("/schedules", adminHandler.SetSchedule)
		admin.GET("/schedules/:id", adminHandler.Schedule)
		admin.PATCH("/schedules/:id/toggle", adminHandler.ToggleSchedule)
		admin.GET("/requests", adminHandler.RecentRequests)
		admin.GET("/requests/export", middleware.Audit(userRepo, "EXPORT", "clearance_requests"), adminHandler.ExportRequests)
		admin.GET("/students", adminHandler.ListStudents)
		admin.PATCH("/users/:id/status", adminHandler.ToggleUserStatus)
		admin.POST("/students/import", adminHandler.ImportStudents)
		admin.GET("/departments", adminHandler.ListDepartments)
		admin.GET("/blocks", adminHandler.ListBlocks)
		admin.GET("/roles", adminHandler.ListRoles)
		admin.POST("/roles", adminHandler.AssignRole)
		admin.DELETE("/roles/:id", adminHandler.RemoveRole)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Warn("failed to close redis", zap.Error(err))
	}
}
