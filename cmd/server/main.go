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
	"go.uber.org/zap"

	"github.com/lumiere-jewels/service-coupon/internal/application"
	"github.com/lumiere-jewels/service-coupon/internal/config"
	couponEvents "github.com/lumiere-jewels/service-coupon/internal/events"
	"github.com/lumiere-jewels/service-coupon/internal/handler"
	"github.com/lumiere-jewels/service-coupon/internal/lock"
	"github.com/lumiere-jewels/service-coupon/internal/repository"
	"github.com/lumiere-jewels/service-coupon/migrations"
	"github.com/lumiere-jewels/service-coupon/pkg/auth"
	"github.com/lumiere-jewels/service-coupon/pkg/database"
	"github.com/lumiere-jewels/service-coupon/pkg/health"
	"github.com/lumiere-jewels/service-coupon/pkg/kafka"
	"github.com/lumiere-jewels/service-coupon/pkg/logger"
	"github.com/lumiere-jewels/service-coupon/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-coupon")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-coupon",
		zap.String("port", cfg.Port),
		zap.Bool("enforce_admin", cfg.CouponConfig.EnforceAdmin),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	db, err := database.Connect(dbConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, ".", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()

	checks := map[string]health.CheckFunc{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	// Initialize the issuance lock; Redis when configured, in-process otherwise
	var locker lock.KeyedLocker = lock.NewMemoryLocker()
	if cfg.RedisConfig.Addr != "" {
		redisClient, err := lock.NewRedisClient(context.Background(), cfg.RedisConfig, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.CouponConfig.LockTTL, zapLogger)
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	// Initialize repositories
	couponRepo := repository.NewGormCouponRepository(db)
	promotionRepo := repository.NewGormPromotionRepository(db)
	discountRepo := repository.NewGormDiscountRepository(db)
	userRepo := repository.NewGormUserRepository(db)

	// Initialize application services
	couponService := application.NewCouponService(
		couponRepo,
		promotionRepo,
		discountRepo,
		userRepo,
		locker,
		kafkaProducer,
		cfg.CouponConfig.DefaultValidity,
		zapLogger,
	)
	catalogService := application.NewCatalogService(promotionRepo, discountRepo, zapLogger)
	reportService := application.NewReportService(couponRepo, promotionRepo, discountRepo, userRepo, zapLogger)

	// Initialize Kafka consumer for discount events
	consumerGroupID := cfg.KafkaConfig.GroupPrefix + "coupon-service"
	discountConsumer := couponEvents.NewDiscountEventConsumer(
		cfg.KafkaConfig.Brokers,
		consumerGroupID,
		couponService,
		zapLogger,
	)
	defer discountConsumer.Close()

	// Start Kafka consumer in a goroutine
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting discount event consumer")
		if err := discountConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("discount event consumer failed", zap.Error(err))
			}
		}
	}()

	// Initialize HTTP handlers
	guard := handler.NewGuard(jwtManager, userRepo, cfg.CouponConfig.EnforceAdmin, zapLogger)
	couponHandler := handler.NewCouponHandler(couponService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	reportHandler := handler.NewReportHandler(reportService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler("service-coupon", checks)
	healthHandler.RegisterRoutes(router)

	// Register API routes
	apiV1 := router.Group("/api/v1")
	couponHandler.RegisterRoutes(apiV1, guard)
	catalogHandler.RegisterRoutes(apiV1, guard)
	reportHandler.RegisterRoutes(apiV1, guard)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-coupon...")

	// Cancel Kafka consumer
	consumerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-coupon stopped")
}
