package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campuspoints/loyalty-service/internal/api"
	"github.com/campuspoints/loyalty-service/internal/config"
	"github.com/campuspoints/loyalty-service/internal/handler"
	"github.com/campuspoints/loyalty-service/internal/infrastructure/kafka"
	"github.com/campuspoints/loyalty-service/internal/infrastructure/observability"
	"github.com/campuspoints/loyalty-service/internal/infrastructure/redis"
	repository "github.com/campuspoints/loyalty-service/internal/repository/postgres"
	service "github.com/campuspoints/loyalty-service/internal/services"
	_ "github.com/lib/pq"
)

const transactionsTopic = "transactions"

func main() {
	tracerShutdown, metricsHandler := observability.Setup("loyalty-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			slog.Error("failed to shut down tracer", "error", err)
		}
	}()

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repository.InitSchema(ctx, db); err != nil {
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.NewClient(cfg.RedisAddr)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, transactionsTopic, "loyalty-service", redisClient)
	defer consumer.Close()
	go consumer.Consume(ctx)

	userRepo := repository.NewPostgresUserRepository(db)
	tokenRepo := repository.NewPostgresResetTokenRepository(db)
	promotionRepo := repository.NewPostgresPromotionRepository(db)
	eventRepo := repository.NewPostgresEventRepository(db)
	transactionRepo := repository.NewPostgresTransactionRepository(db)

	pointsService := service.NewPointsService(userRepo, promotionRepo, eventRepo, transactionRepo, redisClient, producer)
	authService := service.NewAuthService(userRepo, tokenRepo, redisClient, cfg.JWTSecret)
	userService := service.NewUserService(userRepo, tokenRepo, promotionRepo, redisClient)
	eventService := service.NewEventService(eventRepo, userRepo)
	promotionService := service.NewPromotionService(promotionRepo)

	router := api.NewRouter(api.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		User:        handler.NewUserHandler(userService, pointsService),
		Transaction: handler.NewTransactionHandler(pointsService),
		Event:       handler.NewEventHandler(eventService, pointsService),
		Promotion:   handler.NewPromotionHandler(promotionService),
	}, redisClient, cfg.JWTSecret, metricsHandler)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
