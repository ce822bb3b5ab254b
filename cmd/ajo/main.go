package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Full-Stack-Sanctus/Remittra/internal/config"
	"github.com/Full-Stack-Sanctus/Remittra/internal/handlers"
	"github.com/Full-Stack-Sanctus/Remittra/internal/rate"
	"github.com/Full-Stack-Sanctus/Remittra/internal/service"
	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/Full-Stack-Sanctus/Remittra/libs/auth"
	"github.com/Full-Stack-Sanctus/Remittra/libs/health"
	"github.com/Full-Stack-Sanctus/Remittra/libs/httpmiddleware"
	"github.com/Full-Stack-Sanctus/Remittra/libs/kafka"
	"github.com/Full-Stack-Sanctus/Remittra/libs/logging"
	"github.com/Full-Stack-Sanctus/Remittra/libs/metrics"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	ajoMetrics := service.NewMetrics(registry)
	kafkaMetrics := kafka.NewProducerMetrics(registry)

	ready := health.NewManager(false)

	if err := storage.RunMigrations(cfg.PostgresDSN()); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	pool, err := connectDB(cfg)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	limiter := rate.NewRedisLimiter(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window, "")

	var publisher kafka.Publisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, logger, kafkaMetrics)
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer
		if strings.TrimSpace(cfg.Kafka.Topics.DeadLetter) != "" {
			publisher = kafka.NewDLQPublisher(producer, producer, cfg.Kafka.Topics.DeadLetter, logger)
		}
	} else {
		logger.Warn("kafka disabled, domain events will not be published")
	}

	store := storage.New(pool, logger)
	tiers := service.NewTierGate(cfg.Tiers)

	walletService := service.NewWalletService(store, logger, ajoMetrics, publisher, cfg.Kafka.Topics.WalletEvents)
	ajoService := service.NewAjoService(store, tiers, cfg.Ajo.InviteTTL, logger, ajoMetrics, publisher, cfg.Kafka.Topics.AjoEvents)

	httpServer := buildHTTPServer(cfg, ready, registry, logger, walletService, ajoService, limiter)

	ready.SetReady(true)

	go func() {
		logger.Info("http server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	waitForShutdown(httpServer, ready, logger)
}

func connectDB(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func buildHTTPServer(
	cfg *config.Config,
	ready *health.Manager,
	registry *prometheus.Registry,
	logger *slog.Logger,
	walletService *service.WalletService,
	ajoService *service.AjoService,
	limiter *rate.RedisLimiter,
) *http.Server {
	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	walletHandler := handlers.NewWalletHandler(walletService, logger, limiter)
	ajoHandler := handlers.NewAjoHandler(ajoService, logger, limiter)
	kycHandler := handlers.NewKYCHandler(ajoService, logger)

	secret := []byte(cfg.Auth.JWTSecret)
	api := router.Group("/", auth.Middleware(secret))
	walletHandler.RegisterRoutes(api)
	ajoHandler.RegisterRoutes(api)
	kycHandler.RegisterRoutes(api)

	admin := router.Group("/", auth.Middleware(secret), auth.RequireAdmin())
	kycHandler.RegisterAdminRoutes(admin)

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	return &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}
}

func waitForShutdown(httpServer *http.Server, ready *health.Manager, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown started")
	ready.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
