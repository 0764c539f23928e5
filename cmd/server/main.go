package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BenedictTTM/e-back-sub000/internal/adapter/events"
	"github.com/BenedictTTM/e-back-sub000/internal/adapter/gateway"
	"github.com/BenedictTTM/e-back-sub000/internal/adapter/handler"
	"github.com/BenedictTTM/e-back-sub000/internal/adapter/storage"
	"github.com/BenedictTTM/e-back-sub000/internal/config"
	"github.com/BenedictTTM/e-back-sub000/internal/core/service"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQLMaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	paystack := gateway.NewPaystackAdapter(cfg.PaystackBaseURL, cfg.PaystackSecret, cfg.GatewayTimeout)
	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.ServiceName)

	// Services
	cartService := service.NewCartService(mysqlAdapter, mysqlAdapter, logger)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, redisAdapter, publisher, logger)
	paymentService := service.NewPaymentService(mysqlAdapter, mysqlAdapter, mysqlAdapter, paystack, logger, cfg.CallbackURL)
	reconcileService := service.NewReconcileService(mysqlAdapter, paystack, redisAdapter, publisher, logger, cfg.IsProduction())
	catalogService := service.NewCatalogService(mysqlAdapter, logger)

	// HTTP server
	httpHandler := handler.NewHTTPHandler(cartService, orderService, paymentService, reconcileService, catalogService, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Router(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown error", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	if err := publisher.Close(); err != nil {
		logger.Warn("kafka close error", zap.Error(err))
	}
	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
