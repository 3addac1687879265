package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"storefront-cart/internal/analytics"
	"storefront-cart/internal/kafka"
	"storefront-cart/internal/middleware"
)

const cfgPath = "config/analytics-config.yaml"

func main() {
	// Init logger
	zapLogger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	logger := zapLogger.Sugar()
	defer func() { _ = zapLogger.Sync() }()

	// Parse config
	path := cfgPath
	if p := os.Getenv("ANALYTICS_CONFIG"); p != "" {
		path = p
	}
	c, err := analytics.NewConfig(path)
	if err != nil {
		logger.Fatalf("Error parsing config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	db, err := sql.Open("postgres", c.CfgDB.DSN())
	if err != nil {
		logger.Fatalf("Error connecting to DB: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(c.MaxOpenConns)
	if err := db.Ping(); err != nil {
		logger.Errorf("DB ping failed: %v", err)
	}

	// Init Kafka Consumer
	consumer := kafka.NewConsumer(c.Kafka.Brokers, c.Kafka.Topic, c.Kafka.GroupID, logger)
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warnf("error closing kafka consumer: %v", err)
		}
	}()

	repo := analytics.NewRepository(db, logger)
	service := analytics.NewService(repo, logger)

	// Start event processor
	go consumer.Consume(ctx, service.ProcessEvent)

	// Init HTTP server
	handler := analytics.NewHandler(service, logger)
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)
	r.HandleFunc("/products/popular", handler.GetPopularProducts).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	srv := &http.Server{
		Addr:         c.ServerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infow("starting cart analytics",
		"addr", c.ServerPort,
		"topic", c.Kafka.Topic,
		"group", c.Kafka.GroupID,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Failed to start server: %v", err)
	}
}
