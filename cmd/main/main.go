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

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"storefront-cart/internal/app"
	"storefront-cart/internal/catalog"
	handlers "storefront-cart/internal/handlers/shopping_cart"
	"storefront-cart/internal/inventory"
	"storefront-cart/internal/kafka"
	"storefront-cart/internal/middleware"
	"storefront-cart/internal/orders"
	"storefront-cart/internal/session"
	"storefront-cart/internal/shopping_cart"
	"storefront-cart/internal/storage"
)

const cfgPath = "config/config.yaml"

func main() {
	// init logger
	zapLogger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	logger := zapLogger.Sugar()
	defer func() {
		if err := zapLogger.Sync(); err != nil {
			logger.Warnf("error to sync logger: %v", err)
		}
	}()

	// парсим конфиг
	path := cfgPath
	if p := os.Getenv("CART_CONFIG"); p != "" {
		path = p
	}
	c, err := app.NewConfig(path)
	if err != nil {
		logger.Fatalf("error to parsing config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// init storage
	cartStorage, closeStorage := newStorage(c, logger)
	defer closeStorage()

	// init upstream clients
	httpClient := &http.Client{Timeout: c.Services.Timeout}
	inventoryClient := inventory.NewClient(c.Services.InventoryURL, httpClient, logger)
	catalogClient := catalog.NewClient(c.Services.CatalogURL, httpClient, logger)
	ordersClient := orders.NewClient(c.Services.OrdersURL, httpClient, logger)

	// init kafka
	var producer kafka.EventProducer = kafka.NopProducer{}
	if c.Kafka.Enabled() {
		producer = kafka.NewProducer(c.Kafka.Brokers, c.Kafka.Topic, logger)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warnf("error to close kafka producer: %v", err)
		}
	}()

	// init registry
	registry := shopping_cart.NewRegistry(cartStorage, inventoryClient, logger, shopping_cart.RegistryConfig{
		StockConcurrency:   c.Stock.Concurrency,
		StockLookupTimeout: c.Stock.LookupTimeout,
	})
	defer registry.Close()

	go sweepCarts(ctx, registry, c.Cart, logger)

	if c.Kafka.Enabled() && c.Kafka.Invalidate {
		consumer := kafka.NewConsumer(c.Kafka.Brokers, c.Kafka.Topic, c.Kafka.GroupID, logger)
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Warnf("error to close kafka consumer: %v", err)
			}
		}()
		go consumer.Consume(ctx, registry.InvalidationHandler(c.InstanceID))
	}

	// init handlers
	verifier := session.NewVerifier(c.Secret, logger)
	cartHandlers := handlers.NewShoppingCartHandler(
		logger,
		catalogClient,
		inventoryClient,
		orders.NewCheckout(ordersClient, logger),
		producer,
		c.InstanceID,
	)

	// init router
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Ручки без корзины
	api.HandleFunc("/products", cartHandlers.ListProducts).Methods("GET")

	// Ручки корзины текущей области (X-Cart-ID)
	cartRouter := api.NewRoute().Subrouter()
	cartRouter.Use(middleware.CartScope(registry, logger))

	cartRouter.HandleFunc("/cart", cartHandlers.GetCart).Methods("GET")
	cartRouter.HandleFunc("/cart", cartHandlers.ClearCart).Methods("DELETE")
	cartRouter.HandleFunc("/cart/items", cartHandlers.AddItem).Methods("POST")
	cartRouter.HandleFunc("/cart/items/{productID}", cartHandlers.SetQuantity).Methods("PUT")
	cartRouter.HandleFunc("/cart/items/{productID}", cartHandlers.RemoveItem).Methods("DELETE")
	cartRouter.HandleFunc("/cart/items/{productID}/increment", cartHandlers.Increment).Methods("POST")
	cartRouter.HandleFunc("/cart/items/{productID}/decrement", cartHandlers.Decrement).Methods("POST")
	cartRouter.HandleFunc("/cart/stock/refresh", cartHandlers.RefreshStock).Methods("POST")

	// Ручки требующие авторизации
	authRouter := cartRouter.NewRoute().Subrouter()
	authRouter.Use(middleware.Auth(verifier, logger))

	authRouter.HandleFunc("/cart/checkout", cartHandlers.Checkout).Methods("POST")
	authRouter.HandleFunc("/session/logout", cartHandlers.Logout).Methods("POST")

	logger.Infow("starting server",
		"type", "START",
		"addr", c.ServerPort,
		"instance", c.InstanceID,
		"storage", c.Storage.Driver,
	)

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
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("error to shutdown server: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("can't start server: %v", err)
	}
}

func newStorage(c *app.Config, logger *zap.SugaredLogger) (storage.Storage, func()) {
	switch c.Storage.Driver {
	case app.StoragePostgres:
		db, err := sql.Open("postgres", c.Storage.CfgDB.DSN())
		if err != nil {
			logger.Fatalf("error to database start: %v", err)
		}

		db.SetMaxOpenConns(c.Storage.MaxOpenConns)
		if err := db.Ping(); err != nil {
			logger.Infof("Failed to get response to ping: %v", err)
		}

		return storage.NewPostgresStorage(db, logger), func() { _ = db.Close() }

	case app.StorageMemory:
		logger.Warn("using in-memory cart storage, carts are lost on restart")
		return storage.NewMemoryStorage(), func() {}

	default:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     c.Storage.Redis.Addr,
			Password: c.Storage.Redis.Password,
			DB:       c.Storage.Redis.DB,
		})

		return storage.NewRedisStorage(redisClient, logger, c.Storage.Redis.TTL), func() { _ = redisClient.Close() }
	}
}

func sweepCarts(ctx context.Context, registry *shopping_cart.Registry, cfg app.ConfigCart, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Sweep(cfg.IdleTTL); n > 0 {
				logger.Debugw("idle carts evicted", "count", n, "left", registry.Len())
			}
		}
	}
}
