package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Luffyzera/onde-comprar/internal/cache"
	h "github.com/Luffyzera/onde-comprar/internal/http"
	"github.com/Luffyzera/onde-comprar/internal/publisher"
	"github.com/Luffyzera/onde-comprar/internal/repository"
	"github.com/Luffyzera/onde-comprar/internal/service"
)

type Config struct {
	HTTPPort        string
	MongoURI        string
	MongoDBName     string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "ondecomprar"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    getEnv("KAFKA_BROKERS", "localhost:9092"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	cfg := loadConfig()

	// Set up MongoDB connection
	ctx := context.Background()
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	cartRepo := repository.NewMongoCartRepository(mongoDB)
	productRepo := repository.NewMongoProductRepository(mongoDB)
	storeRepo := repository.NewMongoStoreRepository(mongoDB)
	orderRepo := repository.NewMongoOrderRepository(mongoDB)
	outboxRepo := repository.NewMongoOutboxRepository(mongoDB)

	for _, repo := range []interface{}{cartRepo, productRepo} {
		if idx, ok := repo.(repository.Indexer); ok {
			if err := idx.CreateIndexes(ctx); err != nil {
				log.Fatalf("Failed to create indexes: %v", err)
			}
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	cartCache := cache.NewRedisCartCache(redisClient)
	productCache := cache.NewRedisProductCache(redisClient)

	catalogService := service.NewCatalogService(productRepo, storeRepo, productCache)
	cartService := service.NewCartService(cartRepo, catalogService, cartCache)
	checkoutService := service.NewCheckoutService(cartService, productRepo, orderRepo, outboxRepo)

	cartHandler := h.NewCartHandler(cartService, cfg.RequestTimeout)
	catalogHandler := h.NewCatalogHandler(catalogService, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout)
	merchantHandler := h.NewMerchantHandler(catalogService, checkoutService, cfg.RequestTimeout)

	// Outbox poller publishes order events and expires overdue pickups.
	pollerCtx, pollerCancel := context.WithCancel(ctx)
	defer pollerCancel()
	poller := publisher.NewOutboxPoller(outboxRepo, checkoutService, cfg.KafkaBrokers)
	defer poller.Close()
	go poller.Run(pollerCtx)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Storefront
		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/products/{product_id}", catalogHandler.GetProduct)
		r.Get("/stores", catalogHandler.ListStores)
		r.Get("/stores/{store_id}", catalogHandler.GetStore)
		r.Get("/stores/{store_id}/products", catalogHandler.ListStoreProducts)

		// Customer
		r.Group(func(r chi.Router) {
			r.Use(h.MockAuthMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
				r.Put("/fulfillment", cartHandler.SetFulfillmentMode)
				r.Delete("/", cartHandler.ClearCart)
			})

			r.Post("/checkout", checkoutHandler.Checkout)
			r.Get("/orders", checkoutHandler.ListOrders)
		})

		// Merchant dashboard
		r.Route("/merchant", func(r chi.Router) {
			r.Use(h.MockMerchantAuthMiddleware)

			r.Get("/products", merchantHandler.ListProducts)
			r.Post("/products", merchantHandler.CreateProduct)
			r.Put("/products/{product_id}", merchantHandler.UpdateProduct)
			r.Delete("/products/{product_id}", merchantHandler.DeleteProduct)
			r.Post("/products/import", merchantHandler.ImportProducts)
			r.Put("/delivery-settings", merchantHandler.UpdateDeliverySettings)
			r.Get("/orders", merchantHandler.ListOrders)
			r.Put("/orders/{order_id}/status", merchantHandler.UpdateOrderStatus)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	pollerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Printf("mongo disconnect error: %v", err)
	}

	log.Println("server exited")
}
