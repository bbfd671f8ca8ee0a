package main

import (
	"context"   // context package is needed for Redis operations
	"errors"    // Server shutdown errors
	"fmt"
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Graceful shutdown
	"syscall"
	"time"

	"bank_system/internal/api"        // Custom package for API handlers
	"bank_system/internal/cache"      // Response cache
	"bank_system/internal/config"     // Custom package for configuration
	"bank_system/internal/db"         // Database connection and migrations
	"bank_system/internal/memstore"   // In-memory store
	"bank_system/internal/repository" // Storage contracts
	"bank_system/internal/service"    // Ledger and identity services
	"bank_system/internal/session"    // Session tokens

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Decimal amounts
	"github.com/sirupsen/logrus"    // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	setupLogger(cfg)
	decimal.MarshalJSONWithoutQuotes = true // Amounts are JSON numbers

	ctx := context.Background()
	checks := map[string]api.HealthCheck{}

	// Setup the store
	var store repository.Store
	switch cfg.StoreBackend {
	case config.BackendMemory:
		store = memstore.New()
		logrus.Warn("Using the in-memory store, data is lost on restart")
	default:
		gdb, err := db.Open(cfg)
		if err != nil {
			logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
		}
		if cfg.DBAutoMigrate {
			if err := db.Migrate(gdb); err != nil {
				logrus.Fatalf("failed to migrate DB: %v", err)
			}
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			logrus.Fatalf("failed to get DB handle: %v", err)
		}
		defer sqlDB.Close()
		checks["database"] = sqlDB.PingContext
		store = db.NewStore(gdb)
	}

	// Setup Redis, falling back to process-local sessions without a cache
	var registry session.Registry = session.NewMemoryRegistry()
	responseCache := localCache(cfg)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		registry = session.NewRedisRegistry(redisClient)
		responseCache = cache.NewRedis(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logrus.WithField("cache", fmt.Sprintf("%T", responseCache)).Warn("REDIS_ADDR not set, sessions and cached responses are kept in memory")
	}

	identity := service.NewIdentity(store, nil)
	ledger := service.NewLedger(store, service.WithCache(responseCache, cfg.CacheTTL))
	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, registry)

	if cfg.SeedDemo {
		if err := service.SeedDemo(ctx, identity, ledger); err != nil {
			logrus.Fatalf("failed to seed demo users: %v", err)
		}
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := api.NewRouter(api.Deps{
		Identity:     identity,
		Ledger:       ledger,
		Sessions:     sessions,
		CookieSecure: cfg.CookieSecure,
		HealthChecks: checks,
	})

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("graceful shutdown failed: %v", err)
	}
}

// setupLogger configures the global logrus logger
func setupLogger(cfg *config.Config) {
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// localCache is the response cache used without Redis: process-local for the
// single-node in-memory store, none for SQL stores shared by several replicas.
func localCache(cfg *config.Config) cache.Cache {
	if cfg.StoreBackend == config.BackendMemory {
		return cache.NewMemory()
	}
	return cache.Nop{}
}
