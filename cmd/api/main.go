package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/developerashishcanada/carpoolreact/internal/api/handlers"
	"github.com/developerashishcanada/carpoolreact/internal/api/routes"
	"github.com/developerashishcanada/carpoolreact/internal/config"
	"github.com/developerashishcanada/carpoolreact/internal/events"
	"github.com/developerashishcanada/carpoolreact/internal/identity"
	"github.com/developerashishcanada/carpoolreact/internal/live"
	"github.com/developerashishcanada/carpoolreact/internal/service/marketplace"
	"github.com/developerashishcanada/carpoolreact/internal/service/pricing"
	"github.com/developerashishcanada/carpoolreact/internal/store"
	"github.com/developerashishcanada/carpoolreact/internal/store/firestore"
	"github.com/developerashishcanada/carpoolreact/internal/store/memory"
	"github.com/developerashishcanada/carpoolreact/internal/store/postgres"
	"github.com/developerashishcanada/carpoolreact/pkg/cache"
	"github.com/developerashishcanada/carpoolreact/pkg/database"
	"github.com/developerashishcanada/carpoolreact/pkg/firebaseapp"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
	"github.com/developerashishcanada/carpoolreact/pkg/monitoring"
	"github.com/developerashishcanada/carpoolreact/pkg/textgen"
	"github.com/developerashishcanada/carpoolreact/pkg/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Carpool Marketplace",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
		logger.String("store", cfg.Store.Backend),
		logger.String("app_id", cfg.Store.AppID),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized successfully",
			logger.String("app_name", cfg.NewRelic.AppName),
			logger.Bool("enabled", true))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Initialize Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cache.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			PoolSize:    cfg.Redis.PoolSize,
			MinIdleConn: cfg.Redis.MinIdleConn,
			DialTimeout: cfg.Redis.DialTimeout,
			ReadTimeout: cfg.Redis.ReadTimeout,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
		}
		defer cache.Close(redisClient)
		appLogger.Info("Connected to Redis successfully")
	}

	// Firebase backs both the firestore store and ID token verification
	var fbApp *firebase.App
	if cfg.Store.Backend == config.BackendFirestore || cfg.Identity.Provider == config.IdentityFirebase {
		fbApp, err = firebaseapp.New(ctx, firebaseapp.Config{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsPath: cfg.Firebase.CredentialsPath,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Firebase", logger.Err(err))
		}
	}

	// Initialize document store
	var (
		docStore   store.Store
		postgresDB *sql.DB
	)
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		dbCfg := database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.Name,
			SSLMode:     cfg.Database.SSLMode,
			MaxConns:    cfg.Database.MaxConnections,
			MaxIdle:     cfg.Database.MaxIdleConns,
			MaxLifetime: cfg.Database.MaxLifetime,

			Instrumented: nrApp.IsEnabled(),
		}
		postgresDB, err = database.NewPostgresDB(ctx, dbCfg)
		if err != nil {
			appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
		}
		defer postgresDB.Close()

		docStore, err = postgres.New(ctx, postgresDB, dbCfg.DSN(), cfg.Store.AppID, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize PostgreSQL store", logger.Err(err))
		}
		appLogger.Info("Connected to PostgreSQL successfully")
	case config.BackendFirestore:
		fsClient, err := fbApp.Firestore(ctx)
		if err != nil {
			appLogger.Fatal("Failed to connect to Firestore", logger.Err(err))
		}
		docStore = firestore.New(fsClient, cfg.Store.AppID, appLogger)
		appLogger.Info("Connected to Firestore successfully")
	default:
		docStore = memory.New(cfg.Store.AppID)
		appLogger.Warn("Using in-memory store; data is lost on restart")
	}
	defer docStore.Close()

	// Initialize identity provider
	var (
		provider identity.Provider
		signer   identity.AnonymousSigner
	)
	switch cfg.Identity.Provider {
	case config.IdentityFirebase:
		authClient, err := fbApp.Auth(ctx)
		if err != nil {
			appLogger.Fatal("Failed to initialize Firebase auth", logger.Err(err))
		}
		provider = identity.NewFirebaseProvider(authClient)
	default:
		jwtProvider := identity.NewJWTProvider(cfg.JWT.Secret, cfg.JWT.Expiry)
		provider = jwtProvider
		signer = jwtProvider
	}

	// Initialize event publisher
	var publisher events.Publisher = events.NewLogPublisher(appLogger)
	if cfg.Events.Enabled {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Exchange, appLogger)
		if err != nil {
			appLogger.Warn("Failed to connect to RabbitMQ, logging events instead", logger.Err(err))
		} else {
			publisher = amqpPublisher
		}
	}
	defer publisher.Close()

	// Initialize suggestions
	var suggester marketplace.Suggester
	if cfg.Features.EnablePriceSuggestions {
		suggester = pricing.NewService(
			textgen.New(textgen.Config{
				Endpoint: cfg.TextGen.Endpoint,
				APIKey:   cfg.TextGen.APIKey,
				Model:    cfg.TextGen.Model,
				Timeout:  cfg.TextGen.Timeout,
			}),
			redisClient,
			appLogger.Named("pricing"),
			pricing.Config{
				MinSuggestion: decimal.NewFromFloat(cfg.Pricing.MinSuggestion),
				MaxSuggestion: decimal.NewFromFloat(cfg.Pricing.MaxSuggestion),
				CacheTTL:      cfg.Cache.TTLPriceSuggestion,
			},
		)
	}

	svc := marketplace.NewService(docStore, suggester, publisher, nrApp, appLogger)

	// Initialize WebSocket hub
	var hub *websocket.Hub
	if cfg.Features.EnableRealTimeUpdates {
		topics := live.NewTopics(docStore, svc, nrApp, appLogger)
		hub = websocket.NewHub(topics, websocket.Config{
			ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
			WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
			HeartbeatInterval: cfg.WebSocket.HeartbeatInterval,
		}, appLogger)
		go hub.Run(ctx)
	}

	// Initialize handlers with dependencies
	h := handlers.NewHandlers(svc, signer, hub, appLogger)

	var chatLimiter *cache.RateLimiter
	if redisClient != nil {
		chatLimiter = cache.NewRateLimiter(redisClient, "ratelimit:chat", cfg.RateLimit.ChatMessagesPerMinute, time.Minute)
	}

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Setup all routes
	var nrApplication *newrelic.Application
	if nrApp.IsEnabled() {
		nrApplication = nrApp.Application
	}
	routes.SetupRoutes(router, h, routes.Options{
		NewRelic:       nrApplication,
		Provider:       provider,
		Redis:          redisClient,
		IdempotencyTTL: cfg.Cache.TTLIdempotency,
		ChatLimiter:    chatLimiter,
	})
	appLogger.Info("Routes configured successfully")

	if nrApp.IsEnabled() {
		go reportPoolStats(ctx, nrApp, postgresDB, redisClient)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Closes websocket clients and store listeners
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}

// reportPoolStats pushes connection pool metrics to New Relic once a minute
func reportPoolStats(ctx context.Context, nr *monitoring.NewRelicApp, db *sql.DB, rdb *redis.Client) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if db != nil {
				nr.RecordDatabasePoolStats(database.PoolStats(db))
			}
			if rdb != nil {
				nr.RecordRedisPoolStats(cache.GetClientStats(rdb))
			}
		}
	}
}
