package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"catalogo-sync-api/internal/cache"
	"catalogo-sync-api/internal/config"
	"catalogo-sync-api/internal/engine"
	"catalogo-sync-api/internal/events"
	"catalogo-sync-api/internal/handler"
	"catalogo-sync-api/internal/inventory"
	"catalogo-sync-api/internal/middleware"
	"catalogo-sync-api/internal/remote"
	"catalogo-sync-api/internal/repository"
	"catalogo-sync-api/internal/router"
	"catalogo-sync-api/internal/staging"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting catalogo-sync-api...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize staging repository based on config
	var stagingRepo repository.StagingRepository
	switch cfg.Staging.DBType {
	case "postgres", "postgresql":
		pgRepo, err := repository.NewPostgresStagingRepository(cfg.Staging.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		defer pgRepo.Close()
		stagingRepo = pgRepo
		log.Println("PostgreSQL staging repository initialized")
	case "mysql":
		myRepo, err := repository.NewMySQLStagingRepository(cfg.Staging.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		defer myRepo.Close()
		stagingRepo = myRepo
		log.Println("MySQL staging repository initialized")
	default: // sqlite
		sqliteRepo, err := repository.NewSQLiteStagingRepository(cfg.Staging.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		defer sqliteRepo.Close()
		stagingRepo = sqliteRepo
		log.Println("SQLite staging repository initialized")
	}

	// Initialize blob store for staged images
	blobs, err := staging.NewBlobStore(cfg.Staging.BlobDir)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	// Initialize cache based on config
	var inventoryCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Redis cache: %v", err)
		}
		defer redisCache.Close()
		inventoryCache = redisCache
		log.Println("Redis cache initialized")
	default: // memory
		memCache := cache.NewMemoryCache()
		defer memCache.Stop()
		inventoryCache = memCache
		log.Println("Memory cache initialized")
	}

	// Initialize remote catalog store
	remoteClient := remote.NewGitHubClient(cfg.Remote)

	// Initialize inventory client and reconciler
	inventoryClient := inventory.NewClient(cfg.Inventory, inventoryCache, cfg.Cache.TTL)
	reconciler := inventory.NewReconciler(inventory.ReconcilerConfig{
		Client:      inventoryClient,
		Repository:  stagingRepo,
		BatchSize:   cfg.Inventory.BatchSize,
		SoftTimeout: cfg.Inventory.SoftTimeout,
		MaxRetries:  cfg.Inventory.MaxRetries,
		BackoffBase: cfg.Inventory.BackoffBase,
	})

	// Initialize lifecycle event publisher
	var publisher events.Publisher
	switch cfg.Events.Type {
	case "kafka":
		kafkaPublisher := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Println("Kafka event publisher initialized")
	default:
		publisher = events.NewLogPublisher()
	}

	// The staging store probes catalog ids held by the engine; the engine
	// applies changes captured by the staging store. Break the cycle with
	// a late-bound closure.
	var syncEngine *engine.Engine

	stagingStore := staging.NewStore(staging.Config{
		Repository: stagingRepo,
		Blobs:      blobs,
		CatalogIDs: func(ctx context.Context) []string {
			if syncEngine == nil {
				return nil
			}
			return syncEngine.CatalogIDs(ctx)
		},
	})

	syncEngine = engine.New(engine.Config{
		Remote:       remoteClient,
		Staging:      stagingStore,
		Reconciler:   reconciler,
		Publisher:    publisher,
		DocumentPath: cfg.Remote.DocumentPath,
	})

	// Warm the catalog snapshot; failure is not fatal, the first request
	// retries.
	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout)
	if _, err := syncEngine.LoadCatalog(startCtx); err != nil {
		log.Printf("Warning: initial catalog load failed: %v", err)
	}
	startCancel()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(cfg.App.Version)
	stagedHandler := handler.NewStagedHandler(stagingStore, reconciler)
	catalogHandler := handler.NewCatalogHandler(syncEngine)
	inventoryHandler := handler.NewInventoryHandler(inventoryClient, reconciler)

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		LoginKey: cfg.App.LoginKey,
	})

	// Create router
	r := router.New(router.Config{
		HealthHandler:    healthHandler,
		StagedHandler:    stagedHandler,
		CatalogHandler:   catalogHandler,
		InventoryHandler: inventoryHandler,
		AuthMiddleware:   authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
