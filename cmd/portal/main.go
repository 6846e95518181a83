package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/seatback/internal/cache"
	"github.com/therealutkarshpriyadarshi/seatback/internal/catalog"
	"github.com/therealutkarshpriyadarshi/seatback/internal/config"
	"github.com/therealutkarshpriyadarshi/seatback/internal/database"
	"github.com/therealutkarshpriyadarshi/seatback/internal/delivery"
	"github.com/therealutkarshpriyadarshi/seatback/internal/logging"
	"github.com/therealutkarshpriyadarshi/seatback/internal/metrics"
	"github.com/therealutkarshpriyadarshi/seatback/internal/middleware"
	"github.com/therealutkarshpriyadarshi/seatback/internal/probe"
	"github.com/therealutkarshpriyadarshi/seatback/internal/queue"
	"github.com/therealutkarshpriyadarshi/seatback/internal/session"
	"github.com/therealutkarshpriyadarshi/seatback/internal/storage"
	"github.com/therealutkarshpriyadarshi/seatback/internal/store"
	"github.com/therealutkarshpriyadarshi/seatback/internal/tracing"
)

const assetCacheTTL = 5 * time.Minute

// Portal wires the serving side together: catalog reads, session control and
// chunked delivery. Normalization runs in the worker binary, not here.
type Portal struct {
	cfg      *config.Config
	log      *logging.Logger
	repo     *catalog.Repository
	catalog  *catalog.Cached
	cache    *cache.Cache
	storage  *storage.Storage
	queue    *queue.Queue
	db       *database.DB
	sessions *session.Controller
	prober   *probe.Prober
	store    *store.Store
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := catalog.NewRepository(db)

	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// Cache is an accelerator, not a dependency
		log.WithError(err).Warn("Redis unavailable, serving without asset cache")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	stor, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	contentStore, err := store.New(cfg.Pipeline.ContentRoot, cfg.Pipeline.ScratchDir)
	if err != nil {
		log.Fatalf("Failed to open content store: %v", err)
	}

	prober := probe.New(cfg.Pipeline.FFprobePath)
	cached := catalog.NewCached(repo, redisCache, assetCacheTTL, log)
	sessions := session.NewController(cfg.Ads, cfg.Delivery, log)
	deliveryServer := delivery.NewServer(contentStore, cached, sessions, cfg.Delivery, cfg.Ads, log)

	portal := &Portal{
		cfg:      cfg,
		log:      log,
		repo:     repo,
		catalog:  cached,
		cache:    redisCache,
		storage:  stor,
		queue:    q,
		db:       db,
		sessions: sessions,
		prober:   prober,
		store:    contentStore,
	}

	router := setupRouter(portal, deliveryServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Idle session reaper
	go sessions.Run(ctx)

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.ErrorWithErr("Metrics server failed", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Starting portal server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}

func setupRouter(portal *Portal, deliveryServer *delivery.Server) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(portal.log))
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(100, 200)))

	router.GET("/health", portal.healthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/assets", portal.createAsset)
		v1.GET("/assets", portal.listAssets)
		v1.GET("/assets/:id", portal.getAsset)
		v1.PATCH("/assets/:id/status", portal.setAssetStatus)
		v1.POST("/assets/:id/normalize", portal.requestNormalize)
		v1.GET("/assets/:id/original-url", portal.originalURL)
	}

	api := delivery.NewAPI(deliveryServer, portal.sessions, portal.log)
	api.RegisterRoutes(router)

	return router
}
