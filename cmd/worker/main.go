package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/therealutkarshpriyadarshi/seatback/internal/cache"
	"github.com/therealutkarshpriyadarshi/seatback/internal/catalog"
	"github.com/therealutkarshpriyadarshi/seatback/internal/config"
	"github.com/therealutkarshpriyadarshi/seatback/internal/database"
	"github.com/therealutkarshpriyadarshi/seatback/internal/logging"
	"github.com/therealutkarshpriyadarshi/seatback/internal/probe"
	"github.com/therealutkarshpriyadarshi/seatback/internal/queue"
	"github.com/therealutkarshpriyadarshi/seatback/internal/storage"
	"github.com/therealutkarshpriyadarshi/seatback/internal/store"
	"github.com/therealutkarshpriyadarshi/seatback/internal/tracing"
	"github.com/therealutkarshpriyadarshi/seatback/internal/transcode"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

// Worker consumes normalization jobs: it stages originals from object
// storage into the content root, runs the conversion and refreshes the
// catalog record.
type Worker struct {
	cfg          *config.Config
	log          *logging.Logger
	repo         *catalog.Repository
	storage      *storage.Storage
	store        *store.Store
	orchestrator *transcode.Orchestrator
	cache        *cache.Cache
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
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName+"-worker", cfg.Tracing.JaegerEndpoint)
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

	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache invalidation")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	tool := transcode.NewTool(cfg.Pipeline.FFmpegPath)
	prober := probe.New(cfg.Pipeline.FFprobePath)
	orchestrator := transcode.NewOrchestrator(tool, contentStore, prober, repo, log)

	worker := &Worker{
		cfg:          cfg,
		log:          log,
		repo:         repo,
		storage:      stor,
		store:        contentStore,
		orchestrator: orchestrator,
		cache:        redisCache,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down worker gracefully...")
		cancel()
	}()

	log.Info("Worker started, waiting for jobs...")
	done, err := q.ConsumeJobs(ctx, worker.processJob)
	if err != nil {
		log.Fatalf("Failed to consume jobs: %v", err)
	}

	<-ctx.Done()
	// Cancellation has reached the in-flight job's context by now; wait for
	// its handler to return so the conversion tool is terminated, not orphaned
	<-done
	log.Info("Worker stopped")
}

// processJob runs one normalization job end to end. A non-nil return requeues
// the message, so deterministic failures are logged and swallowed instead.
// The job context derives from the worker's, so shutdown cancels a running
// conversion rather than abandoning it.
func (w *Worker) processJob(ctx context.Context, job *models.TranscodeJob) error {
	log := w.log.WithJobID(job.ID).WithAssetID(job.AssetID)
	log.Info("Processing normalization job")

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Pipeline.TranscodeTimeout)
	defer cancel()

	asset, err := w.repo.GetAsset(ctx, job.AssetID)
	if err != nil {
		if errors.Is(err, catalog.ErrAssetNotFound) {
			log.Warn("Job references unknown asset, dropping")
			return nil
		}
		return err
	}

	if job.ObjectKey != "" {
		if err := w.stageOriginal(ctx, job.ObjectKey, asset.Path); err != nil {
			return err
		}
	}

	result, err := w.orchestrator.Transcode(ctx, asset.Path)
	if err != nil {
		// A shutdown interruption says nothing about the input; requeue it
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Warn("Normalization interrupted by shutdown, requeueing")
			return err
		}
		if errors.Is(err, transcode.ErrTranscodeFailed) || errors.Is(err, store.ErrNotFound) {
			// Retrying an input the tool rejects would loop forever
			log.ErrorWithErr("Normalization failed permanently, dropping job", err)
			return nil
		}
		log.ErrorWithErr("Normalization failed, requeueing", err)
		return err
	}

	if w.cache != nil {
		_ = w.cache.DeleteAsset(ctx, asset.ID)
		_ = w.cache.DeleteMediaInfo(ctx, asset.Path)
		if result.Info != nil {
			_ = w.cache.SetMediaInfo(ctx, asset.Path, result.Info, 0)
		}
	}

	log.Info("Normalization job completed")
	return nil
}

// stageOriginal fetches the original from object storage and installs it at
// the asset's content path with the same old-or-new guarantee conversions
// get: a download error never leaves a partial file behind.
func (w *Worker) stageOriginal(ctx context.Context, objectKey, relPath string) error {
	abs, err := w.store.Resolve(relPath)
	if err != nil {
		return err
	}

	if err := w.store.EnsureScratch(); err != nil {
		return err
	}

	tmp := w.store.ScratchPath("stage-" + filepath.Base(objectKey))
	defer os.Remove(tmp)

	if err := w.storage.DownloadOriginalToFile(ctx, objectKey, tmp); err != nil {
		return fmt.Errorf("failed to stage original %s: %w", objectKey, err)
	}

	if err := w.store.ReplaceFromFile(abs, tmp); err != nil {
		return fmt.Errorf("failed to install original at %s: %w", relPath, err)
	}

	return nil
}
