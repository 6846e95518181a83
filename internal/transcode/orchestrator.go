package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/seatback/internal/logging"
	"github.com/therealutkarshpriyadarshi/seatback/internal/metrics"
	"github.com/therealutkarshpriyadarshi/seatback/internal/probe"
	"github.com/therealutkarshpriyadarshi/seatback/internal/store"
	"github.com/therealutkarshpriyadarshi/seatback/internal/tracing"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

var (
	// ErrJobInProgress is returned when a transcode is already in flight for
	// the same source path. Duplicate requests are rejected, not queued.
	ErrJobInProgress = errors.New("transcode already in progress for source path")

	// ErrTranscodeFailed is returned when the codec tool exits nonzero or
	// produces no usable output. The original asset file is preserved.
	ErrTranscodeFailed = errors.New("transcode failed")
)

// Catalog is the slice of the asset catalog the orchestrator needs: it
// refreshes media facts on the existing record, it never creates assets.
type Catalog interface {
	GetAssetByPath(ctx context.Context, relPath string) (*models.Asset, error)
	UpdateAssetMedia(ctx context.Context, assetID string, info *models.MediaInfo) error
}

// Result describes a finished conversion.
type Result struct {
	Info *models.MediaInfo
	Log  string
}

// Orchestrator drives the external codec tool against source files and
// commits successful conversions through the store's atomic replace. At most
// one job per resolved source path is in flight at a time; the lock's key is
// the logical asset path, not an OS handle.
type Orchestrator struct {
	tool    *Tool
	store   *store.Store
	prober  *probe.Prober
	catalog Catalog
	log     *logging.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(tool *Tool, st *store.Store, prober *probe.Prober, catalog Catalog, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		tool:     tool,
		store:    st,
		prober:   prober,
		catalog:  catalog,
		log:      log,
		inflight: make(map[string]struct{}),
	}
}

// Transcode normalizes the asset stored at relPath. Re-running on an
// already-converted asset simply re-encodes it. Readers of the asset file
// never observe a half-converted state: the old bytes stay servable until
// the new file is renamed into place.
func (o *Orchestrator) Transcode(ctx context.Context, relPath string) (*Result, error) {
	span, ctx := tracing.StartSpan(ctx, "transcode.normalize")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "source.path", relPath)

	began := time.Now()

	abs, err := o.store.Resolve(relPath)
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}

	if !o.store.Exists(abs) {
		return nil, fmt.Errorf("source %s: %w", relPath, store.ErrNotFound)
	}

	if !o.acquire(abs) {
		return nil, fmt.Errorf("%s: %w", relPath, ErrJobInProgress)
	}
	defer o.release(abs)

	metrics.TranscodesInProgress.Inc()
	defer metrics.TranscodesInProgress.Dec()

	if err := o.store.EnsureScratch(); err != nil {
		return nil, err
	}

	out := o.store.ScratchPath(uuid.New().String() + ".mp4")
	defer os.Remove(out)

	diag, err := o.tool.Normalize(ctx, abs, out)
	if err != nil {
		tracing.LogError(span, err)
		metrics.RecordTranscodeCompleted("failed", time.Since(began).Seconds())
		return nil, fmt.Errorf("%w: %v (tool output: %s)", ErrTranscodeFailed, err, diag)
	}

	// Zero exit status alone is not success; the output must exist and be
	// non-empty before the original is ever touched
	fi, err := os.Stat(out)
	if err != nil || fi.Size() == 0 {
		metrics.RecordTranscodeCompleted("failed", time.Since(began).Seconds())
		return nil, fmt.Errorf("%w: tool produced no output (tool output: %s)", ErrTranscodeFailed, diag)
	}

	if err := o.store.ReplaceFromFile(abs, out); err != nil {
		metrics.RecordTranscodeCompleted("failed", time.Since(began).Seconds())
		return nil, fmt.Errorf("failed to commit conversion for %s: %w", relPath, err)
	}

	metrics.RecordTranscodeCompleted("completed", time.Since(began).Seconds())

	result := &Result{Log: diag}

	info, err := o.prober.Probe(ctx, abs)
	if err != nil {
		// The commit stands; the asset just keeps unknown media facts
		o.log.WithError(err).WithField("path", relPath).Warn("probe after commit failed")
		return result, nil
	}
	result.Info = info

	if err := o.refreshCatalog(ctx, relPath, info); err != nil {
		return nil, err
	}

	return result, nil
}

// refreshCatalog persists refreshed media facts onto the existing asset
// record. An asset missing from the catalog is not fatal to the conversion;
// ingest of brand-new files runs before any record exists.
func (o *Orchestrator) refreshCatalog(ctx context.Context, relPath string, info *models.MediaInfo) error {
	if o.catalog == nil {
		return nil
	}

	asset, err := o.catalog.GetAssetByPath(ctx, relPath)
	if err != nil {
		o.log.WithError(err).WithField("path", relPath).Warn("no catalog record to refresh")
		return nil
	}

	if err := o.catalog.UpdateAssetMedia(ctx, asset.ID, info); err != nil {
		return fmt.Errorf("failed to update asset media info: %w", err)
	}

	o.log.LogTranscodeEvent(asset.ID, "media_refresh", "completed", map[string]interface{}{
		"codec":    info.Codec,
		"duration": info.Duration,
	})

	return nil
}

// acquire claims the in-flight marker for a resolved source path.
func (o *Orchestrator) acquire(abs string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inflight[abs]; busy {
		return false
	}
	o.inflight[abs] = struct{}{}
	return true
}

// release frees the in-flight marker.
func (o *Orchestrator) release(abs string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, abs)
}

// busy reports whether a job is in flight for the resolved path.
func (o *Orchestrator) busy(abs string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[abs]
	return ok
}
