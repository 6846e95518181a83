package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/seatback/internal/config"
	"github.com/therealutkarshpriyadarshi/seatback/internal/logging"
	"github.com/therealutkarshpriyadarshi/seatback/internal/metrics"
	"github.com/therealutkarshpriyadarshi/seatback/internal/session"
	"github.com/therealutkarshpriyadarshi/seatback/internal/store"
	"github.com/therealutkarshpriyadarshi/seatback/internal/tracing"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

// ErrAssetNotServable is returned when delivery is requested for an asset
// whose status is inactive or whose file is not present. It is terminal for
// the request, never for other sessions or assets.
var ErrAssetNotServable = errors.New("asset not servable")

// Catalog is the read-only slice of the asset catalog delivery consults.
// Status writes belong to the admin layer; delivery only honors them.
type Catalog interface {
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
}

// Chunk is one bounded-size slice of bytes handed to a client. When Ad is
// set, Start/End/Total address the advertisement asset, not the content; the
// client's content offset is untouched by the insertion.
type Chunk struct {
	Data  []byte
	Start int64
	End   int64
	Total int64
	Ad    bool
}

// Server serves range-addressed byte chunks of content assets, splicing in
// advertisement bytes whenever the session's state machine calls for a break.
type Server struct {
	store     *store.Store
	catalog   Catalog
	sessions  *session.Controller
	chunkSize int64
	adPath    string
	log       *logging.Logger
}

// NewServer creates a delivery server.
func NewServer(st *store.Store, catalog Catalog, sessions *session.Controller, cfg config.DeliveryConfig, ads config.AdsConfig, log *logging.Logger) *Server {
	return &Server{
		store:     st,
		catalog:   catalog,
		sessions:  sessions,
		chunkSize: cfg.ChunkSize,
		adPath:    ads.AssetPath,
		log:       log,
	}
}

// ServeRange returns the inclusive byte range [start, end] of the session's
// asset, capped at the configured chunk size; callers issue further range
// requests to continue. Arbitrary start offsets are honored so a client that
// reconnects mid-asset resumes where it left off, and a negative start asks
// for the file's final -start bytes. If the session is inside
// an ad break, advertisement bytes are substituted instead and the content
// offset is left alone.
func (s *Server) ServeRange(ctx context.Context, sessionID string, start, end int64) (*Chunk, error) {
	span, ctx := tracing.StartSpan(ctx, "delivery.serve_range")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "session.id", sessionID)

	began := time.Now()

	assetID, err := s.sessions.AssetID(sessionID)
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}

	asset, err := s.catalog.GetAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", assetID, ErrAssetNotServable)
	}
	if !asset.IsServable() {
		return nil, fmt.Errorf("asset %s is %s: %w", assetID, asset.Status, ErrAssetNotServable)
	}

	abs, err := s.store.Resolve(asset.Path)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", assetID, ErrAssetNotServable)
	}
	// The atomic replace discipline means the file either exists complete or
	// not at all; a missing file is not servable, never torn
	if !s.store.Exists(abs) {
		return nil, fmt.Errorf("asset %s file missing: %w", assetID, ErrAssetNotServable)
	}

	state, err := s.sessions.State(sessionID)
	if err != nil {
		return nil, err
	}

	// The ad decision takes precedence at a chunk boundary; content never
	// interleaves with a partially started break
	if state == session.StateAdPending {
		if _, err := s.sessions.BeginAd(sessionID); err != nil {
			return nil, err
		}
		state = session.StateAdPlaying
	}

	var chunk *Chunk
	if state == session.StateAdPlaying {
		chunk, err = s.serveAd(sessionID)
	} else {
		chunk, err = s.serveContent(sessionID, abs, start, end)
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordChunkServed(chunk.Ad, int64(len(chunk.Data)))
	s.log.LogChunkServed(sessionID, assetID, chunk.Start, chunk.End, chunk.Ad, time.Since(began))
	return chunk, nil
}

// serveContent reads main-content bytes, clamped to the chunk size. A
// negative start addresses the final -start bytes of the file (the suffix
// form of a range request); the chunk cap still applies.
func (s *Server) serveContent(sessionID, abs string, start, end int64) (*Chunk, error) {
	if start < 0 {
		size, err := s.store.Size(abs)
		if err != nil {
			return nil, err
		}
		start += size
		if start < 0 {
			start = 0
		}
		end = -1
	}

	// Subtraction instead of end-start+1 so an end near MaxInt64 cannot wrap
	// negative and slip past the cap
	if end < 0 || end-start >= s.chunkSize {
		end = start + s.chunkSize - 1
	}

	data, total, err := s.store.ReadRange(abs, start, end)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Touch(sessionID); err != nil {
		return nil, err
	}

	return &Chunk{
		Data:  data,
		Start: start,
		End:   start + int64(len(data)) - 1,
		Total: total,
	}, nil
}

// serveAd substitutes the next slice of the advertisement asset. When its
// final byte has been delivered the break ends and the session returns to
// Playing; the following request resumes content from the client's own
// offset.
func (s *Server) serveAd(sessionID string) (*Chunk, error) {
	adAbs, err := s.store.Resolve(s.adPath)
	if err != nil || !s.store.Exists(adAbs) {
		// A portal misconfigured without its ad asset should not strand the
		// viewer inside a break that can never finish
		s.log.WithSessionID(sessionID).Warn("ad asset unavailable, ending break")
		if err := s.sessions.EndAd(sessionID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("ad asset %s: %w", s.adPath, ErrAssetNotServable)
	}

	offset, err := s.sessions.AdOffset(sessionID)
	if err != nil {
		return nil, err
	}

	data, total, err := s.store.ReadRange(adAbs, offset, offset+s.chunkSize-1)
	if err != nil {
		return nil, err
	}

	delivered, err := s.sessions.AdProgress(sessionID, int64(len(data)))
	if err != nil {
		return nil, err
	}

	if delivered >= total {
		if err := s.sessions.EndAd(sessionID); err != nil {
			return nil, err
		}
		metrics.AdBreaksCompleted.Inc()
	}

	return &Chunk{
		Data:  data,
		Start: offset,
		End:   offset + int64(len(data)) - 1,
		Total: total,
		Ad:    true,
	}, nil
}

// ChunkSize returns the configured maximum chunk size.
func (s *Server) ChunkSize() int64 {
	return s.chunkSize
}
