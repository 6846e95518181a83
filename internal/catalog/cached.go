package catalog

import (
	"context"
	"time"

	"github.com/therealutkarshpriyadarshi/seatback/internal/cache"
	"github.com/therealutkarshpriyadarshi/seatback/internal/logging"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

// Cached layers the Redis cache over the repository for the read path that
// delivery hammers on every chunk request. Writes go through the repository
// directly and invalidate here.
type Cached struct {
	repo  *Repository
	cache *cache.Cache
	ttl   time.Duration
	log   *logging.Logger
}

// NewCached creates a cached catalog reader.
func NewCached(repo *Repository, c *cache.Cache, ttl time.Duration, log *logging.Logger) *Cached {
	return &Cached{
		repo:  repo,
		cache: c,
		ttl:   ttl,
		log:   log,
	}
}

// GetAsset returns the asset from cache when present, falling back to the
// repository and populating the cache on a miss. A cache outage degrades to
// repository reads, it never fails the request.
func (c *Cached) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	if c.cache != nil {
		asset, err := c.cache.GetAsset(ctx, id)
		if err != nil {
			c.log.WithError(err).WithAssetID(id).Warn("asset cache read failed")
		} else if asset != nil {
			return asset, nil
		}
	}

	asset, err := c.repo.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetAsset(ctx, asset, c.ttl); err != nil {
			c.log.WithError(err).WithAssetID(id).Warn("asset cache write failed")
		}
	}

	return asset, nil
}

// Invalidate drops the cached copy after a status flip or media refresh.
func (c *Cached) Invalidate(ctx context.Context, id string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.DeleteAsset(ctx, id); err != nil {
		c.log.WithError(err).WithAssetID(id).Warn("asset cache invalidation failed")
	}
}
