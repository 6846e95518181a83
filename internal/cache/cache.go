package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/therealutkarshpriyadarshi/seatback/internal/metrics"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Asset Cache Operations

// SetAsset caches an asset record
func (c *Cache) SetAsset(ctx context.Context, asset *models.Asset, ttl time.Duration) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}

	key := fmt.Sprintf("asset:%s", asset.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetAsset retrieves an asset from cache; a nil asset with nil error is a miss
func (c *Cache) GetAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	key := fmt.Sprintf("asset:%s", assetID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.RecordCacheAccess("asset", false)
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get asset from cache: %w", err)
	}

	var asset models.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}

	metrics.RecordCacheAccess("asset", true)
	return &asset, nil
}

// DeleteAsset removes an asset from cache. Status flips and media refreshes
// must invalidate so delivery never serves a stale record past the TTL.
func (c *Cache) DeleteAsset(ctx context.Context, assetID string) error {
	key := fmt.Sprintf("asset:%s", assetID)
	return c.client.Del(ctx, key).Err()
}

// Media Info Cache Operations

// SetMediaInfo caches probe results keyed by the asset's content path
func (c *Cache) SetMediaInfo(ctx context.Context, relPath string, info *models.MediaInfo, ttl time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal media info: %w", err)
	}

	key := fmt.Sprintf("mediainfo:%s", relPath)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetMediaInfo retrieves cached probe results; a nil result is a miss
func (c *Cache) GetMediaInfo(ctx context.Context, relPath string) (*models.MediaInfo, error) {
	key := fmt.Sprintf("mediainfo:%s", relPath)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.RecordCacheAccess("mediainfo", false)
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get media info from cache: %w", err)
	}

	var info models.MediaInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal media info: %w", err)
	}

	metrics.RecordCacheAccess("mediainfo", true)
	return &info, nil
}

// DeleteMediaInfo removes cached probe results after a file is replaced
func (c *Cache) DeleteMediaInfo(ctx context.Context, relPath string) error {
	key := fmt.Sprintf("mediainfo:%s", relPath)
	return c.client.Del(ctx, key).Err()
}

// Job Cache Operations

// SetJob caches a normalization job for status queries
func (c *Cache) SetJob(ctx context.Context, job *models.TranscodeJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	key := fmt.Sprintf("job:%s", job.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetJob retrieves a job from cache; a nil job with nil error is a miss
func (c *Cache) GetJob(ctx context.Context, jobID string) (*models.TranscodeJob, error) {
	key := fmt.Sprintf("job:%s", jobID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get job from cache: %w", err)
	}

	var job models.TranscodeJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// DeleteJob removes a job from cache
func (c *Cache) DeleteJob(ctx context.Context, jobID string) error {
	key := fmt.Sprintf("job:%s", jobID)
	return c.client.Del(ctx, key).Err()
}
