package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCache_AssetOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	asset := &models.Asset{
		ID:       "test-asset-1",
		Path:     "movies/test.mp4",
		Kind:     models.AssetKindMovie,
		Status:   models.AssetStatusActive,
		Size:     1024,
		Duration: 60.0,
		Width:    1920,
		Height:   1080,
	}

	if err := cache.SetAsset(ctx, asset, 5*time.Minute); err != nil {
		t.Fatalf("SetAsset failed: %v", err)
	}

	retrieved, err := cache.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Retrieved asset should not be nil")
	}
	if retrieved.ID != asset.ID {
		t.Errorf("Expected ID %s, got %s", asset.ID, retrieved.ID)
	}
	if retrieved.Path != asset.Path {
		t.Errorf("Expected path %s, got %s", asset.Path, retrieved.Path)
	}

	if err := cache.DeleteAsset(ctx, asset.ID); err != nil {
		t.Fatalf("DeleteAsset failed: %v", err)
	}

	retrieved, err = cache.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset after delete failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Expected cache miss after delete")
	}
}

func TestCache_AssetMiss(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	retrieved, err := cache.GetAsset(context.Background(), "no-such-asset")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Expected nil asset on cache miss")
	}
}

func TestCache_MediaInfoOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	info := &models.MediaInfo{
		Container: "mov,mp4,m4a,3gp,3g2,mj2",
		Codec:     "h264",
		Width:     1280,
		Height:    720,
		Duration:  120.5,
		Bitrate:   2500000,
		Size:      4096,
		MIMEType:  "video/mp4",
		Probed:    true,
	}

	if err := cache.SetMediaInfo(ctx, "movies/test.mp4", info, time.Minute); err != nil {
		t.Fatalf("SetMediaInfo failed: %v", err)
	}

	retrieved, err := cache.GetMediaInfo(ctx, "movies/test.mp4")
	if err != nil {
		t.Fatalf("GetMediaInfo failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Retrieved media info should not be nil")
	}
	if retrieved.Codec != info.Codec {
		t.Errorf("Expected codec %s, got %s", info.Codec, retrieved.Codec)
	}
	if !retrieved.Probed {
		t.Error("Expected probed flag to survive the round trip")
	}

	if err := cache.DeleteMediaInfo(ctx, "movies/test.mp4"); err != nil {
		t.Fatalf("DeleteMediaInfo failed: %v", err)
	}

	retrieved, err = cache.GetMediaInfo(ctx, "movies/test.mp4")
	if err != nil {
		t.Fatalf("GetMediaInfo after delete failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Expected cache miss after delete")
	}
}

func TestCache_MediaInfoExpiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	info := &models.MediaInfo{Codec: "h264", Probed: true}
	if err := cache.SetMediaInfo(ctx, "movies/ttl.mp4", info, time.Minute); err != nil {
		t.Fatalf("SetMediaInfo failed: %v", err)
	}

	// miniredis advances TTLs manually
	mr.FastForward(2 * time.Minute)

	retrieved, err := cache.GetMediaInfo(ctx, "movies/ttl.mp4")
	if err != nil {
		t.Fatalf("GetMediaInfo failed: %v", err)
	}
	if retrieved != nil {
		t.Error("Expected cache miss after TTL expiry")
	}
}

func TestCache_JobOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	job := &models.TranscodeJob{
		ID:        "job-1",
		AssetID:   "asset-1",
		ObjectKey: "originals/test.mov",
		Priority:  models.JobPriorityNormal,
	}

	if err := cache.SetJob(ctx, job, time.Minute); err != nil {
		t.Fatalf("SetJob failed: %v", err)
	}

	retrieved, err := cache.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Retrieved job should not be nil")
	}
	if retrieved.AssetID != job.AssetID {
		t.Errorf("Expected asset ID %s, got %s", job.AssetID, retrieved.AssetID)
	}

	if err := cache.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}
}
