package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/seatback/internal/catalog"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

func (p *Portal) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	health := gin.H{"status": "healthy"}
	status := http.StatusOK

	if err := p.db.Health(ctx); err != nil {
		health["status"] = "unhealthy"
		health["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	if p.cache != nil {
		if err := p.cache.Ping(ctx); err != nil {
			health["cache"] = err.Error()
		}
	}

	health["live_sessions"] = p.sessions.Live()
	c.JSON(status, health)
}

func (p *Portal) createAsset(c *gin.Context) {
	var req struct {
		Path   string `json:"path" binding:"required"`
		Kind   string `json:"kind" binding:"required"`
		Status string `json:"status"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Kind {
	case models.AssetKindMovie, models.AssetKindMusic, models.AssetKindGame:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown asset kind"})
		return
	}

	// An empty status falls back to the repository's inactive default
	switch req.Status {
	case "", models.AssetStatusActive, models.AssetStatusInactive:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown asset status"})
		return
	}

	asset := &models.Asset{
		ID:     uuid.New().String(),
		Path:   req.Path,
		Kind:   req.Kind,
		Status: req.Status,
	}

	// Fill media facts up front when the file is already in the content root
	if abs, err := p.store.Resolve(req.Path); err == nil && p.store.Exists(abs) {
		if info, err := p.prober.Probe(c.Request.Context(), abs); err == nil {
			asset.Size = info.Size
			asset.Codec = info.Codec
			asset.Width = info.Width
			asset.Height = info.Height
			asset.Duration = info.Duration
			asset.Bitrate = info.Bitrate
		}
	}

	if err := p.repo.CreateAsset(c.Request.Context(), asset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create asset"})
		return
	}

	c.JSON(http.StatusCreated, asset)
}

func (p *Portal) listAssets(c *gin.Context) {
	kind := c.Query("kind")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	assets, err := p.repo.ListAssets(c.Request.Context(), kind, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list assets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assets": assets, "count": len(assets)})
}

func (p *Portal) getAsset(c *gin.Context) {
	asset, err := p.catalog.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get asset"})
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (p *Portal) setAssetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Status != models.AssetStatusActive && req.Status != models.AssetStatusInactive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown asset status"})
		return
	}

	id := c.Param("id")
	if err := p.repo.SetAssetStatus(c.Request.Context(), id, req.Status); err != nil {
		if errors.Is(err, catalog.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	// New delivery requests observe the flip immediately; in-flight
	// sessions are untouched
	p.catalog.Invalidate(c.Request.Context(), id)

	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func (p *Portal) requestNormalize(c *gin.Context) {
	var req struct {
		ObjectKey string `json:"object_key"`
		Priority  int    `json:"priority"`
	}
	// An empty body means normalize in place at default priority
	_ = c.ShouldBindJSON(&req)

	id := c.Param("id")
	if _, err := p.repo.GetAsset(c.Request.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get asset"})
		return
	}

	if req.Priority == 0 {
		req.Priority = models.JobPriorityNormal
	}

	job := &models.TranscodeJob{
		ID:        uuid.New().String(),
		AssetID:   id,
		ObjectKey: req.ObjectKey,
		Priority:  req.Priority,
		CreatedAt: time.Now(),
	}

	if err := p.queue.PublishJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue job"})
		return
	}

	if p.cache != nil {
		_ = p.cache.SetJob(c.Request.Context(), job, time.Hour)
	}

	c.JSON(http.StatusAccepted, job)
}

func (p *Portal) originalURL(c *gin.Context) {
	asset, err := p.repo.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get asset"})
		return
	}

	url, err := p.storage.PresignedURL(c.Request.Context(), asset.Path, time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in_seconds": 3600})
}
