package delivery

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/seatback/internal/logging"
	"github.com/therealutkarshpriyadarshi/seatback/internal/metrics"
	"github.com/therealutkarshpriyadarshi/seatback/internal/session"
	"github.com/therealutkarshpriyadarshi/seatback/internal/store"
)

// API exposes the playback control and streaming endpoints.
type API struct {
	server   *Server
	sessions *session.Controller
	log      *logging.Logger
}

// NewAPI creates the HTTP surface over the delivery server.
func NewAPI(server *Server, sessions *session.Controller, log *logging.Logger) *API {
	return &API{
		server:   server,
		sessions: sessions,
		log:      log,
	}
}

// RegisterRoutes attaches the playback endpoints under /api/v1.
func (api *API) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/sessions", api.startSession)
		v1.GET("/sessions/:id", api.sessionStatus)
		v1.DELETE("/sessions/:id", api.endSession)
		v1.POST("/sessions/:id/progress", api.reportProgress)
		v1.POST("/sessions/:id/ad/skip", api.skipAd)
		v1.GET("/sessions/:id/stream", api.stream)
	}
}

func (api *API) startSession(c *gin.Context) {
	var req struct {
		AssetID string `json:"asset_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asset, err := api.server.catalog.GetAsset(c.Request.Context(), req.AssetID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
		return
	}
	if !asset.IsServable() {
		c.JSON(http.StatusConflict, gin.H{"error": "Asset is not servable"})
		return
	}

	id, err := api.sessions.StartSession(asset.ID)
	if err != nil {
		if errors.Is(err, session.ErrCapacityExceeded) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "All playback slots are in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": id,
		"asset_id":   asset.ID,
		"state":      session.StatePlaying,
	})
}

func (api *API) sessionStatus(c *gin.Context) {
	id := c.Param("id")

	state, err := api.sessions.State(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	assetID, err := api.sessions.AssetID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"asset_id":   assetID,
		"state":      state,
	})
}

func (api *API) endSession(c *gin.Context) {
	api.sessions.EndSession(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (api *API) reportProgress(c *gin.Context) {
	// Pointer so a legitimate zero-delta report is not rejected as a
	// missing field
	var req struct {
		ElapsedSeconds *float64 `json:"elapsed_seconds" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.ElapsedSeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "elapsed_seconds must not be negative"})
		return
	}

	state, err := api.sessions.Advance(c.Param("id"), *req.ElapsedSeconds)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (api *API) skipAd(c *gin.Context) {
	id := c.Param("id")

	skippable, err := api.sessions.AdSkippable(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "No advertisement is playing"})
		return
	}
	if !skippable {
		c.JSON(http.StatusConflict, gin.H{"error": "Advertisement cannot be skipped yet"})
		return
	}

	if err := api.sessions.EndAd(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	metrics.AdBreaksSkipped.Inc()
	c.JSON(http.StatusOK, gin.H{"state": session.StatePlaying})
}

func (api *API) stream(c *gin.Context) {
	id := c.Param("id")

	start, end, err := parseRange(c.GetHeader("Range"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chunk, err := api.server.ServeRange(c.Request.Context(), id, start, end)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, ErrAssetNotServable):
			c.JSON(http.StatusConflict, gin.H{"error": "Asset is not servable"})
		case errors.Is(err, store.ErrUnsatisfiableRange):
			c.JSON(http.StatusRequestedRangeNotSatisfiable, gin.H{"error": "Requested range is not satisfiable"})
		default:
			api.log.WithSessionID(id).ErrorWithErr("stream request failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to serve chunk"})
		}
		return
	}

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", chunk.Start, chunk.End, chunk.Total))
	if chunk.Ad {
		c.Header("X-Ad-Break", "true")
	}
	c.Data(http.StatusPartialContent, "application/octet-stream", chunk.Data)
}

// parseRange understands "bytes=start-end", the open-ended "bytes=start-"
// and the suffix form "bytes=-n", which it reports as a negative start (the
// final n bytes). An absent header means start from zero and let the chunk
// size cap apply.
func parseRange(header string) (start, end int64, err error) {
	if header == "" {
		return 0, -1, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("unsupported range header %q", header)
	}

	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range header %q", header)
	}

	if strings.TrimSpace(first) == "" {
		n, err := strconv.ParseInt(strings.TrimSpace(last), 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, fmt.Errorf("malformed suffix range %q", header)
		}
		return -n, -1, nil
	}

	start, err = strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("malformed range start %q", header)
	}

	if strings.TrimSpace(last) == "" {
		return start, -1, nil
	}
	end, err = strconv.ParseInt(strings.TrimSpace(last), 10, 64)
	if err != nil || end < start {
		return 0, 0, fmt.Errorf("malformed range end %q", header)
	}
	return start, end, nil
}
