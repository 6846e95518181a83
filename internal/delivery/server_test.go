package delivery

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/seatback/internal/config"
	"github.com/therealutkarshpriyadarshi/seatback/internal/logging"
	"github.com/therealutkarshpriyadarshi/seatback/internal/session"
	"github.com/therealutkarshpriyadarshi/seatback/internal/store"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

type fakeCatalog struct {
	assets map[string]*models.Asset
}

func (f *fakeCatalog) GetAsset(_ context.Context, id string) (*models.Asset, error) {
	a, ok := f.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s not found", id)
	}
	return a, nil
}

type fixture struct {
	server   *Server
	sessions *session.Controller
	catalog  *fakeCatalog
	root     string
}

func newFixture(t *testing.T, chunkSize int64, content, ad []byte) *fixture {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "movie.mp4"), content, 0o644))
	if ad != nil {
		require.NoError(t, os.WriteFile(filepath.Join(root, "ad.mp4"), ad, 0o644))
	}

	st, err := store.New(root, filepath.Join(root, ".scratch"))
	require.NoError(t, err)

	ads := config.AdsConfig{
		MidContent: true,
		Delay:      5 * time.Minute,
		Duration:   30 * time.Second,
		SkipAfter:  10 * time.Second,
		AssetPath:  "ad.mp4",
	}
	delivery := config.DeliveryConfig{
		ChunkSize:   chunkSize,
		MaxSessions: 10,
		IdleTimeout: time.Minute,
	}

	log, err := logging.NewDefaultLogger()
	require.NoError(t, err)
	sessions := session.NewController(ads, delivery, log)
	catalog := &fakeCatalog{assets: map[string]*models.Asset{
		"asset-1": {
			ID:     "asset-1",
			Path:   "movie.mp4",
			Kind:   models.AssetKindMovie,
			Status: models.AssetStatusActive,
		},
	}}

	return &fixture{
		server:   NewServer(st, catalog, sessions, delivery, ads, log),
		sessions: sessions,
		catalog:  catalog,
		root:     root,
	}
}

func TestServeRangeChunked(t *testing.T) {
	content := []byte("0123456789abcdefghij") // 20 bytes
	f := newFixture(t, 8, content, nil)

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)

	// A request for the whole file is capped at the chunk size
	chunk, err := f.server.ServeRange(context.Background(), id, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("01234567"), chunk.Data)
	assert.Equal(t, int64(0), chunk.Start)
	assert.Equal(t, int64(7), chunk.End)
	assert.Equal(t, int64(20), chunk.Total)
	assert.False(t, chunk.Ad)

	// The client follows up from where the previous chunk ended
	chunk, err = f.server.ServeRange(context.Background(), id, 8, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("89abcdef"), chunk.Data)

	// The final chunk is short
	chunk, err = f.server.ServeRange(context.Background(), id, 16, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("ghij"), chunk.Data)
	assert.Equal(t, int64(19), chunk.End)
}

func TestServeRangeChunkCapHugeEnd(t *testing.T) {
	content := []byte("0123456789abcdefghij")
	f := newFixture(t, 8, content, nil)

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)

	// An end near MaxInt64 must not wrap the cap arithmetic and hand the
	// whole file back in one chunk
	chunk, err := f.server.ServeRange(context.Background(), id, 0, math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, []byte("01234567"), chunk.Data)
	assert.Equal(t, int64(7), chunk.End)

	chunk, err = f.server.ServeRange(context.Background(), id, 4, math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789ab"), chunk.Data)
}

func TestServeRangeSuffix(t *testing.T) {
	content := []byte("0123456789abcdefghij")
	f := newFixture(t, 8, content, nil)

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)

	// A negative start means the file's final bytes
	chunk, err := f.server.ServeRange(context.Background(), id, -4, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("ghij"), chunk.Data)
	assert.Equal(t, int64(16), chunk.Start)
	assert.Equal(t, int64(19), chunk.End)

	// A suffix longer than the file starts at zero, still chunk-capped
	chunk, err = f.server.ServeRange(context.Background(), id, -100, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("01234567"), chunk.Data)
	assert.Equal(t, int64(0), chunk.Start)
}

func TestServeRangeResumeOffset(t *testing.T) {
	content := []byte("0123456789abcdefghij")
	f := newFixture(t, 64, content, nil)

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)

	// A reconnecting client resumes from an arbitrary offset
	chunk, err := f.server.ServeRange(context.Background(), id, 12, 15)
	require.NoError(t, err)
	assert.Equal(t, []byte("cdef"), chunk.Data)
	assert.Equal(t, int64(12), chunk.Start)
	assert.Equal(t, int64(15), chunk.End)
}

func TestServeRangeUnknownSession(t *testing.T) {
	f := newFixture(t, 8, []byte("data"), nil)

	_, err := f.server.ServeRange(context.Background(), "nope", 0, -1)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestServeRangeInactiveAsset(t *testing.T) {
	f := newFixture(t, 8, []byte("data"), nil)
	f.catalog.assets["asset-1"].Status = models.AssetStatusInactive

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)

	_, err = f.server.ServeRange(context.Background(), id, 0, -1)
	assert.ErrorIs(t, err, ErrAssetNotServable)
}

func TestServeRangeMissingFile(t *testing.T) {
	f := newFixture(t, 8, []byte("data"), nil)
	f.catalog.assets["asset-1"].Path = "gone.mp4"

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)

	_, err = f.server.ServeRange(context.Background(), id, 0, -1)
	assert.ErrorIs(t, err, ErrAssetNotServable)
}

func TestServeRangePastEnd(t *testing.T) {
	f := newFixture(t, 8, []byte("data"), nil)

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)

	_, err = f.server.ServeRange(context.Background(), id, 100, -1)
	assert.ErrorIs(t, err, store.ErrUnsatisfiableRange)
}

func TestServeRangeAdSubstitution(t *testing.T) {
	content := []byte("0123456789abcdefghij")
	ad := []byte("BUYBUYBUYBUY") // 12 bytes, two 8-byte chunks
	f := newFixture(t, 8, content, ad)

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)

	// Content flows normally before the threshold
	chunk, err := f.server.ServeRange(context.Background(), id, 0, -1)
	require.NoError(t, err)
	assert.False(t, chunk.Ad)

	// Crossing the 5-minute threshold arms the break
	state, err := f.sessions.Advance(id, 301)
	require.NoError(t, err)
	require.Equal(t, session.StateAdPending, state)

	// The next chunk request serves ad bytes instead of content
	chunk, err = f.server.ServeRange(context.Background(), id, 8, -1)
	require.NoError(t, err)
	assert.True(t, chunk.Ad)
	assert.Equal(t, []byte("BUYBUYBU"), chunk.Data)
	assert.Equal(t, int64(0), chunk.Start)
	assert.Equal(t, int64(12), chunk.Total)

	// Second ad chunk exhausts the ad asset and ends the break
	chunk, err = f.server.ServeRange(context.Background(), id, 8, -1)
	require.NoError(t, err)
	assert.True(t, chunk.Ad)
	assert.Equal(t, []byte("YBUY"), chunk.Data)

	state, err = f.sessions.State(id)
	require.NoError(t, err)
	assert.Equal(t, session.StatePlaying, state)

	// Content resumes at the client's own offset, not where the ad left off
	chunk, err = f.server.ServeRange(context.Background(), id, 8, -1)
	require.NoError(t, err)
	assert.False(t, chunk.Ad)
	assert.Equal(t, []byte("89abcdef"), chunk.Data)
}

func TestServeRangeAdAssetMissing(t *testing.T) {
	f := newFixture(t, 8, []byte("0123456789abcdefghij"), nil)

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)

	state, err := f.sessions.Advance(id, 301)
	require.NoError(t, err)
	require.Equal(t, session.StateAdPending, state)

	// A break without its ad asset fails the request but releases the
	// session back to Playing instead of stranding it
	_, err = f.server.ServeRange(context.Background(), id, 0, -1)
	assert.ErrorIs(t, err, ErrAssetNotServable)

	state, err = f.sessions.State(id)
	require.NoError(t, err)
	assert.Equal(t, session.StatePlaying, state)

	chunk, err := f.server.ServeRange(context.Background(), id, 0, -1)
	require.NoError(t, err)
	assert.False(t, chunk.Ad)
}

func TestServeRangeEndedSession(t *testing.T) {
	f := newFixture(t, 8, []byte("data"), nil)

	id, err := f.sessions.StartSession("asset-1")
	require.NoError(t, err)
	f.sessions.EndSession(id)

	_, err = f.server.ServeRange(context.Background(), id, 0, -1)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
