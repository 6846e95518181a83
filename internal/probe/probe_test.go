package probe

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMedia(t *testing.T, name string, size int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestProbeDegradesWithoutTool(t *testing.T) {
	// A binary name that cannot exist anywhere on PATH
	p := New("ffprobe-definitely-not-installed")

	path := writeMedia(t, "title.mp4", 4096)

	info, err := p.Probe(context.Background(), path)
	require.NoError(t, err, "missing probe tool must not fail the caller")

	assert.False(t, info.Probed)
	assert.Equal(t, int64(4096), info.Size)
	assert.Equal(t, "video/mp4", info.MIMEType)
	assert.Empty(t, info.Codec, "codec is unknown without the tool")
	assert.Zero(t, info.Duration)
}

func TestProbeDegradesWithBogusAbsolutePath(t *testing.T) {
	p := New("/nonexistent/bin/ffprobe")

	path := writeMedia(t, "track.mp4", 128)

	info, err := p.Probe(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, info.Probed)
	assert.Equal(t, int64(128), info.Size)
}

func TestProbeMissingFile(t *testing.T) {
	p := New("ffprobe-definitely-not-installed")

	_, err := p.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}

func TestProbeConcurrentSamePath(t *testing.T) {
	p := New("ffprobe-definitely-not-installed")
	path := writeMedia(t, "title.mp4", 1024)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := p.Probe(context.Background(), path)
			assert.NoError(t, err)
			assert.Equal(t, int64(1024), info.Size)
		}()
	}
	wg.Wait()

	// Probe is read-only: file bytes untouched
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 1024)
}

func TestGuessMIME(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"title.mp4", "video/mp4"},
		{"clip.webm", "video/webm"},
		{"raw.bin", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, guessMIME(tt.path))
		})
	}
}
