package config

import (
	"os"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	return tmpfile.Name()
}

func TestLoad(t *testing.T) {
	content := `
server:
  port: 9090
  host: "127.0.0.1"

pipeline:
  contentRoot: "/srv/media/content"
  scratchDir: "/srv/media/scratch"

ads:
  delay: "5m"
  duration: "30s"

delivery:
  chunkSize: 524288
  maxSessions: 50
`

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify loaded values
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}

	if cfg.Pipeline.ContentRoot != "/srv/media/content" {
		t.Errorf("Expected content root /srv/media/content, got %s", cfg.Pipeline.ContentRoot)
	}

	if cfg.Delivery.ChunkSize != 524288 {
		t.Errorf("Expected chunk size 524288, got %d", cfg.Delivery.ChunkSize)
	}

	if cfg.Delivery.MaxSessions != 50 {
		t.Errorf("Expected max sessions 50, got %d", cfg.Delivery.MaxSessions)
	}

	if cfg.Ads.Delay.Seconds() != 300 {
		t.Errorf("Expected ad delay 300s, got %v", cfg.Ads.Delay)
	}

	if cfg.Ads.Duration.Seconds() != 30 {
		t.Errorf("Expected ad duration 30s, got %v", cfg.Ads.Duration)
	}

	// Defaults still apply to untouched sections
	if cfg.Pipeline.FFmpegPath != "ffmpeg" {
		t.Errorf("Expected default ffmpeg path, got %s", cfg.Pipeline.FFmpegPath)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent file")
	}
}

func TestLoadRejectsBadDelivery(t *testing.T) {
	content := `
pipeline:
  contentRoot: "/srv/media/content"
  scratchDir: "/srv/media/scratch"

delivery:
  chunkSize: 0
`

	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Expected error for zero chunk size")
	}
}

func TestLoadRejectsEmptyContentRoot(t *testing.T) {
	content := `
pipeline:
  contentRoot: ""
  scratchDir: "/srv/media/scratch"
`

	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Expected error for empty content root")
	}
}
