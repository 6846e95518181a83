package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/therealutkarshpriyadarshi/seatback/internal/metrics"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

// Prober extracts structural metadata from media files via ffprobe. It never
// mutates the file, so concurrent probes of the same path are safe.
type Prober struct {
	ffprobePath string
}

// New creates a new prober using the given ffprobe binary.
func New(ffprobePath string) *Prober {
	return &Prober{ffprobePath: ffprobePath}
}

// ffprobeOutput mirrors the -print_format json layout
type ffprobeOutput struct {
	Format  formatInfo   `json:"format"`
	Streams []streamInfo `json:"streams"`
}

type formatInfo struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type streamInfo struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Probe extracts best-effort metadata for the file at absPath. If the ffprobe
// binary is missing, it degrades to filesystem-derived facts (size, MIME
// guess) with Probed set false instead of failing the caller. Any other
// probe failure is an error.
func (p *Prober) Probe(ctx context.Context, absPath string) (*models.MediaInfo, error) {
	base, err := p.statInfo(absPath)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		absPath,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			// Tool unavailable: documented partial-success path, not an error
			metrics.RecordProbe("degraded")
			return base, nil
		}
		metrics.RecordProbe("error")
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := base
	info.Probed = true
	info.Container = out.Format.FormatName

	if duration, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = duration
	}
	if bitrate, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = bitrate
	}

	for _, stream := range out.Streams {
		if stream.CodecType == "video" {
			info.Codec = stream.CodecName
			info.Width = stream.Width
			info.Height = stream.Height
			break
		}
	}

	// Audio-only assets carry no video stream; fall back to the first audio
	// codec so the UI has something to show
	if info.Codec == "" {
		for _, stream := range out.Streams {
			if stream.CodecType == "audio" {
				info.Codec = stream.CodecName
				break
			}
		}
	}

	metrics.RecordProbe("probed")
	return info, nil
}

// statInfo builds the filesystem-derived portion of MediaInfo.
func (p *Prober) statInfo(absPath string) (*models.MediaInfo, error) {
	fi, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", absPath, err)
	}

	return &models.MediaInfo{
		Size:     fi.Size(),
		MIMEType: guessMIME(absPath),
	}, nil
}

// guessMIME maps a file extension to a MIME type, preferring the stdlib
// table and falling back to the container types the pipeline produces.
func guessMIME(path string) string {
	ext := filepath.Ext(path)
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}

	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
