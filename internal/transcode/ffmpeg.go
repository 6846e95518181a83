package transcode

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"
)

// Tool wraps the external codec conversion binary. The tool is an opaque
// black box: success is judged solely on exit status plus the output file,
// and paths are passed as discrete argv entries so no shell ever sees them.
type Tool struct {
	ffmpegPath string
}

// NewTool creates a Tool around the given ffmpeg binary.
func NewTool(ffmpegPath string) *Tool {
	return &Tool{ffmpegPath: ffmpegPath}
}

// Normalize re-encodes the input into a broadly browser-compatible asset:
// H.264 video, AAC audio, and the index moved to the front of the container
// so playback can begin before the whole file has downloaded. It returns the
// tool's diagnostic output regardless of outcome.
func (t *Tool) Normalize(ctx context.Context, inputPath, outputPath string) (string, error) {
	args := []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// On cancellation ask the process to stop cleanly first, then kill
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	return stderr.String(), err
}
