package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vibedl/vibedl/internal/domain"
	"github.com/vibedl/vibedl/internal/platform"
)

// Mux combines a separate video and audio stream into one mp4 container.
// The video track is stream-copied, audio is transcoded to AAC. ffmpeg runs
// under the caller's context, so a deadline kills the subprocess instead of
// leaving it running in the background.
func (g *Gateway) Mux(ctx context.Context, videoPath, audioPath, destPath string) error {
	workPath := filepath.Join(g.tempDir, "mux_"+uuid.New().String()+".mp4")

	cmd := exec.CommandContext(ctx, g.ffmpegPath,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		workPath,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(workPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: muxing timed out", domain.ErrTimeout)
		}
		return fmt.Errorf("%w: %s", domain.ErrMuxFailed, tail(string(out), 300))
	}

	if info, statErr := os.Stat(workPath); statErr != nil || info.Size() == 0 {
		os.Remove(workPath)
		return fmt.Errorf("%w: muxer produced an empty file", domain.ErrMuxFailed)
	}

	return platform.MoveFile(workPath, destPath)
}
