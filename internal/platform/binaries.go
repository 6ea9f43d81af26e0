package platform

import (
	"fmt"
	"os/exec"
)

// ValidateDependencies checks that the external extractor and muxer
// binaries are resolvable before the server starts taking requests.
func ValidateDependencies(ytdlpPath, ffmpegPath string) error {
	for _, bin := range []string{ytdlpPath, ffmpegPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("required dependency '%s' not found in PATH: %w", bin, err)
		}
	}
	return nil
}
