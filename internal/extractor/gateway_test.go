package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vibedl/vibedl/internal/domain"
)

func TestBuildSelector(t *testing.T) {
	tests := []struct {
		name            string
		formatID        string
		audioID         string
		variantHasAudio bool
		expected        string
	}{
		{"no format requested", "", "", false, "bestvideo+bestaudio/best"},
		{"explicit audio pairing", "137", "140", false, "137+140/best"},
		{"video-only variant gets best audio", "137", "", false, "137+bestaudio/best"},
		{"variant already carries audio", "22", "", true, "22/best"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildSelector(tt.formatID, tt.audioID, tt.variantHasAudio))
		})
	}
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{"format missing", "ERROR: Requested format is not available", domain.ErrFormatUnavailable},
		{"video gone", "ERROR: Video unavailable", domain.ErrVideoUnavailable},
		{"video private", "ERROR: Private video. Sign in if you've been granted access", domain.ErrVideoUnavailable},
		{"http 404", "ERROR: unable to download webpage: HTTP Error 404", domain.ErrVideoUnavailable},
		{"proxy down", "ERROR: Unable to connect to proxy", domain.ErrUpstreamUnavailable},
		{"tunnel failure", "ERROR: Tunnel connection failed: 407", domain.ErrUpstreamUnavailable},
		{"socket timeout", "ERROR: read operation timed out", domain.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(ctx, tt.stderr, assert.AnError)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClassifyDeadlineWinsOverStderr(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := classify(ctx, "ERROR: Video unavailable", assert.AnError)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Contains(t, err.Error(), "timed out")
}

func TestClassifyUnknownFailure(t *testing.T) {
	err := classify(context.Background(), "something exploded", assert.AnError)
	assert.NotErrorIs(t, err, domain.ErrTimeout)
	assert.Contains(t, err.Error(), "something exploded")
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line string
		pct  float64
		ok   bool
	}{
		{"[download]  42.3% of 10.00MiB at 1.00MiB/s ETA 00:05", 42.3, true},
		{"[download] 100% of 10.00MiB in 00:10", 100, true},
		{"[download]   0.0% of ~3.00MiB at Unknown speed", 0, true},
		{"[download] Destination: /tmp/abc.mp4", 0, false},
		{"[Merger] Merging formats into /tmp/abc.mp4", 0, false},
		{"random noise", 0, false},
	}

	for _, tt := range tests {
		pct, ok := parseProgressLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		if tt.ok {
			assert.Equal(t, tt.pct, pct, tt.line)
		}
	}
}

func TestIsPostProcessLine(t *testing.T) {
	assert.True(t, isPostProcessLine("[Merger] Merging formats into /tmp/abc.mp4"))
	assert.True(t, isPostProcessLine("[ffmpeg] Remuxing"))
	assert.True(t, isPostProcessLine("[FixupM4a] Correcting container"))
	assert.False(t, isPostProcessLine("[download]  42.3% of 10.00MiB"))
	assert.False(t, isPostProcessLine("[youtube] ABC: Downloading webpage"))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short  ", 300))

	long := ""
	for i := 0; i < 50; i++ {
		long += "0123456789"
	}
	got := tail(long, 100)
	assert.Len(t, got, 103) // "..." prefix plus the last 100 bytes
	assert.Equal(t, "...", got[:3])
}
