package app

import (
	"context"

	"github.com/vibedl/vibedl/internal/domain"
	"github.com/vibedl/vibedl/internal/extractor"
	"github.com/vibedl/vibedl/internal/infra/config"
	"github.com/vibedl/vibedl/internal/infra/logger"
	"github.com/vibedl/vibedl/internal/jobs"
	"github.com/vibedl/vibedl/internal/store"
)

// Extractor is the gateway to the external extraction and muxing tools.
// Every call is bounded by the caller's context deadline.
type Extractor interface {
	Probe(ctx context.Context, sourceURL string) (*domain.VideoInfo, error)
	Fetch(ctx context.Context, sourceURL, selector, destPath string, sink extractor.ProgressSink) error
	Mux(ctx context.Context, videoPath, audioPath, destPath string) error
	CheckProxy(ctx context.Context) (int, error)
}

// Downloads is the orchestration service behind the download endpoints.
type Downloads interface {
	// Submit enqueues an asynchronous download and returns its handle
	// without waiting for any of the work.
	Submit(sourceURL, formatID, audioID string) string
	// DirectDownload blocks until the requested variant is materialized
	// (or served from the on-disk cache) and returns the artifact path
	// plus the extracted title when one is known.
	DirectDownload(ctx context.Context, videoID, formatID, audioID string) (path string, title string, err error)
}

// History is the durable record of finished downloads.
type History interface {
	RecordOutcome(job *domain.Job, title string, sizeBytes int64) error
	RecentHistory(limit int) ([]store.HistoryRecord, error)
}

// Context holds the shared environment for the service. It acts as the
// single source of truth handed to the API layer and the background tasks.
type Context struct {
	Config  *config.Config
	Logger  *logger.Logger
	Version string

	Registry  *jobs.Registry
	Extractor Extractor
	Downloads Downloads
	History   History
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger, version string) *Context {
	return &Context{
		Config:  cfg,
		Logger:  log,
		Version: version,
	}
}
