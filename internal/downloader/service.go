package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vibedl/vibedl/internal/app"
	"github.com/vibedl/vibedl/internal/domain"
	"github.com/vibedl/vibedl/internal/extractor"
	"github.com/vibedl/vibedl/internal/infra/config"
	"github.com/vibedl/vibedl/internal/infra/logger"
	"github.com/vibedl/vibedl/internal/jobs"
)

const watchURLTemplate = "https://www.youtube.com/watch?v=%s"

// Service orchestrates download jobs: it owns the goroutine spawned per
// submission, drives the gateway, and performs each job's single terminal
// write into the registry.
type Service struct {
	cfg      *config.Config
	logger   *logger.Logger
	registry *jobs.Registry
	gateway  app.Extractor
	history  app.History // may be nil
}

func NewService(appCtx *app.Context) *Service {
	return &Service{
		cfg:      appCtx.Config,
		logger:   appCtx.Logger,
		registry: appCtx.Registry,
		gateway:  appCtx.Extractor,
		history:  appCtx.History,
	}
}

// registrySink forwards gateway progress into the owning job's registry
// entry. Updates for a handle only ever come from that handle's goroutine.
type registrySink struct {
	registry *jobs.Registry
	handle   string
}

func (s *registrySink) Progress(percent float64) { s.registry.ReportProgress(s.handle, percent) }
func (s *registrySink) Processing()              { s.registry.MarkProcessing(s.handle) }

// Submit registers a new job and hands the work to a background goroutine.
// It returns the handle before the download begins in earnest.
func (s *Service) Submit(sourceURL, formatID, audioID string) string {
	handle := s.registry.Submit(sourceURL)
	go s.run(handle, sourceURL, formatID, audioID)
	return handle
}

func (s *Service) run(handle, sourceURL, formatID, audioID string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[Job %s] panic: %v", handle, r)
			s.registry.Fail(handle, fmt.Sprintf("internal error: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Extractor.DownloadTimeout)
	defer cancel()

	destPath := filepath.Join(s.cfg.Download.Dir, handle+".mp4")

	title, err := s.execute(ctx, handle, sourceURL, formatID, audioID, destPath)
	if err != nil {
		s.logger.Warn("[Job %s] failed: %v", handle, err)
		s.registry.Fail(handle, err.Error())
	} else {
		s.registry.Complete(handle, destPath, "/api/get-file/"+handle)
	}

	s.recordOutcome(handle, title, destPath)
}

// execute runs the actual download pipeline and reports the extracted
// title when one is known. destPath only exists after a nil return.
func (s *Service) execute(ctx context.Context, handle, sourceURL, formatID, audioID, destPath string) (string, error) {
	sink := &registrySink{registry: s.registry, handle: handle}

	// Explicit audio variant: fetch the two streams separately, then hand
	// them to the muxer. The merge is the "processing" phase.
	if formatID != "" && audioID != "" {
		videoTemp := filepath.Join(s.cfg.Download.TempDir, handle+"_video.mp4")
		audioTemp := filepath.Join(s.cfg.Download.TempDir, handle+"_audio.m4a")
		defer os.Remove(videoTemp)
		defer os.Remove(audioTemp)

		if err := s.gateway.Fetch(ctx, sourceURL, formatID+"/best", videoTemp, sink); err != nil {
			return "", err
		}
		if err := s.gateway.Fetch(ctx, sourceURL, audioID+"/bestaudio", audioTemp, nil); err != nil {
			return "", err
		}

		s.registry.MarkProcessing(handle)

		return "", s.gateway.Mux(ctx, videoTemp, audioTemp, destPath)
	}

	selector, title := s.resolveSelector(ctx, sourceURL, formatID, audioID)
	return title, s.gateway.Fetch(ctx, sourceURL, selector, destPath, sink)
}

// resolveSelector probes the source when a specific video variant was
// requested without an audio companion, so a variant that already carries
// audio is not needlessly paired with a second track. Probe failures fall
// back to the pairing selector: the extractor's own "/best" fallback
// absorbs a wrong guess.
func (s *Service) resolveSelector(ctx context.Context, sourceURL, formatID, audioID string) (selector, title string) {
	if formatID == "" {
		return extractor.BuildSelector("", "", false), ""
	}
	if audioID != "" {
		return extractor.BuildSelector(formatID, audioID, false), ""
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.Extractor.ProbeTimeout)
	defer cancel()

	info, err := s.gateway.Probe(probeCtx, sourceURL)
	if err != nil {
		s.logger.Debug("selector probe failed for %s: %v", sourceURL, err)
		return extractor.BuildSelector(formatID, "", false), ""
	}

	return extractor.BuildSelector(formatID, "", info.VariantHasAudio(formatID)), info.Title
}

// recordOutcome writes the job's terminal state to the history store.
// Best-effort: history is diagnostics, not part of the download contract.
func (s *Service) recordOutcome(handle, title, destPath string) {
	if s.history == nil {
		return
	}

	job, err := s.registry.Status(handle)
	if err != nil || !job.State.Terminal() {
		return
	}

	var size int64
	if info, err := os.Stat(destPath); err == nil {
		size = info.Size()
	}

	if err := s.history.RecordOutcome(&job, title, size); err != nil {
		s.logger.Warn("[Job %s] history write failed: %v", handle, err)
	}
}

// cacheFileName is the deterministic artifact name for a direct download,
// keyed on the full (video, format, audio) triple.
func cacheFileName(videoID, formatID, audioID string) string {
	name := videoID + "_" + formatID
	if audioID != "" {
		name += "_" + audioID
	}
	return name + ".mp4"
}

// DirectDownload materializes the requested variant synchronously,
// reusing a previously downloaded artifact when the same triple was
// fetched before. A registry job is created for the duration so the
// in-flight table reflects the work, but the caller blocks until the
// terminal write.
func (s *Service) DirectDownload(ctx context.Context, videoID, formatID, audioID string) (string, string, error) {
	cachePath := filepath.Join(s.cfg.Download.Dir, cacheFileName(videoID, formatID, audioID))

	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, "", nil
	}

	sourceURL := fmt.Sprintf(watchURLTemplate, videoID)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Extractor.DirectTimeout)
	defer cancel()

	handle := s.registry.Submit(sourceURL)
	sink := &registrySink{registry: s.registry, handle: handle}

	selector, title := s.resolveSelector(ctx, sourceURL, formatID, audioID)

	if err := s.gateway.Fetch(ctx, sourceURL, selector, cachePath, sink); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		s.registry.Fail(handle, err.Error())
		s.recordOutcome(handle, title, cachePath)
		return "", "", err
	}

	s.registry.Complete(handle, cachePath, "/api/get-file/"+handle)
	s.recordOutcome(handle, title, cachePath)

	return cachePath, title, nil
}
