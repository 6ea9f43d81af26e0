package downloader

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibedl/vibedl/internal/app"
	"github.com/vibedl/vibedl/internal/domain"
	"github.com/vibedl/vibedl/internal/extractor"
	"github.com/vibedl/vibedl/internal/infra/config"
	"github.com/vibedl/vibedl/internal/infra/logger"
	"github.com/vibedl/vibedl/internal/jobs"
	"github.com/vibedl/vibedl/internal/store"
)

type fakeGateway struct {
	mu         sync.Mutex
	fetchCalls int
	muxCalls   int
	selectors  []string

	fetchDelay time.Duration
	fetchErr   error
	probeInfo  *domain.VideoInfo
	probeErr   error
}

func (f *fakeGateway) Probe(ctx context.Context, sourceURL string) (*domain.VideoInfo, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	if f.probeInfo != nil {
		return f.probeInfo, nil
	}
	return &domain.VideoInfo{ID: "ABC", Title: "Test Video"}, nil
}

func (f *fakeGateway) Fetch(ctx context.Context, sourceURL, selector, destPath string, sink extractor.ProgressSink) error {
	f.mu.Lock()
	f.fetchCalls++
	f.selectors = append(f.selectors, selector)
	delay := f.fetchDelay
	err := f.fetchErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: extraction timed out", domain.ErrTimeout)
		}
	}
	if err != nil {
		return err
	}

	if sink != nil {
		sink.Progress(50)
		sink.Progress(100)
	}
	return os.WriteFile(destPath, []byte("video-bytes"), 0644)
}

func (f *fakeGateway) Mux(ctx context.Context, videoPath, audioPath, destPath string) error {
	f.mu.Lock()
	f.muxCalls++
	f.mu.Unlock()
	return os.WriteFile(destPath, []byte("muxed-bytes"), 0644)
}

func (f *fakeGateway) CheckProxy(ctx context.Context) (int, error) { return 200, nil }

func (f *fakeGateway) calls() (fetch, mux int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.muxCalls
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.Job
}

func (h *fakeHistory) RecordOutcome(job *domain.Job, title string, sizeBytes int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, *job)
	return nil
}

func (h *fakeHistory) RecentHistory(limit int) ([]store.HistoryRecord, error) { return nil, nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Download: config.DownloadConfig{
			Dir:           t.TempDir(),
			TempDir:       t.TempDir(),
			Retention:     2 * time.Hour,
			SweepInterval: 30 * time.Minute,
		},
		Extractor: config.ExtractorConfig{
			ProbeTimeout:    time.Second,
			DownloadTimeout: 5 * time.Second,
			DirectTimeout:   5 * time.Second,
		},
	}
}

func newTestService(t *testing.T, gw *fakeGateway) (*Service, *app.Context) {
	t.Helper()
	log, err := logger.New("", logger.LevelError, false)
	require.NoError(t, err)

	appCtx := app.NewContext(testConfig(t), log, "test")
	appCtx.Registry = jobs.NewRegistry()
	appCtx.Extractor = gw

	return NewService(appCtx), appCtx
}

func waitTerminal(t *testing.T, appCtx *app.Context, handle string) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = appCtx.Registry.Status(handle)
		return err == nil && job.State.Terminal()
	}, 3*time.Second, 10*time.Millisecond)
	return job
}

func TestCacheFileName(t *testing.T) {
	assert.Equal(t, "ABC_137.mp4", cacheFileName("ABC", "137", ""))
	assert.Equal(t, "ABC_137_140.mp4", cacheFileName("ABC", "137", "140"))
}

func TestSubmitReturnsImmediately(t *testing.T) {
	gw := &fakeGateway{fetchDelay: 300 * time.Millisecond}
	svc, appCtx := newTestService(t, gw)

	start := time.Now()
	handle := svc.Submit("https://platform.example/watch?v=ABC", "", "")
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	job, err := appCtx.Registry.Status(handle)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDownloading, job.State)

	waitTerminal(t, appCtx, handle)
}

func TestSubmitRoundTrip(t *testing.T) {
	gw := &fakeGateway{}
	svc, appCtx := newTestService(t, gw)

	handle := svc.Submit("https://platform.example/watch?v=ABC", "", "")

	job := waitTerminal(t, appCtx, handle)
	require.Equal(t, domain.StateCompleted, job.State)
	require.NotNil(t, job.Result)
	assert.Equal(t, "/api/get-file/"+handle, job.Result.DownloadURL)

	info, err := os.Stat(job.Result.ArtifactPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	fetch, mux := gw.calls()
	assert.Equal(t, 1, fetch)
	assert.Equal(t, 0, mux)
	assert.Equal(t, []string{"bestvideo+bestaudio/best"}, gw.selectors)
}

func TestSubmitFailureIsTerminal(t *testing.T) {
	gw := &fakeGateway{fetchErr: fmt.Errorf("%w: extraction timed out", domain.ErrTimeout)}
	svc, appCtx := newTestService(t, gw)

	handle := svc.Submit("https://platform.example/watch?v=ABC", "", "")

	job := waitTerminal(t, appCtx, handle)
	assert.Equal(t, domain.StateFailed, job.State)
	assert.Contains(t, job.Error, "timed out")
	assert.Nil(t, job.Result)
}

func TestSubmitWithExplicitAudioUsesMuxer(t *testing.T) {
	gw := &fakeGateway{}
	svc, appCtx := newTestService(t, gw)

	handle := svc.Submit("https://platform.example/watch?v=ABC", "137", "140")

	job := waitTerminal(t, appCtx, handle)
	require.Equal(t, domain.StateCompleted, job.State)

	fetch, mux := gw.calls()
	assert.Equal(t, 2, fetch)
	assert.Equal(t, 1, mux)
}

func TestSubmitProbesVariantForAudio(t *testing.T) {
	gw := &fakeGateway{probeInfo: &domain.VideoInfo{
		ID:    "ABC",
		Title: "Probed",
		VideoVariants: []domain.VideoVariant{
			{FormatID: "22", ACodec: "mp4a.40.2"},
			{FormatID: "137", ACodec: "none"},
		},
	}}
	svc, appCtx := newTestService(t, gw)

	handle := svc.Submit("https://platform.example/watch?v=ABC", "22", "")
	waitTerminal(t, appCtx, handle)

	assert.Equal(t, []string{"22/best"}, gw.selectors)
}

func TestSubmitProbeFailureFallsBackToPairing(t *testing.T) {
	gw := &fakeGateway{probeErr: fmt.Errorf("%w: probe", domain.ErrUpstreamUnavailable)}
	svc, appCtx := newTestService(t, gw)

	handle := svc.Submit("https://platform.example/watch?v=ABC", "137", "")
	job := waitTerminal(t, appCtx, handle)

	assert.Equal(t, domain.StateCompleted, job.State)
	assert.Equal(t, []string{"137+bestaudio/best"}, gw.selectors)
}

func TestDirectDownloadCachesArtifact(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := newTestService(t, gw)

	first, _, err := svc.DirectDownload(context.Background(), "ABC", "137", "140")
	require.NoError(t, err)

	second, _, err := svc.DirectDownload(context.Background(), "ABC", "137", "140")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The second request must be served from disk without touching the
	// extraction gateway again.
	fetch, _ := gw.calls()
	assert.Equal(t, 1, fetch)
}

func TestDirectDownloadDistinctTriplesAreDistinctArtifacts(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := newTestService(t, gw)

	a, _, err := svc.DirectDownload(context.Background(), "ABC", "137", "140")
	require.NoError(t, err)
	b, _, err := svc.DirectDownload(context.Background(), "ABC", "137", "")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	fetch, _ := gw.calls()
	assert.Equal(t, 2, fetch)
}

func TestTerminalOutcomeIsRecorded(t *testing.T) {
	gw := &fakeGateway{}
	svc, appCtx := newTestService(t, gw)

	hist := &fakeHistory{}
	appCtx.History = hist
	svc.history = hist

	handle := svc.Submit("https://platform.example/watch?v=ABC", "", "")
	waitTerminal(t, appCtx, handle)

	require.Eventually(t, func() bool {
		hist.mu.Lock()
		defer hist.mu.Unlock()
		return len(hist.records) == 1
	}, time.Second, 10*time.Millisecond)

	hist.mu.Lock()
	defer hist.mu.Unlock()
	assert.Equal(t, handle, hist.records[0].Handle)
	assert.Equal(t, domain.StateCompleted, hist.records[0].State)
}
