package extractor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vibedl/vibedl/internal/domain"
	"github.com/vibedl/vibedl/internal/infra/config"
	"github.com/vibedl/vibedl/internal/infra/logger"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// ProgressSink receives fire-and-forget updates from an in-flight fetch.
// Implementations must not block: the gateway calls them inline while
// consuming subprocess output.
type ProgressSink interface {
	// Progress reports download completion in percent.
	Progress(percent float64)
	// Processing signals that the external tool moved on to
	// post-processing (merge/remux); no further Progress calls follow.
	Processing()
}

// Gateway wraps every call into the external extractor (yt-dlp) and muxer
// (ffmpeg). Callers bound each call with a context deadline; the gateway
// runs subprocesses under that context so a timed-out child is killed, not
// abandoned. All upstream traffic is routed through the configured proxy.
type Gateway struct {
	ytdlpPath  string
	ffmpegPath string
	proxyURL   string
	tempDir    string

	proxyTestURL string
	httpClient   *http.Client

	logger *logger.Logger
}

func New(cfg *config.Config, log *logger.Logger) *Gateway {
	transport := &http.Transport{
		// The scraping proxy terminates TLS itself; certificate
		// verification has to be skipped for the tunnel to work.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	if proxy, err := url.Parse(cfg.Proxy.URL); err == nil && cfg.Proxy.URL != "" {
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Gateway{
		ytdlpPath:    cfg.Extractor.YtdlpPath,
		ffmpegPath:   cfg.Extractor.FfmpegPath,
		proxyURL:     cfg.Proxy.URL,
		tempDir:      cfg.Download.TempDir,
		proxyTestURL: cfg.Proxy.TestURL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Proxy.Timeout,
		},
		logger: log,
	}
}

// CheckProxy fetches the platform front page through the proxy and returns
// the upstream status code.
func (g *Gateway) CheckProxy(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.proxyTestURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// BuildSelector composes the yt-dlp format selector for a request.
// A video-only variant gets paired with the best available audio, and every
// selector carries a "/best" fallback so an unavailable variant degrades to
// the tool's own best-effort choice instead of failing.
func BuildSelector(formatID, audioID string, variantHasAudio bool) string {
	switch {
	case formatID == "":
		return "bestvideo+bestaudio/best"
	case audioID != "":
		return formatID + "+" + audioID + "/best"
	case variantHasAudio:
		return formatID + "/best"
	default:
		return formatID + "+bestaudio/best"
	}
}

// classify maps a failed subprocess run onto the domain error taxonomy so
// the HTTP layer can pick a response code. The context is consulted first:
// a deadline kill shows up as a generic exit error otherwise.
func classify(ctx context.Context, stderr string, err error) error {
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: extraction timed out", domain.ErrTimeout)
	}

	detail := tail(stderr, 300)
	lower := strings.ToLower(stderr)

	switch {
	case strings.Contains(lower, "requested format is not available"):
		return fmt.Errorf("%w: %s", domain.ErrFormatUnavailable, detail)
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "private video"),
		strings.Contains(lower, "this video is not available"),
		strings.Contains(lower, "http error 404"):
		return fmt.Errorf("%w: %s", domain.ErrVideoUnavailable, detail)
	case strings.Contains(lower, "proxy"),
		strings.Contains(lower, "tunnel connection failed"),
		strings.Contains(lower, "unable to connect"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "timed out"):
		return fmt.Errorf("%w: %s", domain.ErrUpstreamUnavailable, detail)
	}

	if detail != "" {
		return fmt.Errorf("extraction failed: %s", detail)
	}
	return fmt.Errorf("extraction failed: %w", err)
}

// tail returns the last n bytes of s with surrounding space trimmed, to
// keep error strings readable when yt-dlp dumps a full traceback.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
