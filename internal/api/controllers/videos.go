package controllers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v5"
	"github.com/vibedl/vibedl/internal/app"
	"github.com/vibedl/vibedl/internal/domain"
	"github.com/vibedl/vibedl/internal/platform"
	"github.com/vibedl/vibedl/internal/store"
)

type VideoController struct {
	App *app.Context
}

// statusCode picks the response code for a gateway or registry error.
// Timeouts are kept distinguishable from not-found so clients know when a
// retry is worthwhile.
func statusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrVideoUnavailable):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *echo.Context, err error) error {
	return c.JSON(statusCode(err), ErrorResponse{Error: err.Error()})
}

// VideoInfo resolves metadata and the variant lists for a source URL.
func (ctrl *VideoController) VideoInfo(c *echo.Context) error {
	sourceURL := c.QueryParam("url")
	if sourceURL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing video URL"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), ctrl.App.Config.Extractor.ProbeTimeout)
	defer cancel()

	info, err := ctrl.App.Extractor.Probe(ctx, sourceURL)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, info)
}

// Download enqueues an asynchronous job and returns its handle immediately.
func (ctrl *VideoController) Download(c *echo.Context) error {
	sourceURL := c.QueryParam("url")
	if sourceURL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing video URL"})
	}

	handle := ctrl.App.Downloads.Submit(sourceURL, c.QueryParam("format_id"), c.QueryParam("audio_id"))

	return c.JSON(http.StatusOK, SubmitResponse{
		DownloadID: handle,
		Status:     "processing",
		Message:    "Download started. Check status using the /api/download-status endpoint.",
	})
}

// Status polls a job by handle.
func (ctrl *VideoController) Status(c *echo.Context) error {
	handle := c.Param("handle")

	job, err := ctrl.App.Registry.Status(handle)
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "Download ID not found"})
	}

	resp := StatusResponse{
		DownloadID: job.Handle,
		Status:     string(job.State),
		URL:        job.SourceURL,
		Error:      job.Error,
	}

	if !job.State.Terminal() {
		progress := job.Progress
		resp.Progress = &progress
	}
	if job.Result != nil {
		resp.DownloadURL = job.Result.DownloadURL
	}

	return c.JSON(http.StatusOK, resp)
}

// GetFile streams a completed job's artifact as an attachment.
func (ctrl *VideoController) GetFile(c *echo.Context) error {
	handle := c.Param("handle")

	job, err := ctrl.App.Registry.Status(handle)
	if err != nil || job.State != domain.StateCompleted || job.Result == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "File not found"})
	}

	path := job.Result.ArtifactPath
	if _, err := os.Stat(path); err != nil {
		// The artifact may have been swept between the status poll and
		// this request.
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "File not found"})
	}

	return c.Attachment(path, handle+".mp4")
}

// DirectDownload performs the fetch synchronously and streams the result.
// Repeated requests for the same (video, format, audio) triple are served
// from the on-disk cache.
func (ctrl *VideoController) DirectDownload(c *echo.Context) error {
	videoID := c.Param("video_id")
	formatID := c.Param("format_id")
	audioID := c.QueryParam("audio_id")
	customName := c.QueryParam("filename")

	path, title, err := ctrl.App.Downloads.DirectDownload(c.Request().Context(), videoID, formatID, audioID)
	if err != nil {
		return fail(c, err)
	}

	name := customName
	if name == "" {
		if clean := platform.SanitizeFilename(title); clean != "" {
			name = clean + ".mp4"
		} else {
			name = videoID + ".mp4"
		}
	}

	return c.Attachment(path, name)
}

// ProxyTest verifies that the upstream scraping proxy is reachable.
func (ctrl *VideoController) ProxyTest(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), ctrl.App.Config.Proxy.Timeout)
	defer cancel()

	code, err := ctrl.App.Extractor.CheckProxy(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ProxyTestResponse{
			Status:       "error",
			ProxyWorking: false,
			Error:        err.Error(),
			Message:      "Proxy connection failed",
		})
	}

	return c.JSON(http.StatusOK, ProxyTestResponse{
		Status:       "success",
		ProxyWorking: true,
		StatusCode:   code,
		Message:      "Proxy connection successful",
	})
}

// Health always answers 200; proxy reachability is reported as a field
// rather than a failure.
func (ctrl *VideoController) Health(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), ctrl.App.Config.Proxy.Timeout)
	defer cancel()

	_, err := ctrl.App.Extractor.CheckProxy(ctx)
	inflight, completed := ctrl.App.Registry.Counts()

	return c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       ctrl.App.Version,
		ProxyWorking:  err == nil,
		JobsInFlight:  inflight,
		JobsCompleted: completed,
	})
}

// History lists recent finished downloads from the durable store.
func (ctrl *VideoController) History(c *echo.Context) error {
	if ctrl.App.History == nil {
		return c.JSON(http.StatusOK, []store.HistoryRecord{})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	records, err := ctrl.App.History.RecentHistory(limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	if records == nil {
		records = []store.HistoryRecord{}
	}

	return c.JSON(http.StatusOK, records)
}
