package domain

import "errors"

// ErrNotFound indicates an unknown job handle or a missing artifact.
var ErrNotFound = errors.New("not found")

// ErrTimeout indicates a gateway call exceeded its wall-clock budget.
var ErrTimeout = errors.New("operation timed out")

// ErrUpstreamUnavailable indicates the proxy or the source platform could
// not be reached at all.
var ErrUpstreamUnavailable = errors.New("upstream unreachable")

// ErrVideoUnavailable indicates the source resolved but the video itself is
// gone, private, or blocked.
var ErrVideoUnavailable = errors.New("video unavailable")

// ErrFormatUnavailable indicates the video resolved but yielded no usable
// variant for the requested selector.
var ErrFormatUnavailable = errors.New("format not available")

// ErrMuxFailed indicates the external media-combination step failed.
var ErrMuxFailed = errors.New("muxing failed")
