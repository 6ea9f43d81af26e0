package controllers

// ErrorResponse is the uniform failure body: every failed request carries
// at least an "error" string.
type ErrorResponse struct {
	Error string `json:"error"`
}

type SubmitResponse struct {
	DownloadID string `json:"download_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// StatusResponse carries progress only while the job is in flight,
// download_url or error only once terminal.
type StatusResponse struct {
	DownloadID  string   `json:"download_id"`
	Status      string   `json:"status"`
	Progress    *float64 `json:"progress,omitempty"`
	URL         string   `json:"url"`
	DownloadURL string   `json:"download_url,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type ProxyTestResponse struct {
	Status       string `json:"status"`
	ProxyWorking bool   `json:"proxy_working"`
	StatusCode   int    `json:"status_code,omitempty"`
	Error        string `json:"error,omitempty"`
	Message      string `json:"message"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	ProxyWorking  bool   `json:"proxy_working"`
	JobsInFlight  int    `json:"jobs_in_flight"`
	JobsCompleted int    `json:"jobs_completed"`
}
