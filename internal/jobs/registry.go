package jobs

import (
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/vibedl/vibedl/internal/domain"
)

// Registry is the single source of truth for download jobs. A job lives in
// exactly one of the two tables: inflight while its goroutine is working,
// completed once it reaches a terminal state, gone after the sweeper
// reclaims it. Handles are never reused.
type Registry struct {
	mu        sync.RWMutex
	inflight  map[string]*domain.Job
	completed map[string]*domain.Job
}

func NewRegistry() *Registry {
	return &Registry{
		inflight:  make(map[string]*domain.Job),
		completed: make(map[string]*domain.Job),
	}
}

// Submit allocates a fresh handle and inserts the in-flight job. Spawning
// the goroutine that will drive it is the caller's business.
func (r *Registry) Submit(sourceURL string) string {
	handle := ksuid.New().String()

	r.mu.Lock()
	r.inflight[handle] = &domain.Job{
		Handle:    handle,
		State:     domain.StateDownloading,
		Progress:  0,
		SourceURL: sourceURL,
		StartedAt: time.Now(),
	}
	r.mu.Unlock()

	return handle
}

// ReportProgress overwrites the job's progress. Unknown or already-terminal
// handles are a no-op: the owning goroutine may race a sweep, and yt-dlp
// keeps emitting progress lines briefly after the merge step starts.
func (r *Registry) ReportProgress(handle string, percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.inflight[handle]
	if !ok || job.State != domain.StateDownloading {
		return
	}
	if percent > job.Progress {
		job.Progress = percent
	}
}

// MarkProcessing transitions downloading -> processing and pins progress
// to 100. No-op for unknown handles.
func (r *Registry) MarkProcessing(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.inflight[handle]
	if !ok || job.State != domain.StateDownloading {
		return
	}
	job.State = domain.StateProcessing
	job.Progress = 100
}

// Complete moves the job to the completed table. Each handle's goroutine
// performs exactly one terminal write, so a second call is a caller bug.
func (r *Registry) Complete(handle, artifactPath, downloadURL string) {
	r.finalize(handle, func(job *domain.Job) {
		job.State = domain.StateCompleted
		job.Progress = 100
		job.Result = &domain.JobResult{
			ArtifactPath: artifactPath,
			DownloadURL:  downloadURL,
		}
	})
}

// Fail moves the job to the completed table with the failure cause.
func (r *Registry) Fail(handle, reason string) {
	r.finalize(handle, func(job *domain.Job) {
		job.State = domain.StateFailed
		job.Error = reason
	})
}

func (r *Registry) finalize(handle string, mutate func(*domain.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.inflight[handle]
	if !ok {
		return
	}
	delete(r.inflight, handle)

	mutate(job)
	job.CompletedAt = time.Now()
	r.completed[handle] = job
}

// Status returns a read-only snapshot of the job, checking the in-flight
// table first. domain.ErrNotFound means the handle was never issued or has
// already been reclaimed past the retention window.
func (r *Registry) Status(handle string) (domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if job, ok := r.inflight[handle]; ok {
		return *job, nil
	}
	if job, ok := r.completed[handle]; ok {
		return *job, nil
	}
	return domain.Job{}, domain.ErrNotFound
}

// EvictCompletedBefore removes terminal jobs whose CompletedAt is older
// than the cutoff and returns the evicted records so the sweeper can log
// them. In-flight jobs are never evicted.
func (r *Registry) EvictCompletedBefore(cutoff time.Time) []*domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*domain.Job
	for handle, job := range r.completed {
		if job.CompletedAt.Before(cutoff) {
			delete(r.completed, handle)
			evicted = append(evicted, job)
		}
	}
	return evicted
}

// Counts reports the table sizes, for the health endpoint.
func (r *Registry) Counts() (inflight, completed int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.inflight), len(r.completed)
}
