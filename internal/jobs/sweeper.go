package jobs

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/vibedl/vibedl/internal/infra/logger"
)

// HistoryPruner is implemented by the download-history store. Optional.
type HistoryPruner interface {
	PruneBefore(cutoff time.Time) (int64, error)
}

// Sweeper reclaims on-disk artifacts and terminal job records older than
// the retention window. Both passes are best-effort: individual failures
// are logged and skipped, and a panic in one cycle never stops the next.
type Sweeper struct {
	dirs      []string
	retention time.Duration
	interval  time.Duration

	registry *Registry
	history  HistoryPruner
	// historyRetention is typically much longer than the artifact window.
	historyRetention time.Duration

	logger *logger.Logger
}

func NewSweeper(dirs []string, retention, interval time.Duration, reg *Registry, log *logger.Logger) *Sweeper {
	return &Sweeper{
		dirs:      dirs,
		retention: retention,
		interval:  interval,
		registry:  reg,
		logger:    log,
	}
}

// WithHistory attaches a history store to prune alongside the sweeps.
func (s *Sweeper) WithHistory(h HistoryPruner, retention time.Duration) *Sweeper {
	s.history = h
	s.historyRetention = retention
	return s
}

// Run loops until the context is cancelled. Start it in its own goroutine
// and join it on shutdown.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[Sweeper] recovered from panic: %v", r)
		}
	}()

	cutoff := now.Add(-s.retention)

	for _, dir := range s.dirs {
		s.sweepDir(dir, cutoff)
	}

	evicted := s.registry.EvictCompletedBefore(cutoff)
	if len(evicted) > 0 {
		s.logger.Info("[Sweeper] evicted %d terminal job(s)", len(evicted))
	}

	if s.history != nil {
		pruned, err := s.history.PruneBefore(now.Add(-s.historyRetention))
		if err != nil {
			s.logger.Warn("[Sweeper] history prune failed: %v", err)
		} else if pruned > 0 {
			s.logger.Info("[Sweeper] pruned %d history record(s)", pruned)
		}
	}
}

// sweepDir deletes regular files whose mtime is older than the cutoff.
func (s *Sweeper) sweepDir(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("[Sweeper] cannot read %s: %v", dir, err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				// Permission trouble or a concurrent removal; next cycle
				// gets another shot.
				s.logger.Warn("[Sweeper] failed to delete %s: %v", path, err)
				continue
			}
			s.logger.Debug("[Sweeper] deleted stale artifact %s", path)
		}
	}
}
