package store

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/vibedl/vibedl/internal/domain"
)

// HistoryRecord is one finished download, completed or failed.
type HistoryRecord struct {
	ID         string    `json:"id"`
	Handle     string    `json:"handle"`
	SourceURL  string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status"`
	SizeBytes  int64     `json:"size_bytes"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// RecordOutcome persists a job's terminal outcome.
func (s *PersistentStore) RecordOutcome(job *domain.Job, title string, sizeBytes int64) error {
	query := `INSERT INTO download_history (id, handle, source_url, title, status, size_bytes, error, finished_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		ksuid.New().String(),
		job.Handle,
		job.SourceURL,
		title,
		string(job.State),
		sizeBytes,
		job.Error,
		job.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record download outcome: %w", err)
	}
	return nil
}

// RecentHistory returns the latest finished downloads, newest first.
func (s *PersistentStore) RecentHistory(limit int) ([]HistoryRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, handle, source_url, title, status, size_bytes, error, finished_at
		FROM download_history
		ORDER BY finished_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.Handle, &rec.SourceURL, &rec.Title,
			&rec.Status, &rec.SizeBytes, &rec.Error, &rec.FinishedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// PruneBefore deletes history rows finished before the cutoff and returns
// how many were removed. Called by the retention sweeper.
func (s *PersistentStore) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM download_history WHERE finished_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
