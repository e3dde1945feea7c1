package execution

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyeonwoo-dev/qcgate/internal/store"
)

// ErrProgressNotFound is returned when no saved progress exists for a
// request.
var ErrProgressNotFound = errors.New("execution: progress not found")

// ErrResultNotFound is returned when no final result exists for a request.
var ErrResultNotFound = errors.New("execution: result not found")

// Store persists in-flight progress snapshots and final results.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// StoreOption customizes the store.
type StoreOption func(*Store)

// StoreWithClock injects a deterministic clock (primarily for tests).
func StoreWithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStore wires the execution store to the shared database.
func NewStore(db *store.DB, opts ...StoreOption) *Store {
	s := &Store{db: db.SQL(), clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SaveProgress upserts the latest snapshot for a request. Last write wins.
func (s *Store) SaveProgress(progress Progress) error {
	if progress.RequestID == "" {
		return fmt.Errorf("execution: progress request id is required")
	}
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("execution: encode progress: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO test_progress (request_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET payload = excluded.payload,
			updated_at = excluded.updated_at`,
		progress.RequestID, string(payload), s.clock())
	if err != nil {
		return fmt.Errorf("execution: save progress: %w", err)
	}
	return nil
}

// LoadProgress reads the saved snapshot for a request.
func (s *Store) LoadProgress(requestID string) (Progress, error) {
	var (
		payload   string
		updatedAt time.Time
	)
	err := s.db.QueryRow(`SELECT payload, updated_at FROM test_progress WHERE request_id = ?`,
		requestID).Scan(&payload, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Progress{}, ErrProgressNotFound
		}
		return Progress{}, fmt.Errorf("execution: load progress: %w", err)
	}
	var progress Progress
	if err := json.Unmarshal([]byte(payload), &progress); err != nil {
		return Progress{}, fmt.Errorf("execution: decode progress: %w", err)
	}
	progress.UpdatedAt = updatedAt
	return progress, nil
}

// ClearProgress removes the saved snapshot once a request completes.
func (s *Store) ClearProgress(requestID string) error {
	if _, err := s.db.Exec(`DELETE FROM test_progress WHERE request_id = ?`, requestID); err != nil {
		return fmt.Errorf("execution: clear progress: %w", err)
	}
	return nil
}

// SaveResult upserts the final execution result for a request.
func (s *Store) SaveResult(result Result) error {
	if err := result.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO executions (request_id, quality_score, passed, failed, pending, summary, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET quality_score = excluded.quality_score,
			passed = excluded.passed, failed = excluded.failed, pending = excluded.pending,
			summary = excluded.summary, finished_at = excluded.finished_at`,
		result.RequestID, result.QualityScore, result.Passed, result.Failed,
		result.Pending, result.Summary, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("execution: save result: %w", err)
	}
	return nil
}

// LoadResult reads the final result for a request.
func (s *Store) LoadResult(requestID string) (Result, error) {
	var result Result
	err := s.db.QueryRow(`SELECT request_id, quality_score, passed, failed, pending, summary, finished_at
		FROM executions WHERE request_id = ?`, requestID).Scan(
		&result.RequestID, &result.QualityScore, &result.Passed, &result.Failed,
		&result.Pending, &result.Summary, &result.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrResultNotFound
		}
		return Result{}, fmt.Errorf("execution: load result: %w", err)
	}
	result.Total = result.Passed + result.Failed + result.Pending
	return result, nil
}
