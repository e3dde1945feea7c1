package feedback

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyeonwoo-dev/qcgate/internal/store"
)

// ErrNotFound is returned when a feedback record does not exist.
var ErrNotFound = errors.New("feedback: record not found")

// Store persists feedback records.
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

// NewStore wires the feedback store to the shared database.
func NewStore(db *store.DB, opts ...StoreOption) *Store {
	s := &Store{db: db.SQL(), clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Save validates and inserts a record, assigning its ID and timestamp.
// There is no idempotency key; retrying a submission inserts a second
// record.
func (s *Store) Save(rec Record) (Record, error) {
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.clock()
	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("feedback: encode record: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO feedback (id, request_id, project_id, type, severity, priority, title, assignee, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, rec.ProjectID, string(rec.Type), string(rec.Severity),
		string(rec.Priority), rec.Title, rec.Assignee, string(payload), rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("feedback: save record: %w", err)
	}
	return rec, nil
}

// Get reads one record by ID.
func (s *Store) Get(id string) (Record, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM feedback WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("feedback: get record: %w", err)
	}
	return decodeRecord(payload)
}

// ListByRequest returns a request's records, oldest first.
func (s *Store) ListByRequest(requestID string) ([]Record, error) {
	rows, err := s.db.Query(`SELECT payload FROM feedback WHERE request_id = ? ORDER BY created_at, id`,
		requestID)
	if err != nil {
		return nil, fmt.Errorf("feedback: list records: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("feedback: scan record: %w", err)
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountBySeverity tallies a request's records per severity. The report
// prefill consumes this.
func (s *Store) CountBySeverity(requestID string) (map[Severity]int, error) {
	rows, err := s.db.Query(`SELECT severity, COUNT(*) FROM feedback WHERE request_id = ? GROUP BY severity`,
		requestID)
	if err != nil {
		return nil, fmt.Errorf("feedback: count by severity: %w", err)
	}
	defer rows.Close()
	counts := map[Severity]int{}
	for rows.Next() {
		var (
			severity string
			count    int
		)
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("feedback: scan count: %w", err)
		}
		counts[Severity(severity)] = count
	}
	return counts, rows.Err()
}

func decodeRecord(payload string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return Record{}, fmt.Errorf("feedback: decode record: %w", err)
	}
	return rec, nil
}
