package testplan

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyeonwoo-dev/qcgate/internal/store"
)

// ErrPlanNotFound is returned when no plan is stored for a request.
var ErrPlanNotFound = errors.New("testplan: plan not found")

// Store persists plans as flat records keyed by request ID.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// StoreOption customizes the store.
type StoreOption func(*Store)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStore wires the plan store to the shared database.
func NewStore(db *store.DB, opts ...StoreOption) *Store {
	s := &Store{db: db.SQL(), clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Save validates and upserts the plan. Re-saving replaces the previous
// plan for the request (the explicit re-edit flow).
func (s *Store) Save(plan Plan) (Plan, error) {
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	now := s.clock()
	payload, err := json.Marshal(Flatten(plan))
	if err != nil {
		return Plan{}, fmt.Errorf("testplan: encode plan: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO test_plans (request_id, payload, total_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET payload = excluded.payload,
			total_hours = excluded.total_hours, updated_at = excluded.updated_at`,
		plan.RequestID, string(payload), plan.TotalEstimatedHours, now, now)
	if err != nil {
		return Plan{}, fmt.Errorf("testplan: save plan: %w", err)
	}
	plan.CreatedAt = now
	plan.UpdatedAt = now
	return plan, nil
}

// Load reads the plan stored for a request.
func (s *Store) Load(requestID string) (Plan, error) {
	var (
		payload   string
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.db.QueryRow(`SELECT payload, created_at, updated_at FROM test_plans WHERE request_id = ?`,
		requestID).Scan(&payload, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Plan{}, ErrPlanNotFound
		}
		return Plan{}, fmt.Errorf("testplan: load plan: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return Plan{}, fmt.Errorf("testplan: decode plan: %w", err)
	}
	plan := Expand(rec)
	plan.CreatedAt = createdAt
	plan.UpdatedAt = updatedAt
	return plan, nil
}
