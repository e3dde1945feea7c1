// Package execution tracks QA working through a test checklist: per-item
// pass/fail state with notes, incremental progress persistence so a session
// survives restarts, and the final quality score submission.
package execution

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Status is the execution state of one checklist item.
type Status string

const (
	StatusPending Status = "pending"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Validate rejects statuses outside the known set.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusPassed, StatusFailed:
		return nil
	default:
		return fmt.Errorf("execution: invalid status %q", string(s))
	}
}

// Item is one checklist row under execution. The ID is the row's index in
// the originating checklist.
type Item struct {
	ID          int        `json:"id"`
	Category    string     `json:"category"`
	Item        string     `json:"item"`
	Description string     `json:"description,omitempty"`
	Required    bool       `json:"required"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
}

// Progress is the persistable snapshot of a session: every item plus the
// category the tester was looking at.
type Progress struct {
	RequestID       string    `json:"request_id"`
	CurrentCategory int       `json:"current_category"`
	Items           []Item    `json:"items"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Result is the aggregate outcome submitted when execution finishes.
type Result struct {
	RequestID    string    `json:"request_id"`
	QualityScore int       `json:"quality_score"`
	Passed       int       `json:"passed"`
	Failed       int       `json:"failed"`
	Pending      int       `json:"pending"`
	Total        int       `json:"total"`
	Summary      string    `json:"summary,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Validate enforces submission requirements on a result.
func (r Result) Validate() error {
	if strings.TrimSpace(r.RequestID) == "" {
		return fmt.Errorf("execution: request id is required")
	}
	if r.Total <= 0 {
		return fmt.Errorf("execution: result has no items")
	}
	return nil
}

// QualityScore computes the pass-rate score with the failure penalty: the
// rounded pass percentage minus 5 points per failed item, penalty capped at
// 30, clamped to [0, 100].
func QualityScore(passed, failed, total int) int {
	if total <= 0 {
		return 0
	}
	score := int(math.Round(float64(passed) / float64(total) * 100))
	penalty := failed * 5
	if penalty > 30 {
		penalty = 30
	}
	score -= penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
