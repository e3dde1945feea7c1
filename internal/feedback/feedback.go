// Package feedback builds and routes structured issue records raised
// against QC requests. Failed checklist items arrive as events from the
// execution tracker and become pre-filled bug drafts; QA can also open a
// general improvement record by hand.
package feedback

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies a feedback record.
type Type string

const (
	TypeBug         Type = "bug"
	TypeImprovement Type = "improvement"
	TypeFeature     Type = "feature"
	TypePerformance Type = "performance"
)

// Validate rejects types outside the enum.
func (t Type) Validate() error {
	switch t {
	case TypeBug, TypeImprovement, TypeFeature, TypePerformance:
		return nil
	default:
		return fmt.Errorf("feedback: unknown type %q", string(t))
	}
}

// Severity grades impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Validate rejects severities outside the enum.
func (s Severity) Validate() error {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("feedback: unknown severity %q", string(s))
	}
}

// Priority grades how soon the assignee should act.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Validate rejects priorities outside the enum.
func (p Priority) Validate() error {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return nil
	default:
		return fmt.Errorf("feedback: unknown priority %q", string(p))
	}
}

// Record is one issue raised against a request. The enum fields are
// validated on submission rather than trusted from the wire.
type Record struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	ProjectID   string    `json:"project_id"`
	Type        Type      `json:"type"`
	Severity    Severity  `json:"severity"`
	Priority    Priority  `json:"priority"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ReproSteps  string    `json:"repro_steps,omitempty"`
	Expected    string    `json:"expected,omitempty"`
	Actual      string    `json:"actual,omitempty"`
	Environment string    `json:"environment,omitempty"`
	Assignee    string    `json:"assignee"`
	QANotes     string    `json:"qa_notes,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Validate enforces submission requirements.
func (r Record) Validate() error {
	if strings.TrimSpace(r.RequestID) == "" {
		return fmt.Errorf("feedback: request id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("feedback: title is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("feedback: description is required")
	}
	if strings.TrimSpace(r.Assignee) == "" {
		return fmt.Errorf("feedback: assignee is required")
	}
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if err := r.Severity.Validate(); err != nil {
		return err
	}
	return r.Priority.Validate()
}
