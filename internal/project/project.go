// Package project models projects, their QC verification requests, and the
// persistent state store behind both. All lifecycle stage mutations go
// through Store.Advance / Suspend / Resume / Cancel so the stage rules are
// enforced in exactly one place.
package project

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyeonwoo-dev/qcgate/internal/stage"
)

// Urgency grades how pressing a project is.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Validate rejects urgency values outside the enum.
func (u Urgency) Validate() error {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return nil
	default:
		return fmt.Errorf("project: unknown urgency %q", u)
	}
}

// Project is one tracked work item moving through the lifecycle.
type Project struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Stage             stage.Code `json:"stage"`
	PriorStage        stage.Code `json:"prior_stage,omitempty"`
	Urgency           Urgency    `json:"urgency"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	AssignedPE        string     `json:"assigned_pe,omitempty"`
	OriginalDeveloper string     `json:"original_developer,omitempty"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// RequestStatus enumerates the QC request lifecycle.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestInProgress RequestStatus = "in_progress"
	RequestComplete   RequestStatus = "complete"
	RequestRejected   RequestStatus = "rejected"
)

// Request is one QA verification request raised against a project. Test
// plans, execution progress, and feedback all key off its ID.
type Request struct {
	ID           string        `json:"id"`
	ProjectID    string        `json:"project_id"`
	Title        string        `json:"title"`
	Status       RequestStatus `json:"status"`
	QualityScore *int          `json:"quality_score,omitempty"`
	RequestedAt  time.Time     `json:"requested_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// NewProject validates intake fields and builds a draft project.
func NewProject(id, name string, urgency Urgency, deadline *time.Time, now time.Time) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("project: name is required")
	}
	if urgency == "" {
		urgency = UrgencyMedium
	}
	if err := urgency.Validate(); err != nil {
		return Project{}, err
	}
	return Project{
		ID:        id,
		Name:      name,
		Stage:     stage.Draft,
		Urgency:   urgency,
		Deadline:  deadline,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StageInfo resolves the project's current stage descriptor.
func (p Project) StageInfo() stage.Stage {
	s, _ := stage.Lookup(string(p.Stage))
	return s
}
