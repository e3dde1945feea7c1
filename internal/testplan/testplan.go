// Package testplan implements the three step test planning wizard: pick
// test items per category, pick standardized test sets, then review the
// derived checklist. The checklist derivation is deterministic so the same
// selections always produce the same plan.
package testplan

import (
	"fmt"
	"strings"
	"time"
)

// Category labels for checklist rows.
const (
	CategoryBasic         = "basic"
	CategoryPerformance   = "performance"
	CategorySecurity      = "security"
	CategoryCompatibility = "compatibility"
	CategoryCustom        = "custom"
)

// Per-row hour estimates by category.
const (
	basicItemHours         = 2
	performanceItemHours   = 4
	securityItemHours      = 3
	compatibilityItemHours = 2
	customItemHours        = 1
)

// UsabilitySelection captures step-1 usability choices. Usability items are
// reviewed manually by QA and do not contribute derived checklist rows.
type UsabilitySelection struct {
	Enabled bool     `json:"enabled"`
	Aspects []string `json:"aspects,omitempty"`
}

// CompatibilitySelection captures step-1 compatibility choices.
type CompatibilitySelection struct {
	Enabled   bool     `json:"enabled"`
	Platforms []string `json:"platforms,omitempty"`
}

// Selections holds the step-1 state of the wizard.
type Selections struct {
	Basic         []string               `json:"basic"`
	Performance   []string               `json:"performance"`
	Security      []string               `json:"security"`
	Usability     UsabilitySelection     `json:"usability"`
	Compatibility CompatibilitySelection `json:"compatibility"`
}

// ChecklistItem is one derived row of the final plan.
type ChecklistItem struct {
	Category       string `json:"category"`
	Item           string `json:"item"`
	Description    string `json:"description,omitempty"`
	Required       bool   `json:"required"`
	EstimatedHours int    `json:"estimated_hours"`
}

// Plan is the finished product of the wizard, keyed by the owning QC
// request.
type Plan struct {
	RequestID           string          `json:"request_id"`
	Selections          Selections      `json:"selections"`
	SetIDs              []string        `json:"set_ids"`
	CustomItems         []string        `json:"custom_items"`
	Checklist           []ChecklistItem `json:"checklist"`
	TotalEstimatedHours int             `json:"total_estimated_hours"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ErrEmptyChecklist rejects plan submission with nothing to execute.
var ErrEmptyChecklist = fmt.Errorf("testplan: checklist is empty")

// Validate enforces submission requirements.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.RequestID) == "" {
		return fmt.Errorf("testplan: request id is required")
	}
	if len(p.Checklist) == 0 {
		return ErrEmptyChecklist
	}
	return nil
}

// toggle flips membership of value in values with set semantics: values
// appear at most once and toggling a present value removes it.
func toggle(values []string, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return values
	}
	for i, existing := range values {
		if existing == value {
			return append(values[:i:i], values[i+1:]...)
		}
	}
	return append(values, value)
}
