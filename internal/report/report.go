// Package report implements the verification report QA submits to close
// out execution: dimension scores, issue counts, and a deployment
// recommendation. Submitting the report is the approval action that moves
// the project from QA verification into final approval.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Recommendation is the reviewer's deployment verdict.
type Recommendation string

const (
	RecommendApprove     Recommendation = "approve"
	RecommendConditional Recommendation = "conditional"
	RecommendReject      Recommendation = "reject"
)

// Validate rejects verdicts outside the enum.
func (r Recommendation) Validate() error {
	switch r {
	case RecommendApprove, RecommendConditional, RecommendReject:
		return nil
	default:
		return fmt.Errorf("report: unknown recommendation %q", string(r))
	}
}

// DimensionScores breaks the quality assessment down per dimension, each
// on a 0-100 scale.
type DimensionScores struct {
	Functionality int `json:"functionality"`
	Reliability   int `json:"reliability"`
	Usability     int `json:"usability"`
	Security      int `json:"security"`
}

// IssueCounts tallies open feedback by severity.
type IssueCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total sums the severity buckets.
func (c IssueCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// Report is the submittable verification document. Prefilled fields stay
// editable until submission.
type Report struct {
	ID                   string          `json:"id"`
	RequestID            string          `json:"request_id"`
	ProjectID            string          `json:"project_id"`
	Scores               DimensionScores `json:"scores"`
	Issues               IssueCounts     `json:"issues"`
	TestExecutionSummary string          `json:"test_execution_summary"`
	Recommendations      string          `json:"recommendations"`
	Deployment           Recommendation  `json:"deployment"`
	ApprovalNotes        string          `json:"approval_notes,omitempty"`
	CreatedAt            time.Time       `json:"created_at,omitempty"`
}

// Validate enforces submission requirements.
func (r Report) Validate() error {
	if strings.TrimSpace(r.RequestID) == "" {
		return fmt.Errorf("report: request id is required")
	}
	if strings.TrimSpace(r.TestExecutionSummary) == "" {
		return fmt.Errorf("report: test execution summary is required")
	}
	if strings.TrimSpace(r.Recommendations) == "" {
		return fmt.Errorf("report: recommendations are required")
	}
	return r.Deployment.Validate()
}

// approvalNotes composes the human-readable note stored next to the
// report and shown in approval history.
func (r Report) approvalNotes() string {
	return fmt.Sprintf("QA verification %s: functionality %d, reliability %d, usability %d, security %d; %d open issues (%d critical, %d high)",
		r.Deployment, r.Scores.Functionality, r.Scores.Reliability,
		r.Scores.Usability, r.Scores.Security, r.Issues.Total(),
		r.Issues.Critical, r.Issues.High)
}
