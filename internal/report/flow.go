package report

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/events"
	"github.com/hyeonwoo-dev/qcgate/internal/execution"
	"github.com/hyeonwoo-dev/qcgate/internal/feedback"
	"github.com/hyeonwoo-dev/qcgate/internal/logging"
	"github.com/hyeonwoo-dev/qcgate/internal/project"
	"github.com/hyeonwoo-dev/qcgate/internal/stage"
	"github.com/hyeonwoo-dev/qcgate/internal/store"
)

// ErrNotFound is returned when no report exists for a request.
var ErrNotFound = errors.New("report: not found")

// Flow prefills, validates, and submits verification reports, and owns
// the stage advance that a submission implies.
type Flow struct {
	db         *sql.DB
	executions *execution.Store
	feedback   *feedback.Store
	projects   *project.Store
	activity   *activity.Log
	bus        *events.Router
	logger     logging.Printf
	clock      func() time.Time
}

// FlowOption customizes the flow.
type FlowOption func(*Flow)

// FlowWithClock injects a deterministic clock (primarily for tests).
func FlowWithClock(clock func() time.Time) FlowOption {
	return func(f *Flow) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// FlowWithLogger replaces the flow's log sink.
func FlowWithLogger(logger logging.Printf) FlowOption {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFlow wires the report flow to its collaborating stores.
func NewFlow(db *store.DB, executions *execution.Store, fb *feedback.Store, projects *project.Store, log *activity.Log, bus *events.Router, opts ...FlowOption) *Flow {
	f := &Flow{
		db:         db.SQL(),
		executions: executions,
		feedback:   fb,
		projects:   projects,
		activity:   log,
		bus:        bus,
		logger:     logging.Nop(),
		clock:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Prefill drafts a report from the finished execution and the request's
// feedback counts. Every field stays editable before submission.
func (f *Flow) Prefill(requestID string) (Report, error) {
	result, err := f.executions.LoadResult(requestID)
	if err != nil {
		return Report{}, err
	}
	counts, err := f.feedback.CountBySeverity(requestID)
	if err != nil {
		return Report{}, err
	}
	req, err := f.projects.GetRequest(requestID)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		RequestID: requestID,
		ProjectID: req.ProjectID,
		Scores: DimensionScores{
			Functionality: result.QualityScore,
			Reliability:   result.QualityScore,
			Usability:     result.QualityScore,
			Security:      result.QualityScore,
		},
		Issues: IssueCounts{
			Critical: counts[feedback.SeverityCritical],
			High:     counts[feedback.SeverityHigh],
			Medium:   counts[feedback.SeverityMedium],
			Low:      counts[feedback.SeverityLow],
		},
		TestExecutionSummary: fmt.Sprintf("%d of %d checklist items passed, %d failed, %d pending; quality score %d",
			result.Passed, result.Total, result.Failed, result.Pending, result.QualityScore),
	}
	rep.Deployment = suggestRecommendation(result, rep.Issues)
	return rep, nil
}

// suggestRecommendation proposes a verdict from the raw numbers. QA can
// override it before submission.
func suggestRecommendation(result execution.Result, issues IssueCounts) Recommendation {
	switch {
	case issues.Critical > 0 || result.QualityScore < 60:
		return RecommendReject
	case issues.High > 0 || result.Pending > 0 || result.QualityScore < 85:
		return RecommendConditional
	default:
		return RecommendApprove
	}
}

// Submit validates and stores the report, then applies the verdict: an
// approve or conditional verdict advances the project from QA
// verification to final approval, a reject marks the request rejected and
// leaves the stage alone.
func (f *Flow) Submit(rep Report) (Report, error) {
	if err := rep.Validate(); err != nil {
		return Report{}, err
	}
	if rep.ProjectID == "" {
		req, err := f.projects.GetRequest(rep.RequestID)
		if err != nil {
			return Report{}, fmt.Errorf("report: resolve request %s: %w", rep.RequestID, err)
		}
		rep.ProjectID = req.ProjectID
	}
	rep.ID = uuid.NewString()
	rep.ApprovalNotes = rep.approvalNotes()
	rep.CreatedAt = f.clock()

	payload, err := json.Marshal(rep)
	if err != nil {
		return Report{}, fmt.Errorf("report: encode: %w", err)
	}
	_, err = f.db.Exec(`INSERT INTO verification_reports (id, request_id, project_id, payload, approval_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.RequestID, rep.ProjectID, string(payload), rep.ApprovalNotes, rep.CreatedAt)
	if err != nil {
		return Report{}, fmt.Errorf("report: save: %w", err)
	}

	if rep.Deployment == RecommendReject {
		if _, err := f.projects.SetRequestStatus(rep.RequestID, project.RequestRejected, nil); err != nil {
			return Report{}, fmt.Errorf("report: mark request rejected: %w", err)
		}
		f.activity.Record(activity.KindVerificationApproved, rep.RequestID,
			"verification rejected: "+rep.ApprovalNotes)
		return rep, nil
	}

	if _, err := f.projects.Advance(rep.ProjectID, stage.FinalApproval); err != nil {
		return Report{}, fmt.Errorf("report: advance project %s: %w", rep.ProjectID, err)
	}
	f.activity.Record(activity.KindVerificationApproved, rep.RequestID, rep.ApprovalNotes)
	f.announce(rep)
	return rep, nil
}

// Latest reads the most recent report for a request.
func (f *Flow) Latest(requestID string) (Report, error) {
	var payload string
	err := f.db.QueryRow(`SELECT payload FROM verification_reports WHERE request_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, requestID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, fmt.Errorf("report: load: %w", err)
	}
	var rep Report
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return Report{}, fmt.Errorf("report: decode: %w", err)
	}
	return rep, nil
}

func (f *Flow) announce(rep Report) {
	evt, err := events.New(events.TypeVerificationApproved, rep.RequestID, rep)
	if err != nil {
		f.logger.Printf("report: build approved event for %s: %v", rep.RequestID, err)
		return
	}
	evt.ProjectID = rep.ProjectID
	if err := f.bus.Publish(evt); err != nil {
		f.logger.Printf("report: publish approved event for %s: %v", rep.RequestID, err)
	}
}
