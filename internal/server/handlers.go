package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/events"
	"github.com/hyeonwoo-dev/qcgate/internal/execution"
	"github.com/hyeonwoo-dev/qcgate/internal/feedback"
	"github.com/hyeonwoo-dev/qcgate/internal/project"
	"github.com/hyeonwoo-dev/qcgate/internal/report"
	"github.com/hyeonwoo-dev/qcgate/internal/testplan"
)

// decodeBody reads and unmarshals a JSON body within the size limit.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			fail(w, http.StatusRequestEntityTooLarge, "payload exceeds limit")
			return false
		}
		fail(w, http.StatusBadRequest, "unable to read body")
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Dashboard.Stats(r.Context())
	if err != nil {
		s.logger.Printf("server: qc stats: %v", err)
		fail(w, http.StatusInternalServerError, "failed to load QC stats")
		return
	}
	respond(w, http.StatusOK, stats)
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.deps.Projects.ListRequests()
	if err != nil {
		s.logger.Printf("server: list requests: %v", err)
		fail(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []project.Request{}
	}
	respond(w, http.StatusOK, requests)
}

// handleSavePlan accepts the flat plan record the planning screens submit.
func (s *Server) handleSavePlan(w http.ResponseWriter, r *http.Request) {
	var rec testplan.Record
	if !s.decodeBody(w, r, &rec) {
		return
	}
	plan := testplan.Expand(rec)
	saved, err := s.deps.Plans.Save(plan)
	if err != nil {
		if errors.Is(err, testplan.ErrEmptyChecklist) {
			fail(w, http.StatusBadRequest, "checklist is empty")
			return
		}
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, testplan.Flatten(saved))
}

func (s *Server) handleLoadPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.deps.Plans.Load(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, testplan.ErrPlanNotFound) {
			fail(w, http.StatusNotFound, "no test plan for request")
			return
		}
		s.logger.Printf("server: load plan: %v", err)
		fail(w, http.StatusInternalServerError, "failed to load test plan")
		return
	}
	respond(w, http.StatusOK, testplan.Flatten(plan))
}

func (s *Server) handleTestSets(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.deps.Catalogue.All())
}

func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	var progress execution.Progress
	if !s.decodeBody(w, r, &progress) {
		return
	}
	progress.RequestID = r.PathValue("id")
	previous, err := s.deps.Executions.LoadProgress(progress.RequestID)
	if err != nil && !errors.Is(err, execution.ErrProgressNotFound) {
		s.logger.Printf("server: load prior progress %s: %v", progress.RequestID, err)
	}
	if err := s.deps.Executions.SaveProgress(progress); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.publishNewFailures(previous, progress)
	respond(w, http.StatusOK, map[string]string{"request_id": progress.RequestID})
}

// publishNewFailures announces every item the incoming snapshot moves into
// failed, mirroring the tracker's transition rule: only the edge into failed
// publishes, a re-saved already-failed item stays quiet.
func (s *Server) publishNewFailures(previous, current execution.Progress) {
	if s.deps.Events == nil {
		return
	}
	prior := make(map[int]execution.Status, len(previous.Items))
	for _, item := range previous.Items {
		prior[item.ID] = item.Status
	}
	for _, item := range current.Items {
		if item.Status != execution.StatusFailed || prior[item.ID] == execution.StatusFailed {
			continue
		}
		evt, err := events.New(events.TypeTestItemFailed, current.RequestID, events.TestItemFailedPayload{
			ItemID:   item.ID,
			Category: item.Category,
			Item:     item.Item,
			Notes:    item.Notes,
		})
		if err != nil {
			s.logger.Printf("server: build failed-item event for %s: %v", current.RequestID, err)
			continue
		}
		if err := s.deps.Events.Publish(evt); err != nil {
			s.logger.Printf("server: publish failed-item event for %s: %v", current.RequestID, err)
		}
	}
}

func (s *Server) handleLoadProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.deps.Executions.LoadProgress(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, execution.ErrProgressNotFound) {
			fail(w, http.StatusNotFound, "no saved progress for request")
			return
		}
		s.logger.Printf("server: load progress: %v", err)
		fail(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	respond(w, http.StatusOK, progress)
}

func (s *Server) handleClearProgress(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if err := s.deps.Executions.ClearProgress(requestID); err != nil {
		s.logger.Printf("server: clear progress: %v", err)
		fail(w, http.StatusInternalServerError, "failed to clear progress")
		return
	}
	respond(w, http.StatusOK, map[string]string{"request_id": requestID})
}

// handleSubmitExecution records the final result: it stores the aggregate,
// marks the request complete with its quality score, and clears the saved
// progress so a finished request cannot be resumed.
func (s *Server) handleSubmitExecution(w http.ResponseWriter, r *http.Request) {
	var result execution.Result
	if !s.decodeBody(w, r, &result) {
		return
	}
	if err := result.Validate(); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if result.FinishedAt.IsZero() {
		result.FinishedAt = s.clock()
	}
	if err := s.deps.Executions.SaveResult(result); err != nil {
		s.logger.Printf("server: save result: %v", err)
		fail(w, http.StatusInternalServerError, "failed to save execution result")
		return
	}
	score := result.QualityScore
	if _, err := s.deps.Projects.SetRequestStatus(result.RequestID, project.RequestComplete, &score); err != nil {
		s.logger.Printf("server: complete request %s: %v", result.RequestID, err)
		fail(w, http.StatusInternalServerError, "failed to complete request")
		return
	}
	if err := s.deps.Executions.ClearProgress(result.RequestID); err != nil {
		// The result is already recorded; stale progress is harmless.
		s.logger.Printf("server: clear progress after submit %s: %v", result.RequestID, err)
	}
	s.deps.Activity.Record(activity.KindExecutionFinished, result.RequestID,
		fmt.Sprintf("score %d (%d passed, %d failed, %d pending)",
			result.QualityScore, result.Passed, result.Failed, result.Pending))
	respond(w, http.StatusOK, result)
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var rec feedback.Record
	if !s.decodeBody(w, r, &rec) {
		return
	}
	saved, err := s.deps.Feedback.Submit(rec)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, saved)
}

func (s *Server) handleFeedbackDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.deps.Feedback.Draft(r.PathValue("id"))
	if !ok {
		fail(w, http.StatusNotFound, "no feedback draft for request")
		return
	}
	respond(w, http.StatusOK, draft)
}

func (s *Server) handleAvailablePEs(w http.ResponseWriter, r *http.Request) {
	pes, err := s.deps.Projects.EligiblePEs(r.PathValue("projectId"))
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			fail(w, http.StatusNotFound, "project not found")
			return
		}
		s.logger.Printf("server: eligible pes: %v", err)
		fail(w, http.StatusInternalServerError, "failed to list eligible PEs")
		return
	}
	if pes == nil {
		pes = []string{}
	}
	respond(w, http.StatusOK, pes)
}

func (s *Server) handleApproveVerification(w http.ResponseWriter, r *http.Request) {
	var rep report.Report
	if !s.decodeBody(w, r, &rep) {
		return
	}
	rep.RequestID = r.PathValue("id")
	saved, err := s.deps.Reports.Submit(rep)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, saved)
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Dashboard.WorkflowCounts(r.Context())
	if err != nil {
		s.logger.Printf("server: workflow counts: %v", err)
		fail(w, http.StatusInternalServerError, "failed to load workflow counts")
		return
	}
	respond(w, http.StatusOK, counts)
}

func (s *Server) handleProjectsByStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Dashboard.ProjectsByStatus(r.Context())
	if err != nil {
		s.logger.Printf("server: projects by status: %v", err)
		fail(w, http.StatusInternalServerError, "failed to load projects")
		return
	}
	respond(w, http.StatusOK, rows)
}
