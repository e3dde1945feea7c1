package feedback

import (
	"fmt"
	"sync"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/events"
	"github.com/hyeonwoo-dev/qcgate/internal/logging"
	"github.com/hyeonwoo-dev/qcgate/internal/project"
)

// Router turns failed-item events into pre-filled drafts and validates
// submissions against the owning project before storage.
type Router struct {
	store    *Store
	projects *project.Store
	activity *activity.Log
	bus      *events.Router
	logger   logging.Printf

	mu     sync.Mutex
	drafts map[string]Record

	sub  events.Subscription
	done chan struct{}
}

// RouterOption customizes the router.
type RouterOption func(*Router)

// RouterWithLogger replaces the router's log sink.
func RouterWithLogger(logger logging.Printf) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter wires feedback composition to the stores and event bus.
func NewRouter(store *Store, projects *project.Store, log *activity.Log, bus *events.Router, opts ...RouterOption) *Router {
	r := &Router{
		store:    store,
		projects: projects,
		activity: log,
		bus:      bus,
		logger:   logging.Nop(),
		drafts:   map[string]Record{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Start subscribes to failed-item events; each one becomes the request's
// current draft, replacing any earlier draft for the same request.
func (r *Router) Start() {
	r.sub = r.bus.Subscribe(events.TypeTestItemFailed)
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		for evt := range r.sub.Events {
			r.handleFailure(evt)
		}
	}()
}

// Stop detaches from the event bus and waits for in-flight handling.
func (r *Router) Stop() {
	if r.done == nil {
		return
	}
	r.sub.Close()
	<-r.done
	r.done = nil
}

func (r *Router) handleFailure(evt events.Event) {
	var payload events.TestItemFailedPayload
	if err := evt.Decode(&payload); err != nil {
		r.logger.Printf("feedback: decode %s event %s: %v", evt.Type, evt.ID, err)
		return
	}
	projectID, developer := r.resolveProject(evt.RequestID)
	draft := ComposeForFailedItem(evt.RequestID, projectID, payload, developer)
	r.mu.Lock()
	r.drafts[evt.RequestID] = draft
	r.mu.Unlock()
}

// resolveProject maps a request to its project and original developer.
// Resolution failures leave the draft without an assignee rather than
// blocking the event.
func (r *Router) resolveProject(requestID string) (projectID, developer string) {
	req, err := r.projects.GetRequest(requestID)
	if err != nil {
		r.logger.Printf("feedback: resolve request %s: %v", requestID, err)
		return "", ""
	}
	p, err := r.projects.Get(req.ProjectID)
	if err != nil {
		r.logger.Printf("feedback: resolve project %s: %v", req.ProjectID, err)
		return req.ProjectID, ""
	}
	return p.ID, p.OriginalDeveloper
}

// Draft returns the current pre-filled record for a request, if any.
func (r *Router) Draft(requestID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	draft, ok := r.drafts[requestID]
	return draft, ok
}

// Submit validates a record, checks the assignee against the project's
// eligible PEs, stores it, and announces it. A successful submission
// clears the request's draft.
func (r *Router) Submit(rec Record) (Record, error) {
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	if rec.ProjectID == "" {
		req, err := r.projects.GetRequest(rec.RequestID)
		if err != nil {
			return Record{}, fmt.Errorf("feedback: resolve request %s: %w", rec.RequestID, err)
		}
		rec.ProjectID = req.ProjectID
	}
	eligible, err := r.projects.EligiblePEs(rec.ProjectID)
	if err != nil {
		return Record{}, fmt.Errorf("feedback: eligible PEs for %s: %w", rec.ProjectID, err)
	}
	if !contains(eligible, rec.Assignee) {
		return Record{}, fmt.Errorf("feedback: assignee %q is not an eligible PE for project %s", rec.Assignee, rec.ProjectID)
	}

	saved, err := r.store.Save(rec)
	if err != nil {
		return Record{}, err
	}
	r.activity.Record(activity.KindFeedbackSubmitted, saved.RequestID,
		fmt.Sprintf("%s (%s/%s) assigned to %s", saved.Title, saved.Type, saved.Severity, saved.Assignee))
	r.announce(saved)

	r.mu.Lock()
	delete(r.drafts, saved.RequestID)
	r.mu.Unlock()
	return saved, nil
}

func (r *Router) announce(rec Record) {
	evt, err := events.New(events.TypeFeedbackSubmitted, rec.RequestID, rec)
	if err != nil {
		r.logger.Printf("feedback: build submitted event for %s: %v", rec.RequestID, err)
		return
	}
	evt.ProjectID = rec.ProjectID
	if err := r.bus.Publish(evt); err != nil {
		r.logger.Printf("feedback: publish submitted event for %s: %v", rec.RequestID, err)
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
