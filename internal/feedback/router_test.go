package feedback

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/events"
	"github.com/hyeonwoo-dev/qcgate/internal/project"
	"github.com/hyeonwoo-dev/qcgate/internal/store"
)

type fixture struct {
	router   *Router
	store    *Store
	projects *project.Store
	bus      *events.Router
	request  project.Request
	proj     project.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log, err := activity.New(filepath.Join(t.TempDir(), "activity.log"))
	if err != nil {
		t.Fatalf("activity log: %v", err)
	}

	projects := project.NewStore(db)
	p, err := projects.Create("Payment Gateway", project.UrgencyHigh, nil)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := projects.Assign(p.ID, "dev-lee"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := projects.AddEligiblePE(p.ID, "pe-park"); err != nil {
		t.Fatalf("add eligible pe: %v", err)
	}
	req, err := projects.CreateRequest(p.ID, "Release 2.4 verification")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	bus := events.NewRouter()
	fx := &fixture{
		store:    NewStore(db),
		projects: projects,
		bus:      bus,
		request:  req,
		proj:     p,
	}
	fx.router = NewRouter(fx.store, projects, log, bus)
	return fx
}

func TestRouterDraftFromFailureEvent(t *testing.T) {
	fx := newFixture(t)
	fx.router.Start()
	defer fx.router.Stop()

	evt, err := events.New(events.TypeTestItemFailed, fx.request.ID, events.TestItemFailedPayload{
		ItemID:   2,
		Category: "performance",
		Item:     "page load time",
		Notes:    "p95 over budget",
	})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if err := fx.bus.Publish(evt); err != nil {
		t.Fatalf("publish: %v", err)
	}

	draft, ok := waitForDraft(t, fx.router, fx.request.ID)
	if !ok {
		t.Fatal("no draft composed")
	}
	if draft.Type != TypeBug || draft.Severity != SeverityHigh {
		t.Fatalf("draft classification = %s/%s", draft.Type, draft.Severity)
	}
	if draft.Assignee != "dev-lee" {
		t.Fatalf("draft assignee = %q, want original developer", draft.Assignee)
	}
	if draft.ProjectID != fx.proj.ID {
		t.Fatalf("draft project = %q, want %q", draft.ProjectID, fx.proj.ID)
	}
}

func TestRouterSubmitStoresAndAnnounces(t *testing.T) {
	fx := newFixture(t)
	sub := fx.bus.Subscribe(events.TypeFeedbackSubmitted)
	defer sub.Close()

	rec := Record{
		RequestID:   fx.request.ID,
		Type:        TypeBug,
		Severity:    SeverityHigh,
		Priority:    PriorityHigh,
		Title:       "login broken",
		Description: "session cookie never set",
		Assignee:    "pe-park",
	}
	saved, err := fx.router.Submit(rec)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("saved record not stamped: %+v", saved)
	}
	if saved.ProjectID != fx.proj.ID {
		t.Fatalf("project id = %q, want resolved %q", saved.ProjectID, fx.proj.ID)
	}

	listed, err := fx.store.ListByRequest(fx.request.ID)
	if err != nil {
		t.Fatalf("ListByRequest: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != saved.ID {
		t.Fatalf("stored records = %+v", listed)
	}

	select {
	case evt := <-sub.Events:
		if evt.Type != events.TypeFeedbackSubmitted || evt.RequestID != fx.request.ID {
			t.Fatalf("announced event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no feedback_submitted event announced")
	}
}

func TestRouterSubmitRejectsIneligibleAssignee(t *testing.T) {
	fx := newFixture(t)
	rec := Record{
		RequestID:   fx.request.ID,
		ProjectID:   fx.proj.ID,
		Type:        TypeBug,
		Severity:    SeverityHigh,
		Priority:    PriorityHigh,
		Title:       "login broken",
		Description: "session cookie never set",
		Assignee:    "pe-stranger",
	}
	if _, err := fx.router.Submit(rec); err == nil {
		t.Fatal("ineligible assignee accepted")
	}
	listed, err := fx.store.ListByRequest(fx.request.ID)
	if err != nil {
		t.Fatalf("ListByRequest: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("rejected submission stored: %+v", listed)
	}
}

func TestRouterSubmitClearsDraft(t *testing.T) {
	fx := newFixture(t)
	fx.router.Start()
	defer fx.router.Stop()

	evt, err := events.New(events.TypeTestItemFailed, fx.request.ID, events.TestItemFailedPayload{
		ItemID: 0, Category: "basic", Item: "login flow",
	})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if err := fx.bus.Publish(evt); err != nil {
		t.Fatalf("publish: %v", err)
	}
	draft, ok := waitForDraft(t, fx.router, fx.request.ID)
	if !ok {
		t.Fatal("no draft composed")
	}
	if _, err := fx.router.Submit(draft); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, ok := fx.router.Draft(fx.request.ID); ok {
		t.Fatal("draft survived submission")
	}
}

func TestStoreCountBySeverity(t *testing.T) {
	fx := newFixture(t)
	base := Record{
		RequestID:   fx.request.ID,
		ProjectID:   fx.proj.ID,
		Type:        TypeBug,
		Priority:    PriorityHigh,
		Title:       "t",
		Description: "d",
		Assignee:    "dev-lee",
	}
	for _, sev := range []Severity{SeverityHigh, SeverityHigh, SeverityMedium} {
		rec := base
		rec.Severity = sev
		if _, err := fx.store.Save(rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	counts, err := fx.store.CountBySeverity(fx.request.ID)
	if err != nil {
		t.Fatalf("CountBySeverity: %v", err)
	}
	if counts[SeverityHigh] != 2 || counts[SeverityMedium] != 1 || counts[SeverityCritical] != 0 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestStoreGetMissing(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func waitForDraft(t *testing.T, r *Router, requestID string) (Record, bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if draft, ok := r.Draft(requestID); ok {
			return draft, true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return Record{}, false
}
