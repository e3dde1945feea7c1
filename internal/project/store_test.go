package project

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/events"
	"github.com/hyeonwoo-dev/qcgate/internal/stage"
	"github.com/hyeonwoo-dev/qcgate/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	clock := &testClock{value: time.Unix(1700000000, 0).UTC()}
	return NewStore(db, WithClock(clock.Now))
}

type testClock struct {
	value time.Time
}

func (c *testClock) Now() time.Time {
	c.value = c.value.Add(time.Second)
	return c.value
}

func TestCreateStartsInDraft(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("billing revamp", UrgencyHigh, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Stage != stage.Draft {
		t.Fatalf("expected draft stage, got %s", p.Stage)
	}
	if !p.Active {
		t.Fatalf("expected active project")
	}
	loaded, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Name != "billing revamp" || loaded.Urgency != UrgencyHigh {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("  ", UrgencyLow, nil); err == nil {
		t.Fatalf("expected name validation error")
	}
	if _, err := s.Create("ok", Urgency("made-up"), nil); err == nil {
		t.Fatalf("expected urgency validation error")
	}
}

func TestAdvanceWalksTheSequence(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("portal", UrgencyMedium, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, next := range []stage.Code{
		stage.POApproval, stage.PEAssigned, stage.QAVerification,
		stage.FinalApproval, stage.Deployed, stage.Operational,
	} {
		p, err = s.Advance(p.ID, next)
		if err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		if p.Stage != next {
			t.Fatalf("expected %s, got %s", next, p.Stage)
		}
	}
	if _, err := s.Advance(p.ID, stage.Draft); err == nil {
		t.Fatalf("expected terminal stage to reject transitions")
	}
}

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(evt events.Event) error {
	b.published = append(b.published, evt)
	return nil
}

func TestAdvanceAnnouncesTransition(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	log, err := activity.New(filepath.Join(t.TempDir(), "activity.log"))
	if err != nil {
		t.Fatalf("activity log: %v", err)
	}
	bus := &captureBus{}
	s := NewStore(db, WithActivity(log), WithPublisher(bus))

	p, err := s.Create("portal", UrgencyMedium, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Advance(p.ID, stage.POApproval); err != nil {
		t.Fatalf("advance: %v", err)
	}

	if len(bus.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(bus.published))
	}
	evt := bus.published[0]
	if evt.Type != events.TypeStageAdvanced || evt.ProjectID != p.ID {
		t.Fatalf("unexpected event: %+v", evt)
	}
	var payload events.StageAdvancedPayload
	if err := evt.Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.From != string(stage.Draft) || payload.To != string(stage.POApproval) {
		t.Fatalf("unexpected transition payload: %+v", payload)
	}

	lines, total := log.Tail(10)
	if total != 1 || !strings.Contains(lines[0], string(activity.KindStageAdvanced)) {
		t.Fatalf("expected a stage_advanced history line, got %v", lines)
	}
	if !strings.Contains(lines[0], "portal: draft -> po_approval") {
		t.Fatalf("unexpected history line: %q", lines[0])
	}
}

func TestAdvanceRejectedLeavesNoAnnouncement(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	bus := &captureBus{}
	s := NewStore(db, WithPublisher(bus))

	p, err := s.Create("portal", UrgencyMedium, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Advance(p.ID, stage.QAVerification); err == nil {
		t.Fatalf("expected skip to be rejected")
	}
	if len(bus.published) != 0 {
		t.Fatalf("rejected transition published %d events", len(bus.published))
	}
}

func TestAdvanceRejectsSkips(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("portal", UrgencyMedium, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Advance(p.ID, stage.QAVerification); err == nil {
		t.Fatalf("expected skip to be rejected")
	}
	loaded, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Stage != stage.Draft {
		t.Fatalf("stage mutated despite rejection: %s", loaded.Stage)
	}
}

func TestSuspendAndResumeRestorePriorStage(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("portal", UrgencyMedium, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Advance(p.ID, stage.POApproval); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := s.Advance(p.ID, stage.PEAssigned); err != nil {
		t.Fatalf("advance: %v", err)
	}
	suspended, err := s.Suspend(p.ID)
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if suspended.Stage != stage.Suspended || suspended.PriorStage != stage.PEAssigned {
		t.Fatalf("unexpected suspend state: %+v", suspended)
	}
	resumed, err := s.Resume(p.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Stage != stage.PEAssigned {
		t.Fatalf("expected resume to pe_assigned, got %s", resumed.Stage)
	}
}

func TestCancelDeactivatesButKeepsRow(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("portal", UrgencyMedium, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cancelled, err := s.Cancel(p.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Stage != stage.Cancelled || cancelled.Active {
		t.Fatalf("unexpected cancel state: %+v", cancelled)
	}
	loaded, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("expected cancelled project to remain readable: %v", err)
	}
	if loaded.Active {
		t.Fatalf("expected inactive project")
	}
}

func TestAssignRecordsOriginalDeveloperOnce(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("portal", UrgencyMedium, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err = s.Assign(p.ID, "pe-kim")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if p.OriginalDeveloper != "pe-kim" {
		t.Fatalf("expected original developer pe-kim, got %s", p.OriginalDeveloper)
	}
	p, err = s.Assign(p.ID, "pe-lee")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if p.AssignedPE != "pe-lee" || p.OriginalDeveloper != "pe-kim" {
		t.Fatalf("reassign should keep original developer: %+v", p)
	}
	pes, err := s.EligiblePEs(p.ID)
	if err != nil {
		t.Fatalf("eligible pes: %v", err)
	}
	if len(pes) != 2 || pes[0] != "pe-kim" {
		t.Fatalf("expected original developer first, got %+v", pes)
	}
}

func TestRequestLifecycle(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("portal", UrgencyMedium, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	req, err := s.CreateRequest(p.ID, "verify v2 release")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.Status != RequestPending {
		t.Fatalf("expected pending request, got %s", req.Status)
	}
	score := 87
	updated, err := s.SetRequestStatus(req.ID, RequestComplete, &score)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != RequestComplete || updated.QualityScore == nil || *updated.QualityScore != 87 {
		t.Fatalf("unexpected request state: %+v", updated)
	}
	if updated.CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}
	list, err := s.ListRequests()
	if err != nil {
		t.Fatalf("list requests: %v", err)
	}
	if len(list) != 1 || list[0].ID != req.ID {
		t.Fatalf("unexpected request list: %+v", list)
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetRequest("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for request, got %v", err)
	}
}
