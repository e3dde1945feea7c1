package execution

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hyeonwoo-dev/qcgate/internal/events"
	"github.com/hyeonwoo-dev/qcgate/internal/testplan"
)

type capturePublisher struct {
	published []events.Event
}

func (p *capturePublisher) Publish(evt events.Event) error {
	p.published = append(p.published, evt)
	return nil
}

func sampleChecklist() []testplan.ChecklistItem {
	return []testplan.ChecklistItem{
		{Category: "basic", Item: "login flow", Required: true, EstimatedHours: 2},
		{Category: "basic", Item: "signup flow", Required: true, EstimatedHours: 2},
		{Category: "performance", Item: "page load time", Required: true, EstimatedHours: 4},
		{Category: "security", Item: "sql injection", Required: true, EstimatedHours: 3},
	}
}

func testClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	}
}

func TestNewTrackerInitializesPending(t *testing.T) {
	tr, err := NewTracker("req-1", sampleChecklist(), WithClock(testClock()))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	items := tr.Items()
	if len(items) != 4 {
		t.Fatalf("items = %d, want 4", len(items))
	}
	for i, item := range items {
		if item.ID != i {
			t.Fatalf("item %d has id %d", i, item.ID)
		}
		if item.Status != StatusPending {
			t.Fatalf("item %d starts %s", i, item.Status)
		}
	}
	if diff := cmp.Diff([]string{"basic", "performance", "security"}, tr.Categories()); diff != "" {
		t.Fatalf("categories (-want +got):\n%s", diff)
	}
	if tr.CategoryIndex() != 0 {
		t.Fatalf("start category = %d", tr.CategoryIndex())
	}
	if tr.ProgressPercent() != 0 {
		t.Fatalf("fresh progress = %d%%", tr.ProgressPercent())
	}
}

func TestNewTrackerRejectsEmptyChecklist(t *testing.T) {
	if _, err := NewTracker("req-1", nil); err == nil {
		t.Fatal("empty checklist accepted")
	}
}

func TestUpdateItemProgressAndTimestamps(t *testing.T) {
	tr, err := NewTracker("req-1", sampleChecklist(), WithClock(testClock()))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tr.UpdateItem(0, StatusPassed, "ok"); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if err := tr.UpdateItem(2, StatusFailed, "timeout at p95"); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}

	items := tr.Items()
	if items[0].Status != StatusPassed || items[0].Notes != "ok" {
		t.Fatalf("item 0 = %+v", items[0])
	}
	if items[0].ExecutedAt == nil || !items[0].ExecutedAt.Equal(testClock()()) {
		t.Fatalf("item 0 executed at %v", items[0].ExecutedAt)
	}
	if items[2].Status != StatusFailed {
		t.Fatalf("item 2 = %+v", items[2])
	}
	// 2 of 4 done.
	if got := tr.ProgressPercent(); got != 50 {
		t.Fatalf("progress = %d%%, want 50", got)
	}
}

func TestUpdateItemToggleBackToPending(t *testing.T) {
	tr, err := NewTracker("req-1", sampleChecklist(), WithClock(testClock()))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tr.UpdateItem(0, StatusPassed, ""); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	// Marking passed again reverts to pending.
	if err := tr.UpdateItem(0, StatusPassed, ""); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	item := tr.Items()[0]
	if item.Status != StatusPending {
		t.Fatalf("status = %s, want pending after toggle-back", item.Status)
	}
	if item.ExecutedAt != nil {
		t.Fatal("toggle-back kept execution timestamp")
	}
	if tr.ProgressPercent() != 0 {
		t.Fatalf("progress = %d%% after toggle-back", tr.ProgressPercent())
	}
}

func TestUpdateItemRejectsBadInput(t *testing.T) {
	tr, err := NewTracker("req-1", sampleChecklist())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tr.UpdateItem(99, StatusPassed, ""); err == nil {
		t.Fatal("out-of-range id accepted")
	}
	if err := tr.UpdateItem(0, Status("skipped"), ""); err == nil {
		t.Fatal("unknown status accepted")
	}
}

func TestFirstFailurePublishesEvent(t *testing.T) {
	pub := &capturePublisher{}
	tr, err := NewTracker("req-1", sampleChecklist(), WithPublisher(pub), WithClock(testClock()))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tr.UpdateItem(3, StatusFailed, "blind injection on search"); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.published))
	}
	evt := pub.published[0]
	if evt.Type != events.TypeTestItemFailed || evt.RequestID != "req-1" {
		t.Fatalf("event = %+v", evt)
	}
	var payload events.TestItemFailedPayload
	if err := evt.Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ItemID != 3 || payload.Category != "security" || payload.Item != "sql injection" {
		t.Fatalf("payload = %+v", payload)
	}

	// Toggle back to pending, fail again: that is a fresh first failure.
	if err := tr.UpdateItem(3, StatusFailed, ""); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if err := tr.UpdateItem(3, StatusFailed, ""); err != nil {
		t.Fatalf("re-fail: %v", err)
	}
	if len(pub.published) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.published))
	}
}

func TestCategoryNavigation(t *testing.T) {
	tr, err := NewTracker("req-1", sampleChecklist())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if !tr.Next() || tr.CategoryIndex() != 1 {
		t.Fatalf("Next failed, index = %d", tr.CategoryIndex())
	}
	current := tr.CurrentItems()
	if len(current) != 1 || current[0].Item != "page load time" {
		t.Fatalf("current items = %+v", current)
	}
	// Updates against items outside the displayed category still land.
	if err := tr.UpdateItem(0, StatusPassed, ""); err != nil {
		t.Fatalf("off-screen update: %v", err)
	}
	if !tr.Next() || tr.Next() {
		t.Fatalf("navigation past last category, index = %d", tr.CategoryIndex())
	}
	if !tr.Prev() || !tr.Prev() || tr.Prev() {
		t.Fatalf("navigation before first category, index = %d", tr.CategoryIndex())
	}
}

func TestResumeTrackerRestoresSession(t *testing.T) {
	tr, err := NewTracker("req-1", sampleChecklist(), WithClock(testClock()))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tr.UpdateItem(0, StatusPassed, "ok"); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	tr.Next()
	snapshot := tr.Snapshot()

	resumed, err := ResumeTracker(snapshot, WithClock(testClock()))
	if err != nil {
		t.Fatalf("ResumeTracker: %v", err)
	}
	if resumed.CategoryIndex() != 1 {
		t.Fatalf("resumed at category %d, want 1", resumed.CategoryIndex())
	}
	if diff := cmp.Diff(tr.Items(), resumed.Items()); diff != "" {
		t.Fatalf("resumed items (-want +got):\n%s", diff)
	}

	if _, err := ResumeTracker(Progress{RequestID: "req-1"}); err == nil {
		t.Fatal("empty progress accepted")
	}
}

func TestResumeTrackerClampsBadCategoryIndex(t *testing.T) {
	snapshot := Progress{
		RequestID: "req-1",
		Items: []Item{
			{ID: 0, Category: "basic", Item: "login flow", Status: StatusPending},
		},
		CurrentCategory: 7,
	}
	tr, err := ResumeTracker(snapshot)
	if err != nil {
		t.Fatalf("ResumeTracker: %v", err)
	}
	if tr.CategoryIndex() != 0 {
		t.Fatalf("category index = %d, want clamped 0", tr.CategoryIndex())
	}
}

func TestFinishAggregatesResult(t *testing.T) {
	tr, err := NewTracker("req-1", sampleChecklist(), WithClock(testClock()))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tr.UpdateItem(0, StatusPassed, "")
	tr.UpdateItem(1, StatusPassed, "")
	tr.UpdateItem(2, StatusFailed, "slow")

	result := tr.Finish()
	if result.Passed != 2 || result.Failed != 1 || result.Pending != 1 || result.Total != 4 {
		t.Fatalf("result = %+v", result)
	}
	// round(2/4*100) - 5 = 45.
	if result.QualityScore != 45 {
		t.Fatalf("score = %d, want 45", result.QualityScore)
	}
	if !result.FinishedAt.Equal(testClock()()) {
		t.Fatalf("finished at %v", result.FinishedAt)
	}
}

func TestOnUpdateHookReceivesSnapshots(t *testing.T) {
	var got []Progress
	tr, err := NewTracker("req-1", sampleChecklist(), WithOnUpdate(func(p Progress) {
		got = append(got, p)
	}))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tr.UpdateItem(0, StatusPassed, "")
	tr.UpdateItem(1, StatusFailed, "broken")
	if len(got) != 2 {
		t.Fatalf("hook fired %d times, want 2", len(got))
	}
	last := got[1]
	if last.RequestID != "req-1" || last.Items[1].Status != StatusFailed {
		t.Fatalf("last snapshot = %+v", last)
	}
}
