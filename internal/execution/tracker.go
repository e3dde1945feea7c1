package execution

import (
	"fmt"
	"time"

	"github.com/hyeonwoo-dev/qcgate/internal/events"
	"github.com/hyeonwoo-dev/qcgate/internal/logging"
	"github.com/hyeonwoo-dev/qcgate/internal/testplan"
)

// Publisher is the event sink the tracker notifies about failures.
type Publisher interface {
	Publish(events.Event) error
}

// Tracker drives one execution session. Items are grouped by category for
// navigation but updates address the flat item list, so a tester can mark
// any item no matter which category is on screen.
type Tracker struct {
	requestID  string
	items      []Item
	categories []string
	current    int

	clock     func() time.Time
	publisher Publisher
	onUpdate  func(Progress)
	logger    logging.Printf
}

// TrackerOption customizes a tracker.
type TrackerOption func(*Tracker)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithPublisher wires the event router for test_item_failed notifications.
func WithPublisher(publisher Publisher) TrackerOption {
	return func(t *Tracker) {
		t.publisher = publisher
	}
}

// WithOnUpdate registers a hook invoked with a progress snapshot after
// every item update. The auto-saver subscribes here.
func WithOnUpdate(fn func(Progress)) TrackerOption {
	return func(t *Tracker) {
		t.onUpdate = fn
	}
}

// WithLogger replaces the tracker's log sink.
func WithLogger(logger logging.Printf) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker starts a fresh session from a plan checklist: every item
// pending, positioned at the first category.
func NewTracker(requestID string, checklist []testplan.ChecklistItem, opts ...TrackerOption) (*Tracker, error) {
	if len(checklist) == 0 {
		return nil, fmt.Errorf("execution: checklist is empty for request %s", requestID)
	}
	items := make([]Item, len(checklist))
	for i, row := range checklist {
		items[i] = Item{
			ID:          i,
			Category:    row.Category,
			Item:        row.Item,
			Description: row.Description,
			Required:    row.Required,
			Status:      StatusPending,
		}
	}
	return newTracker(requestID, items, 0, opts)
}

// ResumeTracker restores a session from saved progress.
func ResumeTracker(progress Progress, opts ...TrackerOption) (*Tracker, error) {
	if len(progress.Items) == 0 {
		return nil, fmt.Errorf("execution: saved progress for request %s has no items", progress.RequestID)
	}
	items := make([]Item, len(progress.Items))
	copy(items, progress.Items)
	return newTracker(progress.RequestID, items, progress.CurrentCategory, opts)
}

func newTracker(requestID string, items []Item, current int, opts []TrackerOption) (*Tracker, error) {
	t := &Tracker{
		requestID: requestID,
		items:     items,
		clock:     func() time.Time { return time.Now().UTC() },
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	seen := map[string]bool{}
	for _, item := range t.items {
		if !seen[item.Category] {
			seen[item.Category] = true
			t.categories = append(t.categories, item.Category)
		}
	}
	if current < 0 || current >= len(t.categories) {
		current = 0
	}
	t.current = current
	return t, nil
}

// RequestID reports the owning QC request.
func (t *Tracker) RequestID() string {
	return t.requestID
}

// Items returns a copy of the flat item list.
func (t *Tracker) Items() []Item {
	out := make([]Item, len(t.items))
	copy(out, t.items)
	return out
}

// Categories returns the category names in checklist order.
func (t *Tracker) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}

// CategoryIndex reports the category currently displayed.
func (t *Tracker) CategoryIndex() int {
	return t.current
}

// CurrentItems returns the items of the displayed category.
func (t *Tracker) CurrentItems() []Item {
	name := t.categories[t.current]
	var out []Item
	for _, item := range t.items {
		if item.Category == name {
			out = append(out, item)
		}
	}
	return out
}

// Next advances to the following category; it reports whether it moved.
func (t *Tracker) Next() bool {
	if t.current+1 >= len(t.categories) {
		return false
	}
	t.current++
	return true
}

// Prev returns to the previous category; it reports whether it moved.
func (t *Tracker) Prev() bool {
	if t.current == 0 {
		return false
	}
	t.current--
	return true
}

// UpdateItem records a status change and notes for one item. Marking an
// item with the status it already has reverts it to pending; this undo
// behavior is long-standing and deliberately kept.
func (t *Tracker) UpdateItem(id int, status Status, notes string) error {
	if err := status.Validate(); err != nil {
		return err
	}
	if id < 0 || id >= len(t.items) {
		return fmt.Errorf("execution: no item %d for request %s", id, t.requestID)
	}
	item := &t.items[id]
	previous := item.Status

	next := status
	if status != StatusPending && status == previous {
		next = StatusPending
	}
	item.Status = next
	item.Notes = notes
	if next == StatusPending {
		item.ExecutedAt = nil
	} else {
		now := t.clock()
		item.ExecutedAt = &now
	}

	if next == StatusFailed && previous != StatusFailed {
		t.publishFailure(*item)
	}
	if t.onUpdate != nil {
		t.onUpdate(t.Snapshot())
	}
	return nil
}

func (t *Tracker) publishFailure(item Item) {
	if t.publisher == nil {
		return
	}
	evt, err := events.New(events.TypeTestItemFailed, t.requestID, events.TestItemFailedPayload{
		ItemID:   item.ID,
		Category: item.Category,
		Item:     item.Item,
		Notes:    item.Notes,
	})
	if err != nil {
		t.logger.Printf("execution: build failure event for %s: %v", t.requestID, err)
		return
	}
	if err := t.publisher.Publish(evt); err != nil {
		t.logger.Printf("execution: publish failure event for %s: %v", t.requestID, err)
	}
}

// ProgressPercent reports non-pending items over the total, rounded.
func (t *Tracker) ProgressPercent() int {
	if len(t.items) == 0 {
		return 0
	}
	done := 0
	for _, item := range t.items {
		if item.Status != StatusPending {
			done++
		}
	}
	return (done*100 + len(t.items)/2) / len(t.items)
}

// Snapshot captures the session for persistence.
func (t *Tracker) Snapshot() Progress {
	return Progress{
		RequestID:       t.requestID,
		CurrentCategory: t.current,
		Items:           t.Items(),
	}
}

// Finish aggregates the session into a submittable result. Pending items
// do not block finishing; the caller surfaces the pending count as a
// warning before submission.
func (t *Tracker) Finish() Result {
	var passed, failed, pending int
	for _, item := range t.items {
		switch item.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		default:
			pending++
		}
	}
	return Result{
		RequestID:    t.requestID,
		QualityScore: QualityScore(passed, failed, len(t.items)),
		Passed:       passed,
		Failed:       failed,
		Pending:      pending,
		Total:        len(t.items),
		FinishedAt:   t.clock(),
	}
}
