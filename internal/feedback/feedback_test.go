package feedback

import (
	"strings"
	"testing"

	"github.com/hyeonwoo-dev/qcgate/internal/events"
)

func TestEnumValidation(t *testing.T) {
	for _, typ := range []Type{TypeBug, TypeImprovement, TypeFeature, TypePerformance} {
		if err := typ.Validate(); err != nil {
			t.Fatalf("%s rejected: %v", typ, err)
		}
	}
	if err := Type("question").Validate(); err == nil {
		t.Fatal("unknown type accepted")
	}
	for _, sev := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if err := sev.Validate(); err != nil {
			t.Fatalf("%s rejected: %v", sev, err)
		}
	}
	if err := Severity("blocker").Validate(); err == nil {
		t.Fatal("unknown severity accepted")
	}
	for _, pri := range []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent} {
		if err := pri.Validate(); err != nil {
			t.Fatalf("%s rejected: %v", pri, err)
		}
	}
	if err := Priority("asap").Validate(); err == nil {
		t.Fatal("unknown priority accepted")
	}
}

func TestRecordValidate(t *testing.T) {
	valid := Record{
		RequestID:   "req-1",
		Type:        TypeBug,
		Severity:    SeverityHigh,
		Priority:    PriorityHigh,
		Title:       "login broken",
		Description: "session cookie never set",
		Assignee:    "pe-kim",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Record)
	}{
		{"missing request id", func(r *Record) { r.RequestID = " " }},
		{"missing title", func(r *Record) { r.Title = "" }},
		{"missing description", func(r *Record) { r.Description = "" }},
		{"missing assignee", func(r *Record) { r.Assignee = "" }},
		{"bad type", func(r *Record) { r.Type = "question" }},
		{"bad severity", func(r *Record) { r.Severity = "blocker" }},
		{"bad priority", func(r *Record) { r.Priority = "asap" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := valid
			tc.mutate(&rec)
			if err := rec.Validate(); err == nil {
				t.Fatal("invalid record accepted")
			}
		})
	}
}

func TestComposeForFailedItem(t *testing.T) {
	item := events.TestItemFailedPayload{
		ItemID:   3,
		Category: "security",
		Item:     "sql injection",
		Notes:    "blind injection on search",
	}
	rec := ComposeForFailedItem("req-1", "proj-1", item, "dev-lee")

	if rec.Type != TypeBug || rec.Severity != SeverityHigh || rec.Priority != PriorityHigh {
		t.Fatalf("classification = %s/%s/%s", rec.Type, rec.Severity, rec.Priority)
	}
	if !strings.Contains(rec.Title, "security") || !strings.Contains(rec.Title, "sql injection") {
		t.Fatalf("title %q missing category or item", rec.Title)
	}
	if rec.Assignee != "dev-lee" {
		t.Fatalf("assignee = %q, want original developer", rec.Assignee)
	}
	if rec.Actual != item.Notes {
		t.Fatalf("actual = %q, want tester notes", rec.Actual)
	}

	// Unresolvable developer leaves the assignee unset.
	blank := ComposeForFailedItem("req-1", "proj-1", item, "")
	if blank.Assignee != "" {
		t.Fatalf("assignee = %q, want blank", blank.Assignee)
	}
}

func TestComposeGeneral(t *testing.T) {
	rec := ComposeGeneral("req-1", "proj-1")
	if rec.Type != TypeImprovement || rec.Severity != SeverityMedium || rec.Priority != PriorityNormal {
		t.Fatalf("classification = %s/%s/%s", rec.Type, rec.Severity, rec.Priority)
	}
	if rec.RequestID != "req-1" || rec.ProjectID != "proj-1" {
		t.Fatalf("keys = %q/%q", rec.RequestID, rec.ProjectID)
	}
}
