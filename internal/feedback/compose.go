package feedback

import (
	"fmt"

	"github.com/hyeonwoo-dev/qcgate/internal/events"
)

// ComposeForFailedItem pre-fills a bug record from a failed checklist
// item. The assignee defaults to the project's original developer when
// known; otherwise it stays blank for QA to pick.
func ComposeForFailedItem(requestID, projectID string, item events.TestItemFailedPayload, originalDeveloper string) Record {
	rec := Record{
		RequestID:   requestID,
		ProjectID:   projectID,
		Type:        TypeBug,
		Severity:    SeverityHigh,
		Priority:    PriorityHigh,
		Title:       fmt.Sprintf("[%s] Test failed: %s", item.Category, item.Item),
		Description: fmt.Sprintf("Checklist item %q in category %q failed during QC execution.", item.Item, item.Category),
		Assignee:    originalDeveloper,
	}
	if item.Notes != "" {
		rec.Actual = item.Notes
	}
	return rec
}

// ComposeGeneral pre-fills an improvement record with no failing item
// behind it.
func ComposeGeneral(requestID, projectID string) Record {
	return Record{
		RequestID:   requestID,
		ProjectID:   projectID,
		Type:        TypeImprovement,
		Severity:    SeverityMedium,
		Priority:    PriorityNormal,
		Description: "Improvement suggestion raised during QC verification.",
	}
}
