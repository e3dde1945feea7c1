// Package events carries workflow notifications between subsystems. The
// execution tracker publishes test_item_failed instead of reaching into the
// feedback composer directly; anything interested subscribes by type.
package events

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the workflow event kinds.
type Type string

const (
	TypeTestItemFailed       Type = "test_item_failed"
	TypeStageAdvanced        Type = "stage_advanced"
	TypeFeedbackSubmitted    Type = "feedback_submitted"
	TypeVerificationApproved Type = "verification_approved"
)

// Event is a single workflow notification.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	RequestID  string          `json:"request_id"`
	ProjectID  string          `json:"project_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with a fresh ID and timestamp. The payload is
// marshaled immediately so publishers cannot mutate it afterwards.
func New(kind Type, requestID string, payload any) (Event, error) {
	evt := Event{
		ID:         uuid.NewString(),
		Type:       kind,
		RequestID:  strings.TrimSpace(requestID),
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		evt.Payload = data
	}
	return evt, nil
}

// Validate enforces baseline event requirements before routing.
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.New("events: id is required")
	}
	if strings.TrimSpace(string(e.Type)) == "" {
		return errors.New("events: type is required")
	}
	if e.RequestID == "" {
		return errors.New("events: request id is required")
	}
	return nil
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	if len(e.Payload) == 0 {
		return errors.New("events: empty payload")
	}
	return json.Unmarshal(e.Payload, out)
}

// TestItemFailedPayload describes a checklist item that just failed.
type TestItemFailedPayload struct {
	ItemID   int    `json:"item_id"`
	Category string `json:"category"`
	Item     string `json:"item"`
	Notes    string `json:"notes,omitempty"`
}

// StageAdvancedPayload records a lifecycle transition.
type StageAdvancedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}
