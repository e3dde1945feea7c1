package testplan

import (
	"fmt"
	"strings"
)

// Step identifies one wizard stage.
type Step int

const (
	StepSelectItems Step = iota + 1
	StepSelectSets
	StepReviewChecklist
)

// String renders the step name for diagnostics.
func (s Step) String() string {
	switch s {
	case StepSelectItems:
		return "select-items"
	case StepSelectSets:
		return "select-sets"
	case StepReviewChecklist:
		return "review-checklist"
	default:
		return fmt.Sprintf("step-%d", int(s))
	}
}

// Wizard walks QA through planning for one request. Selections survive
// backward navigation; the checklist is re-derived every time step 2 is
// left so review always reflects the current selections.
type Wizard struct {
	requestID string
	catalogue *Catalogue
	step      Step

	selections Selections
	setIDs     []string
	custom     []string

	checklist  []ChecklistItem
	totalHours int
}

// NewWizard starts planning for a request against a template catalogue.
func NewWizard(requestID string, catalogue *Catalogue) (*Wizard, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, fmt.Errorf("testplan: request id is required")
	}
	if catalogue == nil {
		catalogue = DefaultCatalogue()
	}
	return &Wizard{
		requestID: requestID,
		catalogue: catalogue,
		step:      StepSelectItems,
	}, nil
}

// Step reports the current wizard stage.
func (w *Wizard) Step() Step {
	return w.step
}

// Selections returns a copy of the step-1 state.
func (w *Wizard) Selections() Selections {
	sel := w.selections
	sel.Basic = cloneStrings(w.selections.Basic)
	sel.Performance = cloneStrings(w.selections.Performance)
	sel.Security = cloneStrings(w.selections.Security)
	sel.Usability.Aspects = cloneStrings(w.selections.Usability.Aspects)
	sel.Compatibility.Platforms = cloneStrings(w.selections.Compatibility.Platforms)
	return sel
}

// ToggleBasic flips one basic test item.
func (w *Wizard) ToggleBasic(item string) {
	w.selections.Basic = toggle(w.selections.Basic, item)
}

// TogglePerformance flips one performance test item.
func (w *Wizard) TogglePerformance(item string) {
	w.selections.Performance = toggle(w.selections.Performance, item)
}

// ToggleSecurity flips one security test item.
func (w *Wizard) ToggleSecurity(item string) {
	w.selections.Security = toggle(w.selections.Security, item)
}

// ToggleUsabilityAspect flips one usability aspect and keeps the enabled
// flag in sync with whether any aspects remain selected.
func (w *Wizard) ToggleUsabilityAspect(aspect string) {
	w.selections.Usability.Aspects = toggle(w.selections.Usability.Aspects, aspect)
	w.selections.Usability.Enabled = len(w.selections.Usability.Aspects) > 0
}

// SetCompatibility enables or disables compatibility testing.
func (w *Wizard) SetCompatibility(enabled bool) {
	w.selections.Compatibility.Enabled = enabled
}

// TogglePlatform flips one compatibility platform.
func (w *Wizard) TogglePlatform(platform string) {
	w.selections.Compatibility.Platforms = toggle(w.selections.Compatibility.Platforms, platform)
}

// ToggleSet flips membership of a standardized test set. Unknown IDs are
// rejected so the review step never references missing templates.
func (w *Wizard) ToggleSet(id string) error {
	if _, ok := w.catalogue.Get(id); !ok {
		return fmt.Errorf("testplan: unknown test set %q", id)
	}
	w.setIDs = toggle(w.setIDs, id)
	return nil
}

// AddCustomItem appends a free-text checklist item.
func (w *Wizard) AddCustomItem(item string) {
	item = strings.TrimSpace(item)
	if item == "" {
		return
	}
	w.custom = append(w.custom, item)
}

// Next advances one step. Leaving the set-selection step derives the
// checklist for review.
func (w *Wizard) Next() error {
	switch w.step {
	case StepSelectItems:
		w.step = StepSelectSets
		return nil
	case StepSelectSets:
		sets, err := w.catalogue.Resolve(w.setIDs)
		if err != nil {
			return err
		}
		w.checklist, w.totalHours = DeriveChecklist(w.selections, sets, w.custom)
		w.step = StepReviewChecklist
		return nil
	default:
		return fmt.Errorf("testplan: no step after %s", w.step)
	}
}

// Back returns to any earlier step without losing selections.
func (w *Wizard) Back(to Step) error {
	if to < StepSelectItems || to >= w.step {
		return fmt.Errorf("testplan: cannot go back from %s to %s", w.step, to)
	}
	w.step = to
	return nil
}

// Checklist returns the derived rows; only valid at the review step.
func (w *Wizard) Checklist() []ChecklistItem {
	out := make([]ChecklistItem, len(w.checklist))
	copy(out, w.checklist)
	return out
}

// TotalEstimatedHours returns the derived hour total.
func (w *Wizard) TotalEstimatedHours() int {
	return w.totalHours
}

// Build finalizes the wizard into a submittable plan. It fails when called
// before review or when the checklist came out empty.
func (w *Wizard) Build() (Plan, error) {
	if w.step != StepReviewChecklist {
		return Plan{}, fmt.Errorf("testplan: plan not reviewed yet (at %s)", w.step)
	}
	plan := Plan{
		RequestID:           w.requestID,
		Selections:          w.Selections(),
		SetIDs:              cloneStrings(w.setIDs),
		CustomItems:         cloneStrings(w.custom),
		Checklist:           w.Checklist(),
		TotalEstimatedHours: w.totalHours,
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
