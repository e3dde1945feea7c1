// Package stage defines the project lifecycle stages and the rules for
// moving between them. Every project carries exactly one stage code at a
// time; all stage mutations funnel through Validate so the monotonic
// ordering cannot be bypassed.
package stage

import (
	"fmt"
	"strings"
)

// Code identifies a lifecycle stage.
type Code string

// The seven ordered lifecycle stages.
const (
	Draft          Code = "draft"
	POApproval     Code = "po_approval"
	PEAssigned     Code = "pe_assigned"
	QAVerification Code = "qa_verification"
	FinalApproval  Code = "final_approval"
	Deployed       Code = "deployed"
	Operational    Code = "operational"
)

// Side states outside the ordered sequence.
const (
	Cancelled Code = "cancelled"
	Suspended Code = "suspended"
)

// Stage describes one lifecycle stage for display and ordering.
type Stage struct {
	Ordinal int
	Code    Code
	Label   string
}

// Unknown is returned for status codes the registry does not recognize.
// The raw code is carried through as the label so callers can still render
// something meaningful instead of passing unmapped codes straight through.
func Unknown(raw string) Stage {
	return Stage{Ordinal: 0, Code: Code(raw), Label: strings.TrimSpace(raw)}
}

var ordered = []Stage{
	{Ordinal: 1, Code: Draft, Label: "Draft"},
	{Ordinal: 2, Code: POApproval, Label: "PO Approval"},
	{Ordinal: 3, Code: PEAssigned, Label: "PE Assigned"},
	{Ordinal: 4, Code: QAVerification, Label: "QA Verification"},
	{Ordinal: 5, Code: FinalApproval, Label: "Final Approval"},
	{Ordinal: 6, Code: Deployed, Label: "Deployed"},
	{Ordinal: 7, Code: Operational, Label: "Operational"},
}

var sideStates = map[Code]Stage{
	Cancelled: {Ordinal: 0, Code: Cancelled, Label: "Cancelled"},
	Suspended: {Ordinal: 0, Code: Suspended, Label: "Suspended"},
}

var byCode = func() map[Code]Stage {
	m := make(map[Code]Stage, len(ordered)+len(sideStates))
	for _, s := range ordered {
		m[s.Code] = s
	}
	for code, s := range sideStates {
		m[code] = s
	}
	return m
}()

// Count is the number of stages in the ordered sequence.
const Count = 7

// Lookup resolves a status code to its stage descriptor. The second return
// reports whether the code is known; unknown codes yield Unknown(raw).
func Lookup(raw string) (Stage, bool) {
	code := Code(strings.ToLower(strings.TrimSpace(raw)))
	if s, ok := byCode[code]; ok {
		return s, true
	}
	return Unknown(raw), false
}

// All returns the seven ordered stages.
func All() []Stage {
	out := make([]Stage, len(ordered))
	copy(out, ordered)
	return out
}

// IsTerminal reports whether no further transitions are allowed from the code.
func IsTerminal(code Code) bool {
	return code == Operational || code == Cancelled
}

// IsSideState reports whether the code sits outside the ordered sequence.
func IsSideState(code Code) bool {
	_, ok := sideStates[code]
	return ok
}

// Next returns the stage following code in the ordered sequence. The second
// return is false for the final stage, side states, and unknown codes.
func Next(code Code) (Stage, bool) {
	current, ok := byCode[code]
	if !ok || current.Ordinal == 0 || current.Ordinal >= Count {
		return Stage{}, false
	}
	return ordered[current.Ordinal], true
}

// Validate reports whether a transition from one stage to another is
// allowed. Sequence stages advance one step at a time. Cancel and suspend
// are reachable from any non-terminal sequence stage; a suspended item may
// resume to any sequence stage (the caller restores the prior one) or be
// cancelled outright.
func Validate(from, to Code) error {
	f, ok := byCode[from]
	if !ok {
		return fmt.Errorf("stage: unknown stage %q", from)
	}
	t, ok := byCode[to]
	if !ok {
		return fmt.Errorf("stage: unknown stage %q", to)
	}
	if from == to {
		return fmt.Errorf("stage: %s is already the current stage", from)
	}
	if IsTerminal(from) {
		return fmt.Errorf("stage: %s is terminal", from)
	}
	if from == Suspended {
		if t.Ordinal > 0 || to == Cancelled {
			return nil
		}
		return fmt.Errorf("stage: cannot move from suspended to %s", to)
	}
	// from is a non-terminal sequence stage.
	if to == Cancelled || to == Suspended {
		return nil
	}
	if t.Ordinal != f.Ordinal+1 {
		return fmt.Errorf("stage: cannot skip from %s (ordinal %d) to %s (ordinal %d)", from, f.Ordinal, to, t.Ordinal)
	}
	return nil
}
