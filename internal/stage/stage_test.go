package stage

import "testing"

func TestLookupKnownCodes(t *testing.T) {
	s, ok := Lookup("qa_verification")
	if !ok {
		t.Fatalf("expected qa_verification to resolve")
	}
	if s.Ordinal != 4 || s.Label != "QA Verification" {
		t.Fatalf("unexpected descriptor: %+v", s)
	}
	if s, ok := Lookup("  Deployed "); !ok || s.Ordinal != 6 {
		t.Fatalf("expected trimmed case-insensitive lookup, got %+v ok=%v", s, ok)
	}
}

func TestLookupUnknownCodeNormalizes(t *testing.T) {
	s, ok := Lookup("legacy-status-17")
	if ok {
		t.Fatalf("expected unknown code")
	}
	if s.Ordinal != 0 || s.Label != "legacy-status-17" {
		t.Fatalf("expected normalized fallback descriptor, got %+v", s)
	}
}

func TestAllReturnsSevenOrderedStages(t *testing.T) {
	stages := All()
	if len(stages) != Count {
		t.Fatalf("expected %d stages, got %d", Count, len(stages))
	}
	for i, s := range stages {
		if s.Ordinal != i+1 {
			t.Fatalf("stage %s has ordinal %d at position %d", s.Code, s.Ordinal, i)
		}
	}
}

func TestValidateMonotonicAdvance(t *testing.T) {
	stages := All()
	for i := 0; i < len(stages)-1; i++ {
		if err := Validate(stages[i].Code, stages[i+1].Code); err != nil {
			t.Fatalf("advance %s -> %s: %v", stages[i].Code, stages[i+1].Code, err)
		}
	}
}

func TestValidateRejectsSkipsAndRegressions(t *testing.T) {
	cases := []struct{ from, to Code }{
		{Draft, PEAssigned},
		{Draft, Operational},
		{QAVerification, Draft},
		{Deployed, QAVerification},
		{Draft, Draft},
	}
	for _, tc := range cases {
		if err := Validate(tc.from, tc.to); err == nil {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestValidateSideStates(t *testing.T) {
	if err := Validate(PEAssigned, Cancelled); err != nil {
		t.Fatalf("cancel from active stage: %v", err)
	}
	if err := Validate(QAVerification, Suspended); err != nil {
		t.Fatalf("suspend from active stage: %v", err)
	}
	if err := Validate(Suspended, QAVerification); err != nil {
		t.Fatalf("resume from suspended: %v", err)
	}
	if err := Validate(Suspended, Cancelled); err != nil {
		t.Fatalf("cancel from suspended: %v", err)
	}
	if err := Validate(Operational, Cancelled); err == nil {
		t.Fatalf("expected terminal stage to reject cancel")
	}
	if err := Validate(Cancelled, Draft); err == nil {
		t.Fatalf("expected cancelled to be terminal")
	}
}

func TestNext(t *testing.T) {
	next, ok := Next(Draft)
	if !ok || next.Code != POApproval {
		t.Fatalf("expected po_approval after draft, got %+v ok=%v", next, ok)
	}
	if _, ok := Next(Operational); ok {
		t.Fatalf("expected no stage after operational")
	}
	if _, ok := Next(Suspended); ok {
		t.Fatalf("expected no sequence successor for side state")
	}
}
