package execution

import "testing"

func TestQualityScore(t *testing.T) {
	cases := []struct {
		name                  string
		passed, failed, total int
		want                  int
	}{
		{"all passed", 10, 0, 10, 100},
		{"one failure", 9, 1, 10, 85},
		{"penalty capped at 30", 3, 7, 10, 0},
		{"cap keeps large runs positive", 90, 10, 100, 60},
		{"no items", 0, 0, 0, 0},
		{"all pending", 0, 0, 5, 0},
		{"rounding", 1, 0, 3, 33},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := QualityScore(tc.passed, tc.failed, tc.total); got != tc.want {
				t.Fatalf("QualityScore(%d, %d, %d) = %d, want %d",
					tc.passed, tc.failed, tc.total, got, tc.want)
			}
		})
	}
}

func TestQualityScoreMonotonicInFailures(t *testing.T) {
	const total, passed = 20, 10
	prev := QualityScore(passed, 0, total)
	for failed := 1; failed <= total-passed; failed++ {
		score := QualityScore(passed, failed, total)
		if score > prev {
			t.Fatalf("score rose from %d to %d at failed=%d", prev, score, failed)
		}
		if score < 0 || score > 100 {
			t.Fatalf("score %d out of range at failed=%d", score, failed)
		}
		prev = score
	}
}

func TestStatusValidate(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPassed, StatusFailed} {
		if err := s.Validate(); err != nil {
			t.Fatalf("%s rejected: %v", s, err)
		}
	}
	if err := Status("skipped").Validate(); err == nil {
		t.Fatal("unknown status accepted")
	}
}

func TestResultValidate(t *testing.T) {
	if err := (Result{Total: 3}).Validate(); err == nil {
		t.Fatal("blank request id accepted")
	}
	if err := (Result{RequestID: "req-1"}).Validate(); err == nil {
		t.Fatal("zero-item result accepted")
	}
	if err := (Result{RequestID: "req-1", Total: 3}).Validate(); err != nil {
		t.Fatalf("valid result rejected: %v", err)
	}
}
