package domain

import (
	"strings"
	"testing"
	"time"
)

func TestDeriveDecisionID_Stable(t *testing.T) {
	date := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	a := DeriveDecisionID(date, "Budget amendment for 2026")
	b := DeriveDecisionID(date, "Budget amendment for 2026")
	if a != b {
		t.Errorf("same inputs produced %q and %q", a, b)
	}
	if !ValidDecisionID(a) {
		t.Errorf("derived id %q fails validation", a)
	}
	if !strings.HasPrefix(a, "news-2026-03-14-") {
		t.Errorf("id %q missing date prefix", a)
	}
}

func TestDeriveDecisionID_TitleChangesID(t *testing.T) {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	a := DeriveDecisionID(date, "Title one")
	b := DeriveDecisionID(date, "Title two")
	if a == b {
		t.Errorf("different titles produced the same id %q", a)
	}
}

func TestValidDecisionID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"news-2026-03-14-0a1b2c3d", true},
		{"news-2026-3-14-0a1b2c3d", false},
		{"news-2026-03-14-0a1b2c", false},
		{"news-2026-03-14-0A1B2C3D", false},
		{"prefix news-2026-03-14-0a1b2c3d", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidDecisionID(tt.id); got != tt.valid {
			t.Errorf("ValidDecisionID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

func TestFindDecisionID(t *testing.T) {
	title := "Analyze decision news-2026-03-14-0a1b2c3d: Budget amendment"
	if got := FindDecisionID(title); got != "news-2026-03-14-0a1b2c3d" {
		t.Errorf("FindDecisionID = %q", got)
	}
	if got := FindDecisionID("no id here"); got != "" {
		t.Errorf("FindDecisionID on plain text = %q, want empty", got)
	}
}

func TestAssessmentValidate(t *testing.T) {
	valid := Assessment{Ministry: MinistryFinance, Verdict: VerdictPositive, Score: 7}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid assessment rejected: %v", err)
	}

	tests := []struct {
		name string
		a    Assessment
	}{
		{"score too low", Assessment{Verdict: VerdictNeutral, Score: 0}},
		{"score too high", Assessment{Verdict: VerdictNeutral, Score: 11}},
		{"unknown verdict", Assessment{Verdict: "meh", Score: 5}},
	}
	for _, tt := range tests {
		if err := tt.a.Validate(); err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
	}
}

func TestFallbackAssessment(t *testing.T) {
	long := strings.Repeat("x", 600)
	a := FallbackAssessment(MinistryJustice, "news-2026-03-14-0a1b2c3d", long)

	if err := a.Validate(); err != nil {
		t.Fatalf("fallback assessment invalid: %v", err)
	}
	if a.Verdict != VerdictNeutral || a.Score != 5 {
		t.Errorf("fallback verdict/score = %s/%d", a.Verdict, a.Score)
	}
	if len(a.Reasoning) != 500 {
		t.Errorf("reasoning length = %d, want 500", len(a.Reasoning))
	}

	empty := FallbackAssessment(MinistryJustice, "news-2026-03-14-0a1b2c3d", "")
	if empty.Reasoning == "" {
		t.Error("empty raw text left reasoning empty")
	}
}

func TestMinistryRank(t *testing.T) {
	if MinistryRank(MinistryFinance) != 0 {
		t.Errorf("finance rank = %d, want 0", MinistryRank(MinistryFinance))
	}
	if MinistryRank(MinistryLabour) != len(MinistryOrder)-1 {
		t.Errorf("labour rank = %d", MinistryRank(MinistryLabour))
	}
	if MinistryRank("unknown") != len(MinistryOrder) {
		t.Errorf("unknown ministry should sort last")
	}
}
