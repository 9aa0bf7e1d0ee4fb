package prworkflow

import (
	"strings"
	"testing"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

func TestExtractVerdict(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Verdict
	}{
		{"approved", "Looks good.\n\nVERDICT: APPROVED", Approved},
		{"changes requested", "VERDICT: CHANGES_REQUESTED\n- fix the test", ChangesRequested},
		{"no marker", "great work, ship it", NoVerdict},
		{"lowercase does not count", "verdict: approved", NoVerdict},
		{"empty", "", NoVerdict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractVerdict(tt.text); got != tt.want {
				t.Errorf("ExtractVerdict = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerdictFromComments_NewestWins(t *testing.T) {
	comments := []domain.Comment{
		{Body: "VERDICT: CHANGES_REQUESTED"},
		{Body: "discussion in between"},
		{Body: "VERDICT: APPROVED"},
	}
	if got := VerdictFromComments(comments); got != Approved {
		t.Errorf("VerdictFromComments = %q, want Approved", got)
	}
	if got := VerdictFromComments(nil); got != NoVerdict {
		t.Errorf("VerdictFromComments(nil) = %q, want NoVerdict", got)
	}
}

func TestExtractOverride_LastWins(t *testing.T) {
	comments := []domain.Comment{
		{Body: "HUMAN OVERRIDE use feature flags"},
		{Body: "ordinary comment"},
		{Body: "HUMAN OVERRIDE revert the migration instead"},
	}
	got := ExtractOverride(comments)
	if got != "revert the migration instead" {
		t.Errorf("ExtractOverride = %q", got)
	}
	if ExtractOverride([]domain.Comment{{Body: "no marker"}}) != "" {
		t.Error("override found where none exists")
	}
}

func TestBranchName(t *testing.T) {
	name := BranchName("Fix the Selector: handle empty backlog!")
	if !strings.HasPrefix(name, "ai-dev/") {
		t.Errorf("branch %q missing prefix", name)
	}
	slug := strings.TrimPrefix(name, "ai-dev/")
	if len(slug) == 0 {
		t.Fatal("empty slug")
	}
	for _, r := range slug {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			t.Errorf("branch %q contains %q", name, r)
		}
	}

	a := BranchName("same task")
	b := BranchName("same task")
	if a == b {
		t.Errorf("two branches for the same task collided: %q", a)
	}
}

func TestWorkflowTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateInit, StateCoding, true},
		{StateCoding, StateAwaitingReview, true},
		{StateAwaitingReview, StateReviewing, true},
		{StateReviewing, StateApproved, true},
		{StateReviewing, StateChangesRequested, true},
		{StateChangesRequested, StateCoding, true},
		{StateApproved, StateMerged, true},
		{StateReviewing, StateExhausted, true},
		{StateInit, StateMerged, false},
		{StateMerged, StateCoding, false},
		{StateExhausted, StateCoding, false},
		{StateApproved, StateCoding, false},
	}
	for _, tt := range tests {
		if got := IsValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
