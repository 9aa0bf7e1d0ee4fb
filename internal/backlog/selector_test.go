package backlog

import (
	"testing"
	"time"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

func backlogIssue(number int, age time.Duration, labels ...string) domain.Issue {
	return domain.Issue{
		Number:    number,
		Title:     "issue",
		State:     "open",
		Labels:    append([]string{domain.LabelBacklog}, labels...),
		CreatedAt: time.Now().Add(-age),
	}
}

func TestPick_EmptyBacklog(t *testing.T) {
	if got := Pick(nil); got != nil {
		t.Errorf("Pick(nil) = %v, want nil", got)
	}

	closed := backlogIssue(1, time.Hour)
	closed.State = "closed"
	noLabel := domain.Issue{Number: 2, State: "open", CreatedAt: time.Now()}
	if got := Pick([]domain.Issue{closed, noLabel}); got != nil {
		t.Errorf("Pick with no eligible issues = %v, want nil", got)
	}
}

func TestPick_CriticalNewestFirst(t *testing.T) {
	issues := []domain.Issue{
		backlogIssue(1, 3*time.Hour, domain.LabelPriorityCritical),
		backlogIssue(2, time.Hour, domain.LabelPriorityCritical),
		backlogIssue(3, 5*time.Hour, domain.LabelTaskAnalysis),
	}
	pick := Pick(issues)
	if pick == nil || pick.Number != 2 {
		t.Fatalf("Pick = %v, want newest critical #2", pick)
	}
}

func TestPick_TierOrder(t *testing.T) {
	analysis := backlogIssue(10, 1*time.Hour, domain.LabelTaskAnalysis)
	human := backlogIssue(11, 4*time.Hour, domain.LabelHuman)
	director := backlogIssue(12, 5*time.Hour, domain.LabelDirector)
	plain := backlogIssue(13, 9*time.Hour)

	tests := []struct {
		name   string
		issues []domain.Issue
		want   int
	}{
		{"analysis beats human", []domain.Issue{human, analysis}, 10},
		{"human beats director", []domain.Issue{director, human}, 11},
		{"director beats plain", []domain.Issue{plain, director}, 12},
		{"plain when alone", []domain.Issue{plain}, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pick := Pick(tt.issues)
			if pick == nil || pick.Number != tt.want {
				t.Errorf("Pick = %v, want #%d", pick, tt.want)
			}
		})
	}
}

func TestPick_OldestWithinTier(t *testing.T) {
	issues := []domain.Issue{
		backlogIssue(1, time.Hour, domain.LabelTaskAnalysis),
		backlogIssue(2, 3*time.Hour, domain.LabelTaskAnalysis),
		backlogIssue(3, 2*time.Hour, domain.LabelTaskAnalysis),
	}
	pick := Pick(issues)
	if pick == nil || pick.Number != 2 {
		t.Fatalf("Pick = %v, want oldest analysis #2", pick)
	}
}

func TestPick_DoesNotMutateInput(t *testing.T) {
	issues := []domain.Issue{
		backlogIssue(1, time.Hour),
		backlogIssue(2, 3*time.Hour),
	}
	first := issues[0].Number
	_ = Pick(issues)
	if issues[0].Number != first {
		t.Error("Pick reordered the caller's slice")
	}
}
