package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// fakeTracker captures issue creation for breaker tests.
type fakeTracker struct {
	open    []domain.Issue
	created []string
}

func (f *fakeTracker) ListOpenIssues(ctx context.Context, labels ...string) ([]domain.Issue, error) {
	return f.open, nil
}

func (f *fakeTracker) GetIssue(ctx context.Context, number int) (domain.Issue, error) {
	return domain.Issue{}, nil
}

func (f *fakeTracker) CreateIssue(ctx context.Context, title, body string, labels []string) (int, error) {
	f.created = append(f.created, title)
	return len(f.created), nil
}

func (f *fakeTracker) AddLabels(ctx context.Context, number int, labels ...string) error { return nil }
func (f *fakeTracker) RemoveLabel(ctx context.Context, number int, label string) error   { return nil }
func (f *fakeTracker) CloseIssue(ctx context.Context, number int) error                  { return nil }
func (f *fakeTracker) CommentIssue(ctx context.Context, number int, body string) error   { return nil }
func (f *fakeTracker) ListIssueComments(ctx context.Context, number int) ([]domain.Comment, error) {
	return nil, nil
}
func (f *fakeTracker) PullRequestForBranch(ctx context.Context, branch string) (*domain.PullRequest, error) {
	return nil, nil
}
func (f *fakeTracker) ListOpenPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	return nil, nil
}
func (f *fakeTracker) ListMergedPullRequests(ctx context.Context, limit int) ([]domain.PullRequest, error) {
	return nil, nil
}
func (f *fakeTracker) ListPullRequestComments(ctx context.Context, number int) ([]domain.Comment, error) {
	return nil, nil
}
func (f *fakeTracker) CommentPullRequest(ctx context.Context, number int, body string) error {
	return nil
}
func (f *fakeTracker) MergePullRequest(ctx context.Context, number int) error { return nil }
func (f *fakeTracker) ClosePullRequest(ctx context.Context, number int) error { return nil }
func (f *fakeTracker) IsCIPassing(ctx context.Context) (bool, error)          { return true, nil }

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"timeout after 900 seconds", "timeout after N seconds"},
		{"first line\nsecond line", "first line"},
		{"  padded  ", "padded"},
		{strings.Repeat("a", 200), strings.Repeat("a", 120)},
		{"PR #42 failed on issue #7", "PR #N failed on issue #N"},
	}
	for _, tt := range tests {
		if got := normalizeMessage(tt.in); got != tt.want {
			t.Errorf("normalizeMessage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func failedCycle(cycle int, action, message string) domain.CycleTelemetry {
	return domain.CycleTelemetry{
		CycleNumber: cycle,
		Phases: []domain.CyclePhaseResult{{
			Action: action,
			Error: &domain.PhaseError{
				Kind:    domain.KindAgentTimeout,
				Message: message,
			},
		}},
	}
}

func TestBreaker_TripsOnRepeatedTriple(t *testing.T) {
	w := NewWriter(t.TempDir())
	for cycle := 1; cycle <= 3; cycle++ {
		if err := w.AppendCycle(failedCycle(cycle, "fetch_news", "timeout after 900 seconds")); err != nil {
			t.Fatal(err)
		}
	}

	ft := &fakeTracker{}
	b := NewBreaker(w, ft)
	if err := b.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(ft.created) != 1 {
		t.Fatalf("created %d issues, want 1", len(ft.created))
	}
	if !strings.HasPrefix(ft.created[0], "stability: ") {
		t.Errorf("title = %q, want stability prefix", ft.created[0])
	}
}

func TestBreaker_BelowThreshold(t *testing.T) {
	w := NewWriter(t.TempDir())
	for cycle := 1; cycle <= 2; cycle++ {
		if err := w.AppendCycle(failedCycle(cycle, "fetch_news", "timeout after 900 seconds")); err != nil {
			t.Fatal(err)
		}
	}

	ft := &fakeTracker{}
	if err := NewBreaker(w, ft).Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(ft.created) != 0 {
		t.Errorf("created %v below threshold", ft.created)
	}
}

func TestBreaker_DedupsWithinCycle(t *testing.T) {
	w := NewWriter(t.TempDir())
	// One cycle repeats the same failure three times; that counts once.
	rec := failedCycle(1, "fetch_news", "timeout after 900 seconds")
	rec.Phases = append(rec.Phases, rec.Phases[0], rec.Phases[0])
	if err := w.AppendCycle(rec); err != nil {
		t.Fatal(err)
	}

	ft := &fakeTracker{}
	if err := NewBreaker(w, ft).Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(ft.created) != 0 {
		t.Errorf("single-cycle repetition tripped the breaker: %v", ft.created)
	}
}

func TestBreaker_SkipsWhenIssueAlreadyOpen(t *testing.T) {
	w := NewWriter(t.TempDir())
	for cycle := 1; cycle <= 3; cycle++ {
		if err := w.AppendCycle(failedCycle(cycle, "fetch_news", "timeout after 900 seconds")); err != nil {
			t.Fatal(err)
		}
	}

	existing := triple{
		Phase:   "fetch_news",
		Kind:    domain.KindAgentTimeout,
		Message: normalizeMessage("timeout after 900 seconds"),
	}
	ft := &fakeTracker{open: []domain.Issue{{Number: 9, Title: existing.title()}}}
	if err := NewBreaker(w, ft).Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(ft.created) != 0 {
		t.Errorf("duplicate stability issue filed: %v", ft.created)
	}
}
