package dispatch

import (
	"context"
	"testing"

	"github.com/anthropics/cabinet-engine/internal/backlog"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/telemetry"
)

// fakeTracker serves configured issues and records mutations.
type fakeTracker struct {
	issues  map[int]domain.Issue
	open    []domain.Issue
	added   []string
	created []string
}

func (f *fakeTracker) ListOpenIssues(ctx context.Context, labels ...string) ([]domain.Issue, error) {
	var out []domain.Issue
	for _, issue := range f.open {
		match := true
		for _, l := range labels {
			if !issue.HasLabel(l) {
				match = false
				break
			}
		}
		if match {
			out = append(out, issue)
		}
	}
	return out, nil
}

func (f *fakeTracker) GetIssue(ctx context.Context, number int) (domain.Issue, error) {
	return f.issues[number], nil
}

func (f *fakeTracker) CreateIssue(ctx context.Context, title, body string, labels []string) (int, error) {
	f.created = append(f.created, title)
	return len(f.created), nil
}

func (f *fakeTracker) AddLabels(ctx context.Context, number int, labels ...string) error {
	f.added = append(f.added, labels...)
	return nil
}

func (f *fakeTracker) RemoveLabel(ctx context.Context, number int, label string) error { return nil }

func (f *fakeTracker) CloseIssue(ctx context.Context, number int) error { return nil }

func (f *fakeTracker) CommentIssue(ctx context.Context, number int, body string) error { return nil }

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

func (f *fakeTracker) IsCIPassing(ctx context.Context) (bool, error) { return true, nil }

func TestExecute_DryRunSkipsMutations(t *testing.T) {
	ft := &fakeTracker{}
	d := &Dispatcher{Tracker: ft, DryRun: true}

	plan := domain.ConductorPlan{Actions: []domain.PlannedAction{
		{Name: domain.ActionFetchNews},
		{Name: domain.ActionFileIssue, Title: "tune retries", Description: "widen backoff"},
		{Name: domain.ActionSkipCycle},
	}}
	out := d.Execute(context.Background(), 1, plan)

	if len(out.Phases) != 3 {
		t.Fatalf("phases = %d, want one per action", len(out.Phases))
	}
	wantDetails := []string{"skipped (dry run)", "skipped (dry run)", "cycle skipped"}
	for i, want := range wantDetails {
		phase := out.Phases[i]
		if !phase.Success {
			t.Errorf("phase %d (%s) not successful", i, phase.Action)
		}
		if phase.Detail != want {
			t.Errorf("phase %d detail = %q, want %q", i, phase.Detail, want)
		}
	}
	if len(ft.created) != 0 {
		t.Errorf("dry run filed issues %v", ft.created)
	}
}

func TestExecute_HaltStopsPlan(t *testing.T) {
	d := &Dispatcher{}

	plan := domain.ConductorPlan{Actions: []domain.PlannedAction{
		{Name: domain.ActionHalt},
		{Name: domain.ActionSkipCycle},
	}}
	out := d.Execute(context.Background(), 1, plan)

	if !out.Halt {
		t.Error("halt not reported")
	}
	if len(out.Phases) != 1 {
		t.Errorf("phases = %d, want halt to stop the plan", len(out.Phases))
	}
}

func TestPickAndExecute_SingleInProgress(t *testing.T) {
	busy := domain.Issue{
		Number: 3,
		State:  "open",
		Labels: []string{domain.StateLabel(domain.StateInProgress)},
	}
	target := domain.Issue{
		Number: 5,
		State:  "open",
		Labels: []string{domain.StateLabel(domain.StateBacklog), domain.LabelTaskCodeChange},
	}
	ft := &fakeTracker{
		issues: map[int]domain.Issue{5: target},
		open:   []domain.Issue{busy, target},
	}
	d := &Dispatcher{
		Tracker:   ft,
		Machine:   backlog.NewMachine(ft),
		Telemetry: telemetry.NewWriter(t.TempDir()),
	}

	plan := domain.ConductorPlan{Actions: []domain.PlannedAction{
		{Name: domain.ActionPickAndExecute, IssueNumber: 5},
	}}
	out := d.Execute(context.Background(), 1, plan)

	if len(out.Phases) != 1 {
		t.Fatalf("phases = %d, want 1", len(out.Phases))
	}
	phase := out.Phases[0]
	if phase.Success || phase.Error == nil {
		t.Fatalf("expected conflict failure, got success=%v error=%v", phase.Success, phase.Error)
	}
	if phase.Error.Kind != domain.KindStateConflict {
		t.Errorf("error kind = %s, want %s", phase.Error.Kind, domain.KindStateConflict)
	}
	if len(ft.added) != 0 {
		t.Errorf("conflict still moved labels: %v", ft.added)
	}
}
