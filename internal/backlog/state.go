// Package backlog drives the issue-label state machine and the
// deterministic backlog selector.
package backlog

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

// validTransitions defines the legal issue state transitions.
// Terminal states are sticky: they have no outgoing edges.
var validTransitions = map[domain.IssueState]map[domain.IssueState]bool{
	domain.StateProposed:   {domain.StateBacklog: true, domain.StateRejected: true},
	domain.StateBacklog:    {domain.StateInProgress: true},
	domain.StateInProgress: {domain.StateDone: true, domain.StateFailed: true},
}

// IsValidTransition checks if an issue state transition is legal.
func IsValidTransition(from, to domain.IssueState) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Machine applies state transitions at the tracker boundary. Transitions
// are expressed as label swaps so re-delivery of the same command is
// idempotent.
type Machine struct {
	Tracker tracker.Tracker
}

// NewMachine creates a state machine over the given tracker.
func NewMachine(t tracker.Tracker) *Machine {
	return &Machine{Tracker: t}
}

// Transition moves an issue to the target state. Repeating a transition
// the issue has already taken is a no-op; illegal transitions return
// ErrInvalidTransition and a missing precondition returns
// ErrStateConflict.
func (m *Machine) Transition(ctx context.Context, issue domain.Issue, to domain.IssueState) error {
	from := issue.ImproveState()
	if from == to {
		return nil
	}
	if from == "" {
		return fmt.Errorf("%w: issue #%d carries no state label", domain.ErrStateConflict, issue.Number)
	}
	if from.Terminal() {
		return fmt.Errorf("%w: issue #%d is terminal (%s)", domain.ErrStateConflict, issue.Number, from)
	}
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s on issue #%d", domain.ErrInvalidTransition, from, to, issue.Number)
	}

	if err := m.Tracker.AddLabels(ctx, issue.Number, domain.StateLabel(to)); err != nil {
		return fmt.Errorf("label issue #%d %s: %w", issue.Number, to, err)
	}
	if err := m.Tracker.RemoveLabel(ctx, issue.Number, domain.StateLabel(from)); err != nil {
		return fmt.Errorf("unlabel issue #%d %s: %w", issue.Number, from, err)
	}

	clog.FromContext(ctx).Infof("issue #%d: %s -> %s", issue.Number, from, to)
	return nil
}

// MarkInProgress moves a backlog issue to in-progress.
func (m *Machine) MarkInProgress(ctx context.Context, issue domain.Issue) error {
	return m.Transition(ctx, issue, domain.StateInProgress)
}

// MarkDone completes an issue: terminal label, closing comment, close.
func (m *Machine) MarkDone(ctx context.Context, issue domain.Issue, comment string) error {
	return m.finish(ctx, issue, domain.StateDone, comment)
}

// MarkFailed fails an issue with a final comment summarizing the error.
func (m *Machine) MarkFailed(ctx context.Context, issue domain.Issue, comment string) error {
	return m.finish(ctx, issue, domain.StateFailed, comment)
}

// MarkRejected rejects a proposed issue and closes it.
func (m *Machine) MarkRejected(ctx context.Context, issue domain.Issue, comment string) error {
	return m.finish(ctx, issue, domain.StateRejected, comment)
}

func (m *Machine) finish(ctx context.Context, issue domain.Issue, to domain.IssueState, comment string) error {
	// Re-delivery: the terminal label is already set, so the comment was
	// already posted and the issue already closed.
	if issue.ImproveState() == to {
		return nil
	}
	if err := m.Transition(ctx, issue, to); err != nil {
		return err
	}
	if comment != "" {
		if err := m.Tracker.CommentIssue(ctx, issue.Number, comment); err != nil {
			return err
		}
	}
	if issue.State == "open" {
		return m.Tracker.CloseIssue(ctx, issue.Number)
	}
	return nil
}

// InProgressCount returns how many open issues carry the in-progress
// label. The engine enforces at most one.
func (m *Machine) InProgressCount(ctx context.Context) (int, error) {
	issues, err := m.Tracker.ListOpenIssues(ctx, domain.LabelInProgress)
	if err != nil {
		return 0, err
	}
	return len(issues), nil
}
