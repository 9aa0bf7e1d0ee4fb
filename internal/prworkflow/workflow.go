package prworkflow

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

// State of the coder-reviewer machine.
type State string

const (
	StateInit             State = "init"
	StateCoding           State = "coding"
	StateAwaitingReview   State = "awaiting_review"
	StateReviewing        State = "reviewing"
	StateApproved         State = "approved"
	StateChangesRequested State = "changes_requested"
	StateMerged           State = "merged"
	StateExhausted        State = "exhausted"
)

// validTransitions defines the legal workflow transitions.
var validTransitions = map[State]map[State]bool{
	StateInit:             {StateCoding: true},
	StateCoding:           {StateAwaitingReview: true, StateExhausted: true},
	StateAwaitingReview:   {StateReviewing: true},
	StateReviewing:        {StateApproved: true, StateChangesRequested: true, StateExhausted: true},
	StateChangesRequested: {StateCoding: true, StateExhausted: true},
	StateApproved:         {StateMerged: true},
}

// IsValidTransition checks if a workflow transition is legal.
func IsValidTransition(from, to State) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Outcome summarizes a finished workflow.
type Outcome struct {
	Merged   bool
	PRNumber int
	Rounds   int
	Final    State
}

// Workflow runs coder and reviewer agents against one task until the
// reviewer approves or the round cap is hit.
type Workflow struct {
	Runner         *agent.Runner
	Tracker        tracker.Tracker
	Git            *Git
	Model          string
	MaxRounds      int
	ReviewerPrompt string
	CoderPrompt    string
}

// Execute drives the task described by the issue to a merged PR or a
// capped failure. Every agent invocation is a fresh subprocess; the
// reviewer never gets write tools and the coder never merges.
func (w *Workflow) Execute(ctx context.Context, issue domain.Issue) (Outcome, error) {
	log := clog.FromContext(ctx)
	state := StateInit
	out := Outcome{Final: state}

	task := fmt.Sprintf("%s\n\n%s\n\nCloses #%d", issue.Title, issue.Body, issue.Number)
	branch := BranchName(issue.Title)

	override := w.overrideFor(ctx, issue.Number, 0)

	// init -> coding: branch, then the coder implements and opens a PR.
	state = StateCoding
	if err := w.Git.CreateBranch(branch); err != nil {
		return out, err
	}
	defer func() {
		if err := w.Git.CheckoutMain(); err != nil {
			log.Warnf("checkout main after workflow: %v", err)
		}
	}()

	if _, err := w.runCoder(ctx, coderRound1Prompt(task, override), branch); err != nil {
		return out, err
	}

	pr, err := w.Tracker.PullRequestForBranch(ctx, branch)
	if err != nil {
		return out, err
	}
	if pr == nil {
		return out, fmt.Errorf("%w: coder opened no PR on %s", domain.ErrAgentExec, branch)
	}
	out.PRNumber = pr.Number
	state = StateAwaitingReview

	missingVerdicts := 0
	for round := 1; ; round++ {
		out.Rounds = round
		state = StateReviewing
		log.Infof("round %d: reviewing PR #%d", round, pr.Number)

		override = w.overrideFor(ctx, issue.Number, pr.Number)
		reviewerText, err := w.runReviewer(ctx, pr.Number, override)
		if err != nil {
			return out, err
		}

		comments, err := w.Tracker.ListPullRequestComments(ctx, pr.Number)
		if err != nil {
			return out, err
		}
		verdict := VerdictFromComments(comments)
		if verdict == NoVerdict {
			// The reviewer may have composed the verdict without posting it.
			verdict = ExtractVerdict(reviewerText)
		}

		switch verdict {
		case Approved:
			state = StateApproved
			if err := w.Tracker.MergePullRequest(ctx, pr.Number); err != nil {
				return out, err
			}
			out.Merged = true
			out.Final = StateMerged
			log.Infof("PR #%d merged after %d round(s)", pr.Number, round)
			return out, nil
		case NoVerdict:
			missingVerdicts++
			log.Warnf("no verdict on PR #%d for %d consecutive round(s)", pr.Number, missingVerdicts)
			if missingVerdicts >= 2 {
				// Fail closed: an unreviewable PR is never merged.
				out.Final = StateExhausted
				if err := w.Tracker.ClosePullRequest(ctx, pr.Number); err != nil {
					log.Warnf("close unreviewed PR #%d: %v", pr.Number, err)
				}
				return out, fmt.Errorf("%w: reviewer posted no verdict twice on PR #%d", domain.ErrAgentEmpty, pr.Number)
			}
		default:
			missingVerdicts = 0
		}

		// The cap binds after the final round's verdict; the coder never
		// runs again once the budget is spent.
		if w.MaxRounds > 0 && round >= w.MaxRounds {
			out.Final = StateExhausted
			if err := w.Tracker.ClosePullRequest(ctx, pr.Number); err != nil {
				log.Warnf("close exhausted PR #%d: %v", pr.Number, err)
			}
			return out, fmt.Errorf("%w: %d rounds on PR #%d", domain.ErrMaxRoundsExceeded, w.MaxRounds, pr.Number)
		}

		state = StateCoding
		log.Infof("round %d: coder addressing feedback on PR #%d", round, pr.Number)
		if _, err := w.runCoder(ctx, coderFollowupPrompt(task, pr.Number, override), branch); err != nil {
			return out, err
		}
	}
}

func (w *Workflow) runCoder(ctx context.Context, prompt, branch string) (string, error) {
	return w.Runner.Run(ctx, agent.Request{
		SystemPrompt: w.CoderPrompt,
		UserPrompt:   prompt,
		Model:        w.Model,
		AllowedTools: agent.CoderTools,
		MaxTurns:     0,
	})
}

func (w *Workflow) runReviewer(ctx context.Context, prNumber int, override string) (string, error) {
	return w.Runner.Run(ctx, agent.Request{
		SystemPrompt: w.ReviewerPrompt,
		UserPrompt:   reviewerPrompt(prNumber, override),
		Model:        w.Model,
		AllowedTools: agent.ReviewerTools,
		MaxTurns:     0,
	})
}

// overrideFor gathers the latest human override from the issue and, when
// a PR exists, its comments. PR overrides win over issue overrides.
func (w *Workflow) overrideFor(ctx context.Context, issueNumber, prNumber int) string {
	log := clog.FromContext(ctx)
	override := ""

	if issueNumber > 0 {
		comments, err := w.Tracker.ListIssueComments(ctx, issueNumber)
		if err != nil {
			log.Warnf("list issue #%d comments: %v", issueNumber, err)
		} else {
			override = ExtractOverride(comments)
		}
	}
	if prNumber > 0 {
		comments, err := w.Tracker.ListPullRequestComments(ctx, prNumber)
		if err != nil {
			log.Warnf("list PR #%d comments: %v", prNumber, err)
		} else if prOverride := ExtractOverride(comments); prOverride != "" {
			override = prOverride
		}
	}
	if override != "" {
		log.Infof("human override active for issue #%d", issueNumber)
	}
	return override
}
