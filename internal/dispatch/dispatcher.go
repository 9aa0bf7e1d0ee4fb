// Package dispatch executes conductor plans. Each planned action becomes
// exactly one phase result; failures are recorded and never abort the
// remaining actions, except halt.
package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/backlog"
	"github.com/anthropics/cabinet-engine/internal/debate"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/pipeline"
	"github.com/anthropics/cabinet-engine/internal/prworkflow"
	"github.com/anthropics/cabinet-engine/internal/scout"
	"github.com/anthropics/cabinet-engine/internal/social"
	"github.com/anthropics/cabinet-engine/internal/telemetry"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

// Localizer translates a published analysis in place. Implementations
// are best effort; a localization failure never blocks publishing.
type Localizer interface {
	Localize(ctx context.Context, result *domain.SessionResult) error
}

// Dispatcher routes planned actions to the subsystems that execute them.
type Dispatcher struct {
	Tracker   tracker.Tracker
	Machine   *backlog.Machine
	Pipeline  *pipeline.Orchestrator
	Editorial *pipeline.Editorial
	Workflow  *prworkflow.Workflow
	Debate    *debate.Filter
	News      *scout.NewsScout
	Research  *scout.ResearchScout
	Director  *scout.Director
	Strategic *scout.Director
	Proposer  *Proposer
	Results   *pipeline.ResultStore
	Telemetry *telemetry.Writer
	Localizer Localizer
	Social    *social.Poster
	DryRun    bool
}

// Outcome summarizes one executed plan.
type Outcome struct {
	Phases []domain.CyclePhaseResult
	Yield  domain.YieldKind
	Halt   bool
}

// Execute runs every action of the plan in order. In dry-run mode,
// actions that would mutate external state are skipped and recorded as
// successful with a skip note.
func (d *Dispatcher) Execute(ctx context.Context, cycle int, plan domain.ConductorPlan) Outcome {
	var out Outcome
	for _, action := range plan.Actions {
		if out.Halt {
			break
		}
		phase := d.runAction(ctx, cycle, action, &out)
		out.Phases = append(out.Phases, phase)
	}
	return out
}

// runAction executes one action and captures timing and failure.
func (d *Dispatcher) runAction(ctx context.Context, cycle int, action domain.PlannedAction, out *Outcome) domain.CyclePhaseResult {
	log := clog.FromContext(ctx)
	phase := domain.CyclePhaseResult{
		Action:    string(action.Name),
		StartedAt: time.Now().UTC(),
	}

	if d.DryRun && mutating(action.Name) {
		phase.EndedAt = time.Now().UTC()
		phase.Success = true
		phase.Detail = "skipped (dry run)"
		return phase
	}

	detail, yield, halt, err := d.perform(ctx, action)
	phase.EndedAt = time.Now().UTC()
	phase.Detail = detail
	if halt {
		out.Halt = true
	}
	if yield != domain.YieldNone {
		out.Yield = yield
	}
	if err != nil {
		log.Errorf("action %s failed: %v", action.Name, err)
		phase.Error = &domain.PhaseError{
			Kind:    domain.Classify(err),
			Message: err.Error(),
		}
		if werr := d.Telemetry.AppendError(domain.StructuredError{
			Timestamp:   time.Now().UTC(),
			CycleNumber: cycle,
			Phase:       string(action.Name),
			Kind:        domain.Classify(err),
			Message:     err.Error(),
			IssueNumber: action.IssueNumber,
		}); werr != nil {
			log.Warnf("append error record: %v", werr)
		}
		return phase
	}
	phase.Success = true
	return phase
}

// mutating reports whether an action writes external state. Cooldown,
// skip, and halt are always safe to run.
func mutating(name domain.ActionName) bool {
	switch name {
	case domain.ActionCooldown, domain.ActionSkipCycle, domain.ActionHalt:
		return false
	}
	return true
}

func (d *Dispatcher) perform(ctx context.Context, action domain.PlannedAction) (detail string, yield domain.YieldKind, halt bool, err error) {
	now := time.Now().UTC()
	switch action.Name {
	case domain.ActionFetchNews:
		created, err := d.News.Run(ctx, now)
		return fmt.Sprintf("%d decision(s) filed", len(created)), domain.YieldNone, false, err

	case domain.ActionPropose:
		number, err := d.Proposer.Run(ctx)
		if number == 0 {
			return "no proposal filed", domain.YieldNone, false, err
		}
		return fmt.Sprintf("filed issue #%d", number), domain.YieldNone, false, err

	case domain.ActionDebate:
		return d.debateOldestProposal(ctx)

	case domain.ActionPickAndExecute:
		return d.pickAndExecute(ctx, action.IssueNumber)

	case domain.ActionDirector:
		filed, err := d.Director.Run(ctx)
		return fmt.Sprintf("%d issue(s) filed", len(filed)), domain.YieldNone, false, err

	case domain.ActionStrategicDirector:
		filed, err := d.Strategic.Run(ctx)
		return fmt.Sprintf("%d issue(s) filed", len(filed)), domain.YieldNone, false, err

	case domain.ActionResearchScout:
		filed, err := d.Research.Run(ctx, now)
		return fmt.Sprintf("%d finding(s) filed", len(filed)), domain.YieldNone, false, err

	case domain.ActionCooldown:
		return d.cooldown(ctx, action.Seconds)

	case domain.ActionHalt:
		return "halt requested", domain.YieldNone, true, nil

	case domain.ActionFileIssue:
		number, err := d.Tracker.CreateIssue(ctx, action.Title, action.Description, []string{
			domain.LabelProposed,
			domain.LabelTaskCodeChange,
		})
		if err != nil {
			return "", domain.YieldNone, false, err
		}
		return fmt.Sprintf("filed issue #%d", number), domain.YieldNone, false, nil

	case domain.ActionSkipCycle:
		return "cycle skipped", domain.YieldNone, false, nil

	default:
		return "", domain.YieldNone, false, fmt.Errorf("%w: unknown action %q", domain.ErrPlanInvalid, action.Name)
	}
}

func (d *Dispatcher) cooldown(ctx context.Context, seconds int) (string, domain.YieldKind, bool, error) {
	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "cooldown interrupted", domain.YieldNone, false, ctx.Err()
	case <-timer.C:
		return fmt.Sprintf("slept %ds", seconds), domain.YieldNone, false, nil
	}
}

// debateOldestProposal runs the debate filter on the oldest proposed
// issue. An empty proposal queue is a successful no-op.
func (d *Dispatcher) debateOldestProposal(ctx context.Context) (string, domain.YieldKind, bool, error) {
	proposed, err := d.Tracker.ListOpenIssues(ctx, domain.LabelProposed)
	if err != nil {
		return "", domain.YieldNone, false, err
	}
	if len(proposed) == 0 {
		return "no proposals to debate", domain.YieldNone, false, nil
	}
	sort.SliceStable(proposed, func(i, j int) bool {
		return proposed[i].CreatedAt.Before(proposed[j].CreatedAt)
	})
	issue := proposed[0]

	outcome, err := d.Debate.Run(ctx, issue)
	if err != nil {
		return "", domain.YieldNone, false, err
	}
	if outcome.Bypassed {
		return fmt.Sprintf("issue #%d accepted (human bypass)", issue.Number), domain.YieldNone, false, nil
	}
	verdict := "rejected"
	if outcome.Accepted {
		verdict = "accepted"
	}
	return fmt.Sprintf("issue #%d %s (strength %d, weakness %d)",
		issue.Number, verdict, outcome.StrengthScore, outcome.WeaknessScore), domain.YieldNone, false, nil
}

// pickAndExecute drives one backlog issue to completion. At most one
// issue may be in progress at a time; the check runs before any labels
// move.
func (d *Dispatcher) pickAndExecute(ctx context.Context, number int) (string, domain.YieldKind, bool, error) {
	issue, err := d.Tracker.GetIssue(ctx, number)
	if err != nil {
		return "", domain.YieldNone, false, err
	}

	inProgress, err := d.Machine.InProgressCount(ctx)
	if err != nil {
		return "", domain.YieldNone, false, err
	}
	if inProgress > 0 && issue.ImproveState() != domain.StateInProgress {
		return "", domain.YieldNone, false, fmt.Errorf(
			"%w: %d issue(s) already in progress", domain.ErrStateConflict, inProgress)
	}

	if err := d.Machine.MarkInProgress(ctx, issue); err != nil {
		return "", domain.YieldNone, false, err
	}
	issue.Labels = append(issue.Labels, domain.StateLabel(domain.StateInProgress))
	issue.Labels = removeLabel(issue.Labels, domain.StateLabel(domain.StateBacklog))

	if issue.HasLabel(domain.LabelTaskAnalysis) {
		return d.executeAnalysis(ctx, issue)
	}
	return d.executeCodeChange(ctx, issue)
}

// executeAnalysis runs the pipeline on the decision parked for the issue.
func (d *Dispatcher) executeAnalysis(ctx context.Context, issue domain.Issue) (string, domain.YieldKind, bool, error) {
	log := clog.FromContext(ctx)

	id := domain.FindDecisionID(issue.Title)
	if id == "" {
		err := fmt.Errorf("%w: issue #%d has no decision id", domain.ErrStateConflict, issue.Number)
		d.failIssue(ctx, issue, err)
		return "", domain.YieldNone, false, err
	}
	decision, err := d.Results.LoadPending(id)
	if err != nil || decision == nil {
		if err == nil {
			err = fmt.Errorf("%w: no pending decision %s", domain.ErrStateConflict, id)
		}
		d.failIssue(ctx, issue, err)
		return "", domain.YieldNone, false, err
	}

	result, err := d.Pipeline.Analyze(ctx, *decision)
	if err != nil {
		d.failIssue(ctx, issue, err)
		return "", domain.YieldNone, false, err
	}

	// Post-publication steps are best effort.
	if d.Localizer != nil {
		if err := d.Localizer.Localize(ctx, result); err != nil {
			log.Warnf("localize %s: %v", id, err)
		} else if err := d.Results.Save(result); err != nil {
			log.Warnf("persist localized %s: %v", id, err)
		}
	}
	if d.Editorial != nil {
		if _, err := d.Editorial.Review(ctx, result, d.analysisPath(id)); err != nil {
			log.Warnf("editorial review %s: %v", id, err)
		}
	}
	d.Social.Announce(ctx, result)

	if err := d.Results.RemovePending(id); err != nil {
		log.Warnf("remove pending %s: %v", id, err)
	}
	if err := d.Machine.MarkDone(ctx, issue, fmt.Sprintf("Analysis %s published.", id)); err != nil {
		return "", domain.YieldAnalysisPublished, false, err
	}
	return fmt.Sprintf("published analysis %s", id), domain.YieldAnalysisPublished, false, nil
}

// executeCodeChange runs the coder-reviewer workflow for the issue.
func (d *Dispatcher) executeCodeChange(ctx context.Context, issue domain.Issue) (string, domain.YieldKind, bool, error) {
	outcome, err := d.Workflow.Execute(ctx, issue)
	if err != nil {
		d.failIssue(ctx, issue, err)
		return "", domain.YieldNone, false, err
	}
	if !outcome.Merged {
		err := fmt.Errorf("%w: workflow ended in %s", domain.ErrMaxRoundsExceeded, outcome.Final)
		d.failIssue(ctx, issue, err)
		return "", domain.YieldNone, false, err
	}
	if err := d.Machine.MarkDone(ctx, issue,
		fmt.Sprintf("Merged PR #%d after %d round(s).", outcome.PRNumber, outcome.Rounds)); err != nil {
		return "", domain.YieldPRMerged, false, err
	}
	return fmt.Sprintf("merged PR #%d", outcome.PRNumber), domain.YieldPRMerged, false, nil
}

// failIssue marks an in-progress issue failed, best effort.
func (d *Dispatcher) failIssue(ctx context.Context, issue domain.Issue, cause error) {
	comment := fmt.Sprintf("Execution failed: %v", cause)
	if err := d.Machine.MarkFailed(ctx, issue, comment); err != nil {
		clog.FromContext(ctx).Warnf("mark issue #%d failed: %v", issue.Number, err)
	}
}

func (d *Dispatcher) analysisPath(decisionID string) string {
	return filepath.Join(d.Results.DataDir, "analyses", decisionID+".json")
}

func removeLabel(labels []string, target string) []string {
	out := labels[:0]
	for _, l := range labels {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}
