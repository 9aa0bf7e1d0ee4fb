package conductor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/backlog"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/telemetry"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

const (
	contextCycles = 20
	contextErrors = 30
)

// Gates are the rate predicates the planner must respect. They are
// computed by the engine before planning, never by the planner itself.
type Gates struct {
	NewsAllowed      bool `json:"news_allowed_today"`
	ResearchDue      bool `json:"research_scout_due"`
	DirectorDue      bool `json:"director_due"`
	StrategicDue     bool `json:"strategic_director_due"`
	AnalysisDisabled bool `json:"analysis_disabled,omitempty"`
	ImproveDisabled  bool `json:"improve_disabled,omitempty"`
}

// Conductor produces the per-cycle plan.
type Conductor struct {
	Runner    *agent.Runner
	Tracker   tracker.Tracker
	Telemetry *telemetry.Writer
	Journal   *Journal
	Model     string
}

// stateContext is the serialized engine state handed to the planner.
type stateContext struct {
	CycleNumber     int                      `json:"cycle_number"`
	Now             string                   `json:"now"`
	Gates           Gates                    `json:"gates"`
	CIPassing       bool                     `json:"ci_passing"`
	Backlog         []backlogEntry           `json:"backlog"`
	OpenPRs         []prEntry                `json:"open_prs"`
	RecentMerged    []prEntry                `json:"recently_merged_prs"`
	RecentCycles    []domain.CycleTelemetry  `json:"recent_cycles"`
	RecentErrors    []domain.StructuredError `json:"recent_errors"`
	ActionFrequency map[string]int           `json:"action_frequency"`
	Journal         []domain.JournalEntry    `json:"journal"`
}

type backlogEntry struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Labels  []string `json:"labels"`
	AgeDays int      `json:"age_days"`
}

type prEntry struct {
	Number int    `json:"number"`
	Branch string `json:"branch"`
	State  string `json:"state"`
}

// Plan produces a validated plan for the cycle. The returned bool is
// true when the plan came from a fallback rather than the primary
// planner. Gathering failures degrade the context instead of aborting.
func (c *Conductor) Plan(ctx context.Context, cycle int, gates Gates) (domain.ConductorPlan, bool, error) {
	log := clog.FromContext(ctx)

	state, issues := c.gather(ctx, cycle, gates)
	contextJSON, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return domain.ConductorPlan{}, true, fmt.Errorf("marshal planner context: %w", err)
	}

	plan, err := c.ask(ctx, contextJSON, agent.NoTools)
	if err == nil {
		return plan, false, nil
	}
	log.Warnf("primary planner failed: %v", err)

	plan, err = c.ask(ctx, contextJSON, agent.RecoveryTools)
	if err == nil {
		return plan, true, nil
	}
	log.Warnf("recovery planner failed: %v", err)

	return DefaultPlan(gates, issues), true, nil
}

// gather assembles the planner context. Every source is best effort so a
// tracker or telemetry hiccup degrades the plan instead of the cycle.
func (c *Conductor) gather(ctx context.Context, cycle int, gates Gates) (stateContext, []domain.Issue) {
	log := clog.FromContext(ctx)
	now := time.Now().UTC()

	state := stateContext{
		CycleNumber:     cycle,
		Now:             now.Format(time.RFC3339),
		Gates:           gates,
		CIPassing:       true,
		ActionFrequency: map[string]int{},
	}

	if cycles, err := c.Telemetry.LoadCycles(contextCycles); err == nil {
		state.RecentCycles = cycles
		for _, rec := range cycles {
			for _, action := range rec.ConductorActions {
				state.ActionFrequency[action]++
			}
		}
	} else {
		log.Warnf("load telemetry: %v", err)
	}
	if errs, err := c.Telemetry.LoadErrors(contextErrors); err == nil {
		state.RecentErrors = errs
	} else {
		log.Warnf("load errors: %v", err)
	}
	if entries, err := c.Journal.Load(); err == nil {
		state.Journal = entries
	} else {
		log.Warnf("load journal: %v", err)
	}

	var issues []domain.Issue
	if open, err := c.Tracker.ListOpenIssues(ctx); err == nil {
		issues = open
		for _, issue := range open {
			if !issue.HasLabel(domain.LabelBacklog) {
				continue
			}
			state.Backlog = append(state.Backlog, backlogEntry{
				Number:  issue.Number,
				Title:   issue.Title,
				Labels:  issue.Labels,
				AgeDays: int(now.Sub(issue.CreatedAt).Hours() / 24),
			})
		}
	} else {
		log.Warnf("list open issues: %v", err)
	}
	if prs, err := c.Tracker.ListOpenPullRequests(ctx); err == nil {
		for _, pr := range prs {
			state.OpenPRs = append(state.OpenPRs, prEntry{pr.Number, pr.Branch, pr.State})
		}
	} else {
		log.Warnf("list open prs: %v", err)
	}
	if merged, err := c.Tracker.ListMergedPullRequests(ctx, 5); err == nil {
		for _, pr := range merged {
			state.RecentMerged = append(state.RecentMerged, prEntry{pr.Number, pr.Branch, pr.State})
		}
	} else {
		log.Warnf("list merged prs: %v", err)
	}
	if passing, err := c.Tracker.IsCIPassing(ctx); err == nil {
		state.CIPassing = passing
	}

	return state, issues
}

// ask runs one planner attempt and validates its output.
func (c *Conductor) ask(ctx context.Context, contextJSON []byte, tools []string) (domain.ConductorPlan, error) {
	text, err := c.Runner.Run(ctx, agent.Request{
		SystemPrompt: plannerSystemPrompt,
		UserPrompt:   fmt.Sprintf("Current engine state:\n%s\n\nProduce the plan for this cycle.", contextJSON),
		Model:        c.Model,
		AllowedTools: tools,
	})
	if err != nil {
		return domain.ConductorPlan{}, err
	}
	plan, err := agent.Extract[domain.ConductorPlan](text)
	if err != nil {
		return domain.ConductorPlan{}, fmt.Errorf("%w: %v", domain.ErrPlanInvalid, err)
	}
	if err := plan.Validate(); err != nil {
		return domain.ConductorPlan{}, err
	}
	return plan, nil
}

// DefaultPlan is the terminal fallback. It fetches news when the daily
// gate allows, executes the highest-priority backlog issue if one
// exists, and cools down.
func DefaultPlan(gates Gates, issues []domain.Issue) domain.ConductorPlan {
	plan := domain.ConductorPlan{
		Reasoning: "Fallback plan: both planner attempts failed.",
	}
	if gates.NewsAllowed && !gates.AnalysisDisabled {
		plan.Actions = append(plan.Actions, domain.PlannedAction{Name: domain.ActionFetchNews})
	}
	if pick := backlog.Pick(issues); pick != nil {
		plan.Actions = append(plan.Actions, domain.PlannedAction{
			Name:        domain.ActionPickAndExecute,
			IssueNumber: pick.Number,
		})
	}
	plan.Actions = append(plan.Actions, domain.PlannedAction{
		Name:    domain.ActionCooldown,
		Seconds: 60,
	})
	return plan
}

const plannerSystemPrompt = `You are the conductor of an autonomous engine that analyzes government decisions and improves its own codebase. Each cycle you receive the engine state and respond with a plan.

Respond with a single JSON object:
{
  "reasoning": "why these actions, in a few sentences",
  "actions": [{"name": "...", "issue_number": 0, "seconds": 0, "title": "", "description": ""}],
  "suggested_cooldown_seconds": 0,
  "notes_for_next_cycle": ""
}

Allowed action names: fetch_news, propose, debate, pick_and_execute, director, strategic_director, research_scout, cooldown, halt, file_issue, skip_cycle. At most 6 actions.

Rules:
- pick_and_execute requires issue_number, cooldown requires seconds, file_issue requires title and description.
- Respect the gates: never plan fetch_news when news_allowed_today is false, research_scout when research_scout_due is false, or the directors when their gates are false.
- Prefer finishing in-flight work over starting new work.
- Plan halt only when continuing would be harmful.`
