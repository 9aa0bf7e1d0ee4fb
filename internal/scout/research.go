package scout

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

const researchScoutMaxTurns = 15

// ResearchScout periodically scans the ecosystem for techniques worth
// adopting and files proposal issues.
type ResearchScout struct {
	Runner    *agent.Runner
	Tracker   tracker.Tracker
	Model     string
	Interval  time.Duration
	StatePath string
}

// finding is one research scout suggestion.
type finding struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ShouldRun reports whether the configured interval has elapsed.
func (r *ResearchScout) ShouldRun(now time.Time) bool {
	state, err := LoadResearchState(r.StatePath)
	if err != nil {
		return true
	}
	return ShouldRunResearch(state, r.Interval, now)
}

// Run performs one research pass. Findings duplicating an open
// research-scout issue title are skipped. The interval gate is enforced
// here, not only in the planner.
func (r *ResearchScout) Run(ctx context.Context, now time.Time) ([]int, error) {
	log := clog.FromContext(ctx)
	if !r.ShouldRun(now) {
		log.Infof("research interval not elapsed, skipping")
		return nil, nil
	}

	text, err := r.Runner.Run(ctx, agent.Request{
		SystemPrompt: "You are a research scout surveying agent-engineering practice for techniques this system should adopt.",
		UserPrompt: "Search for recent developments relevant to an autonomous analysis pipeline. " +
			"Respond with a JSON array: " +
			`[{"title": "...", "description": "..."}]`,
		Model:        r.Model,
		AllowedTools: agent.ScoutTools,
		MaxTurns:     researchScoutMaxTurns,
	})
	if err != nil {
		return nil, err
	}
	findings, err := agent.Extract[[]finding](text)
	if err != nil {
		return nil, err
	}

	existing, err := r.Tracker.ListOpenIssues(ctx, domain.LabelResearchScout)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, issue := range existing {
		seen[issue.Title] = true
	}

	var filed []int
	for _, f := range findings {
		if f.Title == "" || seen[f.Title] {
			continue
		}
		number, err := r.Tracker.CreateIssue(ctx, f.Title, f.Description, []string{
			domain.LabelResearchScout,
			domain.LabelProposed,
			domain.LabelTaskCodeChange,
		})
		if err != nil {
			return filed, fmt.Errorf("file research finding: %w", err)
		}
		seen[f.Title] = true
		filed = append(filed, number)
	}

	if err := SaveResearchState(r.StatePath, ResearchState{LastTS: now}); err != nil {
		return filed, err
	}
	log.Infof("research scout filed %d issue(s)", len(filed))
	return filed, nil
}
