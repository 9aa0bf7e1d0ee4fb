package scout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/telemetry"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

const directorMaxTurns = 10

// DirectorKind selects between the project and strategic director roles.
type DirectorKind string

const (
	ProjectDirector   DirectorKind = "project"
	StrategicDirector DirectorKind = "strategic"
)

// Director reviews recent telemetry and files targeted improvement
// issues, hard-capped regardless of what the agent suggests.
type Director struct {
	Kind      DirectorKind
	Runner    *agent.Runner
	Tracker   tracker.Tracker
	Telemetry *telemetry.Writer
	Model     string
	MaxIssues int
}

// suggestion is one director-proposed task.
type suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

func (d *Director) label() string {
	if d.Kind == StrategicDirector {
		return domain.LabelStrategy
	}
	return domain.LabelDirector
}

func (d *Director) systemPrompt() string {
	if d.Kind == StrategicDirector {
		return "You are the strategic director. Judge whether the system's output is worth producing and propose course corrections."
	}
	return "You are the project director. Review operational health and propose concrete engineering improvements."
}

// Run gathers recent telemetry and the open backlog, asks the director
// for suggestions, and files at most MaxIssues of them.
func (d *Director) Run(ctx context.Context) ([]int, error) {
	log := clog.FromContext(ctx)

	cycles, err := d.Telemetry.LoadCycles(20)
	if err != nil {
		return nil, err
	}
	errs, err := d.Telemetry.LoadErrors(30)
	if err != nil {
		return nil, err
	}
	backlog, err := d.Tracker.ListOpenIssues(ctx, domain.LabelBacklog)
	if err != nil {
		return nil, err
	}

	contextBlock, _ := json.Marshal(struct {
		Cycles  []domain.CycleTelemetry  `json:"recent_cycles"`
		Errors  []domain.StructuredError `json:"recent_errors"`
		Backlog []string                 `json:"backlog_titles"`
	}{cycles, errs, issueTitles(backlog)})

	text, err := d.Runner.Run(ctx, agent.Request{
		SystemPrompt: d.systemPrompt(),
		UserPrompt: fmt.Sprintf(
			"Review the recent engine state:\n%s\n\n"+
				"Propose up to %d improvement tasks. Respond with a JSON array: "+
				`[{"title": "...", "description": "...", "priority": "critical|high|medium|low"}]`,
			contextBlock, d.MaxIssues),
		Model:        d.Model,
		AllowedTools: agent.ProposerTools,
		MaxTurns:     directorMaxTurns,
	})
	if err != nil {
		return nil, err
	}
	suggestions, err := agent.Extract[[]suggestion](text)
	if err != nil {
		return nil, err
	}

	// The cap binds in code, whatever the agent returned.
	if len(suggestions) > d.MaxIssues {
		suggestions = suggestions[:d.MaxIssues]
	}

	var filed []int
	for _, s := range suggestions {
		if s.Title == "" {
			continue
		}
		labels := []string{d.label(), domain.LabelProposed, domain.LabelTaskCodeChange}
		if p := priorityLabel(s.Priority); p != "" {
			labels = append(labels, p)
		}
		number, err := d.Tracker.CreateIssue(ctx, s.Title, s.Description, labels)
		if err != nil {
			return filed, fmt.Errorf("file %s director issue: %w", d.Kind, err)
		}
		filed = append(filed, number)
	}
	log.Infof("%s director filed %d issue(s)", d.Kind, len(filed))
	return filed, nil
}

func priorityLabel(p string) string {
	switch p {
	case "critical":
		return domain.LabelPriorityCritical
	case "high":
		return domain.LabelPriorityHigh
	case "medium":
		return domain.LabelPriorityMedium
	case "low":
		return domain.LabelPriorityLow
	}
	return ""
}

func issueTitles(issues []domain.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, fmt.Sprintf("#%d %s", issue.Number, issue.Title))
	}
	return out
}
