package dispatch

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

const proposerMaxTurns = 10

// Proposer surveys recent failures and files one improvement proposal.
// It enters the debate queue like any other proposal.
type Proposer struct {
	Runner    *agent.Runner
	Tracker   tracker.Tracker
	Telemetry *telemetry.Writer
	Model     string
}

type proposalOutput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Worthwhile  bool   `json:"worthwhile"`
}

// Run asks the proposer agent for one improvement and files it. The
// agent may decline; then no issue is created and the returned number
// is zero.
func (p *Proposer) Run(ctx context.Context) (int, error) {
	log := clog.FromContext(ctx)

	errs, err := p.Telemetry.LoadErrors(30)
	if err != nil {
		return 0, err
	}
	open, err := p.Tracker.ListOpenIssues(ctx, domain.LabelProposed)
	if err != nil {
		return 0, err
	}
	contextBlock, _ := json.Marshal(struct {
		Errors   []domain.StructuredError `json:"recent_errors"`
		Proposed []string                 `json:"already_proposed"`
	}{errs, issueTitlesFor(open)})

	text, err := p.Runner.Run(ctx, agent.Request{
		SystemPrompt: "You propose one concrete improvement to an autonomous analysis engine, based on its recent failures.",
		UserPrompt: fmt.Sprintf(
			"Recent state:\n%s\n\n"+
				"Propose at most one improvement not already proposed. Respond with a JSON object: "+
				`{"worthwhile": true|false, "title": "...", "description": "..."}`,
			contextBlock),
		Model:        p.Model,
		AllowedTools: agent.ProposerTools,
		MaxTurns:     proposerMaxTurns,
	})
	if err != nil {
		return 0, err
	}
	proposal, err := agent.Extract[proposalOutput](text)
	if err != nil {
		return 0, err
	}
	if !proposal.Worthwhile || proposal.Title == "" {
		log.Infof("proposer declined to file")
		return 0, nil
	}

	number, err := p.Tracker.CreateIssue(ctx, proposal.Title, proposal.Description, []string{
		domain.LabelProposed,
		domain.LabelTaskCodeChange,
	})
	if err != nil {
		return 0, err
	}
	log.Infof("proposer filed issue #%d", number)
	return number, nil
}

func issueTitlesFor(issues []domain.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Title)
	}
	return out
}
