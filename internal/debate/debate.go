// Package debate triages proposed improvements through an advocate and a
// skeptic agent plus a deterministic judge.
package debate

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/backlog"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

const debateMaxTurns = 5

// advocateOutput is the structured verdict of the advocate agent.
type advocateOutput struct {
	StrengthScore int      `json:"strength_score"`
	KeyArguments  []string `json:"key_arguments"`
}

// skepticOutput is the structured verdict of the skeptic agent.
type skepticOutput struct {
	WeaknessScore int      `json:"weakness_score"`
	Risks         []string `json:"risks"`
}

// Filter runs the two-agent dialectic over proposals.
type Filter struct {
	Runner    *agent.Runner
	Tracker   tracker.Tracker
	Machine   *backlog.Machine
	Model     string
	Threshold int
}

// NewFilter creates a debate filter with the configured threshold.
func NewFilter(runner *agent.Runner, t tracker.Tracker, m *backlog.Machine, model string, threshold int) *Filter {
	return &Filter{Runner: runner, Tracker: t, Machine: m, Model: model, Threshold: threshold}
}

// Judge is the deterministic acceptance rule: accept iff
// strength - weakness >= threshold. Equal scores reject at any threshold.
func Judge(strength, weakness, threshold int) bool {
	if strength == weakness {
		return false
	}
	return strength-weakness >= threshold
}

// clampScore forces an agent-reported score into the 0-10 range.
func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}

// Run debates one proposed issue and applies the outcome. Issues carrying
// the human-suggestion label bypass the debate entirely; the bypass is
// checked before any agent is spawned.
func (f *Filter) Run(ctx context.Context, issue domain.Issue) (domain.DebateOutcome, error) {
	log := clog.FromContext(ctx)

	if issue.HasLabel(domain.LabelHuman) {
		if err := f.Machine.Transition(ctx, issue, domain.StateBacklog); err != nil {
			return domain.DebateOutcome{}, err
		}
		log.Infof("issue #%d is human-suggested, skipping debate", issue.Number)
		return domain.DebateOutcome{Accepted: true, Bypassed: true}, nil
	}

	proposal := fmt.Sprintf("Title: %s\n\n%s", issue.Title, issue.Body)

	advocateText, err := f.Runner.Run(ctx, agent.Request{
		SystemPrompt: "You are the PM advocating for a proposed improvement. Argue its strongest case honestly.",
		UserPrompt: proposal + "\n\nRespond with a JSON object: " +
			`{"strength_score": 0-10, "key_arguments": ["..."]}`,
		Model:        f.Model,
		AllowedTools: agent.NoTools,
		MaxTurns:     debateMaxTurns,
	})
	if err != nil {
		return domain.DebateOutcome{}, fmt.Errorf("advocate: %w", err)
	}
	adv, err := agent.Extract[advocateOutput](advocateText)
	if err != nil {
		return domain.DebateOutcome{}, fmt.Errorf("advocate output: %w", err)
	}

	skepticText, err := f.Runner.Run(ctx, agent.Request{
		SystemPrompt: "You are the skeptical reviewer of a proposed improvement. Surface the real risks and costs.",
		UserPrompt: proposal + "\n\nThe advocate argued:\n" + advocateText +
			"\n\nRespond with a JSON object: " +
			`{"weakness_score": 0-10, "risks": ["..."]}`,
		Model:        f.Model,
		AllowedTools: agent.NoTools,
		MaxTurns:     debateMaxTurns,
	})
	if err != nil {
		return domain.DebateOutcome{}, fmt.Errorf("skeptic: %w", err)
	}
	skep, err := agent.Extract[skepticOutput](skepticText)
	if err != nil {
		return domain.DebateOutcome{}, fmt.Errorf("skeptic output: %w", err)
	}

	adv.StrengthScore = clampScore(adv.StrengthScore)
	skep.WeaknessScore = clampScore(skep.WeaknessScore)

	outcome := domain.DebateOutcome{
		Accepted:      Judge(adv.StrengthScore, skep.WeaknessScore, f.Threshold),
		StrengthScore: adv.StrengthScore,
		WeaknessScore: skep.WeaknessScore,
		KeyArguments:  adv.KeyArguments,
		Risks:         skep.Risks,
	}

	transcript := fmt.Sprintf(
		"Debate result: strength %d, weakness %d, threshold %d.\n\nAdvocate arguments:\n%s\n\nSkeptic risks:\n%s",
		outcome.StrengthScore, outcome.WeaknessScore, f.Threshold,
		bulleted(outcome.KeyArguments), bulleted(outcome.Risks),
	)
	if err := f.Tracker.CommentIssue(ctx, issue.Number, transcript); err != nil {
		return outcome, err
	}

	if outcome.Accepted {
		err = f.Machine.Transition(ctx, issue, domain.StateBacklog)
	} else {
		err = f.Machine.MarkRejected(ctx, issue, "Rejected by debate filter.")
	}
	if err != nil {
		return outcome, err
	}
	log.Infof("issue #%d debate: strength=%d weakness=%d accepted=%v",
		issue.Number, outcome.StrengthScore, outcome.WeaknessScore, outcome.Accepted)
	return outcome, nil
}

func bulleted(items []string) string {
	if len(items) == 0 {
		return "- (none)"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
