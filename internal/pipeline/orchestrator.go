// Package pipeline runs the three-phase analysis of one decision:
// ministries in parallel, then parliament and critic in parallel, then
// the synthesizer.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/config"
	"github.com/anthropics/cabinet-engine/internal/domain"
)

const (
	ministryMaxTurns    = 3
	parliamentMaxTurns  = 3
	synthesizerMaxTurns = 3
)

// Orchestrator drives the analysis DAG for one decision at a time.
type Orchestrator struct {
	Runner   *agent.Runner
	Manifest *config.Manifest
	Model    string
	Timeout  time.Duration
	Results  *ResultStore
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(runner *agent.Runner, manifest *config.Manifest, model string, timeout time.Duration, results *ResultStore) *Orchestrator {
	return &Orchestrator{Runner: runner, Manifest: manifest, Model: model, Timeout: timeout, Results: results}
}

// Analyze produces a SessionResult for the decision and persists it.
// Partial results are allowed: individual ministry failures are recorded
// and omitted, but at least one assessment must survive.
func (o *Orchestrator) Analyze(ctx context.Context, decision domain.Decision) (*domain.SessionResult, error) {
	log := clog.FromContext(ctx)

	// Phase 1: all ministries in parallel, barrier at the end.
	assessments := o.runMinistries(ctx, decision)
	if len(assessments) == 0 {
		return nil, fmt.Errorf("%w: decision %s", domain.ErrAnalysisEmpty, decision.ID)
	}
	sort.SliceStable(assessments, func(i, j int) bool {
		return domain.MinistryRank(assessments[i].Ministry) < domain.MinistryRank(assessments[j].Ministry)
	})

	// Phase 2: parliament and critic in parallel.
	var parliament *domain.ParliamentDebate
	var critic *domain.CriticReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := o.runParliament(gctx, decision, assessments)
		if err != nil {
			log.Warnf("parliament failed for %s: %v", decision.ID, err)
			return nil
		}
		parliament = p
		return nil
	})
	g.Go(func() error {
		c, err := o.runCritic(gctx, decision, assessments)
		if err != nil {
			log.Warnf("critic failed for %s: %v", decision.ID, err)
			return nil
		}
		critic = c
		return nil
	})
	_ = g.Wait()

	// Phase 3: synthesizer, only when a ministry sketched an alternative.
	var counter *domain.CounterProposal
	if hasCounterDrafts(assessments) {
		c, err := o.runSynthesizer(ctx, decision, assessments, parliament)
		if err != nil {
			log.Warnf("synthesizer failed for %s: %v", decision.ID, err)
		} else {
			counter = c
		}
	}

	result := &domain.SessionResult{
		Decision:        decision,
		Assessments:     assessments,
		Parliament:      parliament,
		Critic:          critic,
		CounterProposal: counter,
		AnalyzedAt:      time.Now().UTC(),
	}
	if err := o.Results.Save(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) runMinistries(ctx context.Context, decision domain.Decision) []domain.Assessment {
	log := clog.FromContext(ctx)

	var mu sync.Mutex
	var out []domain.Assessment
	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range o.Manifest.Ministries {
		g.Go(func() error {
			a, err := o.runMinistry(gctx, spec, decision)
			if err != nil {
				log.Warnf("ministry %s failed for %s: %v", spec.Name, decision.ID, err)
				return nil
			}
			mu.Lock()
			out = append(out, a)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) runMinistry(ctx context.Context, spec config.MinistrySpec, decision domain.Decision) (domain.Assessment, error) {
	text, err := o.Runner.Run(ctx, agent.Request{
		SystemPrompt: spec.SystemPrompt,
		UserPrompt:   ministryPrompt(spec, decision),
		Model:        o.Model,
		AllowedTools: agent.NoTools,
		MaxTurns:     ministryMaxTurns,
		Timeout:      o.Timeout,
	})
	if err != nil {
		return domain.Assessment{}, err
	}

	a, err := agent.Extract[domain.Assessment](text)
	if err == nil {
		a.Ministry = spec.Name
		a.DecisionID = decision.ID
		err = a.Validate()
	}
	if err != nil {
		// Parse failures fall back to a neutral assessment. This is the
		// only recovery point for AgentParseError.
		return domain.FallbackAssessment(spec.Name, decision.ID, text), nil
	}
	return a, nil
}

func (o *Orchestrator) runParliament(ctx context.Context, decision domain.Decision, assessments []domain.Assessment) (*domain.ParliamentDebate, error) {
	payload, _ := json.Marshal(assessments)
	text, err := o.Runner.Run(ctx, agent.Request{
		SystemPrompt: o.Manifest.RolePrompt("parliament"),
		UserPrompt: fmt.Sprintf(
			"Synthesize a parliamentary debate over decision %q from these ministry assessments:\n%s\n\n"+
				"Respond with a JSON object: "+
				`{"decision_id": %q, "consensus_summary": "...", "disagreements": ["..."], `+
				`"overall_verdict": "strongly_positive|positive|neutral|negative|strongly_negative", `+
				`"debate_transcript": "..."}`,
			decision.Title, payload, decision.ID),
		Model:        o.Model,
		AllowedTools: agent.NoTools,
		MaxTurns:     parliamentMaxTurns,
		Timeout:      o.Timeout,
	})
	if err != nil {
		return nil, err
	}
	p, err := agent.Extract[domain.ParliamentDebate](text)
	if err != nil {
		return nil, err
	}
	if !domain.ValidVerdict(p.OverallVerdict) {
		return nil, fmt.Errorf("%w: parliament verdict %q", domain.ErrAgentParse, p.OverallVerdict)
	}
	p.DecisionID = decision.ID
	return &p, nil
}

func (o *Orchestrator) runCritic(ctx context.Context, decision domain.Decision, assessments []domain.Assessment) (*domain.CriticReport, error) {
	payload, _ := json.Marshal(assessments)
	text, err := o.Runner.Run(ctx, agent.Request{
		SystemPrompt: o.Manifest.RolePrompt("critic"),
		UserPrompt: fmt.Sprintf(
			"Independently review decision %q (%s) and how well these assessments analyzed it:\n%s\n\n"+
				"Respond with a JSON object: "+
				`{"decision_id": %q, "decision_score": 1-10, "assessment_quality_score": 1-10, `+
				`"blind_spots": ["..."], "overall_analysis": "...", "headline": "..."}`,
			decision.Title, decision.Summary, payload, decision.ID),
		Model:        o.Model,
		AllowedTools: agent.NoTools,
		MaxTurns:     parliamentMaxTurns,
		Timeout:      o.Timeout,
	})
	if err != nil {
		return nil, err
	}
	c, err := agent.Extract[domain.CriticReport](text)
	if err != nil {
		return nil, err
	}
	c.DecisionID = decision.ID
	return &c, nil
}

func (o *Orchestrator) runSynthesizer(ctx context.Context, decision domain.Decision, assessments []domain.Assessment, parliament *domain.ParliamentDebate) (*domain.CounterProposal, error) {
	var drafts []domain.CounterProposalDraft
	for _, a := range assessments {
		if a.CounterProposal != nil {
			drafts = append(drafts, *a.CounterProposal)
		}
	}
	payload, _ := json.Marshal(struct {
		Drafts     []domain.CounterProposalDraft `json:"drafts"`
		Parliament *domain.ParliamentDebate      `json:"parliament,omitempty"`
	}{drafts, parliament})

	text, err := o.Runner.Run(ctx, agent.Request{
		SystemPrompt: o.Manifest.RolePrompt("synthesizer"),
		UserPrompt: fmt.Sprintf(
			"Unify the ministry counter-proposals for decision %q into one alternative:\n%s\n\n"+
				"Respond with a JSON object: "+
				`{"decision_id": %q, "title": "...", "executive_summary": "...", "detailed_proposal": "...", `+
				`"ministry_contributions": ["..."], "key_differences": "...", "implementation_steps": ["..."], `+
				`"risks_and_tradeoffs": "..."}`,
			decision.Title, payload, decision.ID),
		Model:        o.Model,
		AllowedTools: agent.NoTools,
		MaxTurns:     synthesizerMaxTurns,
		Timeout:      o.Timeout,
	})
	if err != nil {
		return nil, err
	}
	c, err := agent.Extract[domain.CounterProposal](text)
	if err != nil {
		return nil, err
	}
	c.DecisionID = decision.ID
	return &c, nil
}

func hasCounterDrafts(assessments []domain.Assessment) bool {
	for _, a := range assessments {
		if a.CounterProposal != nil {
			return true
		}
	}
	return false
}

func ministryPrompt(spec config.MinistrySpec, d domain.Decision) string {
	fullText := ""
	if d.FullText != "" {
		fullText = "Full text: " + d.FullText + "\n"
	}
	return fmt.Sprintf(
		"Analyze the following government decision from the perspective of the ministry of %s.\n\n"+
			"Decision: %s\nDate: %s\nSummary: %s\n%s\nFocus on: %s\n\n"+
			"Respond with a JSON object: "+
			`{"ministry": %q, "decision_id": %q, `+
			`"verdict": "strongly_positive|positive|neutral|negative|strongly_negative", `+
			`"score": 1-10, "summary": "...", "reasoning": "...", `+
			`"key_concerns": ["..."], "recommendations": ["..."], `+
			`"counter_proposal": {"title": "...", "summary": "...", "key_changes": ["..."], `+
			`"expected_benefits": ["..."], "estimated_feasibility": "..."}}`,
		spec.Name, d.Title, d.Date, d.Summary, fullText,
		strings.Join(spec.FocusAreas, ", "), spec.Name, d.ID)
}
