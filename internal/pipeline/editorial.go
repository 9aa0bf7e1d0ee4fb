package pipeline

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

const editorialMaxTurns = 8

// minQualityScore is the editorial bar below which a quality issue is filed.
const minQualityScore = 6

// Editorial runs the post-publication quality check on an analysis.
// It is non-blocking: a failure never affects the publishing cycle.
type Editorial struct {
	Runner  *agent.Runner
	Tracker tracker.Tracker
	Model   string
}

// Review reads the published analysis file and scores it. When the review
// fails the bar, one editorial-quality issue is filed.
func (e *Editorial) Review(ctx context.Context, result *domain.SessionResult, analysisPath string) (*domain.EditorialReview, error) {
	log := clog.FromContext(ctx)

	text, err := e.Runner.Run(ctx, agent.Request{
		SystemPrompt: "You are the editorial reviewer for published government analyses. Judge clarity, accuracy, and completeness.",
		UserPrompt: fmt.Sprintf(
			"Read the published analysis at %s for decision %q and review its quality.\n\n"+
				"Respond with a JSON object: "+
				`{"decision_id": %q, "approved": true|false, "quality_score": 1-10, "issues": ["..."]}`,
			analysisPath, result.Decision.Title, result.Decision.ID),
		Model:        e.Model,
		AllowedTools: agent.EditorialTools,
		MaxTurns:     editorialMaxTurns,
	})
	if err != nil {
		return nil, err
	}
	review, err := agent.Extract[domain.EditorialReview](text)
	if err != nil {
		return nil, err
	}
	review.DecisionID = result.Decision.ID

	if review.Approved && review.QualityScore >= minQualityScore {
		log.Infof("editorial review passed for %s (score %d)", review.DecisionID, review.QualityScore)
		return &review, nil
	}

	title := fmt.Sprintf("Editorial quality gap in analysis %s", review.DecisionID)
	body := fmt.Sprintf(
		"The editorial review scored analysis %s at %d/10.\n\nIssues found:\n",
		review.DecisionID, review.QualityScore)
	for _, issue := range review.Issues {
		body += "- " + issue + "\n"
	}
	if _, err := e.Tracker.CreateIssue(ctx, title, body, []string{
		domain.LabelEditorial,
		domain.LabelGapContent,
		domain.LabelProposed,
	}); err != nil {
		return &review, err
	}
	log.Warnf("editorial review flagged %s (score %d)", review.DecisionID, review.QualityScore)
	return &review, nil
}
