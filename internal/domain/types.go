// Package domain defines the core value types for the cabinet engine.
package domain

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"time"
)

// Category classifies a government decision.
type Category string

const (
	CategoryFiscal      Category = "fiscal"
	CategoryLegal       Category = "legal"
	CategoryEU          Category = "eu"
	CategoryHealth      Category = "health"
	CategorySecurity    Category = "security"
	CategoryEducation   Category = "education"
	CategoryEconomy     Category = "economy"
	CategoryTourism     Category = "tourism"
	CategoryEnvironment Category = "environment"
	CategoryGeneral     Category = "general"
)

// ValidCategory reports whether c is one of the closed category set.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryFiscal, CategoryLegal, CategoryEU, CategoryHealth,
		CategorySecurity, CategoryEducation, CategoryEconomy,
		CategoryTourism, CategoryEnvironment, CategoryGeneral:
		return true
	}
	return false
}

// Ministry is a role name for an analysis agent.
type Ministry string

const (
	MinistryFinance   Ministry = "finance"
	MinistryJustice   Ministry = "justice"
	MinistryInterior  Ministry = "interior"
	MinistryEU        Ministry = "eu"
	MinistryHealth    Ministry = "health"
	MinistryEducation Ministry = "education"
	MinistryLabour    Ministry = "labour"
)

// MinistryOrder is the canonical ordering of ministries. Assessments in a
// SessionResult are sorted in this order regardless of completion order.
var MinistryOrder = []Ministry{
	MinistryFinance,
	MinistryJustice,
	MinistryInterior,
	MinistryEU,
	MinistryHealth,
	MinistryEducation,
	MinistryLabour,
}

// MinistryRank returns the position of m in MinistryOrder, or len(MinistryOrder)
// for unknown ministries so they sort last.
func MinistryRank(m Ministry) int {
	for i, known := range MinistryOrder {
		if known == m {
			return i
		}
	}
	return len(MinistryOrder)
}

// Verdict is the closed five-point verdict scale.
type Verdict string

const (
	VerdictStronglyPositive Verdict = "strongly_positive"
	VerdictPositive         Verdict = "positive"
	VerdictNeutral          Verdict = "neutral"
	VerdictNegative         Verdict = "negative"
	VerdictStronglyNegative Verdict = "strongly_negative"
)

// ValidVerdict reports whether v is one of the closed verdict set.
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictStronglyPositive, VerdictPositive, VerdictNeutral,
		VerdictNegative, VerdictStronglyNegative:
		return true
	}
	return false
}

// Decision is an external work item discovered by news intake.
type Decision struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	FullText          string   `json:"full_text,omitempty"`
	Date              string   `json:"date"`
	SourceURL         string   `json:"source_url,omitempty"`
	Category          Category `json:"category"`
	Tags              []string `json:"tags,omitempty"`
	TranslatedTitle   string   `json:"translated_title,omitempty"`
	TranslatedSummary string   `json:"translated_summary,omitempty"`
}

// decisionIDPattern matches the contractual decision id format.
var decisionIDPattern = regexp.MustCompile(`^news-\d{4}-\d{2}-\d{2}-[0-9a-f]{8}$`)

// DeriveDecisionID builds the stable decision id for a (date, title) pair.
// The same pair always produces the same id.
func DeriveDecisionID(date time.Time, title string) string {
	sum := sha256.Sum256([]byte(title))
	return fmt.Sprintf("news-%s-%x", date.Format("2006-01-02"), sum[:4])
}

// ValidDecisionID reports whether id matches the contractual format.
func ValidDecisionID(id string) bool {
	return decisionIDPattern.MatchString(id)
}

var embeddedDecisionID = regexp.MustCompile(`news-\d{4}-\d{2}-\d{2}-[0-9a-f]{8}`)

// FindDecisionID extracts the first decision id embedded in free text,
// such as an issue title. Returns the empty string when none is present.
func FindDecisionID(text string) string {
	return embeddedDecisionID.FindString(text)
}

// CounterProposalDraft is a ministry's optional alternative sketch.
type CounterProposalDraft struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	KeyChanges       []string `json:"key_changes,omitempty"`
	ExpectedBenefits []string `json:"expected_benefits,omitempty"`
	Feasibility      string   `json:"estimated_feasibility,omitempty"`
}

// Assessment is one ministry's analysis of a Decision.
type Assessment struct {
	Ministry        Ministry              `json:"ministry"`
	DecisionID      string                `json:"decision_id"`
	Verdict         Verdict               `json:"verdict"`
	Score           int                   `json:"score"`
	Summary         string                `json:"summary"`
	Reasoning       string                `json:"reasoning"`
	KeyConcerns     []string              `json:"key_concerns,omitempty"`
	Recommendations []string              `json:"recommendations,omitempty"`
	CounterProposal *CounterProposalDraft `json:"counter_proposal,omitempty"`
}

// Validate checks the assessment invariants.
func (a Assessment) Validate() error {
	if a.Score < 1 || a.Score > 10 {
		return fmt.Errorf("%w: score %d out of range", ErrAgentParse, a.Score)
	}
	if !ValidVerdict(a.Verdict) {
		return fmt.Errorf("%w: unknown verdict %q", ErrAgentParse, a.Verdict)
	}
	return nil
}

// FallbackAssessment fills required fields with neutral defaults when a
// ministry's output cannot be parsed. This is the only place parse
// failures are recovered rather than surfaced.
func FallbackAssessment(m Ministry, decisionID, rawText string) Assessment {
	reasoning := rawText
	if len(reasoning) > 500 {
		reasoning = reasoning[:500]
	}
	if reasoning == "" {
		reasoning = "No response received."
	}
	return Assessment{
		Ministry:        m,
		DecisionID:      decisionID,
		Verdict:         VerdictNeutral,
		Score:           5,
		Summary:         fmt.Sprintf("Assessment by %s could not be fully parsed.", m),
		Reasoning:       reasoning,
		KeyConcerns:     []string{"Response parsing failed"},
		Recommendations: []string{"Re-run assessment"},
	}
}

// ParliamentDebate is the synthesis across all assessments for one Decision.
type ParliamentDebate struct {
	DecisionID       string   `json:"decision_id"`
	ConsensusSummary string   `json:"consensus_summary"`
	Disagreements    []string `json:"disagreements,omitempty"`
	OverallVerdict   Verdict  `json:"overall_verdict"`
	DebateTranscript string   `json:"debate_transcript"`
}

// CriticReport is the independent critic's scoring of a Decision.
type CriticReport struct {
	DecisionID             string   `json:"decision_id"`
	DecisionScore          int      `json:"decision_score"`
	AssessmentQualityScore int      `json:"assessment_quality_score"`
	BlindSpots             []string `json:"blind_spots,omitempty"`
	OverallAnalysis        string   `json:"overall_analysis"`
	Headline               string   `json:"headline"`
	EUChapterRelevance     []string `json:"eu_chapter_relevance,omitempty"`
}

// CounterProposal is the synthesizer's unified alternative.
type CounterProposal struct {
	DecisionID            string   `json:"decision_id"`
	Title                 string   `json:"title"`
	ExecutiveSummary      string   `json:"executive_summary"`
	DetailedProposal      string   `json:"detailed_proposal"`
	MinistryContributions []string `json:"ministry_contributions,omitempty"`
	KeyDifferences        string   `json:"key_differences,omitempty"`
	ImplementationSteps   []string `json:"implementation_steps,omitempty"`
	RisksAndTradeoffs     string   `json:"risks_and_tradeoffs,omitempty"`
}

// SessionResult aggregates one Decision's full analysis. It is persisted
// as one JSON document per Decision for downstream renderers.
type SessionResult struct {
	Decision        Decision          `json:"decision"`
	Assessments     []Assessment      `json:"assessments"`
	Parliament      *ParliamentDebate `json:"parliament,omitempty"`
	Critic          *CriticReport     `json:"critic,omitempty"`
	CounterProposal *CounterProposal  `json:"counter_proposal,omitempty"`
	IssueNumber     int               `json:"issue_number,omitempty"`
	AnalyzedAt      time.Time         `json:"analyzed_at"`
}

// EditorialReview is the post-publication quality check on an analysis.
type EditorialReview struct {
	DecisionID   string   `json:"decision_id"`
	Approved     bool     `json:"approved"`
	QualityScore int      `json:"quality_score"`
	Issues       []string `json:"issues,omitempty"`
}

// Proposal is a raw self-improvement idea before debate.
type Proposal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IssueNumber int    `json:"issue_number,omitempty"`
}

// DebateOutcome records the advocate/skeptic triage of a proposal.
type DebateOutcome struct {
	Accepted      bool     `json:"accepted"`
	StrengthScore int      `json:"strength_score"`
	WeaknessScore int      `json:"weakness_score"`
	KeyArguments  []string `json:"key_arguments,omitempty"`
	Risks         []string `json:"risks,omitempty"`
	Bypassed      bool     `json:"bypassed,omitempty"`
}
