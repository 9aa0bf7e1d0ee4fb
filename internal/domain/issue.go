package domain

import "time"

// Label vocabulary for the tracker. The self-improve group is mutually
// exclusive; the rest are orthogonal.
const (
	LabelProposed   = "self-improve:proposed"
	LabelBacklog    = "self-improve:backlog"
	LabelInProgress = "self-improve:in-progress"
	LabelDone       = "self-improve:done"
	LabelFailed     = "self-improve:failed"
	LabelRejected   = "self-improve:rejected"

	LabelTaskAnalysis   = "task:analysis"
	LabelTaskCodeChange = "task:code-change"
	LabelHuman          = "human-suggestion"
	LabelDirector       = "director-suggestion"
	LabelStrategy       = "strategy-suggestion"
	LabelResearchScout  = "research-scout"
	LabelEditorial      = "editorial-quality"
	LabelGapContent     = "gap:content"
	LabelGapTechnical   = "gap:technical"

	LabelPriorityCritical = "priority:critical"
	LabelPriorityHigh     = "priority:high"
	LabelPriorityMedium   = "priority:medium"
	LabelPriorityLow      = "priority:low"
)

// IssueState is the in-memory view of the self-improve label group.
type IssueState string

const (
	StateProposed   IssueState = "proposed"
	StateBacklog    IssueState = "backlog"
	StateInProgress IssueState = "in-progress"
	StateDone       IssueState = "done"
	StateFailed     IssueState = "failed"
	StateRejected   IssueState = "rejected"
)

// StateLabel translates an IssueState to its tracker label.
func StateLabel(s IssueState) string {
	return "self-improve:" + string(s)
}

// Terminal reports whether s is a sticky terminal state.
func (s IssueState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateRejected
}

// Issue is the engine's transient view of a tracker issue. The tracker
// owns issue identity; views never survive a cycle boundary.
type Issue struct {
	Number    int
	Title     string
	Body      string
	Labels    []string
	State     string
	CreatedAt time.Time
}

// HasLabel reports whether the issue carries the given label.
func (i Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// ImproveState extracts the self-improve state from the issue labels.
// Returns the empty state when no self-improve label is present.
func (i Issue) ImproveState() IssueState {
	for _, s := range []IssueState{
		StateProposed, StateBacklog, StateInProgress,
		StateDone, StateFailed, StateRejected,
	} {
		if i.HasLabel(StateLabel(s)) {
			return s
		}
	}
	return ""
}

// PullRequest is the engine's transient view of a tracker pull request.
type PullRequest struct {
	Number      int
	Branch      string
	State       string
	Body        string
	CheckStatus string
}

// CheckStatus values for PullRequest.
const (
	ChecksPass    = "pass"
	ChecksFail    = "fail"
	ChecksPending = "pending"
)

// Comment is one tracker comment, on an issue or a pull request.
type Comment struct {
	Author string
	Body   string
}
