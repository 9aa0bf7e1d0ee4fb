package domain

import "fmt"

// ActionName identifies one entry of the closed conductor action vocabulary.
type ActionName string

const (
	ActionFetchNews         ActionName = "fetch_news"
	ActionPropose           ActionName = "propose"
	ActionDebate            ActionName = "debate"
	ActionPickAndExecute    ActionName = "pick_and_execute"
	ActionDirector          ActionName = "director"
	ActionStrategicDirector ActionName = "strategic_director"
	ActionResearchScout     ActionName = "research_scout"
	ActionCooldown          ActionName = "cooldown"
	ActionHalt              ActionName = "halt"
	ActionFileIssue         ActionName = "file_issue"
	ActionSkipCycle         ActionName = "skip_cycle"
)

// MaxPlanActions bounds the number of actions per conductor plan.
const MaxPlanActions = 6

// PlannedAction is one action in a ConductorPlan, with its required
// parameters where the vocabulary demands them.
type PlannedAction struct {
	Name        ActionName `json:"name"`
	IssueNumber int        `json:"issue_number,omitempty"`
	Seconds     int        `json:"seconds,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
}

// ConductorPlan is the structured output of the conductor planner.
type ConductorPlan struct {
	Reasoning            string          `json:"reasoning"`
	Actions              []PlannedAction `json:"actions"`
	SuggestedCooldownSec int             `json:"suggested_cooldown_seconds,omitempty"`
	NotesForNextCycle    string          `json:"notes_for_next_cycle,omitempty"`
}

const maxReasoningLen = 4000

// Validate rejects plans that exceed the action bound, use an unknown
// action, or omit an action's required fields. Invalid plans engage the
// conductor fallback chain.
func (p ConductorPlan) Validate() error {
	if len(p.Actions) == 0 {
		return fmt.Errorf("%w: plan has no actions", ErrPlanInvalid)
	}
	if len(p.Actions) > MaxPlanActions {
		return fmt.Errorf("%w: %d actions exceeds limit of %d", ErrPlanInvalid, len(p.Actions), MaxPlanActions)
	}
	if len(p.Reasoning) > maxReasoningLen {
		return fmt.Errorf("%w: reasoning exceeds %d bytes", ErrPlanInvalid, maxReasoningLen)
	}
	for _, a := range p.Actions {
		if err := a.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a PlannedAction) validate() error {
	switch a.Name {
	case ActionFetchNews, ActionPropose, ActionDebate, ActionDirector,
		ActionStrategicDirector, ActionResearchScout, ActionHalt, ActionSkipCycle:
		return nil
	case ActionPickAndExecute:
		if a.IssueNumber <= 0 {
			return fmt.Errorf("%w: pick_and_execute requires issue_number", ErrPlanInvalid)
		}
		return nil
	case ActionCooldown:
		if a.Seconds <= 0 {
			return fmt.Errorf("%w: cooldown requires seconds", ErrPlanInvalid)
		}
		return nil
	case ActionFileIssue:
		if a.Title == "" || a.Description == "" {
			return fmt.Errorf("%w: file_issue requires title and description", ErrPlanInvalid)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrPlanInvalid, a.Name)
	}
}
