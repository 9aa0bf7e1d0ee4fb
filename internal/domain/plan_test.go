package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestConductorPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    ConductorPlan
		wantErr bool
	}{
		{
			name: "valid mixed plan",
			plan: ConductorPlan{Actions: []PlannedAction{
				{Name: ActionFetchNews},
				{Name: ActionPickAndExecute, IssueNumber: 12},
				{Name: ActionCooldown, Seconds: 60},
			}},
		},
		{
			name:    "empty plan",
			plan:    ConductorPlan{},
			wantErr: true,
		},
		{
			name: "too many actions",
			plan: ConductorPlan{Actions: []PlannedAction{
				{Name: ActionSkipCycle}, {Name: ActionSkipCycle}, {Name: ActionSkipCycle},
				{Name: ActionSkipCycle}, {Name: ActionSkipCycle}, {Name: ActionSkipCycle},
				{Name: ActionSkipCycle},
			}},
			wantErr: true,
		},
		{
			name: "unknown action",
			plan: ConductorPlan{Actions: []PlannedAction{
				{Name: "reboot_universe"},
			}},
			wantErr: true,
		},
		{
			name: "pick without issue number",
			plan: ConductorPlan{Actions: []PlannedAction{
				{Name: ActionPickAndExecute},
			}},
			wantErr: true,
		},
		{
			name: "cooldown without seconds",
			plan: ConductorPlan{Actions: []PlannedAction{
				{Name: ActionCooldown},
			}},
			wantErr: true,
		},
		{
			name: "file_issue without description",
			plan: ConductorPlan{Actions: []PlannedAction{
				{Name: ActionFileIssue, Title: "something"},
			}},
			wantErr: true,
		},
		{
			name: "oversized reasoning",
			plan: ConductorPlan{
				Reasoning: strings.Repeat("a", 5000),
				Actions:   []PlannedAction{{Name: ActionSkipCycle}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrPlanInvalid) {
				t.Errorf("error %v does not wrap ErrPlanInvalid", err)
			}
		})
	}
}
