package backlog

import (
	"sort"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// Pick selects the next issue to execute from the open backlog. It is a
// pure function of the issue list and never mutates state. The tiers, in
// order:
//
//  1. priority:critical, most recently created first
//  2. task:analysis, oldest first
//  3. human-suggestion
//  4. director-suggestion or strategy-suggestion
//  5. everything else, oldest first
//
// Returns nil when the backlog is empty.
func Pick(issues []domain.Issue) *domain.Issue {
	backlog := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.State == "open" && issue.HasLabel(domain.LabelBacklog) {
			backlog = append(backlog, issue)
		}
	}
	if len(backlog) == 0 {
		return nil
	}

	// Stable creation-time order underpins every tier.
	sort.SliceStable(backlog, func(i, j int) bool {
		return backlog[i].CreatedAt.Before(backlog[j].CreatedAt)
	})

	if pick := newestWith(backlog, domain.LabelPriorityCritical); pick != nil {
		return pick
	}
	if pick := oldestWith(backlog, domain.LabelTaskAnalysis); pick != nil {
		return pick
	}
	if pick := oldestWith(backlog, domain.LabelHuman); pick != nil {
		return pick
	}
	if pick := oldestWith(backlog, domain.LabelDirector, domain.LabelStrategy); pick != nil {
		return pick
	}
	pick := backlog[0]
	return &pick
}

func oldestWith(sorted []domain.Issue, labels ...string) *domain.Issue {
	for _, issue := range sorted {
		for _, label := range labels {
			if issue.HasLabel(label) {
				pick := issue
				return &pick
			}
		}
	}
	return nil
}

func newestWith(sorted []domain.Issue, labels ...string) *domain.Issue {
	for i := len(sorted) - 1; i >= 0; i-- {
		for _, label := range labels {
			if sorted[i].HasLabel(label) {
				pick := sorted[i]
				return &pick
			}
		}
	}
	return nil
}
