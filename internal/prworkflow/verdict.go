// Package prworkflow drives a task to a merged pull request through
// alternating coder and reviewer agents.
package prworkflow

import (
	"strings"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// Verdict markers the reviewer posts in PR comments. Comments are parsed
// for these instead of the tracker's review decision, which blocks
// self-reviews.
const (
	VerdictApproved         = "VERDICT: APPROVED"
	VerdictChangesRequested = "VERDICT: CHANGES_REQUESTED"
)

// Verdict is the parsed review outcome.
type Verdict string

const (
	Approved         Verdict = "APPROVED"
	ChangesRequested Verdict = "CHANGES_REQUESTED"
	NoVerdict        Verdict = ""
)

// ExtractVerdict finds a verdict marker in free text.
func ExtractVerdict(text string) Verdict {
	if strings.Contains(text, VerdictApproved) {
		return Approved
	}
	if strings.Contains(text, VerdictChangesRequested) {
		return ChangesRequested
	}
	return NoVerdict
}

// VerdictFromComments scans comments newest-first and returns the first
// verdict found.
func VerdictFromComments(comments []domain.Comment) Verdict {
	for i := len(comments) - 1; i >= 0; i-- {
		if v := ExtractVerdict(comments[i].Body); v != NoVerdict {
			return v
		}
	}
	return NoVerdict
}

// overrideMarker flags a human instruction that takes absolute priority.
const overrideMarker = "HUMAN OVERRIDE"

// ExtractOverride returns the text of the last comment carrying the
// override marker, with the marker removed. Empty when none exists.
func ExtractOverride(comments []domain.Comment) string {
	override := ""
	for _, c := range comments {
		if strings.Contains(c.Body, overrideMarker) {
			override = strings.TrimSpace(strings.ReplaceAll(c.Body, overrideMarker, ""))
		}
	}
	return override
}
