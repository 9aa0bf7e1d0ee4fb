package telemetry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

const (
	// breakerWindow is how many trailing cycle records are inspected.
	breakerWindow = 5
	// breakerThreshold trips the breaker when one triple repeats this often.
	breakerThreshold = 3

	stabilityTitlePrefix = "stability: "
)

// Breaker files a stability issue when the same error triple repeats
// across recent cycles. The check is mechanical; no agent is involved.
type Breaker struct {
	Writer  *Writer
	Tracker tracker.Tracker
}

// NewBreaker creates a breaker over the given telemetry and tracker.
func NewBreaker(w *Writer, t tracker.Tracker) *Breaker {
	return &Breaker{Writer: w, Tracker: t}
}

// triple identifies a recurring failure pattern.
type triple struct {
	Phase   string
	Kind    domain.ErrorKind
	Message string
}

func (t triple) title() string {
	return fmt.Sprintf("%s%s / %s / %s", stabilityTitlePrefix, t.Phase, t.Kind, t.Message)
}

var noisePattern = regexp.MustCompile(`\d+`)

// normalizeMessage collapses volatile fragments so repeated occurrences
// of the same failure compare equal.
func normalizeMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = noisePattern.ReplaceAllString(msg, "N")
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return msg
}

// Check inspects the last cycles and files at most one priority:high
// issue for a tripped pattern. A triple occurring several times within a
// single cycle counts once; duplicate open issues are skipped.
func (b *Breaker) Check(ctx context.Context) error {
	log := clog.FromContext(ctx)

	records, err := b.Writer.LoadCycles(breakerWindow)
	if err != nil {
		return fmt.Errorf("load telemetry: %w", err)
	}

	// Deduplicate triples per cycle_number before counting.
	counts := map[triple]int{}
	for _, rec := range records {
		seen := map[triple]bool{}
		for _, phase := range rec.Phases {
			if phase.Error == nil {
				continue
			}
			t := triple{
				Phase:   phase.Action,
				Kind:    phase.Error.Kind,
				Message: normalizeMessage(phase.Error.Message),
			}
			if !seen[t] {
				seen[t] = true
				counts[t]++
			}
		}
	}

	var tripped *triple
	for t, n := range counts {
		if n >= breakerThreshold {
			tripped = &t
			break
		}
	}
	if tripped == nil {
		return nil
	}

	// Idempotence: skip when an open issue already names this triple.
	open, err := b.Tracker.ListOpenIssues(ctx)
	if err != nil {
		return fmt.Errorf("list open issues: %w", err)
	}
	title := tripped.title()
	for _, issue := range open {
		if issue.Title == title {
			log.Debugf("breaker pattern already filed as #%d", issue.Number)
			return nil
		}
	}

	body := fmt.Sprintf(
		"The same failure recurred in %d of the last %d cycles.\n\n"+
			"- phase: `%s`\n- kind: `%s`\n- message: `%s`\n\n"+
			"Investigate and fix the underlying cause.",
		counts[*tripped], breakerWindow, tripped.Phase, tripped.Kind, tripped.Message,
	)
	number, err := b.Tracker.CreateIssue(ctx, title, body, []string{
		domain.LabelPriorityHigh,
		domain.LabelProposed,
		domain.LabelTaskCodeChange,
		domain.LabelGapTechnical,
	})
	if err != nil {
		return fmt.Errorf("file stability issue: %w", err)
	}
	log.Warnf("circuit breaker tripped, filed issue #%d: %s", number, title)
	return nil
}
