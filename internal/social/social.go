// Package social announces published analyses. Posting is optional:
// without a token the poster is disabled and every call is a no-op.
package social

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// Poster announces published analyses to the configured social channel.
type Poster struct {
	Token string
}

// NewPoster creates a poster. An empty token disables it.
func NewPoster(token string) *Poster {
	return &Poster{Token: token}
}

// Enabled reports whether posting is configured.
func (p *Poster) Enabled() bool {
	return p != nil && p.Token != ""
}

// Announce posts a short summary of a published analysis. Failures are
// logged and swallowed; posting never affects the publishing cycle.
func (p *Poster) Announce(ctx context.Context, result *domain.SessionResult) {
	log := clog.FromContext(ctx)
	if !p.Enabled() {
		log.Debugf("social posting disabled, skipping %s", result.Decision.ID)
		return
	}
	text := composePost(result)
	// Transport wiring is pending a channel decision; compose and log for now.
	log.Infof("social post for %s: %s", result.Decision.ID, text)
}

func composePost(result *domain.SessionResult) string {
	verdict := domain.VerdictNeutral
	if result.Parliament != nil {
		verdict = result.Parliament.OverallVerdict
	}
	return fmt.Sprintf("New analysis: %s (%s). Parliament verdict: %s. %d ministries weighed in.",
		result.Decision.Title, result.Decision.Date, verdict, len(result.Assessments))
}
