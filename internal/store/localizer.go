package store

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/domain"
)

// Localizer translates the public-facing fields of a published analysis,
// consulting the translation memory before spawning a translator agent.
type Localizer struct {
	Repo      *TranslationRepo
	Runner    *agent.Runner
	Model     string
	Languages []string
}

// Localize fills TranslatedTitle and TranslatedSummary for the first
// configured language. Memory hits skip the agent entirely.
func (l *Localizer) Localize(ctx context.Context, result *domain.SessionResult) error {
	if len(l.Languages) == 0 {
		return nil
	}
	language := l.Languages[0]

	title, err := l.translate(ctx, result.Decision.Title, language)
	if err != nil {
		return err
	}
	summary, err := l.translate(ctx, result.Decision.Summary, language)
	if err != nil {
		return err
	}
	result.Decision.TranslatedTitle = title
	result.Decision.TranslatedSummary = summary
	return nil
}

func (l *Localizer) translate(ctx context.Context, text, language string) (string, error) {
	if text == "" {
		return "", nil
	}
	if cached, err := l.Repo.Get(ctx, text, language); err != nil {
		return "", err
	} else if cached != "" {
		clog.FromContext(ctx).Debugf("translation memory hit for %s", language)
		return cached, nil
	}

	translated, err := l.Runner.Run(ctx, agent.Request{
		SystemPrompt: fmt.Sprintf("You translate government-affairs text into %s. Respond with the translation only, no commentary.", language),
		UserPrompt:   text,
		Model:        l.Model,
		AllowedTools: agent.NoTools,
		MaxTurns:     1,
	})
	if err != nil {
		return "", err
	}
	if err := l.Repo.Put(ctx, text, language, translated); err != nil {
		return "", err
	}
	return translated, nil
}
