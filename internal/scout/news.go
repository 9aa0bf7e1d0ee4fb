package scout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/pipeline"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

const (
	newsScoutMaxTurns = 20
	fullTextTimeout   = 30 * time.Second
)

// candidate is one decision found by the scout before intake.
type candidate struct {
	Title     string          `json:"title"`
	Summary   string          `json:"summary"`
	Date      string          `json:"date"`
	SourceURL string          `json:"source_url"`
	Category  domain.Category `json:"category"`
	Tags      []string        `json:"tags"`
}

// NewsScout discovers new government decisions and files analysis issues.
type NewsScout struct {
	Runner    *agent.Runner
	Tracker   tracker.Tracker
	Results   *pipeline.ResultStore
	Feeds     []string
	Model     string
	MaxPerDay int
	StatePath string
}

// ShouldRun reports whether intake may run today.
func (n *NewsScout) ShouldRun(now time.Time) bool {
	state, err := LoadNewsState(n.StatePath)
	if err != nil {
		return true
	}
	return ShouldRunNews(state, now)
}

// Run performs one intake pass: gather candidates from configured RSS
// feeds and the scout agent, derive stable decision ids, skip duplicates,
// and file at most MaxPerDay analysis issues. The daily gate is enforced
// here, not only in the planner; a second Run the same day is a no-op.
func (n *NewsScout) Run(ctx context.Context, now time.Time) ([]domain.Decision, error) {
	log := clog.FromContext(ctx)
	if !n.ShouldRun(now) {
		log.Infof("news intake already ran today, skipping")
		return nil, nil
	}

	candidates := n.fromFeeds(ctx)
	agentFound, err := n.fromAgent(ctx)
	if err != nil {
		log.Warnf("news scout agent failed: %v", err)
	}
	candidates = append(candidates, agentFound...)
	log.Infof("news intake found %d candidate(s)", len(candidates))

	openIssues, err := n.Tracker.ListOpenIssues(ctx)
	if err != nil {
		return nil, err
	}

	var created []domain.Decision
	for _, c := range candidates {
		if len(created) >= n.MaxPerDay {
			break
		}
		decision, err := n.intake(ctx, c, openIssues, now)
		if err != nil {
			log.Warnf("intake %q: %v", c.Title, err)
			continue
		}
		if decision != nil {
			created = append(created, *decision)
		}
	}

	if err := SaveNewsState(n.StatePath, NewsState{LastDate: now.Format("2006-01-02")}); err != nil {
		return created, err
	}
	return created, nil
}

// intake converts one candidate into a tracked analysis issue, or nil
// when it is a duplicate. Duplicate detection is by decision id against
// open issues and already-published analyses, and is silent.
func (n *NewsScout) intake(ctx context.Context, c candidate, openIssues []domain.Issue, now time.Time) (*domain.Decision, error) {
	date := now
	if parsed, err := time.Parse("2006-01-02", c.Date); err == nil {
		date = parsed
	}
	id := domain.DeriveDecisionID(date, c.Title)

	for _, issue := range openIssues {
		if strings.Contains(issue.Title, id) {
			return nil, nil
		}
	}
	if existing, err := n.Results.Load(id); err == nil && existing != nil {
		return nil, nil
	}

	category := c.Category
	if !domain.ValidCategory(category) {
		category = domain.CategoryGeneral
	}
	decision := domain.Decision{
		ID:        id,
		Title:     c.Title,
		Summary:   c.Summary,
		Date:      date.Format("2006-01-02"),
		SourceURL: c.SourceURL,
		Category:  category,
		Tags:      c.Tags,
		FullText:  n.fullText(ctx, c.SourceURL),
	}

	if err := n.Results.SavePending(decision); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Analyze decision %s: %s", id, decision.Title)
	body := fmt.Sprintf("Decision id: `%s`\nDate: %s\nCategory: %s\nSource: %s\n\n%s",
		id, decision.Date, decision.Category, decision.SourceURL, decision.Summary)
	number, err := n.Tracker.CreateIssue(ctx, title, body, []string{
		domain.LabelTaskAnalysis,
		domain.LabelBacklog,
	})
	if err != nil {
		return nil, err
	}
	clog.FromContext(ctx).Infof("filed analysis issue #%d for %s", number, id)
	return &decision, nil
}

// fromFeeds parses the configured RSS feeds into candidates.
func (n *NewsScout) fromFeeds(ctx context.Context) []candidate {
	log := clog.FromContext(ctx)
	parser := gofeed.NewParser()

	var out []candidate
	for _, url := range n.Feeds {
		feed, err := parser.ParseURLWithContext(url, ctx)
		if err != nil {
			log.Warnf("parse feed %s: %v", url, err)
			continue
		}
		for _, item := range feed.Items {
			c := candidate{
				Title:     item.Title,
				Summary:   item.Description,
				SourceURL: item.Link,
				Category:  domain.CategoryGeneral,
			}
			if item.PublishedParsed != nil {
				c.Date = item.PublishedParsed.Format("2006-01-02")
			}
			out = append(out, c)
		}
	}
	return out
}

// fromAgent asks the scout agent to search for recent decisions.
func (n *NewsScout) fromAgent(ctx context.Context) ([]candidate, error) {
	text, err := n.Runner.Run(ctx, agent.Request{
		SystemPrompt: "You are a news scout monitoring official government announcements.",
		UserPrompt: "Search for government decisions announced in the last two days. " +
			"Respond with a JSON array of objects: " +
			`[{"title": "...", "summary": "...", "date": "YYYY-MM-DD", "source_url": "...", ` +
			`"category": "fiscal|legal|eu|health|security|education|economy|tourism|environment|general", "tags": ["..."]}]`,
		Model:        n.Model,
		AllowedTools: agent.ScoutTools,
		MaxTurns:     newsScoutMaxTurns,
	})
	if err != nil {
		return nil, err
	}
	return agent.Extract[[]candidate](text)
}

// fullText fetches and extracts the readable article body, best effort.
func (n *NewsScout) fullText(ctx context.Context, url string) string {
	if url == "" {
		return ""
	}
	article, err := readability.FromURL(url, fullTextTimeout)
	if err != nil {
		clog.FromContext(ctx).Debugf("readability %s: %v", url, err)
		return ""
	}
	return article.TextContent
}
