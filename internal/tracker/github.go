package tracker

import (
	"context"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// GitHub implements Tracker against the GitHub REST API.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	main   string
}

// NewGitHub creates a tracker for owner/repo authenticated with token.
func NewGitHub(ctx context.Context, owner, repo, token string) *GitHub {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &GitHub{
		client: github.NewClient(oauth2.NewClient(ctx, ts)),
		owner:  owner,
		repo:   repo,
		main:   "main",
	}
}

func toIssue(gh *github.Issue) domain.Issue {
	issue := domain.Issue{
		Number: gh.GetNumber(),
		Title:  gh.GetTitle(),
		Body:   gh.GetBody(),
		State:  gh.GetState(),
	}
	if gh.CreatedAt != nil {
		issue.CreatedAt = gh.CreatedAt.Time
	}
	for _, l := range gh.Labels {
		issue.Labels = append(issue.Labels, l.GetName())
	}
	return issue
}

func toPullRequest(gh *github.PullRequest) domain.PullRequest {
	state := gh.GetState()
	if gh.GetMerged() || gh.MergedAt != nil {
		state = "merged"
	}
	return domain.PullRequest{
		Number: gh.GetNumber(),
		Branch: gh.GetHead().GetRef(),
		State:  state,
		Body:   gh.GetBody(),
	}
}

// ListOpenIssues returns all open issues carrying every given label.
func (g *GitHub) ListOpenIssues(ctx context.Context, labels ...string) ([]domain.Issue, error) {
	var out []domain.Issue
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      labels,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		var page []*github.Issue
		var resp *github.Response
		err := withRetry(ctx, "list issues", func() error {
			var err error
			page, resp, err = g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, gh := range page {
			// Pull requests surface in the issues API as well.
			if gh.IsPullRequest() {
				continue
			}
			out = append(out, toIssue(gh))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return out, nil
}

// GetIssue fetches one issue by number.
func (g *GitHub) GetIssue(ctx context.Context, number int) (domain.Issue, error) {
	var gh *github.Issue
	err := withRetry(ctx, "get issue", func() error {
		var err error
		gh, _, err = g.client.Issues.Get(ctx, g.owner, g.repo, number)
		return err
	})
	if err != nil {
		return domain.Issue{}, err
	}
	return toIssue(gh), nil
}

// CreateIssue opens a new issue and returns its number.
func (g *GitHub) CreateIssue(ctx context.Context, title, body string, labels []string) (int, error) {
	req := &github.IssueRequest{
		Title:  github.Ptr(title),
		Body:   github.Ptr(truncateBody(body)),
		Labels: &labels,
	}
	var created *github.Issue
	err := withRetry(ctx, "create issue", func() error {
		var err error
		created, _, err = g.client.Issues.Create(ctx, g.owner, g.repo, req)
		return err
	})
	if err != nil {
		return 0, err
	}
	return created.GetNumber(), nil
}

// AddLabels adds labels to an issue. Adding an existing label is a no-op
// on the tracker side, which keeps label transitions idempotent.
func (g *GitHub) AddLabels(ctx context.Context, number int, labels ...string) error {
	return withRetry(ctx, "add labels", func() error {
		_, _, err := g.client.Issues.AddLabelsToIssue(ctx, g.owner, g.repo, number, labels)
		return err
	})
}

// RemoveLabel removes one label from an issue. A missing label is treated
// as already removed.
func (g *GitHub) RemoveLabel(ctx context.Context, number int, label string) error {
	err := withRetry(ctx, "remove label", func() error {
		_, err := g.client.Issues.RemoveLabelForIssue(ctx, g.owner, g.repo, number, label)
		return err
	})
	if err != nil && strings.Contains(err.Error(), "404") {
		return nil
	}
	return err
}

// CloseIssue closes an issue.
func (g *GitHub) CloseIssue(ctx context.Context, number int) error {
	return withRetry(ctx, "close issue", func() error {
		_, _, err := g.client.Issues.Edit(ctx, g.owner, g.repo, number, &github.IssueRequest{
			State: github.Ptr("closed"),
		})
		return err
	})
}

// CommentIssue posts a comment on an issue.
func (g *GitHub) CommentIssue(ctx context.Context, number int, body string) error {
	return withRetry(ctx, "comment issue", func() error {
		_, _, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, number, &github.IssueComment{
			Body: github.Ptr(truncateBody(body)),
		})
		return err
	})
}

// ListIssueComments returns all comments on an issue, oldest first.
func (g *GitHub) ListIssueComments(ctx context.Context, number int) ([]domain.Comment, error) {
	var comments []*github.IssueComment
	err := withRetry(ctx, "list issue comments", func() error {
		var err error
		comments, _, err = g.client.Issues.ListComments(ctx, g.owner, g.repo, number, &github.IssueListCommentsOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		out = append(out, domain.Comment{Author: c.GetUser().GetLogin(), Body: c.GetBody()})
	}
	return out, nil
}

// PullRequestForBranch returns the PR whose head is branch, or nil.
func (g *GitHub) PullRequestForBranch(ctx context.Context, branch string) (*domain.PullRequest, error) {
	var prs []*github.PullRequest
	err := withRetry(ctx, "find pr for branch", func() error {
		var err error
		prs, _, err = g.client.PullRequests.List(ctx, g.owner, g.repo, &github.PullRequestListOptions{
			State: "all",
			Head:  g.owner + ":" + branch,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, nil
	}
	pr := toPullRequest(prs[0])
	return &pr, nil
}

// ListOpenPullRequests returns all open PRs.
func (g *GitHub) ListOpenPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	var prs []*github.PullRequest
	err := withRetry(ctx, "list open prs", func() error {
		var err error
		prs, _, err = g.client.PullRequests.List(ctx, g.owner, g.repo, &github.PullRequestListOptions{State: "open"})
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, toPullRequest(pr))
	}
	return out, nil
}

// ListMergedPullRequests returns up to limit recently merged PRs.
func (g *GitHub) ListMergedPullRequests(ctx context.Context, limit int) ([]domain.PullRequest, error) {
	var prs []*github.PullRequest
	err := withRetry(ctx, "list merged prs", func() error {
		var err error
		prs, _, err = g.client.PullRequests.List(ctx, g.owner, g.repo, &github.PullRequestListOptions{
			State:       "closed",
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: github.ListOptions{PerPage: 50},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	var out []domain.PullRequest
	for _, pr := range prs {
		if pr.MergedAt == nil {
			continue
		}
		out = append(out, toPullRequest(pr))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListPullRequestComments returns review comments and conversation
// comments merged, oldest first within each group.
func (g *GitHub) ListPullRequestComments(ctx context.Context, number int) ([]domain.Comment, error) {
	var reviewComments []*github.PullRequestComment
	err := withRetry(ctx, "list pr review comments", func() error {
		var err error
		reviewComments, _, err = g.client.PullRequests.ListComments(ctx, g.owner, g.repo, number, &github.PullRequestListCommentsOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	var out []domain.Comment
	for _, c := range reviewComments {
		out = append(out, domain.Comment{Author: c.GetUser().GetLogin(), Body: c.GetBody()})
	}

	// Conversation-tab comments live in the issues API.
	issueComments, err := g.ListIssueComments(ctx, number)
	if err != nil {
		return nil, err
	}
	return append(out, issueComments...), nil
}

// CommentPullRequest posts a conversation comment on a PR.
func (g *GitHub) CommentPullRequest(ctx context.Context, number int, body string) error {
	return g.CommentIssue(ctx, number, body)
}

// MergePullRequest squash-merges a PR.
func (g *GitHub) MergePullRequest(ctx context.Context, number int) error {
	return withRetry(ctx, "merge pr", func() error {
		_, _, err := g.client.PullRequests.Merge(ctx, g.owner, g.repo, number, "", &github.PullRequestOptions{
			MergeMethod: "squash",
		})
		return err
	})
}

// ClosePullRequest closes a PR without merging.
func (g *GitHub) ClosePullRequest(ctx context.Context, number int) error {
	return withRetry(ctx, "close pr", func() error {
		_, _, err := g.client.PullRequests.Edit(ctx, g.owner, g.repo, number, &github.PullRequest{
			State: github.Ptr("closed"),
		})
		return err
	})
}

// IsCIPassing inspects the most recent workflow runs on main. Runs still
// in progress are skipped; with no completed runs at all the answer is
// optimistic so missing CI never deadlocks the loop.
func (g *GitHub) IsCIPassing(ctx context.Context) (bool, error) {
	var runs *github.WorkflowRuns
	err := withRetry(ctx, "list workflow runs", func() error {
		var err error
		runs, _, err = g.client.Actions.ListRepositoryWorkflowRuns(ctx, g.owner, g.repo, &github.ListWorkflowRunsOptions{
			Branch:      g.main,
			ListOptions: github.ListOptions{PerPage: 5},
		})
		return err
	})
	if err != nil {
		clog.FromContext(ctx).Warnf("ci status unavailable, assuming passing: %v", err)
		return true, nil
	}
	if runs == nil || len(runs.WorkflowRuns) == 0 {
		return true, nil
	}
	for _, run := range runs.WorkflowRuns {
		switch run.GetConclusion() {
		case "":
			continue
		case "success", "skipped", "neutral":
			return true, nil
		default:
			return false, nil
		}
	}
	return true, nil
}
