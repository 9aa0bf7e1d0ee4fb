// Package tracker adapts the external issue tracker. All coordination
// state lives there; the engine only holds transient views.
package tracker

import (
	"context"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// Tracker is the set of issue, pull-request, and CI operations the engine
// consumes. Implementations must classify transient failures so the retry
// layer can distinguish them from fatal ones.
type Tracker interface {
	ListOpenIssues(ctx context.Context, labels ...string) ([]domain.Issue, error)
	GetIssue(ctx context.Context, number int) (domain.Issue, error)
	CreateIssue(ctx context.Context, title, body string, labels []string) (int, error)
	AddLabels(ctx context.Context, number int, labels ...string) error
	RemoveLabel(ctx context.Context, number int, label string) error
	CloseIssue(ctx context.Context, number int) error
	CommentIssue(ctx context.Context, number int, body string) error
	ListIssueComments(ctx context.Context, number int) ([]domain.Comment, error)

	PullRequestForBranch(ctx context.Context, branch string) (*domain.PullRequest, error)
	ListOpenPullRequests(ctx context.Context) ([]domain.PullRequest, error)
	ListMergedPullRequests(ctx context.Context, limit int) ([]domain.PullRequest, error)
	ListPullRequestComments(ctx context.Context, number int) ([]domain.Comment, error)
	CommentPullRequest(ctx context.Context, number int, body string) error
	MergePullRequest(ctx context.Context, number int) error
	ClosePullRequest(ctx context.Context, number int) error

	// IsCIPassing reports the conclusion of recent runs on the main
	// branch. Missing data counts as passing.
	IsCIPassing(ctx context.Context) (bool, error)
}

// maxCommentBytes bounds comment bodies posted to the tracker. Longer
// bodies are truncated with a marker rather than rejected.
const maxCommentBytes = 60000

// truncateBody clips a comment body to the tracker's size limit.
func truncateBody(body string) string {
	if len(body) <= maxCommentBytes {
		return body
	}
	return body[:maxCommentBytes] + "\n\n[truncated]"
}
