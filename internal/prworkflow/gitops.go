package prworkflow

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
)

// BranchName derives a work branch from a task description.
func BranchName(task string) string {
	slug := strings.ToLower(task)
	if len(slug) > 40 {
		slug = slug[:40]
	}
	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	cleaned := strings.Trim(b.String(), "-")
	return fmt.Sprintf("ai-dev/%s-%s", cleaned, uuid.NewString()[:8])
}

// Git performs the branch operations the workflow needs around the coder
// agent, which does its own commits and pushes.
type Git struct {
	Workspace string
}

// CreateBranch creates and checks out a new branch from HEAD.
func (g *Git) CreateBranch(name string) error {
	repo, err := git.PlainOpen(g.Workspace)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

// CheckoutMain returns the worktree to the main branch.
func (g *Git) CheckoutMain() error {
	repo, err := git.PlainOpen(g.Workspace)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("main"),
	})
	if err != nil {
		return fmt.Errorf("checkout main: %w", err)
	}
	return nil
}

// CurrentBranch returns the name of the checked-out branch.
func (g *Git) CurrentBranch() (string, error) {
	repo, err := git.PlainOpen(g.Workspace)
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	return head.Name().Short(), nil
}
