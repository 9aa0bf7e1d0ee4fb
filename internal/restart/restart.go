// Package restart re-executes the engine binary after a code change has
// merged, so the running process picks up its own improvements.
package restart

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// Manager performs the pre-restart sequence: persist local output, pull
// the merged change, sync dependencies, then replace the process image.
type Manager struct {
	Workspace      string
	OutputDir      string
	DepSyncCommand []string
}

// Restart runs the full sequence and, on success, never returns. Any
// failure aborts the restart and the engine keeps running on the old
// binary.
func (m *Manager) Restart(ctx context.Context, cycle, productive int) error {
	log := clog.FromContext(ctx)

	if err := m.commitOutput(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRestartAbort, err)
	}
	if err := m.pull(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRestartAbort, err)
	}
	if err := m.syncDeps(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRestartAbort, err)
	}

	argv := RebuildArgs(os.Args, cycle, productive)
	log.Infof("re-executing %s with %v", argv[0], argv[1:])
	if err := syscall.Exec(argv[0], argv, os.Environ()); err != nil {
		return fmt.Errorf("%w: exec: %v", domain.ErrRestartAbort, err)
	}
	return nil
}

// commitOutput commits and pushes any local output so the restarted
// process never clobbers published analyses. A clean tree is a no-op.
func (m *Manager) commitOutput(ctx context.Context) error {
	log := clog.FromContext(ctx)

	repo, err := git.PlainOpen(m.Workspace)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		log.Debugf("worktree clean, nothing to persist")
		return nil
	}

	if err := wt.AddGlob(m.OutputDir + "/*"); err != nil {
		return fmt.Errorf("stage output: %w", err)
	}
	_, err = wt.Commit("Persist engine output before restart", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "cabinet-engine",
			Email: "engine@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit output: %w", err)
	}
	if err := repo.PushContext(ctx, &git.PushOptions{}); err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("push output: %w", err)
	}
	return nil
}

// pull fast-forwards the worktree to the merged change. A divergent
// local history cannot fast-forward and aborts the restart.
func (m *Manager) pull(ctx context.Context) error {
	repo, err := git.PlainOpen(m.Workspace)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	return nil
}

// syncDeps runs the configured dependency sync command in the workspace.
func (m *Manager) syncDeps(ctx context.Context) error {
	if len(m.DepSyncCommand) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, m.DepSyncCommand[0], m.DepSyncCommand[1:]...)
	cmd.Dir = m.Workspace
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("dep sync %v: %v: %s", m.DepSyncCommand, err, out)
	}
	return nil
}

// RebuildArgs reconstructs the process argv with the cycle and productive
// counters carried across the exec boundary. Stale offset flags from a
// previous restart are replaced, not accumulated.
func RebuildArgs(args []string, cycle, productive int) []string {
	out := make([]string, 0, len(args)+4)
	skip := false
	for i, arg := range args {
		if skip {
			skip = false
			continue
		}
		if arg == "--cycle-offset" || arg == "--productive-offset" {
			skip = true
			continue
		}
		if i > 0 && (strings.HasPrefix(arg, "--cycle-offset=") || strings.HasPrefix(arg, "--productive-offset=")) {
			continue
		}
		out = append(out, arg)
	}
	out = append(out,
		"--cycle-offset", strconv.Itoa(cycle),
		"--productive-offset", strconv.Itoa(productive),
	)
	return out
}
