// Package agent invokes LLM agents as isolated subprocesses and collects
// their final assistant text.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// Nested-session sentinels. Both are cleared on every spawn so agents can
// be invoked from inside another agent session.
var sentinelEnv = []string{"CLAUDECODE", "ANTHROPIC_API_KEY"}

// Tool sets per role. The reviewer set must never contain write tools.
var (
	CoderTools     = []string{"Bash", "Write", "Edit", "Read", "Glob", "Grep"}
	ReviewerTools  = []string{"Bash", "Read", "Glob", "Grep"}
	ProposerTools  = []string{"Bash", "Read", "Glob", "Grep"}
	ScoutTools     = []string{"WebSearch", "WebFetch"}
	EditorialTools = []string{"Read"}
	RecoveryTools  = []string{"Read", "Glob", "Grep"}
	NoTools        = []string{}
)

// Request describes one agent invocation.
type Request struct {
	SystemPrompt string        `json:"system_prompt"`
	UserPrompt   string        `json:"user_prompt"`
	Model        string        `json:"model"`
	AllowedTools []string      `json:"allowed_tools"`
	MaxTurns     int           `json:"max_turns"`
	Effort       string        `json:"effort,omitempty"`
	Timeout      time.Duration `json:"-"`
	Env          map[string]string
}

// Runner spawns the configured agent binary once per request.
type Runner struct {
	Command string
	Args    []string
	Workdir string
}

// NewRunner creates a runner for the given agent binary.
func NewRunner(command string, args []string, workdir string) *Runner {
	return &Runner{Command: command, Args: args, Workdir: workdir}
}

// event is one JSON line streamed by the agent binary on stdout.
type event struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Run spawns the agent subprocess, streams its stdout, and returns the
// concatenated assistant text. The subprocess is always reaped, on every
// path including timeout and cancellation.
func (r *Runner) Run(ctx context.Context, req Request) (string, error) {
	log := clog.FromContext(ctx)

	// MaxTurns 0 means unlimited; the agent binary interprets it.
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(struct {
		SystemPrompt string   `json:"system_prompt"`
		UserPrompt   string   `json:"user_prompt"`
		Model        string   `json:"model"`
		AllowedTools []string `json:"allowed_tools"`
		MaxTurns     int      `json:"max_turns"`
		Effort       string   `json:"effort,omitempty"`
	}{req.SystemPrompt, req.UserPrompt, req.Model, req.AllowedTools, req.MaxTurns, req.Effort})
	if err != nil {
		return "", fmt.Errorf("marshal agent request: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Dir = r.Workdir
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = buildEnv(req.Env)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", domain.WrapEngineError(domain.ErrAgentExec.Code, "stdout pipe", err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return "", domain.WrapEngineError(domain.ErrAgentExec.Code, "spawn agent", err)
	}

	// Drain stdout to EOF before waiting so the pipe buffer cannot
	// deadlock the subprocess.
	var text strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if ev.Type == "assistant" && ev.Text != "" {
			text.WriteString(ev.Text)
			text.WriteString("\n")
		}
	}

	waitErr := cmd.Wait()
	collected := strings.TrimSpace(text.String())

	if ctx.Err() == context.DeadlineExceeded {
		log.Warnf("agent timed out after %s (partial output %d bytes)", time.Since(started).Round(time.Second), len(collected))
		return collected, fmt.Errorf("%w after %s", domain.ErrAgentTimeout, timeout)
	}
	if waitErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = waitErr.Error()
		}
		return collected, domain.WrapEngineError(domain.ErrAgentExec.Code, "agent exited", errors.New(msg))
	}
	if collected == "" {
		return "", domain.ErrAgentEmpty
	}

	log.Debugf("agent finished in %s, %d bytes of text", time.Since(started).Round(time.Millisecond), len(collected))
	return collected, nil
}

// buildEnv merges the process environment with overrides and clears the
// nested-session sentinels. Overrides win; sentinels always end up empty
// unless explicitly overridden.
func buildEnv(overrides map[string]string) []string {
	cleared := make(map[string]string, len(overrides)+len(sentinelEnv))
	for _, k := range sentinelEnv {
		cleared[k] = ""
	}
	for k, v := range overrides {
		cleared[k] = v
	}

	var env []string
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if _, shadowed := cleared[name]; shadowed {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range cleared {
		env = append(env, k+"="+v)
	}
	return env
}
