package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// validJSON returns a minimal valid configuration JSON string.
func validJSON() string {
	return `{
		"workspace": "/tmp/workspace",
		"repo_owner": "example",
		"repo_name": "cabinet",
		"agent": {
			"command": "agent-cli",
			"args": ["--stdin"]
		}
	}`
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "config.json")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Valid(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validJSON())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workspace != "/tmp/workspace" {
		t.Errorf("Workspace = %q, want /tmp/workspace", cfg.Workspace)
	}
	if cfg.RepoOwner != "example" || cfg.RepoName != "cabinet" {
		t.Errorf("repo = %s/%s", cfg.RepoOwner, cfg.RepoName)
	}
	if cfg.Agent.Command != "agent-cli" {
		t.Errorf("Agent.Command = %q", cfg.Agent.Command)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validJSON())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CooldownSec != 60 {
		t.Errorf("CooldownSec = %d, want 60", cfg.CooldownSec)
	}
	if cfg.MaxPRRounds != 3 {
		t.Errorf("MaxPRRounds = %d, want 3", cfg.MaxPRRounds)
	}
	if cfg.DirectorInterval != 5 || cfg.StrategicDirectorInterval != 10 {
		t.Errorf("director intervals = %d/%d, want 5/10", cfg.DirectorInterval, cfg.StrategicDirectorInterval)
	}
	if cfg.DebateThreshold == nil || *cfg.DebateThreshold != 2 {
		t.Errorf("DebateThreshold = %v, want 2", cfg.DebateThreshold)
	}
	if cfg.MaxNewsPerDay != 3 {
		t.Errorf("MaxNewsPerDay = %d, want 3", cfg.MaxNewsPerDay)
	}
	if cfg.ResearchIntervalHours != 168 {
		t.Errorf("ResearchIntervalHours = %d, want 168", cfg.ResearchIntervalHours)
	}
	if cfg.MaxDirectorIssues != 2 {
		t.Errorf("MaxDirectorIssues = %d, want 2", cfg.MaxDirectorIssues)
	}
	if cfg.AgentTimeoutSec != 900 {
		t.Errorf("AgentTimeoutSec = %d, want 900", cfg.AgentTimeoutSec)
	}
	if cfg.TranslationDBPath == "" {
		t.Error("TranslationDBPath default not applied")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{not valid json}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"workspace": "/tmp/ws"}`)

	_, err := Load(path)
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestLoad_ExplicitZeroThreshold(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"workspace": "/tmp/workspace",
		"repo_owner": "example",
		"repo_name": "cabinet",
		"agent": {"command": "agent-cli"},
		"debate_threshold": 0
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DebateThreshold == nil || *cfg.DebateThreshold != 0 {
		t.Errorf("DebateThreshold = %v, want explicit 0", cfg.DebateThreshold)
	}
}

func TestLoad_ThresholdOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"workspace": "/tmp/workspace",
		"repo_owner": "example",
		"repo_name": "cabinet",
		"agent": {"command": "agent-cli"},
		"debate_threshold": 11
	}`)

	_, err := Load(path)
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "finance.txt")
	if err := os.WriteFile(promptPath, []byte("You are the finance ministry."), 0644); err != nil {
		t.Fatal(err)
	}
	manifestPath := filepath.Join(dir, "ministries.yaml")
	manifest := `
ministries:
  - name: finance
    focus_areas: ["budget", "taxation"]
    prompt_file: finance.txt
  - name: justice
    system_prompt: "You are the justice ministry."
role_prompts:
  parliament: "You chair the parliament."
`
	if err := os.WriteFile(manifestPath, []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(manifestPath)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(m.Ministries) != 2 {
		t.Fatalf("ministries = %d, want 2", len(m.Ministries))
	}
	if m.Ministries[0].SystemPrompt != "You are the finance ministry." {
		t.Errorf("prompt_file not resolved: %q", m.Ministries[0].SystemPrompt)
	}
	if m.Ministries[1].SystemPrompt != "You are the justice ministry." {
		t.Errorf("inline prompt lost: %q", m.Ministries[1].SystemPrompt)
	}
	if m.RolePrompt("parliament") != "You chair the parliament." {
		t.Errorf("RolePrompt = %q", m.RolePrompt("parliament"))
	}
	if m.RolePrompt("missing") != "" {
		t.Error("missing role returned non-empty prompt")
	}
}

func TestLoadManifest_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ministries.yaml")
	if err := os.WriteFile(path, []byte("ministries: []"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}
