// Package config loads the engine configuration, secrets, and the
// ministries manifest.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// AgentConfig defines how to launch the agent subprocess binary.
type AgentConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	Workspace                 string      `json:"workspace"`
	OutputDir                 string      `json:"output_dir"`
	RepoOwner                 string      `json:"repo_owner"`
	RepoName                  string      `json:"repo_name"`
	Model                     string      `json:"model"`
	Agent                     AgentConfig `json:"agent"`
	MinistriesPath            string      `json:"ministries_path"`
	CooldownSec               int         `json:"cooldown_sec"`
	MaxPRRounds               int         `json:"max_pr_rounds"`
	DirectorInterval          int         `json:"director_interval"`
	StrategicDirectorInterval int         `json:"strategic_director_interval"`
	DebateThreshold           *int        `json:"debate_threshold"`
	MaxNewsPerDay             int         `json:"max_news_per_day"`
	ResearchIntervalHours     int         `json:"research_interval_hours"`
	MaxDirectorIssues         int         `json:"max_director_issues"`
	AgentTimeoutSec           int         `json:"agent_timeout_sec"`
	NewsFeeds                 []string    `json:"news_feeds"`
	TranslationDBPath         string      `json:"translation_db_path"`
	TranslationLanguages      []string    `json:"translation_languages"`
	DepSyncCommand            []string    `json:"dep_sync_command"`
}

// Secrets holds credentials read from the environment.
type Secrets struct {
	TrackerToken       string `env:"TRACKER_TOKEN, required"`
	SocialPostingToken string `env:"SOCIAL_POSTING_TOKEN"`
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadSecrets reads credentials from the environment. A missing social
// posting token disables posting; it is never fatal.
func LoadSecrets(ctx context.Context) (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process(ctx, &s); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &s, nil
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5"
	}
	if c.CooldownSec == 0 {
		c.CooldownSec = 60
	}
	if c.MaxPRRounds == 0 {
		c.MaxPRRounds = 3
	}
	if c.DirectorInterval == 0 {
		c.DirectorInterval = 5
	}
	if c.StrategicDirectorInterval == 0 {
		c.StrategicDirectorInterval = 10
	}
	if c.DebateThreshold == nil {
		// Pointer so an explicit zero threshold survives defaulting.
		threshold := 2
		c.DebateThreshold = &threshold
	}
	if c.MaxNewsPerDay == 0 {
		c.MaxNewsPerDay = 3
	}
	if c.ResearchIntervalHours == 0 {
		c.ResearchIntervalHours = 168
	}
	if c.MaxDirectorIssues == 0 {
		c.MaxDirectorIssues = 2
	}
	if c.AgentTimeoutSec == 0 {
		c.AgentTimeoutSec = 900
	}
	if c.MinistriesPath == "" {
		c.MinistriesPath = "ministries.yaml"
	}
	if c.TranslationDBPath == "" {
		c.TranslationDBPath = filepath.Join(c.OutputDir, "translations.db")
	}
	if len(c.DepSyncCommand) == 0 {
		c.DepSyncCommand = []string{"go", "mod", "download"}
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.Workspace == "" {
		problems = append(problems, "workspace is required")
	}
	if c.RepoOwner == "" {
		problems = append(problems, "repo_owner is required")
	}
	if c.RepoName == "" {
		problems = append(problems, "repo_name is required")
	}
	if c.Agent.Command == "" {
		problems = append(problems, "agent.command is required")
	}
	if c.MaxPRRounds < 0 {
		problems = append(problems, "max_pr_rounds must not be negative")
	}
	if *c.DebateThreshold < 0 || *c.DebateThreshold > 10 {
		problems = append(problems, "debate_threshold must be in [0,10]")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}

// MinistrySpec is one ministry entry of the manifest.
type MinistrySpec struct {
	Name         domain.Ministry `yaml:"name"`
	FocusAreas   []string        `yaml:"focus_areas"`
	SystemPrompt string          `yaml:"system_prompt"`
	PromptFile   string          `yaml:"prompt_file"`
}

// Manifest lists the configured ministries and shared role prompts.
type Manifest struct {
	Ministries  []MinistrySpec    `yaml:"ministries"`
	RolePrompts map[string]string `yaml:"role_prompts"`
}

// LoadManifest reads the YAML ministries manifest. Prompt files are
// resolved relative to the manifest location and loaded into SystemPrompt.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ministries manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse ministries manifest: %w", err)
	}
	if len(m.Ministries) == 0 {
		return nil, &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: "ministries manifest has no ministries",
		}
	}

	base := filepath.Dir(path)
	for i := range m.Ministries {
		spec := &m.Ministries[i]
		if spec.SystemPrompt != "" || spec.PromptFile == "" {
			continue
		}
		text, err := os.ReadFile(filepath.Join(base, spec.PromptFile))
		if err != nil {
			return nil, fmt.Errorf("read prompt for %s: %w", spec.Name, err)
		}
		spec.SystemPrompt = string(text)
	}
	return &m, nil
}

// RolePrompt returns the prompt text for a named role, or empty when the
// manifest does not define one.
func (m *Manifest) RolePrompt(role string) string {
	if m == nil || m.RolePrompts == nil {
		return ""
	}
	return m.RolePrompts[role]
}
