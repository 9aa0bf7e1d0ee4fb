// Package main is the entry point for the cabinet engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/anthropics/cabinet-engine/internal/agent"
	"github.com/anthropics/cabinet-engine/internal/backlog"
	"github.com/anthropics/cabinet-engine/internal/conductor"
	"github.com/anthropics/cabinet-engine/internal/config"
	"github.com/anthropics/cabinet-engine/internal/debate"
	"github.com/anthropics/cabinet-engine/internal/dispatch"
	"github.com/anthropics/cabinet-engine/internal/engine"
	"github.com/anthropics/cabinet-engine/internal/pipeline"
	"github.com/anthropics/cabinet-engine/internal/prworkflow"
	"github.com/anthropics/cabinet-engine/internal/restart"
	"github.com/anthropics/cabinet-engine/internal/scout"
	"github.com/anthropics/cabinet-engine/internal/social"
	"github.com/anthropics/cabinet-engine/internal/store"
	"github.com/anthropics/cabinet-engine/internal/telemetry"
	"github.com/anthropics/cabinet-engine/internal/tracker"
)

var (
	version = "dev"
	commit  = "none"
)

type cliFlags struct {
	configPath       string
	maxCycles        int
	cooldown         int
	model            string
	maxPRRounds      int
	directorInterval int
	dryRun           bool
	verbose          bool
	skipImprove      bool
	skipAnalysis     bool
	skipResearch     bool
	cycleOffset      int
	productiveOffset int
}

func main() {
	var flags cliFlags

	root := &cobra.Command{
		Use:     "cabinet",
		Short:   "Autonomous engine that analyzes government decisions and improves itself",
		Version: fmt.Sprintf("%s (commit=%s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), flags)
		},
	}

	root.Flags().StringVar(&flags.configPath, "config", "config.json", "path to configuration JSON file")
	root.Flags().IntVar(&flags.maxCycles, "max-cycles", 0, "stop after this many cycles (0 = unlimited)")
	root.Flags().IntVar(&flags.cooldown, "cooldown", 0, "seconds between cycles (overrides config)")
	root.Flags().StringVar(&flags.model, "model", "", "agent model (overrides config)")
	root.Flags().IntVar(&flags.maxPRRounds, "max-pr-rounds", 0, "review round cap (overrides config)")
	root.Flags().IntVar(&flags.directorInterval, "director-interval", 0, "productive cycles between director runs (overrides config)")
	root.Flags().BoolVar(&flags.dryRun, "dry-run", false, "plan but skip actions that mutate external state")
	root.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	root.Flags().BoolVar(&flags.skipImprove, "skip-improve", false, "disable the self-improvement track")
	root.Flags().BoolVar(&flags.skipAnalysis, "skip-analysis", false, "disable news intake and analysis")
	root.Flags().BoolVar(&flags.skipResearch, "skip-research", false, "disable the research scout")

	// Carried across the restart exec boundary; not for operators.
	root.Flags().IntVar(&flags.cycleOffset, "cycle-offset", 0, "")
	root.Flags().IntVar(&flags.productiveOffset, "productive-offset", 0, "")
	_ = root.Flags().MarkHidden("cycle-offset")
	_ = root.Flags().MarkHidden("productive-offset")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags cliFlags) error {
	level := slog.LevelInfo
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := clog.NewLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	ctx = clog.WithLogger(ctx, logger)
	log := clog.FromContext(ctx)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, flags)

	secrets, err := config.LoadSecrets(ctx)
	if err != nil {
		return err
	}
	manifest, err := config.LoadManifest(cfg.MinistriesPath)
	if err != nil {
		return err
	}

	gh := tracker.NewGitHub(ctx, cfg.RepoOwner, cfg.RepoName, secrets.TrackerToken)
	runner := agent.NewRunner(cfg.Agent.Command, cfg.Agent.Args, cfg.Workspace)
	machine := backlog.NewMachine(gh)

	// Analyses, telemetry, and the journal live under output/data; the
	// scout state files sit at the output root.
	dataDir := filepath.Join(cfg.OutputDir, "data")
	results := pipeline.NewResultStore(dataDir)
	writer := telemetry.NewWriter(dataDir)

	db, err := store.NewDB(cfg.TranslationDBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	localizer := &store.Localizer{
		Repo:      store.NewTranslationRepo(db),
		Runner:    runner,
		Model:     cfg.Model,
		Languages: cfg.TranslationLanguages,
	}

	agentTimeout := time.Duration(cfg.AgentTimeoutSec) * time.Second
	orchestrator := pipeline.NewOrchestrator(runner, manifest, cfg.Model, agentTimeout, results)

	journal := conductor.NewJournal(dataDir)
	dispatcher := &dispatch.Dispatcher{
		Tracker:   gh,
		Machine:   machine,
		Pipeline:  orchestrator,
		Editorial: &pipeline.Editorial{Runner: runner, Tracker: gh, Model: cfg.Model},
		Workflow: &prworkflow.Workflow{
			Runner:         runner,
			Tracker:        gh,
			Git:            &prworkflow.Git{Workspace: cfg.Workspace},
			Model:          cfg.Model,
			MaxRounds:      cfg.MaxPRRounds,
			ReviewerPrompt: manifest.RolePrompt("reviewer"),
			CoderPrompt:    manifest.RolePrompt("coder"),
		},
		Debate: debate.NewFilter(runner, gh, machine, cfg.Model, *cfg.DebateThreshold),
		News: &scout.NewsScout{
			Runner:    runner,
			Tracker:   gh,
			Results:   results,
			Feeds:     cfg.NewsFeeds,
			Model:     cfg.Model,
			MaxPerDay: cfg.MaxNewsPerDay,
			StatePath: statePath(cfg, "news_scout_state.json"),
		},
		Research: &scout.ResearchScout{
			Runner:    runner,
			Tracker:   gh,
			Model:     cfg.Model,
			Interval:  time.Duration(cfg.ResearchIntervalHours) * time.Hour,
			StatePath: statePath(cfg, "research_scout_state.json"),
		},
		Director:  director(scout.ProjectDirector, runner, gh, writer, cfg),
		Strategic: director(scout.StrategicDirector, runner, gh, writer, cfg),
		Proposer:  &dispatch.Proposer{Runner: runner, Tracker: gh, Telemetry: writer, Model: cfg.Model},
		Results:   results,
		Telemetry: writer,
		Localizer: localizer,
		Social:    social.NewPoster(secrets.SocialPostingToken),
		DryRun:    flags.dryRun,
	}

	eng := &engine.Engine{
		Conductor: &conductor.Conductor{
			Runner:    runner,
			Tracker:   gh,
			Telemetry: writer,
			Journal:   journal,
			Model:     cfg.Model,
		},
		Dispatcher: dispatcher,
		Journal:    journal,
		Telemetry:  writer,
		Breaker:    telemetry.NewBreaker(writer, gh),
		Restart: &restart.Manager{
			Workspace:      cfg.Workspace,
			OutputDir:      cfg.OutputDir,
			DepSyncCommand: cfg.DepSyncCommand,
		},
		Opts: engine.Options{
			MaxCycles:         flags.maxCycles,
			CycleOffset:       flags.cycleOffset,
			ProductiveOffset:  flags.productiveOffset,
			CooldownSec:       cfg.CooldownSec,
			DirectorInterval:  cfg.DirectorInterval,
			StrategicInterval: cfg.StrategicDirectorInterval,
			DryRun:            flags.dryRun,
			SkipImprove:       flags.skipImprove,
			SkipAnalysis:      flags.skipAnalysis,
			SkipResearch:      flags.skipResearch,
		},
	}

	log.Infof("cabinet engine %s starting (repo %s/%s, model %s)", version, cfg.RepoOwner, cfg.RepoName, cfg.Model)
	return eng.Run(ctx)
}

func applyOverrides(cfg *config.Config, flags cliFlags) {
	if flags.cooldown > 0 {
		cfg.CooldownSec = flags.cooldown
	}
	if flags.model != "" {
		cfg.Model = flags.model
	}
	if flags.maxPRRounds > 0 {
		cfg.MaxPRRounds = flags.maxPRRounds
	}
	if flags.directorInterval > 0 {
		cfg.DirectorInterval = flags.directorInterval
	}
}

func director(kind scout.DirectorKind, runner *agent.Runner, gh tracker.Tracker, writer *telemetry.Writer, cfg *config.Config) *scout.Director {
	return &scout.Director{
		Kind:      kind,
		Runner:    runner,
		Tracker:   gh,
		Telemetry: writer,
		Model:     cfg.Model,
		MaxIssues: cfg.MaxDirectorIssues,
	}
}

func statePath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.OutputDir, name)
}
