// Package engine runs the outer cycle loop: plan, dispatch, record,
// cool down, and restart after a merged self-change.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/anthropics/cabinet-engine/internal/conductor"
	"github.com/anthropics/cabinet-engine/internal/dispatch"
	"github.com/anthropics/cabinet-engine/internal/domain"
	"github.com/anthropics/cabinet-engine/internal/restart"
	"github.com/anthropics/cabinet-engine/internal/telemetry"
)

// rateLimitedCooldownSec is the long cooldown applied when a cycle hit
// rate limits and produced nothing.
const rateLimitedCooldownSec = 300

// Options are the runtime knobs of the cycle loop.
type Options struct {
	MaxCycles         int
	CycleOffset       int
	ProductiveOffset  int
	CooldownSec       int
	DirectorInterval  int
	StrategicInterval int
	DryRun            bool
	SkipImprove       bool
	SkipAnalysis      bool
	SkipResearch      bool
}

// Engine owns the cycle loop. Every cycle writes exactly one telemetry
// line, even when it crashes.
type Engine struct {
	Conductor  *conductor.Conductor
	Dispatcher *dispatch.Dispatcher
	Journal    *conductor.Journal
	Telemetry  *telemetry.Writer
	Breaker    *telemetry.Breaker
	Restart    *restart.Manager
	Opts       Options

	productive int
}

// Run executes cycles until the context is canceled, the cycle budget is
// exhausted, or a plan demands a halt. The in-flight telemetry line is
// always finished before returning.
func (e *Engine) Run(ctx context.Context) error {
	log := clog.FromContext(ctx)
	e.productive = e.Opts.ProductiveOffset

	for i := 0; ; i++ {
		if e.Opts.MaxCycles > 0 && i >= e.Opts.MaxCycles {
			log.Infof("cycle budget of %d reached", e.Opts.MaxCycles)
			return nil
		}
		if ctx.Err() != nil {
			log.Infof("shutdown requested")
			return nil
		}

		cycle := e.Opts.CycleOffset + i + 1
		rec, halt, suggested, crashErr := e.runCycle(ctx, cycle)

		if err := e.Telemetry.AppendCycle(rec); err != nil {
			log.Errorf("append cycle %d telemetry: %v", cycle, err)
		}
		if crashErr != nil {
			// The partial record is written; the crash still fails the run.
			return crashErr
		}
		if rec.Productive {
			e.productive++
		}

		if err := e.Breaker.Check(ctx); err != nil {
			log.Warnf("breaker check: %v", err)
		}

		if halt {
			log.Infof("halting on conductor request")
			return nil
		}
		if rec.YieldKind == domain.YieldPRMerged && !e.Opts.DryRun {
			// Restart returns only when it aborted.
			if err := e.Restart.Restart(ctx, cycle, e.productive); err != nil {
				log.Warnf("restart aborted, continuing on old binary: %v", err)
			}
		}

		if err := e.coolDown(ctx, rec, suggested); err != nil {
			return nil
		}
	}
}

// runCycle plans and dispatches one cycle under a crash guard. A panic
// yields a partial telemetry record and a non-nil error.
func (e *Engine) runCycle(ctx context.Context, cycle int) (rec domain.CycleTelemetry, halt bool, suggested int, err error) {
	log := clog.FromContext(ctx)
	rec = domain.CycleTelemetry{
		CycleNumber: cycle,
		StartedAt:   time.Now().UTC(),
		YieldKind:   domain.YieldNone,
		DryRun:      e.Opts.DryRun,
	}
	defer func() {
		if r := recover(); r != nil {
			rec.EndedAt = time.Now().UTC()
			rec.Errors = append(rec.Errors, fmt.Sprintf("panic: %v", r))
			err = fmt.Errorf("%w: cycle %d panicked: %v", domain.ErrEngineCrash, cycle, r)
			if werr := e.Telemetry.AppendError(domain.StructuredError{
				Timestamp:   time.Now().UTC(),
				CycleNumber: cycle,
				Phase:       "cycle",
				Kind:        domain.KindEngineCrash,
				Message:     fmt.Sprintf("%v\n%s", r, debug.Stack()),
			}); werr != nil {
				log.Errorf("append crash record: %v", werr)
			}
		}
	}()

	log.Infof("cycle %d starting (productive so far: %d)", cycle, e.productive)

	plan, fallback, planErr := e.Conductor.Plan(ctx, cycle, e.gates())
	if planErr != nil {
		rec.EndedAt = time.Now().UTC()
		rec.Errors = append(rec.Errors, planErr.Error())
		return rec, false, 0, nil
	}
	rec.ConductorReasoning = plan.Reasoning
	rec.ConductorFallback = fallback
	for _, a := range plan.Actions {
		rec.ConductorActions = append(rec.ConductorActions, string(a.Name))
	}

	out := e.Dispatcher.Execute(ctx, cycle, plan)
	rec.Phases = out.Phases
	rec.YieldKind = out.Yield
	rec.Productive = out.Yield != domain.YieldNone
	for _, phase := range out.Phases {
		if phase.Error != nil {
			rec.Errors = append(rec.Errors, phase.Error.Message)
		}
	}
	rec.EndedAt = time.Now().UTC()

	if err := e.Journal.Append(domain.JournalEntry{
		CycleNumber: cycle,
		Timestamp:   rec.EndedAt,
		Reasoning:   plan.Reasoning,
		Actions:     rec.ConductorActions,
		Notes:       plan.NotesForNextCycle,
		Fallback:    fallback,
	}); err != nil {
		log.Warnf("append journal: %v", err)
	}

	return rec, out.Halt, plan.SuggestedCooldownSec, nil
}

// gates computes the rate predicates for the planner. Skip flags close
// their gates outright.
func (e *Engine) gates() conductor.Gates {
	now := time.Now().UTC()
	g := conductor.Gates{
		AnalysisDisabled: e.Opts.SkipAnalysis,
		ImproveDisabled:  e.Opts.SkipImprove,
	}
	if !e.Opts.SkipAnalysis {
		g.NewsAllowed = e.Dispatcher.News.ShouldRun(now)
	}
	if !e.Opts.SkipResearch {
		g.ResearchDue = e.Dispatcher.Research.ShouldRun(now)
	}
	if !e.Opts.SkipImprove && e.productive > 0 {
		g.DirectorDue = e.Opts.DirectorInterval > 0 && e.productive%e.Opts.DirectorInterval == 0
		g.StrategicDue = e.Opts.StrategicInterval > 0 && e.productive%e.Opts.StrategicInterval == 0
	}
	return g
}

// coolDown sleeps between cycles. Rate-limited unproductive cycles get
// the long cooldown; otherwise the plan's suggestion wins over the
// configured default. Returns the context error on cancellation.
func (e *Engine) coolDown(ctx context.Context, rec domain.CycleTelemetry, suggested int) error {
	seconds := e.Opts.CooldownSec
	if suggested > 0 {
		seconds = suggested
	}
	if rateLimitedIdle(rec) {
		seconds = rateLimitedCooldownSec
	}
	clog.FromContext(ctx).Debugf("cooling down %ds", seconds)

	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rateLimitedIdle reports whether the cycle hit rate limits and produced
// nothing.
func rateLimitedIdle(rec domain.CycleTelemetry) bool {
	if rec.YieldKind != domain.YieldNone {
		return false
	}
	for _, phase := range rec.Phases {
		if phase.Error != nil && phase.Error.Kind == domain.KindRateLimited {
			return true
		}
	}
	return false
}
