// Package orchestrator runs the plan → execute → capture → validate loop
// that drives one session to completion, implemented over a plain
// goroutine per session since this engine performs real side effects on
// every iteration and has no replay requirement.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guideforge/engine/browser"
	"github.com/guideforge/engine/events"
	"github.com/guideforge/engine/executor"
	"github.com/guideforge/engine/markdown"
	"github.com/guideforge/engine/planner"
	"github.com/guideforge/engine/script"
	"github.com/guideforge/engine/session"
	"github.com/guideforge/engine/step"
	"github.com/guideforge/engine/telemetry"
	"github.com/guideforge/engine/workspace"
	"github.com/guideforge/engine/xerrors"
)

// Options tunes the loop's caps and pacing.
type Options struct {
	MaxSteps            int
	MaxRefinesPerStep   int
	IterationPause      time.Duration
	LoopDetectionWindow int
	StepTimeout         time.Duration
	Language            string
}

// DefaultOptions returns the default tuning for the loop.
func DefaultOptions() Options {
	return Options{
		MaxSteps:            30,
		MaxRefinesPerStep:   3,
		IterationPause:      time.Second,
		LoopDetectionWindow: 6,
		StepTimeout:         60 * time.Second,
		Language:            "en",
	}
}

// Orchestrator drives a single session's plan/execute loop.
type Orchestrator struct {
	sessions *session.Manager
	planner  *planner.Planner
	executor *executor.Executor
	driver   browser.Driver
	scripts  script.Registry
	ws       workspace.Workspace
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	opts     Options
}

// New builds an Orchestrator for one session's run. scripts and ws back the
// Markdown Emitter / Script registry persistence that runs on a successful
// completion; scripts may be nil, in which case the rendered script is
// written to the workspace but never registered.
func New(sessions *session.Manager, p *planner.Planner, e *executor.Executor, driver browser.Driver, scripts script.Registry, ws workspace.Workspace, logger telemetry.Logger, metrics telemetry.Metrics, opts Options) *Orchestrator {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if opts.MaxSteps <= 0 {
		opts = DefaultOptions()
	}
	if opts.LoopDetectionWindow <= 0 {
		opts.LoopDetectionWindow = DefaultOptions().LoopDetectionWindow
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	return &Orchestrator{
		sessions: sessions, planner: p, executor: e, driver: driver,
		scripts: scripts, ws: ws, logger: logger, metrics: metrics, opts: opts,
	}
}

// loopState accumulates per-iteration bookkeeping.
type loopState struct {
	steps               []step.Step
	lastPlanningResult  *planner.Result
	previousStepState   *planner.PreviousStepState
	retryCounts         map[string]int
	lastPlannedKey      string
}

// Run drives sessionID through the full loop until it terminates,
// completing the session via the Session Manager exactly once.
func (o *Orchestrator) Run(ctx context.Context, sessionID, goal, successCriteria, startURL string) error {
	if err := o.sessions.Start(sessionID); err != nil {
		return fmt.Errorf("orchestrator: start session: %w", err)
	}
	snap, err := o.sessions.Status(sessionID)
	if err != nil {
		return fmt.Errorf("orchestrator: status after start: %w", err)
	}
	o.emit(ctx, sessionID, events.SessionStarted, events.SessionStartedPayload{Kind: string(snap.Kind)})

	if err := o.driver.Goto(ctx, startURL); err != nil {
		return o.fail(ctx, sessionID, fmt.Sprintf("initial navigation failed: %v", err))
	}

	st := &loopState{retryCounts: make(map[string]int)}

	for i := 0; i < o.opts.MaxSteps; i++ {
		if o.sessions.CancelRequested(sessionID) {
			return o.cancel(ctx, sessionID)
		}

		dom, shot, err := o.captureState(ctx)
		if err != nil {
			return o.fail(ctx, sessionID, fmt.Sprintf("capture page state: %v", err))
		}
		url, _ := o.driver.URL(ctx)

		o.emit(ctx, sessionID, events.StepPlanning, events.StepPlanningPayload{StepIndex: i})

		pctx := planner.Context{
			Goal:              goal,
			SuccessCriteria:   successCriteria,
			CurrentURL:        url,
			CleanedDOM:        dom,
			Screenshot:        shot,
			History:           historyFrom(st.steps, st.lastPlanningResult),
			PreviousReasoning: previousReasoning(st.lastPlanningResult),
			Previous:          st.previousStepState,
		}

		result, err := o.planner.Plan(ctx, pctx)
		if err != nil {
			return o.fail(ctx, sessionID, fmt.Sprintf("planning failed: %v", err))
		}
		st.lastPlanningResult = &result

		o.emit(ctx, sessionID, events.StepPlanned, events.StepPlannedPayload{
			StepIndex:  i,
			Kind:       string(result.Step.Kind),
			Label:      result.Step.Label,
			URL:        result.Step.URL,
			Confidence: result.Confidence,
			Reasoning:  result.Reasoning,
		})

		if stuck, reason := o.detectStuckLoop(st.steps, result.Step); stuck {
			return o.fail(ctx, sessionID, xerrors.NewStuckLoopError(reason).Error())
		}

		key := result.Step.StableKey()
		if key == st.lastPlannedKey {
			st.retryCounts[key]++
			if st.retryCounts[key] > o.opts.MaxRefinesPerStep {
				return o.fail(ctx, sessionID, fmt.Sprintf("exceeded refinement cap for step %q", key))
			}
			o.emit(ctx, sessionID, events.StepRefinementStarted, events.StepRefinementStartedPayload{
				StepIndex: i, StepKey: key, Attempt: st.retryCounts[key],
			})
		} else {
			st.retryCounts[key] = 0
		}
		st.lastPlannedKey = key

		o.emit(ctx, sessionID, events.StepExecuting, events.StepExecutingPayload{
			StepIndex: i, Kind: string(result.Step.Kind), Label: result.Step.Label, URL: result.Step.URL,
		})

		stepCtx := ctx
		var cancelStep context.CancelFunc
		if o.opts.StepTimeout > 0 {
			stepCtx, cancelStep = context.WithTimeout(ctx, o.opts.StepTimeout)
		}
		outcome := o.executor.Execute(stepCtx, result.Step)
		if cancelStep != nil {
			cancelStep()
		}
		o.metrics.RecordTimer("guideforge.step.duration", outcome.Duration, "kind", string(result.Step.Kind))

		if !outcome.Success {
			kind := "other"
			if se, ok := outcome.Err.(*xerrors.StepError); ok {
				kind = string(se.Kind)
			}
			o.emit(ctx, sessionID, events.StepFailed, events.StepFailedPayload{
				StepIndex: i, Kind: string(result.Step.Kind), ErrorKind: kind, Message: errMessage(outcome.Err),
			})
			if key == st.lastPlannedKey && st.retryCounts[key] < o.opts.MaxRefinesPerStep {
				st.steps = append(st.steps, result.Step)
				o.advanceProgress(ctx, sessionID, i)
				o.pause(ctx)
				continue
			}
			return o.fail(ctx, sessionID, fmt.Sprintf("step failed: %v", outcome.Err))
		}

		result.Step.Screenshot = o.captureArtifacts(ctx, sessionID, i, outcome)

		o.emit(ctx, sessionID, events.StepExecuted, events.StepExecutedPayload{
			StepIndex:   i,
			Kind:        string(result.Step.Kind),
			Success:     true,
			DurationMs:  outcome.Duration.Milliseconds(),
			Screenshot:  result.Step.Screenshot,
			DomSnapshot: outcome.DOMSnapshot,
		})

		st.steps = append(st.steps, result.Step)

		postDOM, postShot, err := o.captureState(ctx)
		if err == nil {
			postURL, _ := o.driver.URL(ctx)
			st.previousStepState = &planner.PreviousStepState{
				URL:                postURL,
				CleanedDOM:         postDOM,
				Screenshot:         postShot,
				NavigationOccurred: outcome.UIChange.NavigationOccurred,
			}
		}

		goalComplete := result.GoalValidation != nil && result.GoalValidation.IsComplete
		// Back-compat: a successful AssertPage also ends the session even
		// when the planner hasn't flagged the goal complete.
		if goalComplete || result.Step.Kind == step.AssertPage {
			if !goalComplete {
				o.logger.Debug(ctx, "goal marked complete via assert_page back-compat", "sessionId", sessionID)
			}
			return o.complete(ctx, sessionID, goal, startURL, st.steps)
		}

		o.advanceProgress(ctx, sessionID, i)
		o.pause(ctx)
	}

	return o.fail(ctx, sessionID, fmt.Sprintf("exceeded max steps (%d) without completing goal", o.opts.MaxSteps))
}

func (o *Orchestrator) advanceProgress(ctx context.Context, sessionID string, i int) {
	progress := ((i + 1) * 100) / o.opts.MaxSteps
	if err := o.sessions.UpdateProgress(sessionID, progress, i+1, o.opts.MaxSteps); err != nil {
		o.logger.Warn(ctx, "orchestrator: update progress failed", "sessionId", sessionID, "error", err.Error())
	}
	o.emit(ctx, sessionID, events.GoalProgress, events.GoalProgressPayload{Progress: progress})
}

// captureArtifacts writes outcome's screenshot and DOM snapshot to their
// artifact-store paths for step index, emitting screenshot_captured /
// dom_snapshot_captured for whichever succeed, and returns the
// workspace-relative screenshot path (empty if none was captured or the
// write failed).
func (o *Orchestrator) captureArtifacts(ctx context.Context, sessionID string, index int, outcome executor.Outcome) string {
	var screenshotRel string
	if len(outcome.Screenshot) > 0 {
		if path, err := o.ws.ScreenshotPath(sessionID, index); err != nil {
			o.logger.Warn(ctx, "orchestrator: resolve screenshot path failed", "sessionId", sessionID, "error", err.Error())
		} else if err := writeArtifact(path, outcome.Screenshot); err != nil {
			o.logger.Warn(ctx, "orchestrator: write screenshot failed", "sessionId", sessionID, "error", err.Error())
		} else {
			screenshotRel = relArtifactPath(o.ws.Root, path)
			o.emit(ctx, sessionID, events.ScreenshotCaptured, events.ScreenshotCapturedPayload{StepIndex: index, Path: screenshotRel})
		}
	}
	if outcome.DOMSnapshot != "" {
		if path, err := o.ws.DomSnapshotPath(sessionID, index); err != nil {
			o.logger.Warn(ctx, "orchestrator: resolve dom snapshot path failed", "sessionId", sessionID, "error", err.Error())
		} else if err := writeArtifact(path, []byte(outcome.DOMSnapshot)); err != nil {
			o.logger.Warn(ctx, "orchestrator: write dom snapshot failed", "sessionId", sessionID, "error", err.Error())
		} else {
			o.emit(ctx, sessionID, events.DomSnapshotCaptured, events.DomSnapshotCapturedPayload{StepIndex: index, Path: relArtifactPath(o.ws.Root, path)})
		}
	}
	return screenshotRel
}

func writeArtifact(path string, data []byte) error {
	if err := workspace.EnsureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func relArtifactPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func (o *Orchestrator) pause(ctx context.Context) {
	select {
	case <-time.After(o.opts.IterationPause):
	case <-ctx.Done():
	}
}

func (o *Orchestrator) captureState(ctx context.Context) (string, []byte, error) {
	dom, err := o.driver.DOMSnapshot(ctx)
	if err != nil {
		return "", nil, err
	}
	shot, err := o.driver.Screenshot(ctx)
	if err != nil {
		// A missing screenshot is not fatal; the planner can proceed on DOM alone.
		shot = nil
	}
	return cleanDOM(dom), shot, nil
}

func (o *Orchestrator) emit(ctx context.Context, sessionID string, typ events.Type, payload any) {
	if _, err := o.sessions.Emit(ctx, sessionID, typ, payload); err != nil {
		o.logger.Warn(ctx, "orchestrator: emit failed", "type", typ, "error", err.Error())
	}
}

// complete renders the executed steps to markdown, saves the resulting
// script, and emits the full markdown_generated → script_saving →
// script_saved → completed sequence before performing the session's
// terminal transition, per the Orchestrator Loop's termination contract.
func (o *Orchestrator) complete(ctx context.Context, sessionID, goal, baseURL string, steps []step.Step) error {
	if err := o.sessions.UpdateProgress(sessionID, 100, len(steps), len(steps)); err != nil {
		o.logger.Warn(ctx, "orchestrator: update progress failed", "sessionId", sessionID, "error", err.Error())
	}

	doc, err := markdown.Render(markdown.Source{
		Title:       goal,
		BaseURL:     baseURL,
		Steps:       steps,
		Language:    o.opts.Language,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		return o.fail(ctx, sessionID, fmt.Sprintf("render markdown: %v", err))
	}
	o.emit(ctx, sessionID, events.MarkdownGenerated, events.MarkdownGeneratedPayload{Markdown: doc})

	scriptID := uuid.NewString()
	o.emit(ctx, sessionID, events.ScriptSaving, events.ScriptSavingPayload{ScriptID: scriptID})

	path, err := o.ws.ScriptMarkdownPath(scriptID)
	if err != nil {
		return o.fail(ctx, sessionID, fmt.Sprintf("resolve script path: %v", err))
	}
	if err := writeArtifact(path, []byte(doc)); err != nil {
		return o.fail(ctx, sessionID, fmt.Sprintf("write script markdown: %v", err))
	}

	sc := script.Script{
		ID:       scriptID,
		Title:    goal,
		BaseURL:  baseURL,
		Steps:    steps,
		Language: o.opts.Language,
		Path:     path,
	}
	if o.scripts != nil {
		if err := o.scripts.Put(ctx, sc); err != nil {
			return o.fail(ctx, sessionID, fmt.Sprintf("save script: %v", err))
		}
	}
	o.emit(ctx, sessionID, events.ScriptSaved, events.ScriptSavedPayload{ScriptID: scriptID, Path: path})

	if err := o.sessions.SetScriptID(sessionID, scriptID); err != nil {
		o.logger.Warn(ctx, "orchestrator: set script id failed", "sessionId", sessionID, "error", err.Error())
	}

	o.emit(ctx, sessionID, events.Completed, events.CompletedPayload{ScriptID: scriptID, TotalSteps: len(steps)})

	return o.sessions.Complete(ctx, sessionID, session.StatusCompleted, "")
}

func (o *Orchestrator) fail(ctx context.Context, sessionID, message string) error {
	if err := o.sessions.Complete(ctx, sessionID, session.StatusFailed, message); err != nil {
		return err
	}
	return fmt.Errorf("orchestrator: %s", message)
}

func (o *Orchestrator) cancel(ctx context.Context, sessionID string) error {
	return o.sessions.Complete(ctx, sessionID, session.StatusCancelled, "")
}

// detectStuckLoop examines the last LoopDetectionWindow steps of the
// executed history followed by the just-planned next step: if that window's
// second half matches its first half on (kind, label/url/key), the
// orchestrator stops before executing next. The configured window is rounded down to an even
// number since the check is a first-half/second-half comparison.
func (o *Orchestrator) detectStuckLoop(executed []step.Step, next step.Step) (bool, string) {
	half := o.opts.LoopDetectionWindow / 2
	if half < 1 {
		return false, ""
	}
	candidate := append(append([]step.Step{}, executed...), next)
	if len(candidate) < half*2 {
		return false, ""
	}
	last := candidate[len(candidate)-half*2:]
	firstHalf := make([]string, half)
	secondHalf := make([]string, half)
	for i := 0; i < half; i++ {
		firstHalf[i] = last[i].StableKey()
		secondHalf[i] = last[half+i].StableKey()
	}
	for i := range firstHalf {
		if firstHalf[i] != secondHalf[i] {
			return false, ""
		}
	}
	return true, fmt.Sprintf("repeated step sequence %v", secondHalf)
}

func historyFrom(executed []step.Step, last *planner.Result) []planner.HistoryEntry {
	entries := make([]planner.HistoryEntry, 0, len(executed))
	for _, s := range executed {
		entries = append(entries, planner.HistoryEntry{Step: s, Success: true})
	}
	return entries
}

func previousReasoning(last *planner.Result) string {
	if last == nil {
		return ""
	}
	return last.Reasoning
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// scriptTagPattern and styleTagPattern strip non-semantic content from raw
// HTML before it is sent to the planner, bounding token usage.
var (
	scriptTagPattern = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleTagPattern  = regexp.MustCompile(`(?is)<style.*?</style>`)
	commentPattern   = regexp.MustCompile(`(?s)<!--.*?-->`)
)

func cleanDOM(html string) string {
	cleaned := scriptTagPattern.ReplaceAllString(html, "")
	cleaned = styleTagPattern.ReplaceAllString(cleaned, "")
	cleaned = commentPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
