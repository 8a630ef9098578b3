// Package api is the Public API Facade: the single entry
// point embedding callers (CLI, worker child process, or a future
// transport) use to start a Run or Generate session, subscribe to its
// events, query status, and request cancellation. StartRun/StartGenerate
// are always async, since sessions are long-running browser automations;
// Subscribe/Status/Cancel complete the surface.
package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/guideforge/engine/browser"
	"github.com/guideforge/engine/config"
	"github.com/guideforge/engine/eventlog"
	"github.com/guideforge/engine/events"
	"github.com/guideforge/engine/executor"
	"github.com/guideforge/engine/model"
	"github.com/guideforge/engine/orchestrator"
	"github.com/guideforge/engine/placeholder"
	"github.com/guideforge/engine/planner"
	"github.com/guideforge/engine/planner/imageprep"
	"github.com/guideforge/engine/script"
	"github.com/guideforge/engine/session"
	"github.com/guideforge/engine/telemetry"
	"github.com/guideforge/engine/workspace"
)

// DriverFactory opens a fresh browser.Driver for one session. Callers
// inject this so the facade stays agnostic of rodriver vs. a test fake.
type DriverFactory func(ctx context.Context) (browser.Driver, error)

// RunRequest starts replay of an existing script.
type RunRequest struct {
	AccountID string
	ScriptID  string
	BaseURL   string // overrides the script's own baseUrl when non-empty

	// SessionID, when non-empty, is used instead of a freshly generated
	// one. The Worker Supervisor preallocates an id before spawning a
	// detached child process so the parent can hand it back to its own
	// caller immediately.
	SessionID string
}

// GenerateRequest starts an LLM-guided exploration session that produces a
// new script.
type GenerateRequest struct {
	AccountID       string
	Goal            string
	SuccessCriteria string
	StartURL        string
	Secrets         map[string]string
	Vars            map[string]string

	// SessionID, when non-empty, is used instead of a freshly generated
	// one (see RunRequest.SessionID).
	SessionID string
}

// Facade wires together the Session Manager, Script Registry, and
// Orchestrator into the single surface embedding callers use.
type Facade struct {
	sessions  *session.Manager
	scripts   script.Registry
	workspace workspace.Workspace
	model     model.Client
	drivers   DriverFactory
	cfg       *config.Config
	logger    telemetry.Logger
	metrics   telemetry.Metrics
}

// New builds a Facade.
func New(sessions *session.Manager, scripts script.Registry, ws workspace.Workspace, modelClient model.Client, drivers DriverFactory, cfg *config.Config, logger telemetry.Logger, metrics telemetry.Metrics) *Facade {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Facade{
		sessions: sessions, scripts: scripts, workspace: ws,
		model: modelClient, drivers: drivers, cfg: cfg, logger: logger, metrics: metrics,
	}
}

// StartRun creates a session, loads the requested script, and launches its
// orchestrator loop in its own goroutine, returning immediately with the
// session id.
func (f *Facade) StartRun(ctx context.Context, req RunRequest) (string, error) {
	sc, ok, err := f.scripts.Get(ctx, req.ScriptID)
	if err != nil {
		return "", fmt.Errorf("api: load script: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("api: script %q not found", req.ScriptID)
	}

	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = sc.BaseURL
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	driver, err := f.drivers(ctx)
	if err != nil {
		return "", fmt.Errorf("api: open browser driver: %w", err)
	}

	if _, err := f.sessions.Create(sessionID, session.KindRun, func(cleanupCtx context.Context, _ session.Snapshot) {
		_ = driver.Close()
	}); err != nil {
		_ = driver.Close()
		return "", fmt.Errorf("api: create session: %w", err)
	}
	if err := f.mirrorToEventLog(sessionID); err != nil {
		f.logger.Warn(ctx, "api: event log mirror failed to start", "sessionId", sessionID, "error", err.Error())
	}

	store := placeholder.NewStore(nil, nil, nil, nil)
	exec := executor.New(driver, store, f.executorOptions())
	p := planner.New(f.model, f.logger, f.plannerOptions())
	orch := orchestrator.New(f.sessions, p, exec, driver, f.scripts, f.workspace, f.logger, f.metrics, f.orchestratorOptions())

	goal := fmt.Sprintf("Replay the script %q", sc.Title)
	go func() {
		if err := orch.Run(context.Background(), sessionID, goal, "", baseURL); err != nil {
			f.logger.Warn(context.Background(), "api: run session ended with error", "sessionId", sessionID, "error", err.Error())
		}
	}()

	return sessionID, nil
}

// StartGenerate creates a session and launches LLM-guided exploration
// toward req.Goal, producing a new script on success.
func (f *Facade) StartGenerate(ctx context.Context, req GenerateRequest) (string, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	driver, err := f.drivers(ctx)
	if err != nil {
		return "", fmt.Errorf("api: open browser driver: %w", err)
	}

	if _, err := f.sessions.Create(sessionID, session.KindGenerate, func(_ context.Context, _ session.Snapshot) {
		_ = driver.Close()
	}); err != nil {
		_ = driver.Close()
		return "", fmt.Errorf("api: create session: %w", err)
	}
	if err := f.mirrorToEventLog(sessionID); err != nil {
		f.logger.Warn(ctx, "api: event log mirror failed to start", "sessionId", sessionID, "error", err.Error())
	}

	store := placeholder.NewStore(nil, nil, req.Secrets, req.Vars)
	exec := executor.New(driver, store, f.executorOptions())
	p := planner.New(f.model, f.logger, f.plannerOptions())
	orch := orchestrator.New(f.sessions, p, exec, driver, f.scripts, f.workspace, f.logger, f.metrics, f.orchestratorOptions())

	go func() {
		if err := orch.Run(context.Background(), sessionID, req.Goal, req.SuccessCriteria, req.StartURL); err != nil {
			f.logger.Warn(context.Background(), "api: generate session ended with error", "sessionId", sessionID, "error", err.Error())
		}
	}()

	return sessionID, nil
}

// Subscribe streams sessionID's events, starting from the Session
// Manager's live bus. If the session is unknown to this process (e.g. a
// worker child process handled it), callers fall back to the Event Log
// Mirror themselves.
func (f *Facade) Subscribe(sessionID string) (<-chan events.Event, func(), bool) {
	return f.sessions.Subscribe(sessionID)
}

// Status returns a point-in-time snapshot of sessionID.
func (f *Facade) Status(sessionID string) (session.Snapshot, error) {
	return f.sessions.Status(sessionID)
}

// Cancel requests cooperative cancellation of sessionID.
func (f *Facade) Cancel(sessionID string) error {
	return f.sessions.Cancel(sessionID)
}

// mirrorToEventLog starts a background copy of sessionID's bus events onto
// its NDJSON event log file, so a late or cross-process subscriber can
// always fall back to the Event Log Mirror.
func (f *Facade) mirrorToEventLog(sessionID string) error {
	path, err := f.workspace.EventLogPath(sessionID)
	if err != nil {
		return fmt.Errorf("api: event log path: %w", err)
	}
	ch, cancel, ok := f.sessions.Subscribe(sessionID)
	if !ok {
		return fmt.Errorf("api: subscribe for event log mirror: %w", session.ErrNotFound)
	}
	return eventlog.MirrorBus(context.Background(), ch, cancel, path)
}

func (f *Facade) executorOptions() executor.Options {
	if f.cfg == nil {
		return executor.DefaultOptions()
	}
	return executor.Options{
		PageLoadTimeout:    f.cfg.PageLoadTimeout,
		DOMQuiescenceQuiet: f.cfg.DOMQuiescenceQuiet,
		DOMQuiescenceCap:   f.cfg.DOMQuiescenceCap,
		DropdownSettle:     executor.DefaultOptions().DropdownSettle,
	}
}

func (f *Facade) orchestratorOptions() orchestrator.Options {
	if f.cfg == nil {
		return orchestrator.DefaultOptions()
	}
	return orchestrator.Options{
		MaxSteps:            f.cfg.MaxStepsPerSession,
		MaxRefinesPerStep:   f.cfg.MaxRefinesPerStep,
		IterationPause:      f.cfg.IterationPause,
		LoopDetectionWindow: f.cfg.LoopDetectionWindow,
		StepTimeout:         f.cfg.DefaultStepTimeout,
		Language:            f.cfg.Language,
	}
}

func (f *Facade) plannerOptions() planner.Options {
	if f.cfg == nil {
		return planner.Options{}
	}
	return planner.Options{
		ImageOptions: imageprep.Options{
			MaxWidth:  f.cfg.ImageMaxWidth,
			MaxHeight: f.cfg.ImageMaxHeight,
			Quality:   f.cfg.ImageQuality,
		},
	}
}
