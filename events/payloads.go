package events

// SessionStartedPayload accompanies SessionStarted.
type SessionStartedPayload struct {
	Kind string `json:"kind"`
}

// TerminalPayload accompanies SessionCompleted/SessionFailed/SessionCancelled.
type TerminalPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// StepPlanningPayload accompanies StepPlanning, emitted before the planner
// is invoked for a given iteration.
type StepPlanningPayload struct {
	StepIndex int `json:"stepIndex"`
}

// StepRefinementStartedPayload accompanies StepRefinementStarted, emitted
// when the planner repeats its previous proposal and the orchestrator is
// about to retry it.
type StepRefinementStartedPayload struct {
	StepIndex int    `json:"stepIndex"`
	StepKey   string `json:"stepKey"`
	Attempt   int    `json:"attempt"`
}

// StepExecutingPayload accompanies StepExecuting, emitted just before the
// executor runs a planned step.
type StepExecutingPayload struct {
	StepIndex int    `json:"stepIndex"`
	Kind      string `json:"kind"`
	Label     string `json:"label,omitempty"`
	URL       string `json:"url,omitempty"`
}

// StepPlannedPayload accompanies StepPlanned.
type StepPlannedPayload struct {
	StepIndex  int    `json:"stepIndex"`
	Kind       string `json:"kind"`
	Label      string `json:"label,omitempty"`
	URL        string `json:"url,omitempty"`
	Confidence float64 `json:"confidence"`
	Reasoning  string `json:"reasoning,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
}

// StepExecutedPayload accompanies StepExecuted.
type StepExecutedPayload struct {
	StepIndex  int    `json:"stepIndex"`
	Kind       string `json:"kind"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"durationMs"`
	Screenshot string `json:"screenshot,omitempty"`
	DomSnapshot string `json:"domSnapshot,omitempty"`
}

// StepFailedPayload accompanies StepFailed.
type StepFailedPayload struct {
	StepIndex int    `json:"stepIndex"`
	Kind      string `json:"kind"`
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

// GoalProgressPayload accompanies GoalProgress.
type GoalProgressPayload struct {
	Progress int `json:"progress"` // 0-100
}

// MarkdownGeneratedPayload accompanies MarkdownGenerated.
type MarkdownGeneratedPayload struct {
	Markdown string `json:"markdown"`
}

// ScriptSavedPayload accompanies ScriptSaved.
type ScriptSavedPayload struct {
	ScriptID string `json:"scriptId"`
	Path     string `json:"path"`
}

// ScriptSavingPayload accompanies ScriptSaving, emitted once the markdown
// has been rendered and is about to be written to the script registry.
type ScriptSavingPayload struct {
	ScriptID string `json:"scriptId"`
}

// CompletedPayload accompanies Completed, the informational event that
// precedes the terminal session_completed event on a successful run.
type CompletedPayload struct {
	ScriptID   string `json:"scriptId"`
	TotalSteps int    `json:"totalSteps"`
}

// ScreenshotCapturedPayload accompanies ScreenshotCaptured.
type ScreenshotCapturedPayload struct {
	StepIndex int    `json:"stepIndex"`
	Path      string `json:"path"`
}

// DomSnapshotCapturedPayload accompanies DomSnapshotCaptured.
type DomSnapshotCapturedPayload struct {
	StepIndex int    `json:"stepIndex"`
	Path      string `json:"path"`
}
