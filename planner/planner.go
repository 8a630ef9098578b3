// Package planner decides the next Step given a goal, the current page
// state, and the step history so far. It wraps an LLM client (model.Client)
// and handles prompt construction, JSON recovery from the model's reply, and
// schema validation.
package planner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/guideforge/engine/jsonrecover"
	"github.com/guideforge/engine/model"
	"github.com/guideforge/engine/planner/imageprep"
	"github.com/guideforge/engine/planner/schema"
	"github.com/guideforge/engine/step"
	"github.com/guideforge/engine/telemetry"
	"github.com/guideforge/engine/xerrors"
)

// PreviousStepState carries what the last iteration observed, for the
// planner's validation of its own prior step.
type PreviousStepState struct {
	URL                string
	CleanedDOM         string
	Screenshot         []byte
	NavigationOccurred bool
}

// HistoryEntry summarizes one previously executed step for the prompt.
type HistoryEntry struct {
	Step      step.Step
	Success   bool
	Reasoning string
}

// Context bundles everything the planner needs to propose the next step.
type Context struct {
	Goal                string
	SuccessCriteria     string
	CurrentURL          string
	CleanedDOM          string
	Screenshot          []byte // raw bytes, any supported encoding; may be nil
	History             []HistoryEntry
	PreviousReasoning   string
	Previous            *PreviousStepState
}

// StepValidation reports whether the previous step appeared to succeed, per
// the planner's own judgment.
type StepValidation struct {
	Success   bool
	Reasoning string
}

// GoalValidation reports whether the planner believes the goal is now met.
type GoalValidation struct {
	IsComplete bool
	Reasoning  string
}

// Result is the planner's decision for one iteration.
type Result struct {
	Step            step.Step
	Confidence      float64
	MatchesGoal     bool
	Reasoning       string
	StepValidation  *StepValidation
	GoalValidation  *GoalValidation
}

// rawResponse mirrors the JSON shape the model is asked to produce, decoded
// after JSON recovery and schema validation succeed.
type rawResponse struct {
	Step       step.Step `json:"step"`
	Confidence float64   `json:"confidence"`
	MatchesGoal bool     `json:"matchesGoal"`
	Reasoning  string    `json:"reasoning"`

	StepValidation *struct {
		Success   bool   `json:"success"`
		Reasoning string `json:"reasoning"`
	} `json:"stepValidation,omitempty"`

	GoalValidation *struct {
		IsComplete bool   `json:"isComplete"`
		Reasoning  string `json:"reasoning"`
	} `json:"goalValidation,omitempty"`
}

// Planner proposes the next Step given a Context.
type Planner struct {
	client  model.Client
	logger  telemetry.Logger
	image   imageprep.Options
	maxTries int
}

// Options configures a Planner.
type Options struct {
	ImageOptions imageprep.Options
	// MaxTries bounds the retry-with-tightened-prompt loop on a recovery or
	// schema failure. Zero defaults to 2.
	MaxTries int
}

// New builds a Planner backed by client.
func New(client model.Client, logger telemetry.Logger, opts Options) *Planner {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if opts.MaxTries <= 0 {
		opts.MaxTries = 2
	}
	img := opts.ImageOptions
	if img.MaxWidth == 0 && img.MaxHeight == 0 {
		img = imageprep.DefaultOptions()
	}
	return &Planner{client: client, logger: logger, image: img, maxTries: opts.MaxTries}
}

// Plan asks the LLM for the next step. On a recovery or schema-validation
// failure it retries up to MaxTries with a tightened prompt; after the final
// attempt fails it returns a low-confidence fallback step and a
// *xerrors.PlanningError.
func (p *Planner) Plan(ctx context.Context, pctx Context) (Result, error) {
	var lastErr error
	for attempt := 0; attempt < p.maxTries; attempt++ {
		tighten := attempt > 0
		result, err := p.attempt(ctx, pctx, tighten)
		if err == nil {
			return result, nil
		}
		lastErr = err
		p.logger.Warn(ctx, "planner attempt failed", "attempt", attempt, "error", err.Error())
	}
	return fallbackResult(), xerrors.NewPlanningError("planner exhausted retries", lastErr)
}

func (p *Planner) attempt(ctx context.Context, pctx Context, tighten bool) (Result, error) {
	req, err := p.buildRequest(pctx, tighten)
	if err != nil {
		return Result{}, fmt.Errorf("planner: build request: %w", err)
	}

	resp, err := p.client.Execute(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("planner: model execute: %w", err)
	}

	balanced, ok := jsonrecover.ExtractBalancedObject(resp.Text)
	if !ok {
		return Result{}, fmt.Errorf("planner: no balanced JSON object in response")
	}
	cleaned := jsonrecover.CleanTrailingCommas(balanced)

	if err := schema.ValidatePlanningResponse([]byte(cleaned)); err != nil {
		return Result{}, fmt.Errorf("planner: schema validation: %w", err)
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Result{}, fmt.Errorf("planner: decode response: %w", err)
	}
	if err := raw.Step.Validate(); err != nil {
		return Result{}, fmt.Errorf("planner: invalid step: %w", err)
	}

	result := Result{
		Step:        raw.Step,
		Confidence:  raw.Confidence,
		MatchesGoal: raw.MatchesGoal,
		Reasoning:   raw.Reasoning,
	}
	if raw.StepValidation != nil {
		result.StepValidation = &StepValidation{Success: raw.StepValidation.Success, Reasoning: raw.StepValidation.Reasoning}
	}
	if raw.GoalValidation != nil {
		result.GoalValidation = &GoalValidation{IsComplete: raw.GoalValidation.IsComplete, Reasoning: raw.GoalValidation.Reasoning}
	}
	return result, nil
}

func fallbackResult() Result {
	return Result{
		Step:       step.Step{Kind: step.Keypress, Key: "Escape"},
		Confidence: 0,
		Reasoning:  "fallback step after planning failure",
	}
}

func (p *Planner) buildRequest(pctx Context, tighten bool) (model.Request, error) {
	req := model.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(pctx, tighten),
	}
	if len(pctx.Screenshot) > 0 {
		prepared, mediaType, err := imageprep.Prepare(pctx.Screenshot, p.image)
		if err != nil {
			return model.Request{}, err
		}
		req.ImageBase64 = base64.StdEncoding.EncodeToString(prepared)
		req.ImageMediaType = mediaType
	}
	return req, nil
}

const systemPrompt = `You are a browser automation planner. Given a goal, the current page state, ` +
	`and the step history so far, respond with exactly one JSON object describing the next step. ` +
	`Never propose a "type" step for a picker, combobox, or select-like field: use click-to-open, ` +
	`click-option, and keypress "Escape" sequences instead. ` +
	`Respond with JSON only, no prose, no markdown fences.`

func buildUserPrompt(pctx Context, tighten bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", pctx.Goal)
	if pctx.SuccessCriteria != "" {
		fmt.Fprintf(&b, "Success criteria: %s\n", pctx.SuccessCriteria)
	}
	fmt.Fprintf(&b, "Current URL: %s\n", pctx.CurrentURL)
	if pctx.PreviousReasoning != "" {
		fmt.Fprintf(&b, "Previous reasoning: %s\n", pctx.PreviousReasoning)
	}
	if len(pctx.History) > 0 {
		b.WriteString("Step history:\n")
		for i, h := range pctx.History {
			fmt.Fprintf(&b, "  %d. %s (success=%v) %s\n", i+1, h.Step.StableKey(), h.Success, h.Reasoning)
		}
	}
	fmt.Fprintf(&b, "Cleaned DOM:\n%s\n", boundedDOM(pctx.CleanedDOM))
	if tighten {
		b.WriteString("\nYour previous reply failed to parse as valid JSON matching the required schema. " +
			"Return exactly one well-formed JSON object with no trailing commas and no text outside the braces.\n")
	}
	return b.String()
}

const maxDOMChars = 20000

func boundedDOM(dom string) string {
	if len(dom) <= maxDOMChars {
		return dom
	}
	return dom[:maxDOMChars]
}
