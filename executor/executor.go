// Package executor resolves a Step's placeholders, drives the Browser
// Driver, waits for network and DOM quiescence, captures artifacts, and
// classifies failures.
package executor

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/guideforge/engine/browser"
	"github.com/guideforge/engine/placeholder"
	"github.com/guideforge/engine/step"
	"github.com/guideforge/engine/xerrors"
)

// UIChange is re-exported from browser for callers that only import executor.
type UIChange = browser.UIChange

// Outcome is everything the orchestrator needs after one step executes.
type Outcome struct {
	Success      bool
	Duration     time.Duration
	Screenshot   []byte
	DOMSnapshot  string
	UIChange     UIChange
	Err          error // classified *xerrors.StepError on failure
}

// Options tunes the waits the executor performs around navigating steps.
type Options struct {
	PageLoadTimeout    time.Duration
	DOMQuiescenceQuiet time.Duration
	DOMQuiescenceCap   time.Duration
	// DropdownSettle is an extra short wait after clicking a labeled
	// element, to let dropdown/combobox overlays finish animating in.
	DropdownSettle time.Duration
}

// DefaultOptions returns the default wait tuning.
func DefaultOptions() Options {
	return Options{
		PageLoadTimeout:    15 * time.Second,
		DOMQuiescenceQuiet: 300 * time.Millisecond,
		DOMQuiescenceCap:   5 * time.Second,
		DropdownSettle:     150 * time.Millisecond,
	}
}

// Executor runs one Step at a time against a Driver.
type Executor struct {
	driver  browser.Driver
	store   *placeholder.Store
	opts    Options
}

// New builds an Executor. store may be nil if the step list carries no
// placeholder tokens and no unresolved labels.
func New(driver browser.Driver, store *placeholder.Store, opts Options) *Executor {
	if opts.PageLoadTimeout == 0 {
		opts = DefaultOptions()
	}
	return &Executor{driver: driver, store: store, opts: opts}
}

// Execute resolves s's placeholders (if any), performs the corresponding
// browser action, waits for the page to settle, and captures artifacts.
func (e *Executor) Execute(ctx context.Context, s step.Step) Outcome {
	start := time.Now()
	resolved, err := e.resolve(ctx, s)
	if err != nil {
		return Outcome{Success: false, Duration: time.Since(start), Err: asStepError(err)}
	}

	preURL, _ := e.driver.URL(ctx)

	if err := e.perform(ctx, resolved); err != nil {
		return Outcome{Success: false, Duration: time.Since(start), Err: asStepError(err)}
	}

	if navigates(resolved) {
		if err := e.driver.WaitNetworkIdle(ctx, e.opts.PageLoadTimeout); err != nil {
			return Outcome{Success: false, Duration: time.Since(start), Err: asStepError(err)}
		}
		if err := e.driver.WaitQuiescence(ctx, e.opts.DOMQuiescenceQuiet, e.opts.DOMQuiescenceCap); err != nil {
			return Outcome{Success: false, Duration: time.Since(start), Err: asStepError(err)}
		}
	}
	if resolved.Kind == step.Click && resolved.Label != "" {
		select {
		case <-time.After(e.opts.DropdownSettle):
		case <-ctx.Done():
			return Outcome{Success: false, Duration: time.Since(start), Err: asStepError(ctx.Err())}
		}
	}

	postURL, err := e.driver.URL(ctx)
	if err != nil {
		postURL = preURL
	}

	change := detectNavigation(resolved, preURL, postURL)

	shot, shotErr := e.driver.Screenshot(ctx)
	if shotErr != nil {
		shot = nil
	}
	dom, domErr := e.driver.DOMSnapshot(ctx)
	if domErr != nil {
		dom = ""
	}

	return Outcome{
		Success:     true,
		Duration:    time.Since(start),
		Screenshot:  shot,
		DOMSnapshot: dom,
		UIChange:    change,
	}
}

// resolve substitutes any placeholder tokens already present on the step's
// Value, and — for a Type step proposed without a value — asks the
// placeholder store to map the step's Label to a secret/variable token
// first.
func (e *Executor) resolve(ctx context.Context, s step.Step) (step.Step, error) {
	if s.Kind != step.Type {
		return s, nil
	}
	if s.Value == "" && s.Label != "" && e.store != nil {
		url, _ := e.driver.URL(ctx)
		token, sensitive, ok, err := e.store.ResolveLabel(ctx, url, s.Label)
		if err != nil {
			return s, err
		}
		if ok {
			s.Value = token
			s.Sensitive = sensitive
		}
	}
	if s.Value != "" && e.store != nil && containsPlaceholderToken(s.Value) {
		resolved, err := e.store.ResolveValue(s.Value)
		if err != nil {
			return s, err
		}
		s.Value = resolved
	}
	return s, nil
}

var placeholderTokenPattern = regexp.MustCompile(`\{\{(secret|var)\.[A-Za-z0-9_]+\}\}`)

func containsPlaceholderToken(v string) bool {
	return placeholderTokenPattern.MatchString(v)
}

func (e *Executor) perform(ctx context.Context, s step.Step) error {
	switch s.Kind {
	case step.Goto:
		return e.driver.Goto(ctx, s.URL)
	case step.Click:
		el, err := e.driver.LocateByLabel(ctx, s.Label)
		if err != nil {
			return xerrors.NewStepError(xerrors.NotFound, "locate click target", err)
		}
		if err := e.driver.Click(ctx, el); err != nil {
			return xerrors.NewStepError(xerrors.Other, "click", err)
		}
		return nil
	case step.Type:
		el, err := e.driver.LocateByLabel(ctx, s.Label)
		if err != nil {
			return xerrors.NewStepError(xerrors.NotFound, "locate type target", err)
		}
		if err := e.driver.Type(ctx, el, s.Value); err != nil {
			return xerrors.NewStepError(xerrors.TypeMismatch, "type", err)
		}
		return nil
	case step.AssertPage:
		url, err := e.driver.URL(ctx)
		if err != nil {
			return xerrors.NewStepError(xerrors.Other, "read current url", err)
		}
		if !strings.EqualFold(url, s.URL) {
			return xerrors.NewStepError(xerrors.NavigationFail, "page does not match expected url", nil)
		}
		return nil
	case step.Keypress:
		if err := e.driver.PressKey(ctx, s.Key); err != nil {
			return xerrors.NewStepError(xerrors.Other, "press key", err)
		}
		return nil
	case step.TTSStart, step.TTSWait:
		// Narration markers perform no browser action.
		return nil
	default:
		return xerrors.NewStepError(xerrors.Other, "unknown step kind", nil)
	}
}

func navigates(s step.Step) bool {
	return s.Kind == step.Goto || s.Kind == step.Click
}

// navigationHeuristicLabels are labels whose click commonly triggers
// navigation even when the driver can't yet observe a URL change.
var navigationHeuristicLabels = []string{"login", "submit", "continue", "next", "save", "create"}

func detectNavigation(s step.Step, preURL, postURL string) UIChange {
	change := UIChange{}
	switch {
	case s.Kind == step.Goto:
		change.NavigationOccurred = true
		change.NewURL = postURL
	case preURL != postURL && postURL != "":
		change.NavigationOccurred = true
		change.NewURL = postURL
	case s.Kind == step.Click:
		lower := strings.ToLower(s.Label)
		for _, l := range navigationHeuristicLabels {
			if strings.Contains(lower, l) {
				change.NavigationOccurred = true
				change.NewURL = postURL
				break
			}
		}
		if !change.NavigationOccurred && hasQueryOrHash(postURL) && postURL != preURL {
			change.NavigationOccurred = true
			change.NewURL = postURL
		}
	}
	return change
}

func hasQueryOrHash(url string) bool {
	return strings.ContainsAny(url, "?#")
}

func asStepError(err error) error {
	if err == nil {
		return nil
	}
	var se *xerrors.StepError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return xerrors.NewStepError(xerrors.Timeout, "deadline exceeded", err)
	}
	return xerrors.NewStepError(xerrors.Other, "execution failed", err)
}
