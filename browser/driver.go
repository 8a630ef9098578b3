// Package browser defines the Browser Driver Adapter contract. Concrete adapters live in
// browser/rodriver (go-rod, production) and browser/nullriver (in-memory
// fake, tests).
package browser

import (
	"context"
	"time"
)

// Element is an opaque handle to a located page element, returned by
// LocateByLabel and consumed by Type/Click. Its concrete type is owned by
// the Driver implementation.
type Element any

// UIChange records what a step's execution visibly did to the page.
type UIChange struct {
	NavigationOccurred  bool
	NewURL              string
	ElementsAppeared    int
	ElementsDisappeared int
}

// Driver abstracts a headless/headful browser session. A Driver is owned by
// exactly one session.
type Driver interface {
	// Goto navigates to url. Callers read the resulting page URL via URL.
	Goto(ctx context.Context, url string) error

	// LocateByLabel finds the first interactive element associated with a
	// human-visible label (an input's own label, aria-label, placeholder,
	// or nearby text), matching the planner's natural-language label
	// field.
	LocateByLabel(ctx context.Context, label string) (Element, error)

	// Type enters text into el, replacing any existing content.
	Type(ctx context.Context, el Element, text string) error

	// Click clicks el.
	Click(ctx context.Context, el Element) error

	// PressKey sends a single named key (e.g. "Escape", "Enter") to the
	// currently focused element or the page.
	PressKey(ctx context.Context, key string) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// DOMSnapshot returns the current page's outer HTML.
	DOMSnapshot(ctx context.Context) (string, error)

	// WaitQuiescence blocks until no DOM mutations have occurred for quiet,
	// or until cap elapses, whichever comes first.
	WaitQuiescence(ctx context.Context, quiet, cap time.Duration) error

	// WaitNetworkIdle blocks until no network requests are in flight, or
	// timeout elapses.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error

	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)

	// Close releases the underlying browser/page resources.
	Close() error
}
