// Package nullriver is an in-memory fake of browser.Driver for tests: it
// tracks a simulated current URL and a small set of labeled fields without
// launching any real browser process.
package nullriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guideforge/engine/browser"
)

type fakeElement struct {
	label string
}

// Driver is a scriptable fake satisfying browser.Driver, suitable for
// orchestrator and executor tests that must not depend on a real browser.
type Driver struct {
	mu sync.Mutex

	url       string
	fields    map[string]string // label -> current value
	clicks    []string
	keys      []string
	knownLabels map[string]bool

	// NavigateOnClickLabel, when set, makes a Click on that label simulate
	// navigation to NavigateTo, letting tests exercise navigation
	// detection without a real page.
	NavigateOnClickLabel string
	NavigateTo           string
}

// New builds a Driver starting at startURL, with knownLabels as the set of
// labels LocateByLabel will successfully resolve.
func New(startURL string, knownLabels ...string) *Driver {
	known := make(map[string]bool, len(knownLabels))
	for _, l := range knownLabels {
		known[l] = true
	}
	return &Driver{
		url:         startURL,
		fields:      make(map[string]string),
		knownLabels: known,
	}
}

func (d *Driver) Goto(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
	return nil
}

func (d *Driver) LocateByLabel(_ context.Context, label string) (browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.knownLabels[label] {
		return nil, fmt.Errorf("nullriver: no element found for label %q", label)
	}
	return fakeElement{label: label}, nil
}

func (d *Driver) Type(_ context.Context, handle browser.Element, text string) error {
	el, ok := handle.(fakeElement)
	if !ok {
		return fmt.Errorf("nullriver: invalid element handle")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields[el.label] = text
	return nil
}

func (d *Driver) Click(_ context.Context, handle browser.Element) error {
	el, ok := handle.(fakeElement)
	if !ok {
		return fmt.Errorf("nullriver: invalid element handle")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicks = append(d.clicks, el.label)
	if d.NavigateOnClickLabel != "" && el.label == d.NavigateOnClickLabel {
		d.url = d.NavigateTo
	}
	return nil
}

func (d *Driver) PressKey(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, key)
	return nil
}

func (d *Driver) Screenshot(context.Context) ([]byte, error) {
	return []byte("fake-png"), nil
}

func (d *Driver) DOMSnapshot(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("<html><body>url=%s</body></html>", d.url), nil
}

func (d *Driver) WaitQuiescence(context.Context, time.Duration, time.Duration) error { return nil }

func (d *Driver) WaitNetworkIdle(context.Context, time.Duration) error { return nil }

func (d *Driver) URL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Driver) Close() error { return nil }

// Clicks returns the labels clicked so far, for test assertions.
func (d *Driver) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.clicks))
	copy(out, d.clicks)
	return out
}

// FieldValue returns the last value Typed into label, for test assertions.
func (d *Driver) FieldValue(label string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fields[label]
}

// AllowLabel adds label to the set LocateByLabel will resolve.
func (d *Driver) AllowLabel(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.knownLabels[label] = true
}
