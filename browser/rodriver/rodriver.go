// Package rodriver implements browser.Driver on top of
// github.com/go-rod/rod, driving a real Chromium instance via the DevTools
// protocol.
package rodriver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/guideforge/engine/browser"
)

// Driver drives one tab of a go-rod browser instance.
type Driver struct {
	browser *rod.Browser
	page    *rod.Page
	ownsBr  bool
}

// New launches a fresh headless Chromium instance (via rod's bundled
// launcher) and opens a blank page. The returned Driver owns the browser
// and closes it on Close.
func New(headless bool) (*Driver, error) {
	b := rod.New()
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("rodriver: connect: %w", err)
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("rodriver: open page: %w", err)
	}
	return &Driver{browser: b, page: page, ownsBr: true}, nil
}

// FromPage wraps an already-open *rod.Page without taking ownership of its
// browser (used by callers that manage the browser lifecycle separately,
// e.g. a worker process reattaching to a running instance).
func FromPage(page *rod.Page) *Driver {
	return &Driver{page: page}
}

func (d *Driver) Goto(ctx context.Context, url string) error {
	p := d.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("rodriver: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("rodriver: wait load %s: %w", url, err)
	}
	return nil
}

// LocateByLabel finds the first element whose accessible name, placeholder,
// associated <label>, or aria-label matches label (case-insensitive
// substring), preferring exact matches.
func (d *Driver) LocateByLabel(ctx context.Context, label string) (browser.Element, error) {
	p := d.page.Context(ctx)
	js := `(want) => {
		const norm = s => (s || '').trim().toLowerCase();
		want = norm(want);
		const candidates = Array.from(document.querySelectorAll('input, textarea, select, button, [role=button], a'));
		let best = null, bestExact = false;
		for (const el of candidates) {
			const label = el.labels && el.labels.length ? el.labels[0].innerText : '';
			const names = [label, el.getAttribute('aria-label'), el.getAttribute('placeholder'), el.innerText, el.value];
			for (const n of names) {
				const nn = norm(n);
				if (!nn) continue;
				if (nn === want) { return el; }
				if (!best && nn.includes(want)) { best = el; }
			}
		}
		return best;
	}`
	res, err := p.Eval(js, label)
	if err != nil {
		return nil, fmt.Errorf("rodriver: locate %q: %w", label, err)
	}
	if res.Value.Nil() {
		return nil, fmt.Errorf("rodriver: no element found for label %q", label)
	}
	el, err := p.ElementFromObject(res.Value.Obj())
	if err != nil {
		return nil, fmt.Errorf("rodriver: resolve element for label %q: %w", label, err)
	}
	return el, nil
}

func (d *Driver) Type(ctx context.Context, handle browser.Element, text string) error {
	el, ok := handle.(*rod.Element)
	if !ok {
		return fmt.Errorf("rodriver: invalid element handle")
	}
	el = el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("rodriver: select existing text: %w", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("rodriver: type: %w", err)
	}
	return nil
}

func (d *Driver) Click(ctx context.Context, handle browser.Element) error {
	el, ok := handle.(*rod.Element)
	if !ok {
		return fmt.Errorf("rodriver: invalid element handle")
	}
	if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("rodriver: click: %w", err)
	}
	return nil
}

func (d *Driver) PressKey(ctx context.Context, key string) error {
	k, ok := keyByName[key]
	if !ok {
		return fmt.Errorf("rodriver: unknown key %q", key)
	}
	if err := d.page.Context(ctx).Keyboard.Type(k); err != nil {
		return fmt.Errorf("rodriver: press key %q: %w", key, err)
	}
	return nil
}

var keyByName = map[string]input.Key{
	"Enter":  input.Enter,
	"Escape": input.Escape,
	"Tab":    input.Tab,
	"Space":  input.Space,
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := d.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("rodriver: screenshot: %w", err)
	}
	return data, nil
}

func (d *Driver) DOMSnapshot(ctx context.Context) (string, error) {
	html, err := d.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("rodriver: dom snapshot: %w", err)
	}
	return html, nil
}

// WaitQuiescence polls mutation-observer state injected into the page until
// no mutation has been seen for quiet (bounded by cap), then waits on a
// double animation-frame barrier.
func (d *Driver) WaitQuiescence(ctx context.Context, quiet, cap time.Duration) error {
	p := d.page.Context(ctx)
	deadline := time.Now().Add(cap)
	const poll = 50 * time.Millisecond
	var stableSince time.Time

	for {
		mutated, err := pageMutatedRecently(p, poll)
		if err != nil {
			return fmt.Errorf("rodriver: quiescence check: %w", err)
		}
		if mutated {
			stableSince = time.Time{}
		} else if stableSince.IsZero() {
			stableSince = time.Now()
		} else if time.Since(stableSince) >= quiet {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
	// Double animation-frame barrier.
	_, _ = p.Eval(`() => new Promise(r => requestAnimationFrame(() => requestAnimationFrame(r)))`)
	return nil
}

func pageMutatedRecently(p *rod.Page, window time.Duration) (bool, error) {
	res, err := p.Eval(`(windowMs) => {
		window.__gfMutCount = window.__gfMutCount || 0;
		if (!window.__gfObserver) {
			window.__gfObserver = new MutationObserver(() => { window.__gfMutCount++; window.__gfLastMut = Date.now(); });
			window.__gfObserver.observe(document, {subtree: true, childList: true, attributes: true, characterData: true});
			window.__gfLastMut = Date.now();
		}
		return (Date.now() - window.__gfLastMut) < windowMs;
	}`, window.Milliseconds())
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (d *Driver) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	wait := d.page.Context(ctx).WaitRequestIdle(200*time.Millisecond, nil, nil, nil)
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return nil // best-effort bound; a timeout here is treated as non-fatal
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) URL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("rodriver: page info: %w", err)
	}
	return info.URL, nil
}

func (d *Driver) Close() error {
	if d.ownsBr && d.browser != nil {
		return d.browser.Close()
	}
	return nil
}
