// Package eventlog implements the Event Log Mirror: an
// append-only NDJSON file per session, one JSON object per line, plus a
// tailer that lets late or cross-process subscribers replay the full
// history and then stream live appends until a terminal event is observed.
package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/guideforge/engine/events"
)

// Writer appends events to a single NDJSON file, flushing after every
// write. It is the sole writer for a given session.
type Writer struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewWriter opens (creating if needed) the NDJSON file at path for append.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	return &Writer{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes one event as a single JSON line, flushing immediately.
// Failures are the caller's to log and swallow: the in-memory stream
// remains authoritative for live subscribers.
func (w *Writer) Append(ev events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: marshal: %w", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("eventlog: write: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("eventlog: write newline: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("eventlog: flush: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.f.Close()
}

// Tail blocks up to appearTimeout for path to appear, reads it in full,
// decoding each complete line onto out, then watches for appended lines
// (via fsnotify, falling back to polling) and streams them until a terminal
// event is observed or ctx is cancelled. out is closed on return.
func Tail(ctx context.Context, path string, appearTimeout time.Duration, out chan<- events.Event) error {
	defer close(out)

	if err := waitForFile(ctx, path, appearTimeout); err != nil {
		return err
	}

	var offset int64

	emitLine := func(line []byte) (terminal bool, err error) {
		var ev events.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return false, fmt.Errorf("eventlog: decode line: %w", err)
		}
		ev.Type = ev.Type.Canonical()
		select {
		case out <- ev:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		return ev.Type.IsTerminal(), nil
	}

	// readAvailable re-opens the file and seeks to the last confirmed
	// offset on every call. Only bytes that end in '\n' are consumed and
	// counted; a partial trailing line is left for the next call once the
	// writer has appended its terminating newline.
	readAvailable := func() (terminal bool, err error) {
		f, err := os.Open(path)
		if err != nil {
			return false, fmt.Errorf("eventlog: reopen for tail: %w", err)
		}
		defer f.Close()
		if _, err := f.Seek(offset, 0); err != nil {
			return false, fmt.Errorf("eventlog: seek: %w", err)
		}
		reader := bufio.NewReader(f)
		for {
			line, readErr := reader.ReadBytes('\n')
			if len(line) == 0 || line[len(line)-1] != '\n' {
				if readErr != nil && readErr != io.EOF {
					return false, fmt.Errorf("eventlog: read: %w", readErr)
				}
				return false, nil
			}
			offset += int64(len(line))
			done, err := emitLine(line[:len(line)-1])
			if err != nil {
				return false, err
			}
			if done {
				return true, nil
			}
		}
	}

	if done, err := readAvailable(); err != nil {
		return err
	} else if done {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	useWatcher := err == nil
	if useWatcher {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			useWatcher = false
		}
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := readAvailable()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case <-watcherEvents(watcher, useWatcher):
			done, err := readAvailable()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func watcherEvents(w *fsnotify.Watcher, enabled bool) <-chan fsnotify.Event {
	if !enabled {
		return nil
	}
	return w.Events
}

func waitForFile(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("eventlog: timed out waiting for %s to appear", path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
