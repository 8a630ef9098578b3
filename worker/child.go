package worker

import (
	"context"
	"fmt"

	"github.com/guideforge/engine/api"
	"github.com/guideforge/engine/session"
)

// RunChild drives sessionID to completion in the current process: it
// starts the requested Run or Generate through facade with sessionID
// preallocated, then blocks until the session reaches a terminal state.
// This is the detached child process's entire job; the facade's own
// Start* methods already arrange for the Event Log Mirror, so the child
// need not write the log itself.
func RunChild(ctx context.Context, facade *api.Facade, sessionID string, kind Kind, run api.RunRequest, gen api.GenerateRequest) error {
	var err error
	switch kind {
	case KindRun:
		run.SessionID = sessionID
		_, err = facade.StartRun(ctx, run)
	case KindGenerate:
		gen.SessionID = sessionID
		_, err = facade.StartGenerate(ctx, gen)
	default:
		return fmt.Errorf("worker: unknown kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("worker: start session: %w", err)
	}

	ch, cancel, ok := facade.Subscribe(sessionID)
	if !ok {
		return fmt.Errorf("worker: subscribe after start: %w", session.ErrNotFound)
	}
	defer cancel()
	for range ch {
		// Drained until the session manager closes the channel on the
		// terminal transition; the child process exits once that happens.
	}
	return nil
}
