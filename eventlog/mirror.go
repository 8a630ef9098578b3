package eventlog

import (
	"context"

	"github.com/guideforge/engine/events"
)

// MirrorBus copies every event from sub onto a Writer at path, in its own
// goroutine, until sub is closed (the session manager closes it on the
// terminal transition). cleanup is called once the goroutine exits,
// regardless of outcome, so the caller's subscription is always detached.
func MirrorBus(ctx context.Context, sub <-chan events.Event, cleanup func(), path string) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	go func() {
		defer cleanup()
		defer w.Close()
		for ev := range sub {
			_ = w.Append(ev)
		}
	}()
	return nil
}
