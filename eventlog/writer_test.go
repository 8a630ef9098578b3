package eventlog_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/eventlog"
	"github.com/guideforge/engine/events"
)

func TestAppendAndTailRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.ndjson")

	w, err := eventlog.NewWriter(path)
	require.NoError(t, err)

	ev1, err := events.New(events.SessionStarted, "s1", events.SessionStartedPayload{Kind: "run"})
	require.NoError(t, err)
	ev1 = ev1.Stamp(0, time.Now())
	require.NoError(t, w.Append(ev1))

	ev2, err := events.New(events.SessionCompleted, "s1", events.TerminalPayload{Success: true})
	require.NoError(t, err)
	ev2 = ev2.Stamp(1, time.Now())
	require.NoError(t, w.Append(ev2))
	require.NoError(t, w.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := make(chan events.Event, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- eventlog.Tail(ctx, path, time.Second, out) }()

	var got []events.Event
	for ev := range out {
		got = append(got, ev)
	}
	require.NoError(t, <-errCh)
	require.Len(t, got, 2)
	require.Equal(t, events.SessionStarted, got[0].Type)
	require.True(t, got[1].Type.IsTerminal())
}

func TestTailTimesOutWhenFileNeverAppears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.ndjson")

	ctx := context.Background()
	out := make(chan events.Event, 1)
	err := eventlog.Tail(ctx, path, 50*time.Millisecond, out)
	require.Error(t, err)
}
