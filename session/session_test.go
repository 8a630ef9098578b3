package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/events"
	"github.com/guideforge/engine/session"
)

func TestCreateRejectsDuplicateID(t *testing.T) {
	mgr := session.New(16, nil, nil)
	_, err := mgr.Create("s1", session.KindRun, nil)
	require.NoError(t, err)

	_, err = mgr.Create("s1", session.KindRun, nil)
	require.ErrorIs(t, err, session.ErrAlreadyExists)
}

func TestLifecycleHappyPath(t *testing.T) {
	mgr := session.New(16, nil, nil)
	var cleaned bool
	_, err := mgr.Create("s1", session.KindGenerate, func(context.Context, session.Snapshot) {
		cleaned = true
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Start("s1"))

	ev, err := mgr.Emit(context.Background(), "s1", events.StepPlanned, events.StepPlannedPayload{StepIndex: 0})
	require.NoError(t, err)
	require.EqualValues(t, 0, ev.Seq)

	require.NoError(t, mgr.Complete(context.Background(), "s1", session.StatusCompleted, ""))
	require.True(t, cleaned)

	snap, err := mgr.Status("s1")
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, snap.Status)

	// Re-entering terminal is a silent no-op.
	require.NoError(t, mgr.Complete(context.Background(), "s1", session.StatusFailed, "ignored"))
	snap, _ = mgr.Status("s1")
	require.Equal(t, session.StatusCompleted, snap.Status)
}

func TestEmitIsNoopAfterTerminal(t *testing.T) {
	mgr := session.New(16, nil, nil)
	_, _ = mgr.Create("s1", session.KindRun, nil)
	require.NoError(t, mgr.Complete(context.Background(), "s1", session.StatusCancelled, ""))

	ev, err := mgr.Emit(context.Background(), "s1", events.GoalProgress, events.GoalProgressPayload{Progress: 50})
	require.NoError(t, err)
	require.Zero(t, ev)
}

func TestSubscribeReplaysBufferedThenLive(t *testing.T) {
	mgr := session.New(16, nil, nil)
	_, _ = mgr.Create("s1", session.KindRun, nil)

	_, err := mgr.Emit(context.Background(), "s1", events.StepPlanning, nil)
	require.NoError(t, err)

	ch, cancel, ok := mgr.Subscribe("s1")
	require.True(t, ok)
	defer cancel()

	first := <-ch
	require.Equal(t, events.StepPlanning, first.Type)

	_, err = mgr.Emit(context.Background(), "s1", events.StepPlanned, nil)
	require.NoError(t, err)
	second := <-ch
	require.Equal(t, events.StepPlanned, second.Type)

	require.NoError(t, mgr.Complete(context.Background(), "s1", session.StatusCompleted, ""))
	terminal := <-ch
	require.True(t, terminal.Type.IsTerminal())

	_, stillOpen := <-ch
	require.False(t, stillOpen)
}

func TestSubscribeUnknownSessionFalse(t *testing.T) {
	mgr := session.New(16, nil, nil)
	_, _, ok := mgr.Subscribe("missing")
	require.False(t, ok)
}

func TestCancelRequestedIsAdvisory(t *testing.T) {
	mgr := session.New(16, nil, nil)
	_, _ = mgr.Create("s1", session.KindRun, nil)
	require.False(t, mgr.CancelRequested("s1"))

	require.NoError(t, mgr.Cancel("s1"))
	require.True(t, mgr.CancelRequested("s1"))

	snap, _ := mgr.Status("s1")
	require.Equal(t, session.StatusCreated, snap.Status, "cancel does not itself transition state")
}

func TestBufferEvictsOldestUnderPressure(t *testing.T) {
	mgr := session.New(2, nil, nil)
	_, _ = mgr.Create("s1", session.KindRun, nil)

	for i := 0; i < 5; i++ {
		_, err := mgr.Emit(context.Background(), "s1", events.StepPlanning, nil)
		require.NoError(t, err)
	}

	ch, cancel, ok := mgr.Subscribe("s1")
	require.True(t, ok)
	defer cancel()

	first := <-ch
	require.EqualValues(t, 3, first.Seq, "only the last 2 buffered events (seq 3,4) survive eviction")
}
