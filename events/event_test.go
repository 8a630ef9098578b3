package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/events"
)

func TestNewAndDecode(t *testing.T) {
	ev, err := events.New(events.StepExecuted, "sess-1", events.StepExecutedPayload{
		StepIndex: 2, Kind: "click", Success: true, DurationMs: 120,
	})
	require.NoError(t, err)

	stamped := ev.Stamp(3, time.UnixMilli(1000))
	require.Equal(t, uint64(3), stamped.Seq)
	require.Equal(t, int64(1000), stamped.Ts)

	var payload events.StepExecutedPayload
	require.NoError(t, stamped.Decode(&payload))
	require.Equal(t, 2, payload.StepIndex)
	require.True(t, payload.Success)
}

func TestIsTerminal(t *testing.T) {
	require.True(t, events.SessionCompleted.IsTerminal())
	require.True(t, events.SessionFailed.IsTerminal())
	require.True(t, events.SessionCancelled.IsTerminal())
	require.False(t, events.StepExecuted.IsTerminal())
}

func TestCanonicalSynonym(t *testing.T) {
	legacy := events.Type("step_completed")
	require.Equal(t, events.StepExecuted, legacy.Canonical())
	require.Equal(t, events.StepExecuted, events.StepExecuted.Canonical())
}
