// Package events defines the wire shape of session lifecycle and progress
// events, shared by the in-memory bus (session package), the append-only log
// mirror (eventlog package), and every subscriber.
package events

import (
	"encoding/json"
	"time"
)

// Type names an event kind. Every known type is enumerated so decoders can
// route on it without string comparisons scattered through the codebase.
type Type string

const (
	SessionStarted   Type = "session_started"
	SessionCompleted Type = "session_completed"
	SessionFailed    Type = "session_failed"
	SessionCancelled Type = "session_cancelled"

	StepPlanning          Type = "step_planning"
	StepPlanned           Type = "step_planned"
	StepRefinementStarted Type = "step_refinement_started"
	StepExecuting         Type = "step_executing"
	StepExecuted          Type = "step_executed"
	StepFailed            Type = "step_failed"
	ValidationPerformed   Type = "validation_performed"

	ScreenshotCaptured  Type = "screenshot_captured"
	DomSnapshotCaptured Type = "dom_snapshot_captured"

	ScriptLoaded    Type = "script_loaded"
	ConfigValidated Type = "config_validated"

	VideoRecordingStarted Type = "video_recording_started"
	VideoRecordingStopped Type = "video_recording_stopped"

	TTSStarted   Type = "tts_started"
	TTSCompleted Type = "tts_completed"

	MarkdownGenerated Type = "markdown_generated"
	ScriptSaving      Type = "script_saving"
	ScriptSaved       Type = "script_saved"

	ReportGenerated Type = "report_generated"
	Completed       Type = "completed"
	GoalProgress    Type = "goal_progress"

	Error Type = "error"

	// stepCompletedLegacy is accepted on decode as a synonym of StepExecuted.
	// The engine never emits this type itself.
	stepCompletedLegacy Type = "step_completed"
)

// terminalTypes enumerates the event types that end a session's stream.
var terminalTypes = map[Type]bool{
	SessionCompleted: true,
	SessionFailed:    true,
	SessionCancelled: true,
}

// IsTerminal reports whether t is one of the three session-ending event
// types.
func (t Type) IsTerminal() bool {
	return terminalTypes[t]
}

// Canonical normalizes legacy type spellings accepted on decode to their
// current name, without changing what the engine itself ever emits.
func (t Type) Canonical() Type {
	if t == stepCompletedLegacy {
		return StepExecuted
	}
	return t
}

// Event is a single immutable point in a session's event stream. Events are
// appended to the event log and published on the in-memory bus in the same
// order.
type Event struct {
	Type      Type            `json:"type"`
	SessionID string          `json:"sessionId"`
	Seq       uint64          `json:"seq"`
	Ts        int64           `json:"ts"` // unix millis
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an Event with the payload marshaled to JSON. The Seq and Ts
// fields are left zero; the session manager assigns them atomically at
// publish time so ordering is centralized in one place.
func New(typ Type, sessionID string, payload any) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		raw = b
	}
	return Event{Type: typ, SessionID: sessionID, Payload: raw}, nil
}

// Stamp returns a copy of e with Seq and Ts populated. Used by the session
// manager's single emit path so every observer (bus + log) sees identical
// sequencing.
func (e Event) Stamp(seq uint64, at time.Time) Event {
	e.Seq = seq
	e.Ts = at.UnixMilli()
	return e
}

// Decode unmarshals the payload into dest. Returns nil without touching dest
// if the event carries no payload.
func (e Event) Decode(dest any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, dest)
}
