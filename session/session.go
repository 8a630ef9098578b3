// Package session implements the Session Manager: lifecycle of sessions,
// event fan-out, status queries, and cancellation. It owns an in-memory
// event bus and a cancellation token the orchestrator polls; there is no
// separate durable run-metadata store — event log mirroring on disk is the
// durability layer instead.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guideforge/engine/events"
	"github.com/guideforge/engine/telemetry"
)

// Kind distinguishes a replay of an existing script from an LLM-guided
// generation run.
type Kind string

const (
	KindRun      Kind = "run"
	KindGenerate Kind = "generate"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusCreated   Status = "created"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether s is one of the three session-ending states.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	// ErrAlreadyExists is returned by Create when the id is already in use.
	ErrAlreadyExists = errors.New("session: already exists")
	// ErrNotFound is returned when an operation targets an unknown session id.
	ErrNotFound = errors.New("session: not found")
)

// Snapshot is a point-in-time, event-free view of a session.
type Snapshot struct {
	ID          string
	Kind        Kind
	Status      Status
	CreatedAt   time.Time
	StartedAt   time.Time
	EndedAt     time.Time
	Error       string
	CancelAsked bool
	Progress    int // 0-100, monotone non-decreasing
	CurrentStep int
	TotalSteps  int
	ScriptID    string
}

// CleanupFunc runs exactly once when a session reaches a terminal state,
// e.g. to release a held browser driver.
type CleanupFunc func(ctx context.Context, snap Snapshot)

type subscriber struct {
	ch     chan events.Event
	closed bool
}

type entry struct {
	mu          sync.Mutex
	id          string
	kind        Kind
	status      Status
	createdAt   time.Time
	startedAt   time.Time
	endedAt     time.Time
	errMsg      string
	cancelAsked bool
	seq         uint64
	buf         *ringBuffer
	subs        map[*subscriber]struct{}
	cleanup     CleanupFunc
	cleanupOnce sync.Once
	progress    int
	currentStep int
	totalSteps  int
	scriptID    string
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		ID:          e.id,
		Kind:        e.kind,
		Status:      e.status,
		CreatedAt:   e.createdAt,
		StartedAt:   e.startedAt,
		EndedAt:     e.endedAt,
		Error:       e.errMsg,
		CancelAsked: e.cancelAsked,
		Progress:    e.progress,
		CurrentStep: e.currentStep,
		TotalSteps:  e.totalSteps,
		ScriptID:    e.scriptID,
	}
}

// Manager owns every live session in this process. A Manager is safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*entry
	bufferSize int
	logger     telemetry.Logger
	metrics    telemetry.Metrics
}

// New constructs a Manager whose per-session event buffer holds at most
// bufferSize events.
func New(bufferSize int, logger telemetry.Logger, metrics telemetry.Metrics) *Manager {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Manager{
		sessions:   make(map[string]*entry),
		bufferSize: bufferSize,
		logger:     logger,
		metrics:    metrics,
	}
}

// Create registers a new session in state Created.
func (m *Manager) Create(id string, kind Kind, cleanup CleanupFunc) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return Snapshot{}, ErrAlreadyExists
	}
	e := &entry{
		id:        id,
		kind:      kind,
		status:    StatusCreated,
		createdAt: time.Now().UTC(),
		buf:       newRingBuffer(m.bufferSize),
		subs:      make(map[*subscriber]struct{}),
		cleanup:   cleanup,
	}
	m.sessions[id] = e
	m.metrics.IncCounter("guideforge.session.created", 1, "kind", string(kind))
	return e.snapshot(), nil
}

// Start transitions Created → Started, setting startedAt.
func (m *Manager) Start(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.IsTerminal() {
		return nil
	}
	if e.status != StatusCreated {
		return nil
	}
	e.status = StatusStarted
	e.startedAt = time.Now().UTC()
	return nil
}

// Status returns a snapshot view of the session with no event data.
func (m *Manager) Status(id string) (Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// UpdateProgress records the orchestrator's current position within a
// session, clamping progress to [0,100] and never letting it move backward,
// per the progress-monotone-non-decreasing invariant.
func (m *Manager) UpdateProgress(id string, progress, currentStep, totalSteps int) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > e.progress {
		e.progress = progress
	}
	e.currentStep = currentStep
	e.totalSteps = totalSteps
	return nil
}

// SetScriptID records the id of the script a Generate session produced on
// completion.
func (m *Manager) SetScriptID(id, scriptID string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scriptID = scriptID
	return nil
}

// CancelRequested reports whether cancel(id) was called and the session has
// not yet terminated. The orchestrator polls this at safe points between
// iterations and before each executor call.
func (m *Manager) CancelRequested(id string) bool {
	e, err := m.lookup(id)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelAsked
}

// Cancel marks the cancellation token. It never itself performs the
// terminal transition: that remains the orchestrator's job via Complete, so
// a terminal event is always emitted by the code already driving the
// session.
func (m *Manager) Cancel(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.IsTerminal() {
		return nil
	}
	e.cancelAsked = true
	return nil
}

// Emit appends event to the in-memory bounded buffer, assigns a monotonic
// per-session sequence number and timestamp, and publishes it to every
// current subscriber. It is a no-op if the session is terminal or unknown.
func (m *Manager) Emit(ctx context.Context, id string, typ events.Type, payload any) (events.Event, error) {
	e, err := m.lookup(id)
	if err != nil {
		return events.Event{}, nil //nolint:nilerr // unknown session: silent no-op
	}
	ev, err := events.New(typ, id, payload)
	if err != nil {
		return events.Event{}, err
	}

	e.mu.Lock()
	if e.status.IsTerminal() {
		e.mu.Unlock()
		return events.Event{}, nil
	}
	ev = ev.Stamp(e.seq, time.Now())
	e.seq++
	e.buf.push(ev)
	subs := make([]*subscriber, 0, len(e.subs))
	for s := range e.subs {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	for _, s := range subs {
		publishIsolated(ctx, m.logger, id, s, ev)
	}
	return ev, nil
}

// publishIsolated sends ev to s, recovering from any panic in a downstream
// consumer's select path and never blocking indefinitely: a full channel
// drops the event for that subscriber rather than stalling Emit.
func publishIsolated(ctx context.Context, logger telemetry.Logger, id string, s *subscriber, ev events.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn(ctx, "session: subscriber panicked", "sessionId", id, "recover", r)
		}
	}()
	select {
	case s.ch <- ev:
	default:
		logger.Warn(ctx, "session: subscriber slow, dropping live event", "sessionId", id, "seq", ev.Seq)
	}
}

// Subscribe returns a channel that first replays any buffered events, then
// streams live ones, and a cancel function to detach. If the session is
// unknown, ok is false and the caller should fall back to the Event Log
// Mirror.
func (m *Manager) Subscribe(id string) (ch <-chan events.Event, cancel func(), ok bool) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, func() {}, false
	}

	sub := &subscriber{ch: make(chan events.Event, 256)}
	e.mu.Lock()
	buffered := e.buf.snapshot()
	e.subs[sub] = struct{}{}
	e.mu.Unlock()

	out := make(chan events.Event, 256)
	go func() {
		defer close(out)
		for _, ev := range buffered {
			out <- ev
		}
		for ev := range sub.ch {
			out <- ev
		}
	}()

	cancelFn := func() {
		e.mu.Lock()
		if _, ok := e.subs[sub]; ok {
			delete(e.subs, sub)
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
		e.mu.Unlock()
	}
	return out, cancelFn, true
}

// Complete performs the terminal transition from any non-terminal state,
// emitting exactly one terminal event and invoking the cleanup hook once
//. Re-entering a terminal state is a silent no-op.
func (m *Manager) Complete(ctx context.Context, id string, status Status, errMsg string) error {
	if !status.IsTerminal() {
		return errors.New("session: Complete requires a terminal status")
	}
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.status.IsTerminal() {
		e.mu.Unlock()
		return nil
	}
	e.status = status
	e.errMsg = errMsg
	e.endedAt = time.Now().UTC()
	snap := e.snapshot()
	ev, evErr := events.New(terminalEventType(status), id, terminalPayload(status, errMsg))
	if evErr == nil {
		ev = ev.Stamp(e.seq, time.Now())
		e.seq++
		e.buf.push(ev)
	}
	subs := make([]*subscriber, 0, len(e.subs))
	for s := range e.subs {
		subs = append(subs, s)
	}
	e.subs = make(map[*subscriber]struct{})
	e.mu.Unlock()

	if evErr != nil {
		m.logger.Warn(ctx, "session: failed to emit terminal event", "sessionId", id, "error", evErr)
	}
	for _, s := range subs {
		if evErr == nil {
			publishIsolated(ctx, m.logger, id, s, ev)
		}
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
	}

	e.cleanupOnce.Do(func() {
		if e.cleanup != nil {
			e.cleanup(ctx, snap)
		}
	})
	m.metrics.IncCounter("guideforge.session.terminal", 1, "status", string(status))
	return nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func terminalEventType(status Status) events.Type {
	switch status {
	case StatusCompleted:
		return events.SessionCompleted
	case StatusFailed:
		return events.SessionFailed
	case StatusCancelled:
		return events.SessionCancelled
	default:
		return events.Error
	}
}

func terminalPayload(status Status, errMsg string) events.TerminalPayload {
	return events.TerminalPayload{
		Success: status == StatusCompleted,
		Error:   errMsg,
	}
}
