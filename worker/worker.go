// Package worker implements the Worker Supervisor: detached background
// execution of a Run or Generate session. The parent process preallocates
// a session id, spawns a child process bound to it, and returns
// immediately once the child's event log file is guaranteed to exist; the
// child is responsible for actually creating the session and driving it to
// completion (exec.Command + Start, detached from the parent's own
// context). There is no durable-replay requirement, so no workflow engine
// sits underneath it (see DESIGN.md).
package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/guideforge/engine/workspace"
)

// Kind selects which child subcommand to launch.
type Kind string

const (
	KindRun      Kind = "run"
	KindGenerate Kind = "generate"
)

// Request carries everything the child process needs to reconstruct the
// same RunRequest/GenerateRequest the parent would have passed to the
// Public API Facade directly, had it run the session in-process.
type Request struct {
	Kind      Kind
	AccountID string
	ScriptID  string // Run only
	BaseURL   string
	Goal      string // Generate only
	Criteria  string
	StartURL  string
}

// Supervisor spawns detached child processes for async Run/Generate
// sessions. SelfExe is the path to this module's own binary; ChildArgs
// renders req and sessionID into the argv the child's CLI will parse back
// out.
type Supervisor struct {
	SelfExe   string
	Workspace workspace.Workspace
	ChildArgs func(sessionID string, req Request) []string
}

// NewSupervisor builds a Supervisor using the default argv rendering
// understood by cmd/guideforge's hidden worker-run subcommand.
func NewSupervisor(selfExe string, ws workspace.Workspace) *Supervisor {
	return &Supervisor{SelfExe: selfExe, Workspace: ws, ChildArgs: DefaultChildArgs}
}

// DefaultChildArgs renders the flags cmd/guideforge's worker-run
// subcommand expects.
func DefaultChildArgs(sessionID string, req Request) []string {
	args := []string{"worker-run", "--kind", string(req.Kind), "--session", sessionID}
	if req.AccountID != "" {
		args = append(args, "--account", req.AccountID)
	}
	switch req.Kind {
	case KindRun:
		args = append(args, "--script", req.ScriptID)
		if req.BaseURL != "" {
			args = append(args, "--base-url", req.BaseURL)
		}
	case KindGenerate:
		args = append(args, "--goal", req.Goal, "--start-url", req.StartURL)
		if req.Criteria != "" {
			args = append(args, "--criteria", req.Criteria)
		}
	}
	return args
}

// Launch starts a detached child process bound to sessionID and returns as
// soon as the child's event log path exists, so a caller that immediately
// hands sessionID to another process can start tailing the log without a
// race. The child is not waited on; Launch reaps it in the background to
// avoid a zombie process.
func (s *Supervisor) Launch(ctx context.Context, sessionID string, req Request) error {
	path, err := s.Workspace.EventLogPath(sessionID)
	if err != nil {
		return fmt.Errorf("worker: event log path: %w", err)
	}
	if err := workspace.EnsureParent(path); err != nil {
		return fmt.Errorf("worker: ensure event log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("worker: precreate event log: %w", err)
	}
	_ = f.Close()

	cmd := exec.Command(s.SelfExe, s.ChildArgs(sessionID, req)...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("worker: start child: %w", err)
	}
	go func() { _ = cmd.Wait() }()

	return nil
}
