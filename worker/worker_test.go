package worker_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/worker"
	"github.com/guideforge/engine/workspace"
)

func TestDefaultChildArgsRun(t *testing.T) {
	args := worker.DefaultChildArgs("sess-1", worker.Request{
		Kind: worker.KindRun, AccountID: "acct", ScriptID: "s1", BaseURL: "https://example.com",
	})
	require.Equal(t, []string{
		"worker-run", "--kind", "run", "--session", "sess-1",
		"--account", "acct", "--script", "s1", "--base-url", "https://example.com",
	}, args)
}

func TestDefaultChildArgsGenerate(t *testing.T) {
	args := worker.DefaultChildArgs("sess-2", worker.Request{
		Kind: worker.KindGenerate, Goal: "sign up", StartURL: "https://example.com", Criteria: "reaches dashboard",
	})
	require.Equal(t, []string{
		"worker-run", "--kind", "generate", "--session", "sess-2",
		"--goal", "sign up", "--start-url", "https://example.com", "--criteria", "reaches dashboard",
	}, args)
}

func TestLaunchPrecreatesEventLogBeforeReturning(t *testing.T) {
	selfExe, err := os.Executable()
	require.NoError(t, err)

	ws, err := workspace.New(t.TempDir(), "acct", "ws")
	require.NoError(t, err)
	require.NoError(t, ws.EnsureDir())

	sup := worker.NewSupervisor(selfExe, ws)
	// Override ChildArgs so the re-executed test binary runs a no-op test
	// filter instead of actually invoking a worker-run subcommand that
	// does not exist on this binary.
	sup.ChildArgs = func(sessionID string, req worker.Request) []string {
		return []string{"-test.run=^$"}
	}

	require.NoError(t, sup.Launch(context.Background(), "sess-3", worker.Request{Kind: worker.KindRun, ScriptID: "s1"}))

	path, err := ws.EventLogPath("sess-3")
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}
