package workspace_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/workspace"
)

func TestNewRejectsTraversal(t *testing.T) {
	_, err := workspace.New("/tmp/storage", "../escape", "ws1")
	require.Error(t, err)

	_, err = workspace.New("/tmp/storage", "acct1", "")
	require.Error(t, err)
}

func TestLayoutPaths(t *testing.T) {
	ws, err := workspace.New("/tmp/storage", "acct1", "ws1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/storage", "acct1", "ws1"), ws.Root)

	logPath, err := ws.EventLogPath("sess-1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(ws.Root, "sessions", "sess-1", "events.ndjson"), logPath)

	shotPath, err := ws.ScreenshotPath("sess-1", 3)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(ws.Root, "sessions", "sess-1", "screenshots", "step-3.png"), shotPath)

	mdPath, err := ws.ScriptMarkdownPath("script-1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(ws.Root, "generated-scripts", "script-1", "generated-guide.md"), mdPath)
}

func TestNewArtifactRejectsOutsideRoot(t *testing.T) {
	ws, err := workspace.New("/tmp/storage", "acct1", "ws1")
	require.NoError(t, err)
	_, err = workspace.NewArtifact(workspace.KindScreenshot, ws.Root, "/tmp/elsewhere/file.png")
	require.ErrorIs(t, err, workspace.ErrOutsideRoot)
}
