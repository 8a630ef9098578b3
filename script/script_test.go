package script_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/script"
	"github.com/guideforge/engine/script/filestore"
	"github.com/guideforge/engine/step"
	"github.com/guideforge/engine/workspace"
)

func newWorkspace(t *testing.T) workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), "acct", "ws")
	require.NoError(t, err)
	require.NoError(t, ws.EnsureDir())
	return ws
}

func TestImportThenExportRoundTrips(t *testing.T) {
	ws := newWorkspace(t)
	reg, err := filestore.New(ws.Root + "/scripts.json")
	require.NoError(t, err)

	exp := script.Export{
		ScriptID: "abc123",
		Metadata: script.ExportMetadata{Title: "Sign in", BaseURL: "https://example.com/login"},
		Config: script.ExportConfig{
			Language: "en",
			Steps: []step.Step{
				{Kind: step.Goto, URL: "https://example.com/login"},
				{Kind: step.Click, Label: "Sign in"},
			},
		},
		ExportedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	sc, err := script.ImportScript(context.Background(), reg, ws, exp, false)
	require.NoError(t, err)
	require.Equal(t, "abc123", sc.ID)

	reExported, err := script.ExportScript(sc)
	require.NoError(t, err)
	require.Equal(t, "Sign in", reExported.Metadata.Title)
	require.Equal(t, "https://example.com/login", reExported.Metadata.BaseURL)
	require.NotEmpty(t, reExported.Config.Steps)

	got, ok, err := reg.Get(context.Background(), "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sc.Path, got.Path)
}

func TestImportRejectsExistingIDWithoutOverwrite(t *testing.T) {
	ws := newWorkspace(t)
	reg, err := filestore.New(ws.Root + "/scripts.json")
	require.NoError(t, err)

	exp := script.Export{
		ScriptID: "dup",
		Metadata: script.ExportMetadata{Title: "A", BaseURL: "https://example.com"},
	}
	_, err = script.ImportScript(context.Background(), reg, ws, exp, false)
	require.NoError(t, err)

	_, err = script.ImportScript(context.Background(), reg, ws, exp, false)
	require.ErrorIs(t, err, script.ErrExists)

	_, err = script.ImportScript(context.Background(), reg, ws, exp, true)
	require.NoError(t, err)
}

func TestImportGeneratesIDWhenAbsent(t *testing.T) {
	ws := newWorkspace(t)
	reg, err := filestore.New(ws.Root + "/scripts.json")
	require.NoError(t, err)

	exp := script.Export{Metadata: script.ExportMetadata{Title: "No id", BaseURL: "https://example.com"}}
	sc, err := script.ImportScript(context.Background(), reg, ws, exp, false)
	require.NoError(t, err)
	require.NotEmpty(t, sc.ID)
}
