package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/browser/nullriver"
	"github.com/guideforge/engine/executor"
	"github.com/guideforge/engine/model"
	"github.com/guideforge/engine/orchestrator"
	"github.com/guideforge/engine/placeholder"
	"github.com/guideforge/engine/planner"
	"github.com/guideforge/engine/session"
	"github.com/guideforge/engine/workspace"
)

func testWorkspace(t *testing.T) workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), "acct", "ws")
	require.NoError(t, err)
	require.NoError(t, ws.EnsureDir())
	return ws
}

type scriptedModel struct {
	replies []string
	i       int
}

func (m *scriptedModel) Execute(context.Context, model.Request) (model.Response, error) {
	text := m.replies[m.i]
	if m.i < len(m.replies)-1 {
		m.i++
	}
	return model.Response{Text: text}, nil
}

func (m *scriptedModel) ExecuteTTSEnhancement(ctx context.Context, req model.Request) (model.Response, error) {
	return m.Execute(ctx, req)
}

func fastExecutorOptions() executor.Options {
	return executor.Options{PageLoadTimeout: 1, DOMQuiescenceQuiet: 1, DOMQuiescenceCap: 1, DropdownSettle: 1}
}

func TestRunHappyPathCompletesViaGoalValidation(t *testing.T) {
	client := &scriptedModel{replies: []string{
		`{"step": {"kind": "type", "label": "Username", "value": "alice"}, "confidence": 0.9, "matchesGoal": false, "reasoning": "enter username"}`,
		`{"step": {"kind": "type", "label": "Password", "value": "hunter2"}, "confidence": 0.9, "matchesGoal": false, "reasoning": "enter password"}`,
		`{"step": {"kind": "click", "label": "Login"}, "confidence": 0.9, "matchesGoal": true, "reasoning": "submit", "goalValidation": {"isComplete": true, "reasoning": "logged in"}}`,
	}}

	driver := nullriver.New("https://example.com/login", "Username", "Password", "Login")
	driver.NavigateOnClickLabel = "Login"
	driver.NavigateTo = "https://example.com/dashboard"

	p := planner.New(client, nil, planner.Options{})
	store := placeholder.NewStore(nil, nil, nil, nil)
	exec := executor.New(driver, store, fastExecutorOptions())

	mgr := session.New(16, nil, nil)
	_, err := mgr.Create("sess-1", session.KindRun, nil)
	require.NoError(t, err)

	orch := orchestrator.New(mgr, p, exec, driver, nil, testWorkspace(t), nil, nil, orchestrator.Options{
		MaxSteps: 10, MaxRefinesPerStep: 2, IterationPause: 1,
	})

	err = orch.Run(context.Background(), "sess-1", "log in", "dashboard reached", "https://example.com/login")
	require.NoError(t, err)

	snap, err := mgr.Status("sess-1")
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, snap.Status)
	require.NotEmpty(t, snap.ScriptID)
	require.Equal(t, 100, snap.Progress)
}

func TestRunCompletesOnAssertPageBackCompat(t *testing.T) {
	client := &scriptedModel{replies: []string{
		`{"step": {"kind": "assert_page", "url": "https://example.com/login"}, "confidence": 0.8, "matchesGoal": false, "reasoning": "confirm page"}`,
	}}

	driver := nullriver.New("https://example.com/login")
	p := planner.New(client, nil, planner.Options{})
	store := placeholder.NewStore(nil, nil, nil, nil)
	exec := executor.New(driver, store, fastExecutorOptions())

	mgr := session.New(16, nil, nil)
	_, err := mgr.Create("sess-2", session.KindRun, nil)
	require.NoError(t, err)

	orch := orchestrator.New(mgr, p, exec, driver, nil, testWorkspace(t), nil, nil, orchestrator.Options{
		MaxSteps: 10, MaxRefinesPerStep: 2, IterationPause: 1,
	})

	err = orch.Run(context.Background(), "sess-2", "reach login", "", "https://example.com/login")
	require.NoError(t, err)

	snap, err := mgr.Status("sess-2")
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, snap.Status)
}

func TestRunFailsWhenStepRepeatsBeyondRefinementCap(t *testing.T) {
	reply := `{"step": {"kind": "click", "label": "Ghost"}, "confidence": 0.5, "matchesGoal": false, "reasoning": "retry"}`
	client := &scriptedModel{replies: []string{reply}}

	driver := nullriver.New("https://example.com/login") // "Ghost" label never resolves
	p := planner.New(client, nil, planner.Options{})
	store := placeholder.NewStore(nil, nil, nil, nil)
	exec := executor.New(driver, store, fastExecutorOptions())

	mgr := session.New(16, nil, nil)
	_, err := mgr.Create("sess-3", session.KindRun, nil)
	require.NoError(t, err)

	orch := orchestrator.New(mgr, p, exec, driver, nil, testWorkspace(t), nil, nil, orchestrator.Options{
		MaxSteps: 10, MaxRefinesPerStep: 1, IterationPause: 1,
	})

	err = orch.Run(context.Background(), "sess-3", "click ghost", "", "https://example.com/login")
	require.Error(t, err)

	snap, err := mgr.Status("sess-3")
	require.NoError(t, err)
	require.Equal(t, session.StatusFailed, snap.Status)
}

func TestRunStopsOnCancelRequest(t *testing.T) {
	client := &scriptedModel{replies: []string{
		`{"step": {"kind": "keypress", "key": "Escape"}, "confidence": 0.5, "matchesGoal": false, "reasoning": "noop"}`,
	}}
	driver := nullriver.New("https://example.com/login")
	p := planner.New(client, nil, planner.Options{})
	exec := executor.New(driver, nil, fastExecutorOptions())

	mgr := session.New(16, nil, nil)
	_, err := mgr.Create("sess-4", session.KindRun, nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Cancel("sess-4"))

	orch := orchestrator.New(mgr, p, exec, driver, nil, testWorkspace(t), nil, nil, orchestrator.Options{
		MaxSteps: 10, MaxRefinesPerStep: 2, IterationPause: 1,
	})

	err = orch.Run(context.Background(), "sess-4", "noop goal", "", "https://example.com/login")
	require.NoError(t, err)

	snap, err := mgr.Status("sess-4")
	require.NoError(t, err)
	require.Equal(t, session.StatusCancelled, snap.Status)
}
