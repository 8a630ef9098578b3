package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/model"
	"github.com/guideforge/engine/planner"
	"github.com/guideforge/engine/telemetry"
)

type scriptedClient struct {
	replies []string
	calls   int
}

func (c *scriptedClient) Execute(context.Context, model.Request) (model.Response, error) {
	text := c.replies[c.calls]
	if c.calls < len(c.replies)-1 {
		c.calls++
	}
	return model.Response{Text: text}, nil
}

func (c *scriptedClient) ExecuteTTSEnhancement(ctx context.Context, req model.Request) (model.Response, error) {
	return c.Execute(ctx, req)
}

func TestPlanReturnsStepOnWellFormedReply(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"step": {"kind": "click", "label": "Login"}, "confidence": 0.95, "matchesGoal": false, "reasoning": "click login"}`,
	}}
	p := planner.New(client, telemetry.NewNoopLogger(), planner.Options{})

	result, err := p.Plan(context.Background(), planner.Context{
		Goal:       "log in",
		CurrentURL: "https://example.com/login",
		CleanedDOM: "<form></form>",
	})
	require.NoError(t, err)
	require.Equal(t, "Login", result.Step.Label)
	require.InDelta(t, 0.95, result.Confidence, 0.0001)
}

func TestPlanRecoversJSONWrappedInProse(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"Sure thing! Here is the plan:\n```json\n" +
			`{"step": {"kind": "goto", "url": "https://example.com"}, "confidence": 0.8, "matchesGoal": false, "reasoning": "go",}` +
			"\n```\nLet me know if that helps.",
	}}
	p := planner.New(client, telemetry.NewNoopLogger(), planner.Options{})

	result, err := p.Plan(context.Background(), planner.Context{Goal: "navigate"})
	require.NoError(t, err)
	require.Equal(t, "https://example.com", result.Step.URL)
}

func TestPlanRetriesWithTightenedPromptThenSucceeds(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"not json at all",
		`{"step": {"kind": "click", "label": "Next"}, "confidence": 0.7, "matchesGoal": false, "reasoning": "next"}`,
	}}
	p := planner.New(client, telemetry.NewNoopLogger(), planner.Options{MaxTries: 2})

	result, err := p.Plan(context.Background(), planner.Context{Goal: "proceed"})
	require.NoError(t, err)
	require.Equal(t, "Next", result.Step.Label)
	require.Equal(t, 2, client.calls+1)
}

func TestPlanFallsBackAfterExhaustingRetries(t *testing.T) {
	client := &scriptedClient{replies: []string{"garbage", "still garbage"}}
	p := planner.New(client, telemetry.NewNoopLogger(), planner.Options{MaxTries: 2})

	result, err := p.Plan(context.Background(), planner.Context{Goal: "proceed"})
	require.Error(t, err)
	require.Equal(t, float64(0), result.Confidence)
}

func TestPlanParsesGoalValidationFromReply(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"step": {"kind": "keypress", "key": "Escape"}, "confidence": 0.6, "matchesGoal": true, "reasoning": "closing picker",` +
			`"goalValidation": {"isComplete": true, "reasoning": "done"}}`,
	}}
	p := planner.New(client, telemetry.NewNoopLogger(), planner.Options{})

	result, err := p.Plan(context.Background(), planner.Context{Goal: "pick option"})
	require.NoError(t, err)
	require.NotNil(t, result.GoalValidation)
	require.True(t, result.GoalValidation.IsComplete)
}
