package step_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/step"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		step    step.Step
		wantErr bool
	}{
		{"goto requires url", step.Step{Kind: step.Goto}, true},
		{"goto ok", step.Step{Kind: step.Goto, URL: "https://example.com"}, false},
		{"click requires label", step.Step{Kind: step.Click}, true},
		{"type requires value or label", step.Step{Kind: step.Type}, true},
		{"type with label ok", step.Step{Kind: step.Type, Label: "Username"}, false},
		{"keypress requires key", step.Step{Kind: step.Keypress}, true},
		{"tts_start requires label", step.Step{Kind: step.TTSStart}, true},
		{"assert_page requires url", step.Step{Kind: step.AssertPage}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.step.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestKey(t *testing.T) {
	a := step.Step{Kind: step.Click, Label: "Next"}
	b := step.Step{Kind: step.Click, Label: "Next"}
	c := step.Step{Kind: step.Click, Label: "Back"}
	assert.Equal(t, a.StableKey(), b.StableKey())
	assert.NotEqual(t, a.StableKey(), c.StableKey())
}

func TestIsTTSAndActionable(t *testing.T) {
	assert.True(t, step.Step{Kind: step.TTSStart}.IsTTS())
	assert.False(t, step.Step{Kind: step.TTSStart}.Actionable())
	assert.True(t, step.Step{Kind: step.Click}.Actionable())
}
