package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg, err := config.Load("")
	require.NoError(t, err)

	require.Equal(t, 30, cfg.MaxStepsPerSession)
	require.Equal(t, 6, cfg.LoopDetectionWindow)
	require.Equal(t, 2, cfg.MaxRefinesPerStep)
	require.EqualValues(t, 1000_000_000, cfg.IterationPause)
	require.EqualValues(t, 350_000_000, cfg.DOMQuiescenceQuiet)
	require.EqualValues(t, 1200_000_000, cfg.DOMQuiescenceCap)
	require.Equal(t, 1024, cfg.EventBufferSize)
	require.Equal(t, config.SecretsStrategyHybrid, cfg.SecretsStrategy)
	require.Equal(t, "en", cfg.Language)
	require.Equal(t, "anthropic", cfg.ModelProvider)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("GUIDEFORGE_MAX_STEPS_PER_SESSION", "50")
	t.Setenv("GUIDEFORGE_SECRETS_STRATEGY", "heuristic")
	t.Setenv("GUIDEFORGE_MODEL_PROVIDER", "bedrock")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 50, cfg.MaxStepsPerSession)
	require.Equal(t, config.SecretsStrategyHeuristic, cfg.SecretsStrategy)
	require.Equal(t, "bedrock", cfg.ModelProvider)
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	t.Setenv("GUIDEFORGE_SECRETS_STRATEGY", "bogus")
	_, err := config.Load("")
	require.Error(t, err)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	t.Setenv("GUIDEFORGE_MODEL_PROVIDER", "bogus")
	_, err := config.Load("")
	require.Error(t, err)
}
