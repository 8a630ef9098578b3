// Package config loads engine-wide tunables from the environment (and an
// optional .env file via github.com/joho/godotenv), using a plain
// getenv-with-default convention.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// SecretsStrategy selects how the Placeholder Resolver maps page labels to
// secret/variable keys.
type SecretsStrategy string

const (
	// SecretsStrategyHybrid asks the LLM to map ambiguous labels; when no
	// LLM resolver is available, label resolution returns no mapping.
	SecretsStrategyHybrid SecretsStrategy = "hybrid"
	// SecretsStrategyHeuristic never calls the LLM; label resolution
	// returns no mapping.
	SecretsStrategyHeuristic SecretsStrategy = "heuristic"
)

// Config holds every engine tunable, plus connection settings for the
// optional Redis/Mongo backings.
type Config struct {
	// Orchestration.
	MaxStepsPerSession  int
	LoopDetectionWindow int
	MaxRefinesPerStep   int
	IterationPause      time.Duration

	// DOM quiescence.
	DOMQuiescenceQuiet time.Duration
	DOMQuiescenceCap   time.Duration
	PageLoadTimeout    time.Duration
	DefaultStepTimeout time.Duration

	// Event bus.
	EventBufferSize int

	// Screenshot compression.
	ImageMaxWidth  int
	ImageMaxHeight int
	ImageQuality   int

	// Placeholder resolution.
	SecretsStrategy SecretsStrategy
	Language        string

	// Workspace root for scripts/sessions/artifacts.
	WorkspaceRoot string

	// Model backends.
	AnthropicAPIKey    string
	AnthropicModel     string
	AWSRegion          string
	BedrockModelID     string
	ModelProvider      string // "anthropic" or "bedrock"

	// Optional horizontal-scale backings.
	RedisAddr  string
	MongoURI   string
	MongoDB    string

	// OTEL / clue.
	OTLPEndpoint string
	ServiceName  string
	Debug        bool
}

// Load reads environment variables, first loading envPath (if non-empty)
// via godotenv. Missing envPath is not an error: the process environment is
// used as-is.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: load %s: %w", envPath, err)
			}
		}
	}

	cfg := &Config{
		MaxStepsPerSession:  getEnvInt("GUIDEFORGE_MAX_STEPS_PER_SESSION", 30),
		LoopDetectionWindow: getEnvInt("GUIDEFORGE_LOOP_DETECTION_WINDOW", 6),
		MaxRefinesPerStep:   getEnvInt("GUIDEFORGE_MAX_REFINES_PER_STEP", 2),
		IterationPause:      getEnvMillis("GUIDEFORGE_ITERATION_PAUSE_MS", 1000),

		DOMQuiescenceQuiet: getEnvMillis("GUIDEFORGE_DOM_QUIESCENCE_QUIET_MS", 350),
		DOMQuiescenceCap:   getEnvMillis("GUIDEFORGE_DOM_QUIESCENCE_CAP_MS", 1200),
		PageLoadTimeout:    getEnvMillis("GUIDEFORGE_PAGE_LOAD_TIMEOUT_MS", 30000),
		DefaultStepTimeout: getEnvMillis("GUIDEFORGE_DEFAULT_STEP_TIMEOUT_MS", 60000),

		EventBufferSize: getEnvInt("GUIDEFORGE_EVENT_BUFFER_SIZE", 1024),

		ImageMaxWidth:  getEnvInt("GUIDEFORGE_IMAGE_MAX_WIDTH", 1600),
		ImageMaxHeight: getEnvInt("GUIDEFORGE_IMAGE_MAX_HEIGHT", 1200),
		ImageQuality:   getEnvInt("GUIDEFORGE_IMAGE_QUALITY", 82),

		SecretsStrategy: SecretsStrategy(getEnvString("GUIDEFORGE_SECRETS_STRATEGY", string(SecretsStrategyHybrid))),
		Language:        getEnvString("GUIDEFORGE_LANGUAGE", "en"),

		WorkspaceRoot: getEnvString("GUIDEFORGE_WORKSPACE_ROOT", "./workspace"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getEnvString("GUIDEFORGE_ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		AWSRegion:       getEnvString("AWS_REGION", "us-east-1"),
		BedrockModelID:  getEnvString("GUIDEFORGE_BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
		ModelProvider:   getEnvString("GUIDEFORGE_MODEL_PROVIDER", "anthropic"),

		RedisAddr: os.Getenv("GUIDEFORGE_REDIS_ADDR"),
		MongoURI:  os.Getenv("GUIDEFORGE_MONGO_URI"),
		MongoDB:   getEnvString("GUIDEFORGE_MONGO_DB", "guideforge"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:  getEnvString("GUIDEFORGE_SERVICE_NAME", "guideforge-engine"),
		Debug:        getEnvBool("GUIDEFORGE_DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that Load's defaults alone cannot guarantee
// (e.g. a caller overriding via environment with a nonsensical value).
func (c *Config) Validate() error {
	if c.MaxStepsPerSession <= 0 {
		return fmt.Errorf("config: MaxStepsPerSession must be positive, got %d", c.MaxStepsPerSession)
	}
	if c.LoopDetectionWindow <= 0 {
		return fmt.Errorf("config: LoopDetectionWindow must be positive, got %d", c.LoopDetectionWindow)
	}
	if c.SecretsStrategy != SecretsStrategyHybrid && c.SecretsStrategy != SecretsStrategyHeuristic {
		return fmt.Errorf("config: unknown SecretsStrategy %q", c.SecretsStrategy)
	}
	if c.ModelProvider != "anthropic" && c.ModelProvider != "bedrock" {
		return fmt.Errorf("config: unknown ModelProvider %q", c.ModelProvider)
	}
	return nil
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvMillis(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMs)) * time.Millisecond
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
