// Package config centralizes runtime configuration for the kernel: the
// workspace root, token economy budget, mode thresholds, cognitive backend
// selection, and observability settings.
package config

import (
	"fmt"
	"path/filepath"
)

// ObsConfig configures OpenTelemetry export. Mirrors the host service's own
// ObsConfig shape so observability.InitOTel can be reused unchanged.
type ObsConfig struct {
	OTLP           string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// ProviderConfig holds credentials/endpoint overrides for one CognitiveBackend.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// MemoryConfig configures TraceMatcher behavior (§4.4, §6).
type MemoryConfig struct {
	EnableLLMMatching    bool
	FollowerThreshold    float64
	MixedThreshold       float64
	CrossProjectLearning bool
}

// DispatcherConfig configures ModeStrategy/Dispatcher decision thresholds (§6).
type DispatcherConfig struct {
	ComplexityThreshold       int
	AutoCrystallization       bool
	CrystallizationMinUsage   int
	CrystallizationMinSuccess float64
	Strategy                  string // auto | cost-optimized | speed-optimized | forced-learner | forced-follower
	EnableAdvancedToolUse     bool
	MixedEstimateUSD          float64
	LearnerEstimateUSD        float64
}

// SDKConfig configures the CognitiveAdapter's underlying backend call.
type SDKConfig struct {
	TimeoutSeconds float64
	PermissionMode string
}

// Config is the complete, process-wide configuration.
type Config struct {
	Workspace   string
	BudgetUSD   float64
	Provider    string // anthropic | openai | google
	Model       string

	Anthropic ProviderConfig
	OpenAI    ProviderConfig
	Google    ProviderConfig

	Memory     MemoryConfig
	Dispatcher DispatcherConfig
	SDK        SDKConfig
	Obs        ObsConfig

	LogPath  string
	LogLevel string

	// DatabaseURL, when set, switches the TraceStore to the optional Postgres
	// backend (§11) instead of the required file-backed one.
	DatabaseURL string
	// SimilarityCacheRedisURL, when set, backs the TraceMatcher similarity
	// cache with Redis (§11) instead of the default in-process cache.
	SimilarityCacheRedisURL string
}

func (c Config) TracesDir() string {
	return filepath.Join(c.Workspace, "memories", "traces")
}

func (c Config) ProjectsDir() string {
	return filepath.Join(c.Workspace, "projects")
}

func (c Config) SpendLogPath() string {
	return filepath.Join(c.Workspace, "spend_log.json")
}

func (c Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace must not be empty")
	}
	if c.BudgetUSD < 0 {
		return fmt.Errorf("budget_usd must be non-negative, got %f", c.BudgetUSD)
	}
	if c.Memory.FollowerThreshold < 0 || c.Memory.FollowerThreshold > 1 {
		return fmt.Errorf("memory.follower_threshold must be in [0,1], got %f", c.Memory.FollowerThreshold)
	}
	if c.Memory.MixedThreshold < 0 || c.Memory.MixedThreshold > 1 {
		return fmt.Errorf("memory.mixed_threshold must be in [0,1], got %f", c.Memory.MixedThreshold)
	}
	if c.Dispatcher.ComplexityThreshold < 0 {
		return fmt.Errorf("dispatcher.complexity_threshold must be non-negative")
	}
	if c.Dispatcher.CrystallizationMinSuccess < 0 || c.Dispatcher.CrystallizationMinSuccess > 1 {
		return fmt.Errorf("dispatcher.crystallization_min_success must be in [0,1]")
	}
	return nil
}

// Default returns the built-in defaults, equivalent to the reference
// implementation's "development" preset but with production-safe thresholds.
func Default() Config {
	return Config{
		Workspace: "./workspace",
		BudgetUSD: 10.0,
		Provider:  "anthropic",
		Model:     "claude-sonnet-4-5-20250929",
		Memory: MemoryConfig{
			EnableLLMMatching:    true,
			FollowerThreshold:    0.92,
			MixedThreshold:       0.75,
			CrossProjectLearning: true,
		},
		Dispatcher: DispatcherConfig{
			ComplexityThreshold:       2,
			AutoCrystallization:       false,
			CrystallizationMinUsage:   5,
			CrystallizationMinSuccess: 0.95,
			Strategy:                  "auto",
			EnableAdvancedToolUse:     true,
			MixedEstimateUSD:          0.25,
			LearnerEstimateUSD:        0.50,
		},
		SDK: SDKConfig{
			TimeoutSeconds: 300,
			PermissionMode: "default",
		},
		LogLevel: "info",
	}
}
