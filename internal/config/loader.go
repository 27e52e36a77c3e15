package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration from environment variables (optionally .env),
// layered on top of Default(), and optionally over a YAML file named by
// LLMOS_CONFIG_FILE for values awkward to express as env vars (provider
// credentials, strategy name).
func Load() (Config, error) {
	// Overload so a local .env deterministically wins over pre-existing
	// process environment during development.
	_ = godotenv.Overload()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("LLMOS_CONFIG_FILE")); path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			_ = yaml.Unmarshal(b, &cfg)
		}
	}

	if v := strings.TrimSpace(os.Getenv("LLMOS_WORKSPACE")); v != "" {
		cfg.Workspace = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_BUDGET")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.BudgetUSD = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_MODEL")); v != "" {
		cfg.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_PROVIDER")); v != "" {
		cfg.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_ENABLE_LLM_MATCHING")); v != "" {
		cfg.Memory.EnableLLMMatching = parseBool(v, cfg.Memory.EnableLLMMatching)
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_FOLLOWER_THRESHOLD")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Memory.FollowerThreshold = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_MIXED_THRESHOLD")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Memory.MixedThreshold = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_COMPLEXITY_THRESHOLD")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Dispatcher.ComplexityThreshold = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_AUTO_CRYSTALLIZATION")); v != "" {
		cfg.Dispatcher.AutoCrystallization = parseBool(v, cfg.Dispatcher.AutoCrystallization)
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_CRYSTALLIZATION_MIN_USAGE")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Dispatcher.CrystallizationMinUsage = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_CRYSTALLIZATION_MIN_SUCCESS")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Dispatcher.CrystallizationMinSuccess = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_STRATEGY")); v != "" {
		cfg.Dispatcher.Strategy = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_SDK_TIMEOUT_SECONDS")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.SDK.TimeoutSeconds = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_PERMISSION_MODE")); v != "" {
		cfg.SDK.PermissionMode = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_LOG_PATH")); v != "" {
		cfg.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMOS_SIMILARITY_CACHE_REDIS_URL")); v != "" {
		cfg.SimilarityCacheRedisURL = v
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")); v != "" {
		cfg.Anthropic.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
		cfg.Anthropic.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_LLM_API_KEY")); v != "" {
		cfg.Google.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_LLM_MODEL")); v != "" {
		cfg.Google.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_LLM_BASE_URL")); v != "" {
		cfg.Google.BaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Obs.OTLP = v
	}
	cfg.Obs.ServiceName = firstNonEmpty(strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")), "llmos")
	cfg.Obs.ServiceVersion = firstNonEmpty(strings.TrimSpace(os.Getenv("LLMOS_VERSION")), "dev")
	cfg.Obs.Environment = firstNonEmpty(strings.TrimSpace(os.Getenv("LLMOS_ENV")), "development")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return strings.EqualFold(s, "true") || s == "1" || strings.EqualFold(s, "yes")
}
