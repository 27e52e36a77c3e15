package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 0.92, cfg.Memory.FollowerThreshold)
	assert.Equal(t, 0.75, cfg.Memory.MixedThreshold)
}

func TestValidate_RejectsNegativeBudget(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.BudgetUSD = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeThreshold(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Memory.FollowerThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("LLMOS_WORKSPACE", t.TempDir())
	t.Setenv("LLMOS_BUDGET", "42.5")
	t.Setenv("LLMOS_MODEL", "test-model")
	t.Setenv("LLMOS_ENABLE_LLM_MATCHING", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 42.5, cfg.BudgetUSD)
	assert.Equal(t, "test-model", cfg.Model)
	assert.False(t, cfg.Memory.EnableLLMMatching)
}

func TestDirs_NestUnderWorkspace(t *testing.T) {
	t.Parallel()
	cfg := Config{Workspace: "/tmp/ws"}
	assert.Equal(t, "/tmp/ws/memories/traces", cfg.TracesDir())
	assert.Equal(t, "/tmp/ws/projects", cfg.ProjectsDir())
	assert.Equal(t, "/tmp/ws/spend_log.json", cfg.SpendLogPath())
}
