package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithEnv(mapEnv(nil)), WithEnvFile(""))
	require.NoError(t, err)

	assert.Equal(t, DefaultAmbientBaseURL, cfg.Ambient.BaseURL)
	assert.Equal(t, "", cfg.Ambient.Model)
	assert.Equal(t, DefaultNousModel, cfg.Nous.Model)
	assert.Equal(t, 100000, cfg.Nous.MaxTokens)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 3100, cfg.PagePort)
	assert.Equal(t, "prod-reports", cfg.ProdReportsDir)
	assert.Equal(t, 3, cfg.Bench.Runs)
	assert.Equal(t, 2, cfg.Bench.Retries)
	assert.Equal(t, 3000*time.Second, cfg.Bench.Timeout)
	assert.Equal(t, 1, cfg.QueueConcurrency)

	tier, pricing := cfg.Bench.SelectedAmbientPricing()
	assert.Equal(t, "standard", tier)
	assert.InDelta(t, 0.35, pricing.InputPerM, 1e-9)
	assert.InDelta(t, 1.71, pricing.OutputPerM, 1e-9)
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "govai.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("port: 4000\nreports_dir: from-yaml\nambient_tier: mini\n"), 0o644))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PORT=5000\nTALLY_API_KEY=from-dotenv\nBENCH_RUNS=5\n"), 0o644))

	cfg, err := Load(
		WithConfigPath(yamlPath),
		WithEnvFile(envPath),
		WithEnv(mapEnv(map[string]string{"BENCH_RUNS": "7", "GOVAI_AMBIENT_API_KEY": "alias-key"})),
		WithOverrides(map[string]any{"PAGE_PORT": 9999}),
	)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "from-yaml", cfg.ReportsDir)
	assert.Equal(t, "from-dotenv", cfg.TallyAPIKey)
	assert.Equal(t, 7, cfg.Bench.Runs)
	assert.Equal(t, 9999, cfg.PagePort)
	assert.Equal(t, "mini", cfg.Bench.AmbientTier)

	tier, pricing := cfg.Bench.SelectedAmbientPricing()
	assert.Equal(t, "mini", tier)
	assert.InDelta(t, 0.5, pricing.OutputPerM, 1e-9)
}

func TestLoadAliasFallback(t *testing.T) {
	cfg, err := Load(
		WithEnvFile(""),
		WithEnv(AliasEnvLookup(mapEnv(map[string]string{"GOVAI_AMBIENT_API_KEY": " k "}), DefaultEnvAliases())),
	)
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Ambient.APIKey)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(WithEnvFile(""), WithEnv(mapEnv(map[string]string{"PORT": "70000"})))
	require.Error(t, err)

	_, err = Load(WithEnvFile(""), WithEnv(mapEnv(map[string]string{"BENCH_RUNS": "0"})))
	require.Error(t, err)

	_, err = Load(WithEnvFile(""), WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}
