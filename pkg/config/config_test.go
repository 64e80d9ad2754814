package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"centerlinemetrics/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, models.Cumulative, mode)

	axis, err := cfg.Axis()
	require.NoError(t, err)
	assert.Equal(t, models.NoAxis, axis)

	assert.Equal(t, "Distance", cfg.Table.DistanceColumn)
	assert.Equal(t, "Diameter", cfg.Table.DiameterColumn)
	assert.Equal(t, []float64{0, 0.6, 1.0}, cfg.Plot.Color)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	// Missing file yields defaults
	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(dir, "centerline.yaml")
	body := "extraction:\n  mode: projected\n  axis: S\nplot:\n  unit: cm\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	mode, _ := cfg.Mode()
	axis, _ := cfg.Axis()
	assert.Equal(t, models.Projected, mode)
	assert.Equal(t, models.AxisThird, axis)
	assert.Equal(t, "cm", cfg.Plot.Unit)
	// Unset keys keep their defaults
	assert.Equal(t, "Radius", cfg.Extraction.RadiusArray)

	require.NoError(t, os.WriteFile(path, []byte("extraction: [\n"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CLM_MODE":          "projected",
		"CLM_AXIS":          "1",
		"CLM_DATABASE":      "runs.db",
		"CLM_PLOT_WIDTH":    "12.5",
		"CLM_LOG_LEVEL":     "debug",
		"CLM_RESAMPLE_STEP": "0.5",
		"UNRELATED_VALUE":   "x",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "projected", cfg.Extraction.Mode)
	assert.Equal(t, "1", cfg.Extraction.Axis)
	assert.Equal(t, "runs.db", cfg.Output.Database)
	assert.Equal(t, 12.5, cfg.Plot.Width)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 0.5, cfg.Extraction.ResampleStep)
	assert.Error(t, cfg.Validate(), "resampling a projected profile")

	cfg.Extraction.Mode = "cumulative"
	assert.NoError(t, cfg.Validate())

	env["CLM_PLOT_HEIGHT"] = "tall"
	assert.Error(t, DefaultConfig().ApplyEnv(lookup))
}

func TestLoadEnvFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CLM_TEST_ENV_FILE=loaded\n"), 0644))
	t.Setenv("CLM_TEST_ENV_FILE", "")
	os.Unsetenv("CLM_TEST_ENV_FILE")

	require.NoError(t, LoadEnvFiles(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("CLM_TEST_ENV_FILE"))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"bad mode":           func(c *Config) { c.Extraction.Mode = "radial" },
		"bad axis":           func(c *Config) { c.Extraction.Axis = "w" },
		"projected no axis":  func(c *Config) { c.Extraction.Mode = "projected" },
		"same columns":       func(c *Config) { c.Table.DiameterColumn = c.Table.DistanceColumn },
		"empty column":       func(c *Config) { c.Table.DistanceColumn = "" },
		"short color":        func(c *Config) { c.Plot.Color = []float64{1, 1} },
		"color range":        func(c *Config) { c.Plot.Color = []float64{0, 2, 0} },
		"zero size":          func(c *Config) { c.Plot.Width = 0 },
		"negative step":      func(c *Config) { c.Extraction.ResampleStep = -1 },
		"projected resample": func(c *Config) { c.Extraction.Mode, c.Extraction.Axis, c.Extraction.ResampleStep = "projected", "z", 1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
