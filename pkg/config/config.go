// Package config provides configuration loading and management for centerlinemetrics.
// It handles loading configuration from YAML files, .env files and environment
// variables and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"centerlinemetrics/internal/models"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "CLM_"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Extraction parameters
	Extraction struct {
		// Mode is "cumulative" (arc length) or "projected" (single axis)
		Mode string `yaml:"mode"`

		// Axis selects the coordinate used in projected mode: 0/1/2, x/y/z or r/a/s
		Axis string `yaml:"axis"`

		// RadiusArray is the name of the per-point radius array in the input
		RadiusArray string `yaml:"radiusArray"`

		// ResampleStep resamples cumulative profiles at this spacing; 0 keeps the input rows
		ResampleStep float64 `yaml:"resampleStep"`
	} `yaml:"extraction"`

	// Table column names
	Table struct {
		DistanceColumn string `yaml:"distanceColumn"`
		DiameterColumn string `yaml:"diameterColumn"`
	} `yaml:"table"`

	// Plot parameters
	Plot struct {
		// Unit is the physical length unit of the input, shown in axis titles
		Unit string `yaml:"unit"`

		// Color is the series RGB color with components in [0, 1]
		Color []float64 `yaml:"color"`

		// Width and Height are the plot size in inches
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	} `yaml:"plot"`

	// Output files; empty paths are skipped
	Output struct {
		CSV      string `yaml:"csv"`
		Arrow    string `yaml:"arrow"`
		Database string `yaml:"database"`
		Plot     string `yaml:"plot"`
		HTML     string `yaml:"html"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// Level is a zap level name (debug, info, warn, error)
		Level string `yaml:"level"`

		// Format is "console" or "json"
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Server parameters
	Server struct {
		// Addr is the listen address for serve mode
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Extraction.Mode = models.Cumulative.String()
	cfg.Extraction.Axis = ""
	cfg.Extraction.RadiusArray = "Radius"

	cfg.Table.DistanceColumn = "Distance"
	cfg.Table.DiameterColumn = "Diameter"

	cfg.Plot.Unit = "mm"
	cfg.Plot.Color = []float64{0, 0.6, 1.0}
	cfg.Plot.Width = 10
	cfg.Plot.Height = 5

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	cfg.Server.Addr = ":8080"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// LoadEnvFiles loads variables from .env files into the process environment.
// Missing files are ignored; variables already set are not overwritten.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from CLM_* environment variables
// using lookup (os.LookupEnv when nil)
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	strs := map[string]*string{
		"MODE":            &c.Extraction.Mode,
		"AXIS":            &c.Extraction.Axis,
		"RADIUS_ARRAY":    &c.Extraction.RadiusArray,
		"DISTANCE_COLUMN": &c.Table.DistanceColumn,
		"DIAMETER_COLUMN": &c.Table.DiameterColumn,
		"UNIT":            &c.Plot.Unit,
		"CSV":             &c.Output.CSV,
		"ARROW":           &c.Output.Arrow,
		"DATABASE":        &c.Output.Database,
		"PLOT":            &c.Output.Plot,
		"HTML":            &c.Output.HTML,
		"LOG_LEVEL":       &c.Logging.Level,
		"LOG_FORMAT":      &c.Logging.Format,
		"ADDR":            &c.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	nums := map[string]*float64{
		"PLOT_WIDTH":    &c.Plot.Width,
		"PLOT_HEIGHT":   &c.Plot.Height,
		"RESAMPLE_STEP": &c.Extraction.ResampleStep,
	}
	for key, dst := range nums {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = f
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	mode, err := models.ParseDistanceMode(c.Extraction.Mode)
	if err != nil {
		return err
	}
	axis, err := models.ParseAxis(c.Extraction.Axis)
	if err != nil {
		return err
	}
	if mode == models.Projected && axis == models.NoAxis {
		return errors.New("projected mode requires an axis")
	}
	if c.Extraction.ResampleStep < 0 {
		return fmt.Errorf("resample step must not be negative, got %g", c.Extraction.ResampleStep)
	}
	if c.Extraction.ResampleStep > 0 && mode == models.Projected {
		return errors.New("resampling applies to cumulative mode only")
	}
	if c.Table.DistanceColumn == "" || c.Table.DiameterColumn == "" {
		return errors.New("table column names must not be empty")
	}
	if c.Table.DistanceColumn == c.Table.DiameterColumn {
		return fmt.Errorf("distance and diameter columns share the name %q", c.Table.DistanceColumn)
	}
	if len(c.Plot.Color) != 3 {
		return fmt.Errorf("plot color needs 3 components, got %d", len(c.Plot.Color))
	}
	for _, v := range c.Plot.Color {
		if v < 0 || v > 1 {
			return fmt.Errorf("plot color component %v outside [0, 1]", v)
		}
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		return errors.New("plot size must be positive")
	}
	return nil
}

// Mode returns the parsed distance mode
func (c *Config) Mode() (models.DistanceMode, error) {
	return models.ParseDistanceMode(c.Extraction.Mode)
}

// Axis returns the parsed axis, NoAxis when unset
func (c *Config) Axis() (models.Axis, error) {
	return models.ParseAxis(c.Extraction.Axis)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
