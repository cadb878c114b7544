package config

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"gotrack/adapters/stats/enrichment"
	"gotrack/adapters/stats/similarity"
	"gotrack/adapters/stats/temporal"
	"gotrack/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig
	Compare  CompareConfig
	Log      LogConfig
}

// AnalysisConfig holds enrichment settings
type AnalysisConfig struct {
	Correction    string
	Threshold     float64
	PopulationMin int
	PopulationMax int
	Parallelism   int
}

// CompareConfig holds similarity settings
type CompareConfig struct {
	TopN   int
	Metric string
	Mode   string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Analysis: *loadAnalysisConfig(),
		Compare:  *loadCompareConfig(),
		Log:      LogConfig{Level: getEnvOrDefault("GOTRACK_LOG_LEVEL", "info")},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Correction:    getEnvOrDefault("GOTRACK_CORRECTION", "bh"),
		Threshold:     getEnvFloatOrDefault("GOTRACK_THRESHOLD", 0.05),
		PopulationMin: getEnvIntOrDefault("GOTRACK_POPULATION_MIN", 5),
		PopulationMax: getEnvIntOrDefault("GOTRACK_POPULATION_MAX", 200),
		Parallelism:   getEnvIntOrDefault("GOTRACK_PARALLELISM", 1),
	}
}

func loadCompareConfig() *CompareConfig {
	return &CompareConfig{
		TopN:   getEnvIntOrDefault("GOTRACK_TOP_N", 5),
		Metric: getEnvOrDefault("GOTRACK_SIMILARITY_METRIC", "jaccard"),
		Mode:   getEnvOrDefault("GOTRACK_COMPARE_MODE", "fixed"),
	}
}

// Validate re-checks the configuration, e.g. after command line overrides
func (c *Config) Validate() error {
	if err := validateConfig(c); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	return nil
}

// TemporalOptions converts the analysis settings for the orchestrator
func (c *Config) TemporalOptions() (temporal.Options, error) {
	correction, err := enrichment.ParseCorrection(c.Analysis.Correction)
	if err != nil {
		return temporal.Options{}, errors.Wrap(err, "invalid correction")
	}
	opts := temporal.DefaultOptions()
	opts.Correction = correction
	opts.Threshold = c.Analysis.Threshold
	opts.PopulationMin = c.Analysis.PopulationMin
	opts.PopulationMax = c.Analysis.PopulationMax
	opts.Parallelism = c.Analysis.Parallelism
	return opts, nil
}

// CompareOptions converts the similarity settings. Reference and
// Propagator are left for the caller.
func (c *Config) CompareOptions() (similarity.CompareOptions, error) {
	metric, err := similarity.ParseMetric(c.Compare.Metric)
	if err != nil {
		return similarity.CompareOptions{}, errors.Wrap(err, "invalid similarity metric")
	}
	mode, err := similarity.ParseMode(c.Compare.Mode)
	if err != nil {
		return similarity.CompareOptions{}, errors.Wrap(err, "invalid comparison mode")
	}
	return similarity.CompareOptions{TopN: c.Compare.TopN, Mode: mode, Metric: metric}, nil
}

func validateConfig(config *Config) error {
	if _, err := enrichment.ParseCorrection(config.Analysis.Correction); err != nil {
		return errors.ConfigInvalid("GOTRACK_CORRECTION must be bonferroni or bh")
	}
	if math.IsNaN(config.Analysis.Threshold) || config.Analysis.Threshold < 0 || config.Analysis.Threshold > 1 {
		return errors.ConfigInvalid("GOTRACK_THRESHOLD must be within [0, 1]")
	}
	if config.Analysis.PopulationMin < 0 || config.Analysis.PopulationMax < 0 {
		return errors.ConfigInvalid("population bounds cannot be negative")
	}
	if config.Analysis.PopulationMax != 0 && config.Analysis.PopulationMax < config.Analysis.PopulationMin {
		return errors.ConfigInvalid("GOTRACK_POPULATION_MAX is below GOTRACK_POPULATION_MIN")
	}
	if config.Analysis.Parallelism < 1 {
		return errors.ConfigInvalid("GOTRACK_PARALLELISM must be at least 1")
	}
	if config.Compare.TopN < 1 {
		return errors.ConfigInvalid("GOTRACK_TOP_N must be positive")
	}
	if _, err := similarity.ParseMetric(config.Compare.Metric); err != nil {
		return errors.ConfigInvalid("GOTRACK_SIMILARITY_METRIC must be jaccard or tversky")
	}
	if _, err := similarity.ParseMode(config.Compare.Mode); err != nil {
		return errors.ConfigInvalid("GOTRACK_COMPARE_MODE must be fixed or proximal")
	}
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return errors.ConfigInvalid("GOTRACK_LOG_LEVEL is not a valid level")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
