// Package config loads and validates the pipeline-wide configuration:
// provider credential sources, run timeouts, retry parameters, the browser
// selector table location, and the on-disk directories the supervisor,
// release store, and video tracker write to.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath, when set, overrides the default pipeline.yaml location.
const EnvConfigPath = "ARIA_PIPELINE_CONFIG"

// Environment variables that override individual fields loaded from YAML.
// These take precedence over the file so a container can tune timeouts
// without rebuilding a config map.
const (
	EnvTMax              = "ARIA_T_MAX"
	EnvTPoll             = "ARIA_T_POLL"
	EnvRetryMaxAttempts  = "ARIA_RETRY_MAX_ATTEMPTS"
	EnvRetryInitialDelay = "ARIA_RETRY_INITIAL_DELAY"
	EnvRetryMultiplier   = "ARIA_RETRY_MULTIPLIER"
	EnvSelectorTablePath = "ARIA_SELECTOR_TABLE_PATH"
	EnvRunStatusDir      = "ARIA_RUN_STATUS_DIR"
	EnvReleaseStoreDir   = "ARIA_RELEASE_STORE_DIR"
	EnvSourceStatsDir    = "ARIA_SOURCE_STATS_DIR"
)

// RetryPolicy mirrors provider.RetryPolicy's shape so the pipeline config
// can carry it end to end without the config package importing provider.
type RetryPolicy struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// PipelineConfig is the fully resolved, validated configuration a
// composition root builds once at startup and passes to every component
// by value or pointer — nothing in this module re-reads the environment
// or a config file after Load returns.
type PipelineConfig struct {
	// ProviderCredentials maps a provider name (e.g. "openai") to the
	// environment variable holding its API key. Mirrors
	// registry.ModelsConfig.APIKeySources so the orchestrator's
	// composition root can resolve credentials the same way the
	// registry does without importing the registry package.
	ProviderCredentials map[string]string `yaml:"provider_credentials"`

	// TMax bounds the total time a Supervisor run may spend polling for
	// approval before the run is treated as timed out.
	TMax time.Duration `yaml:"t_max"`
	// TPoll is the interval between approval-status polls. Must be no
	// greater than TMax/10 so a run never times out after fewer than ten
	// polls.
	TPoll time.Duration `yaml:"t_poll"`

	Retry RetryPolicy `yaml:"retry"`

	// SelectorTablePath points at the YAML file of logical-key to DOM
	// selector mappings the browser package loads into a SelectorTable.
	SelectorTablePath string `yaml:"selector_table_path"`

	// RunStatusDir, ReleaseStoreDir, and SourceStatsDir are the
	// directories the supervisor's runstore, the release store, and the
	// video tracker's stats snapshot write their per-ID JSON documents
	// to, respectively.
	RunStatusDir    string `yaml:"run_status_dir"`
	ReleaseStoreDir string `yaml:"release_store_dir"`
	SourceStatsDir  string `yaml:"source_stats_dir"`
}

// Default returns the built-in configuration used when no file and no
// environment overrides are present. It is always internally valid.
func Default() *PipelineConfig {
	return &PipelineConfig{
		ProviderCredentials: map[string]string{
			"openai":     "OPENAI_API_KEY",
			"gemini":     "GEMINI_API_KEY",
			"openrouter": "OPENROUTER_API_KEY",
			"anthropic":  "ANTHROPIC_API_KEY",
			"deepseek":   "DEEPSEEK_API_KEY",
			"grok":       "GROK_API_KEY",
			"mistral":    "MISTRAL_API_KEY",
		},
		TMax:  30 * time.Minute,
		TPoll: 30 * time.Second,
		Retry: RetryPolicy{
			MaxAttempts:   3,
			InitialDelay:  time.Second,
			BackoffFactor: 2.0,
		},
		SelectorTablePath: "selectors.yaml",
		RunStatusDir:      "data/runs",
		ReleaseStoreDir:   "data/releases",
		SourceStatsDir:    "data/source-stats",
	}
}

// Load resolves the pipeline configuration from, in increasing precedence:
// the built-in defaults, an optional YAML file, and individual environment
// variable overrides. path is the YAML file location; if empty,
// EnvConfigPath is consulted, and if that is also unset no file is read and
// Load proceeds with defaults plus any environment overrides. The result is
// validated before being returned — validation failures are reported here,
// never at the point a component first uses a bad value.
func Load(path string) (*PipelineConfig, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading pipeline config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing pipeline config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *PipelineConfig) {
	if v, ok := durationFromEnv(EnvTMax); ok {
		cfg.TMax = v
	}
	if v, ok := durationFromEnv(EnvTPoll); ok {
		cfg.TPoll = v
	}
	if v, ok := intFromEnv(EnvRetryMaxAttempts); ok {
		cfg.Retry.MaxAttempts = v
	}
	if v, ok := durationFromEnv(EnvRetryInitialDelay); ok {
		cfg.Retry.InitialDelay = v
	}
	if v, ok := floatFromEnv(EnvRetryMultiplier); ok {
		cfg.Retry.BackoffFactor = v
	}
	if v := os.Getenv(EnvSelectorTablePath); v != "" {
		cfg.SelectorTablePath = v
	}
	if v := os.Getenv(EnvRunStatusDir); v != "" {
		cfg.RunStatusDir = v
	}
	if v := os.Getenv(EnvReleaseStoreDir); v != "" {
		cfg.ReleaseStoreDir = v
	}
	if v := os.Getenv(EnvSourceStatsDir); v != "" {
		cfg.SourceStatsDir = v
	}
}

func durationFromEnv(key string) (time.Duration, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return d, true
}

func intFromEnv(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return 0, false
	}
	return v, true
}

func floatFromEnv(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	var v float64
	if _, err := fmt.Sscanf(raw, "%g", &v); err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks the invariants every component relies on at construction
// time rather than at point of use: T_poll must leave room for at least ten
// polls within T_max, retry parameters must be usable, and every directory
// field must be set.
func (c *PipelineConfig) Validate() error {
	if c.TMax <= 0 {
		return fmt.Errorf("pipeline config: t_max must be positive, got %s", c.TMax)
	}
	if c.TPoll <= 0 {
		return fmt.Errorf("pipeline config: t_poll must be positive, got %s", c.TPoll)
	}
	if c.TPoll > c.TMax/10 {
		return fmt.Errorf("pipeline config: t_poll (%s) must be <= t_max/10 (%s)", c.TPoll, c.TMax/10)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("pipeline config: retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("pipeline config: retry.initial_delay must be positive, got %s", c.Retry.InitialDelay)
	}
	if c.Retry.BackoffFactor < 1.0 {
		return fmt.Errorf("pipeline config: retry.backoff_factor must be >= 1.0, got %g", c.Retry.BackoffFactor)
	}
	if c.SelectorTablePath == "" {
		return fmt.Errorf("pipeline config: selector_table_path must be set")
	}
	if c.RunStatusDir == "" {
		return fmt.Errorf("pipeline config: run_status_dir must be set")
	}
	if c.ReleaseStoreDir == "" {
		return fmt.Errorf("pipeline config: release_store_dir must be set")
	}
	if c.SourceStatsDir == "" {
		return fmt.Errorf("pipeline config: source_stats_dir must be set")
	}
	return nil
}
