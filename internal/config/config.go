package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the docdex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Engine    EngineConfig    `yaml:"engine"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Semantic  SemanticConfig  `yaml:"semantic"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EngineConfig holds index and query execution settings.
type EngineConfig struct {
	Shards                 int                `yaml:"shards"`
	ExpansionCap           int                `yaml:"expansion_cap"`
	QueryTimeoutMs         int                `yaml:"query_timeout_ms"`
	CursorOffsetThreshold  int                `yaml:"cursor_offset_threshold"`
	SnippetWindowTokens    int                `yaml:"snippet_window_tokens"`
	SnippetsPerField       int                `yaml:"snippets_per_field"`
	NearDuplicateThreshold float64            `yaml:"near_duplicate_threshold"`
	FieldWeights           map[string]float64 `yaml:"field_weights"`
}

// AnalyticsConfig holds the Redis analytics sink settings.
type AnalyticsConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Stream   string   `yaml:"stream"`
	MaxLen   int64    `yaml:"max_len"`
}

// SemanticConfig holds the embedding collaborator settings.
type SemanticConfig struct {
	Enabled           bool    `yaml:"enabled"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	TopK              int     `yaml:"top_k"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Engine.Shards <= 0 {
		c.Engine.Shards = 8
	}
	if c.Engine.ExpansionCap <= 0 {
		c.Engine.ExpansionCap = 64
	}
	if c.Engine.QueryTimeoutMs <= 0 {
		c.Engine.QueryTimeoutMs = 5000
	}
	if c.Engine.CursorOffsetThreshold <= 0 {
		c.Engine.CursorOffsetThreshold = 10000
	}
	if c.Engine.SnippetWindowTokens <= 0 {
		c.Engine.SnippetWindowTokens = 30
	}
	if c.Engine.SnippetsPerField <= 0 {
		c.Engine.SnippetsPerField = 3
	}
	if c.Engine.NearDuplicateThreshold <= 0 {
		c.Engine.NearDuplicateThreshold = 0.9
	}
	if c.Analytics.Stream == "" {
		c.Analytics.Stream = "docdex:analytics"
	}
	if c.Analytics.MaxLen <= 0 {
		c.Analytics.MaxLen = 100000
	}
	if c.Semantic.RequestsPerSecond <= 0 {
		c.Semantic.RequestsPerSecond = 10
	}
	if c.Semantic.Burst <= 0 {
		c.Semantic.Burst = 5
	}
	if c.Semantic.TopK <= 0 {
		c.Semantic.TopK = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Engine.NearDuplicateThreshold > 1 {
		return fmt.Errorf(
			"engine.near_duplicate_threshold must be in (0, 1], got %v",
			c.Engine.NearDuplicateThreshold,
		)
	}
	for field, w := range c.Engine.FieldWeights {
		if w < 0 {
			return fmt.Errorf("engine.field_weights.%s must be non-negative, got %v", field, w)
		}
	}
	if c.Analytics.Enabled && len(c.Analytics.Addrs) == 0 {
		return fmt.Errorf("analytics.addrs is required when analytics is enabled")
	}
	if c.Semantic.Enabled {
		if c.Semantic.APIKey == "" {
			return fmt.Errorf("semantic.api_key is required when semantic search is enabled")
		}
		if c.Semantic.Model == "" {
			return fmt.Errorf("semantic.model is required when semantic search is enabled")
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
