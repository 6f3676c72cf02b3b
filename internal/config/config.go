package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Matching strategies
const (
	StrategyLinear   = "linear"
	StrategyHNSW     = "hnsw"
	StrategyPGVector = "pgvector" // candidates ordered by the database, postgres only
)

type Config struct {
	Web      WebConfig      `yaml:"web"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // in addition to localhost, which is always allowed
}

// Addr returns the host:port listen address.
func (c *WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	Threshold      float64 `yaml:"threshold"`       // maximum Euclidean distance (exclusive) for a match
	Dimension      int     `yaml:"dimension"`       // descriptor length produced by the client model
	Strategy       string  `yaml:"strategy"`        // linear, hnsw or pgvector
	HNSWCandidates int     `yaml:"hnsw_candidates"` // neighbours re-scored exactly when strategy is hnsw
	RegisterToken  string  `yaml:"-"`               // optional bearer token protecting registration
}

type DatabaseConfig struct {
	Driver        string `yaml:"driver"`         // memory, postgres, sqlite or mariadb
	URL           string `yaml:"-"`              // connection URL / DSN / file path
	MaxOpenConns  int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns  int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
	HNSWIndexPath string `yaml:"-"`              // Path to persist the HNSW index (optional, rebuilt on startup if empty)
}

type LogConfig struct {
	Format  string `yaml:"format"` // console or json
	Verbose bool   `yaml:"verbose"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive finite float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && !math.IsInf(f, 1) {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean, falling back to defaultVal.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envString returns the environment variable or defaultVal when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping empty entries.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the configuration embedded in defaults.yaml.
func Defaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

// Load returns the defaults overridden by environment variables.
func Load() *Config {
	d := Defaults()

	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
		Auth: AuthConfig{
			Threshold:      envFloat("MATCH_THRESHOLD", d.Auth.Threshold),
			Dimension:      envInt("DESCRIPTOR_DIM", d.Auth.Dimension),
			Strategy:       strings.ToLower(envString("MATCH_STRATEGY", d.Auth.Strategy)),
			HNSWCandidates: envInt("HNSW_CANDIDATES", d.Auth.HNSWCandidates),
			RegisterToken:  os.Getenv("REGISTER_TOKEN"),
		},
		Database: DatabaseConfig{
			Driver:        strings.ToLower(envString("DATABASE_DRIVER", d.Database.Driver)),
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Log: LogConfig{
			Format:  strings.ToLower(envString("LOG_FORMAT", d.Log.Format)),
			Verbose: envBool("LOG_VERBOSE", d.Log.Verbose),
		},
	}
}

// Validate reports configuration that would make the server misbehave.
func (c *Config) Validate() error {
	var errs []error

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Web.Port))
	}
	if math.IsNaN(c.Auth.Threshold) || math.IsInf(c.Auth.Threshold, 0) || c.Auth.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be a positive finite number, got %v", c.Auth.Threshold))
	}
	if c.Auth.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("DESCRIPTOR_DIM must be positive, got %d", c.Auth.Dimension))
	}
	switch c.Auth.Strategy {
	case StrategyLinear, StrategyHNSW:
	case StrategyPGVector:
		if c.Database.Driver != "postgres" {
			errs = append(errs, fmt.Errorf("MATCH_STRATEGY %q requires DATABASE_DRIVER postgres", StrategyPGVector))
		}
	default:
		errs = append(errs, fmt.Errorf("MATCH_STRATEGY must be %q, %q or %q, got %q",
			StrategyLinear, StrategyHNSW, StrategyPGVector, c.Auth.Strategy))
	}
	if c.Database.Driver != "memory" && c.Database.URL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL environment variable is required for driver %q", c.Database.Driver))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
