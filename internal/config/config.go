package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
)

// Middleware names understood by the HTTP layer. Index 0 of a middleware
// list is the outermost handler.
const (
	MiddlewareSecurity     = "security"
	MiddlewareStatic       = "static"
	MiddlewareRequestID    = "request_id"
	MiddlewareSession      = "session"
	MiddlewareRecovery     = "recovery"
	MiddlewareLogging      = "logging"
	MiddlewareRateLimit    = "rate_limit"
	MiddlewareCORS         = "cors"
	MiddlewareCSRF         = "csrf"
	MiddlewareClickjacking = "clickjacking"
)

var defaultMiddleware = []string{
	MiddlewareSecurity,
	MiddlewareRequestID,
	MiddlewareSession,
	MiddlewareRecovery,
	MiddlewareLogging,
	MiddlewareRateLimit,
	MiddlewareCSRF,
	MiddlewareClickjacking,
}

// Config aggregates the base configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	BaseDir    string         `yaml:"base_dir"`
	Middleware []string       `yaml:"middleware"`
	Server     ServerConfig   `yaml:"server"`
	Security   SecurityConfig `yaml:"security"`
}

// ServerConfig holds HTTP server knobs.
type ServerConfig struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    time.Duration `yaml:"read_header_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	EnableRequestLogging bool          `yaml:"enable_request_logging"`
	RateLimitRPS         float64       `yaml:"rate_limit_rps"`
	RateLimitBurst       int           `yaml:"rate_limit_burst"`
	// SecureProxySSLHeader names a header set by a trusted proxy to "https"
	// for requests that arrived over TLS. Empty disables the check.
	SecureProxySSLHeader string `yaml:"secure_proxy_ssl_header"`
}

// SecurityConfig holds the HTTP security flags. The zero value is the
// permissive base; the production overlay hardens it.
type SecurityConfig struct {
	SecureBrowserXSSFilter      bool     `yaml:"secure_browser_xss_filter"`
	SecureContentTypeNosniff    bool     `yaml:"secure_content_type_nosniff"`
	SecureHSTSIncludeSubdomains bool     `yaml:"secure_hsts_include_subdomains"`
	SecureHSTSSeconds           int      `yaml:"secure_hsts_seconds"`
	SecureHSTSPreload           bool     `yaml:"secure_hsts_preload"`
	SecureRedirectExempt        []string `yaml:"secure_redirect_exempt"`
	SecureSSLRedirect           bool     `yaml:"secure_ssl_redirect"`
	SecureSSLHost               string   `yaml:"secure_ssl_host"`
	SecureReferrerPolicy        string   `yaml:"secure_referrer_policy"`
	SessionCookieSecure         bool     `yaml:"session_cookie_secure"`
	CSRFCookieSecure            bool     `yaml:"csrf_cookie_secure"`
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	BaseDir              string        `yaml:"base_dir"`
	Middleware           []string      `yaml:"middleware"`
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	SecureProxySSLHeader string        `yaml:"secure_proxy_ssl_header"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	ReferrerPolicy       string        `yaml:"referrer_policy"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	BaseDir        *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration using the process environment.
func Load(overrides *CLIOverrides) (Config, error) {
	return LoadFrom(OSEnv{}, overrides)
}

// LoadFrom extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func LoadFrom(env Env, overrides *CLIOverrides) (Config, error) {
	cfg, err := defaultConfig()
	if err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	applyEnvConfig(&cfg, env)

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return Config{}, &ConfigurationError{Key: "base_dir", Value: cfg.BaseDir, Err: err}
	}
	cfg.BaseDir = abs

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultMiddleware returns a copy of the base middleware order.
func DefaultMiddleware() []string {
	out := make([]string, len(defaultMiddleware))
	copy(out, defaultMiddleware)
	return out
}

// defaultConfig returns a Config with default values.
func defaultConfig() (Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("resolve working directory: %w", err)
	}
	return Config{
		BaseDir:    wd,
		Middleware: DefaultMiddleware(),
		Server: ServerConfig{
			Port:                 defaultPort,
			ShutdownGracePeriod:  10 * time.Second,
			ReadHeaderTimeout:    5 * time.Second,
			WriteTimeout:         15 * time.Second,
			IdleTimeout:          60 * time.Second,
			EnableRequestLogging: true,
			RateLimitRPS:         defaultRateLimitRPS,
			RateLimitBurst:       defaultRateLimitBurst,
		},
		Security: SecurityConfig{
			SecureReferrerPolicy: "same-origin",
		},
	}, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.BaseDir != "" {
		cfg.BaseDir = yamlCfg.BaseDir
	}

	if len(yamlCfg.Middleware) > 0 {
		cfg.Middleware = append([]string(nil), yamlCfg.Middleware...)
	}

	if yamlCfg.Port != "" {
		cfg.Server.Port = yamlCfg.Port
	}

	setDuration(&cfg.Server.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	setDuration(&cfg.Server.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	setDuration(&cfg.Server.WriteTimeout, yamlCfg.WriteTimeout)
	setDuration(&cfg.Server.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.Server.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.SecureProxySSLHeader != "" {
		cfg.Server.SecureProxySSLHeader = yamlCfg.SecureProxySSLHeader
	}

	if yamlCfg.RateLimit.RPS != nil && *yamlCfg.RateLimit.RPS >= 0 {
		cfg.Server.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}

	if yamlCfg.RateLimit.Burst != nil && *yamlCfg.RateLimit.Burst >= 0 {
		cfg.Server.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	if yamlCfg.ReferrerPolicy != "" {
		cfg.Security.SecureReferrerPolicy = yamlCfg.ReferrerPolicy
	}
}

func setDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config, env Env) {
	if port := strings.TrimSpace(String(env, "PORT", "")); port != "" {
		cfg.Server.Port = port
	}

	if dir := strings.TrimSpace(String(env, "BASE_DIR", "")); dir != "" {
		cfg.BaseDir = dir
	}

	if header := strings.TrimSpace(String(env, "SECURE_PROXY_SSL_HEADER", "")); header != "" {
		cfg.Server.SecureProxySSLHeader = header
	}

	if rps := strings.TrimSpace(String(env, "RATE_LIMIT_RPS", "")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.Server.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(String(env, "RATE_LIMIT_BURST", "")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.Server.RateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Server.Port = *overrides.Port
	}

	if overrides.BaseDir != nil && *overrides.BaseDir != "" {
		cfg.BaseDir = *overrides.BaseDir
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.Server.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.Server.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.BaseDir == "" {
		return &ConfigurationError{Key: "base_dir", Reason: "must not be empty"}
	}
	if len(cfg.Middleware) == 0 {
		return &ConfigurationError{Key: "middleware", Reason: "must contain at least one entry"}
	}
	if cfg.Server.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.Server.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}
