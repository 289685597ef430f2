// Package config loads trustcheck settings from defaults, an optional
// YAML file, TRUSTCHECK_* environment variables and bound CLI flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/trustcheck/internal/fingerprint"
	"github.com/FranksOps/trustcheck/internal/report"
	"github.com/FranksOps/trustcheck/internal/serp"
	"github.com/FranksOps/trustcheck/pkg/useragent"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TRUSTCHECK_PROVIDER.
const EnvPrefix = "TRUSTCHECK"

// Config is the full application configuration.
type Config struct {
	Provider    string `mapstructure:"provider"`
	Language    string `mapstructure:"language"`
	FailOnEmpty bool   `mapstructure:"fail_on_empty"`
	Concurrency int    `mapstructure:"concurrency"`
	MaxResults  int    `mapstructure:"max_results"`
	Format      string `mapstructure:"format"`

	Log        LogConfig      `mapstructure:"log"`
	Fetch      FetchConfig    `mapstructure:"fetch"`
	Bing       EndpointConfig `mapstructure:"bing"`
	DuckDuckGo EndpointConfig `mapstructure:"duckduckgo"`
	Server     ServerConfig   `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FetchConfig controls outbound requests made by scraping providers.
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Fingerprint    string        `mapstructure:"fingerprint"`
	UserAgents     []string      `mapstructure:"user_agents"`
	UserAgentOrder string        `mapstructure:"user_agent_order"`
	Proxies        []string      `mapstructure:"proxies"`
	ProxyFile      string        `mapstructure:"proxy_file"`
	CookieJar      bool          `mapstructure:"cookie_jar"`
}

// EndpointConfig overrides a provider's search URL.
type EndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// New returns a viper instance with defaults and environment lookup set up.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("provider", serp.ProviderPlaceholder)
	v.SetDefault("language", serp.DefaultLanguage)
	v.SetDefault("fail_on_empty", false)
	v.SetDefault("concurrency", 1)
	v.SetDefault("max_results", serp.DefaultMaxResults)
	v.SetDefault("format", report.FormatJSON)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.fingerprint", string(fingerprint.ProfileChrome))
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.user_agent_order", string(useragent.OrderRoundRobin))
	v.SetDefault("fetch.proxies", []string{})
	v.SetDefault("fetch.proxy_file", "")
	v.SetDefault("fetch.cookie_jar", true)
	v.SetDefault("bing.base_url", "")
	v.SetDefault("duckduckgo.base_url", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be caught at decode time.
func (c *Config) Validate() error {
	var errs []error
	if !serp.IsKnown(c.Provider) {
		errs = append(errs, fmt.Errorf("provider %q: %w", c.Provider, serp.ErrUnknownProvider))
	}
	if _, err := fingerprint.ParseProfile(c.Fetch.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	if _, err := useragent.ParseOrder(c.Fetch.UserAgentOrder); err != nil {
		errs = append(errs, err)
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("max_results must be positive, got %d", c.MaxResults))
	}
	if !validFormat(c.Format) {
		errs = append(errs, fmt.Errorf("unknown format %q", c.Format))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func validFormat(f string) bool {
	for _, known := range report.Formats() {
		if f == known {
			return true
		}
	}
	return false
}
