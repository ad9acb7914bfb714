package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Travis-Britz/ddnsync"
)

// Config is the daemon configuration.
// Values come from the YAML file first and are then overridden by DDNS_* environment variables.
type Config struct {
	ZoneID     string `yaml:"zone_id"`
	APIToken   string `yaml:"api_token"`
	TokenFile  string `yaml:"token_file"`
	RecordName string `yaml:"record_name"`
	Proxied    bool   `yaml:"proxied"`
	TTL        int    `yaml:"ttl"`
	IPv6       bool   `yaml:"ipv6"`
	Comment    string `yaml:"comment"`

	Retries         int           `yaml:"retries"`
	BackoffUnit     time.Duration `yaml:"backoff_unit"`
	Interval        time.Duration `yaml:"interval"`
	ResolveTimeout  time.Duration `yaml:"resolve_timeout"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	Source     string `yaml:"source"`
	IPv4URL    string `yaml:"ipv4_url"`
	IPv6URL    string `yaml:"ipv6_url"`
	Interface  string `yaml:"interface"`
	StaticIPv4 string `yaml:"static_ipv4"`
	StaticIPv6 string `yaml:"static_ipv6"`

	AuditLog string        `yaml:"audit_log"`
	Listen   string        `yaml:"listen"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Address sources accepted by the source key.
const (
	SourceWeb       = "web"
	SourceDNS       = "dns"
	SourceInterface = "interface"
	SourceStatic    = "static"
)

const defaultAuditLog = "logs/ddns-log.json"

func defaultConfig() Config {
	return Config{
		TTL:             1,
		Comment:         "managed by ddns",
		Retries:         ddns.DefaultAttempts,
		BackoffUnit:     ddns.DefaultBackoffUnit,
		Interval:        ddns.DefaultInterval,
		ResolveTimeout:  ddns.DefaultResolveTimeout,
		ProviderTimeout: ddns.DefaultProviderTimeout,
		Source:          SourceWeb,
		IPv4URL:         ddns.DefaultIPv4URL,
		IPv6URL:         ddns.DefaultIPv6URL,
		AuditLog:        defaultAuditLog,
		Listen:          ":8080",
		Metrics:         MetricsConfig{Address: ":9100"},
		LogLevel:        "info",
	}
}

// ConfigError lists every required key that has no value.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

func (e *ConfigError) Unwrap() error { return ddns.ErrConfiguration }

// LoadConfig reads the YAML file at path (if any) over the defaults and applies environment overrides.
// The result is not validated.
func LoadConfig(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: unable to read config file: %w", ddns.ErrConfiguration, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: failed to unmarshal config YAML: %w", ddns.ErrConfiguration, err)
		}
	}
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if err := cfg.applyEnv(lookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	strs := map[string]*string{
		"DDNS_ZONE_ID":     &c.ZoneID,
		"DDNS_API_TOKEN":   &c.APIToken,
		"DDNS_TOKEN_FILE":  &c.TokenFile,
		"DDNS_RECORD_NAME": &c.RecordName,
		"DDNS_COMMENT":     &c.Comment,
		"DDNS_SOURCE":      &c.Source,
		"DDNS_IPV4_URL":    &c.IPv4URL,
		"DDNS_IPV6_URL":    &c.IPv6URL,
		"DDNS_INTERFACE":   &c.Interface,
		"DDNS_STATIC_IPV4": &c.StaticIPv4,
		"DDNS_STATIC_IPV6": &c.StaticIPv6,
		"DDNS_AUDIT_LOG":   &c.AuditLog,
		"DDNS_LISTEN":      &c.Listen,
		"DDNS_LOG_LEVEL":   &c.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := lookupEnv(name); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"DDNS_PROXIED": &c.Proxied,
		"DDNS_IPV6":    &c.IPv6,
	}
	for name, dst := range bools {
		v, ok := lookupEnv(name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ddns.ErrConfiguration, name, err)
		}
		*dst = b
	}

	ints := map[string]*int{
		"DDNS_TTL":     &c.TTL,
		"DDNS_RETRIES": &c.Retries,
	}
	for name, dst := range ints {
		v, ok := lookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ddns.ErrConfiguration, name, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"DDNS_BACKOFF_UNIT":     &c.BackoffUnit,
		"DDNS_INTERVAL":         &c.Interval,
		"DDNS_RESOLVE_TIMEOUT":  &c.ResolveTimeout,
		"DDNS_PROVIDER_TIMEOUT": &c.ProviderTimeout,
	}
	for name, dst := range durations {
		v, ok := lookupEnv(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ddns.ErrConfiguration, name, err)
		}
		*dst = d
	}

	// Setting an address is enough to turn the metrics listener on.
	if v, ok := lookupEnv("DDNS_METRICS_ADDR"); ok && v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = v
	}
	return nil
}

// Validate reports every missing required key at once as a *ConfigError.
// Other problems are wrapped in ddns.ErrConfiguration.
func (c Config) Validate() error {
	var missing []string
	if c.ZoneID == "" {
		missing = append(missing, "zone_id")
	}
	if c.APIToken == "" && c.TokenFile == "" {
		missing = append(missing, "api_token")
	}
	if c.RecordName == "" {
		missing = append(missing, "record_name")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}

	var errs []error
	if !strings.Contains(c.RecordName, ".") {
		errs = append(errs, fmt.Errorf("record_name %q must have at least one dot", c.RecordName))
	}
	if c.TTL < 1 {
		errs = append(errs, fmt.Errorf("ttl must be positive; got %d", c.TTL))
	}
	if c.Retries < 1 {
		errs = append(errs, fmt.Errorf("retries must be at least 1; got %d", c.Retries))
	}
	if c.Interval <= 0 || c.ResolveTimeout <= 0 || c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("interval and timeouts must be positive"))
	}
	switch c.Source {
	case SourceWeb, SourceDNS, SourceInterface:
	case SourceStatic:
		if c.StaticIPv4 == "" && c.StaticIPv6 == "" {
			errs = append(errs, errors.New("static source needs static_ipv4 or static_ipv6"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ddns.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Token returns the API token, reading it from the token file when it isn't set directly.
func (c Config) Token() (string, error) {
	if c.APIToken != "" {
		return c.APIToken, nil
	}
	_, err := os.Stat(c.TokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: token file %q does not exist; run \"ddnscf setup\" to create it", ddns.ErrConfiguration, c.TokenFile)
	}
	if err := verifyPermissions(c.TokenFile); err != nil {
		return "", fmt.Errorf("%w: %w", ddns.ErrConfiguration, err)
	}
	key, err := readKey(c.TokenFile)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ddns.ErrConfiguration, err)
	}
	return key, nil
}
