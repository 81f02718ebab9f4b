// Package config loads the runner configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable overriding the default config path.
const EnvPath = "S3CONFORM_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath is set.
const DefaultPath = "config.yaml"

// Config is the decoded configuration file.
type Config struct {
	ClientConfig ClientConfig              `mapstructure:"client_config"`
	Identities   map[string]map[string]any `mapstructure:"identities"`

	SuitesDir       string   `mapstructure:"suites_dir"`
	LoadYAMLSuites  bool     `mapstructure:"load_yaml_suites"`
	LoadXMindSuites bool     `mapstructure:"load_xmind_suites"`
	XMindBuckets    []string `mapstructure:"xmind_buckets"`
	ExportSuites    bool     `mapstructure:"export_suites"`

	Concurrency     int               `mapstructure:"concurrency"`
	HideEnabled     bool              `mapstructure:"hide_enabled"`
	AutoClean       bool              `mapstructure:"auto_clean"`
	Teardown        map[string]any    `mapstructure:"teardown"`
	CustomHeaders   map[string]string `mapstructure:"custom_headers"`
	GlobalVariables map[string]any    `mapstructure:"global_variables"`
	BucketPrefix    string            `mapstructure:"bucket_prefix"`

	SuiteFilters Filters       `mapstructure:"suite_filters"`
	Exporters    Exporters     `mapstructure:"exporters"`
	ReportStore  StoreConfig   `mapstructure:"report_store"`
	Counter      CounterConfig `mapstructure:"counter"`
	Lock         LockConfig    `mapstructure:"lock"`
	LogLevel     string        `mapstructure:"log_level"`
}

// ClientConfig holds the properties shared by every client binding. Unknown
// keys are kept in Extra and passed through to the binding.
type ClientConfig struct {
	Driver         string         `mapstructure:"driver"`
	EndpointURL    string         `mapstructure:"endpoint_url"`
	RegionName     string         `mapstructure:"region_name"`
	UseSSL         bool           `mapstructure:"use_ssl"`
	PathStyle      bool           `mapstructure:"path_style"`
	ConnectTimeout time.Duration  `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration  `mapstructure:"read_timeout"`
	MaxAttempts    int            `mapstructure:"max_attempts"`
	Extra          map[string]any `mapstructure:",remain"`
}

// Filters holds suite include/exclude patterns.
type Filters struct {
	Includes []string `mapstructure:"includes"`
	Excludes []string `mapstructure:"excludes"`
}

// Exporters configures report outputs.
type Exporters struct {
	XMind *XMindExporter `mapstructure:"xmind"`
}

// XMindExporter writes the mind-map report.
type XMindExporter struct {
	FilePath      string   `mapstructure:"file_path"`
	IncludeFields []string `mapstructure:"include_fields"`
}

// StoreConfig selects the report store.
type StoreConfig struct {
	Kind     string        `mapstructure:"kind"`
	Path     string        `mapstructure:"path"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	Redact   []string      `mapstructure:"redact"`
}

// CounterConfig selects the shared ordinal counter.
type CounterConfig struct {
	Kind string `mapstructure:"kind"`
	Addr string `mapstructure:"addr"`
	Key  string `mapstructure:"key"`
}

// LockConfig enables the per-service distributed run lock.
type LockConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// Default returns a configuration with every optional key at its default.
func Default() *Config {
	return &Config{
		ClientConfig:   ClientConfig{Driver: "s3", UseSSL: true, MaxAttempts: 3},
		SuitesDir:      "suites",
		LoadYAMLSuites: true,
		XMindBuckets:   []string{domain.BucketPass, domain.BucketFailed, domain.BucketSkipped},
		Concurrency:    5,
		HideEnabled:    true,
		BucketPrefix:   "1-aws-s3-tests-bucket",
		Exporters: Exporters{XMind: &XMindExporter{
			FilePath: "report.xmind",
		}},
		ReportStore: StoreConfig{Kind: "memory", Prefix: "s3conform:"},
		Counter:     CounterConfig{Kind: "memory", Key: "s3conform:ordinal"},
		Lock:        LockConfig{TTL: 30 * time.Minute},
		LogLevel:    "info",
	}
}

// ResolvePath picks the config path: the explicit flag, then EnvPath, then
// DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads and decodes the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &domain.ConfigurationError{Reason: "invalid yaml", Err: err}
	}
	for _, key := range []string{"client_config", "identities"} {
		if _, ok := raw[key]; !ok {
			return nil, &domain.ConfigurationError{Field: key, Reason: "required key missing"}
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, &domain.ConfigurationError{Reason: "cannot decode", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes and checks the decoded values.
func (c *Config) Validate() error {
	if len(c.Identities) == 0 {
		return &domain.ConfigurationError{Field: "identities", Reason: "at least one identity is required"}
	}
	for name, props := range c.Identities {
		if props == nil {
			c.Identities[name] = map[string]any{}
		}
	}
	switch c.ClientConfig.Driver {
	case "s3", "memory":
	default:
		return &domain.ConfigurationError{Field: "client_config.driver", Reason: "unknown driver " + c.ClientConfig.Driver}
	}
	if c.Concurrency <= 0 {
		c.Concurrency = Default().Concurrency
	}

	var errs []error
	for i, b := range c.XMindBuckets {
		b = strings.ToUpper(strings.TrimSpace(b))
		if !slices.Contains([]string{domain.BucketPass, domain.BucketFailed, domain.BucketSkipped}, b) {
			errs = append(errs, &domain.ConfigurationError{Field: "xmind_buckets", Reason: "unknown bucket " + b})
		}
		c.XMindBuckets[i] = b
	}
	switch c.ReportStore.Kind {
	case "memory", "file", "redis":
	default:
		errs = append(errs, &domain.ConfigurationError{Field: "report_store.kind", Reason: "unknown store " + c.ReportStore.Kind})
	}
	if c.ReportStore.Kind == "file" && c.ReportStore.Path == "" {
		errs = append(errs, &domain.ConfigurationError{Field: "report_store.path", Reason: "required for the file store"})
	}
	switch c.Counter.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, &domain.ConfigurationError{Field: "counter.kind", Reason: "unknown counter " + c.Counter.Kind})
	}
	return errors.Join(errs...)
}

// Properties flattens the client configuration into binding properties.
func (c ClientConfig) Properties() map[string]any {
	props := make(map[string]any, len(c.Extra)+8)
	for k, v := range c.Extra {
		props[k] = v
	}
	props["driver"] = c.Driver
	props["use_ssl"] = c.UseSSL
	props["path_style"] = c.PathStyle
	props["max_attempts"] = c.MaxAttempts
	if c.EndpointURL != "" {
		props["endpoint_url"] = c.EndpointURL
	}
	if c.RegionName != "" {
		props["region_name"] = c.RegionName
	}
	if c.ConnectTimeout > 0 {
		props["connect_timeout"] = c.ConnectTimeout.String()
	}
	if c.ReadTimeout > 0 {
		props["read_timeout"] = c.ReadTimeout.String()
	}
	return props
}

// TeardownCase returns the configured teardown override, or nil.
func (c *Config) TeardownCase() (*domain.CaseNode, error) {
	if len(c.Teardown) == 0 {
		return nil, nil
	}
	out, err := yaml.Marshal(c.Teardown)
	if err != nil {
		return nil, err
	}
	var tc domain.CaseNode
	if err := yaml.Unmarshal(out, &tc); err != nil {
		return nil, &domain.ConfigurationError{Field: "teardown", Reason: "not a case", Err: err}
	}
	if tc.Operation == "" {
		return nil, &domain.ConfigurationError{Field: "teardown", Reason: "operation is required"}
	}
	return &tc, nil
}
