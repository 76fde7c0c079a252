package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nholik/rauc-health/internal/health"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format selects the policy file decoder.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Error reports a configuration source that could not be read or parsed.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s config file %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HealthConfig is the decoded health policy file.
type HealthConfig struct {
	RequiredServices []string
	OptionalServices []string
	IgnoreExact      []string
	IgnorePrefixes   []string
	// Runlevel overrides the runtime runlevel when non-empty.
	Runlevel string
}

// policyFile distinguishes absent keys (nil) from explicitly empty lists.
type policyFile struct {
	RequiredServices *[]string `toml:"required_services" yaml:"required_services"`
	OptionalServices *[]string `toml:"optional_services" yaml:"optional_services"`
	IgnoreExact      *[]string `toml:"ignore_exact" yaml:"ignore_exact"`
	IgnorePrefixes   *[]string `toml:"ignore_prefixes" yaml:"ignore_prefixes"`
	Runlevel         *string   `toml:"runlevel" yaml:"runlevel"`
}

// DefaultIgnoreExact returns the services ignored by name unless configured:
// one-shot units that never stay started.
func DefaultIgnoreExact() []string {
	return []string{"time-first-boot", "local"}
}

// DefaultIgnorePrefixes returns the console login prefixes ignored unless configured.
func DefaultIgnorePrefixes() []string {
	return []string{"getty.", "agetty."}
}

// DefaultHealthConfig returns the policy used when no file is given.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		RequiredServices: []string{},
		OptionalServices: []string{},
		IgnoreExact:      DefaultIgnoreExact(),
		IgnorePrefixes:   DefaultIgnorePrefixes(),
	}
}

// Policy converts the configuration into an immutable evaluation policy.
func (c HealthConfig) Policy() health.Policy {
	return health.NewPolicy(c.RequiredServices, c.OptionalServices, c.IgnoreExact, c.IgnorePrefixes)
}

// FormatFor picks the decoder for path by extension. Anything that is not
// .yaml or .yml is read as TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// LoadPolicy reads a policy file. An empty path yields the defaults.
func LoadPolicy(path string) (HealthConfig, error) {
	if path == "" {
		return DefaultHealthConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return HealthConfig{}, &Error{Op: "read", Path: path, Err: err}
	}

	cfg, err := ParsePolicy(data, FormatFor(path))
	if err != nil {
		return HealthConfig{}, &Error{Op: "parse", Path: path, Err: err}
	}
	return cfg, nil
}

// ParsePolicy decodes policy data. Missing keys keep their defaults and
// unknown keys are ignored.
func ParsePolicy(data []byte, format Format) (HealthConfig, error) {
	var file policyFile
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return HealthConfig{}, fmt.Errorf("invalid config YAML: %w", err)
		}
	case FormatTOML, "":
		if err := toml.Unmarshal(data, &file); err != nil {
			return HealthConfig{}, fmt.Errorf("invalid config TOML: %w", err)
		}
	default:
		return HealthConfig{}, fmt.Errorf("unsupported config format %q", format)
	}

	cfg := DefaultHealthConfig()
	if file.RequiredServices != nil {
		cfg.RequiredServices = orEmpty(*file.RequiredServices)
	}
	if file.OptionalServices != nil {
		cfg.OptionalServices = orEmpty(*file.OptionalServices)
	}
	if file.IgnoreExact != nil {
		cfg.IgnoreExact = orEmpty(*file.IgnoreExact)
	}
	if file.IgnorePrefixes != nil {
		cfg.IgnorePrefixes = orEmpty(*file.IgnorePrefixes)
	}
	if file.Runlevel != nil {
		cfg.Runlevel = strings.TrimSpace(*file.Runlevel)
	}

	if err := validatePolicy(cfg); err != nil {
		return HealthConfig{}, err
	}
	return cfg, nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func validatePolicy(cfg HealthConfig) error {
	for i, name := range cfg.RequiredServices {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("required_services[%d]: name must not be empty", i)
		}
	}
	for i, prefix := range cfg.IgnorePrefixes {
		if prefix == "" {
			return fmt.Errorf("ignore_prefixes[%d]: an empty prefix would ignore every service", i)
		}
	}
	return nil
}
