// Package config loads the YAML settings of the instrumentation tool.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config holds all cinstr configuration.
type Config struct {
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Trace    TraceConfig    `yaml:"trace"`
	Globals  GlobalsConfig  `yaml:"globals"`
	Frontend FrontendConfig `yaml:"frontend"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RuntimeConfig names the branch runtime symbols.
type RuntimeConfig struct {
	Prefix        string `yaml:"prefix"`         // helpers are PREFIX_likely, PREFIX_abort, ...
	TranslateHook string `yaml:"translate_hook"` // declared as extern void* HOOK(void*)
}

// TraceConfig names the trace hooks.
type TraceConfig struct {
	ConditionHook string `yaml:"condition_hook"`
	FunctionHook  string `yaml:"function_hook"`
	SwitchHook    string `yaml:"switch_hook"`
}

// GlobalsConfig configures global indirection.
type GlobalsConfig struct {
	AccessorSuffix string `yaml:"accessor_suffix"`
}

// FrontendConfig selects and configures the C frontend.
type FrontendConfig struct {
	Kind        string   `yaml:"kind"` // native, treesitter
	IncludeDirs []string `yaml:"include_dirs"`
	Defines     []string `yaml:"defines"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Frontend kinds.
const (
	FrontendNative     = "native"
	FrontendTreeSitter = "treesitter"
)

// ValidFrontends lists the accepted frontend kinds.
var ValidFrontends = []string{FrontendNative, FrontendTreeSitter}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"console", "json"}

	cIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	cSuffix     = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Error reports a bad invocation or configuration. The CLI exits with
// status 2 on it.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a configuration Error.
func Errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Wrap marks err as a configuration problem.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Msg: msg, Err: err}
}

// IsConfigError reports whether err is, or wraps, a configuration Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Prefix:        "mpns",
			TranslateHook: "__translate_function",
		},
		Trace: TraceConfig{
			ConditionHook: "__trace_condition",
			FunctionHook:  "__trace_function",
			SwitchHook:    "__trace_switch",
		},
		Globals: GlobalsConfig{
			AccessorSuffix: "__addr",
		},
		Frontend: FrontendConfig{
			Kind: FrontendNative,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file over the defaults. An empty
// path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, Wrap(err, "failed to read config")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, Wrap(err, "failed to parse config "+path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every configured symbol is usable in C and that the
// enumerated settings hold known values.
func (c *Config) Validate() error {
	idents := []struct {
		key, value string
	}{
		{"runtime.prefix", c.Runtime.Prefix},
		{"runtime.translate_hook", c.Runtime.TranslateHook},
		{"trace.condition_hook", c.Trace.ConditionHook},
		{"trace.function_hook", c.Trace.FunctionHook},
		{"trace.switch_hook", c.Trace.SwitchHook},
	}
	for _, id := range idents {
		if !cIdentifier.MatchString(id.value) {
			return Errorf("invalid %s %q: not a C identifier", id.key, id.value)
		}
	}
	if !cSuffix.MatchString(c.Globals.AccessorSuffix) {
		return Errorf("invalid globals.accessor_suffix %q: must be identifier characters", c.Globals.AccessorSuffix)
	}
	if !contains(ValidFrontends, c.Frontend.Kind) {
		return Errorf("invalid frontend.kind: %s (valid: %v)", c.Frontend.Kind, ValidFrontends)
	}
	if !contains(validLevels, c.Logging.Level) {
		return Errorf("invalid logging.level: %s (valid: %v)", c.Logging.Level, validLevels)
	}
	if !contains(validFormats, c.Logging.Format) {
		return Errorf("invalid logging.format: %s (valid: %v)", c.Logging.Format, validFormats)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
