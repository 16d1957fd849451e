package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mpns", cfg.Runtime.Prefix)
	assert.Equal(t, "__addr", cfg.Globals.AccessorSuffix)
	assert.Equal(t, FrontendNative, cfg.Frontend.Kind)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cinstr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
runtime:
  prefix: rt
globals:
  accessor_suffix: _ptr
frontend:
  kind: treesitter
  include_dirs: [include, vendor/include]
  defines: ["NDEBUG", "LEVEL=2"]
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rt", cfg.Runtime.Prefix)
	assert.Equal(t, "__translate_function", cfg.Runtime.TranslateHook, "unset keys keep defaults")
	assert.Equal(t, "_ptr", cfg.Globals.AccessorSuffix)
	assert.Equal(t, FrontendTreeSitter, cfg.Frontend.Kind)
	assert.Equal(t, []string{"include", "vendor/include"}, cfg.Frontend.IncludeDirs)
	assert.Equal(t, []string{"NDEBUG", "LEVEL=2"}, cfg.Frontend.Defines)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		msg     string
	}{
		{"Malformed YAML", "runtime: [unclosed", "failed to parse config"},
		{"Bad Prefix", "runtime:\n  prefix: 9lives\n", "invalid runtime.prefix"},
		{"Bad Hook", "trace:\n  switch_hook: \"a-b\"\n", "invalid trace.switch_hook"},
		{"Bad Suffix", "globals:\n  accessor_suffix: \"\"\n", "invalid globals.accessor_suffix"},
		{"Unknown Frontend", "frontend:\n  kind: clang\n", "invalid frontend.kind"},
		{"Unknown Level", "logging:\n  level: loud\n", "invalid logging.level"},
		{"Unknown Format", "logging:\n  format: xml\n", "invalid logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cinstr.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, IsConfigError(err), "want *config.Error, got %T", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))

	inner := os.ErrNotExist
	err := Wrap(inner, "failed to read manifest")
	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "failed to read manifest: file does not exist", err.Error())
}
