package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cinstr/pkg/config"
	"cinstr/pkg/csource"
	"cinstr/pkg/manifest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// run executes the CLI with args and returns what it printed on stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const myFunc = `int myFunc(int x) {
  if (x > 0) return 1;
  if (x < 0) return -1;
  if (x == 0) return 0;
  return 2;
}
`

func TestApplyManifest(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "my.c", myFunc)
	man := writeFile(t, dir, "my.manifest", "1\nmyFunc 3 1\n1 1\n")

	for _, frontend := range []string{config.FrontendNative, config.FrontendTreeSitter} {
		t.Run(frontend, func(t *testing.T) {
			out, err := run(t, "--frontend", frontend, "apply-manifest", src, man)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(out, "extern void mpns_abort(char*, int, void*);\n"))
			expected := `// Begin function myFunc returning int
int myFunc(int x) {
  if (mpns_unknown((x > 0) && 1, "myFunc", 0, &myFunc)) return 1;
  if (mpns_likely((x < 0) && 1, "myFunc", 1, &myFunc)) return -1;
  if (mpns_unknown((x == 0) && 1, "myFunc", 2, &myFunc)) return 0;
  return 2;
}
// End function myFunc
`
			_, body, found := strings.Cut(out, "extern void* __translate_function(void*);\n")
			require.True(t, found)
			if diff := cmp.Diff(expected, body); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyManifestFrontendArgs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inc/limits.h", "#define LIMIT 3\n")
	src := writeFile(t, dir, "f.c", `#include "limits.h"
int f(int x) {
#ifdef STRICT
  if (x > LIMIT) return 1;
#endif
  return 0;
}
`)
	man := writeFile(t, dir, "f.manifest", "-1\n")

	out, err := run(t, "apply-manifest", src, man, "--", "cc", "-c", "-I", filepath.Join(dir, "inc"), "-DSTRICT", "-o", "f.o")
	require.NoError(t, err)
	assert.Contains(t, out, `if (mpns_unknown((x > LIMIT) && 1, "f", 0, &f)) return 1;`)
	assert.NotContains(t, out, "#if 0")
}

func TestApplyManifestElides(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "e.c", "int keep(void) { return 1; }\nint drop(void) { return keep(); }\n")
	man := writeFile(t, dir, "e.manifest", "1\nkeep 0 0\n")

	out, err := run(t, "apply-manifest", src, man)
	require.NoError(t, err)
	assert.Contains(t, out, "// Begin function drop returning int\n#if 0\nint drop(void)")
	assert.Contains(t, out, "}\n#endif\n// End function drop")
}

func TestPatchGlobals(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "g.c", "int g;\nint read(void) { return g; }\n")
	cfg := writeFile(t, dir, "cinstr.yaml", "globals:\n  accessor_suffix: _ptr\n")

	out, err := run(t, "--config", cfg, "patch-globals", src)
	require.NoError(t, err)
	assert.Equal(t, "void* g_ptr(void);\nint g;\nint read(void) { return (*(int*)(g_ptr())); }\n", out)
}

func TestExtractTrace(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "t.c", "int f(int a) {\n  if (a) return 1;\n  return 0;\n}\n")

	out, err := run(t, "extract-trace", src)
	require.NoError(t, err)
	assert.Contains(t, out, `int f(int a) {__trace_function("f");`)
	assert.Contains(t, out, `if (__trace_condition("f", 0, (a) && 1)) return 1;`)
}

func TestSkeleton(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "s.c", "int f(int a) {\n  if (a) return 1;\n  return 0;\n}\nint g(void);\n")

	out, err := run(t, "skeleton", src)
	require.NoError(t, err)
	assert.Equal(t, "1\nf 1 0\n", out)

	_, err = manifest.Parse(strings.NewReader(out))
	assert.NoError(t, err)
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "d.c", `int total;
static int add(int n) { return total + n; }
int main(void) { return add(1); }
`)

	out, err := run(t, "dump", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Tokens (")
	assert.Contains(t, out, "add:2 total -> int total line 1 (global)")
	assert.Contains(t, out, "add:2 n -> int n line 2 (local)")
	assert.Contains(t, out, "main:3 add -> function add")
	assert.Contains(t, out, "Reachable from main\n  add\n  main\n")

	out, err = run(t, "--frontend", "treesitter", "dump", src)
	require.NoError(t, err)
	assert.NotContains(t, out, "Tokens (")
	assert.Contains(t, out, "add:2 total -> int total line 1 (global)")
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "ok.c", "int f(void) { return 0; }\n")
	bad := writeFile(t, dir, "bad.c", "int f( {\n")
	malformed := writeFile(t, dir, "bad.manifest", "1\nf x\n")
	good := writeFile(t, dir, "good.manifest", "-1\n")
	badConfig := writeFile(t, dir, "bad.yaml", "runtime:\n  prefix: \"not valid\"\n")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"Success", []string{"apply-manifest", src, good}, 0},
		{"Missing Manifest", []string{"apply-manifest", src, filepath.Join(dir, "absent")}, 2},
		{"Too Few Arguments", []string{"apply-manifest", src}, 2},
		{"Too Many Arguments", []string{"patch-globals", src, src}, 2},
		{"Bad Config", []string{"--config", badConfig, "patch-globals", src}, 2},
		{"Unknown Frontend", []string{"--frontend", "clang", "patch-globals", src}, 2},
		{"Unknown Flag", []string{"patch-globals", "--bogus", src}, 2},
		{"Malformed Manifest", []string{"apply-manifest", src, malformed}, 1},
		{"Parse Error", []string{"patch-globals", bad}, 1},
		{"Tree-sitter Parse Error", []string{"--frontend", "treesitter", "patch-globals", bad}, 1},
		{"Missing Source", []string{"patch-globals", filepath.Join(dir, "absent.c")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Equal(t, tt.code, exitCode(err), "error: %v", err)
		})
	}
}

func TestParseErrorKinds(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.c", "int f( {\n")
	src := writeFile(t, dir, "ok.c", "int f(void) { return 0; }\n")
	malformed := writeFile(t, dir, "bad.manifest", "1\nf x\n")

	_, err := run(t, "patch-globals", bad)
	var pe *csource.ParseError
	assert.True(t, errors.As(err, &pe), "want *csource.ParseError, got %T", err)

	_, err = run(t, "apply-manifest", src, malformed)
	var fe *manifest.FormatError
	assert.True(t, errors.As(err, &fe), "want *manifest.FormatError, got %T", err)
}

func TestParseFrontendArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected csource.Options
	}{
		{"Empty", nil, csource.Options{}},
		{
			name: "Joined And Separate",
			args: []string{"-Iinc", "-I", "vendor", "-DDEBUG", "-D", "LEVEL=2", "-UNDEBUG", "-include", "pre.h"},
			expected: csource.Options{
				IncludeDirs: []string{"inc", "vendor"},
				Defines:     []string{"DEBUG", "LEVEL=2"},
				Undefs:      []string{"NDEBUG"},
				Includes:    []string{"pre.h"},
			},
		},
		{
			name:     "Ignores Everything Else",
			args:     []string{"gcc", "-O2", "-c", "x.c", "-o", "x.o", "-Wall", "-Isrc"},
			expected: csource.Options{IncludeDirs: []string{"src"}},
		},
		{"Dangling Value", []string{"-DA", "-I"}, csource.Options{Defines: []string{"A"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseFrontendArgs(tt.args))
		})
	}
}
