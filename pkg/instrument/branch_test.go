package instrument

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"cinstr/pkg/csource"
	"cinstr/pkg/manifest"
)

func parseUnit(t *testing.T, src string) *csource.TranslationUnit {
	t.Helper()
	tu, err := csource.LoadFile(csource.NewFile("test.c", []byte(src)), csource.Options{})
	require.NoError(t, err)
	return tu
}

func parseManifest(t *testing.T, src string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return m
}

// rewritten returns the output without its boilerplate.
func rewritten(t *testing.T, res *Result) string {
	t.Helper()
	out := res.String()
	require.True(t, strings.HasPrefix(out, res.Boilerplate), "output starts with the boilerplate")
	return strings.TrimPrefix(out, res.Boilerplate)
}

func diagMessages(diags []Diagnostic) []string {
	var out []string
	for _, d := range diags {
		out = append(out, d.Kind.String()+": "+d.Msg)
	}
	return out
}

func TestApplyManifest(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		input    string
		expected string
		diags    []string
	}{
		{
			name:     "Single Override",
			manifest: "1\nmyFunc 3 1\n1 1",
			input: `int myFunc(int x) {
  if (x > 0) return 1;
  if (x < 0) return -1;
  if (x == 0) return 0;
  return 2;
}
`,
			expected: `// Begin function myFunc returning int
int myFunc(int x) {
  if (mpns_unknown((x > 0) && 1, "myFunc", 0, &myFunc)) return 1;
  if (mpns_likely((x < 0) && 1, "myFunc", 1, &myFunc)) return -1;
  if (mpns_unknown((x == 0) && 1, "myFunc", 2, &myFunc)) return 0;
  return 2;
}
// End function myFunc
`,
		},
		{
			name:     "Pass Through",
			manifest: "-1",
			input: `static char *pick(int a) {
  if (a) return "a";
  return 0;
}
int main(void) {
  if (pick(1)) return 0;
  return 1;
}
`,
			expected: `// Begin function pick returning char*
static char *pick(int a) {
  if (mpns_unknown((a) && 1, "pick", 0, &pick)) return "a";
  return 0;
}
// End function pick
// Begin function main returning int
int main(void) {
  if (mpns_unknown((pick(1)) && 1, "main", 0, &main)) return 0;
  return 1;
}
// End function main
`,
		},
		{
			name:     "Absent Function Is Elided",
			manifest: "1\nkeep 0 0",
			input: `static int helper(int a) {
  if (a) return 1;
  return 0;
}
int keep(void) {
  return helper(2);
}
`,
			expected: `// Begin function helper returning int
#if 0
static int helper(int a) {
  if (a) return 1;
  return 0;
}
#endif
// End function helper
// Begin function keep returning int
int keep(void) {
  return helper(2);
}
// End function keep
`,
			diags: []string{"warning: active function keep calls elided function helper"},
		},
		{
			name:     "Switch Consumes An Ordinal",
			manifest: "1 f 2 1 1 0",
			input: `int f(int a) {
  switch (a) { case 0: return 1; }
  if (a > 1) return 2;
  return 0;
}
`,
			expected: `// Begin function f returning int
int f(int a) {
  switch (a) { case 0: return 1; }
  if (mpns_unlikely((a > 1) && 1, "f", 1, &f)) return 2;
  return 0;
}
// End function f
`,
			diags: []string{"unsupported: Applying manifest to Switch Statements not supported (ordinal 0)"},
		},
		{
			name:     "Nested Ifs In Pre-order",
			manifest: "1 f 3 3 0 1 1 0 2 1",
			input: `int f(int a) {
  if (a) {
    if (a > 1) return 2;
  } else if (a < 0) {
    return 3;
  }
  return 0;
}
`,
			expected: `// Begin function f returning int
int f(int a) {
  if (mpns_likely((a) && 1, "f", 0, &f)) {
    if (mpns_unlikely((a > 1) && 1, "f", 1, &f)) return 2;
  } else if (mpns_likely((a < 0) && 1, "f", 2, &f)) {
    return 3;
  }
  return 0;
}
// End function f
`,
		},
		{
			name:     "Ordinals Restart Per Function",
			manifest: "2 f 1 1 0 1 g 1 1 0 0",
			input: `int f(int a) { if (a) return 1; return 0; }
int g(int a) { if (a) return 1; return 0; }
`,
			expected: `// Begin function f returning int
int f(int a) { if (mpns_likely((a) && 1, "f", 0, &f)) return 1; return 0; }
// End function f
// Begin function g returning int
int g(int a) { if (mpns_unlikely((a) && 1, "g", 0, &g)) return 1; return 0; }
// End function g
`,
		},
		{
			name:     "Ordinal Beyond Limit",
			manifest: "1 f 1 1 0 1",
			input:    "int f(int a) { if (a) return 1; if (!a) return 2; return 0; }\n",
			expected: `// Begin function f returning int
int f(int a) { if (mpns_likely((a) && 1, "f", 0, &f)) return 1; if (mpns_unknown((!a) && 1, "f", 1, &f)) return 2; return 0; }
// End function f
`,
		},
		{
			name:     "Macro Expanded Condition",
			manifest: "-1",
			input: `#define CHECK(x) if (x) return -1
int f(int a) {
  CHECK(a);
  if (a > 2) return 1;
  return 0;
}
`,
			expected: `#define CHECK(x) if (x) return -1
// Begin function f returning int
int f(int a) {
  CHECK(a);
  if (mpns_unknown((a > 2) && 1, "f", 1, &f)) return 1;
  return 0;
}
// End function f
`,
			diags: []string{"warning: condition of if statement 0 comes from a macro expansion; left unannotated"},
		},
		{
			name:     "Macro At Function Boundary",
			manifest: "0",
			input: `#define STATIC static
STATIC int f(void) { return 0; }
`,
			expected: `#define STATIC static
// Begin function f returning int
#if 0
STATIC int f(void) { return 0; }
#endif
// End function f
`,
		},
		{
			name:     "Prototypes And Variables Untouched",
			manifest: "1 f 0 0",
			input: `int f(void);
int x = 1;
int f(void) { return x; }
`,
			expected: `int f(void);
int x = 1;
// Begin function f returning int
int f(void) { return x; }
// End function f
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ApplyManifest(parseUnit(t, tt.input), parseManifest(t, tt.manifest))
			if diff := cmp.Diff(tt.expected, rewritten(t, res)); diff != "" {
				t.Errorf("rewritten source mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.diags, diagMessages(res.Diagnostics))
		})
	}
}

func TestApplyManifestBoilerplate(t *testing.T) {
	res := ApplyManifest(parseUnit(t, "int f(void) { return 0; }\n"), manifest.PassThrough())
	expected := `extern void mpns_abort(char*, int, void*);
static inline int mpns_likely(int condition, char* name, int id, void* fn) {if (!condition) mpns_abort(name, id, fn); return 1;}
static inline int mpns_unlikely(int condition, char* name, int id, void* fn) {if (condition) mpns_abort(name, id, fn); return 0;}
static inline int mpns_unknown(int condition, char* name, int id, void* fn) {return condition;}
extern void* __translate_function(void*);
`
	if diff := cmp.Diff(expected, res.Boilerplate); diff != "" {
		t.Errorf("boilerplate mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyManifestCustomNames(t *testing.T) {
	names := DefaultNames()
	names.Prefix = "rt"
	names.TranslateHook = "rt_translate"

	res := ApplyManifest(parseUnit(t, "int f(int a) { if (a) return 1; return 0; }\n"),
		parseManifest(t, "1 f 1 1 0 1"), WithNames(names))

	assert.Contains(t, res.Boilerplate, "extern void rt_abort(char*, int, void*);")
	assert.Contains(t, res.Boilerplate, "extern void* rt_translate(void*);")
	assert.Contains(t, res.String(), `if (rt_likely((a) && 1, "f", 0, &f))`)
	assert.NotContains(t, res.String(), "mpns")
}

func TestApplyManifestLeavesHeadersAlone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.h"),
		[]byte("static inline int hdr(int v) { if (v) return 1; return 0; }\n"), 0o644))
	main := filepath.Join(dir, "main.c")
	require.NoError(t, os.WriteFile(main,
		[]byte("#include \"util.h\"\nint main(void) { if (hdr(1)) return 0; return 1; }\n"), 0o644))

	tu, err := csource.Load(main, csource.Options{})
	require.NoError(t, err)

	res := ApplyManifest(tu, parseManifest(t, "1 main 1 0"))
	expected := `#include "util.h"
// Begin function main returning int
int main(void) { if (mpns_unknown((hdr(1)) && 1, "main", 0, &main)) return 0; return 1; }
// End function main
`
	if diff := cmp.Diff(expected, rewritten(t, res)); diff != "" {
		t.Errorf("rewritten source mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, res.Diagnostics)
}

// conditions spells the if conditions of each function defined in the
// primary file, in traversal order.
func conditions(tu *csource.TranslationUnit, only map[string]bool) map[string][]csource.Expr {
	out := make(map[string][]csource.Expr)
	for _, d := range tu.Decls {
		fn, ok := d.(*csource.FunctionDecl)
		if !ok || !fn.HasBody() || (only != nil && !only[fn.Name]) {
			continue
		}
		csource.Inspect(fn.Body, func(n csource.Node) bool {
			if s, ok := n.(*csource.IfStmt); ok {
				out[fn.Name] = append(out[fn.Name], s.Condition)
			}
			return true
		})
	}
	return out
}

func TestUnknownManifestPreservesConditions(t *testing.T) {
	src := `struct pt { int x, y; };
static int probe(struct pt *p, int n) {
  int b = 0;
  if ((b = n * 2) != 0) {
    if (p->x > b) return p->x; else if (p->y) b++;
  }
  for (int i = 0; i < n; i++)
    if (i % 2 ? p->x : p->y) b += i, b--;
  switch (n) { case 1: if (b) break; default: b = -b; }
  return b;
}
int main(void) {
  struct pt p = { 1, 2 };
  if (probe(&p, 3) > 0 && !probe(&p, 0)) return 1;
  return 0;
}
`
	orig := parseUnit(t, src)
	res := ApplyManifest(orig, manifest.PassThrough())
	assert.Len(t, res.Diagnostics, 1, "only the switch is reported")

	back, err := csource.LoadFile(csource.NewFile("out.c", []byte(res.String())), csource.Options{})
	require.NoError(t, err, "rewritten output parses:\n%s", res.String())

	want := conditions(orig, nil)
	got := conditions(back, map[string]bool{"probe": true, "main": true})
	require.Len(t, got, len(want))

	for name, conds := range want {
		require.Len(t, got[name], len(conds), name)
		for i, cond := range conds {
			call, ok := got[name][i].(*csource.FunctionCall)
			require.True(t, ok, "%s condition %d is a helper call", name, i)
			assert.Equal(t, "mpns_unknown", call.Func.String())
			require.Len(t, call.Args, 4)

			and, ok := call.Args[0].(*csource.LogicalExpr)
			require.True(t, ok)
			assert.Equal(t, csource.AND_LOGICAL, and.Op)
			inner, ok := and.Left.(*csource.ParenExpr)
			require.True(t, ok)
			assert.Equal(t, cond.String(), inner.Expr.String(), "%s condition %d", name, i)

			assert.Equal(t, fmt.Sprintf("%q", name), call.Args[1].String())
			assert.Equal(t, fmt.Sprint(i+boolToInt(name == "probe" && i >= 4)), call.Args[2].String(),
				"ordinal of %s condition %d", name, i)
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestApplyManifestLogsWarnings(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := "int f(int a) { switch (a) { default: break; } return 0; }\n"

	res := ApplyManifest(parseUnit(t, src), manifest.PassThrough(), WithLogger(zap.New(core)))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, KindUnsupported, res.Diagnostics[0].Kind)
	assert.Equal(t, "f", res.Diagnostics[0].Function)
	assert.Equal(t, 1, res.Diagnostics[0].Loc.Line)

	entries := logs.FilterMessageSnippet("Switch Statements").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "f", entries[0].ContextMap()["function"])
	assert.Equal(t, "unsupported", entries[0].ContextMap()["kind"])
}

func TestGateDecisions(t *testing.T) {
	src := `int a(void) { return 0; }
int b(void) { return a(); }
int c(void) { return b() + a(); }
`
	p := NewBranchPass(parseManifest(t, "1 c 0 0"), DefaultNames())
	res := NewEngine(parseUnit(t, src)).Run(p)

	assert.False(t, p.Gate().Active("a"))
	assert.True(t, p.Gate().Active("c"))
	assert.Equal(t, []string{"a", "b"}, p.Gate().Elided())
	assert.Equal(t, []string{
		"warning: active function c calls elided function a",
		"warning: active function c calls elided function b",
	}, diagMessages(res.Diagnostics), "calls between elided functions are not reported")
}

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestEmitWritesOnce(t *testing.T) {
	res := ApplyManifest(parseUnit(t, "int f(int a) { if (a) return 1; return 0; }\n"), manifest.PassThrough())

	var w countingWriter
	n, err := res.WriteTo(&w)
	require.NoError(t, err)
	assert.Equal(t, 1, w.writes)
	assert.Equal(t, int64(w.Len()), n)
	assert.Equal(t, res.String(), w.String())
}
