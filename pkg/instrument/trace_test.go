package instrument

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinstr/pkg/manifest"
)

func TestExtractTrace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		diags    []string
	}{
		{
			name: "Conditions Switches And Entry",
			input: `int f(int a) {
  switch (a) { default: break; }
  if (a) return 1;
  return 0;
}
`,
			expected: `// Begin function f returning int
int f(int a) {__trace_function("f");
  switch (__trace_switch("f", 0, (a))) { default: break; }
  if (__trace_condition("f", 1, (a) && 1)) return 1;
  return 0;
}
// End function f
`,
		},
		{
			name: "Macro Expanded Condition",
			input: `#define TEST(x) if (x)
void g(int a) { TEST(a) a++; if (a) a--; }
`,
			expected: `#define TEST(x) if (x)
// Begin function g returning void
void g(int a) {__trace_function("g"); TEST(a) a++; if (__trace_condition("g", 1, (a) && 1)) a--; }
// End function g
`,
			diags: []string{"warning: condition of if statement 0 comes from a macro expansion; not traced"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ExtractTrace(parseUnit(t, tt.input))
			if diff := cmp.Diff(tt.expected, rewritten(t, res)); diff != "" {
				t.Errorf("rewritten source mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.diags, diagMessages(res.Diagnostics))
		})
	}
}

func TestExtractTraceBoilerplate(t *testing.T) {
	res := ExtractTrace(parseUnit(t, "void f(void) {}\n"))
	assert.Equal(t, `extern int __trace_condition(const char*, int, int);
extern int __trace_function(const char*);
extern int __trace_switch(const char*, int, int);
`, res.Boilerplate)
}

func TestSkeleton(t *testing.T) {
	src := `int a(int x) {
  if (x) return 1;
  switch (x) { case 1: if (x > 1) return 2; }
  return 0;
}
static void b(void) {}
int c(void);
int d(int y) { return y ? 1 : 0; }
`
	m, diags := Skeleton(parseUnit(t, src))
	assert.Empty(t, diags)
	assert.Equal(t, []string{"a", "b", "d"}, m.Functions())

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "3\na 3 0\nb 0 0\nd 0 0\n", buf.String())

	// The skeleton keeps every function and classifies every branch unknown.
	back, err := manifest.Parse(&buf)
	require.NoError(t, err)
	res := ApplyManifest(parseUnit(t, src), back)
	assert.NotContains(t, res.String(), "#if 0")
	assert.Contains(t, res.String(), `if (mpns_unknown((x > 1) && 1, "a", 2, &a))`)
}
