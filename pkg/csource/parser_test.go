package csource

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, src string) *TranslationUnit {
	t.Helper()
	tu, err := LoadFile(NewFile("test.c", []byte(src)), Options{})
	require.NoError(t, err)
	return tu
}

// describe renders a top-level declaration the way it was declared.
func describe(d Decl) string {
	switch d := d.(type) {
	case *VariableDecl:
		if d.Storage != StorageNone {
			return d.Storage.String() + " " + d.Type.Declare(d.Name)
		}
		return d.Type.Declare(d.Name)
	case *FunctionDecl:
		s := d.Type.Declare(d.Name)
		if d.Storage != StorageNone {
			s = d.Storage.String() + " " + s
		}
		if d.HasBody() {
			s += " {}"
		}
		return s
	case *TypedefDecl:
		return "typedef " + d.Type.Declare(d.Name)
	case *RecordDecl:
		return strings.ToLower(d.Kind.String()) + " " + d.Tag
	}
	return fmt.Sprintf("%T", d)
}

func findFunc(t *testing.T, tu *TranslationUnit, name string) *FunctionDecl {
	t.Helper()
	for _, d := range tu.Decls {
		if f, ok := d.(*FunctionDecl); ok && f.Name == name && f.HasBody() {
			return f
		}
	}
	t.Fatalf("function %s not found", name)
	return nil
}

func identsNamed(node Node, name string) []*Ident {
	var out []*Ident
	Inspect(node, func(n Node) bool {
		if id, ok := n.(*Ident); ok && id.Name == name {
			out = append(out, id)
		}
		return true
	})
	return out
}

func TestParseDeclarations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Multiple Declarators",
			input:    "int x, *p, arr[10];",
			expected: []string{"int x", "int *p", "int arr[10]"},
		},
		{
			name:     "Qualified Pointer Array",
			input:    `static const char *names[] = {"a", "b"};`,
			expected: []string{"static const char *names[]"},
		},
		{
			name:     "Function Pointer Variable",
			input:    "int (*fp)(int, char *);",
			expected: []string{"int (*fp)(int, char*)"},
		},
		{
			name:     "Function Returning Function Pointer",
			input:    "void (*signal(int sig, void (*handler)(int)))(int);",
			expected: []string{"void (*signal(int, void(*)(int)))(int)"},
		},
		{
			name:     "Struct Typedef",
			input:    "typedef struct node { int v; struct node *next; } node_t;",
			expected: []string{"struct node", "typedef struct node node_t"},
		},
		{
			name:     "Enum",
			input:    "enum color { RED, GREEN = 2 };",
			expected: []string{"enum color"},
		},
		{
			name:     "Prototype And Definition",
			input:    "int f(void);\nint f(void) { return 0; }",
			expected: []string{"int f(void)", "int f(void) {}"},
		},
		{
			name:     "Builtin Type Spelling",
			input:    "unsigned long long big; long unsigned int lu; short int s; signed char c;",
			expected: []string{"unsigned long long big", "unsigned long lu", "short s", "signed char c"},
		},
		{
			name:     "Undeclared Type Name",
			input:    "size_t len(const char *s) { size_t n = 0; return n; }",
			expected: []string{"size_t len(const char*) {}"},
		},
		{
			name:     "Attributes And Extensions",
			input:    "__extension__ typedef unsigned long u64 __attribute__((aligned(8)));\nstatic inline int __attribute__((unused)) id(int v) { return v; }",
			expected: []string{"typedef unsigned long u64", "static int id(int) {}"},
		},
		{
			name:     "Variadic Prototype",
			input:    "int printf(const char *fmt, ...);",
			expected: []string{"int printf(const char*, ...)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := parseSource(t, tt.input)
			var got []string
			for _, d := range tu.Decls {
				got = append(got, describe(d))
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseBindingsFollowScopes(t *testing.T) {
	src := `int g;
int read(void) { return g; }
void shadow(int g) { g = 1; }
void local(void) { int g; g = 2; { g = 3; } }
void inner(void) { { int g; g = 5; } g = 6; }
`
	tu := parseSource(t, src)
	global, ok := tu.Decls[0].(*VariableDecl)
	require.True(t, ok)
	require.True(t, global.HasGlobalStorage())

	reads := identsNamed(findFunc(t, tu, "read").Body, "g")
	require.Len(t, reads, 1)
	assert.Same(t, global, reads[0].Binding)

	shadows := identsNamed(findFunc(t, tu, "shadow").Body, "g")
	require.Len(t, shadows, 1)
	param, ok := shadows[0].Binding.(*VariableDecl)
	require.True(t, ok)
	assert.True(t, param.IsParam)
	assert.False(t, param.HasGlobalStorage())

	locals := identsNamed(findFunc(t, tu, "local").Body, "g")
	require.Len(t, locals, 2)
	for _, id := range locals {
		v, ok := id.Binding.(*VariableDecl)
		require.True(t, ok)
		assert.NotSame(t, global, v)
		assert.Equal(t, ScopeLocal, v.Scope)
	}
	assert.Same(t, locals[0].Binding, locals[1].Binding)

	inner := identsNamed(findFunc(t, tu, "inner").Body, "g")
	require.Len(t, inner, 2)
	assert.NotSame(t, global, inner[0].Binding)
	assert.Same(t, global, inner[1].Binding, "the block scope ends before g = 6")
}

func TestParseOtherBindings(t *testing.T) {
	src := `typedef int myint;
enum { A, B };
int f(void) { static int counter; extern int ext; return counter + ext; }
myint h(myint x) { return x + A + undeclared; }
`
	tu := parseSource(t, src)

	h := findFunc(t, tu, "h")
	assert.Equal(t, "myint", h.ReturnType().String())

	as := identsNamed(h.Body, "A")
	require.Len(t, as, 1)
	_, isEnum := as[0].Binding.(*EnumConstDecl)
	assert.True(t, isEnum)

	und := identsNamed(h.Body, "undeclared")
	require.Len(t, und, 1)
	assert.Nil(t, und[0].Binding)

	f := findFunc(t, tu, "f")
	counter := identsNamed(f.Body, "counter")[0].Binding.(*VariableDecl)
	assert.Equal(t, StorageStatic, counter.Storage)
	assert.Equal(t, ScopeLocal, counter.Scope)
	assert.True(t, counter.HasGlobalStorage(), "block-scope static")

	ext := identsNamed(f.Body, "ext")[0].Binding.(*VariableDecl)
	assert.True(t, ext.HasGlobalStorage(), "block-scope extern")
}

func TestParseLocations(t *testing.T) {
	src := "static int f(int a) {\n  if (a > 1) return 1;\n  switch (a) { case 0: break; }\n  return 0;\n}\n"
	tu := parseSource(t, src)
	f := findFunc(t, tu, "f")

	assert.Equal(t, 0, f.Start.Offset, "declaration starts at the storage class")
	assert.Equal(t, "f", f.NameLoc.Text())
	assert.Equal(t, strings.Index(src, "{"), f.Body.LBrace.Offset)
	assert.Equal(t, strings.LastIndex(src, "}")+1, f.Body.RBrace.End)
	assert.True(t, tu.IsPrimary(f.Start))
	assert.True(t, tu.PresumedPrimary(f.Start))

	var ifs []*IfStmt
	var switches []*SwitchStmt
	Inspect(f.Body, func(n Node) bool {
		switch s := n.(type) {
		case *IfStmt:
			ifs = append(ifs, s)
		case *SwitchStmt:
			switches = append(switches, s)
		}
		return true
	})
	require.Len(t, ifs, 1)
	require.Len(t, switches, 1)

	assert.Equal(t, strings.Index(src, "(a > 1)"), ifs[0].LParen.Offset)
	assert.Equal(t, strings.Index(src, ") return 1"), ifs[0].RParen.Offset)
	assert.Equal(t, 2, ifs[0].If.Line)
	assert.Equal(t, strings.Index(src, "(a) {"), switches[0].LParen.Offset)
	assert.False(t, ifs[0].LParen.Expanded)
}

func TestParseStatementsAndExpressions(t *testing.T) {
	src := `struct pt { int x, y; };
typedef struct { int x; } anon_t;
int sum(int n, ...);
int run(int n, void *p) {
	int total = 0, i;
	struct pt a = { .x = 1, .y = 2 }, b = { 3, 4 };
	int arr[] = { [0] = 1, [2] = 3 };
	for (i = 0; i < n; i++) { total += i; }
	for (int j = 0; j < n; ++j) continue;
	while (total > 100) total /= 2;
	do { total--; } while (total > 50);
	if (n) goto done; else total = n ? n : -n;
	total = (int)sizeof(struct pt) + sizeof total + ((anon_t *)p)->x;
	total += (struct pt){ 5, 6 }.x;
	total = ({ int t = a.x; t + b.y; });
	total = sum(2, arr[0], arr[1]), total;
	__asm__ volatile ("nop");
	switch (n) { case 1: case 2 ... 3: total = 1; break; default: ; }
done:
	return total ?: 1;
}
`
	tu := parseSource(t, src)
	run := findFunc(t, tu, "run")

	var casts []string
	var sawStmtExpr, sawCompound, sawDesignated bool
	Inspect(run.Body, func(n Node) bool {
		switch e := n.(type) {
		case *CastExpr:
			casts = append(casts, e.Type.String())
		case *StmtExpr:
			sawStmtExpr = true
		case *CompoundLiteral:
			sawCompound = true
		case *DesignatedInit:
			sawDesignated = true
		}
		return true
	})
	assert.Equal(t, []string{"int", "anon_t*"}, casts)
	assert.True(t, sawStmtExpr)
	assert.True(t, sawCompound)
	assert.True(t, sawDesignated)
}

func TestParseIfStatementOrder(t *testing.T) {
	src := "int f(int a) { if (a) { if (a > 1) return 1; } switch (a) { default: if (a) return 2; } while (a) if (a) break; return 0; }"
	tu := parseSource(t, src)

	var order []string
	Inspect(findFunc(t, tu, "f"), func(n Node) bool {
		switch n.(type) {
		case *IfStmt:
			order = append(order, "if")
		case *SwitchStmt:
			order = append(order, "switch")
		}
		return true
	})
	assert.Equal(t, []string{"if", "if", "switch", "if", "if"}, order)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		msg   string
	}{
		{"Unclosed Parameter List", "int f( {", 1, "expected"},
		{"Missing Initializer", "int x = ;", 1, "unexpected token \";\" in expression"},
		{"Number As Declarator", "int 3;", 1, "expected identifier in declarator"},
		{"Missing Semicolon", "int f(void) {\n  return 0\n}", 3, "expected SEMICOLON"},
		{"Unclosed Block", "int f(void) {\n", 2, "expected RBRACE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(NewFile("test.c", []byte(tt.input)), Options{})
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, pe.Msg, tt.msg)
			if tt.line > 0 {
				assert.Equal(t, tt.line, pe.Line)
			}
		})
	}
}

func TestTypeSpelling(t *testing.T) {
	intT := BaseType("int")
	fn := &Type{Kind: TypeFunc, Elem: BaseType("void"), Params: []*Type{intT}, Prototyped: true}
	constChar := BaseType("char").withQual([]string{"const"})
	constPtr := PointerTo(intT).withQual([]string{"const"})

	tests := []struct {
		name     string
		typ      *Type
		abstract string
		declared string
	}{
		{"Pointer", PointerTo(intT), "int*", "int *p"},
		{"Pointer To Array", PointerTo(ArrayOf(intT, "10")), "int(*)[10]", "int (*p)[10]"},
		{"Pointer To Function", PointerTo(fn), "void(*)(int)", "void (*p)(int)"},
		{"Pointer To Pointer", PointerTo(PointerTo(constChar)), "const char**", "const char **p"},
		{"Const Pointer", constPtr, "int*const", "int *const p"},
		{"Array Of Pointers", ArrayOf(PointerTo(BaseType("char")), ""), "char*[]", "char *p[]"},
		{"Unprototyped Function", &Type{Kind: TypeFunc, Elem: intT}, "int()", "int p()"},
		{"Nil Is Int", nil, "int", "int p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.abstract, tt.typ.String())
			assert.Equal(t, tt.declared, tt.typ.Declare("p"))
		})
	}
}

func TestSymbolTable(t *testing.T) {
	s := NewSymbolTable()
	global := &VariableDecl{Name: "x"}
	assert.Nil(t, s.Define("x", global))
	assert.Equal(t, ScopeGlobal, s.Scope())

	redecl := &VariableDecl{Name: "x"}
	assert.Same(t, global, s.Define("x", redecl), "redeclaration returns the previous decl")

	param := &VariableDecl{Name: "x", IsParam: true}
	s.EnterFunction([]*VariableDecl{param, {Name: ""}})
	assert.Equal(t, ScopeLocal, s.Scope())
	d, ok := s.Lookup("x")
	require.True(t, ok)
	assert.Same(t, param, d)

	s.EnterScope()
	local := &VariableDecl{Name: "x"}
	assert.Nil(t, s.Define("x", local), "a new scope does not see the outer binding as a redeclaration")
	d, _ = s.Lookup("x")
	assert.Same(t, local, d)
	s.ExitScope()

	d, _ = s.Lookup("x")
	assert.Same(t, param, d)
	s.ExitFunction()

	d, _ = s.Lookup("x")
	assert.Same(t, redecl, d)
	_, ok = s.Lookup("missing")
	assert.False(t, ok)

	s.Define("T", &TypedefDecl{Name: "T"})
	assert.True(t, s.IsTypeName("T"))
	assert.False(t, s.IsTypeName("x"))

	rec := &RecordDecl{Kind: STRUCT, Tag: "node"}
	s.DefineTag(rec)
	got, ok := s.LookupTag("node")
	require.True(t, ok)
	assert.Same(t, rec, got)
	_, ok = s.LookupTag("x")
	assert.False(t, ok, "tags live in their own namespace")

	assert.Contains(t, s.String(), "Globals:")
}

func TestParenthesizedUndeclaredName(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		calls map[string]bool
		casts int
	}{
		{"Call Through Parenthesized Name", `(puts)("x")`, map[string]bool{"puts": true}, 0},
		{"Cast To Conventional Type Name", `(size_t)(n)`, map[string]bool{}, 1},
		{"Cast Of Identifier", `(handle) n`, map[string]bool{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := parseSource(t, "long f(int n) { return "+tt.expr+"; }\n")
			body := findFunc(t, tu, "f").Body
			assert.Equal(t, tt.calls, Calls(body))

			casts := 0
			Inspect(body, func(n Node) bool {
				if _, ok := n.(*CastExpr); ok {
					casts++
				}
				return true
			})
			assert.Equal(t, tt.casts, casts)
		})
	}
}

func TestCallsAndReachable(t *testing.T) {
	src := `static int helper(void) { return 1; }
int unused(void) { return 2; }
int init(void) { return 3; }
int table = init();
int main(void) { return helper() + (puts)("x"); }
`
	tu := parseSource(t, src)

	assert.Equal(t, map[string]bool{"helper": true, "puts": true}, Calls(findFunc(t, tu, "main").Body))

	reach := Reachable(tu.Decls, "main")
	assert.True(t, reach["main"])
	assert.True(t, reach["helper"])
	assert.True(t, reach["init"], "called from a file-scope initializer")
	assert.False(t, reach["unused"])
}
