package instrument

import (
	"fmt"
	"strings"

	"cinstr/pkg/csource"
)

// TracePass records function entry and the value of every if and switch
// condition through the trace hooks. Nothing is elided or classified.
type TracePass struct {
	names Names
}

// NewTracePass calls the hooks named in names.
func NewTracePass(names Names) *TracePass {
	return &TracePass{names: names}
}

func (t *TracePass) Visit(ctx *TraversalContext, s Site) bool {
	switch s := s.(type) {
	case FunctionDefinition:
		t.enter(ctx, s)
	case Conditional:
		stmt := s.Stmt
		if !ctx.Editable(Interior, stmt.LParen, stmt.RParen) {
			ctx.Skipped(stmt.If, "condition of if statement %d comes from a macro expansion; not traced", s.Ordinal)
			break
		}
		ctx.InsertAfter(stmt.LParen, fmt.Sprintf("%s(\"%s\", %d, (", t.names.ConditionHook, ctx.Function, s.Ordinal))
		ctx.InsertAt(stmt.RParen, ") && 1)")
	case Switch:
		stmt := s.Stmt
		if !ctx.Editable(Interior, stmt.LParen, stmt.RParen) {
			ctx.Skipped(stmt.Switch, "target of switch statement %d comes from a macro expansion; not traced", s.Ordinal)
			break
		}
		ctx.InsertAfter(stmt.LParen, fmt.Sprintf("%s(\"%s\", %d, (", t.names.SwitchHook, ctx.Function, s.Ordinal))
		ctx.InsertAt(stmt.RParen, "))")
	}
	return true
}

// enter writes the function markers and the entry hook. Header functions
// are still walked; their edits are refused because they are not in the
// primary file.
func (t *TracePass) enter(ctx *TraversalContext, def FunctionDefinition) {
	fn := def.Decl
	start, end := def.Range()
	if ctx.Editable(Boundary, start, end) {
		ctx.InsertAt(start, fmt.Sprintf("// Begin function %s returning %s\n", fn.Name, def.ReturnType()))
		ctx.InsertAfter(end, "\n// End function "+fn.Name)
	}
	if ctx.Editable(Interior, fn.Body.LBrace) {
		ctx.InsertAfter(fn.Body.LBrace, fmt.Sprintf("%s(\"%s\");", t.names.FunctionHook, fn.Name))
	}
}

func (t *TracePass) Finish(*Engine) {}

// Boilerplate declares the three trace hooks.
func (t *TracePass) Boilerplate() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "extern int %s(const char*, int, int);\n", t.names.ConditionHook)
	fmt.Fprintf(&sb, "extern int %s(const char*);\n", t.names.FunctionHook)
	fmt.Fprintf(&sb, "extern int %s(const char*, int, int);\n", t.names.SwitchHook)
	return sb.String()
}

// ExtractTrace instruments every function of tu with trace hooks.
func ExtractTrace(tu *csource.TranslationUnit, opts ...Option) *Result {
	e := NewEngine(tu, opts...)
	return e.Run(NewTracePass(e.Names()))
}
