package instrument

import (
	"fmt"
	"strings"

	"cinstr/pkg/csource"
	"cinstr/pkg/manifest"
)

// BranchPass wraps every if condition of an active function in the helper
// matching its manifest classification. It owns the function gate.
type BranchPass struct {
	manifest *manifest.Manifest
	gate     *Gate
	names    Names
}

// NewBranchPass annotates branches according to m.
func NewBranchPass(m *manifest.Manifest, names Names) *BranchPass {
	return &BranchPass{manifest: m, gate: NewGate(m), names: names}
}

// Gate exposes the elision decisions made during the walk.
func (b *BranchPass) Gate() *Gate {
	return b.gate
}

func (b *BranchPass) Visit(ctx *TraversalContext, s Site) bool {
	switch s := s.(type) {
	case FunctionDefinition:
		return b.gate.Apply(ctx, s)
	case Conditional:
		b.annotate(ctx, s)
	case Switch:
		if ctx.Unit.IsPrimary(s.Stmt.Switch) {
			ctx.Unsupported(s.Stmt.Switch, "Applying manifest to Switch Statements not supported (ordinal %d)", s.Ordinal)
		}
	}
	return true
}

func (b *BranchPass) annotate(ctx *TraversalContext, s Conditional) {
	stmt := s.Stmt
	if !ctx.Editable(Interior, stmt.LParen, stmt.RParen) {
		ctx.Skipped(stmt.If, "condition of if statement %d comes from a macro expansion; left unannotated", s.Ordinal)
		return
	}
	class := b.manifest.Classify(ctx.Function, s.Ordinal)
	ctx.InsertAfter(stmt.LParen, fmt.Sprintf("%s_%s((", b.names.Prefix, class))
	ctx.InsertAt(stmt.RParen, fmt.Sprintf(") && 1, \"%s\", %d, &%s)", ctx.Function, s.Ordinal, ctx.Function))
}

func (b *BranchPass) Finish(e *Engine) {
	b.gate.CheckCalls(e)
}

// Boilerplate declares the abort hook, the classification helpers and the
// function translation hook.
func (b *BranchPass) Boilerplate() string {
	p := b.names.Prefix
	var sb strings.Builder
	fmt.Fprintf(&sb, "extern void %s_abort(char*, int, void*);\n", p)
	fmt.Fprintf(&sb, "static inline int %s_%s(int condition, char* name, int id, void* fn) {if (!condition) %s_abort(name, id, fn); return 1;}\n", p, manifest.Likely, p)
	fmt.Fprintf(&sb, "static inline int %s_%s(int condition, char* name, int id, void* fn) {if (condition) %s_abort(name, id, fn); return 0;}\n", p, manifest.Unlikely, p)
	fmt.Fprintf(&sb, "static inline int %s_%s(int condition, char* name, int id, void* fn) {return condition;}\n", p, manifest.Unknown)
	fmt.Fprintf(&sb, "extern void* %s(void*);\n", b.names.TranslateHook)
	return sb.String()
}

// ApplyManifest marks, elides and annotates the functions of tu according to m.
func ApplyManifest(tu *csource.TranslationUnit, m *manifest.Manifest, opts ...Option) *Result {
	e := NewEngine(tu, opts...)
	return e.Run(NewBranchPass(m, e.Names()))
}
