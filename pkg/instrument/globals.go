package instrument

import (
	"strings"

	"go.uber.org/zap"

	"cinstr/pkg/csource"
)

// GlobalsPass routes every read and write of a variable with static storage
// through an accessor returning its address, so the runtime can relocate it.
type GlobalsPass struct {
	names     Names
	accessors []string
	declared  map[string]*csource.VariableDecl
}

// NewGlobalsPass builds accessor names with names.AccessorSuffix.
func NewGlobalsPass(names Names) *GlobalsPass {
	return &GlobalsPass{names: names, declared: make(map[string]*csource.VariableDecl)}
}

func (g *GlobalsPass) Visit(ctx *TraversalContext, s Site) bool {
	switch s := s.(type) {
	case FunctionDefinition:
		return ctx.Unit.PresumedPrimary(s.Decl.Start)
	case VariableDeclaration:
		if !s.Decl.HasGlobalStorage() {
			return true
		}
		g.declare(ctx, s.Decl)
		// static initializers must stay constant expressions
		return false
	case Reference:
		if s.Decl.HasGlobalStorage() {
			g.redirect(ctx, s)
		}
	}
	return true
}

func (g *GlobalsPass) accessor(name string) string {
	return name + g.names.AccessorSuffix
}

func (g *GlobalsPass) declare(ctx *TraversalContext, d *csource.VariableDecl) {
	prev, ok := g.declared[d.Name]
	if !ok {
		g.declared[d.Name] = d
		g.accessors = append(g.accessors, "void* "+g.accessor(d.Name)+"(void);")
		return
	}
	if prev != d && !(hasLinkage(prev) && hasLinkage(d)) {
		ctx.Warn(d.NameLoc, "global %s shares accessor %s() with another declaration on line %d",
			d.Name, g.accessor(d.Name), prev.NameLoc.Line)
	}
}

// hasLinkage reports whether every declaration of this name in the unit
// denotes one object.
func hasLinkage(d *csource.VariableDecl) bool {
	return d.Scope == csource.ScopeGlobal || d.Storage == csource.StorageExtern
}

func (g *GlobalsPass) redirect(ctx *TraversalContext, r Reference) {
	loc := r.Ident.Loc
	if !ctx.Editable(Interior, loc) {
		ctx.Skipped(loc, "reference to global %s comes from a macro expansion; left as is", r.Decl.Name)
		return
	}
	ctx.InsertOuter(loc, "(*("+accessType(r.Decl)+")(")
	// the identifier itself becomes the start of the accessor name
	ctx.InsertAfter(loc, g.names.AccessorSuffix+"()))")
	ctx.Logger().Debug("rewrote global reference",
		zap.String("name", r.Decl.Name), zap.Stringer("loc", loc), zap.String("function", ctx.Function))
}

// accessType spells a pointer to the declared type of d.
func accessType(d *csource.VariableDecl) string {
	if d.Type.HasAnonymousRecord() {
		return "__typeof__(" + d.Name + ")*"
	}
	return csource.PointerTo(d.Type).String()
}

func (g *GlobalsPass) Finish(*Engine) {}

// Boilerplate declares one accessor per global name, in encounter order.
func (g *GlobalsPass) Boilerplate() string {
	if len(g.accessors) == 0 {
		return ""
	}
	return strings.Join(g.accessors, "\n") + "\n"
}

// PatchGlobals redirects the global variable references of tu's primary file.
func PatchGlobals(tu *csource.TranslationUnit, opts ...Option) *Result {
	e := NewEngine(tu, opts...)
	return e.Run(NewGlobalsPass(e.Names()))
}
