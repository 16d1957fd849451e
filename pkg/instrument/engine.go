package instrument

import (
	"fmt"

	"go.uber.org/zap"

	"cinstr/pkg/csource"
	"cinstr/pkg/edit"
)

// Site is one place in the tree a pass may react to. The set is closed:
// Conditional, Switch, FunctionDefinition, VariableDeclaration, Reference.
type Site interface {
	site()
}

// Conditional is an if statement and the branch ordinal it consumed.
type Conditional struct {
	Stmt    *csource.IfStmt
	Ordinal int
}

// Switch is a switch statement and the branch ordinal it consumed.
type Switch struct {
	Stmt    *csource.SwitchStmt
	Ordinal int
}

// FunctionDefinition is a top-level function with a body.
type FunctionDefinition struct {
	Decl *csource.FunctionDecl
}

// VariableDeclaration is any variable declarator, at file or block scope.
type VariableDeclaration struct {
	Decl *csource.VariableDecl
}

// Reference is an identifier that resolved to a variable.
type Reference struct {
	Ident *csource.Ident
	Decl  *csource.VariableDecl
}

func (Conditional) site()         {}
func (Switch) site()              {}
func (FunctionDefinition) site()  {}
func (VariableDeclaration) site() {}
func (Reference) site()           {}

// Name is the function's identifier.
func (f FunctionDefinition) Name() string { return f.Decl.Name }

// ReturnType spells the declared result type.
func (f FunctionDefinition) ReturnType() string { return f.Decl.ReturnType().String() }

// Range returns the first token of the declaration and the closing brace.
func (f FunctionDefinition) Range() (start, end csource.Loc) {
	return f.Decl.Start, f.Decl.Body.RBrace
}

// A Pass reacts to the sites of one walk over a translation unit.
type Pass interface {
	// Visit handles one site. Returning false skips everything nested in it.
	Visit(ctx *TraversalContext, s Site) bool
	// Finish runs once after the walk.
	Finish(e *Engine)
	// Boilerplate is the text emitted ahead of the rewritten source.
	Boilerplate() string
}

// Placement says how much of a location must be the primary file's own text
// for an edit there to be safe.
type Placement int

const (
	// Boundary edits sit before or after a whole construct; the location
	// may be a macro invocation as long as it is in the primary file.
	Boundary Placement = iota
	// Interior edits split a construct and need text written out in full.
	Interior
)

// TraversalContext is the state shared by every site of one top-level
// declaration. Ordinals restart at zero for each declaration.
type TraversalContext struct {
	Function string // empty outside function definitions
	Unit     *csource.TranslationUnit
	Buffer   *edit.Buffer

	ordinal int
	engine  *Engine
}

func (c *TraversalContext) nextOrdinal() int {
	n := c.ordinal
	c.ordinal++
	return n
}

// Ordinals is the number of branch ordinals consumed so far.
func (c *TraversalContext) Ordinals() int {
	return c.ordinal
}

// Editable reports whether every loc accepts an edit with placement p.
func (c *TraversalContext) Editable(p Placement, locs ...csource.Loc) bool {
	for _, loc := range locs {
		if !c.Unit.IsPrimary(loc) {
			return false
		}
		if p == Interior && loc.Expanded {
			return false
		}
	}
	return true
}

// InsertAt records text in front of loc.
func (c *TraversalContext) InsertAt(loc csource.Loc, text string) {
	c.Buffer.Insert(loc.Offset, text)
}

// InsertOuter records text in front of loc, ahead of anything else inserted there.
func (c *TraversalContext) InsertOuter(loc csource.Loc, text string) {
	c.Buffer.InsertBefore(loc.Offset, text)
}

// InsertAfter records text right behind loc.
func (c *TraversalContext) InsertAfter(loc csource.Loc, text string) {
	c.Buffer.Insert(loc.End, text)
}

// Warn reports a KindWarning diagnostic in the current function.
func (c *TraversalContext) Warn(loc csource.Loc, format string, args ...any) {
	c.engine.Report(KindWarning, loc, c.Function, format, args...)
}

// Unsupported reports a KindUnsupported diagnostic in the current function.
func (c *TraversalContext) Unsupported(loc csource.Loc, format string, args ...any) {
	c.engine.Report(KindUnsupported, loc, c.Function, format, args...)
}

// Skipped notes a site that could not be rewritten. Only sites in the
// primary file are worth a warning; the rest never produce output anyway.
func (c *TraversalContext) Skipped(loc csource.Loc, format string, args ...any) {
	if c.Unit.IsPrimary(loc) {
		c.Warn(loc, format, args...)
		return
	}
	c.engine.logger.Debug("site outside the primary file",
		zap.Stringer("loc", loc), zap.String("function", c.Function))
}

// Logger is the engine's logger.
func (c *TraversalContext) Logger() *zap.Logger {
	return c.engine.logger
}

// Names are the configured runtime symbol names.
func (c *TraversalContext) Names() Names {
	return c.engine.names
}

// Engine walks a translation unit once per pass, feeding sites to it.
type Engine struct {
	unit   *csource.TranslationUnit
	names  Names
	logger *zap.Logger
	diags  []Diagnostic
}

// NewEngine prepares passes over tu.
func NewEngine(tu *csource.TranslationUnit, opts ...Option) *Engine {
	e := &Engine{unit: tu, names: DefaultNames(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Unit is the translation unit being rewritten.
func (e *Engine) Unit() *csource.TranslationUnit {
	return e.unit
}

// Names are the configured runtime symbol names.
func (e *Engine) Names() Names {
	return e.names
}

// Report records a diagnostic and logs it as a warning.
func (e *Engine) Report(kind Kind, loc csource.Loc, function, format string, args ...any) {
	d := Diagnostic{Kind: kind, Loc: loc, Function: function, Msg: fmt.Sprintf(format, args...)}
	e.diags = append(e.diags, d)
	e.logger.Warn(d.Msg,
		zap.Stringer("loc", loc),
		zap.String("function", function),
		zap.Stringer("kind", kind))
}

// Result is the outcome of one pass.
type Result struct {
	Boilerplate string
	Source      *edit.Buffer
	Diagnostics []Diagnostic
}

// Run walks every top-level declaration with p and collects its edits.
func (e *Engine) Run(p Pass) *Result {
	e.diags = nil
	buf := edit.NewBuffer(e.unit.Primary.Content)

	for _, d := range e.unit.Decls {
		ctx := &TraversalContext{Unit: e.unit, Buffer: buf, engine: e}
		switch d := d.(type) {
		case *csource.FunctionDecl:
			if !d.HasBody() {
				continue
			}
			ctx.Function = d.Name
			if p.Visit(ctx, FunctionDefinition{Decl: d}) {
				e.walk(ctx, p, d.Body)
			}
		case *csource.VariableDecl:
			e.walk(ctx, p, d)
		}
	}
	p.Finish(e)

	return &Result{Boilerplate: p.Boilerplate(), Source: buf, Diagnostics: e.diags}
}

// walk visits root in pre-order, so ordinals follow source order.
func (e *Engine) walk(ctx *TraversalContext, p Pass, root csource.Node) {
	csource.Inspect(root, func(n csource.Node) bool {
		switch n := n.(type) {
		case *csource.IfStmt:
			return p.Visit(ctx, Conditional{Stmt: n, Ordinal: ctx.nextOrdinal()})
		case *csource.SwitchStmt:
			return p.Visit(ctx, Switch{Stmt: n, Ordinal: ctx.nextOrdinal()})
		case *csource.VariableDecl:
			return p.Visit(ctx, VariableDeclaration{Decl: n})
		case *csource.Ident:
			if d, ok := n.Binding.(*csource.VariableDecl); ok {
				return p.Visit(ctx, Reference{Ident: n, Decl: d})
			}
		case *csource.FunctionDecl:
			// block-scope prototype
			return false
		}
		return true
	})
}
