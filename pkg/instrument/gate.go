package instrument

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"cinstr/pkg/csource"
	"cinstr/pkg/manifest"
)

// Gate marks every function definition of the primary file and comments out
// the bodies the manifest does not name.
type Gate struct {
	manifest *manifest.Manifest
	active   []*csource.FunctionDecl
	elided   map[string]*csource.FunctionDecl
}

// NewGate decides activity from m. A nil or pass-through manifest keeps
// every function active.
func NewGate(m *manifest.Manifest) *Gate {
	return &Gate{manifest: m, elided: make(map[string]*csource.FunctionDecl)}
}

// Active reports whether the body of the named function is kept.
func (g *Gate) Active(name string) bool {
	return g.manifest.Has(name)
}

// Apply writes the markers around def and reports whether its body should
// be traversed.
func (g *Gate) Apply(ctx *TraversalContext, def FunctionDefinition) bool {
	fn := def.Decl
	if !ctx.Unit.PresumedPrimary(fn.Start) {
		ctx.Logger().Debug("skipping function outside the primary file",
			zap.String("function", fn.Name), zap.Stringer("loc", fn.Start))
		return false
	}

	active := g.Active(fn.Name)
	start, end := def.Range()
	if !ctx.Editable(Boundary, start, end) {
		ctx.Skipped(fn.NameLoc, "cannot place markers around function %s", fn.Name)
		return active
	}

	ctx.InsertAt(start, fmt.Sprintf("// Begin function %s returning %s\n", fn.Name, def.ReturnType()))
	if !active {
		ctx.InsertAt(start, "#if 0\n")
		ctx.InsertAfter(end, "\n#endif")
	}
	ctx.InsertAfter(end, "\n// End function "+fn.Name)

	if active {
		g.active = append(g.active, fn)
	} else {
		g.elided[fn.Name] = fn
	}
	return active
}

// Elided lists the names of the functions whose bodies were commented out.
func (g *Gate) Elided() []string {
	names := make([]string, 0, len(g.elided))
	for name := range g.elided {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckCalls warns about active functions that call an elided one; the
// rewritten file no longer defines the callee.
func (g *Gate) CheckCalls(e *Engine) {
	if len(g.elided) == 0 {
		return
	}
	for _, fn := range g.active {
		calls := csource.Calls(fn.Body)
		callees := make([]string, 0, len(calls))
		for name := range calls {
			if _, ok := g.elided[name]; ok {
				callees = append(callees, name)
			}
		}
		sort.Strings(callees)
		for _, name := range callees {
			e.Report(KindWarning, fn.NameLoc, fn.Name, "active function %s calls elided function %s", fn.Name, name)
		}
	}
}
