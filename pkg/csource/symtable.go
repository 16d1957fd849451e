package csource

import (
	"fmt"
	"sort"
	"strings"
)

type ScopeType int

const (
	ScopeGlobal ScopeType = iota
	ScopeLocal
)

func (s ScopeType) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "local"
}

// SymbolTable resolves ordinary identifiers (variables, functions, typedef
// names, enumerators) to the declaration currently in scope.
// File-scope names live in globals; every block, function body and parameter
// list pushes one map onto locals.
type SymbolTable struct {
	globals map[string]Decl

	// Stack of local scopes.
	// Each scope maps name -> Decl.
	locals []map[string]Decl

	// Struct, union and enum tags. C gives them their own namespace.
	tags map[string]*RecordDecl
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		globals: make(map[string]Decl),
		tags:    make(map[string]*RecordDecl),
	}
}

// EnterFunction opens the scope of a function body with its parameters
// already defined. Parameters and the outermost body block share this scope.
func (s *SymbolTable) EnterFunction(params []*VariableDecl) {
	s.locals = append(s.locals, make(map[string]Decl))
	for _, p := range params {
		if p.Name != "" {
			s.Define(p.Name, p)
		}
	}
}

// EnterScope opens a nested block or a function prototype scope.
func (s *SymbolTable) EnterScope() {
	s.locals = append(s.locals, make(map[string]Decl))
}

func (s *SymbolTable) ExitScope() {
	if len(s.locals) > 0 {
		s.locals = s.locals[:len(s.locals)-1]
	}
}

// ExitFunction closes the scope opened by EnterFunction.
func (s *SymbolTable) ExitFunction() {
	s.ExitScope()
}

// Scope reports whether declarations made now are at file scope.
func (s *SymbolTable) Scope() ScopeType {
	if s.inFunction() {
		return ScopeLocal
	}
	return ScopeGlobal
}

// Define binds name in the CURRENT scope and returns the declaration it
// replaces in that same scope, if any (redeclarations such as
// "extern int g; int g;").
func (s *SymbolTable) Define(name string, decl Decl) Decl {
	scope := s.globals
	if len(s.locals) > 0 {
		scope = s.locals[len(s.locals)-1]
	}
	prev := scope[name]
	scope[name] = decl
	return prev
}

// Lookup returns the innermost declaration of name and whether it was found.
func (s *SymbolTable) Lookup(name string) (Decl, bool) {
	// Search locals from top of stack down
	for i := len(s.locals) - 1; i >= 0; i-- {
		if d, ok := s.locals[i][name]; ok {
			return d, true
		}
	}

	// Search globals
	d, ok := s.globals[name]
	return d, ok
}

// IsTypeName reports whether name currently resolves to a typedef.
func (s *SymbolTable) IsTypeName(name string) bool {
	d, ok := s.Lookup(name)
	if !ok {
		return false
	}
	_, isTypedef := d.(*TypedefDecl)
	return isTypedef
}

func (s *SymbolTable) DefineTag(rec *RecordDecl) {
	if rec.Tag != "" {
		s.tags[rec.Tag] = rec
	}
}

func (s *SymbolTable) LookupTag(tag string) (*RecordDecl, bool) {
	r, ok := s.tags[tag]
	return r, ok
}

// inFunction returns true if a local scope is open.
func (s *SymbolTable) inFunction() bool {
	return len(s.locals) > 0
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.globals) > 0 {
		sb.WriteString("Globals:\n")
		writeScope(&sb, s.globals, "  ")
	} else {
		sb.WriteString("Globals: (empty)\n")
	}

	if len(s.locals) > 0 {
		sb.WriteString("Locals (Active Stack):\n")
		for i, scope := range s.locals {
			fmt.Fprintf(&sb, "  Scope %d:\n", i)
			writeScope(&sb, scope, "    ")
		}
	}

	if len(s.tags) > 0 {
		sb.WriteString("Tags:\n")
		names := make([]string, 0, len(s.tags))
		for name := range s.tags {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "  %s\n", s.tags[name])
		}
	}
	return sb.String()
}

func writeScope(sb *strings.Builder, scope map[string]Decl, indent string) {
	names := make([]string, 0, len(scope))
	for name := range scope {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(sb, "%s%-20s  %s\n", indent, name, scope[name])
	}
}
