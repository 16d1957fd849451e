// Package instrument rewrites a parsed C translation unit for the branch
// outcome runtime: it marks and elides function definitions, wraps if
// conditions in classification helpers, redirects global variables through
// accessor functions and inserts trace hooks.
//
// Pipeline: TranslationUnit → Engine walk → Pass → edit.Buffer → Emit
package instrument

import (
	"fmt"

	"go.uber.org/zap"

	"cinstr/pkg/csource"
)

// Names are the runtime symbols the rewritten source refers to.
type Names struct {
	Prefix         string // classification helpers are Prefix_likely, Prefix_unlikely, ...
	TranslateHook  string
	ConditionHook  string
	FunctionHook   string
	SwitchHook     string
	AccessorSuffix string // global g is reached through g + AccessorSuffix + "()"
}

// DefaultNames returns the symbol names the runtime library exports.
func DefaultNames() Names {
	return Names{
		Prefix:         "mpns",
		TranslateHook:  "__translate_function",
		ConditionHook:  "__trace_condition",
		FunctionHook:   "__trace_function",
		SwitchHook:     "__trace_switch",
		AccessorSuffix: "__addr",
	}
}

// Kind classifies a diagnostic.
type Kind int

const (
	KindWarning     Kind = iota
	KindUnsupported      // a construct the pass cannot rewrite; its ordinal is still consumed
)

func (k Kind) String() string {
	switch k {
	case KindWarning:
		return "warning"
	case KindUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Diagnostic is a non-fatal finding reported while rewriting.
type Diagnostic struct {
	Kind     Kind
	Loc      csource.Loc
	Function string // enclosing function, empty at file scope
	Msg      string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Loc, d.Kind, d.Msg)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sends diagnostics and debug traces to l.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNames overrides the runtime symbol names.
func WithNames(n Names) Option {
	return func(e *Engine) {
		e.names = n
	}
}
