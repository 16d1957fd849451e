package instrument

import (
	"cinstr/pkg/csource"
	"cinstr/pkg/manifest"
)

// SkeletonPass counts the branch ordinals of every primary-file function.
// It records no edits.
type SkeletonPass struct {
	order  []string
	counts map[string]int
}

// NewSkeletonPass returns an empty counter.
func NewSkeletonPass() *SkeletonPass {
	return &SkeletonPass{counts: make(map[string]int)}
}

func (s *SkeletonPass) Visit(ctx *TraversalContext, site Site) bool {
	switch site := site.(type) {
	case FunctionDefinition:
		if !ctx.Unit.PresumedPrimary(site.Decl.Start) {
			return false
		}
		if _, seen := s.counts[site.Name()]; !seen {
			s.order = append(s.order, site.Name())
		}
		s.counts[site.Name()] = 0
	case Conditional:
		s.counts[ctx.Function] = site.Ordinal + 1
	case Switch:
		s.counts[ctx.Function] = site.Ordinal + 1
	}
	return true
}

func (s *SkeletonPass) Finish(*Engine) {}

func (s *SkeletonPass) Boilerplate() string { return "" }

// Manifest declares each counted function with its ordinal count as limit
// and no overrides, so every branch classifies as unknown.
func (s *SkeletonPass) Manifest() *manifest.Manifest {
	m := manifest.New()
	for _, name := range s.order {
		m.Declare(name, s.counts[name])
	}
	return m
}

// Skeleton builds the all-unknown manifest for tu's primary file.
func Skeleton(tu *csource.TranslationUnit, opts ...Option) (*manifest.Manifest, []Diagnostic) {
	p := NewSkeletonPass()
	res := NewEngine(tu, opts...).Run(p)
	return p.Manifest(), res.Diagnostics
}
