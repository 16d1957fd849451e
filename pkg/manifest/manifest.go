// Package manifest holds the profiling manifest that classifies every branch
// of every kept function.
//
// File format (whitespace separated integers and names):
//
//	F
//	name limit count
//	offset value      (count times)
//	...               (F records)
//
// A negative F means "no manifest": nothing is elided and every branch is
// Unknown.
package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// MaxLimit bounds the number of branch ordinals a record may declare.
const MaxLimit = 1 << 20

// Classification is the expected outcome of one conditional.
type Classification int

const (
	Unknown  Classification = -1
	Unlikely Classification = 0
	Likely   Classification = 1
)

func (c Classification) String() string {
	switch c {
	case Unlikely:
		return "unlikely"
	case Likely:
		return "likely"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("Classification(%d)", int(c))
}

// Valid reports whether c is one of the three classifications.
func (c Classification) Valid() bool {
	return c == Unknown || c == Unlikely || c == Likely
}

// Manifest maps function names to their fixed-length classification lists.
// A nil *Manifest behaves like a pass-through manifest.
type Manifest struct {
	passThrough bool
	funcs       map[string][]Classification
	order       []string
}

// New returns an empty manifest: every function is elided until declared.
func New() *Manifest {
	return &Manifest{funcs: make(map[string][]Classification)}
}

// PassThrough returns the manifest a negative function count produces.
func PassThrough() *Manifest {
	return &Manifest{passThrough: true, funcs: make(map[string][]Classification)}
}

func (m *Manifest) IsPassThrough() bool {
	return m == nil || m.passThrough
}

// Declare (re)creates the record for name with limit Unknown entries.
// Redeclaring a function replaces its earlier record.
func (m *Manifest) Declare(name string, limit int) {
	if _, ok := m.funcs[name]; !ok {
		m.order = append(m.order, name)
	}
	list := make([]Classification, limit)
	for i := range list {
		list[i] = Unknown
	}
	m.funcs[name] = list
}

// Set overrides one ordinal of a declared function.
func (m *Manifest) Set(name string, ordinal int, c Classification) error {
	list, ok := m.funcs[name]
	if !ok {
		return fmt.Errorf("function %q is not declared", name)
	}
	if ordinal < 0 || ordinal >= len(list) {
		return fmt.Errorf("ordinal %d out of range [0, %d) for function %q", ordinal, len(list), name)
	}
	if !c.Valid() {
		return fmt.Errorf("invalid classification %d", int(c))
	}
	list[ordinal] = c
	return nil
}

// Classify returns the classification of the ordinal-th branch of name.
// Pass-through manifests, undeclared functions and ordinals at or beyond the
// declared limit all give Unknown.
func (m *Manifest) Classify(name string, ordinal int) Classification {
	if m.IsPassThrough() {
		return Unknown
	}
	list, ok := m.funcs[name]
	if !ok || ordinal < 0 || ordinal >= len(list) {
		return Unknown
	}
	return list[ordinal]
}

// Has reports whether name keeps its body. Every function is kept in
// pass-through mode.
func (m *Manifest) Has(name string) bool {
	if m.IsPassThrough() {
		return true
	}
	_, ok := m.funcs[name]
	return ok
}

// Limit returns the declared number of classified branches of name.
func (m *Manifest) Limit(name string) (int, bool) {
	if m == nil {
		return 0, false
	}
	list, ok := m.funcs[name]
	return len(list), ok
}

// Functions lists the declared functions in first-declaration order.
func (m *Manifest) Functions() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// WriteTo serializes m in the format Parse reads. Only entries that differ
// from Unknown are written as overrides.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	write := func(format string, args ...any) {
		c, _ := fmt.Fprintf(bw, format, args...)
		n += int64(c)
	}

	if m.IsPassThrough() {
		write("-1\n")
		return n, bw.Flush()
	}
	write("%d\n", len(m.order))
	for _, name := range m.order {
		list := m.funcs[name]
		count := 0
		for _, c := range list {
			if c != Unknown {
				count++
			}
		}
		write("%s %d %d\n", name, len(list), count)
		for i, c := range list {
			if c != Unknown {
				write("%d %d\n", i, int(c))
			}
		}
	}
	return n, bw.Flush()
}

// FormatError reports a malformed manifest. Token is the 1-based index of
// the offending token; 0 means end of input.
type FormatError struct {
	Path  string
	Token int
	Msg   string
}

func (e *FormatError) Error() string {
	where := "end of input"
	if e.Token > 0 {
		where = "token " + strconv.Itoa(e.Token)
	}
	if e.Path != "" {
		return fmt.Sprintf("manifest %s: %s: %s", e.Path, where, e.Msg)
	}
	return fmt.Sprintf("manifest: %s: %s", where, e.Msg)
}

// tokenStream yields whitespace-separated tokens with their positions.
type tokenStream struct {
	sc    *bufio.Scanner
	index int
}

func (s *tokenStream) next() (string, bool) {
	if !s.sc.Scan() {
		return "", false
	}
	s.index++
	return s.sc.Text(), true
}

func (s *tokenStream) nextInt(what string) (int, error) {
	tok, ok := s.next()
	if !ok {
		if err := s.sc.Err(); err != nil {
			return 0, err
		}
		return 0, &FormatError{Msg: "missing " + what}
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &FormatError{Token: s.index, Msg: fmt.Sprintf("%s %q is not an integer", what, tok)}
	}
	return v, nil
}

// Parse reads a manifest. A negative leading count yields a pass-through
// manifest and the rest of the input is ignored. Duplicate function records
// replace earlier ones.
func Parse(r io.Reader) (*Manifest, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	s := &tokenStream{sc: sc}

	nfuncs, err := s.nextInt("function count")
	if err != nil {
		return nil, err
	}
	if nfuncs < 0 {
		return PassThrough(), nil
	}

	m := New()
	for i := 0; i < nfuncs; i++ {
		name, ok := s.next()
		if !ok {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, &FormatError{Msg: fmt.Sprintf("missing record %d of %d", i+1, nfuncs)}
		}
		limitTok := s.index + 1
		limit, err := s.nextInt("limit")
		if err != nil {
			return nil, err
		}
		if limit < 0 {
			return nil, &FormatError{Token: limitTok, Msg: fmt.Sprintf("negative limit %d for function %q", limit, name)}
		}
		if limit > MaxLimit {
			return nil, &FormatError{Token: limitTok, Msg: fmt.Sprintf("limit %d for function %q exceeds %d", limit, name, MaxLimit)}
		}
		countTok := s.index + 1
		count, err := s.nextInt("override count")
		if err != nil {
			return nil, err
		}
		if count < 0 {
			return nil, &FormatError{Token: countTok, Msg: fmt.Sprintf("negative override count %d for function %q", count, name)}
		}

		m.Declare(name, limit)
		for j := 0; j < count; j++ {
			offTok := s.index + 1
			offset, err := s.nextInt("offset")
			if err != nil {
				return nil, err
			}
			if offset < 0 || offset >= limit {
				return nil, &FormatError{Token: offTok, Msg: fmt.Sprintf("offset %d outside [0, %d) for function %q", offset, limit, name)}
			}
			valTok := s.index + 1
			value, err := s.nextInt("value")
			if err != nil {
				return nil, err
			}
			c := Classification(value)
			if !c.Valid() {
				return nil, &FormatError{Token: valTok, Msg: fmt.Sprintf("value %d is not one of 0, 1, -1", value)}
			}
			m.funcs[name][offset] = c
		}
	}

	if tok, ok := s.next(); ok {
		return nil, &FormatError{Token: s.index, Msg: fmt.Sprintf("unexpected trailing token %q", tok)}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads and parses the manifest at path. The file is closed before Load
// returns.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	return m, nil
}
