package csource

import "strings"

// TypeKind distinguishes the derivation steps of a C type.
type TypeKind int

const (
	TypeBase TypeKind = iota // int, struct foo, size_t, ...
	TypePointer
	TypeArray
	TypeFunc
)

// Type is a C type as written: a base specifier wrapped by pointer, array and
// function derivations. Types are compared by spelling, never by identity.
type Type struct {
	Kind TypeKind
	Name string // base specifier text, e.g. "unsigned long" or "struct node"
	Qual string // qualifiers at this level, e.g. "const"

	Elem       *Type  // pointee, array element or function result
	Len        string // array length as written; empty for []
	Params     []*Type
	Variadic   bool
	Prototyped bool // parameters were declared, including (void)
	ParamDecls []*VariableDecl

	Record *RecordDecl // set when Name names a struct/union/enum defined in the unit
}

// BaseType builds a base type from its specifier spelling.
func BaseType(name string) *Type {
	return &Type{Kind: TypeBase, Name: name}
}

// PointerTo returns the type "pointer to t".
func PointerTo(t *Type) *Type {
	return &Type{Kind: TypePointer, Elem: t}
}

// ArrayOf returns the type "array of n t".
func ArrayOf(t *Type, n string) *Type {
	return &Type{Kind: TypeArray, Elem: t, Len: n}
}

func (t *Type) IsPointer() bool { return t != nil && t.Kind == TypePointer }
func (t *Type) IsArray() bool   { return t != nil && t.Kind == TypeArray }
func (t *Type) IsFunc() bool    { return t != nil && t.Kind == TypeFunc }

// String spells t as an abstract declarator in compact form: int*, char const*,
// int(*)[10], void(*)(int).
func (t *Type) String() string {
	if t == nil {
		return "int"
	}
	return t.declare("", true)
}

// Declare spells a declaration of name with type t, e.g. "int (*fp)(char)".
func (t *Type) Declare(name string) string {
	if t == nil {
		return "int " + name
	}
	return t.declare(name, false)
}

// declare wraps inner, the declarator built so far, in t's derivation.
func (t *Type) declare(inner string, abstract bool) string {
	switch t.Kind {
	case TypePointer:
		d := "*"
		if t.Qual != "" {
			d += t.Qual
			if inner != "" {
				d += " "
			}
		}
		d += inner
		if t.Elem != nil && (t.Elem.Kind == TypeArray || t.Elem.Kind == TypeFunc) {
			d = "(" + d + ")"
		}
		return t.Elem.orInt().declare(d, abstract)
	case TypeArray:
		return t.Elem.orInt().declare(inner+"["+t.Len+"]", abstract)
	case TypeFunc:
		return t.Elem.orInt().declare(inner+"("+t.paramList()+")", abstract)
	}

	base := t.Name
	if t.Qual != "" {
		base = t.Qual + " " + base
	}
	if inner == "" {
		return base
	}
	if abstract && strings.ContainsRune("*([", rune(inner[0])) {
		return base + inner
	}
	return base + " " + inner
}

func (t *Type) orInt() *Type {
	if t == nil {
		return BaseType("int")
	}
	return t
}

func (t *Type) paramList() string {
	if len(t.Params) == 0 {
		if t.Variadic {
			return "..."
		}
		if t.Prototyped {
			return "void"
		}
		return ""
	}
	parts := make([]string, 0, len(t.Params)+1)
	for _, p := range t.Params {
		parts = append(parts, p.String())
	}
	if t.Variadic {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

// withQual returns a copy of t carrying the extra qualifiers q.
func (t *Type) withQual(q []string) *Type {
	if len(q) == 0 {
		return t
	}
	c := *t
	if c.Qual != "" {
		q = append([]string{c.Qual}, q...)
	}
	c.Qual = strings.Join(dedupe(q), " ")
	return &c
}

func dedupe(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := words[:0:0]
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// HasAnonymousRecord reports whether spelling t would name an unnamed struct,
// union or enum, which C cannot spell a second time.
func (t *Type) HasAnonymousRecord() bool {
	for ; t != nil; t = t.Elem {
		if strings.Contains(t.Name, AnonymousTag) {
			return true
		}
		for _, p := range t.Params {
			if p.HasAnonymousRecord() {
				return true
			}
		}
	}
	return false
}
