// Package tsfront builds csource translation units with the tree-sitter C
// grammar instead of the native preprocessor and parser.
//
// No preprocessing happens: #include lines are recorded and passed over,
// macros are not expanded, and declarations inside #if/#ifdef groups are
// converted as if every group were active.
package tsfront

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"cinstr/pkg/csource"
)

// Load reads path and parses it as the primary file.
func Load(ctx context.Context, path string) (*csource.TranslationUnit, error) {
	f, err := csource.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(ctx, f)
}

// Parse converts the tree-sitter syntax tree of f into a translation unit.
// Trees with ERROR or MISSING nodes are rejected with a *csource.ParseError.
func Parse(ctx context.Context, f *csource.File) (*csource.TranslationUnit, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, f.Content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed on %s: %w", f.Name, err)
	}
	defer tree.Close()

	cv := &converter{file: f, src: f.Content, syms: csource.NewSymbolTable()}
	root := tree.RootNode()
	if root.HasError() {
		return nil, cv.syntaxError(root)
	}

	decls, err := cv.items(root)
	if err != nil {
		return nil, err
	}
	return &csource.TranslationUnit{
		Primary: f,
		Files:   []*csource.File{f},
		Decls:   decls,
		Skipped: cv.skipped,
	}, nil
}

// converter carries the state of one tree conversion.
type converter struct {
	file    *csource.File
	src     []byte
	syms    *csource.SymbolTable
	skipped []string
}

func (cv *converter) text(n *sitter.Node) string {
	return n.Content(cv.src)
}

func (cv *converter) loc(n *sitter.Node) csource.Loc {
	return csource.Loc{
		File:     cv.file,
		Offset:   int(n.StartByte()),
		End:      int(n.EndByte()),
		Line:     int(n.StartPoint().Row) + 1,
		Presumed: cv.file.Path,
	}
}

func (cv *converter) errorAt(n *sitter.Node, format string, args ...any) *csource.ParseError {
	if n == nil {
		return &csource.ParseError{File: cv.file.Name, Msg: fmt.Sprintf(format, args...)}
	}
	line := int(n.StartPoint().Row) + 1
	return &csource.ParseError{
		File:    cv.file.Name,
		Line:    line,
		Msg:     fmt.Sprintf(format, args...),
		Snippet: strings.TrimSpace(cv.file.LineText(line)),
	}
}

func (cv *converter) unsupported(n *sitter.Node, what string) error {
	if n == nil {
		return cv.errorAt(nil, "missing %s", what)
	}
	return cv.errorAt(n, "unsupported %s %s", what, n.Type())
}

// syntaxError reports the first ERROR or MISSING node under n.
func (cv *converter) syntaxError(n *sitter.Node) error {
	bad := findError(n)
	if bad == nil {
		return cv.errorAt(n, "syntax error")
	}
	if bad.IsMissing() {
		return cv.errorAt(bad, "missing %s", bad.Type())
	}
	return cv.errorAt(bad, "syntax error near %q", firstLine(cv.text(bad)))
}

func findError(n *sitter.Node) *sitter.Node {
	if n.IsMissing() || n.Type() == "ERROR" {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			if bad := findError(child); bad != nil {
				return bad
			}
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// named returns the named children of n that carry syntax, leaving out
// comments and attributes.
func named(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "comment", "attribute_specifier", "attribute_declaration", "ms_declspec_modifier":
			continue
		}
		out = append(out, child)
	}
	return out
}

// fields returns every child of n stored under field name.
func fields(n *sitter.Node, name string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == name {
			out = append(out, n.Child(i))
		}
	}
	return out
}

// items converts the external declarations of a translation unit or of a
// preprocessor conditional group.
func (cv *converter) items(n *sitter.Node) ([]csource.Decl, error) {
	var decls []csource.Decl
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		if field := n.FieldNameForChild(i); field == "name" || field == "condition" {
			continue
		}

		var (
			ds  []csource.Decl
			err error
		)
		switch child.Type() {
		case "function_definition":
			var fn *csource.FunctionDecl
			fn, err = cv.function(child)
			if fn != nil {
				ds = []csource.Decl{fn}
			}
		case "declaration":
			ds, err = cv.declaration(child)
		case "type_definition":
			ds, err = cv.typedef(child)
		case "struct_specifier", "union_specifier", "enum_specifier":
			var rec *csource.RecordDecl
			_, rec, err = cv.record(child)
			if rec != nil {
				ds = []csource.Decl{rec}
			}
		case "preproc_include":
			if path := child.ChildByFieldName("path"); path != nil {
				cv.skipped = append(cv.skipped, strings.Trim(cv.text(path), `"<>`))
			}
		case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_elifdef":
			ds, err = cv.items(child)
		}
		if err != nil {
			return nil, err
		}
		decls = append(decls, ds...)
	}
	return decls, nil
}

// specs are the declaration specifiers shared by every declarator.
type specs struct {
	base    *csource.Type
	storage csource.StorageClass
	records []*csource.RecordDecl
}

var storageClasses = map[string]csource.StorageClass{
	"static":   csource.StorageStatic,
	"extern":   csource.StorageExtern,
	"auto":     csource.StorageAuto,
	"register": csource.StorageRegister,
}

func (cv *converter) specifiers(n *sitter.Node) (*specs, error) {
	s := &specs{}
	var quals []string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		field := n.FieldNameForChild(i)
		if !child.IsNamed() || field == "declarator" || field == "body" || field == "value" {
			continue
		}
		switch {
		case field == "type":
			typ, rec, err := cv.typeSpecifier(child)
			if err != nil {
				return nil, err
			}
			s.base = typ
			if rec != nil {
				s.records = append(s.records, rec)
			}
		case child.Type() == "storage_class_specifier":
			if sc, ok := storageClasses[cv.text(child)]; ok {
				s.storage = sc
			}
		case child.Type() == "type_qualifier":
			quals = append(quals, cv.text(child))
		}
	}
	if s.base == nil {
		s.base = csource.BaseType("int")
	}
	s.base = qualified(s.base, quals)
	return s, nil
}

func qualified(t *csource.Type, quals []string) *csource.Type {
	if len(quals) == 0 {
		return t
	}
	q := *t
	if q.Qual != "" {
		quals = append([]string{q.Qual}, quals...)
	}
	q.Qual = strings.Join(quals, " ")
	return &q
}

// typeSpecifier returns the base type, and the record it defines if any.
func (cv *converter) typeSpecifier(n *sitter.Node) (*csource.Type, *csource.RecordDecl, error) {
	switch n.Type() {
	case "primitive_type", "type_identifier", "macro_type_specifier":
		return csource.BaseType(cv.text(n)), nil, nil
	case "sized_type_specifier":
		return csource.BaseType(strings.Join(strings.Fields(cv.text(n)), " ")), nil, nil
	case "struct_specifier", "union_specifier", "enum_specifier":
		return cv.record(n)
	}
	return nil, nil, cv.unsupported(n, "type specifier")
}

var recordKinds = map[string]csource.TokenType{
	"struct_specifier": csource.STRUCT,
	"union_specifier":  csource.UNION,
	"enum_specifier":   csource.ENUM,
}

// record converts a struct, union or enum specifier. The RecordDecl is
// returned only when the specifier has a body.
func (cv *converter) record(n *sitter.Node) (*csource.Type, *csource.RecordDecl, error) {
	kind := recordKinds[n.Type()]
	keyword := strings.TrimSuffix(n.Type(), "_specifier")

	tag := ""
	if name := n.ChildByFieldName("name"); name != nil {
		tag = cv.text(name)
	}
	typ := csource.BaseType(keyword + " " + tag)
	if tag == "" {
		typ = csource.BaseType(keyword + " " + csource.AnonymousTag)
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		if rec, ok := cv.syms.LookupTag(tag); ok {
			typ.Record = rec
		}
		return typ, nil, nil
	}

	rec := &csource.RecordDecl{Kind: kind, Tag: tag, Loc: cv.loc(n)}
	typ.Record = rec
	if tag != "" {
		cv.syms.DefineTag(rec)
	}

	if kind == csource.ENUM {
		for _, e := range named(body) {
			if e.Type() != "enumerator" {
				continue
			}
			name := e.ChildByFieldName("name")
			ec := &csource.EnumConstDecl{Name: cv.text(name), NameLoc: cv.loc(name)}
			if v := e.ChildByFieldName("value"); v != nil {
				value, err := cv.expr(v)
				if err != nil {
					return nil, nil, err
				}
				ec.Value = value
			}
			cv.syms.Define(ec.Name, ec)
			rec.Enumerators = append(rec.Enumerators, ec)
		}
		return typ, rec, nil
	}

	for _, fd := range named(body) {
		if fd.Type() != "field_declaration" {
			continue
		}
		s, err := cv.specifiers(fd)
		if err != nil {
			return nil, nil, err
		}
		decls := fields(fd, "declarator")
		if len(decls) == 0 {
			// anonymous struct or union member
			rec.Fields = append(rec.Fields, csource.FieldDecl{Type: s.base})
			continue
		}
		for _, d := range decls {
			name, _, t, err := cv.declarator(d, s.base)
			if err != nil {
				return nil, nil, err
			}
			rec.Fields = append(rec.Fields, csource.FieldDecl{Name: name, Type: t})
		}
	}
	return typ, rec, nil
}

// declarator applies the derivations of n to typ, outermost first, and
// returns the declared name, if any.
func (cv *converter) declarator(n *sitter.Node, typ *csource.Type) (string, csource.Loc, *csource.Type, error) {
	if n == nil {
		return "", csource.Loc{}, typ, nil
	}
	switch n.Type() {
	case "identifier", "field_identifier", "type_identifier", "primitive_type":
		return cv.text(n), cv.loc(n), typ, nil

	case "pointer_declarator", "abstract_pointer_declarator":
		ptr := csource.PointerTo(typ)
		var quals []string
		for _, child := range named(n) {
			if child.Type() == "type_qualifier" {
				quals = append(quals, cv.text(child))
			}
		}
		ptr.Qual = strings.Join(quals, " ")
		return cv.declarator(n.ChildByFieldName("declarator"), ptr)

	case "array_declarator", "abstract_array_declarator":
		size := ""
		if s := n.ChildByFieldName("size"); s != nil {
			size = cv.text(s)
		}
		return cv.declarator(n.ChildByFieldName("declarator"), csource.ArrayOf(typ, size))

	case "function_declarator", "abstract_function_declarator":
		fn, err := cv.parameters(n.ChildByFieldName("parameters"), typ)
		if err != nil {
			return "", csource.Loc{}, nil, err
		}
		return cv.declarator(n.ChildByFieldName("declarator"), fn)

	case "parenthesized_declarator", "abstract_parenthesized_declarator", "attributed_declarator":
		inner := named(n)
		if len(inner) == 0 {
			return "", csource.Loc{}, typ, nil
		}
		return cv.declarator(inner[0], typ)
	}
	return "", csource.Loc{}, nil, cv.unsupported(n, "declarator")
}

// parameters builds the function type returning ret from a parameter list.
func (cv *converter) parameters(list *sitter.Node, ret *csource.Type) (*csource.Type, error) {
	fn := &csource.Type{Kind: csource.TypeFunc, Elem: ret}
	if list == nil {
		return fn, nil
	}
	params := named(list)
	if len(params) == 0 {
		return fn, nil
	}
	fn.Prototyped = true
	if len(params) == 1 && params[0].Type() == "parameter_declaration" &&
		params[0].ChildByFieldName("declarator") == nil && cv.text(params[0]) == "void" {
		return fn, nil
	}

	for _, p := range params {
		switch p.Type() {
		case "variadic_parameter":
			fn.Variadic = true
		case "parameter_declaration":
			s, err := cv.specifiers(p)
			if err != nil {
				return nil, err
			}
			name, nameLoc, t, err := cv.declarator(p.ChildByFieldName("declarator"), s.base)
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, t)
			fn.ParamDecls = append(fn.ParamDecls, &csource.VariableDecl{
				Name:    name,
				NameLoc: nameLoc,
				Start:   cv.loc(p),
				Type:    t,
				Storage: s.storage,
				Scope:   csource.ScopeLocal,
				IsParam: true,
			})
		default:
			return nil, cv.unsupported(p, "parameter")
		}
	}
	return fn, nil
}

// declaration converts one declaration at any scope, one Decl per declarator
// plus the records its specifiers define.
func (cv *converter) declaration(n *sitter.Node) ([]csource.Decl, error) {
	s, err := cv.specifiers(n)
	if err != nil {
		return nil, err
	}
	var out []csource.Decl
	for _, r := range s.records {
		out = append(out, r)
	}

	for _, d := range fields(n, "declarator") {
		var value *sitter.Node
		if d.Type() == "init_declarator" {
			value = d.ChildByFieldName("value")
			d = d.ChildByFieldName("declarator")
		}
		name, nameLoc, t, err := cv.declarator(d, s.base)
		if err != nil {
			return nil, err
		}

		if t.Kind == csource.TypeFunc {
			fn := &csource.FunctionDecl{
				Name:    name,
				NameLoc: nameLoc,
				Start:   cv.loc(n),
				Type:    t,
				Params:  t.ParamDecls,
				Storage: s.storage,
			}
			cv.syms.Define(name, fn)
			out = append(out, fn)
			continue
		}

		v := &csource.VariableDecl{
			Name:    name,
			NameLoc: nameLoc,
			Start:   cv.loc(n),
			Type:    t,
			Storage: s.storage,
			Scope:   cv.syms.Scope(),
		}
		cv.syms.Define(name, v)
		if value != nil {
			init, err := cv.expr(value)
			if err != nil {
				return nil, err
			}
			v.Init = init
		}
		out = append(out, v)
	}
	return out, nil
}

func (cv *converter) typedef(n *sitter.Node) ([]csource.Decl, error) {
	s, err := cv.specifiers(n)
	if err != nil {
		return nil, err
	}
	var out []csource.Decl
	for _, r := range s.records {
		out = append(out, r)
	}
	for _, d := range fields(n, "declarator") {
		name, nameLoc, t, err := cv.declarator(d, s.base)
		if err != nil {
			return nil, err
		}
		td := &csource.TypedefDecl{Name: name, NameLoc: nameLoc, Type: t}
		cv.syms.Define(name, td)
		out = append(out, td)
	}
	return out, nil
}

func (cv *converter) function(n *sitter.Node) (*csource.FunctionDecl, error) {
	s, err := cv.specifiers(n)
	if err != nil {
		return nil, err
	}
	name, nameLoc, t, err := cv.declarator(n.ChildByFieldName("declarator"), s.base)
	if err != nil {
		return nil, err
	}
	if t.Kind != csource.TypeFunc {
		return nil, cv.errorAt(n, "function definition of %s without a parameter list", name)
	}

	fn := &csource.FunctionDecl{
		Name:    name,
		NameLoc: nameLoc,
		Start:   cv.loc(n),
		Type:    t,
		Params:  t.ParamDecls,
		Storage: s.storage,
	}
	cv.syms.Define(name, fn)

	cv.syms.EnterFunction(fn.Params)
	defer cv.syms.ExitFunction()
	body, err := cv.block(n.ChildByFieldName("body"), false)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}
