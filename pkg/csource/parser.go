package csource

import (
	"fmt"
	"strings"
)

// Parser consumes the preprocessed token slice and builds an AST with every
// identifier bound to the declaration in scope at its use.
//
// Grammar (C99 plus the GNU extensions common in system code):
//
//	unit        = externalDecl* EOF
//	externalDecl = declaration | functionDef | ";" | asm ";"
//	functionDef = declSpecs declarator block
//	declaration = declSpecs (initDeclarator ("," initDeclarator)*)? ";"
//	declSpecs   = (storage | qualifier | typeSpec | "inline" | attribute)+
//	typeSpec    = builtin words | struct/union/enum | typedef-name | typeof
//	declarator  = "*" qualifier* declarator | direct suffix*
//	direct      = IDENTIFIER | "(" declarator ")"
//	suffix      = "[" tokens "]" | "(" params ")"
//	statement   = block | if | switch | while | do | for | return | break
//	            | continue | goto | label | case | default | asm | declaration
//	            | expression ";"
//	expression  = assignment ("," assignment)*
//	assignment  = conditional (assignOp assignment)?
//	conditional = logical_or ("?" expression? ":" conditional)?
//	binary      = cast (binop cast)*   (precedence from binaryPrec)
//	cast        = "(" typeName ")" (cast | initList) | unary
//	unary       = ("++"|"--") unary | ("&"|"*"|"+"|"-"|"~"|"!") cast
//	            | "sizeof" (unary | "(" typeName ")") | postfix
//	postfix     = primary ("[" expression "]" | "(" args ")" | "." IDENT | "->" IDENT | "++" | "--")*
//	primary     = IDENTIFIER | literal | STRING+ | "(" expression ")" | "(" block ")"
type Parser struct {
	tokens []Token
	pos    int
	syms   *SymbolTable
}

func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != EOF {
		tokens = append(tokens, Token{Type: EOF})
	}
	return &Parser{tokens: tokens, syms: NewSymbolTable()}
}

// Symbols exposes the file-scope symbol table after parsing.
func (p *Parser) Symbols() *SymbolTable {
	return p.syms
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	return errorAt(tok, format, args...)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	return p.peekAt(0)
}

// peekAt returns the token offset positions ahead.
func (p *Parser) peekAt(offset int) Token {
	i := p.pos + offset
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

// advance consumes the current token. EOF is never consumed.
func (p *Parser) advance() Token {
	tok := p.peek()
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

// expect consumes a token of type tt or fails.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s %q", tt, tok.Type, tok.Lexeme)
	}
	return p.advance(), nil
}

// match consumes the current token if it has type tt.
func (p *Parser) match(tt TokenType) bool {
	if p.peek().Type == tt {
		p.advance()
		return true
	}
	return false
}

// skipBalanced consumes a parenthesised group starting at the current '('
// and returns the tokens inside it.
func (p *Parser) skipBalanced() ([]Token, error) {
	open, err := p.expect(LPAREN)
	if err != nil {
		return nil, err
	}
	var inner []Token
	depth := 1
	for {
		tok := p.advance()
		switch tok.Type {
		case EOF:
			return nil, p.fmtError(open, "unbalanced parentheses")
		case LPAREN:
			depth++
		case RPAREN:
			depth--
			if depth == 0 {
				return inner, nil
			}
		}
		inner = append(inner, tok)
	}
}

// skipAttributes drops __attribute__((...)) and asm("label") annotations.
func (p *Parser) skipAttributes() error {
	for {
		switch p.peek().Type {
		case ATTRIBUTE, ASM:
			p.advance()
			if _, err := p.skipBalanced(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// ignoredSpecifiers are declaration specifiers that do not affect the type
// spelling.
var ignoredSpecifiers = map[string]bool{
	"_Noreturn":     true,
	"__thread":      true,
	"_Thread_local": true,
	"_Alignas":      true,
	"_Atomic":       true,
	"__declspec":    true,
	"__cdecl":       true,
}

var typeofSpellings = map[string]bool{
	"typeof":     true,
	"__typeof":   true,
	"__typeof__": true,
}

func isStaticAssert(tok Token) bool {
	return tok.Type == IDENTIFIER && (tok.Lexeme == "_Static_assert" || tok.Lexeme == "static_assert")
}

func isQualifier(tt TokenType) bool {
	return tt == CONST || tt == VOLATILE || tt == RESTRICT
}

func qualifierSpelling(tt TokenType) string {
	switch tt {
	case CONST:
		return "const"
	case VOLATILE:
		return "volatile"
	}
	return "restrict"
}

func isBuiltinTypeWord(tt TokenType) bool {
	switch tt {
	case VOID, CHAR, SHORT, INT, LONG, FLOAT_KW, DOUBLE, SIGNED, UNSIGNED, BOOL:
		return true
	}
	return false
}

// specContext tells the declaration-specifier parser how to treat identifiers
// that are not declared anywhere in the unit.
type specContext int

const (
	ctxDecl     specContext = iota // statement or file scope: a type only if a declarator follows
	ctxParam                       // parameter list: always a type
	ctxField                       // struct member: always a type
	ctxTypeName                    // cast or sizeof operand already known to be a type
)

// isTypedefName decides whether the identifier at offset names a type.
// Names from unparsed system headers are undeclared; they are taken as opaque
// type names when the context requires one.
func (p *Parser) isTypedefName(offset int, ctx specContext) bool {
	tok := p.peekAt(offset)
	if tok.Type != IDENTIFIER {
		return false
	}
	if d, ok := p.syms.Lookup(tok.Lexeme); ok {
		_, isTypedef := d.(*TypedefDecl)
		return isTypedef
	}
	switch ctx {
	case ctxParam, ctxField, ctxTypeName:
		return true
	}
	next := p.peekAt(offset + 1)
	return next.Type == IDENTIFIER || next.Type == STAR || isQualifier(next.Type) || next.Type == ATTRIBUTE
}

// isTypeNameAt reports whether a type-name (cast, sizeof, compound literal
// operand) starts at offset.
func (p *Parser) isTypeNameAt(offset int) bool {
	tok := p.peekAt(offset)
	switch {
	case isBuiltinTypeWord(tok.Type), isQualifier(tok.Type):
		return true
	case tok.Type == STRUCT, tok.Type == UNION, tok.Type == ENUM, tok.Type == ATTRIBUTE:
		return true
	case tok.Type != IDENTIFIER:
		return false
	case typeofSpellings[tok.Lexeme]:
		return true
	}
	if d, ok := p.syms.Lookup(tok.Lexeme); ok {
		_, isTypedef := d.(*TypedefDecl)
		return isTypedef
	}
	next := p.peekAt(offset + 1)
	if next.Type == STAR || isQualifier(next.Type) {
		return true
	}
	if next.Type != RPAREN {
		return false
	}
	switch p.peekAt(offset + 2).Type {
	case LPAREN:
		// "(f)(args)" calls f unless the name reads as a type
		return strings.HasSuffix(tok.Lexeme, "_t")
	case IDENTIFIER, INTEGER, FLOAT, CHAR_LIT, STRING, LBRACE, TILDE, NOT, SIZEOF:
		return true
	}
	return false
}

// isDeclStart reports whether the statement at the current position is a
// declaration.
func (p *Parser) isDeclStart() bool {
	tok := p.peek()
	switch tok.Type {
	case TYPEDEF, EXTERN, STATIC, AUTO, REGISTER, INLINE, STRUCT, UNION, ENUM, ATTRIBUTE:
		return true
	case EXTENSION:
		save := p.pos
		p.advance()
		defer func() { p.pos = save }()
		return p.isDeclStart()
	case IDENTIFIER:
		if ignoredSpecifiers[tok.Lexeme] || typeofSpellings[tok.Lexeme] {
			return true
		}
		if p.peekAt(1).Type == COLON {
			return false // label
		}
		return p.isTypedefName(0, ctxDecl)
	}
	return isBuiltinTypeWord(tok.Type) || isQualifier(tok.Type)
}

// declSpecs is the result of parsing declaration specifiers.
type declSpecs struct {
	start   Token
	base    *Type // nil when no type specifier was given (implicit int)
	storage StorageClass
	inline  bool
	any     bool          // at least one specifier was consumed
	records []*RecordDecl // struct/union/enum bodies defined here
}

func (p *Parser) parseDeclSpecs(ctx specContext) (*declSpecs, error) {
	specs := &declSpecs{start: p.peek()}
	var words []TokenType
	var quals []string

loop:
	for {
		tok := p.peek()
		switch {
		case tok.Type == TYPEDEF:
			specs.storage = StorageTypedef
		case tok.Type == EXTERN:
			specs.storage = StorageExtern
		case tok.Type == STATIC:
			specs.storage = StorageStatic
		case tok.Type == AUTO:
			specs.storage = StorageAuto
		case tok.Type == REGISTER:
			specs.storage = StorageRegister
		case tok.Type == INLINE:
			specs.inline = true
		case isQualifier(tok.Type):
			quals = append(quals, qualifierSpelling(tok.Type))
		case tok.Type == EXTENSION:
		case tok.Type == ATTRIBUTE:
			if err := p.skipAttributes(); err != nil {
				return nil, err
			}
			specs.any = true
			continue
		case isBuiltinTypeWord(tok.Type):
			if specs.base != nil {
				break loop
			}
			words = append(words, tok.Type)
		case tok.Type == STRUCT || tok.Type == UNION || tok.Type == ENUM:
			if specs.base != nil || len(words) > 0 {
				break loop
			}
			typ, rec, err := p.parseRecord()
			if err != nil {
				return nil, err
			}
			specs.base = typ
			if rec != nil {
				specs.records = append(specs.records, rec)
			}
			specs.any = true
			continue
		case tok.Type == IDENTIFIER && ignoredSpecifiers[tok.Lexeme]:
			p.advance()
			if p.peek().Type == LPAREN {
				if _, err := p.skipBalanced(); err != nil {
					return nil, err
				}
			}
			specs.any = true
			continue
		case tok.Type == IDENTIFIER && typeofSpellings[tok.Lexeme]:
			if specs.base != nil || len(words) > 0 {
				break loop
			}
			p.advance()
			inner, err := p.skipBalanced()
			if err != nil {
				return nil, err
			}
			specs.base = BaseType("__typeof__(" + joinTokens(inner) + ")")
			specs.any = true
			continue
		case tok.Type == IDENTIFIER:
			if specs.base != nil || len(words) > 0 || !p.isTypedefName(0, ctx) {
				break loop
			}
			specs.base = BaseType(tok.Lexeme)
			if d, ok := p.syms.Lookup(tok.Lexeme); ok {
				if td, ok := d.(*TypedefDecl); ok && td.Type != nil {
					specs.base.Record = td.Type.Record
				}
			}
		default:
			break loop
		}
		p.advance()
		specs.any = true
	}

	if len(words) > 0 {
		specs.base = BaseType(builtinSpelling(words))
	}
	if specs.base != nil {
		specs.base = specs.base.withQual(quals)
	} else if len(quals) > 0 {
		specs.base = BaseType("int").withQual(quals)
	}
	return specs, nil
}

// builtinSpelling normalises a multiset of builtin type words to the
// canonical spelling: "long unsigned int" becomes "unsigned long".
func builtinSpelling(words []TokenType) string {
	count := make(map[TokenType]int, len(words))
	for _, w := range words {
		count[w]++
	}
	unsigned := count[UNSIGNED] > 0
	switch {
	case count[VOID] > 0:
		return "void"
	case count[BOOL] > 0:
		return "_Bool"
	case count[FLOAT_KW] > 0:
		return "float"
	case count[DOUBLE] > 0:
		if count[LONG] > 0 {
			return "long double"
		}
		return "double"
	case count[CHAR] > 0:
		if unsigned {
			return "unsigned char"
		}
		if count[SIGNED] > 0 {
			return "signed char"
		}
		return "char"
	case count[SHORT] > 0:
		if unsigned {
			return "unsigned short"
		}
		return "short"
	case count[LONG] >= 2:
		if unsigned {
			return "unsigned long long"
		}
		return "long long"
	case count[LONG] == 1:
		if unsigned {
			return "unsigned long"
		}
		return "long"
	case unsigned:
		return "unsigned int"
	}
	return "int"
}

// parseRecord parses struct/union/enum specifiers, with or without a body.
func (p *Parser) parseRecord() (*Type, *RecordDecl, error) {
	kw := p.advance()
	if err := p.skipAttributes(); err != nil {
		return nil, nil, err
	}
	kind := strings.ToLower(kw.Type.String())
	tag := ""
	if p.peek().Type == IDENTIFIER {
		tag = p.advance().Lexeme
	}
	if err := p.skipAttributes(); err != nil {
		return nil, nil, err
	}

	typ := BaseType(kind + " " + tag)
	if tag == "" {
		typ = BaseType(kind + " " + AnonymousTag)
	}

	if p.peek().Type != LBRACE {
		if tag == "" {
			return nil, nil, p.fmtError(p.peek(), "expected %s name or '{'", kind)
		}
		if rec, ok := p.syms.LookupTag(tag); ok {
			typ.Record = rec
		}
		return typ, nil, nil
	}

	rec := &RecordDecl{Kind: kw.Type, Tag: tag, Loc: kw.Loc()}
	p.syms.DefineTag(rec)
	typ.Record = rec
	p.advance() // {

	var err error
	if kw.Type == ENUM {
		err = p.parseEnumerators(rec)
	} else {
		err = p.parseFields(rec)
	}
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, nil, err
	}
	if err := p.skipAttributes(); err != nil {
		return nil, nil, err
	}
	return typ, rec, nil
}

// AnonymousTag stands in for the tag of an unnamed struct, union or enum.
const AnonymousTag = "(anonymous)"

func (p *Parser) parseEnumerators(rec *RecordDecl) error {
	for p.peek().Type != RBRACE {
		name, err := p.expect(IDENTIFIER)
		if err != nil {
			return err
		}
		if err := p.skipAttributes(); err != nil {
			return err
		}
		ec := &EnumConstDecl{Name: name.Lexeme, NameLoc: name.Loc()}
		if p.match(ASSIGN) {
			v, err := p.parseConditional()
			if err != nil {
				return err
			}
			ec.Value = v
		}
		p.syms.Define(ec.Name, ec)
		rec.Enumerators = append(rec.Enumerators, ec)
		if !p.match(COMMA) {
			break
		}
	}
	return nil
}

func (p *Parser) parseFields(rec *RecordDecl) error {
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		if p.match(SEMICOLON) {
			continue
		}
		if isStaticAssert(p.peek()) {
			if err := p.skipStaticAssert(); err != nil {
				return err
			}
			continue
		}
		specs, err := p.parseDeclSpecs(ctxField)
		if err != nil {
			return err
		}
		if !specs.any {
			tok := p.peek()
			return p.fmtError(tok, "expected member declaration, got %q", tok.Lexeme)
		}
		base := specs.base
		if base == nil {
			base = BaseType("int")
		}
		if p.match(SEMICOLON) {
			// anonymous struct or union member
			rec.Fields = append(rec.Fields, FieldDecl{Type: base})
			continue
		}
		for {
			d, err := p.parseDeclarator(base, declMaybeAbstract)
			if err != nil {
				return err
			}
			if p.match(COLON) {
				if _, err := p.parseConditional(); err != nil {
					return err
				}
			}
			if err := p.skipAttributes(); err != nil {
				return err
			}
			rec.Fields = append(rec.Fields, FieldDecl{Name: d.name.Lexeme, Type: d.typ})
			if !p.match(COMMA) {
				break
			}
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) skipStaticAssert() error {
	p.advance()
	if _, err := p.skipBalanced(); err != nil {
		return err
	}
	_, err := p.expect(SEMICOLON)
	return err
}

// declMode says whether a declarator must, may or must not carry a name.
type declMode int

const (
	declNamed declMode = iota
	declAbstract
	declMaybeAbstract
)

type declarator struct {
	name Token // zero Token for abstract declarators
	typ  *Type
}

// parseDeclarator applies pointer, array and function derivations to base.
// A parenthesised inner declarator binds tighter than the suffixes after it,
// so it is parsed twice: once to find where it ends, and again with the type
// built from the suffixes.
func (p *Parser) parseDeclarator(base *Type, mode declMode) (*declarator, error) {
	typ := base
	for p.peek().Type == STAR {
		p.advance()
		var quals []string
		for {
			if tt := p.peek().Type; isQualifier(tt) {
				quals = append(quals, qualifierSpelling(tt))
				p.advance()
				continue
			}
			if p.peek().Type == ATTRIBUTE {
				if err := p.skipAttributes(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		typ = PointerTo(typ).withQual(quals)
	}
	if err := p.skipAttributes(); err != nil {
		return nil, err
	}

	if p.peek().Type == LPAREN && p.isNestedDeclarator(mode) {
		open := p.pos
		p.advance()
		if _, err := p.parseDeclarator(BaseType("int"), mode); err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		outer, err := p.parseTypeSuffix(typ)
		if err != nil {
			return nil, err
		}
		end := p.pos
		p.pos = open + 1
		d, err := p.parseDeclarator(outer, mode)
		if err != nil {
			return nil, err
		}
		p.pos = end
		return d, nil
	}

	d := &declarator{}
	switch {
	case p.peek().Type == IDENTIFIER && mode != declAbstract:
		d.name = p.advance()
	case mode == declNamed:
		tok := p.peek()
		return nil, p.fmtError(tok, "expected identifier in declarator, got %q", tok.Lexeme)
	}
	suffixed, err := p.parseTypeSuffix(typ)
	if err != nil {
		return nil, err
	}
	d.typ = suffixed
	if err := p.skipAttributes(); err != nil {
		return nil, err
	}
	return d, nil
}

// isNestedDeclarator decides whether the '(' at the current position opens a
// parenthesised declarator rather than a parameter list.
func (p *Parser) isNestedDeclarator(mode declMode) bool {
	if mode == declNamed {
		return true
	}
	next := p.peekAt(1)
	switch next.Type {
	case STAR, LBRACKET, ATTRIBUTE:
		return true
	case IDENTIFIER:
		return mode == declMaybeAbstract && !p.isTypedefName(1, ctxDecl) && p.peekAt(2).Type != COMMA && p.peekAt(2).Type != RPAREN
	}
	return false
}

// parseTypeSuffix parses trailing [N] and (params) derivations.
func (p *Parser) parseTypeSuffix(typ *Type) (*Type, error) {
	switch p.peek().Type {
	case LBRACKET:
		open := p.advance()
		var lenToks []Token
		depth := 0
		for {
			tok := p.peek()
			if tok.Type == EOF {
				return nil, p.fmtError(open, "unterminated array declarator")
			}
			if tok.Type == RBRACKET && depth == 0 {
				p.advance()
				break
			}
			switch tok.Type {
			case LBRACKET:
				depth++
			case RBRACKET:
				depth--
			case STATIC, CONST, VOLATILE, RESTRICT:
				p.advance()
				continue
			}
			lenToks = append(lenToks, p.advance())
		}
		elem, err := p.parseTypeSuffix(typ)
		if err != nil {
			return nil, err
		}
		return ArrayOf(elem, joinTokens(lenToks)), nil
	case LPAREN:
		p.advance()
		fn := &Type{Kind: TypeFunc}
		if err := p.parseParams(fn); err != nil {
			return nil, err
		}
		ret, err := p.parseTypeSuffix(typ)
		if err != nil {
			return nil, err
		}
		fn.Elem = ret
		return fn, nil
	}
	return typ, nil
}

// parseParams parses a parameter list after '(' through the closing ')'.
// Parameters live in their own prototype scope while the list is parsed.
func (p *Parser) parseParams(fn *Type) error {
	if p.match(RPAREN) {
		return nil
	}
	if p.peek().Type == VOID && p.peekAt(1).Type == RPAREN {
		p.advance()
		p.advance()
		fn.Prototyped = true
		return nil
	}
	fn.Prototyped = true

	p.syms.EnterScope()
	defer p.syms.ExitScope()

	for {
		if p.match(ELLIPSIS) {
			fn.Variadic = true
			_, err := p.expect(RPAREN)
			return err
		}
		start := p.peek()
		specs, err := p.parseDeclSpecs(ctxParam)
		if err != nil {
			return err
		}
		if !specs.any {
			return p.fmtError(start, "expected parameter declaration, got %q", start.Lexeme)
		}
		base := specs.base
		if base == nil {
			base = BaseType("int")
		}
		d, err := p.parseDeclarator(base, declMaybeAbstract)
		if err != nil {
			return err
		}
		param := &VariableDecl{
			Name:    d.name.Lexeme,
			NameLoc: d.name.Loc(),
			Start:   start.Loc(),
			Type:    d.typ,
			Storage: specs.storage,
			Scope:   ScopeLocal,
			IsParam: true,
		}
		if param.Name != "" {
			p.syms.Define(param.Name, param)
		}
		fn.Params = append(fn.Params, d.typ)
		fn.ParamDecls = append(fn.ParamDecls, param)

		if p.match(COMMA) {
			continue
		}
		_, err = p.expect(RPAREN)
		return err
	}
}

// parseTypeName parses the operand of a cast or sizeof.
func (p *Parser) parseTypeName() (*Type, error) {
	specs, err := p.parseDeclSpecs(ctxTypeName)
	if err != nil {
		return nil, err
	}
	if !specs.any {
		tok := p.peek()
		return nil, p.fmtError(tok, "expected type name, got %q", tok.Lexeme)
	}
	base := specs.base
	if base == nil {
		base = BaseType("int")
	}
	d, err := p.parseDeclarator(base, declAbstract)
	if err != nil {
		return nil, err
	}
	return d.typ, nil
}

// parseDeclaration parses one declaration, or a function definition when
// atFileScope. It returns one Decl per declarator plus any records defined
// in the specifiers.
func (p *Parser) parseDeclaration(atFileScope bool) ([]Decl, error) {
	start := p.peek()
	specs, err := p.parseDeclSpecs(ctxDecl)
	if err != nil {
		return nil, err
	}
	implicitInt := atFileScope && !specs.any && p.peek().Type == IDENTIFIER
	if !specs.any && !implicitInt {
		return nil, p.fmtError(start, "expected declaration, got %q", start.Lexeme)
	}
	base := specs.base
	if base == nil {
		base = BaseType("int")
	}

	var out []Decl
	for _, r := range specs.records {
		out = append(out, r)
	}
	if p.match(SEMICOLON) {
		return out, nil
	}

	for first := true; ; first = false {
		d, err := p.parseDeclarator(base, declNamed)
		if err != nil {
			return nil, err
		}
		name := d.name

		switch {
		case specs.storage == StorageTypedef:
			td := &TypedefDecl{Name: name.Lexeme, NameLoc: name.Loc(), Type: d.typ}
			p.syms.Define(td.Name, td)
			out = append(out, td)

		case d.typ.Kind == TypeFunc:
			fn := &FunctionDecl{
				Name:    name.Lexeme,
				NameLoc: name.Loc(),
				Start:   start.Loc(),
				Type:    d.typ,
				Params:  d.typ.ParamDecls,
				Storage: specs.storage,
			}
			p.syms.Define(fn.Name, fn)
			out = append(out, fn)
			if first && atFileScope && p.peek().Type == LBRACE {
				body, err := p.parseFunctionBody(fn)
				if err != nil {
					return nil, err
				}
				fn.Body = body
				return out, nil
			}

		default:
			v := &VariableDecl{
				Name:    name.Lexeme,
				NameLoc: name.Loc(),
				Start:   start.Loc(),
				Type:    d.typ,
				Storage: specs.storage,
				Scope:   p.syms.Scope(),
			}
			p.syms.Define(v.Name, v)
			if p.match(ASSIGN) {
				init, err := p.parseInitializer()
				if err != nil {
					return nil, err
				}
				v.Init = init
			}
			out = append(out, v)
		}

		if p.match(COMMA) {
			continue
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (p *Parser) parseFunctionBody(fn *FunctionDecl) (*BlockStmt, error) {
	p.syms.EnterFunction(fn.Params)
	defer p.syms.ExitFunction()
	return p.parseBlock(false)
}

// parseBlock parses { statement* }. Function bodies share the parameter
// scope, so they pass newScope=false.
func (p *Parser) parseBlock(newScope bool) (*BlockStmt, error) {
	lb, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	if newScope {
		p.syms.EnterScope()
		defer p.syms.ExitScope()
	}
	block := &BlockStmt{LBrace: lb.Loc()}
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, s)
	}
	rb, err := p.expect(RBRACE)
	if err != nil {
		return nil, err
	}
	block.RBrace = rb.Loc()
	return block, nil
}

func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()

	// label:
	if tok.Type == IDENTIFIER && p.peekAt(1).Type == COLON {
		p.advance()
		p.advance()
		if err := p.skipAttributes(); err != nil {
			return nil, err
		}
		body, err := p.parseLabeledBody()
		if err != nil {
			return nil, err
		}
		return &LabelStmt{Label: tok.Lexeme, Body: body}, nil
	}

	switch tok.Type {
	case LBRACE:
		b, err := p.parseBlock(true)
		if err != nil {
			return nil, err
		}
		return b, nil
	case IF:
		return p.parseIf()
	case SWITCH:
		return p.parseSwitch()
	case WHILE:
		return p.parseWhile()
	case DO:
		return p.parseDo()
	case FOR:
		return p.parseFor()
	case RETURN:
		return p.parseReturn()
	case BREAK:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &BreakStmt{}, nil
	case CONTINUE:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &ContinueStmt{}, nil
	case GOTO:
		p.advance()
		label := "*"
		if p.match(STAR) {
			// computed goto
			if _, err := p.parseExpression(); err != nil {
				return nil, err
			}
		} else {
			name, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			label = name.Lexeme
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &GotoStmt{Label: label}, nil
	case CASE:
		p.advance()
		v, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		if p.match(ELLIPSIS) { // GNU case ranges
			if _, err := p.parseConditional(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(COLON); err != nil {
			return nil, err
		}
		body, err := p.parseLabeledBody()
		if err != nil {
			return nil, err
		}
		return &CaseStmt{Value: v, Body: body}, nil
	case DEFAULT:
		p.advance()
		if _, err := p.expect(COLON); err != nil {
			return nil, err
		}
		body, err := p.parseLabeledBody()
		if err != nil {
			return nil, err
		}
		return &DefaultStmt{Body: body}, nil
	case SEMICOLON:
		p.advance()
		return &EmptyStmt{}, nil
	case ASM:
		s, err := p.parseAsm()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return s, nil
	}

	if isStaticAssert(tok) {
		if err := p.skipStaticAssert(); err != nil {
			return nil, err
		}
		return &EmptyStmt{}, nil
	}

	if p.isDeclStart() {
		decls, err := p.parseDeclaration(false)
		if err != nil {
			return nil, err
		}
		return &DeclStmt{Decls: decls}, nil
	}

	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: e}, nil
}

// parseLabeledBody parses the statement after a label; a label directly
// before '}' labels an empty statement.
func (p *Parser) parseLabeledBody() (Stmt, error) {
	if p.peek().Type == RBRACE {
		return &EmptyStmt{}, nil
	}
	return p.parseStatement()
}

func (p *Parser) parseIf() (Stmt, error) {
	ifTok := p.advance()
	lp, err := p.expect(LPAREN)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	rp, err := p.expect(RPAREN)
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{If: ifTok.Loc(), LParen: lp.Loc(), RParen: rp.Loc(), Condition: cond, Body: body}
	if p.match(ELSE) {
		elseBody, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmt.ElseBody = elseBody
	}
	return stmt, nil
}

func (p *Parser) parseSwitch() (Stmt, error) {
	sw := p.advance()
	lp, err := p.expect(LPAREN)
	if err != nil {
		return nil, err
	}
	target, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	rp, err := p.expect(RPAREN)
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &SwitchStmt{Switch: sw.Loc(), LParen: lp.Loc(), RParen: rp.Loc(), Target: target, Body: body}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	p.advance()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Condition: cond, Body: body}, nil
}

func (p *Parser) parseDo() (Stmt, error) {
	p.advance()
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(WHILE); err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &DoStmt{Body: body, Condition: cond}, nil
}

// parseForStmt parses for (init; cond; post) body. The loop opens a scope
// so that declarations in init are local to it.
func (p *Parser) parseFor() (Stmt, error) {
	p.advance()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	p.syms.EnterScope()
	defer p.syms.ExitScope()

	stmt := &ForStmt{}
	switch {
	case p.match(SEMICOLON):
	case p.isDeclStart():
		decls, err := p.parseDeclaration(false)
		if err != nil {
			return nil, err
		}
		stmt.Init = &DeclStmt{Decls: decls}
	default:
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		stmt.Init = &ExprStmt{Expr: e}
	}

	if p.peek().Type != SEMICOLON {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	if p.peek().Type != RPAREN {
		post, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Post = post
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	p.advance()
	if p.match(SEMICOLON) {
		return &ReturnStmt{}, nil
	}
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ReturnStmt{Expr: e}, nil
}

// parseAsm parses asm [volatile] [goto] ( ... ) and keeps the operand text.
func (p *Parser) parseAsm() (*AsmStmt, error) {
	p.advance()
	for tt := p.peek().Type; tt == VOLATILE || tt == INLINE || tt == GOTO; tt = p.peek().Type {
		p.advance()
	}
	inner, err := p.skipBalanced()
	if err != nil {
		return nil, err
	}
	return &AsmStmt{Text: joinTokens(inner)}, nil
}

//  Expressions

func (p *Parser) parseExpression() (Expr, error) {
	e, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != COMMA {
		return e, nil
	}
	list := []Expr{e}
	for p.match(COMMA) {
		next, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		list = append(list, next)
	}
	return &CommaExpr{Exprs: list}, nil
}

func (p *Parser) parseAssignment() (Expr, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if op := p.peek().Type; op.isAssignOp() {
		p.advance()
		value, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &AssignExpr{Op: op, Left: left, Value: value}, nil
	}
	return left, nil
}

func (p *Parser) parseConditional() (Expr, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if !p.match(QUESTION) {
		return cond, nil
	}
	var then Expr
	if p.peek().Type != COLON { // GNU a ?: b leaves Then nil
		then, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	els, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	return &CondExpr{Cond: cond, Then: then, Else: els}, nil
}

func hasOp(ops []TokenType, tt TokenType) bool {
	for _, op := range ops {
		if op == tt {
			return true
		}
	}
	return false
}

// parseBinary climbs binaryPrec from the loosest level.
func (p *Parser) parseBinary(level int) (Expr, error) {
	if level == len(binaryPrec) {
		return p.parseCast()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for hasOp(binaryPrec[level], p.peek().Type) {
		op := p.advance().Type
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		if op == AND_LOGICAL || op == OR_LOGICAL {
			left = &LogicalExpr{Op: op, Left: left, Right: right}
		} else {
			left = &BinaryExpr{Op: op, Left: left, Right: right}
		}
	}
	return left, nil
}

func (p *Parser) parseCast() (Expr, error) {
	if p.peek().Type == LPAREN && p.isTypeNameAt(1) {
		p.advance()
		typ, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		if p.peek().Type == LBRACE {
			init, err := p.parseInitializerList()
			if err != nil {
				return nil, err
			}
			return p.parsePostfixOps(&CompoundLiteral{Type: typ, Init: init})
		}
		operand, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		return &CastExpr{Type: typ, Expr: operand}, nil
	}
	return p.parseUnary()
}

func (p *Parser) parseUnary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case PLUS_PLUS, MINUS_MINUS:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: tok.Type, Right: operand}, nil
	case AND, STAR, PLUS, MINUS, TILDE, NOT:
		p.advance()
		operand, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: tok.Type, Right: operand}, nil
	case AND_LOGICAL:
		// GNU &&label
		p.advance()
		label, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: AND_LOGICAL, Right: &Ident{Name: label.Lexeme, Loc: label.Loc()}}, nil
	case SIZEOF:
		p.advance()
		return p.parseSizeofOperand()
	case EXTENSION:
		p.advance()
		return p.parseCast()
	case IDENTIFIER:
		switch tok.Lexeme {
		case "_Alignof", "__alignof__", "__alignof":
			p.advance()
			return p.parseSizeofOperand()
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parseSizeofOperand() (Expr, error) {
	if p.peek().Type == LPAREN && p.isTypeNameAt(1) {
		p.advance()
		typ, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		if p.peek().Type == LBRACE {
			init, err := p.parseInitializerList()
			if err != nil {
				return nil, err
			}
			operand, err := p.parsePostfixOps(&CompoundLiteral{Type: typ, Init: init})
			if err != nil {
				return nil, err
			}
			return &SizeofExpr{Expr: operand}, nil
		}
		return &SizeofExpr{Type: typ}, nil
	}
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &SizeofExpr{Expr: operand}, nil
}

func (p *Parser) parsePostfix() (Expr, error) {
	primary, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfixOps(primary)
}

func (p *Parser) parsePostfixOps(e Expr) (Expr, error) {
	for {
		switch p.peek().Type {
		case LBRACKET:
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			e = &IndexExpr{Left: e, Index: idx}
		case LPAREN:
			p.advance()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			e = &FunctionCall{Func: e, Args: args}
		case DOT, ARROW:
			op := p.advance()
			name, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			e = &MemberExpr{Left: e, Member: name.Lexeme, Arrow: op.Type == ARROW}
		case PLUS_PLUS, MINUS_MINUS:
			op := p.advance()
			e = &PostfixExpr{Op: op.Type, Left: e}
		default:
			return e, nil
		}
	}
}

// parseCallArgs parses arguments after '(' through the closing ')'.
func (p *Parser) parseCallArgs() ([]Expr, error) {
	var args []Expr
	if p.match(RPAREN) {
		return args, nil
	}
	for {
		arg, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.match(COMMA) {
			break
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER, FLOAT, CHAR_LIT:
		p.advance()
		return &Literal{Kind: tok.Type, Raw: tok.Lexeme}, nil
	case STRING:
		s := &StringLiteral{}
		for p.peek().Type == STRING {
			s.Raw = append(s.Raw, p.advance().Lexeme)
		}
		return s, nil
	case IDENTIFIER:
		switch tok.Lexeme {
		case "__builtin_va_arg":
			return p.parseVaArg()
		case "__builtin_offsetof":
			return p.parseOffsetof()
		}
		p.advance()
		id := &Ident{Name: tok.Lexeme, Loc: tok.Loc()}
		if d, ok := p.syms.Lookup(tok.Lexeme); ok {
			id.Binding = d
		}
		return id, nil
	case LPAREN:
		p.advance()
		if p.peek().Type == LBRACE {
			body, err := p.parseBlock(true)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			return &StmtExpr{Body: body}, nil
		}
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &ParenExpr{Expr: e}, nil
	}
	return nil, p.fmtError(tok, "unexpected token %q in expression", tok.Lexeme)
}

// parseVaArg parses __builtin_va_arg(ap, type); the type operand is dropped.
func (p *Parser) parseVaArg() (Expr, error) {
	name := p.advance()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	ap, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COMMA); err != nil {
		return nil, err
	}
	if _, err := p.parseTypeName(); err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return &FunctionCall{Func: &Ident{Name: name.Lexeme, Loc: name.Loc()}, Args: []Expr{ap}}, nil
}

// parseOffsetof parses __builtin_offsetof(type, member).
func (p *Parser) parseOffsetof() (Expr, error) {
	name := p.advance()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	if _, err := p.parseTypeName(); err != nil {
		return nil, err
	}
	if _, err := p.expect(COMMA); err != nil {
		return nil, err
	}
	depth := 0
	for {
		tok := p.peek()
		if tok.Type == EOF {
			return nil, p.fmtError(name, "unterminated __builtin_offsetof")
		}
		if tok.Type == RPAREN && depth == 0 {
			p.advance()
			break
		}
		switch tok.Type {
		case LPAREN, LBRACKET:
			depth++
		case RPAREN, RBRACKET:
			depth--
		}
		p.advance()
	}
	return &FunctionCall{Func: &Ident{Name: name.Lexeme, Loc: name.Loc()}}, nil
}

func (p *Parser) parseInitializer() (Expr, error) {
	if p.peek().Type == LBRACE {
		list, err := p.parseInitializerList()
		if err != nil {
			return nil, err
		}
		return list, nil
	}
	return p.parseAssignment()
}

// parseInitializerList parses { [designator =] initializer, ... }.
func (p *Parser) parseInitializerList() (*InitializerList, error) {
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	list := &InitializerList{}
	for p.peek().Type != RBRACE {
		var designators []Designator
		for {
			if p.match(DOT) {
				field, err := p.expect(IDENTIFIER)
				if err != nil {
					return nil, err
				}
				designators = append(designators, Designator{Field: field.Lexeme})
				continue
			}
			if p.match(LBRACKET) {
				idx, err := p.parseConditional()
				if err != nil {
					return nil, err
				}
				if p.match(ELLIPSIS) {
					if _, err := p.parseConditional(); err != nil {
						return nil, err
					}
				}
				if _, err := p.expect(RBRACKET); err != nil {
					return nil, err
				}
				designators = append(designators, Designator{Index: idx})
				continue
			}
			break
		}
		if len(designators) == 0 && p.peek().Type == IDENTIFIER && p.peekAt(1).Type == COLON {
			// GNU old-style "field: value"
			designators = append(designators, Designator{Field: p.advance().Lexeme})
			p.advance()
		} else if len(designators) > 0 {
			p.match(ASSIGN)
		}

		value, err := p.parseInitializer()
		if err != nil {
			return nil, err
		}
		if len(designators) > 0 {
			value = &DesignatedInit{Designators: designators, Value: value}
		}
		list.Elements = append(list.Elements, value)
		if !p.match(COMMA) {
			break
		}
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return list, nil
}

// parseUnit parses external declarations until EOF.
func (p *Parser) parseUnit() ([]Decl, error) {
	var decls []Decl
	for p.peek().Type != EOF {
		tok := p.peek()
		switch {
		case tok.Type == SEMICOLON:
			p.advance()
			continue
		case tok.Type == ASM:
			if _, err := p.parseAsm(); err != nil {
				return nil, err
			}
			p.match(SEMICOLON)
			continue
		case isStaticAssert(tok):
			if err := p.skipStaticAssert(); err != nil {
				return nil, err
			}
			continue
		case tok.Type == EXTENSION:
			p.advance()
			continue
		}

		ds, err := p.parseDeclaration(true)
		if err != nil {
			return nil, err
		}
		decls = append(decls, ds...)
	}
	return decls, nil
}

// Parse builds the top-level declarations of a preprocessed token stream.
func Parse(tokens []Token) ([]Decl, error) {
	return NewParser(tokens).parseUnit()
}

// Load reads, preprocesses and parses path as the primary file.
func Load(path string, opts Options) (*TranslationUnit, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return LoadFile(f, opts)
}

// LoadFile is Load over an already-read primary file.
func LoadFile(f *File, opts Options) (*TranslationUnit, error) {
	pp, err := Preprocess(f, opts)
	if err != nil {
		return nil, err
	}
	decls, err := Parse(pp.Tokens)
	if err != nil {
		return nil, err
	}
	return &TranslationUnit{Primary: f, Files: pp.Files, Decls: decls, Skipped: pp.Skipped}, nil
}
