package csource

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cinstr/pkg/utils"
)

// maxIncludeDepth bounds nested #include; guarded headers may legitimately
// include each other, so a file already on the stack is not an error by itself.
const maxIncludeDepth = 200

// Macro represents a defined macro, either object-like or function-like.
type Macro struct {
	Name     string
	Params   []string // empty for object-like macros
	FuncLike bool
	Variadic bool // last parameter collects the remaining arguments
	Body     []Token
}

// Options configure preprocessing the way compiler flags would.
type Options struct {
	IncludeDirs []string // -I, searched in order
	Defines     []string // -D, "NAME" or "NAME=VALUE"
	Undefs      []string // -U
	Includes    []string // -include, processed before the primary file
}

// Preprocessed is the token stream of a translation unit after directives
// and macro expansion.
type Preprocessed struct {
	Tokens  []Token // ends with EOF
	Files   []*File // every file read, primary first
	Skipped []string
}

// hideset is the set of macro names that must not expand a token again.
type hideset struct {
	name string
	next *hideset
}

func (h *hideset) contains(name string) bool {
	for ; h != nil; h = h.next {
		if h.name == name {
			return true
		}
	}
	return false
}

func (h *hideset) add(name string) *hideset {
	if h.contains(name) {
		return h
	}
	return &hideset{name: name, next: h}
}

func (h *hideset) union(o *hideset) *hideset {
	for ; o != nil; o = o.next {
		h = h.add(o.name)
	}
	return h
}

func (h *hideset) intersect(o *hideset) *hideset {
	var r *hideset
	for ; h != nil; h = h.next {
		if o.contains(h.name) {
			r = r.add(h.name)
		}
	}
	return r
}

type ppToken struct {
	Token
	hide *hideset
}

// tokenReader yields pushed-back expansion results before the file tokens.
type tokenReader struct {
	pending []ppToken // reversed: the next token is last
	toks    []ppToken
	pos     int
	eof     ppToken
}

func newTokenReader(toks []ppToken) *tokenReader {
	r := &tokenReader{toks: toks}
	if n := len(toks); n > 0 && toks[n-1].Type == EOF {
		r.eof = toks[n-1]
		r.toks = toks[:n-1]
	} else {
		r.eof = ppToken{Token: Token{Type: EOF}}
	}
	return r
}

func (r *tokenReader) peek() ppToken {
	if n := len(r.pending); n > 0 {
		return r.pending[n-1]
	}
	if r.pos < len(r.toks) {
		return r.toks[r.pos]
	}
	return r.eof
}

func (r *tokenReader) next() ppToken {
	if n := len(r.pending); n > 0 {
		t := r.pending[n-1]
		r.pending = r.pending[:n-1]
		return t
	}
	if r.pos < len(r.toks) {
		t := r.toks[r.pos]
		r.pos++
		return t
	}
	return r.eof
}

// unread pushes ts back so that ts[0] is read next.
func (r *tokenReader) unread(ts []ppToken) {
	for i := len(ts) - 1; i >= 0; i-- {
		r.pending = append(r.pending, ts[i])
	}
}

// atDirective reports whether the next token starts a directive line.
func (r *tokenReader) atDirective() bool {
	if len(r.pending) > 0 || r.pos >= len(r.toks) {
		return false
	}
	t := r.toks[r.pos]
	return t.Type == HASH && t.BOL && !t.Expanded
}

// line consumes the rest of the current directive line.
func (r *tokenReader) line() []Token {
	var out []Token
	for r.pos < len(r.toks) && !r.toks[r.pos].BOL {
		out = append(out, r.toks[r.pos].Token)
		r.pos++
	}
	return out
}

// condGroup tracks one #if ... #endif chain.
type condGroup struct {
	parentActive bool
	active       bool // the current group is emitted
	taken        bool // some group of the chain was emitted
	sawElse      bool
	open         Token
}

type preprocessor struct {
	opts       Options
	defines    map[string]*Macro
	files      []*File
	pragmaOnce map[string]bool
	stack      []string // include stack of canonical paths
	skipped    []string
	out        []Token

	presumed string // presumed name of the file being processed
}

// Preprocess expands all directives and macros of the primary file.
// Expanded tokens keep the location of the macro invocation and are marked
// Expanded so that no edit is ever placed inside a macro.
func Preprocess(primary *File, opts Options) (*Preprocessed, error) {
	p := &preprocessor{
		opts:       opts,
		defines:    make(map[string]*Macro),
		pragmaOnce: make(map[string]bool),
	}
	p.files = append(p.files, primary)

	if err := p.predefine(); err != nil {
		return nil, err
	}
	for _, inc := range opts.Includes {
		f, err := ReadFile(inc)
		if err != nil {
			return nil, fmt.Errorf("failed to read -include file %s: %w", inc, err)
		}
		p.files = append(p.files, f)
		if err := p.processFile(f); err != nil {
			return nil, err
		}
	}
	if err := p.processFile(primary); err != nil {
		return nil, err
	}

	eof := Token{Type: EOF, File: primary, Presumed: primary.Path, Offset: len(primary.Content), End: len(primary.Content), BOL: true}
	if n := len(primary.lines); n > 0 {
		eof.Line = n
	}
	p.out = append(p.out, eof)
	return &Preprocessed{Tokens: p.out, Files: p.files, Skipped: p.skipped}, nil
}

// predefine runs the built-in and command-line macros as a synthetic file.
func (p *preprocessor) predefine() error {
	var sb strings.Builder
	sb.WriteString("#define __STDC__ 1\n")
	sb.WriteString("#define __STDC_VERSION__ 199901L\n")
	sb.WriteString("#define __STDC_HOSTED__ 1\n")
	for _, d := range p.opts.Defines {
		name, value, found := strings.Cut(d, "=")
		if !found {
			value = "1"
		}
		fmt.Fprintf(&sb, "#define %s %s\n", name, value)
	}
	for _, u := range p.opts.Undefs {
		fmt.Fprintf(&sb, "#undef %s\n", u)
	}
	f := &File{Name: "<command line>", Path: "<command line>", Content: []byte(sb.String())}
	f.lines = []int{0}
	for i, b := range f.Content {
		if b == '\n' {
			f.lines = append(f.lines, i+1)
		}
	}
	saved := p.out
	err := p.processFile(f)
	p.out = saved
	return err
}

func (p *preprocessor) processFile(f *File) error {
	if len(p.stack) >= maxIncludeDepth {
		return &ParseError{File: f.Name, Msg: fmt.Sprintf("circular include detected: %s (include depth exceeds %d)", f.Name, maxIncludeDepth)}
	}
	p.stack = append(p.stack, f.Path)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	savedPresumed := p.presumed
	p.presumed = f.Path
	defer func() { p.presumed = savedPresumed }()

	raw, err := Lex(f)
	if err != nil {
		return err
	}
	toks := make([]ppToken, len(raw))
	for i, t := range raw {
		toks[i] = ppToken{Token: t}
	}
	r := newTokenReader(toks)

	var conds []*condGroup
	active := func() bool {
		return len(conds) == 0 || conds[len(conds)-1].active
	}

	for {
		if r.atDirective() {
			hash := r.next().Token
			line := r.line()
			if err := p.directive(f, hash, line, &conds, active()); err != nil {
				return err
			}
			continue
		}

		t := r.next()
		if t.Type == EOF {
			break
		}
		if !active() {
			continue
		}
		expanded, err := p.expandMacro(r, t)
		if err != nil {
			return err
		}
		if expanded {
			continue
		}
		if err := p.emit(t.Token); err != nil {
			return err
		}
	}

	if len(conds) > 0 {
		return errorAt(conds[len(conds)-1].open, "unterminated conditional directive")
	}
	return nil
}

func (p *preprocessor) emit(t Token) error {
	if t.Type == ILLEGAL {
		return errorAt(t, "%s", t.Err)
	}
	t.Presumed = p.presumed
	p.out = append(p.out, t)
	return nil
}

func (p *preprocessor) directive(f *File, hash Token, line []Token, conds *[]*condGroup, active bool) error {
	if len(line) == 0 {
		return nil // null directive
	}
	name := line[0]
	args := line[1:]

	if name.Type == INTEGER {
		// GNU linemarker: # 12 "file" flags
		if active {
			return p.lineDirective(line)
		}
		return nil
	}

	top := func() *condGroup {
		if len(*conds) == 0 {
			return nil
		}
		return (*conds)[len(*conds)-1]
	}

	switch name.Lexeme {
	case "if", "ifdef", "ifndef":
		g := &condGroup{parentActive: active, open: name}
		if active {
			ok, err := p.condition(name, args)
			if err != nil {
				return err
			}
			g.active, g.taken = ok, ok
		}
		*conds = append(*conds, g)
		return nil
	case "elif":
		g := top()
		if g == nil || g.sawElse {
			return errorAt(name, "#elif without #if")
		}
		if !g.parentActive || g.taken {
			g.active = false
			return nil
		}
		ok, err := p.condition(name, args)
		if err != nil {
			return err
		}
		g.active, g.taken = ok, ok
		return nil
	case "else":
		g := top()
		if g == nil || g.sawElse {
			return errorAt(name, "#else without #if")
		}
		g.sawElse = true
		g.active = g.parentActive && !g.taken
		g.taken = true
		return nil
	case "endif":
		if top() == nil {
			return errorAt(name, "#endif without #if")
		}
		*conds = (*conds)[:len(*conds)-1]
		return nil
	}

	if !active {
		return nil
	}

	switch name.Lexeme {
	case "define":
		return p.define(name, args)
	case "undef":
		if len(args) == 0 || args[0].Type != IDENTIFIER {
			return errorAt(name, "macro name missing")
		}
		delete(p.defines, args[0].Lexeme)
		return nil
	case "include", "include_next", "import":
		if name.Lexeme == "import" {
			p.pragmaOnce[f.Path] = true
		}
		return p.include(f, name, args)
	case "line":
		return p.lineDirective(args)
	case "pragma":
		if len(args) > 0 && args[0].Lexeme == "once" {
			p.pragmaOnce[f.Path] = true
		}
		return nil
	case "error":
		return errorAt(name, "#error %s", joinTokens(args))
	case "warning", "ident", "sccs", "assert", "unassert":
		return nil
	}
	return errorAt(name, "invalid preprocessing directive #%s", name.Lexeme)
}

func (p *preprocessor) define(at Token, args []Token) error {
	if len(args) == 0 || (args[0].Type != IDENTIFIER && !isKeywordToken(args[0])) {
		return errorAt(at, "macro name missing")
	}
	m := &Macro{Name: args[0].Lexeme}
	rest := args[1:]

	// Function-like only when '(' follows the name with no space.
	if len(rest) > 0 && rest[0].Type == LPAREN && !rest[0].Space {
		m.FuncLike = true
		i := 1
		for ; i < len(rest) && rest[i].Type != RPAREN; i++ {
			switch tok := rest[i]; tok.Type {
			case COMMA:
			case ELLIPSIS:
				m.Variadic = true
				m.Params = append(m.Params, "__VA_ARGS__")
			case IDENTIFIER:
				if i+1 < len(rest) && rest[i+1].Type == ELLIPSIS {
					m.Variadic = true
					i++
				}
				m.Params = append(m.Params, tok.Lexeme)
			default:
				if isKeywordToken(tok) {
					m.Params = append(m.Params, tok.Lexeme)
					continue
				}
				return errorAt(tok, "invalid token %q in macro parameter list", tok.Lexeme)
			}
		}
		if i >= len(rest) {
			return errorAt(at, "unterminated macro parameter list")
		}
		rest = rest[i+1:]
	}

	for _, t := range rest {
		t.BOL = false
		m.Body = append(m.Body, t)
	}
	p.defines[m.Name] = m
	return nil
}

func isKeywordToken(t Token) bool {
	_, ok := keywords[t.Lexeme]
	return ok
}

// include resolves and processes an #include directive.
func (p *preprocessor) include(f *File, at Token, args []Token) error {
	if len(args) > 0 && args[0].Type != STRING && args[0].Type != LESS {
		expanded, err := p.expandTokens(wrapTokens(args))
		if err != nil {
			return err
		}
		args = unwrapTokens(expanded)
	}
	if len(args) == 0 {
		return errorAt(at, "#include expects \"FILENAME\" or <FILENAME>")
	}

	var name string
	angled := false
	switch args[0].Type {
	case STRING:
		name = strings.Trim(args[0].Lexeme, "\"")
	case LESS:
		angled = true
		var sb strings.Builder
		closed := false
		for _, t := range args[1:] {
			if t.Type == GREATER {
				closed = true
				break
			}
			if t.Space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(t.Lexeme)
		}
		if !closed {
			return errorAt(at, "missing terminating > character")
		}
		name = sb.String()
	default:
		return errorAt(at, "#include expects \"FILENAME\" or <FILENAME>")
	}

	path, ok := p.resolveInclude(f, name, angled)
	if !ok {
		if angled {
			p.skipped = append(p.skipped, name)
			return nil
		}
		return errorAt(at, "'%s' file not found", name)
	}

	canon := utils.CanonicalPath(path)
	if p.pragmaOnce[canon] {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read included file %s (path: %s): %w", name, path, err)
	}
	inc := NewFile(path, content)
	p.files = append(p.files, inc)
	return p.processFile(inc)
}

// resolveInclude searches for name.
// Priority 1: relative to the including file's directory (quoted form only)
// Priority 2: the -I directories, in order
// Priority 3: relative to CWD (quoted form only)
func (p *preprocessor) resolveInclude(from *File, name string, angled bool) (string, bool) {
	if filepath.IsAbs(name) {
		return name, fileExists(name)
	}
	var candidates []string
	if !angled && from.Path != "<command line>" {
		candidates = append(candidates, filepath.Join(filepath.Dir(from.Path), name))
	}
	for _, dir := range p.opts.IncludeDirs {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	if !angled {
		candidates = append(candidates, name)
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// lineDirective handles "#line N "file"" and "# N "file" flags".
// Only the presumed file name is tracked.
func (p *preprocessor) lineDirective(args []Token) error {
	if len(args) == 0 || args[0].Type != INTEGER {
		if len(args) > 0 {
			return errorAt(args[0], "#line directive requires a positive integer argument")
		}
		return nil
	}
	if _, err := strconv.ParseUint(args[0].Lexeme, 10, 64); err != nil {
		return errorAt(args[0], "#line directive requires a simple digit sequence")
	}
	if len(args) > 1 && args[1].Type == STRING {
		name, err := strconv.Unquote(args[1].Lexeme)
		if err != nil {
			name = strings.Trim(args[1].Lexeme, "\"")
		}
		p.presumed = utils.CanonicalPath(name)
	}
	return nil
}

// condition evaluates the controlling expression of #if, #ifdef, #ifndef
// and #elif.
func (p *preprocessor) condition(dir Token, args []Token) (bool, error) {
	switch dir.Lexeme {
	case "ifdef", "ifndef":
		if len(args) == 0 || (args[0].Type != IDENTIFIER && !isKeywordToken(args[0])) {
			return false, errorAt(dir, "macro name missing")
		}
		_, defined := p.defines[args[0].Lexeme]
		return defined == (dir.Lexeme == "ifdef"), nil
	}

	if len(args) == 0 {
		return false, errorAt(dir, "#%s with no expression", dir.Lexeme)
	}

	// Replace defined X / defined(X) before expansion.
	var pre []Token
	for i := 0; i < len(args); i++ {
		t := args[i]
		if t.Type != IDENTIFIER || t.Lexeme != "defined" {
			pre = append(pre, t)
			continue
		}
		j := i + 1
		paren := j < len(args) && args[j].Type == LPAREN
		if paren {
			j++
		}
		if j >= len(args) || (args[j].Type != IDENTIFIER && !isKeywordToken(args[j])) {
			return false, errorAt(t, "macro name missing after defined")
		}
		_, ok := p.defines[args[j].Lexeme]
		if paren {
			j++
			if j >= len(args) || args[j].Type != RPAREN {
				return false, errorAt(t, "missing ')' after defined")
			}
		}
		val := t
		val.Type, val.Lexeme = INTEGER, "0"
		if ok {
			val.Lexeme = "1"
		}
		pre = append(pre, val)
		i = j
	}

	expanded, err := p.expandTokens(wrapTokens(pre))
	if err != nil {
		return false, err
	}
	toks := unwrapTokens(expanded)
	for i, t := range toks {
		if t.Type == IDENTIFIER || isKeywordToken(t) {
			toks[i].Type, toks[i].Lexeme = INTEGER, "0"
		}
	}
	v, err := evalTokens(toks)
	if err != nil {
		return false, errorAt(dir, "invalid #%s expression: %v", dir.Lexeme, err)
	}
	return v != 0, nil
}

// expandTokens fully expands a standalone token list (macro arguments,
// directive operands).
func (p *preprocessor) expandTokens(toks []ppToken) ([]ppToken, error) {
	r := newTokenReader(toks)
	var out []ppToken
	for {
		t := r.next()
		if t.Type == EOF {
			return out, nil
		}
		expanded, err := p.expandMacro(r, t)
		if err != nil {
			return nil, err
		}
		if !expanded {
			out = append(out, t)
		}
	}
}

func wrapTokens(toks []Token) []ppToken {
	out := make([]ppToken, len(toks))
	for i, t := range toks {
		out[i] = ppToken{Token: t}
	}
	return out
}

func unwrapTokens(toks []ppToken) []Token {
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = t.Token
	}
	return out
}

// expandMacro expands t if it names a macro, pushing the result back onto r
// for rescanning. It reports whether an expansion happened.
func (p *preprocessor) expandMacro(r *tokenReader, t ppToken) (bool, error) {
	if t.Type != IDENTIFIER && !isKeywordToken(t.Token) {
		return false, nil
	}
	if t.hide.contains(t.Lexeme) {
		return false, nil
	}

	switch t.Lexeme {
	case "__FILE__":
		s := synth(t, STRING, strconv.Quote(p.presumedName()))
		r.unread([]ppToken{s})
		return true, nil
	case "__LINE__":
		s := synth(t, INTEGER, strconv.Itoa(t.Line))
		r.unread([]ppToken{s})
		return true, nil
	}

	m, ok := p.defines[t.Lexeme]
	if !ok {
		return false, nil
	}

	if !m.FuncLike {
		body, err := p.substitute(m, nil)
		if err != nil {
			return false, err
		}
		r.unread(relocate(body, t, t.Loc(), t.hide.add(m.Name)))
		return true, nil
	}

	if r.peek().Type != LPAREN {
		return false, nil
	}
	r.next() // (
	args, rparen, err := p.collectArgs(r, m, t)
	if err != nil {
		return false, err
	}
	body, err := p.substitute(m, args)
	if err != nil {
		return false, err
	}
	hs := t.hide.intersect(rparen.hide).add(m.Name)
	r.unread(relocate(body, t, Span(t.Loc(), rparen.Loc()), hs))
	return true, nil
}

func (p *preprocessor) presumedName() string {
	if p.presumed != "" {
		return p.presumed
	}
	return "<unknown>"
}

// synth builds a token that replaces at, keeping its location.
func synth(at ppToken, tt TokenType, lexeme string) ppToken {
	s := at
	s.Type, s.Lexeme = tt, lexeme
	s.Expanded = true
	s.BOL = false
	return s
}

// relocate moves every token of an expansion to the invocation location and
// adds hs to its hideset.
func relocate(body []ppToken, name ppToken, loc Loc, hs *hideset) []ppToken {
	out := make([]ppToken, len(body))
	for i, t := range body {
		t.File = loc.File
		t.Offset, t.End, t.Line = loc.Offset, loc.End, loc.Line
		t.Presumed = name.Presumed
		t.Expanded = true
		t.BOL = false
		if i == 0 {
			t.Space = name.Space
		}
		t.hide = t.hide.union(hs)
		out[i] = t
	}
	return out
}

// collectArgs reads the arguments of a function-like macro invocation. The
// opening parenthesis has been consumed.
func (p *preprocessor) collectArgs(r *tokenReader, m *Macro, name ppToken) ([][]ppToken, ppToken, error) {
	var args [][]ppToken
	var cur []ppToken
	depth := 0
	for {
		t := r.next()
		if t.Type == EOF {
			return nil, t, errorAt(name.Token, "unterminated argument list invoking macro %q", m.Name)
		}
		switch {
		case t.Type == LPAREN:
			depth++
		case t.Type == RPAREN && depth > 0:
			depth--
		case t.Type == RPAREN:
			args = append(args, cur)
			return p.checkArgs(m, name, args, t)
		case t.Type == COMMA && depth == 0 && !(m.Variadic && len(args) >= len(m.Params)-1):
			args = append(args, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
}

func (p *preprocessor) checkArgs(m *Macro, name ppToken, args [][]ppToken, rparen ppToken) ([][]ppToken, ppToken, error) {
	if len(m.Params) == 0 && len(args) == 1 && len(args[0]) == 0 {
		return nil, rparen, nil
	}
	if m.Variadic && len(args) == len(m.Params)-1 {
		args = append(args, nil)
	}
	if len(args) != len(m.Params) {
		return nil, rparen, errorAt(name.Token, "macro %q passed %d arguments, but takes %d", m.Name, len(args), len(m.Params))
	}
	return args, rparen, nil
}

// substitute instantiates the body of m with args, handling #, ## and the
// GNU ", ## __VA_ARGS__" comma elision.
func (p *preprocessor) substitute(m *Macro, args [][]ppToken) ([]ppToken, error) {
	param := func(t Token) int {
		if !m.FuncLike || (t.Type != IDENTIFIER && !isKeywordToken(t)) {
			return -1
		}
		for i, name := range m.Params {
			if name == t.Lexeme {
				return i
			}
		}
		return -1
	}

	var out []ppToken
	placemarker := false
	body := m.Body
	for i := 0; i < len(body); i++ {
		tok := body[i]

		if m.FuncLike && tok.Type == HASH && i+1 < len(body) {
			if idx := param(body[i+1]); idx >= 0 {
				out = append(out, stringify(args[idx], tok))
				placemarker = false
				i++
				continue
			}
		}

		if tok.Type == HASHHASH && i+1 < len(body) {
			next := body[i+1]
			i++
			var rhs []ppToken
			idx := param(next)
			if idx >= 0 {
				rhs = args[idx]
			} else {
				rhs = []ppToken{{Token: next}}
			}
			if m.Variadic && idx == len(m.Params)-1 && len(out) > 0 && out[len(out)-1].Type == COMMA && !placemarker {
				if len(rhs) == 0 {
					out = out[:len(out)-1]
				}
				out = append(out, rhs...)
				continue
			}
			if placemarker || len(out) == 0 {
				out = append(out, rhs...)
				placemarker = len(rhs) == 0
				continue
			}
			if len(rhs) == 0 {
				continue
			}
			pasted, err := paste(out[len(out)-1], rhs[0])
			if err != nil {
				return nil, err
			}
			out[len(out)-1] = pasted
			out = append(out, rhs[1:]...)
			continue
		}

		if idx := param(tok); idx >= 0 {
			arg := args[idx]
			if i+1 < len(body) && body[i+1].Type == HASHHASH {
				out = append(out, arg...)
				placemarker = len(arg) == 0
				continue
			}
			expanded, err := p.expandTokens(append(append([]ppToken(nil), arg...), ppToken{Token: Token{Type: EOF}}))
			if err != nil {
				return nil, err
			}
			if len(expanded) > 0 {
				expanded[0].Space = tok.Space
			}
			out = append(out, expanded...)
			placemarker = false
			continue
		}

		out = append(out, ppToken{Token: tok})
		placemarker = false
	}
	return out, nil
}

// stringify implements the # operator.
func stringify(arg []ppToken, at Token) ppToken {
	var sb strings.Builder
	for i, t := range arg {
		if i > 0 && t.Space {
			sb.WriteByte(' ')
		}
		if t.Type == STRING || t.Type == CHAR_LIT {
			sb.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(t.Lexeme))
			continue
		}
		sb.WriteString(t.Lexeme)
	}
	s := at
	s.Type = STRING
	s.Lexeme = `"` + sb.String() + `"`
	return ppToken{Token: s}
}

// paste implements the ## operator by relexing the joined spelling.
func paste(a, b ppToken) (ppToken, error) {
	text := a.Lexeme + b.Lexeme
	toks, err := LexString("<paste>", text)
	if err != nil || len(toks) != 2 || toks[0].Type == ILLEGAL {
		return a, errorAt(a.Token, "pasting %q and %q does not give a valid preprocessing token", a.Lexeme, b.Lexeme)
	}
	out := a
	out.Type = toks[0].Type
	out.Lexeme = toks[0].Lexeme
	return out, nil
}

func joinTokens(toks []Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && t.Space {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Lexeme)
	}
	return sb.String()
}
