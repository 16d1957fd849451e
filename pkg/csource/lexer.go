package csource

// keywords maps source text to its keyword TokenType. GNU spellings share the
// token of their standard counterpart.
var keywords = map[string]TokenType{
	"auto":          AUTO,
	"break":         BREAK,
	"case":          CASE,
	"char":          CHAR,
	"const":         CONST,
	"__const":       CONST,
	"continue":      CONTINUE,
	"default":       DEFAULT,
	"do":            DO,
	"double":        DOUBLE,
	"else":          ELSE,
	"enum":          ENUM,
	"extern":        EXTERN,
	"float":         FLOAT_KW,
	"for":           FOR,
	"goto":          GOTO,
	"if":            IF,
	"inline":        INLINE,
	"__inline":      INLINE,
	"__inline__":    INLINE,
	"int":           INT,
	"long":          LONG,
	"register":      REGISTER,
	"restrict":      RESTRICT,
	"__restrict":    RESTRICT,
	"__restrict__":  RESTRICT,
	"return":        RETURN,
	"short":         SHORT,
	"signed":        SIGNED,
	"__signed__":    SIGNED,
	"sizeof":        SIZEOF,
	"static":        STATIC,
	"struct":        STRUCT,
	"switch":        SWITCH,
	"typedef":       TYPEDEF,
	"union":         UNION,
	"unsigned":      UNSIGNED,
	"void":          VOID,
	"volatile":      VOLATILE,
	"__volatile__":  VOLATILE,
	"while":         WHILE,
	"_Bool":         BOOL,
	"__attribute__": ATTRIBUTE,
	"__attribute":   ATTRIBUTE,
	"__extension__": EXTENSION,
	"asm":           ASM,
	"__asm__":       ASM,
	"__asm":         ASM,
}

// punctuators lists multi-character operators longest first so the scanner
// can take the first match.
var punctuators = []struct {
	text string
	tt   TokenType
}{
	{"...", ELLIPSIS},
	{"<<=", SHL_ASSIGN},
	{">>=", SHR_ASSIGN},
	{"->", ARROW},
	{"++", PLUS_PLUS},
	{"--", MINUS_MINUS},
	{"<<", SHL_OP},
	{">>", SHR_OP},
	{"<=", LESS_EQ},
	{">=", GREATER_EQ},
	{"==", EQUALS},
	{"!=", NOT_EQ},
	{"&&", AND_LOGICAL},
	{"||", OR_LOGICAL},
	{"+=", PLUS_ASSIGN},
	{"-=", MINUS_ASSIGN},
	{"*=", STAR_ASSIGN},
	{"/=", SLASH_ASSIGN},
	{"%=", PERCENT_ASSIGN},
	{"&=", AND_ASSIGN},
	{"|=", OR_ASSIGN},
	{"^=", XOR_ASSIGN},
	{"##", HASHHASH},
	{"{", LBRACE},
	{"}", RBRACE},
	{"(", LPAREN},
	{")", RPAREN},
	{"[", LBRACKET},
	{"]", RBRACKET},
	{".", DOT},
	{";", SEMICOLON},
	{",", COMMA},
	{":", COLON},
	{"?", QUESTION},
	{"#", HASH},
	{"+", PLUS},
	{"-", MINUS},
	{"*", STAR},
	{"/", SLASH},
	{"%", PERCENT},
	{"&", AND},
	{"|", PIPE},
	{"^", CARET},
	{"~", TILDE},
	{"!", NOT},
	{"=", ASSIGN},
	{"<", LESS},
	{">", GREATER},
}

// Lexer holds all mutable state for a single scanning pass over one file.
type Lexer struct {
	file *File
	src  []byte
	pos  int  // index of the next byte to consume
	line int  // current 1-based source line
	bol  bool // no token seen yet on the current line
}

func newLexer(f *File) *Lexer {
	return &Lexer{file: f, src: f.Content, pos: 0, line: 1, bol: true}
}

// peek returns the byte at the current position without advancing.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the byte one position ahead of the current position.
func (l *Lexer) peek2() byte {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one byte and returns it.
func (l *Lexer) advance() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
	}
	return b
}

// lineSplice reports whether a backslash-newline starts at the current position
// and returns its length.
func (l *Lexer) lineSplice() int {
	if l.peek() != '\\' {
		return 0
	}
	if l.peek2() == '\n' {
		return 2
	}
	if l.peek2() == '\r' && l.pos+2 < len(l.src) && l.src[l.pos+2] == '\n' {
		return 3
	}
	return 0
}

// skipWhitespace consumes blanks, newlines and line splices. It reports
// whether anything was skipped.
func (l *Lexer) skipWhitespace() bool {
	skipped := false
	for l.pos < len(l.src) {
		switch b := l.peek(); {
		case b == '\n':
			l.bol = true
			l.advance()
		case b == ' ' || b == '\t' || b == '\r' || b == '\f' || b == '\v':
			l.advance()
		case l.lineSplice() > 0:
			for n := l.lineSplice(); n > 0; n-- {
				l.advance()
			}
		default:
			return skipped
		}
		skipped = true
	}
	return skipped
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		if n := l.lineSplice(); n > 0 {
			for ; n > 0; n-- {
				l.advance()
			}
			continue
		}
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return &ParseError{File: l.file.Name, Line: startLine, Msg: "unterminated block comment"}
}

func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b == '$'
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (l *Lexer) token(tt TokenType, start, line int) Token {
	return Token{
		Type:     tt,
		Lexeme:   string(l.src[start:l.pos]),
		Line:     line,
		Offset:   start,
		End:      l.pos,
		File:     l.file,
		Presumed: l.file.Path,
	}
}

// scanIdent collects a full identifier or keyword token.
// The first character (letter or '_') must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	line, start := l.line, l.pos
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	// Encoding prefixes: L'x', u"x", U"x", u8"x".
	if q := l.peek(); q == '\'' || q == '"' {
		switch string(l.src[start:l.pos]) {
		case "L", "u", "U", "u8":
			return l.scanQuoted(q, start, line)
		}
	}
	tok := l.token(IDENTIFIER, start, line)
	if kw, ok := keywords[tok.Lexeme]; ok {
		tok.Type = kw
	}
	return tok
}

// scanNumber collects a preprocessing number: digits, letters, dots and signed
// exponents. Anything with a fraction or exponent is a FLOAT.
// The first digit (or the dot before one) must still be at l.peek().
func (l *Lexer) scanNumber() Token {
	line, start := l.line, l.pos
	hex := l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X')
	isFloat := false
	for l.pos < len(l.src) {
		b := l.peek()
		if (b == '+' || b == '-') && l.pos > start {
			prev := l.src[l.pos-1]
			if (!hex && (prev == 'e' || prev == 'E')) || (hex && (prev == 'p' || prev == 'P')) {
				isFloat = true
				l.advance()
				continue
			}
			break
		}
		if b == '.' {
			isFloat = true
			l.advance()
			continue
		}
		if !isIdentPart(b) {
			break
		}
		l.advance()
	}
	tt := INTEGER
	if isFloat {
		tt = FLOAT
	}
	return l.token(tt, start, line)
}

// scanQuoted collects a character or string literal whose opening quote is at
// l.peek(). The lexeme keeps the quotes and escapes verbatim.
func (l *Lexer) scanQuoted(quote byte, start, line int) Token {
	tt := STRING
	if quote == '\'' {
		tt = CHAR_LIT
	}
	l.advance() // opening quote
	for l.pos < len(l.src) {
		b := l.peek()
		if b == quote {
			l.advance()
			return l.token(tt, start, line)
		}
		if b == '\n' {
			break
		}
		if b == '\\' {
			l.advance() // backslash
			if l.pos < len(l.src) {
				l.advance() // escaped character, possibly a newline splice
			}
			continue
		}
		l.advance()
	}
	tok := l.token(ILLEGAL, start, line)
	if tt == CHAR_LIT {
		tok.Err = "unterminated character literal"
	} else {
		tok.Err = "unterminated string literal"
	}
	return tok
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	space := false
	// Skip whitespace and both comment styles in a loop so that
	// a comment followed immediately by more whitespace is handled.
	for {
		if l.skipWhitespace() {
			space = true
		}
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Line: l.line, Offset: l.pos, End: l.pos, File: l.file, Presumed: l.file.Path, BOL: true}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			space = true
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return Token{}, err
			}
			space = true
			continue
		}
		break
	}

	bol := l.bol
	l.bol = false
	tok := l.scan()
	tok.BOL = bol
	tok.Space = space
	return tok, nil
}

func (l *Lexer) scan() Token {
	ch := l.peek()
	line, start := l.line, l.pos

	switch {
	case isIdentStart(ch):
		return l.scanIdent()
	case isDigit(ch), ch == '.' && isDigit(l.peek2()):
		return l.scanNumber()
	case ch == '"' || ch == '\'':
		return l.scanQuoted(ch, start, line)
	}

	rest := l.src[l.pos:]
	for _, p := range punctuators {
		if len(rest) >= len(p.text) && string(rest[:len(p.text)]) == p.text {
			for range p.text {
				l.advance()
			}
			return l.token(p.tt, start, line)
		}
	}

	l.advance()
	tok := l.token(ILLEGAL, start, line)
	tok.Err = "unexpected character " + quoteByte(ch)
	return tok
}

func quoteByte(b byte) string {
	if b < 0x20 || b >= 0x7f {
		return "'\\x" + string("0123456789abcdef"[b>>4]) + string("0123456789abcdef"[b&0xf]) + "'"
	}
	return "'" + string(b) + "'"
}

// Lex tokenises one file and returns all tokens including the final EOF token.
// Illegal characters become ILLEGAL tokens so that text inside skipped
// conditional blocks never fails; only an unterminated block comment is an error.
func Lex(f *File) ([]Token, error) {
	l := newLexer(f)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

// LexString is Lex over an in-memory file, convenient for macros from the
// command line and for tests.
func LexString(name, src string) ([]Token, error) {
	return Lex(NewFile(name, []byte(src)))
}

// LookupOperator returns the token type of an operator or punctuator spelling.
func LookupOperator(text string) (TokenType, bool) {
	for _, p := range punctuators {
		if p.text == text {
			return p.tt, true
		}
	}
	return ILLEGAL, false
}
