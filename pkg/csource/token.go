package csource

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF     TokenType = iota // sentinel: end of input
	ILLEGAL                  // unlexable text; only an error if it survives preprocessing

	// Literals
	IDENTIFIER // variable / function / type name
	INTEGER    // integer constant, any base, with its suffix
	FLOAT      // floating constant
	CHAR_LIT   // character constant 'c'
	STRING     // string literal "..." (Lexeme keeps the quotes)

	// Keywords
	AUTO
	BREAK
	CASE
	CHAR
	CONST
	CONTINUE
	DEFAULT
	DO
	DOUBLE
	ELSE
	ENUM
	EXTERN
	FLOAT_KW
	FOR
	GOTO
	IF
	INLINE
	INT
	LONG
	REGISTER
	RESTRICT
	RETURN
	SHORT
	SIGNED
	SIZEOF
	STATIC
	STRUCT
	SWITCH
	TYPEDEF
	UNION
	UNSIGNED
	VOID
	VOLATILE
	WHILE
	BOOL      // _Bool
	ATTRIBUTE // __attribute__
	EXTENSION // __extension__
	ASM       // asm / __asm__

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	DOT       // .
	ARROW     // ->
	ELLIPSIS  // ...
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :
	QUESTION  // ?
	HASH      // # (directives and stringification)
	HASHHASH  // ## (token pasting)

	// Arithmetic operators
	PLUS        // +
	MINUS       // -
	STAR        // *
	SLASH       // /
	PERCENT     // %
	AND         // & (binary bitwise AND, or unary address-of)
	PIPE        // |
	CARET       // ^
	TILDE       // ~
	NOT         // !
	SHL_OP      // <<
	SHR_OP      // >>
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	PLUS_PLUS   // ++
	MINUS_MINUS // --

	// Assignment (order matters: ASSIGN first, isAssignOp relies on the range)
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=
	AND_ASSIGN     // &=
	OR_ASSIGN      // |=
	XOR_ASSIGN     // ^=
	SHL_ASSIGN     // <<=
	SHR_ASSIGN     // >>=

	// Comparison
	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:            "EOF",
	ILLEGAL:        "ILLEGAL",
	IDENTIFIER:     "IDENTIFIER",
	INTEGER:        "INTEGER",
	FLOAT:          "FLOAT",
	CHAR_LIT:       "CHAR_LIT",
	STRING:         "STRING",
	AUTO:           "AUTO",
	BREAK:          "BREAK",
	CASE:           "CASE",
	CHAR:           "CHAR",
	CONST:          "CONST",
	CONTINUE:       "CONTINUE",
	DEFAULT:        "DEFAULT",
	DO:             "DO",
	DOUBLE:         "DOUBLE",
	ELSE:           "ELSE",
	ENUM:           "ENUM",
	EXTERN:         "EXTERN",
	FLOAT_KW:       "FLOAT_KW",
	FOR:            "FOR",
	GOTO:           "GOTO",
	IF:             "IF",
	INLINE:         "INLINE",
	INT:            "INT",
	LONG:           "LONG",
	REGISTER:       "REGISTER",
	RESTRICT:       "RESTRICT",
	RETURN:         "RETURN",
	SHORT:          "SHORT",
	SIGNED:         "SIGNED",
	SIZEOF:         "SIZEOF",
	STATIC:         "STATIC",
	STRUCT:         "STRUCT",
	SWITCH:         "SWITCH",
	TYPEDEF:        "TYPEDEF",
	UNION:          "UNION",
	UNSIGNED:       "UNSIGNED",
	VOID:           "VOID",
	VOLATILE:       "VOLATILE",
	WHILE:          "WHILE",
	BOOL:           "BOOL",
	ATTRIBUTE:      "ATTRIBUTE",
	EXTENSION:      "EXTENSION",
	ASM:            "ASM",
	LBRACE:         "LBRACE",
	RBRACE:         "RBRACE",
	LPAREN:         "LPAREN",
	RPAREN:         "RPAREN",
	LBRACKET:       "LBRACKET",
	RBRACKET:       "RBRACKET",
	DOT:            "DOT",
	ARROW:          "ARROW",
	ELLIPSIS:       "ELLIPSIS",
	SEMICOLON:      "SEMICOLON",
	COMMA:          "COMMA",
	COLON:          "COLON",
	QUESTION:       "QUESTION",
	HASH:           "HASH",
	HASHHASH:       "HASHHASH",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "STAR",
	SLASH:          "SLASH",
	PERCENT:        "PERCENT",
	AND:            "AND",
	PIPE:           "PIPE",
	CARET:          "CARET",
	TILDE:          "TILDE",
	NOT:            "NOT",
	SHL_OP:         "SHL_OP",
	SHR_OP:         "SHR_OP",
	AND_LOGICAL:    "AND_LOGICAL",
	OR_LOGICAL:     "OR_LOGICAL",
	PLUS_PLUS:      "PLUS_PLUS",
	MINUS_MINUS:    "MINUS_MINUS",
	ASSIGN:         "ASSIGN",
	PLUS_ASSIGN:    "PLUS_ASSIGN",
	MINUS_ASSIGN:   "MINUS_ASSIGN",
	STAR_ASSIGN:    "STAR_ASSIGN",
	SLASH_ASSIGN:   "SLASH_ASSIGN",
	PERCENT_ASSIGN: "PERCENT_ASSIGN",
	AND_ASSIGN:     "AND_ASSIGN",
	OR_ASSIGN:      "OR_ASSIGN",
	XOR_ASSIGN:     "XOR_ASSIGN",
	SHL_ASSIGN:     "SHL_ASSIGN",
	SHR_ASSIGN:     "SHR_ASSIGN",
	EQUALS:         "EQUALS",
	NOT_EQ:         "NOT_EQ",
	LESS:           "LESS",
	GREATER:        "GREATER",
	LESS_EQ:        "LESS_EQ",
	GREATER_EQ:     "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

func (tt TokenType) isAssignOp() bool {
	return tt >= ASSIGN && tt <= SHR_ASSIGN
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
	Offset int    // byte offset of the first character in File
	End    int    // byte offset one past the last character

	File     *File
	Presumed string // file name after #line directives; defaults to File.Path

	BOL      bool   // first token on its source line
	Space    bool   // preceded by whitespace
	Expanded bool   // produced by macro expansion; Offset/End cover the invocation
	Err      string // reason for an ILLEGAL token
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d [%d:%d]", t.Type, t.Lexeme, t.Line, t.Offset, t.End)
}

// Loc returns the location covered by the token.
func (t Token) Loc() Loc {
	return Loc{
		File:     t.File,
		Offset:   t.Offset,
		End:      t.End,
		Line:     t.Line,
		Presumed: t.Presumed,
		Expanded: t.Expanded,
	}
}
