package csource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestLexTokenTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenType
	}{
		{
			name:     "Declaration",
			input:    "int x = 10u;",
			expected: []TokenType{INT, IDENTIFIER, ASSIGN, INTEGER, SEMICOLON, EOF},
		},
		{
			name:     "Longest Punctuator First",
			input:    "a->b ... <<= x",
			expected: []TokenType{IDENTIFIER, ARROW, IDENTIFIER, ELLIPSIS, SHL_ASSIGN, IDENTIFIER, EOF},
		},
		{
			name:     "Literals",
			input:    `L"wide" 'c' 1.5e-3 0x1p+3 .5`,
			expected: []TokenType{STRING, CHAR_LIT, FLOAT, FLOAT, FLOAT, EOF},
		},
		{
			name:     "GNU Keyword Spellings",
			input:    "__inline__ _Bool __attribute__ __asm__ __restrict",
			expected: []TokenType{INLINE, BOOL, ATTRIBUTE, ASM, RESTRICT, EOF},
		},
		{
			name:     "Comments Are Skipped",
			input:    "a /* block\n comment */ b // line\nc",
			expected: []TokenType{IDENTIFIER, IDENTIFIER, IDENTIFIER, EOF},
		},
		{
			name:     "Logical Operators",
			input:    "if (a && !b || c != d)",
			expected: []TokenType{IF, LPAREN, IDENTIFIER, AND_LOGICAL, NOT, IDENTIFIER, OR_LOGICAL, IDENTIFIER, NOT_EQ, IDENTIFIER, RPAREN, EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := LexString("test.c", tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tokenTypes(toks))
		})
	}
}

func TestLexOffsets(t *testing.T) {
	toks, err := LexString("test.c", "int x = 10u;")
	require.NoError(t, err)

	expected := []struct {
		lexeme      string
		offset, end int
	}{
		{"int", 0, 3},
		{"x", 4, 5},
		{"=", 6, 7},
		{"10u", 8, 11},
		{";", 11, 12},
	}
	for i, e := range expected {
		if toks[i].Lexeme != e.lexeme || toks[i].Offset != e.offset || toks[i].End != e.end {
			t.Errorf("token %d: expected %q [%d:%d], got %q [%d:%d]",
				i, e.lexeme, e.offset, e.end, toks[i].Lexeme, toks[i].Offset, toks[i].End)
		}
	}
	assert.Equal(t, "10u", toks[3].Loc().Text())
}

func TestLexLineTracking(t *testing.T) {
	toks, err := LexString("test.c", "x\n  y z\n#define")
	require.NoError(t, err)
	require.Len(t, toks, 6)

	assert.True(t, toks[0].BOL)
	assert.Equal(t, 1, toks[0].Line)

	assert.True(t, toks[1].BOL, "first token of line 2")
	assert.True(t, toks[1].Space)
	assert.Equal(t, 2, toks[1].Line)

	assert.False(t, toks[2].BOL)
	assert.True(t, toks[2].Space)

	assert.Equal(t, HASH, toks[3].Type)
	assert.True(t, toks[3].BOL)
	assert.Equal(t, 3, toks[3].Line)
	assert.False(t, toks[4].Space, "no space between # and define")
}

func TestLexLineSplice(t *testing.T) {
	toks, err := LexString("test.c", "a \\\n b")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, "b", toks[1].Lexeme)
	assert.False(t, toks[1].BOL, "a spliced line continues the previous one")
	assert.Equal(t, 2, toks[1].Line)
}

func TestLexIllegal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   string
	}{
		{"Unexpected Character", "int @;", "unexpected character '@'"},
		{"Unterminated String", "char *s = \"abc\n;", "unterminated string literal"},
		{"Unterminated Char", "char c = 'a\n;", "unterminated character literal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := LexString("test.c", tt.input)
			require.NoError(t, err, "illegal text is reported as a token")
			var found bool
			for _, tok := range toks {
				if tok.Type == ILLEGAL {
					found = true
					assert.Equal(t, tt.err, tok.Err)
				}
			}
			assert.True(t, found, "expected an ILLEGAL token")
		})
	}
}

func TestLexUnterminatedComment(t *testing.T) {
	_, err := LexString("test.c", "int x; /* never closed")
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)
	assert.Contains(t, pe.Msg, "unterminated block comment")
}

func TestFileLines(t *testing.T) {
	f := NewFile("test.c", []byte("first\r\nsecond\n\nlast"))
	tests := []struct {
		line     int
		expected string
	}{
		{1, "first"},
		{2, "second"},
		{3, ""},
		{4, "last"},
		{5, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, f.LineText(tt.line), "line %d", tt.line)
	}
	assert.Equal(t, 1, f.LineOf(0))
	assert.Equal(t, 2, f.LineOf(7))
	assert.Equal(t, 4, f.LineOf(len(f.Content)-1))
}
