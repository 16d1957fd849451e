package csource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// constEval evaluates #if expressions over int64 with C precedence.
type constEval struct {
	toks []Token
	pos  int
}

// evalTokens evaluates a fully expanded #if expression in which every
// identifier has already been replaced by 0.
func evalTokens(toks []Token) (int64, error) {
	e := &constEval{toks: toks}
	v, err := e.conditional()
	if err != nil {
		return 0, err
	}
	if e.pos < len(e.toks) {
		return 0, fmt.Errorf("unexpected %q", e.toks[e.pos].Lexeme)
	}
	return v, nil
}

func (e *constEval) peek() TokenType {
	if e.pos >= len(e.toks) {
		return EOF
	}
	return e.toks[e.pos].Type
}

func (e *constEval) advance() Token {
	t := e.toks[e.pos]
	e.pos++
	return t
}

func (e *constEval) conditional() (int64, error) {
	c, err := e.binary(0)
	if err != nil {
		return 0, err
	}
	if e.peek() != QUESTION {
		return c, nil
	}
	e.advance()
	a, err := e.conditional()
	if err != nil {
		return 0, err
	}
	if e.peek() != COLON {
		return 0, errors.New("expected ':' in conditional expression")
	}
	e.advance()
	b, err := e.conditional()
	if err != nil {
		return 0, err
	}
	if c != 0 {
		return a, nil
	}
	return b, nil
}

// binaryPrec lists binary operators from loosest to tightest.
var binaryPrec = [][]TokenType{
	{OR_LOGICAL},
	{AND_LOGICAL},
	{PIPE},
	{CARET},
	{AND},
	{EQUALS, NOT_EQ},
	{LESS, GREATER, LESS_EQ, GREATER_EQ},
	{SHL_OP, SHR_OP},
	{PLUS, MINUS},
	{STAR, SLASH, PERCENT},
}

func (e *constEval) binary(level int) (int64, error) {
	if level == len(binaryPrec) {
		return e.unary()
	}
	left, err := e.binary(level + 1)
	if err != nil {
		return 0, err
	}
	for {
		op := e.peek()
		found := false
		for _, candidate := range binaryPrec[level] {
			if op == candidate {
				found = true
				break
			}
		}
		if !found {
			return left, nil
		}
		e.advance()
		right, err := e.binary(level + 1)
		if err != nil {
			return 0, err
		}
		left, err = applyBinary(op, left, right)
		if err != nil {
			return 0, err
		}
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func applyBinary(op TokenType, l, r int64) (int64, error) {
	switch op {
	case OR_LOGICAL:
		return boolInt(l != 0 || r != 0), nil
	case AND_LOGICAL:
		return boolInt(l != 0 && r != 0), nil
	case PIPE:
		return l | r, nil
	case CARET:
		return l ^ r, nil
	case AND:
		return l & r, nil
	case EQUALS:
		return boolInt(l == r), nil
	case NOT_EQ:
		return boolInt(l != r), nil
	case LESS:
		return boolInt(l < r), nil
	case GREATER:
		return boolInt(l > r), nil
	case LESS_EQ:
		return boolInt(l <= r), nil
	case GREATER_EQ:
		return boolInt(l >= r), nil
	case SHL_OP:
		return l << uint64(r&63), nil
	case SHR_OP:
		return l >> uint64(r&63), nil
	case PLUS:
		return l + r, nil
	case MINUS:
		return l - r, nil
	case STAR:
		return l * r, nil
	case SLASH, PERCENT:
		if r == 0 {
			return 0, errors.New("division by zero")
		}
		if op == SLASH {
			return l / r, nil
		}
		return l % r, nil
	}
	return 0, fmt.Errorf("unsupported operator %s", op)
}

func (e *constEval) unary() (int64, error) {
	switch e.peek() {
	case PLUS, MINUS, TILDE, NOT:
		op := e.advance().Type
		v, err := e.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case MINUS:
			return -v, nil
		case TILDE:
			return ^v, nil
		case NOT:
			return boolInt(v == 0), nil
		}
		return v, nil
	}
	return e.primary()
}

func (e *constEval) primary() (int64, error) {
	if e.pos >= len(e.toks) {
		return 0, errors.New("unexpected end of expression")
	}
	t := e.advance()
	switch t.Type {
	case INTEGER:
		return parseIntLiteral(t.Lexeme)
	case CHAR_LIT:
		return parseCharLiteral(t.Lexeme)
	case LPAREN:
		v, err := e.conditional()
		if err != nil {
			return 0, err
		}
		if e.peek() != RPAREN {
			return 0, errors.New("expected ')'")
		}
		e.advance()
		return v, nil
	}
	return 0, fmt.Errorf("unexpected %q", t.Lexeme)
}

// parseIntLiteral accepts decimal, octal, hex and binary constants with any
// combination of u/U/l/L suffixes.
func parseIntLiteral(s string) (int64, error) {
	digits := strings.TrimRight(s, "uUlL")
	v, err := strconv.ParseUint(digits, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer constant %q", s)
	}
	return int64(v), nil
}

// parseCharLiteral returns the value of a single-character constant.
func parseCharLiteral(s string) (int64, error) {
	body := s
	if i := strings.IndexByte(body, '\''); i >= 0 {
		body = body[i:]
	}
	if len(body) < 3 || body[len(body)-1] != '\'' {
		return 0, fmt.Errorf("invalid character constant %s", s)
	}
	body = body[1 : len(body)-1]
	if body[0] != '\\' {
		return int64(body[0]), nil
	}
	if len(body) < 2 {
		return 0, fmt.Errorf("invalid character constant %s", s)
	}
	switch c := body[1]; c {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'a':
		return 7, nil
	case 'b':
		return 8, nil
	case 'f':
		return 12, nil
	case 'v':
		return 11, nil
	case 'x':
		v, err := strconv.ParseUint(body[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid character constant %s", s)
		}
		return int64(v), nil
	default:
		if c >= '0' && c <= '7' {
			v, err := strconv.ParseUint(body[1:], 8, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid character constant %s", s)
			}
			return int64(v), nil
		}
		return int64(c), nil
	}
}
