package calculator

import "strconv"

// Operator is a binary operator accepted by the keypad.
type Operator int

const (
	Plus Operator = iota + 1
	Minus
)

func (op Operator) String() string {
	switch op {
	case Plus:
		return "+"
	case Minus:
		return "-"
	default:
		return "?"
	}
}

// apply evaluates a op b. Integer overflow wraps.
func (op Operator) apply(a, b int64) int64 {
	switch op {
	case Plus:
		return a + b
	case Minus:
		return a - b
	default:
		panic("calculator: unknown operator " + strconv.Itoa(int(op)))
	}
}

// TokenKind identifies what a classified key means.
type TokenKind int

const (
	DigitToken TokenKind = iota + 1
	OperatorToken
	EqualsToken
)

func (k TokenKind) String() string {
	switch k {
	case DigitToken:
		return "digit"
	case OperatorToken:
		return "operator"
	case EqualsToken:
		return "equals"
	default:
		return "unknown"
	}
}

// Token is the semantic meaning of one key. Digit is set for DigitToken,
// Op for OperatorToken.
type Token struct {
	Kind  TokenKind
	Digit int
	Op    Operator
}

// String returns the text the display shows for the token.
func (t Token) String() string {
	switch t.Kind {
	case DigitToken:
		return strconv.Itoa(t.Digit)
	case OperatorToken:
		return t.Op.String()
	case EqualsToken:
		return "="
	default:
		return ""
	}
}

// Classify maps a single key to its token.
func Classify(key rune) (Token, error) {
	switch key {
	case '+':
		return Token{Kind: OperatorToken, Op: Plus}, nil
	case '-':
		return Token{Kind: OperatorToken, Op: Minus}, nil
	case '=':
		return Token{Kind: EqualsToken}, nil
	}

	if key >= '0' && key <= '9' {
		return Token{Kind: DigitToken, Digit: int(key - '0')}, nil
	}

	return Token{}, &ParseError{Key: key}
}
