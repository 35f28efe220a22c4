package calculator

import (
	"errors"
	"fmt"
)

// ErrorScreen is the display shown after any rejected key.
const ErrorScreen = "ERROR"

// ParseError reports a key that is not a digit, an operator or '='.
type ParseError struct {
	Key rune
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("unrecognised key %q", err.Key)
}

// ConsecutiveOperatorError reports an operator typed while another one is
// still waiting for its right operand.
type ConsecutiveOperatorError struct {
	Previous Operator
	Next     Operator
}

func (err *ConsecutiveOperatorError) Error() string {
	return fmt.Sprintf("operator %q follows pending operator %q", err.Next.String(), err.Previous.String())
}

// ErrorKind names the failure class of err for logs and metric attributes.
func ErrorKind(err error) string {
	var parseErr *ParseError
	var opErr *ConsecutiveOperatorError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &opErr):
		return "consecutive_operator"
	default:
		return "unknown"
	}
}
