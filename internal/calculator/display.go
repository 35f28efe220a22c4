package calculator

import "strconv"

// render returns the display after tok was accepted and expr is the
// resulting expression. '=' replaces the display with the result; every
// other token appends its text.
func render(display string, tok Token, expr Expression) string {
	if tok.Kind == EqualsToken {
		return strconv.FormatInt(Evaluate(expr), 10)
	}
	return display + tok.String()
}
