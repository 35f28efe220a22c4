package calculator

import "fmt"

// Expression is the running left-to-right computation. It is exactly one of
// Value, PendingOp or Binary; no other implementations exist.
type Expression interface {
	expression()
	fmt.Stringer
}

// Value is a single accumulated integer with no pending operator.
type Value struct {
	N int64
}

// PendingOp is a finished left operand waiting for its right operand.
type PendingOp struct {
	Left int64
	Op   Operator
}

// Binary is a left operand, operator and a right operand still being typed.
type Binary struct {
	Left  int64
	Op    Operator
	Right int64
}

func (Value) expression()     {}
func (PendingOp) expression() {}
func (Binary) expression()    {}

func (v Value) String() string     { return fmt.Sprintf("Value(%d)", v.N) }
func (p PendingOp) String() string { return fmt.Sprintf("PendingOp(%d %s)", p.Left, p.Op) }
func (b Binary) String() string    { return fmt.Sprintf("Binary(%d %s %d)", b.Left, b.Op, b.Right) }

// Advance returns the expression that results from applying tok to expr.
// Only operator tokens can fail, with *ConsecutiveOperatorError.
func Advance(tok Token, expr Expression) (Expression, error) {
	switch tok.Kind {
	case DigitToken:
		return pushDigit(expr, int64(tok.Digit)), nil
	case OperatorToken:
		return pushOperator(expr, tok.Op)
	case EqualsToken:
		return Value{N: Evaluate(expr)}, nil
	default:
		panic(fmt.Sprintf("calculator: unknown token kind %d", tok.Kind))
	}
}

func pushDigit(expr Expression, d int64) Expression {
	switch e := expr.(type) {
	case Value:
		return Value{N: e.N*10 + d}
	case PendingOp:
		return Binary{Left: e.Left, Op: e.Op, Right: d}
	case Binary:
		return Binary{Left: e.Left, Op: e.Op, Right: e.Right*10 + d}
	default:
		panic(fmt.Sprintf("calculator: unknown expression %T", expr))
	}
}

func pushOperator(expr Expression, op Operator) (Expression, error) {
	switch e := expr.(type) {
	case Value:
		return PendingOp{Left: e.N, Op: op}, nil
	case PendingOp:
		return nil, &ConsecutiveOperatorError{Previous: e.Op, Next: op}
	case Binary:
		return PendingOp{Left: e.Op.apply(e.Left, e.Right), Op: op}, nil
	default:
		panic(fmt.Sprintf("calculator: unknown expression %T", expr))
	}
}

// Evaluate collapses expr to a number. A trailing operator is applied to an
// implicit zero right operand.
func Evaluate(expr Expression) int64 {
	switch e := expr.(type) {
	case Value:
		return e.N
	case PendingOp:
		return e.Op.apply(e.Left, 0)
	case Binary:
		return e.Op.apply(e.Left, e.Right)
	default:
		panic(fmt.Sprintf("calculator: unknown expression %T", expr))
	}
}
