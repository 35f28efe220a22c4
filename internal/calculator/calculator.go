package calculator

// State is one expression together with the text on the display.
type State struct {
	Expr    Expression
	Display string
}

// EmptyState is the state of a calculator no key has been pressed on.
func EmptyState() State {
	return State{Expr: Value{N: 0}, Display: ""}
}

// next derives the state that follows key, or reports why key is rejected.
// s is never modified.
func (s State) next(key rune) (State, error) {
	tok, err := Classify(key)
	if err != nil {
		return State{}, err
	}

	expr, err := Advance(tok, s.Expr)
	if err != nil {
		return State{}, err
	}

	return State{Expr: expr, Display: render(s.Display, tok, expr)}, nil
}

// Calculator is the keypad calculator. It is a value: Press returns the next
// calculator and leaves the receiver untouched, so a Calculator may be kept
// as a snapshot. The zero value behaves like New().
type Calculator struct {
	state   State
	errored bool
}

// New returns a calculator with an empty display.
func New() Calculator {
	return Calculator{state: EmptyState()}
}

// Press applies one key and returns the resulting calculator. A rejected key
// resets everything and leaves ErrorScreen on the display.
func (c Calculator) Press(key rune) Calculator {
	next, _ := c.Step(key)
	return next
}

// Step is Press that also returns the reason a key was rejected
// (*ParseError or *ConsecutiveOperatorError). The returned calculator is the
// same one Press would return.
func (c Calculator) Step(key rune) (Calculator, error) {
	current := c.state
	if c.errored || current.Expr == nil {
		current = EmptyState()
	}

	next, err := current.next(key)
	if err != nil {
		return Calculator{
			state:   State{Expr: Value{N: 0}, Display: ErrorScreen},
			errored: true,
		}, err
	}

	return Calculator{state: next}, nil
}

// PressAll presses every rune of keys in order.
func (c Calculator) PressAll(keys string) Calculator {
	for _, key := range keys {
		c = c.Press(key)
	}
	return c
}

// Screen returns the current display text.
func (c Calculator) Screen() string {
	return c.state.Display
}

// Errored reports whether the last key was rejected.
func (c Calculator) Errored() bool {
	return c.errored
}

// Expression returns the current expression. After an error it is Value(0).
func (c Calculator) Expression() Expression {
	if c.state.Expr == nil {
		return Value{N: 0}
	}
	return c.state.Expr
}
