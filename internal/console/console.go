// Package console drives a calculator from a stream of key presses and
// redraws its screen after every key.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go-keypad-calc/internal/calculator"

	"go.uber.org/zap"
)

const (
	keyInterrupt = 0x03 // Ctrl-C
	keyEOT       = 0x04 // Ctrl-D

	// clearLine returns the cursor to column 0 and erases the line.
	clearLine = "\r\x1b[K"
)

// Run reads keys from in until EOF, Ctrl-C, Ctrl-D or ctx is done, and
// returns the calculator as it was when the loop stopped. Carriage return and
// newline separate input lines and are not keys.
//
// Reads happen on a separate goroutine so that cancelling ctx ends Run
// without waiting for another key. That goroutine stays blocked in
// in.ReadRune until the read returns.
func Run(ctx context.Context, in io.RuneReader, out io.Writer, logger *zap.Logger) (calculator.Calculator, error) {
	calc := calculator.New()

	if err := draw(out, calc); err != nil {
		return calc, err
	}

	done := make(chan struct{})
	defer close(done)
	keys := readKeys(in, done)

	for {
		if err := ctx.Err(); err != nil {
			return calc, err
		}

		var r keyRead
		select {
		case <-ctx.Done():
			return calc, ctx.Err()
		case r = <-keys:
		}

		if errors.Is(r.err, io.EOF) {
			return calc, finish(out)
		}
		if r.err != nil {
			return calc, fmt.Errorf("read key: %w", r.err)
		}

		switch r.key {
		case keyInterrupt, keyEOT:
			return calc, finish(out)
		case '\r', '\n':
			continue
		}

		next, err := calc.Step(r.key)
		if err != nil {
			logger.Debug("key rejected",
				zap.String("key", string(r.key)),
				zap.String("error_kind", calculator.ErrorKind(err)),
				zap.Error(err),
			)
		}
		calc = next

		if err := draw(out, calc); err != nil {
			return calc, err
		}
	}
}

type keyRead struct {
	key rune
	err error
}

// readKeys forwards every rune read from in until a read fails or done is
// closed.
func readKeys(in io.RuneReader, done <-chan struct{}) <-chan keyRead {
	keys := make(chan keyRead)

	go func() {
		for {
			key, _, err := in.ReadRune()
			select {
			case keys <- keyRead{key: key, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	return keys
}

func draw(out io.Writer, calc calculator.Calculator) error {
	if _, err := io.WriteString(out, clearLine+calc.Screen()); err != nil {
		return fmt.Errorf("draw screen: %w", err)
	}
	return nil
}

func finish(out io.Writer) error {
	if _, err := io.WriteString(out, "\r\n"); err != nil {
		return fmt.Errorf("draw screen: %w", err)
	}
	return nil
}
