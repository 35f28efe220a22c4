package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-keypad-calc/internal/console"
	"go-keypad-calc/internal/observability"

	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "calc:", err)
		os.Exit(1)
	}
}

func run() error {
	verbose := flag.Bool("v", false, "log rejected keys to stderr")
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		observability.Logger = logger
		defer observability.SyncLogger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(fd, state)

		fmt.Fprint(os.Stdout, "digits + - =  (ctrl-c to quit)\r\n")
	}

	calc, err := console.Run(ctx, bufio.NewReader(os.Stdin), os.Stdout, observability.Logger)
	if errors.Is(err, context.Canceled) {
		fmt.Fprint(os.Stdout, "\r\n")
		return nil
	}
	if err != nil {
		return err
	}

	observability.Logger.Debug("console closed", zap.String("screen", calc.Screen()))
	return nil
}
