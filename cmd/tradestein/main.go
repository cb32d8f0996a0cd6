// Command tradestein is the trading journal CLI and API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tradestein/internal/cli"
	apperrors "tradestein/internal/errors"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps failures to distinct statuses for scripts.
func exitCode(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInputValidation), errors.Is(err, apperrors.ErrConfigInvalid):
		return 2
	case errors.Is(err, apperrors.ErrNotAuthenticated),
		errors.Is(err, apperrors.ErrSessionExpired),
		errors.Is(err, apperrors.ErrSubscriptionInactive):
		return 3
	case errors.Is(err, context.Canceled):
		return 130
	}
	return 1
}
