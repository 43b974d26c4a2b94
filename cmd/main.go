package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/igloo/internal/services"
	"github.com/desertthunder/igloo/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	runner := NewRunner(RunnerOpts{Logger: logger})
	err := runner.root().Run(ctx, os.Args)

	runner.Close()
	stop()

	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	switch {
	case isUsage(err):
		logger.Error(err.Error())
		logger.Info("run `igloo --help` for usage")
		os.Exit(2)
	case errors.Is(err, shared.ErrAuthFailed):
		logger.Fatal("login failed", "reason", describe(err))
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrForbidden):
		logger.Fatal(err.Error())
	default:
		logger.Fatalf("application error: %s", describe(err))
	}
}

// describe prefers the normalized message for API failures and the full chain otherwise.
func describe(err error) string {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		return services.ErrorMessage(err)
	}
	return err.Error()
}
