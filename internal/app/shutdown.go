package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Suggestic/amanda-scrapping/internal/observability"
)

// GracefulShutdown returns a context cancelled on SIGINT/SIGTERM so
// long-running crawls stop at a page boundary instead of mid-write.
func GracefulShutdown(logger *observability.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	return ctx, cancel
}
