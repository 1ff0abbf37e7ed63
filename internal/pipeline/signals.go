package pipeline

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WatchSignals stops flag on the first SIGINT or SIGTERM. The returned
// function releases the signal handler.
func WatchSignals(ctx context.Context, flag *RunningFlag, logger *slog.Logger) (stop func()) {
	if logger == nil {
		logger = slog.Default()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigChan:
			if flag.Stop() {
				logger.Info("received signal, finishing current work", "signal", sig.String())
			}
		case <-ctx.Done():
		}
	}()

	return func() {
		cancel()
		<-done
		signal.Stop(sigChan)
	}
}
