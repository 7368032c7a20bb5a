// Package serviceutil holds process lifecycle helpers for the collector
// binaries.
package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is cancelled on the first SIGINT or SIGTERM. In-flight
// targets still finish since the coordinator only checks for cancellation
// between dispatches. A second signal exits immediately.
func SignalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancelCause(parent)
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case sig := <-signals:
			slog.Warn("stopping after in-flight targets, signal again to exit now", "signal", sig.String())
			cancel(context.Canceled)
		case <-ctx.Done():
			return
		}
		<-signals
		os.Exit(130)
	}()
	return ctx
}

// Fatal logs err and exits with status 1.
func Fatal(message string, err error) {
	slog.Error(message, "err", err)
	os.Exit(1)
}
