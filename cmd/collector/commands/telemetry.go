package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"petstay-backend/internal/components/serviceutil"
	"petstay-backend/internal/components/telemetry"
	"time"
)

var shutdown func(context.Context) error

func InitTelemetry(ctx context.Context, verbose bool, dumpDir string) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	tel, err := telemetry.SetupFromEnv(ctx, "collector")
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.DebugContext(ctx, "no telemetry.json5 found, traces and metrics are not exported")
	case err != nil:
		serviceutil.Fatal("setup telemetry", err)
	default:
		shutdown = tel.Shutdown
		if err := telemetry.InstrumentPerfStats(ctx); err != nil {
			slog.WarnContext(ctx, "process metrics unavailable", "err", err)
		}
	}

	if dumpDir == "" {
		return
	}
	output, err := telemetry.NewFilesystemOutput(dumpDir)
	if err != nil {
		serviceutil.Fatal("create http dump directory", err)
	}
	telemetry.SetMessageOutput(output)
}

func ShutdownTelemetry() {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := shutdown(ctx)
	if err != nil {
		slog.Warn("flush telemetry", "err", err)
	}
}
