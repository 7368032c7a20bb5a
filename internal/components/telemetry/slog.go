package telemetry

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
)

// SlogAPI reports through the default slog logger. Params are logged as
// p0, p1, ... so a report keeps its argument order in structured output.
type SlogAPI struct{}

func reportAttrs(id string, params []any) []any {
	attrs := make([]any, 0, 2+2*len(params))
	if id != "" {
		attrs = append(attrs, "id", id)
	}
	for i, p := range params {
		if err, ok := p.(error); ok {
			p = err.Error()
		}
		attrs = append(attrs, "p"+strconv.Itoa(i), p)
	}
	return attrs
}

func (SlogAPI) ReportBroken(id string, params ...any) {
	slog.Error("component broken", reportAttrs(id, params)...)
}

func (SlogAPI) ReportWarning(id string, params ...any) {
	slog.Warn("component warning", reportAttrs(id, params)...)
}

func (SlogAPI) ReportDebug(msg string, params ...any) {
	slog.Debug(msg, reportAttrs("", params)...)
}

func (SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "value", count)
}

// InitSlog makes a colored tint handler on stderr the default logger.
// Colors are dropped when NO_COLOR is set, which keeps cron job logs clean.
func InitSlog(verbose bool) {
	opts := &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.DateTime,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}
	if verbose {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, opts)))
}
