package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/i474232898/weather-eto-aggregation/internal/config"
)

// New builds the process logger: colored tint output for LOG_FORMAT=text,
// JSON otherwise.
func New(cfg *config.AppConfig, appName string) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg, appName)
}

func NewWithWriter(w io.Writer, cfg *config.AppConfig, appName string) *slog.Logger {
	if cfg.LogFormat == "text" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"units", string(cfg.Units),
	)
}

// Fatal logs err and exits the process.
func Fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
