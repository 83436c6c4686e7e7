package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"outreach/internal/config"

	"github.com/rs/zerolog"
)

// New constructs a zerolog logger based on config settings.
// Defaults to JSON, info level, stdout when fields are empty.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	output := io.Writer(os.Stdout)
	var closer io.Closer

	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "stderr":
		output = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=file requires logging.file_path")
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
		closer = file
	}

	base := build(output, cfg.Format, level, app)
	return &base, closer, nil
}

// Fallback is used before configuration is loaded: console output on stderr.
func Fallback() zerolog.Logger {
	return build(os.Stderr, "console", zerolog.InfoLevel, config.AppConfig{Name: "outreach"})
}

// ForRun tags a logger with the run id and task so every line of one
// invocation can be grepped together.
func ForRun(logger *zerolog.Logger, runID, task string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Str("task", task).Logger()
}

func build(output io.Writer, format string, level zerolog.Level, app config.AppConfig) zerolog.Logger {
	if strings.ToLower(strings.TrimSpace(format)) == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	ctx := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("app", app.Name)
	if app.Environment != "" {
		ctx = ctx.Str("env", app.Environment)
	}
	if app.Version != "" {
		ctx = ctx.Str("version", app.Version)
	}
	return ctx.Logger()
}
