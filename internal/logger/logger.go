// Package logger configures zerolog for the CLI and the canvas.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jask/flowcanvas/internal/config"
)

// Init builds a logger from cfg and installs it as the zerolog global.
// The returned closer releases the log file, if one was opened.
func Init(cfg config.LogConfig) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var (
		output io.Writer
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file '%s': %w", cfg.File, err)
		}
		output, closer = file, file
	case "none":
		output = io.Discard
	default:
		output = os.Stderr
	}

	if strings.ToLower(cfg.Format) == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.Output == "file",
		}
	}

	l := zerolog.New(output).Level(level).With().Timestamp().Logger()
	log.Logger = l
	return l, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
