// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global level and output. When file is non-empty logs are
// appended there instead of stderr, since the terminal UI owns the screen.
// The returned closer releases the file, if any.
func Init(level string, format string, file string) (io.Closer, error) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}
		out, closer = f, f
	}

	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: file != ""}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

func Get() zerolog.Logger {
	return log.Logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
