package cli

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

var logLevels = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

// setupLogging builds the logger for one command invocation. The level is set
// on the logger instead of globally so that concurrent runs stay independent.
func setupLogging(w io.Writer, loglevel string, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(parseLogLevel(loglevel))
}

func parseLogLevel(loglevel string) zerolog.Level {
	if level, ok := logLevels[loglevel]; ok {
		return level
	}
	return zerolog.InfoLevel
}
