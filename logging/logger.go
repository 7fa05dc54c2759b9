package logging

import (
	"io"

	"github.com/phuslu/log"
)

func CreateDebugLogger() *log.Logger {
	return &log.Logger{
		Level:  log.DebugLevel,
		Caller: 0,
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			EndWithMessage: true,
		},
	}
}

// CreateLogger builds a logger at the named level. Console output can
// be turned off for quiet embedding.
func CreateLogger(level string, console bool) *log.Logger {
	logger := &log.Logger{
		Level:  log.ParseLevel(level),
		Caller: 0,
	}
	if console {
		logger.Writer = &log.ConsoleWriter{
			ColorOutput:    false,
			EndWithMessage: true,
		}
	} else {
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	return logger
}
