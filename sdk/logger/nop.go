package logger

import (
	"io"

	"github.com/jxo-me/ddnsd/core/logger"
)

// Nop returns a logger that discards everything written to it.
func Nop() logger.ILogger {
	return NewLogger(OutputLoggerOption(io.Discard), LevelLoggerOption(logger.ErrorLevel))
}
