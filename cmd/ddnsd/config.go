package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/logger"
	xlogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logOutput resolves the log output of cfg. A nil writer means logging is off.
func logOutput(cfg *config.LogConfig) io.Writer {
	if cfg == nil {
		return os.Stderr
	}
	switch cfg.Output {
	case "none", "null":
		return nil
	case "stdout":
		return os.Stdout
	case "stderr", "":
		return os.Stderr
	}
	if cfg.Rotation != nil {
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxAge:     cfg.Rotation.MaxAge,
			MaxBackups: cfg.Rotation.MaxBackups,
			LocalTime:  cfg.Rotation.LocalTime,
			Compress:   cfg.Rotation.Compress,
		}
	}
	_ = os.MkdirAll(filepath.Dir(cfg.Output), 0755)
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logger.Default().Warn(err)
		return os.Stderr
	}
	return f
}

// logFromConfig builds the process logger writing to out. A non-empty level
// overrides the configured one.
func logFromConfig(cfg *config.LogConfig, level string, out io.Writer) logger.ILogger {
	if cfg == nil {
		cfg = &config.LogConfig{}
	}
	if level == "" {
		level = cfg.Level
	}
	if out == nil {
		return xlogger.Nop()
	}
	return xlogger.NewLogger(
		xlogger.FormatLoggerOption(logger.LogFormat(cfg.Format)),
		xlogger.LevelLoggerOption(logger.LogLevel(level)),
		xlogger.OutputLoggerOption(out),
	)
}

// zerologFromConfig builds the logger of the config file manager.
func zerologFromConfig(cfg *config.LogConfig, level string, out io.Writer) *zerolog.Logger {
	if cfg == nil {
		cfg = &config.LogConfig{}
	}
	if level == "" {
		level = cfg.Level
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if out == nil {
		out = io.Discard
	}
	if cfg.Format != string(logger.JSONFormat) {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: "2006-01-02 15:04:05"}
	}
	l := zerolog.New(out).Level(lvl).With().Timestamp().Str("component", "config").Logger()
	return &l
}

// logOutputKey identifies the output of cfg, so that a reload reuses an open
// file or rotator.
func logOutputKey(cfg *config.LogConfig) string {
	if cfg == nil {
		return ""
	}
	key := cfg.Output
	if r := cfg.Rotation; r != nil {
		key += fmt.Sprintf("|%d|%d|%d|%t|%t", r.MaxSize, r.MaxAge, r.MaxBackups, r.LocalTime, r.Compress)
	}
	return key
}
