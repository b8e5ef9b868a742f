package main

import (
	"io"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"nmeafix/internal/config"
)

// setupLogging installs the default logger. It writes to console, to the
// rotating log.file when set, and to extra (the web log buffer) when
// non-nil. The returned func closes the rotating file.
func setupLogging(cfg config.LogConfig, console io.Writer, extra io.Writer) (func(), error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	writers := []io.Writer{console}
	closeFn := func() {}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		writers = append(writers, lj)
		closeFn = func() { _ = lj.Close() }
	}
	if extra != nil {
		writers = append(writers, extra)
	}

	logger := log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "nmeafix",
	})
	log.SetDefault(logger)
	return closeFn, nil
}
