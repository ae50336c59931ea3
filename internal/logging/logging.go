// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the global zerolog logger.
//
// Logs go to stderr, to a rotating file, or both. Full-screen commands pass
// Quiet so nothing is written to the terminal they draw on.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeranaias/chatbot-tui/internal/config"
)

// Options adjust Init beyond what the config file holds.
type Options struct {
	// Quiet suppresses stderr output
	Quiet bool
}

// Init installs the global logger from cfg and returns a closer for the
// log file, if one was opened.
func Init(cfg config.LogConfig, opts Options) (io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if !opts.Quiet {
		if cfg.Format == "json" {
			writers = append(writers, os.Stderr)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
		}
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return nil, errors.Wrap(err, "create log directory")
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // days
		}
		closer = rotator
		if cfg.Format == "json" {
			writers = append(writers, rotator)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{NoColor: true, Out: rotator})
		}
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	return closer, nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
