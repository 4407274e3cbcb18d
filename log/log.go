// Copyright 2025 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log defines the narrow application-logger handle pgdriver
// consumes, plus a log/slog-backed default implementation.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the application logger handle consumed by pgdriver. It is
// intentionally narrow: the core never needs more than "report an error"
// and "report something too verbose to call info/debug" (spec.md calls
// the latter `silly`; a Client logs every debug SQL statement and every
// debug result set through it).
type Logger interface {
	Error(ctx context.Context, msg string, args ...any)
	Silly(ctx context.Context, msg string, args ...any)
}

// Slog adapts a *slog.Logger to the Logger interface. Silly maps to
// slog.LevelDebug: the source's `silly` channel is conceptually the same
// "too noisy for normal operation" bucket debug logging occupies, so no
// new slog level is introduced for it.
type Slog struct {
	logger *slog.Logger
}

// NewSlog wraps an existing *slog.Logger.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

// NewDefault builds a Slog from level/format/output settings, following
// the same handler-selection logic as servenv's SetupLogging: json/text
// format, stdout/stderr/file output, debug/info/warn/error level. Unknown
// values fall back the same way servenv's does (to json, stdout, info).
func NewDefault(level, format, output string) *Slog {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer
	switch strings.ToLower(output) {
	case "stderr":
		w = os.Stderr
	case "", "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			w = os.Stdout
		} else {
			w = f
		}
	}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}

	return &Slog{logger: slog.New(handler)}
}

// Error implements Logger.
func (s *Slog) Error(ctx context.Context, msg string, args ...any) {
	s.logger.ErrorContext(ctx, msg, args...)
}

// Silly implements Logger.
func (s *Slog) Silly(ctx context.Context, msg string, args ...any) {
	s.logger.DebugContext(ctx, msg, args...)
}

// Noop discards everything. Useful as a Config default so a hosting
// application that doesn't care about logging never has to supply one.
type Noop struct{}

func (Noop) Error(context.Context, string, ...any) {}
func (Noop) Silly(context.Context, string, ...any) {}
