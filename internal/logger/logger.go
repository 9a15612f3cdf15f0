// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured logging surface used throughout
// the daemon: a package-level severity-scoped logger backed by log/slog,
// selectable between a human-readable text format and JSON, with two
// severities (TRACE, WARNING) layered on top of slog's four built-ins.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Severities not present in the standard slog level set. slog.LevelInfo is
// 0 and each step is worth 4, matching the spacing slog itself uses between
// Debug/Info/Warn/Error.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	// LevelOff suppresses every record; chosen above Error so nothing
	// ever matches.
	LevelOff = slog.Level(12)
)

// Severity names accepted by SetLevel, ordered loosest to strictest.
const (
	Trace = "TRACE"
	Debug = "DEBUG"
	Info  = "INFO"
	Warn  = "WARNING"
	Error = "ERROR"
	Off   = "OFF"
)

var severityLevels = map[string]slog.Level{
	Trace: LevelTrace,
	Debug: LevelDebug,
	Info:  LevelInfo,
	Warn:  LevelWarn,
	Error: LevelError,
	Off:   LevelOff,
}

// levelName maps back from a record's numeric level to the name this
// package prints in the severity field, since slog's default names don't
// know about our TRACE/WARNING extensions.
func levelName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return Trace
	case l < LevelInfo:
		return Debug
	case l < LevelWarn:
		return Info
	case l < LevelError:
		return Warn
	default:
		return Error
	}
}

type loggerFactory struct {
	format string // "text" or "json"
	level  slog.Level
	out    io.Writer
}

func (f *loggerFactory) createHandler(programLevel *slog.LevelVar) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: programLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				lvl, _ := a.Value.Any().(slog.Level)
				a.Key = "severity"
				a.Value = slog.StringValue(levelName(lvl))
			case slog.TimeKey:
				a.Key = "time"
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006/01/02 15:04:05.000000"))
				}
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	}

	if f.format == "json" {
		return slog.NewJSONHandler(f.out, opts)
	}
	return slog.NewTextHandler(f.out, opts)
}

var (
	programLevel   = new(slog.LevelVar)
	defaultFactory = &loggerFactory{format: "text", level: LevelInfo, out: os.Stderr}
	defaultLogger  = slog.New(defaultFactory.createHandler(programLevel))
)

func init() {
	programLevel.Set(defaultFactory.level)
}

// SetFormat selects "text" or "json" output for every subsequent log call.
func SetFormat(format string) {
	defaultFactory.format = format
	defaultLogger = slog.New(defaultFactory.createHandler(programLevel))
}

// SetOutput redirects where subsequent log calls write, used by tests.
func SetOutput(w io.Writer) {
	defaultFactory.out = w
	defaultLogger = slog.New(defaultFactory.createHandler(programLevel))
}

// SetLevel sets the minimum severity that will be emitted.
func SetLevel(name string) {
	lvl, ok := severityLevels[name]
	if !ok {
		lvl = LevelInfo
	}
	defaultFactory.level = lvl
	programLevel.Set(lvl)
}

// SetLevelFromDebugOpt maps the mount option's debug=N value onto a
// severity: 0 is quiet (WARNING and above), 1 is DEBUG, 2 or more is TRACE.
func SetLevelFromDebugOpt(n int) {
	switch {
	case n <= 0:
		SetLevel(Warn)
	case n == 1:
		SetLevel(Debug)
	default:
		SetLevel(Trace)
	}
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}
