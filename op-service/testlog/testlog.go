// Copyright 2019 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var useColorInTestLog = os.Getenv("FP_TESTLOG_DISABLE_COLOR") != "true"

// Testing interface to log to. Some functions are marked as Helper function to log the call site accurately.
// Standard Go testing.TB implements this.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	FailNow()
}

// logger implements log.Logger such that all output goes to the unit test log via
// t.Logf(). The level methods are marked as test helpers, so the file and line
// number in unit test output correspond to the call site which emitted the log message.
type logger struct {
	t   Testing
	l   log.Logger
	mu  *sync.Mutex
	buf *syncBuffer
}

var _ log.Logger = (*logger)(nil)

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	return LoggerWithHandlerMod(t, level)
}

// HandlerMod wraps the terminal handler of a test logger.
type HandlerMod func(slog.Handler) slog.Handler

func LoggerWithHandlerMod(t Testing, level slog.Level, mods ...HandlerMod) log.Logger {
	l := &logger{t: t, mu: new(sync.Mutex), buf: newSyncBuffer(new(bytes.Buffer))}
	var handler slog.Handler = log.NewTerminalHandlerWithLevel(l.buf, level, useColorInTestLog)
	for _, mod := range mods {
		handler = mod(handler)
	}
	l.l = log.NewLogger(handler)
	return l
}

// emit runs fn under the logger lock, then forwards the buffered output to the test log.
func (l *logger) emit(fn func(log.Logger)) {
	l.t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.l)
	l.flush()
}

func (l *logger) Handler() slog.Handler {
	return l.l.Handler()
}

func (l *logger) SetContext(ctx context.Context) {}

func (l *logger) LogAttrs(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.LogAttrs(ctx, level, msg, attrs...) })
}

func (l *logger) TraceContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.TraceContext(ctx, msg, args...) })
}

func (l *logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.DebugContext(ctx, msg, args...) })
}

func (l *logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.InfoContext(ctx, msg, args...) })
}

func (l *logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.WarnContext(ctx, msg, args...) })
}

func (l *logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.ErrorContext(ctx, msg, args...) })
}

func (l *logger) Trace(msg string, ctx ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.Trace(msg, ctx...) })
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.Debug(msg, ctx...) })
}

func (l *logger) Info(msg string, ctx ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.Info(msg, ctx...) })
}

func (l *logger) Warn(msg string, ctx ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.Warn(msg, ctx...) })
}

func (l *logger) Error(msg string, ctx ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.Error(msg, ctx...) })
}

// Crit logs and fails the test; the wrapped Crit would exit the process before the buffer is flushed.
func (l *logger) Crit(msg string, ctx ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.Write(log.LevelCrit, msg, ctx...) })
	l.t.FailNow()
}

func (l *logger) Log(level slog.Level, msg string, ctx ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.Log(level, msg, ctx...) })
}

func (l *logger) Write(level slog.Level, msg string, ctx ...any) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.Log(level, msg, ctx...) })
}

func (l *logger) WriteCtx(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	l.t.Helper()
	l.emit(func(x log.Logger) { x.WriteCtx(ctx, level, msg, args...) })
}

func (l *logger) New(ctx ...any) log.Logger {
	return &logger{l.t, l.l.New(ctx...), l.mu, l.buf}
}

func (l *logger) With(ctx ...any) log.Logger {
	return l.New(ctx...)
}

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.l.Enabled(ctx, level)
}

// flush writes all buffered lines to the test log and clears the buffer.
func (l *logger) flush() {
	l.t.Helper()
	// skip flush, emit and the public logger fn
	padding := 30 - estimateInfoLen(3)
	if padding < 0 {
		padding = 0
	}
	scanner := bufio.NewScanner(l.buf)
	for scanner.Scan() {
		l.t.Logf("%*s%s", padding, "", scanner.Text())
	}
	l.buf.Reset()
}

// estimateInfoLen estimates the length of the "file:line: " decoration that the
// testing package prepends, so the log lines can be aligned.
func estimateInfoLen(frameSkip int) int {
	var pc [50]uintptr
	n := runtime.Callers(frameSkip+2, pc[:])
	if n == 0 {
		return 8
	}
	frame, _ := runtime.CallersFrames(pc[:n]).Next()
	file := frame.File
	if file == "" {
		return 8
	}
	if index := strings.LastIndexAny(file, "/\\"); index >= 0 {
		file = file[index+1:]
	}
	return 4 + len(file) + 1 + len(strconv.Itoa(frame.Line))
}

type syncBuffer struct {
	mu sync.Mutex
	b  *bytes.Buffer
}

var _ io.ReadWriter = (*syncBuffer)(nil)

func newSyncBuffer(b *bytes.Buffer) *syncBuffer {
	return &syncBuffer{b: b}
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Read(p)
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b.Reset()
}
