package testlog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// CapturedAttributes forms a chain of inherited attributes, to traverse on captured log records.
type CapturedAttributes struct {
	Parent     *CapturedAttributes
	Attributes []slog.Attr
}

// Attrs calls f on each Attr, stopping when f returns false.
// It reports whether iteration ran to completion.
func (r *CapturedAttributes) Attrs(f func(slog.Attr) bool) bool {
	for a := r; a != nil; a = a.Parent {
		for _, attr := range a.Attributes {
			if !f(attr) {
				return false
			}
		}
	}
	return true
}

// CapturedRecord is a log record together with the attributes inherited from the logger that emitted it.
type CapturedRecord struct {
	Parent *CapturedAttributes
	*slog.Record
}

// Attrs calls f on each Attr of the record, then on the inherited attributes.
func (r *CapturedRecord) Attrs(f func(slog.Attr) bool) {
	more := true
	r.Record.Attrs(func(a slog.Attr) bool {
		more = f(a)
		return more
	})
	if more && r.Parent != nil {
		r.Parent.Attrs(f)
	}
}

func (r *CapturedRecord) AttrValue(name string) (v any) {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == name {
			v = a.Value.Any()
			return false
		}
		return true
	})
	return
}

// CapturingHandler captures all log records and forwards them to a delegate.
// It is not safe for concurrent use.
type CapturingHandler struct {
	handler slog.Handler
	Logs    *[]*CapturedRecord // shared among derived handlers
	attrs   *CapturedAttributes
}

var _ slog.Handler = (*CapturingHandler)(nil)

// CaptureLogger returns a test logger along with the handler capturing its records.
func CaptureLogger(t Testing, level slog.Level) (log.Logger, *CapturingHandler) {
	var capt *CapturingHandler
	logger := LoggerWithHandlerMod(t, level, func(h slog.Handler) slog.Handler {
		capt = &CapturingHandler{handler: h, Logs: new([]*CapturedRecord)}
		return capt
	})
	return logger, capt
}

func (c *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	*c.Logs = append(*c.Logs, &CapturedRecord{Parent: c.attrs, Record: &r})
	return c.handler.Handle(ctx, r)
}

func (c *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithAttrs(attrs),
		Logs:    c.Logs,
		attrs:   &CapturedAttributes{Parent: c.attrs, Attributes: attrs},
	}
}

func (c *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{handler: c.handler.WithGroup(name), Logs: c.Logs}
}

func (c *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.handler.Enabled(ctx, level)
}

func (c *CapturingHandler) Clear() {
	*c.Logs = (*c.Logs)[:0]
}

type LogFilter func(record *CapturedRecord) bool

func NewLevelFilter(level slog.Level) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Level == level
	}
}

func NewAttributesFilter(key, value string) LogFilter {
	return func(r *CapturedRecord) bool {
		found := false
		r.Attrs(func(a slog.Attr) bool {
			found = a.Key == key && a.Value.String() == value
			return !found
		})
		return found
	}
}

func NewMessageFilter(message string) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Message == message
	}
}

func NewMessageContainsFilter(message string) LogFilter {
	return func(r *CapturedRecord) bool {
		return strings.Contains(r.Message, message)
	}
}

func NewErrContainsFilter(errMessage string) LogFilter {
	return func(r *CapturedRecord) bool {
		err, ok := r.AttrValue("err").(error)
		return ok && strings.Contains(err.Error(), errMessage)
	}
}

func (c *CapturingHandler) FindLog(filters ...LogFilter) *CapturedRecord {
	if logs := c.FindLogs(filters...); len(logs) > 0 {
		return logs[0]
	}
	return nil
}

func (c *CapturingHandler) FindLogs(filters ...LogFilter) []*CapturedRecord {
	var logs []*CapturedRecord
outer:
	for _, record := range *c.Logs {
		for _, filter := range filters {
			if !filter(record) {
				continue outer
			}
		}
		logs = append(logs, record)
	}
	return logs
}
