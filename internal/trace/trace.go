// Package trace records the diagnostic transcript of a reallocation run.
//
// A Trace is an append-only, ordered list of events. It is passed explicitly
// through the pipeline; nothing in it depends on wall-clock time, so two runs
// over the same input produce identical transcripts.
package trace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	applog "remanejo/internal/log"
)

type Level string

const (
	LevelInfo   Level = "info"
	LevelWarn   Level = "warn"
	LevelReject Level = "reject"
)

// Event is one entry of the transcript.
type Event struct {
	Seq     int         `json:"seq"`
	Stage   string      `json:"stage"`
	Level   Level       `json:"level"`
	Message string      `json:"message"`
	Attrs   []slog.Attr `json:"-"`
}

// Trace is not safe for concurrent use; every run owns its own.
type Trace struct {
	stage  string
	events []Event
	mirror *applog.Logger
}

// New returns an empty trace. When mirror is non-nil every event is also
// written to it at debug level (warnings and rejections at warn).
func New(mirror *applog.Logger) *Trace {
	return &Trace{mirror: mirror}
}

// Stage sets the stage name attached to subsequent events.
func (t *Trace) Stage(name string) {
	t.stage = name
}

func (t *Trace) Info(msg string, args ...any) {
	t.add(LevelInfo, msg, args)
}

func (t *Trace) Warn(msg string, args ...any) {
	t.add(LevelWarn, msg, args)
}

// Reject records a refused operation, typically a transfer that failed validation.
func (t *Trace) Reject(msg string, args ...any) {
	t.add(LevelReject, msg, args)
}

// Events returns a copy of the recorded events.
func (t *Trace) Events() []Event {
	return append([]Event(nil), t.events...)
}

// Len returns the number of recorded events.
func (t *Trace) Len() int {
	return len(t.events)
}

// Count returns the number of events at the given level.
func (t *Trace) Count(level Level) int {
	n := 0
	for _, e := range t.events {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Transcript renders the events as human readable lines.
func (t *Trace) Transcript() string {
	var b strings.Builder
	for _, e := range t.events {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// String renders "[stage] LEVEL message key=value ...".
func (e Event) String() string {
	var b strings.Builder
	if e.Stage != "" {
		fmt.Fprintf(&b, "[%s] ", e.Stage)
	}
	if e.Level != LevelInfo {
		b.WriteString(strings.ToUpper(string(e.Level)))
		b.WriteByte(' ')
	}
	b.WriteString(e.Message)
	for _, a := range e.Attrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value.String())
	}
	return b.String()
}

func (t *Trace) add(level Level, msg string, args []any) {
	e := Event{
		Seq:     len(t.events) + 1,
		Stage:   t.stage,
		Level:   level,
		Message: msg,
		Attrs:   toAttrs(args),
	}
	t.events = append(t.events, e)
	if t.mirror == nil {
		return
	}
	lvl := slog.LevelDebug
	if level != LevelInfo {
		lvl = slog.LevelWarn
	}
	fields := []any{applog.FieldStage, e.Stage}
	for _, a := range e.Attrs {
		fields = append(fields, a)
	}
	t.mirror.Log(context.Background(), lvl, msg, fields...)
}

// toAttrs pairs up alternating key/value arguments the way slog does.
func toAttrs(args []any) []slog.Attr {
	var attrs []slog.Attr
	for len(args) > 0 {
		switch x := args[0].(type) {
		case slog.Attr:
			attrs = append(attrs, x)
			args = args[1:]
		case string:
			if len(args) == 1 {
				attrs = append(attrs, slog.String("!BADKEY", x))
				args = nil
				continue
			}
			attrs = append(attrs, slog.Any(x, args[1]))
			args = args[2:]
		default:
			attrs = append(attrs, slog.Any("!BADKEY", x))
			args = args[1:]
		}
	}
	return attrs
}
