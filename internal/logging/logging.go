// Package logging is the structured logging facade (component I). It
// wraps pterm's leveled printers but widens each call site to carry a
// property map instead of bare Printf-style varargs, and tags every line
// emitted through a channel-scoped Logger with a correlation UUID.
package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 2006 15:04:05"
}

// Fields is a structured property map attached to a log line.
type Fields map[string]any

// Logger is a structured logging sink bound to a fixed correlation ID and
// base field set (e.g. a single channel's {type, origin, destination}).
// Safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	id      string
	base    Fields
}

// New creates a Logger with a freshly minted correlation ID and base fields.
func New(base Fields) *Logger {
	return &Logger{id: uuid.NewString(), base: base}
}

// ID returns this logger's correlation UUID.
func (l *Logger) ID() string { return l.id }

// With returns a derived Logger sharing the same correlation ID, with extra
// fields merged over the base set.
func (l *Logger) With(extra Fields) *Logger {
	l.mu.Lock()
	merged := make(Fields, len(l.base)+len(extra))
	for k, v := range l.base {
		merged[k] = v
	}
	l.mu.Unlock()
	for k, v := range extra {
		merged[k] = v
	}
	return &Logger{id: l.id, base: merged}
}

func (l *Logger) render(msg string, extra Fields) string {
	l.mu.Lock()
	fields := make(Fields, len(l.base)+len(extra)+1)
	for k, v := range l.base {
		fields[k] = v
	}
	l.mu.Unlock()
	for k, v := range extra {
		fields[k] = v
	}
	fields["cid"] = l.id

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

func (l *Logger) Debug(msg string, extra ...Fields)   { pterm.Debug.Println(l.render(msg, merge(extra))) }
func (l *Logger) Info(msg string, extra ...Fields)    { pterm.Info.Println(l.render(msg, merge(extra))) }
func (l *Logger) Success(msg string, extra ...Fields) { pterm.Success.Println(l.render(msg, merge(extra))) }
func (l *Logger) Warning(msg string, extra ...Fields) { pterm.Warning.Println(l.render(msg, merge(extra))) }
func (l *Logger) Error(msg string, extra ...Fields)   { pterm.Error.Println(l.render(msg, merge(extra))) }

func merge(extra []Fields) Fields {
	if len(extra) == 0 {
		return nil
	}
	out := make(Fields)
	for _, f := range extra {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
	pterm.EnableDebugMessages()
}

// Default is a process-wide Logger with no base fields, for call sites
// outside any particular channel's scope (e.g. manager-level events).
var Default = New(nil)
