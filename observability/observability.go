// Package observability provides the logging hooks used by verbose
// serialization. The hot path carries a NopLogger so diagnostics cost
// nothing when disabled.
package observability

import (
	"fmt"
	"io"
	"sync"
	"time"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type int64Field struct {
	key string
	val int64
}

func (f int64Field) Key() string        { return f.key }
func (f int64Field) Value() interface{} { return f.val }

type durationField struct {
	key string
	val time.Duration
}

func (f durationField) Key() string        { return f.key }
func (f durationField) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field                 { return stringField{key, value} }
func Int(key string, value int) Field                { return intField{key, value} }
func Int64(key string, value int64) Field            { return int64Field{key, value} }
func Duration(key string, value time.Duration) Field { return durationField{key, value} }
func Error(key string, err error) Field              { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// TextLogger writes one line per event to an io.Writer. Library code
// defaults to NopLogger; this is for tests and command-line consumers.
type TextLogger struct {
	mu   sync.Mutex
	out  io.Writer
	with []Field
}

func NewTextLogger(out io.Writer) *TextLogger { return &TextLogger{out: out} }

func (l *TextLogger) log(level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s", level, msg)
	for _, f := range l.with {
		fmt.Fprintf(l.out, " %s=%v", f.Key(), f.Value())
	}
	for _, f := range fields {
		fmt.Fprintf(l.out, " %s=%v", f.Key(), f.Value())
	}
	fmt.Fprintln(l.out)
}

func (l *TextLogger) Debug(msg string, fields ...Field) { l.log("DEBUG", msg, fields) }
func (l *TextLogger) Info(msg string, fields ...Field)  { l.log("INFO", msg, fields) }
func (l *TextLogger) Warn(msg string, fields ...Field)  { l.log("WARN", msg, fields) }
func (l *TextLogger) Error(msg string, fields ...Field) { l.log("ERROR", msg, fields) }

func (l *TextLogger) With(fields ...Field) Logger {
	child := &TextLogger{out: l.out}
	child.with = append(append([]Field{}, l.with...), fields...)
	return child
}
