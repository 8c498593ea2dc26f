// Package log provides structured logging for keystone.
//
// Nothing is written until Init or InitWithWriter installs a logger, which
// the CLI does for --debug (or KEYSTONE_DEBUG). Every entry is also
// published on a broker so tests and tools can follow the log.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/zjrosen/keystone/internal/pubsub"
	"github.com/zjrosen/keystone/internal/registry"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Category groups related log messages.
type Category string

const (
	CatRegistry Category = "registry" // registry lifecycle events
	CatCatalog  Category = "catalog"  // catalog loading and reloads
	CatConfig   Category = "config"
	CatWatcher  Category = "watch"
	CatCache    Category = "cache"
	CatTrace    Category = "trace" // tracing provider setup
	CatCLI      Category = "cli"
)

// Field is one key=value pair of an entry.
type Field struct {
	Key   string
	Value any
}

// Entry is one log record.
type Entry struct {
	Time     time.Time
	Level    Level
	Category Category
	Message  string
	Fields   []Field
}

// String renders the entry as a single line without a trailing newline:
//
//	2025-12-06T10:45:00 [ERROR] [catalog] message key=value key2=value2
func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", e.Time.Format("2006-01-02T15:04:05"), e.Level, e.Category, e.Message)
	for _, f := range e.Fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

// Value returns the value of the first field named key.
func (e Entry) Value(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// fieldsOf pairs up alternating keys and values. A trailing key without a
// value is kept with the value "<missing>".
func fieldsOf(kv []any) []Field {
	if len(kv) == 0 {
		return nil
	}
	fields := make([]Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		f := Field{Key: fmt.Sprint(kv[i]), Value: "<missing>"}
		if i+1 < len(kv) {
			f.Value = kv[i+1]
		}
		fields = append(fields, f)
	}
	return fields
}

// Logger writes entries at or above its minimum level.
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	minLevel Level
	broker   *pubsub.Broker[Entry]
}

func newLogger(w io.Writer) *Logger {
	return &Logger{
		writer:   w,
		minLevel: LevelDebug,
		broker:   pubsub.NewBroker[Entry](),
	}
}

func (l *Logger) write(e Entry) {
	l.mu.Lock()
	if e.Level < l.minLevel {
		l.mu.Unlock()
		return
	}
	_, _ = io.WriteString(l.writer, e.String()+"\n")
	l.mu.Unlock()

	l.broker.Publish(pubsub.LoggedEvent, e)
}

var (
	mu      sync.RWMutex
	current *Logger
)

func install(l *Logger) {
	mu.Lock()
	previous := current
	current = l
	mu.Unlock()
	if previous != nil {
		previous.broker.Close()
	}
}

func active() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init installs a logger appending to the file at path. The returned
// function uninstalls it and closes the file.
func Init(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is user-controlled debug log path
	if err != nil {
		return nil, errors.Wrap(err, "open log file")
	}
	l := newLogger(f)
	install(l)
	return func() {
		mu.Lock()
		if current == l {
			current = nil
		}
		mu.Unlock()
		l.broker.Close()
		_ = f.Close()
	}, nil
}

// InitWithWriter installs a logger writing to w.
// Used by commands that log to stderr and by tests.
func InitWithWriter(w io.Writer) {
	install(newLogger(w))
}

// SetMinLevel sets the minimum level of the installed logger.
func SetMinLevel(level Level) {
	if l := active(); l != nil {
		l.mu.Lock()
		l.minLevel = level
		l.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	logAt(LevelDebug, cat, msg, fields)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	logAt(LevelInfo, cat, msg, fields)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	logAt(LevelWarn, cat, msg, fields)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	logAt(LevelError, cat, msg, fields)
}

// ErrorErr logs err at error level under the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	value := "<nil>"
	if err != nil {
		value = err.Error()
	}
	logAt(LevelError, cat, msg, append(fields, "error", value))
}

func logAt(level Level, cat Category, msg string, kv []any) {
	l := active()
	if l == nil {
		return
	}
	l.write(Entry{
		Time:     time.Now(),
		Level:    level,
		Category: cat,
		Message:  msg,
		Fields:   fieldsOf(kv),
	})
}

// Subscribe returns a channel of entries written after the call. It is
// closed when ctx is cancelled or the logger is replaced. Returns nil when
// no logger is installed.
func Subscribe(ctx context.Context) <-chan pubsub.Event[Entry] {
	l := active()
	if l == nil {
		return nil
	}
	return l.broker.Subscribe(ctx)
}

// Forward writes a log line for every registry event received on events
// until ctx is cancelled or the channel is closed. Rejections log at warn
// level, everything else at debug.
func Forward(ctx context.Context, events <-chan pubsub.Event[registry.Event]) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logRegistryEvent(event.Payload)
		}
	}
}

func logRegistryEvent(e registry.Event) {
	switch e.Kind {
	case registry.EventRejected:
		Warn(CatRegistry, "registration rejected", "registry", e.Registry, "key", e.Key, "error", e.Err)
	case registry.EventFrozen:
		Info(CatRegistry, "registry frozen", "registry", e.Registry, "size", e.Size, "orphaned", e.Orphaned)
	default:
		Debug(CatRegistry, "registered", "registry", e.Registry, "key", e.Key, "size", e.Size)
	}
}
