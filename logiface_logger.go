package asyncrt

import (
	"github.com/joeycumines/logiface"
)

// logifaceEvent adapts a LogEntry into a logiface.Event: the minimal
// shape logiface needs to route a log line through a caller-supplied
// EventFactory/Writer pair, per logiface's Event/UnimplementedEvent
// contract.
type logifaceEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	entry  LogEntry
	fields map[string]any
}

func (e *logifaceEvent) Level() logiface.Level { return e.level }

func (e *logifaceEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any, 4)
	}
	e.fields[key] = val
}

// logifaceEventFactory constructs logifaceEvent values for a pending
// LogEntry; set immediately before NewEvent is invoked by LogifaceLogger
// since logiface's factory contract takes only a level.
type logifaceEventFactory struct {
	pending LogEntry
}

func (f *logifaceEventFactory) NewEvent(level logiface.Level) *logifaceEvent {
	return &logifaceEvent{level: level, entry: f.pending}
}

// LogifaceLogger adapts this package's Logger interface onto a
// logiface.Writer[*logifaceEvent], letting callers route scheduler
// diagnostics through whatever sink logiface is already configured with
// (structured files, remote collectors, etc.) instead of the built-in
// DefaultLogger.
type LogifaceLogger struct {
	factory  *logifaceEventFactory
	writer   logiface.Writer[*logifaceEvent]
	minLevel LogLevel
}

// NewLogifaceLogger wraps writer, translating entries at or above
// minLevel into logiface events.
func NewLogifaceLogger(writer logiface.Writer[*logifaceEvent], minLevel LogLevel) *LogifaceLogger {
	return &LogifaceLogger{factory: &logifaceEventFactory{}, writer: writer, minLevel: minLevel}
}

func (l *LogifaceLogger) IsEnabled(level LogLevel) bool { return level >= l.minLevel }

func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// Log builds a logifaceEvent for entry via the factory and hands it to
// the configured Writer, the same NewEvent-then-Write sequence a
// logiface.Logger performs internally for each emitted line.
func (l *LogifaceLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	l.factory.pending = entry
	ev := l.factory.NewEvent(toLogifaceLevel(entry.Level))
	ev.AddField("category", entry.Category)
	if entry.Err != nil {
		ev.AddField("error", entry.Err.Error())
	}
	for k, v := range entry.Context {
		ev.AddField(k, v)
	}
	_ = l.writer.Write(ev)
}
