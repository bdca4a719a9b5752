package collab

import (
	"log"
	"os"
	"sync"
)

// Level is a logging severity, ordered least to most severe.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the thread-safe logging collaborator every core consumes.
// Modeled on the teacher's tagged log.Printf("[executor] ...") call sites,
// generalized into an injected collaborator per spec.md §9's note on
// replacing the global current_log_level with one.
type Logger struct {
	mu     sync.Mutex
	min    Level
	tag    string
	target *log.Logger
}

// NewLogger creates a Logger that writes to stderr, tagging every line with
// tag (e.g. "cpuscheduler", "rcu"), dropping anything below min.
func NewLogger(tag string, min Level) *Logger {
	return &Logger{
		min:    min,
		tag:    tag,
		target: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// With returns a Logger sharing this one's output and level but tagged
// differently — used to scope a sub-component's lines (e.g. a single NOCB
// worker) without constructing a fresh target writer.
func (l *Logger) With(tag string) *Logger {
	return &Logger{min: l.min, tag: tag, target: l.target}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target.Printf("[%s] %s: "+format, append([]interface{}{l.tag, level}, args...)...)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(Error, format, args...) }
