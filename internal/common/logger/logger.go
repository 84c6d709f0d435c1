package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/garaad/community/internal/common/constants"
)

type Fields map[string]interface{}

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	CRITICAL
)

func (lv LogLevel) String() string {
	switch lv {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(lv))
	}
}

// callerDepth skips emit and the exported method that called it.
const callerDepth = 2

type Logger struct {
	mu      sync.RWMutex
	level   LogLevel
	service string
	out     *log.Logger
}

var (
	instance *Logger
	once     sync.Once
)

// GetInstance returns the process-wide logger. It writes to stderr at INFO
// until Initialize is called.
func GetInstance() *Logger {
	once.Do(func() {
		instance = &Logger{level: INFO, out: log.New(os.Stderr, "", log.LstdFlags)}
	})
	return instance
}

// New builds a logger writing to stdout and, when logDir is set, to a rotated
// app.log inside it.
func New(logDir, serviceName, level string) (*Logger, error) {
	l := &Logger{}
	if err := l.Initialize(logDir, serviceName, level); err != nil {
		return nil, err
	}
	return l, nil
}

func NewWithWriter(w io.Writer, serviceName, level string) *Logger {
	return &Logger{level: parseLevel(level), service: serviceName, out: log.New(w, "", 0)}
}

func (l *Logger) Initialize(logDir, serviceName, level string) error {
	sink, err := openSink(logDir)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.level = parseLevel(level)
	l.service = serviceName
	l.out = log.New(sink, "", log.LstdFlags)
	l.mu.Unlock()
	return nil
}

func openSink(logDir string) (io.Writer, error) {
	if logDir == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "app.log"),
		MaxSize:    constants.LoggerMaxSize,
		MaxBackups: constants.LoggerMaxBackups,
		MaxAge:     constants.LoggerMaxAge,
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, rotated), nil
}

func (l *Logger) Level() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// emit renders "[LEVEL] [service] [k=v ...] file:line msg". Fields are sorted
// by key and the context trace id, when present, always comes first.
func (l *Logger) emit(level LogLevel, ctx context.Context, fields Fields, msg string) {
	l.mu.RLock()
	threshold, service, out := l.level, l.service, l.out
	l.mu.RUnlock()

	if level < threshold {
		return
	}

	var b strings.Builder
	b.WriteString("[" + level.String() + "]")
	if service != "" {
		b.WriteString(" [" + service + "]")
	}
	if pairs := renderFields(ctx, fields); pairs != "" {
		b.WriteString(" [" + pairs + "]")
	}

	file, line := "unknown", 0
	if _, path, n, ok := runtime.Caller(callerDepth); ok {
		file, line = filepath.Base(path), n
	}
	fmt.Fprintf(&b, " %s:%d %s", file, line, msg)

	_ = out.Output(0, b.String())
}

func renderFields(ctx context.Context, fields Fields) string {
	parts := make([]string, 0, len(fields)+1)
	if ctx != nil {
		if traceID, ok := ctx.Value(constants.TraceIDKey).(string); ok && traceID != "" {
			parts = append(parts, "trace_id="+traceID)
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

func (l *Logger) Debug(msg string)    { l.emit(DEBUG, nil, nil, msg) }
func (l *Logger) Info(msg string)     { l.emit(INFO, nil, nil, msg) }
func (l *Logger) Warn(msg string)     { l.emit(WARNING, nil, nil, msg) }
func (l *Logger) Error(msg string)    { l.emit(ERROR, nil, nil, msg) }
func (l *Logger) Critical(msg string) { l.emit(CRITICAL, nil, nil, msg) }

func (l *Logger) Debugf(format string, args ...any) {
	l.emit(DEBUG, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.emit(INFO, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.emit(WARNING, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.emit(ERROR, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Criticalf(format string, args ...any) {
	l.emit(CRITICAL, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Fatal(msg string) {
	l.emit(CRITICAL, nil, nil, msg)
	os.Exit(1)
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.emit(CRITICAL, nil, nil, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// WithFields binds structured fields, and the trace id carried by ctx, to
// every line logged through the returned Entry.
func (l *Logger) WithFields(ctx context.Context, fields Fields) *Entry {
	return &Entry{logger: l, ctx: ctx, fields: fields}
}

type Entry struct {
	logger *Logger
	ctx    context.Context
	fields Fields
}

// With returns a copy of the entry with one more field.
func (e *Entry) With(key string, value any) *Entry {
	merged := make(Fields, len(e.fields)+1)
	for k, v := range e.fields {
		merged[k] = v
	}
	merged[key] = value
	return &Entry{logger: e.logger, ctx: e.ctx, fields: merged}
}

func (e *Entry) Debug(msg string)    { e.logger.emit(DEBUG, e.ctx, e.fields, msg) }
func (e *Entry) Info(msg string)     { e.logger.emit(INFO, e.ctx, e.fields, msg) }
func (e *Entry) Warn(msg string)     { e.logger.emit(WARNING, e.ctx, e.fields, msg) }
func (e *Entry) Error(msg string)    { e.logger.emit(ERROR, e.ctx, e.fields, msg) }
func (e *Entry) Critical(msg string) { e.logger.emit(CRITICAL, e.ctx, e.fields, msg) }

func (e *Entry) Debugf(format string, args ...any) {
	e.logger.emit(DEBUG, e.ctx, e.fields, fmt.Sprintf(format, args...))
}

func (e *Entry) Infof(format string, args ...any) {
	e.logger.emit(INFO, e.ctx, e.fields, fmt.Sprintf(format, args...))
}

func (e *Entry) Warnf(format string, args ...any) {
	e.logger.emit(WARNING, e.ctx, e.fields, fmt.Sprintf(format, args...))
}

func (e *Entry) Errorf(format string, args ...any) {
	e.logger.emit(ERROR, e.ctx, e.fields, fmt.Sprintf(format, args...))
}

func (e *Entry) Criticalf(format string, args ...any) {
	e.logger.emit(CRITICAL, e.ctx, e.fields, fmt.Sprintf(format, args...))
}

func parseLevel(value string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return DEBUG
	case "WARNING", "WARN":
		return WARNING
	case "ERROR":
		return ERROR
	case "CRITICAL", "FATAL":
		return CRITICAL
	default:
		return INFO
	}
}
