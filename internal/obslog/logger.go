// Package obslog provides the runtime's ambient structured logger: text
// output for local development, JSON when running under Kubernetes (or
// when explicitly configured), a debug gate, and a WithComponent decorator
// so every subsystem tags its own log lines.
package obslog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Logger is the minimal structured logging contract every runtime package
// depends on.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WithComponent(component string) Logger
}

// NoOp discards everything; used as the default when no logger is wired.
type NoOp struct{}

func (NoOp) Info(string, map[string]interface{})                                  {}
func (NoOp) Warn(string, map[string]interface{})                                  {}
func (NoOp) Error(string, map[string]interface{})                                 {}
func (NoOp) Debug(string, map[string]interface{})                                 {}
func (NoOp) InfoWithContext(context.Context, string, map[string]interface{})      {}
func (NoOp) ErrorWithContext(context.Context, string, map[string]interface{})     {}
func (n NoOp) WithComponent(string) Logger                                        { return n }

// runtimeLogger is the production implementation.
type runtimeLogger struct {
	mu          sync.Mutex
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      io.Writer
}

// New creates a logger for serviceName. format is "text" or "json"; an
// empty format auto-detects JSON under Kubernetes (KUBERNETES_SERVICE_HOST
// set) and text otherwise, the same auto-detection the teacher's
// TelemetryLogger performs.
func New(serviceName, level, format string) Logger {
	if level == "" {
		if env := os.Getenv("ARGO_LOG_LEVEL"); env != "" {
			level = env
		} else {
			level = "info"
		}
	}
	debug := strings.EqualFold(level, "debug") || os.Getenv("ARGO_DEBUG") == "true"

	if format == "" {
		format = "text"
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			format = "json"
		}
		if env := os.Getenv("ARGO_LOG_FORMAT"); env != "" {
			format = env
		}
	}

	return &runtimeLogger{
		level:       strings.ToLower(level),
		debug:       debug,
		serviceName: serviceName,
		component:   "runtime",
		format:      format,
		output:      os.Stdout,
	}
}

func (l *runtimeLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

func (l *runtimeLogger) Info(msg string, fields map[string]interface{}) {
	l.logEvent("INFO", msg, fields, nil)
}

func (l *runtimeLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logEvent("INFO", msg, fields, ctx)
}

func (l *runtimeLogger) Warn(msg string, fields map[string]interface{}) {
	l.logEvent("WARN", msg, fields, nil)
}

func (l *runtimeLogger) Error(msg string, fields map[string]interface{}) {
	l.logEvent("ERROR", msg, fields, nil)
}

func (l *runtimeLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logEvent("ERROR", msg, fields, ctx)
}

func (l *runtimeLogger) Debug(msg string, fields map[string]interface{}) {
	if l.debug {
		l.logEvent("DEBUG", msg, fields, nil)
	}
}

func (l *runtimeLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format(time.RFC3339)

	if l.format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   l.serviceName,
			"component": l.component,
			"message":   msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := marshalJSON(entry); err == nil {
			fmt.Fprintln(l.output, string(data))
		}
		return
	}

	var fieldStr strings.Builder
	if len(fields) > 0 {
		fieldStr.WriteString(" ")
		for k, v := range fields {
			fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
		}
	}
	fmt.Fprintf(l.output, "%s [%s] [%s/%s] %s%s\n",
		timestamp, level, l.serviceName, l.component, msg, fieldStr.String())
}
