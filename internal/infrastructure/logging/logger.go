package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	applog "github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/domain/container"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// Logger writes structured log lines in text or json format with level
// filtering.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  int
	format string
	clock  shared.Clock

	// static fields attached to every line
	fields map[string]interface{}
}

var _ applog.OperationLogger = (*Logger)(nil)

// New creates a logger writing to stdout
func New(level, format string, clock shared.Clock) *Logger {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	rank, ok := levelRank[strings.ToUpper(level)]
	if !ok {
		rank = levelRank["INFO"]
	}
	return &Logger{
		out:    os.Stdout,
		level:  rank,
		format: format,
		clock:  clock,
	}
}

// WithFields returns a logger attaching the fields to every line
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		out:    l.out,
		level:  l.level,
		format: l.format,
		clock:  l.clock,
		fields: merged,
	}
}

// SetOutput redirects the logger (tests)
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Log writes one line if the level passes the filter
func (l *Logger) Log(level, message string, metadata map[string]interface{}) {
	rank, ok := levelRank[strings.ToUpper(level)]
	if !ok {
		rank = levelRank["INFO"]
	}
	if rank < l.level {
		return
	}

	merged := make(map[string]interface{}, len(l.fields)+len(metadata))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}

	now := l.clock.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == "json" {
		line := map[string]interface{}{
			"ts":    now.Format(time.RFC3339Nano),
			"level": strings.ToUpper(level),
			"msg":   message,
		}
		for k, v := range merged {
			line[k] = v
		}
		if raw, err := json.Marshal(line); err == nil {
			fmt.Fprintln(l.out, string(raw))
		}
		return
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", now.Format("2006-01-02T15:04:05.000Z"), strings.ToUpper(level), message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, merged[k])
	}
	fmt.Fprintln(l.out, b.String())
}

// ContainerLogger tees container log lines to the process logger and the
// durable container log repository.
type ContainerLogger struct {
	containerID string
	base        applog.OperationLogger
	repo        container.LogRepository
	clock       shared.Clock
}

var _ applog.OperationLogger = (*ContainerLogger)(nil)

// NewContainerLogger creates a logger for one container
func NewContainerLogger(containerID string, base applog.OperationLogger, repo container.LogRepository, clock shared.Clock) *ContainerLogger {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ContainerLogger{containerID: containerID, base: base, repo: repo, clock: clock}
}

// Log writes to the process logger and appends to the container log table
func (c *ContainerLogger) Log(level, message string, metadata map[string]interface{}) {
	if c.base != nil {
		merged := map[string]interface{}{"container_id": c.containerID}
		for k, v := range metadata {
			merged[k] = v
		}
		c.base.Log(level, message, merged)
	}
	if c.repo != nil {
		_ = c.repo.Append(context.Background(), &container.LogEntry{
			ContainerID: c.containerID,
			Timestamp:   c.clock.Now(),
			Level:       strings.ToUpper(level),
			Message:     message,
			Metadata:    metadata,
		})
	}
}
