package container

import (
	"context"
	"time"
)

// Record is the persisted view of a container for daemon recovery
type Record struct {
	ID            string
	ContainerType Type
	Status        Status
	RestartCount  int
	Metadata      map[string]interface{}
	StartedAt     *time.Time
	StoppedAt     *time.Time
	ExitReason    string
}

// Repository persists container state so an operator can audit what the
// daemon was running and the daemon can mark interrupted work on restart.
type Repository interface {
	Save(ctx context.Context, rec *Record) error
	FindByID(ctx context.Context, id string) (*Record, error)
	ListByStatus(ctx context.Context, status Status) ([]*Record, error)
	MarkInterrupted(ctx context.Context) (int64, error)
}

// LogEntry is one persisted container log line
type LogEntry struct {
	ContainerID string
	Timestamp   time.Time
	Level       string
	Message     string
	Metadata    map[string]interface{}
}

// LogRepository persists container log lines for the admin surface
type LogRepository interface {
	Append(ctx context.Context, entry *LogEntry) error
	ListByContainer(ctx context.Context, containerID string, limit int) ([]*LogEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
