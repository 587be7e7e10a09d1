package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/commuter-go/internal/domain/container"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

var logStart = time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)

func TestTextFormatSortsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New("INFO", "text", shared.NewMockClock(logStart))
	l.SetOutput(&buf)

	l.Log("INFO", "boarding complete", map[string]interface{}{
		"vehicle_id": "veh-1",
		"boarded":    3,
	})

	line := buf.String()
	assert.Contains(t, line, "2026-08-24T08:00:00.000Z [INFO] boarding complete")
	assert.Contains(t, line, "boarded=3 vehicle_id=veh-1")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New("WARN", "text", shared.NewMockClock(logStart))
	l.SetOutput(&buf)

	l.Log("DEBUG", "noise", nil)
	l.Log("INFO", "more noise", nil)
	assert.Empty(t, buf.String())

	l.Log("ERROR", "real problem", nil)
	assert.Contains(t, buf.String(), "real problem")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("INFO", "json", shared.NewMockClock(logStart))
	l.SetOutput(&buf)

	l.Log("INFO", "tick", map[string]interface{}{"spawned": 4})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "tick", line["msg"])
	assert.Equal(t, float64(4), line["spawned"])
}

func TestWithFieldsAttachesToEveryLine(t *testing.T) {
	var buf bytes.Buffer
	l := New("INFO", "text", shared.NewMockClock(logStart))
	l.SetOutput(&buf)

	scoped := l.WithFields(map[string]interface{}{"route_id": "r1"})
	scoped.Log("INFO", "sweep", nil)
	assert.Contains(t, buf.String(), "route_id=r1")
}

type appendRecorder struct {
	entries []*container.LogEntry
}

func (r *appendRecorder) Append(_ context.Context, entry *container.LogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *appendRecorder) ListByContainer(context.Context, string, int) ([]*container.LogEntry, error) {
	return nil, nil
}

func (r *appendRecorder) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

func TestContainerLoggerTees(t *testing.T) {
	var buf bytes.Buffer
	base := New("INFO", "text", shared.NewMockClock(logStart))
	base.SetOutput(&buf)
	repo := &appendRecorder{}

	cl := NewContainerLogger("c1", base, repo, shared.NewMockClock(logStart))
	cl.Log("info", "tick done", map[string]interface{}{"expired": 2})

	assert.Contains(t, buf.String(), "container_id=c1")
	assert.Contains(t, buf.String(), "expired=2")

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, "c1", entry.ContainerID)
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "tick done", entry.Message)
	assert.Equal(t, logStart, entry.Timestamp)
}
