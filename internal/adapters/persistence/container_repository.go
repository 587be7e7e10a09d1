package persistence

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrescamacho/commuter-go/internal/domain/container"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// ContainerRepository persists container records for recovery and audit
type ContainerRepository struct {
	db *gorm.DB
}

var _ container.Repository = (*ContainerRepository)(nil)

// NewContainerRepository creates a container repository
func NewContainerRepository(db *gorm.DB) *ContainerRepository {
	return &ContainerRepository{db: db}
}

func containerModelOf(rec *container.Record) *ContainerModel {
	meta := ""
	if len(rec.Metadata) > 0 {
		if raw, err := json.Marshal(rec.Metadata); err == nil {
			meta = string(raw)
		}
	}
	return &ContainerModel{
		ID:            rec.ID,
		ContainerType: string(rec.ContainerType),
		Status:        string(rec.Status),
		RestartCount:  rec.RestartCount,
		Metadata:      meta,
		StartedAt:     rec.StartedAt,
		StoppedAt:     rec.StoppedAt,
		ExitReason:    rec.ExitReason,
	}
}

func containerRecordOf(m *ContainerModel) *container.Record {
	var meta map[string]interface{}
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}
	return &container.Record{
		ID:            m.ID,
		ContainerType: container.Type(m.ContainerType),
		Status:        container.Status(m.Status),
		RestartCount:  m.RestartCount,
		Metadata:      meta,
		StartedAt:     m.StartedAt,
		StoppedAt:     m.StoppedAt,
		ExitReason:    m.ExitReason,
	}
}

// Save upserts a container record by id
func (r *ContainerRepository) Save(ctx context.Context, rec *container.Record) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"container_type", "status", "restart_count", "metadata",
				"started_at", "stopped_at", "exit_reason", "updated_at",
			}),
		}).
		Create(containerModelOf(rec)).Error
}

// FindByID returns a container record or a NotFoundError
func (r *ContainerRepository) FindByID(ctx context.Context, id string) (*container.Record, error) {
	var m ContainerModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewNotFoundError("container", id)
	}
	if err != nil {
		return nil, err
	}
	return containerRecordOf(&m), nil
}

// ListByStatus returns container records in the given status
func (r *ContainerRepository) ListByStatus(ctx context.Context, status container.Status) ([]*container.Record, error) {
	var models []*ContainerModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*container.Record, len(models))
	for i, m := range models {
		out[i] = containerRecordOf(m)
	}
	return out, nil
}

// MarkInterrupted flags every RUNNING record as INTERRUPTED. The daemon calls
// this on startup so containers from a crashed process are accounted for.
func (r *ContainerRepository) MarkInterrupted(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&ContainerModel{}).
		Where("status IN ?", []string{string(container.StatusRunning), string(container.StatusStopping)}).
		Update("status", string(container.StatusInterrupted))
	return res.RowsAffected, res.Error
}

// ContainerLogRepository persists container log lines
type ContainerLogRepository struct {
	db *gorm.DB
}

var _ container.LogRepository = (*ContainerLogRepository)(nil)

// NewContainerLogRepository creates a container log repository
func NewContainerLogRepository(db *gorm.DB) *ContainerLogRepository {
	return &ContainerLogRepository{db: db}
}

// Append writes one log line
func (r *ContainerLogRepository) Append(ctx context.Context, entry *container.LogEntry) error {
	meta := ""
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			meta = string(raw)
		}
	}
	return r.db.WithContext(ctx).Create(&ContainerLogModel{
		ContainerID: entry.ContainerID,
		Level:       entry.Level,
		Message:     entry.Message,
		Metadata:    meta,
		CreatedAt:   entry.Timestamp,
	}).Error
}

// ListByContainer returns the newest log lines for a container
func (r *ContainerLogRepository) ListByContainer(ctx context.Context, containerID string, limit int) ([]*container.LogEntry, error) {
	q := r.db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []*ContainerLogModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*container.LogEntry, len(models))
	for i, m := range models {
		var meta map[string]interface{}
		if m.Metadata != "" {
			_ = json.Unmarshal([]byte(m.Metadata), &meta)
		}
		out[i] = &container.LogEntry{
			ContainerID: m.ContainerID,
			Timestamp:   m.CreatedAt,
			Level:       m.Level,
			Message:     m.Message,
			Metadata:    meta,
		}
	}
	return out, nil
}

// DeleteOlderThan trims log lines older than the cutoff
func (r *ContainerLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&ContainerLogModel{})
	return res.RowsAffected, res.Error
}
