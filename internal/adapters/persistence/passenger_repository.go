package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// PassengerRepository is the gorm-backed passenger store. The in-memory
// reservoirs stay authoritative for WAITING passengers; this record exists
// for restart recovery and the admin query surface.
type PassengerRepository struct {
	db *gorm.DB
}

var _ passenger.Repository = (*PassengerRepository)(nil)

// NewPassengerRepository creates a passenger repository
func NewPassengerRepository(db *gorm.DB) *PassengerRepository {
	return &PassengerRepository{db: db}
}

func modelOf(p *passenger.Passenger, now time.Time) *PassengerModel {
	return &PassengerModel{
		ID:              p.ID,
		OriginLat:       p.Origin.Lat,
		OriginLon:       p.Origin.Lon,
		DestinationLat:  p.Destination.Lat,
		DestinationLon:  p.Destination.Lon,
		RouteID:         p.RouteID,
		Direction:       string(p.Direction),
		Kind:            string(p.Kind),
		Priority:        p.Priority,
		DepotID:         p.DepotID,
		Status:          string(p.Status),
		AssignedVehicle: p.AssignedVehicle,
		SpawnTime:       p.SpawnTime,
		ExpiryTime:      p.ExpiryTime,
		StatusChangedAt: now,
	}
}

func domainOf(m *PassengerModel) *passenger.Passenger {
	return &passenger.Passenger{
		ID:              m.ID,
		Origin:          shared.Coordinate{Lat: m.OriginLat, Lon: m.OriginLon},
		Destination:     shared.Coordinate{Lat: m.DestinationLat, Lon: m.DestinationLon},
		RouteID:         m.RouteID,
		Direction:       geo.Direction(m.Direction),
		Kind:            passenger.Kind(m.Kind),
		Priority:        m.Priority,
		DepotID:         m.DepotID,
		Status:          passenger.Status(m.Status),
		AssignedVehicle: m.AssignedVehicle,
		SpawnTime:       m.SpawnTime,
		ExpiryTime:      m.ExpiryTime,
	}
}

// Insert writes a freshly spawned passenger
func (r *PassengerRepository) Insert(ctx context.Context, p *passenger.Passenger) error {
	return r.db.WithContext(ctx).Create(modelOf(p, p.SpawnTime)).Error
}

// Mark updates a passenger's status and the status change timestamp
func (r *PassengerRepository) Mark(ctx context.Context, id string, status passenger.Status, ts time.Time) error {
	res := r.db.WithContext(ctx).Model(&PassengerModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            string(status),
			"status_changed_at": ts,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.NewNotFoundError("passenger", id)
	}
	return nil
}

// DeleteExpired garbage-collects terminal records whose status change is
// older than the cutoff.
func (r *PassengerRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(passenger.StatusExpired), string(passenger.StatusAlighted)}).
		Where("status_changed_at < ?", olderThan).
		Delete(&PassengerModel{})
	return res.RowsAffected, res.Error
}

// Query returns passengers matching the filter, newest spawn first
func (r *PassengerRepository) Query(ctx context.Context, filter passenger.QueryFilter) ([]*passenger.Passenger, error) {
	q := r.db.WithContext(ctx).Model(&PassengerModel{})
	if filter.RouteID != "" {
		q = q.Where("route_id = ?", filter.RouteID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.BBox != nil {
		q = q.Where("origin_lat BETWEEN ? AND ?", filter.BBox.MinLat, filter.BBox.MaxLat).
			Where("origin_lon BETWEEN ? AND ?", filter.BBox.MinLon, filter.BBox.MaxLon)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var models []*PassengerModel
	if err := q.Order("spawn_time DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*passenger.Passenger, len(models))
	for i, m := range models {
		out[i] = domainOf(m)
	}
	return out, nil
}

// ListWaiting returns every WAITING record for orphan detection
func (r *PassengerRepository) ListWaiting(ctx context.Context) ([]*passenger.Passenger, error) {
	var models []*PassengerModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(passenger.StatusWaiting)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*passenger.Passenger, len(models))
	for i, m := range models {
		out[i] = domainOf(m)
	}
	return out, nil
}
