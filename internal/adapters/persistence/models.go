package persistence

import (
	"time"
)

// PassengerModel is the durable passenger lifecycle record, mirrored from the
// in-memory reservoirs.
type PassengerModel struct {
	ID              string  `gorm:"primaryKey"`
	OriginLat       float64 `gorm:"not null"`
	OriginLon       float64 `gorm:"not null"`
	DestinationLat  float64 `gorm:"not null"`
	DestinationLon  float64 `gorm:"not null"`
	RouteID         string  `gorm:"index;not null"`
	Direction       string  `gorm:"not null"`
	Kind            string  `gorm:"not null"`
	Priority        float64
	DepotID         string
	Status          string `gorm:"index;not null"`
	AssignedVehicle string
	SpawnTime       time.Time
	ExpiryTime      time.Time
	StatusChangedAt time.Time `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PassengerModel) TableName() string { return "passengers" }

// ContainerModel persists the daemon's container state for recovery and audit
type ContainerModel struct {
	ID            string `gorm:"primaryKey"`
	ContainerType string `gorm:"index;not null"`
	Status        string `gorm:"index;not null"`
	RestartCount  int
	Metadata      string // JSON
	StartedAt     *time.Time
	StoppedAt     *time.Time
	ExitReason    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ContainerModel) TableName() string { return "containers" }

// ContainerLogModel is one persisted container log line
type ContainerLogModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ContainerID string `gorm:"index;not null"`
	Level       string
	Message     string
	Metadata    string // JSON
	CreatedAt   time.Time `gorm:"index"`
}

func (ContainerLogModel) TableName() string { return "container_logs" }

// AllModels lists every model for migration
func AllModels() []interface{} {
	return []interface{}{
		&PassengerModel{},
		&ContainerModel{},
		&ContainerLogModel{},
	}
}
