package vehicle

import "context"

// Repository is the authoritative source of vehicle records. Capacity always
// comes from here; no layer may substitute a hardcoded default.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Vehicle, error)
	ListByRoute(ctx context.Context, routeID string) ([]*Vehicle, error)
	ListAll(ctx context.Context) ([]*Vehicle, error)
	Save(ctx context.Context, v *Vehicle) error
}
