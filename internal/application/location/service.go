package location

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/andrescamacho/commuter-go/internal/application/geocache"
	"github.com/andrescamacho/commuter-go/internal/domain/geo"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// ContextRequest asks for point awareness at one position. Transition
// detection requires an EntityID to key the previous containing set.
type ContextRequest struct {
	Position          shared.Coordinate
	EntityID          string
	DetectTransitions bool
	IncludeNearby     bool
	NearbyRadiusM     float64
}

// Context is the unified answer: containment, transitions and proximity
type Context struct {
	ContainingGeofenceIDs []string
	EnterEvents           []string
	ExitEvents            []string

	NearestStop  *NearbyPoint
	NearestPOI   *NearbyPoint
	NearestPlace *NearbyPoint

	NearbyStops []NearbyPoint
	NearbyPOIs  []NearbyPoint
}

// defaultNearbyRadiusMeters applies when a nearby query gives no radius
const defaultNearbyRadiusMeters = 500.0

// Service is the unified point-awareness engine. The read path is lock-free:
// queries load an immutable index from an atomic pointer. Mutations rebuild
// the index under an exclusive lock and swap it in.
type Service struct {
	cache *geocache.Cache

	writeMu sync.Mutex
	idx     atomic.Pointer[index]

	// previous containing set per entity, for enter/exit derivation
	prevMu sync.Mutex
	prev   map[string]map[string]struct{}
}

// New creates a location service with an empty index. Call RefreshFromCache
// to populate it.
func New(cache *geocache.Cache) *Service {
	s := &Service{
		cache: cache,
		prev:  make(map[string]map[string]struct{}),
	}
	s.idx.Store(&index{
		byID:   map[string]*geo.Geofence{},
		points: newPointIndex(nil),
	})
	return s
}

// RefreshFromCache rebuilds the whole index from the current cache snapshot.
// Depots double as stops for nearest-stop queries.
func (s *Service) RefreshFromCache() {
	snap := s.cache.Snapshot()

	var points []indexedPoint
	for _, d := range snap.Depots {
		points = append(points, indexedPoint{id: d.ID, name: d.Name, kind: PointStop, location: d.Location})
	}
	for _, p := range snap.POIs {
		points = append(points, indexedPoint{id: p.ID, name: p.Type, kind: PointPOI, location: p.Location})
	}
	for _, p := range snap.Places {
		points = append(points, indexedPoint{id: p.ID, name: p.Name, kind: PointPlace, location: p.Location})
	}

	fences := make([]*geo.Geofence, len(snap.Geofences))
	copy(fences, snap.Geofences)
	byID := make(map[string]*geo.Geofence, len(fences))
	for _, g := range fences {
		byID[g.ID] = g
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.idx.Store(&index{
		geofences: fences,
		byID:      byID,
		points:    newPointIndex(points),
	})
}

// AddGeofence inserts a geofence at runtime
func (s *Service) AddGeofence(g *geo.Geofence) error {
	if g == nil || g.ID == "" {
		return shared.NewValidationError("geofence", "missing id")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old := s.idx.Load()
	if _, exists := old.byID[g.ID]; exists {
		return shared.NewValidationError("geofence", "duplicate id "+g.ID)
	}
	s.swapGeofences(append(s.copyGeofences(old), g), old)
	return nil
}

// RemoveGeofence deletes a geofence by id
func (s *Service) RemoveGeofence(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old := s.idx.Load()
	if _, exists := old.byID[id]; !exists {
		return shared.NewNotFoundError("geofence", id)
	}
	fences := make([]*geo.Geofence, 0, len(old.geofences)-1)
	for _, g := range old.geofences {
		if g.ID != id {
			fences = append(fences, g)
		}
	}
	s.swapGeofences(fences, old)
	return nil
}

// UpdateGeofence replaces a geofence in place
func (s *Service) UpdateGeofence(g *geo.Geofence) error {
	if g == nil || g.ID == "" {
		return shared.NewValidationError("geofence", "missing id")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old := s.idx.Load()
	if _, exists := old.byID[g.ID]; !exists {
		return shared.NewNotFoundError("geofence", g.ID)
	}
	fences := s.copyGeofences(old)
	for i, existing := range fences {
		if existing.ID == g.ID {
			fences[i] = g
			break
		}
	}
	s.swapGeofences(fences, old)
	return nil
}

// copyGeofences and swapGeofences run under writeMu only

func (s *Service) copyGeofences(old *index) []*geo.Geofence {
	fences := make([]*geo.Geofence, len(old.geofences))
	copy(fences, old.geofences)
	return fences
}

func (s *Service) swapGeofences(fences []*geo.Geofence, old *index) {
	byID := make(map[string]*geo.Geofence, len(fences))
	for _, g := range fences {
		byID[g.ID] = g
	}
	s.idx.Store(&index{
		geofences: fences,
		byID:      byID,
		points:    old.points,
	})
}

// GetGeofence returns a geofence by id
func (s *Service) GetGeofence(id string) (*geo.Geofence, error) {
	if g, ok := s.idx.Load().byID[id]; ok {
		return g, nil
	}
	return nil, shared.NewNotFoundError("geofence", id)
}

// GetLocationContext evaluates containment, transitions and proximity for a
// position in one pass over the current index.
func (s *Service) GetLocationContext(req ContextRequest) *Context {
	ix := s.idx.Load()

	containing := ix.containing(req.Position)
	out := &Context{ContainingGeofenceIDs: containing}

	if req.DetectTransitions && req.EntityID != "" {
		out.EnterEvents, out.ExitEvents = s.diffTransitions(req.EntityID, containing)
	}

	if req.IncludeNearby {
		radius := req.NearbyRadiusM
		if radius <= 0 {
			radius = defaultNearbyRadiusMeters
		}
		if p, ok := ix.points.nearest(req.Position, PointStop); ok {
			out.NearestStop = &p
		}
		if p, ok := ix.points.nearest(req.Position, PointPOI); ok {
			out.NearestPOI = &p
		}
		if p, ok := ix.points.nearest(req.Position, PointPlace); ok {
			out.NearestPlace = &p
		}
		out.NearbyStops = ix.points.within(req.Position, radius, PointStop)
		out.NearbyPOIs = ix.points.within(req.Position, radius, PointPOI)
	}

	return out
}

// diffTransitions derives enter/exit events strictly by set difference
// against the previous observation for the entity. First observation enters
// everything currently containing.
func (s *Service) diffTransitions(entityID string, containing []string) (enters, exits []string) {
	current := make(map[string]struct{}, len(containing))
	for _, id := range containing {
		current[id] = struct{}{}
	}

	s.prevMu.Lock()
	defer s.prevMu.Unlock()

	previous := s.prev[entityID]
	for _, id := range containing {
		if _, was := previous[id]; !was {
			enters = append(enters, id)
		}
	}
	for id := range previous {
		if _, still := current[id]; !still {
			exits = append(exits, id)
		}
	}
	s.prev[entityID] = current
	sort.Strings(exits)
	return enters, exits
}

// ForgetEntity drops the transition state for an entity (vehicle retired)
func (s *Service) ForgetEntity(entityID string) {
	s.prevMu.Lock()
	defer s.prevMu.Unlock()
	delete(s.prev, entityID)
}

// DepotAt returns the depot id guarding the position when it lies inside a
// depot-type geofence. The conductor uses this for its at-depot decision.
func (s *Service) DepotAt(p shared.Coordinate) (string, bool) {
	ix := s.idx.Load()
	for _, g := range ix.geofences {
		if g.Type == geo.GeofenceTypeDepot && g.Contains(p) {
			if g.DepotID != "" {
				return g.DepotID, true
			}
			return g.ID, true
		}
	}
	return "", false
}
