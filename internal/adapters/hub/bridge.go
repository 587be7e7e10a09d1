package hub

import (
	"github.com/andrescamacho/commuter-go/internal/domain/passenger"
)

const bridgeSource = "commuter-core"

// EventBridge publishes passenger lifecycle events onto the hub. It satisfies
// the event sinks of the demand generator, the reservoirs and the conductor so
// one bridge serves all three.
type EventBridge struct {
	hub *Hub
}

// NewEventBridge creates a bridge over the hub
func NewEventBridge(h *Hub) *EventBridge {
	return &EventBridge{hub: h}
}

// CommuterSpawned publishes commuter:spawned. Depot spawns land in the depot
// namespace, route spawns in the route namespace.
func (b *EventBridge) CommuterSpawned(ev passenger.SpawnedEvent) {
	ns := NamespaceRoute
	if ev.DepotID != "" {
		ns = NamespaceDepot
	}
	_ = b.hub.Publish(ns, b.hub.NewEnvelope(passenger.EventSpawned, bridgeSource, ev))
}

// PassengerBoarded publishes passenger:boarded in the route namespace
func (b *EventBridge) PassengerBoarded(ev passenger.BoardedEvent) {
	_ = b.hub.Publish(NamespaceRoute, b.hub.NewEnvelope(passenger.EventBoarded, bridgeSource, ev))
}

// PassengerAlighted publishes passenger:alighted in the route namespace
func (b *EventBridge) PassengerAlighted(ev passenger.AlightedEvent) {
	_ = b.hub.Publish(NamespaceRoute, b.hub.NewEnvelope(passenger.EventAlighted, bridgeSource, ev))
}

// PassengerExpired publishes passenger:expired in the route namespace
func (b *EventBridge) PassengerExpired(ev passenger.ExpiredEvent) {
	_ = b.hub.Publish(NamespaceRoute, b.hub.NewEnvelope(passenger.EventExpired, bridgeSource, ev))
}
