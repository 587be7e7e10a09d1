package geo

// Direction is the travel direction of a vehicle or passenger along a route
type Direction string

const (
	DirectionOutbound Direction = "OUTBOUND"
	DirectionInbound  Direction = "INBOUND"
)

// Opposite returns the reverse travel direction
func (d Direction) Opposite() Direction {
	if d == DirectionOutbound {
		return DirectionInbound
	}
	return DirectionOutbound
}

// Valid reports whether the direction is one of the two known values
func (d Direction) Valid() bool {
	return d == DirectionOutbound || d == DirectionInbound
}
