package region

import "github.com/google/uuid"

// ConnectionType tags the physical kind of a link between two cities.
type ConnectionType string

const (
	ConnHighway2Lane  ConnectionType = "highway_2_lane"
	ConnHighway4Lane  ConnectionType = "highway_4_lane"
	ConnHighway6Lane  ConnectionType = "highway_6_lane"
	ConnRegionalRail  ConnectionType = "regional_rail"
	ConnHighSpeedRail ConnectionType = "high_speed_rail"
	ConnCargoRail     ConnectionType = "cargo_rail"
	ConnFerry         ConnectionType = "ferry"
	ConnAirRoute      ConnectionType = "air_route"
)

// congestedThreshold is the usage percentage above which a connection counts
// as congested.
const congestedThreshold = 85.0

// Connection is a point-to-point link between two cities. Links are
// undirected for lookup and uniqueness purposes even though endpoints are
// stored as an ordered pair.
type Connection struct {
	ConnectionID      string         `json:"connectionId"`
	FromCityID        string         `json:"fromCityId"`
	ToCityID          string         `json:"toCityId"`
	Type              ConnectionType `json:"type"`
	Name              string         `json:"name"`
	Capacity          float64        `json:"capacity"`
	CurrentUsage      float64        `json:"currentUsage"`
	TravelTimeMinutes float64        `json:"travelTimeMinutes"`
	UpgradeCost       float64        `json:"upgradeCost"`
}

// NewConnection builds a connection with type-appropriate capacity and
// travel time defaults.
func NewConnection(fromCityID, toCityID string, t ConnectionType) *Connection {
	return &Connection{
		ConnectionID:      uuid.NewString(),
		FromCityID:        fromCityID,
		ToCityID:          toCityID,
		Type:              t,
		Capacity:          DefaultCapacity(t),
		TravelTimeMinutes: DefaultTravelTime(t),
	}
}

// UsagePercent is current usage relative to capacity, 0 when capacity is 0.
func (c *Connection) UsagePercent() float64 {
	if c.Capacity <= 0 {
		return 0
	}
	return c.CurrentUsage / c.Capacity * 100
}

// IsCongested reports whether usage exceeds the congestion threshold.
func (c *Connection) IsCongested() bool {
	return c.UsagePercent() > congestedThreshold
}

// Links reports whether the connection joins the two cities, in either
// direction.
func (c *Connection) Links(cityA, cityB string) bool {
	return (c.FromCityID == cityA && c.ToCityID == cityB) ||
		(c.FromCityID == cityB && c.ToCityID == cityA)
}

// Touches reports whether either endpoint is the given city.
func (c *Connection) Touches(cityID string) bool {
	return c.FromCityID == cityID || c.ToCityID == cityID
}

// DefaultCapacity returns units per hour for a connection type.
func DefaultCapacity(t ConnectionType) float64 {
	switch t {
	case ConnHighway2Lane:
		return 1000
	case ConnHighway4Lane:
		return 2500
	case ConnHighway6Lane:
		return 5000
	case ConnRegionalRail:
		return 2000
	case ConnHighSpeedRail:
		return 5000
	case ConnCargoRail:
		return 500
	case ConnFerry:
		return 300
	case ConnAirRoute:
		return 1000
	default:
		return 1000
	}
}

// DefaultTravelTime returns minutes of travel for a connection type.
func DefaultTravelTime(t ConnectionType) float64 {
	switch t {
	case ConnHighway2Lane:
		return 30
	case ConnHighway4Lane:
		return 25
	case ConnHighway6Lane:
		return 20
	case ConnRegionalRail:
		return 20
	case ConnHighSpeedRail:
		return 10
	case ConnCargoRail:
		return 45
	case ConnFerry:
		return 60
	case ConnAirRoute:
		return 30
	default:
		return 30
	}
}
