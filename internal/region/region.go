package region

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxCities bounds region membership unless the creator asks for more.
const DefaultMaxCities = 4

// Region groups multiple cities into one shared economy. It exclusively owns
// its city, connection, and event collections; all cross-component access
// goes through its methods. The aggregate itself is not safe for concurrent
// use: callers serialize access (the sync orchestrator holds one mutex, the
// server store serializes read-modify-write per region).
type Region struct {
	RegionID     string `json:"regionId"`
	RegionName   string `json:"regionName"`
	RegionCode   string `json:"regionCode"`
	HostPlayerID string `json:"hostPlayerId"`
	MaxCities    int    `json:"maxCities"`

	Cities      []*City       `json:"cities"`
	Connections []*Connection `json:"connections"`
	Events      []Event       `json:"events"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// New creates an empty region with a generated id and join code.
func New(name string, maxCities int) *Region {
	if maxCities <= 0 {
		maxCities = DefaultMaxCities
	}
	now := time.Now().UTC()
	return &Region{
		RegionID:     uuid.NewString(),
		RegionName:   name,
		RegionCode:   GenerateCode(),
		MaxCities:    maxCities,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// GenerateCode returns a short shareable join code, e.g. "METRO-7X4K" style
// "XXXX-XXXX" from uppercase letters and digits.
func GenerateCode() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 9)
	for i := range buf {
		if i == 4 {
			buf[i] = '-'
			continue
		}
		buf[i] = chars[rand.Intn(len(chars))]
	}
	return string(buf)
}

// AddCity appends a city. It fails without mutating when the city is nil or
// has no id, the region is full, or the id is already present.
func (r *Region) AddCity(city *City) bool {
	if city == nil || city.CityID == "" {
		return false
	}
	if len(r.Cities) >= r.MaxCities {
		return false
	}
	if r.GetCity(city.CityID) != nil {
		return false
	}

	r.Cities = append(r.Cities, city)
	r.LastActivity = time.Now().UTC()

	r.AddEvent(Event{
		Type:         EventCityJoined,
		Title:        fmt.Sprintf("%s joined the region!", city.CityName),
		Description:  fmt.Sprintf("%s's city has joined %s.", city.PlayerName, r.RegionName),
		SourceCityID: city.CityID,
	})
	return true
}

// RemoveCity drops a city and every connection touching it, in either
// direction.
func (r *Region) RemoveCity(cityID string) bool {
	if cityID == "" {
		return false
	}

	var removed *City
	for i, c := range r.Cities {
		if c.CityID == cityID {
			removed = c
			r.Cities = append(r.Cities[:i], r.Cities[i+1:]...)
			break
		}
	}
	if removed == nil {
		return false
	}

	kept := r.Connections[:0]
	for _, conn := range r.Connections {
		if !conn.Touches(cityID) {
			kept = append(kept, conn)
		}
	}
	r.Connections = kept

	r.AddEvent(Event{
		Type:         EventCityLeft,
		Title:        fmt.Sprintf("%s left the region", removed.CityName),
		Description:  fmt.Sprintf("%s's city has left %s.", removed.PlayerName, r.RegionName),
		SourceCityID: cityID,
	})
	r.LastActivity = time.Now().UTC()
	return true
}

// UpdateCity replaces the city with the same id, or appends it when absent.
// Nil or id-less input is a no-op.
func (r *Region) UpdateCity(city *City) {
	if city == nil || city.CityID == "" {
		return
	}
	for i, c := range r.Cities {
		if c.CityID == city.CityID {
			r.Cities[i] = city
			r.LastActivity = time.Now().UTC()
			return
		}
	}
	r.Cities = append(r.Cities, city)
	r.LastActivity = time.Now().UTC()
}

// ReplaceCities swaps the whole membership list for the pulled set. Snapshots
// are full-replacement values, so no per-field merging happens.
func (r *Region) ReplaceCities(cities []*City) {
	r.Cities = cities
	r.LastActivity = time.Now().UTC()
}

// ReplaceConnections swaps the connection list for the pulled set.
func (r *Region) ReplaceConnections(conns []*Connection) {
	r.Connections = conns
}

// GetCity looks a city up by id, nil when absent or the id is empty.
func (r *Region) GetCity(cityID string) *City {
	if cityID == "" {
		return nil
	}
	for _, c := range r.Cities {
		if c.CityID == cityID {
			return c
		}
	}
	return nil
}

// AddConnection appends a connection. Both endpoints must exist in the
// region and no connection may already join the pair in either direction.
func (r *Region) AddConnection(conn *Connection) bool {
	if conn == nil || conn.FromCityID == "" || conn.ToCityID == "" {
		return false
	}
	if r.GetCity(conn.FromCityID) == nil || r.GetCity(conn.ToCityID) == nil {
		return false
	}
	if r.GetConnection(conn.FromCityID, conn.ToCityID) != nil {
		return false
	}

	r.Connections = append(r.Connections, conn)
	r.LastActivity = time.Now().UTC()

	from := r.GetCity(conn.FromCityID)
	to := r.GetCity(conn.ToCityID)
	r.AddEvent(Event{
		Type:         EventConnectionBuilt,
		Title:        fmt.Sprintf("New %s connection!", conn.Type),
		Description:  fmt.Sprintf("A new connection was built between %s and %s.", from.CityName, to.CityName),
		SourceCityID: conn.FromCityID,
	})
	return true
}

// GetConnection finds the connection joining two cities regardless of
// direction, nil when none exists.
func (r *Region) GetConnection(cityA, cityB string) *Connection {
	if cityA == "" || cityB == "" {
		return nil
	}
	for _, c := range r.Connections {
		if c.Links(cityA, cityB) {
			return c
		}
	}
	return nil
}

// AddEvent stamps and prepends an event, truncating the log to the newest
// 100 entries.
func (r *Region) AddEvent(evt Event) {
	evt.EventID = uuid.NewString()
	evt.Timestamp = time.Now().UTC()

	r.Events = append([]Event{evt}, r.Events...)
	if len(r.Events) > maxEvents {
		r.Events = r.Events[:maxEvents]
	}
}

// RecentEvents returns up to n events, newest first.
func (r *Region) RecentEvents(n int) []Event {
	if n > len(r.Events) {
		n = len(r.Events)
	}
	out := make([]Event, n)
	copy(out, r.Events[:n])
	return out
}

// TotalPopulation sums population across all cities.
func (r *Region) TotalPopulation() int {
	total := 0
	for _, c := range r.Cities {
		total += c.Population
	}
	return total
}

// TotalGDP sums the GDP estimates across all cities.
func (r *Region) TotalGDP() float64 {
	total := 0.0
	for _, c := range r.Cities {
		total += c.GDPEstimate
	}
	return total
}

// OnlineCities counts cities whose player is currently online.
func (r *Region) OnlineCities() int {
	n := 0
	for _, c := range r.Cities {
		if c.IsOnline {
			n++
		}
	}
	return n
}

// AverageHappiness is the mean city happiness, 0 for an empty region.
func (r *Region) AverageHappiness() float64 {
	if len(r.Cities) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range r.Cities {
		total += c.Happiness
	}
	return total / float64(len(r.Cities))
}
