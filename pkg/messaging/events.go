package messaging

import (
	"fmt"
	"time"
)

// Subjects carry one region's traffic each, keyed by region id.

// RegionEventsSubject is where regional events (city joined, connection
// built, milestones) are broadcast.
func RegionEventsSubject(regionID string) string {
	return fmt.Sprintf("region.%s.events", regionID)
}

// CityUpdatesSubject is where city snapshot upserts are announced.
func CityUpdatesSubject(regionID string) string {
	return fmt.Sprintf("region.%s.cities", regionID)
}

// RegionEventMessage is the wire payload for a broadcast regional event.
type RegionEventMessage struct {
	RegionID     string    `json:"regionId"`
	EventID      string    `json:"eventId"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	SourceCityID string    `json:"sourceCityId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// CityUpdateMessage announces that a city pushed a fresh snapshot. Peers use
// it as a hint only; the snapshot itself travels over the sync transport.
type CityUpdateMessage struct {
	RegionID string    `json:"regionId"`
	CityID   string    `json:"cityId"`
	CityName string    `json:"cityName"`
	SyncedAt time.Time `json:"syncedAt"`
}
