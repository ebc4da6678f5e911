package region

import "time"

// EventType classifies a regional event.
type EventType string

const (
	EventCityJoined           EventType = "city_joined"
	EventCityLeft             EventType = "city_left"
	EventConnectionBuilt      EventType = "connection_built"
	EventConnectionUpgraded   EventType = "connection_upgraded"
	EventMilestoneReached     EventType = "milestone_reached"
	EventTradeAgreementSigned EventType = "trade_agreement_signed"
	EventServiceShared        EventType = "service_shared"
	EventDisasterOccurred     EventType = "disaster_occurred"
	EventLeaderboardChanged   EventType = "leaderboard_changed"
	EventRegionalGoalReached  EventType = "regional_goal_reached"
)

// maxEvents is how many events a region retains, oldest dropped first.
const maxEvents = 100

// Event is one entry in a region's news feed. Regions keep the most recent
// 100, insertion-ordered with the newest first.
type Event struct {
	EventID      string    `json:"eventId"`
	Type         EventType `json:"type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	SourceCityID string    `json:"sourceCityId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
