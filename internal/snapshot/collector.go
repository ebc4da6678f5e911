// Package snapshot builds the local city's sync snapshot from whatever
// metric source the host can provide. Sources expose metrics by name;
// anything a source cannot answer falls back to a typed default, and quality
// metrics are clamped to their 0-100 range.
package snapshot

import (
	"fmt"
	"time"

	"github.com/citiesregional/regiond/internal/region"
)

// MetricSource answers point-in-time metric reads by name. The second return
// is false when the source has no value for the name.
type MetricSource interface {
	Metric(name string) (float64, bool)
}

// Metric names a Collector reads from its source. Resource figures use the
// "resource.<type>.production" / ".consumption" / ".price" pattern.
const (
	MetricPopulation        = "population"
	MetricWorkers           = "workers"
	MetricUnemployedWorkers = "unemployed_workers"
	MetricAvailableJobs     = "available_jobs"
	MetricStudents          = "students"
	MetricTourists          = "tourists"
	MetricTreasury          = "treasury"
	MetricWeeklyIncome      = "weekly_income"
	MetricWeeklyExpenses    = "weekly_expenses"
	MetricGDPEstimate       = "gdp_estimate"
	MetricHappiness         = "happiness"
	MetricHealth            = "health"
	MetricEducation         = "education"
	MetricTrafficFlow       = "traffic_flow"
	MetricLandValueAvg      = "land_value_avg"
	MetricPollution         = "pollution"
	MetricCrimeRate         = "crime_rate"
)

// ResourceMetric builds the source name for one resource figure, e.g.
// ResourceMetric(region.ResourceWater, "production").
func ResourceMetric(t region.ResourceType, figure string) string {
	return fmt.Sprintf("resource.%s.%s", t, figure)
}

// Collector assembles City snapshots for one city from a metric source.
type Collector struct {
	source MetricSource

	CityID     string
	CityName   string
	PlayerName string
	PlayerID   string
}

// NewCollector builds a collector bound to a source and city identity.
func NewCollector(source MetricSource, cityID, cityName string) *Collector {
	return &Collector{
		source:   source,
		CityID:   cityID,
		CityName: cityName,
	}
}

// Collect reads every metric and returns a fresh snapshot. Missing metrics
// default to zero, quality metrics land in [0, 100], and resources with no
// production or consumption are omitted.
func (c *Collector) Collect() *region.City {
	now := time.Now().UTC()
	city := &region.City{
		CityID:     c.CityID,
		CityName:   c.CityName,
		PlayerName: c.PlayerName,
		PlayerID:   c.PlayerID,
		IsOnline:   true,
		LastSeen:   now,
		LastSync:   now,

		Population:        int(c.read(MetricPopulation)),
		Workers:           int(c.read(MetricWorkers)),
		UnemployedWorkers: int(c.read(MetricUnemployedWorkers)),
		AvailableJobs:     int(c.read(MetricAvailableJobs)),
		Students:          int(c.read(MetricStudents)),
		Tourists:          int(c.read(MetricTourists)),

		Treasury:       int64(c.read(MetricTreasury)),
		WeeklyIncome:   c.read(MetricWeeklyIncome),
		WeeklyExpenses: c.read(MetricWeeklyExpenses),
		GDPEstimate:    c.read(MetricGDPEstimate),

		Happiness:    clamp100(c.read(MetricHappiness)),
		Health:       clamp100(c.read(MetricHealth)),
		Education:    clamp100(c.read(MetricEducation)),
		TrafficFlow:  clamp100(c.read(MetricTrafficFlow)),
		LandValueAvg: c.read(MetricLandValueAvg),
		Pollution:    clamp100(c.read(MetricPollution)),
		CrimeRate:    clamp100(c.read(MetricCrimeRate)),
	}

	for _, t := range region.ResourceTypes {
		production := c.read(ResourceMetric(t, "production"))
		consumption := c.read(ResourceMetric(t, "consumption"))
		if production <= 0 && consumption <= 0 {
			continue
		}
		price := c.read(ResourceMetric(t, "price"))
		city.Resources = append(city.Resources, region.NewResource(t, production, consumption, price))
	}

	return city
}

func (c *Collector) read(name string) float64 {
	if c.source == nil {
		return 0
	}
	v, ok := c.source.Metric(name)
	if !ok {
		return 0
	}
	return v
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
