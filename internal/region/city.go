package region

import (
	"time"

	"github.com/google/uuid"
)

// ResourceType identifies a tradeable resource category.
type ResourceType string

const (
	ResourceIndustrialGoods ResourceType = "industrial_goods"
	ResourceCommercialGoods ResourceType = "commercial_goods"
	ResourceAgriculture     ResourceType = "agriculture"
	ResourceElectricity     ResourceType = "electricity"
	ResourceWater           ResourceType = "water"
	ResourceOil             ResourceType = "oil"
	ResourceOre             ResourceType = "ore"
	ResourceRawMaterials    ResourceType = "raw_materials"
	ResourceForestry        ResourceType = "forestry"
	ResourceTourists        ResourceType = "tourists"
	ResourceStudents        ResourceType = "students"
	ResourceWorkers         ResourceType = "workers"
	ResourceWaste           ResourceType = "waste"
)

// ResourceTypes lists every tradeable resource in matching order.
var ResourceTypes = []ResourceType{
	ResourceIndustrialGoods,
	ResourceCommercialGoods,
	ResourceAgriculture,
	ResourceElectricity,
	ResourceWater,
	ResourceOil,
	ResourceOre,
	ResourceRawMaterials,
	ResourceForestry,
	ResourceTourists,
	ResourceStudents,
	ResourceWorkers,
	ResourceWaste,
}

// Resource holds one city's production/consumption figures for a single
// resource type. ExportAvailable and ImportNeeded default to the
// production/consumption surplus and deficit but may be overridden by the
// data source that produced the snapshot.
type Resource struct {
	Type            ResourceType `json:"type"`
	Production      float64      `json:"production"`
	Consumption     float64      `json:"consumption"`
	ExportAvailable float64      `json:"exportAvailable"`
	ImportNeeded    float64      `json:"importNeeded"`
	Price           float64      `json:"price"`
	Stockpile       float64      `json:"stockpile"`
}

// NewResource derives export/import figures from production and consumption.
// At most one of the two is nonzero.
func NewResource(t ResourceType, production, consumption, price float64) Resource {
	return Resource{
		Type:            t,
		Production:      production,
		Consumption:     consumption,
		ExportAvailable: max0(production - consumption),
		ImportNeeded:    max0(consumption - production),
		Price:           price,
	}
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// City is a point-in-time snapshot of one city's aggregated metrics. It is
// the unit of sync between peers: snapshots are replaced whole, never merged
// field by field.
type City struct {
	CityID     string `json:"cityId"`
	CityName   string `json:"cityName"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId"`

	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
	LastSync time.Time `json:"lastSync"`

	Population        int `json:"population"`
	Workers           int `json:"workers"`
	UnemployedWorkers int `json:"unemployedWorkers"`
	AvailableJobs     int `json:"availableJobs"`
	Students          int `json:"students"`
	Tourists          int `json:"tourists"`

	Treasury       int64   `json:"treasury"`
	WeeklyIncome   float64 `json:"weeklyIncome"`
	WeeklyExpenses float64 `json:"weeklyExpenses"`
	GDPEstimate    float64 `json:"gdpEstimate"`

	Resources []Resource `json:"resources"`

	// Quality metrics, each 0-100. Lower is better for pollution and crime.
	Happiness    float64 `json:"happiness"`
	Health       float64 `json:"health"`
	Education    float64 `json:"education"`
	TrafficFlow  float64 `json:"trafficFlow"`
	LandValueAvg float64 `json:"landValueAvg"`
	Pollution    float64 `json:"pollution"`
	CrimeRate    float64 `json:"crimeRate"`
}

// NewCity creates an empty snapshot with a generated id.
func NewCity(name string) *City {
	now := time.Now().UTC()
	return &City{
		CityID:   uuid.NewString(),
		CityName: name,
		LastSeen: now,
		LastSync: now,
	}
}

// Resource returns the figure for a resource type, or false if the snapshot
// carries none.
func (c *City) Resource(t ResourceType) (Resource, bool) {
	for _, r := range c.Resources {
		if r.Type == t {
			return r, true
		}
	}
	return Resource{}, false
}

// NetTradeBalance is the export surplus minus import deficit for a resource.
// Missing resources count as zero.
func (c *City) NetTradeBalance(t ResourceType) float64 {
	r, ok := c.Resource(t)
	if !ok {
		return 0
	}
	return r.ExportAvailable - r.ImportNeeded
}

// CommutableWorkers is how many unemployed workers this city will let
// commute out. Capped at half the unemployed pool.
func (c *City) CommutableWorkers() int {
	return c.UnemployedWorkers / 2
}
