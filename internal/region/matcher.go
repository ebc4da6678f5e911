package region

import (
	"sort"
	"time"
)

// Default trade matching constraints.
const (
	DefaultMaxTravelTimeMinutes     = 60.0
	DefaultCapacityUtilizationLimit = 0.85

	// unitsPerCapacity converts connection capacity into resource units.
	unitsPerCapacity = 10.0
)

// TradeFlow is one resolved transfer of a resource between two cities over a
// specific connection, produced fresh each matching pass.
type TradeFlow struct {
	ResourceType      ResourceType `json:"resourceType"`
	FromCityID        string       `json:"fromCityId"`
	ToCityID          string       `json:"toCityId"`
	Amount            float64      `json:"amount"`
	PricePerUnit      float64      `json:"pricePerUnit"`
	ConnectionID      string       `json:"connectionId,omitempty"`
	TravelTimeMinutes float64      `json:"travelTimeMinutes"`
	CalculatedAt      time.Time    `json:"calculatedAt"`
}

// TotalValue is amount times unit price.
func (f *TradeFlow) TotalValue() float64 {
	return f.Amount * f.PricePerUnit
}

// tradeMatch is one candidate exporter/importer pairing awaiting greedy
// consumption.
type tradeMatch struct {
	exporter   *City
	importer   *City
	resource   Resource
	connection *Connection
	amount     float64
	priority   float64
}

// CalculateTradeFlows computes a capacity- and distance-constrained
// allocation of exports to importers across the region, one independent
// matching pass per resource type. Connections slower than
// maxTravelTimeMinutes are ineligible, and only capacityUtilizationLimit of
// a connection's nominal capacity is made available for trade. Connection
// usage accumulates over the whole call, so resource types matched later
// compete for the same capacity.
//
// The allocation is greedy in descending priority order; it does not
// backtrack or re-optimize.
func (r *Region) CalculateTradeFlows(maxTravelTimeMinutes, capacityUtilizationLimit float64) []TradeFlow {
	var flows []TradeFlow

	// connectionId -> capacity units consumed, shared across resource types.
	connectionUsage := make(map[string]float64)
	now := time.Now().UTC()

	for _, resourceType := range ResourceTypes {
		exporters := r.citiesWith(resourceType, func(res Resource) bool { return res.ExportAvailable > 0 })
		importers := r.citiesWith(resourceType, func(res Resource) bool { return res.ImportNeeded > 0 })
		if len(exporters) == 0 || len(importers) == 0 {
			continue
		}

		sort.SliceStable(exporters, func(i, j int) bool {
			return exporters[i].resource.ExportAvailable > exporters[j].resource.ExportAvailable
		})
		sort.SliceStable(importers, func(i, j int) bool {
			return importers[i].resource.ImportNeeded > importers[j].resource.ImportNeeded
		})

		var matches []tradeMatch
		for _, imp := range importers {
			for _, exp := range exporters {
				if exp.city.CityID == imp.city.CityID {
					continue
				}
				conn := r.GetConnection(exp.city.CityID, imp.city.CityID)
				if conn == nil || conn.TravelTimeMinutes > maxTravelTimeMinutes {
					continue
				}

				candidate := minf(exp.resource.ExportAvailable, imp.resource.ImportNeeded)
				if candidate <= 0 {
					continue
				}
				headroom := capacityHeadroom(conn, capacityUtilizationLimit, connectionUsage)
				amount := minf(candidate, headroom)
				if amount <= 0 {
					continue
				}

				matches = append(matches, tradeMatch{
					exporter:   exp.city,
					importer:   imp.city,
					resource:   exp.resource,
					connection: conn,
					amount:     amount,
					priority:   tradePriority(exp.resource, imp.resource, conn),
				})
			}
		}

		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].priority > matches[j].priority
		})

		remainingNeeds := make(map[string]float64, len(importers))
		for _, imp := range importers {
			remainingNeeds[imp.city.CityID] = imp.resource.ImportNeeded
		}
		remainingExports := make(map[string]float64, len(exporters))
		for _, exp := range exporters {
			remainingExports[exp.city.CityID] = exp.resource.ExportAvailable
		}

		for _, m := range matches {
			exporterID := m.exporter.CityID
			importerID := m.importer.CityID

			if remainingNeeds[importerID] <= 0 || remainingExports[exporterID] <= 0 {
				continue
			}

			headroom := capacityHeadroom(m.connection, capacityUtilizationLimit, connectionUsage)
			amount := minf(minf(remainingNeeds[importerID], remainingExports[exporterID]), headroom)
			if amount <= 0 {
				continue
			}

			flows = append(flows, TradeFlow{
				ResourceType:      resourceType,
				FromCityID:        exporterID,
				ToCityID:          importerID,
				Amount:            amount,
				PricePerUnit:      m.resource.Price,
				ConnectionID:      m.connection.ConnectionID,
				TravelTimeMinutes: m.connection.TravelTimeMinutes,
				CalculatedAt:      now,
			})

			remainingNeeds[importerID] -= amount
			remainingExports[exporterID] -= amount
			connectionUsage[m.connection.ConnectionID] += amount / unitsPerCapacity
		}
	}

	return flows
}

// CalculateTradeFlowsDefault runs the matcher with the standard 60 minute
// travel cutoff and 85% capacity utilization limit.
func (r *Region) CalculateTradeFlowsDefault() []TradeFlow {
	return r.CalculateTradeFlows(DefaultMaxTravelTimeMinutes, DefaultCapacityUtilizationLimit)
}

type cityResource struct {
	city     *City
	resource Resource
}

func (r *Region) citiesWith(t ResourceType, keep func(Resource) bool) []cityResource {
	var out []cityResource
	for _, c := range r.Cities {
		res, ok := c.Resource(t)
		if ok && keep(res) {
			out = append(out, cityResource{city: c, resource: res})
		}
	}
	return out
}

// capacityHeadroom converts a connection's unconsumed capacity share into
// resource units.
func capacityHeadroom(conn *Connection, limit float64, usage map[string]float64) float64 {
	available := conn.Capacity*limit - usage[conn.ConnectionID]
	return available * unitsPerCapacity
}

// tradePriority scores a candidate match; higher wins. Shorter travel,
// higher capacity, lower congestion, better exporter price, and larger
// amounts all raise the score.
func tradePriority(exp, imp Resource, conn *Connection) float64 {
	priority := 100.0
	priority += (60 - conn.TravelTimeMinutes) * 2
	priority += conn.Capacity / 100
	if conn.Capacity > 0 {
		priority += (1 - conn.UsagePercent()/100) * 20
	}
	priority += exp.Price / 10
	priority += minf(exp.ExportAvailable, imp.ImportNeeded) / 100
	return priority
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
