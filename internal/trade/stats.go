// Package trade derives diagnostics from computed trade flows: summary
// statistics and structural validation against the owning region. Both are
// pure reads; they never mutate the region or the flows.
package trade

import "github.com/citiesregional/regiond/internal/region"

// Statistics summarizes one matching pass.
type Statistics struct {
	TradeCount        int     `json:"tradeCount"`
	TotalTradeVolume  float64 `json:"totalTradeVolume"`
	TotalTradeValue   float64 `json:"totalTradeValue"`
	AverageTradeSize  float64 `json:"averageTradeSize"`
	AverageTradeValue float64 `json:"averageTradeValue"`

	ByResource   map[region.ResourceType]ResourceStats `json:"byResource"`
	ByCity       map[string]CityStats                  `json:"byCity"`
	ByConnection map[string]ConnectionStats            `json:"byConnection"`
}

// ResourceStats aggregates flows of one resource type.
type ResourceStats struct {
	Count        int     `json:"count"`
	TotalAmount  float64 `json:"totalAmount"`
	TotalValue   float64 `json:"totalValue"`
	AveragePrice float64 `json:"averagePrice"`
}

// CityStats aggregates one city's side of the trade. Every city in the
// region gets an entry, traded or not.
type CityStats struct {
	ExportCount   int     `json:"exportCount"`
	ExportValue   float64 `json:"exportValue"`
	ExportVolume  float64 `json:"exportVolume"`
	ImportCount   int     `json:"importCount"`
	ImportValue   float64 `json:"importValue"`
	ImportVolume  float64 `json:"importVolume"`
	NetTradeValue float64 `json:"netTradeValue"`
}

// ConnectionStats aggregates flows routed over one connection.
type ConnectionStats struct {
	TradeCount        int     `json:"tradeCount"`
	TotalVolume       float64 `json:"totalVolume"`
	TotalValue        float64 `json:"totalValue"`
	AverageTravelTime float64 `json:"averageTravelTime"`
}

// Summarize reduces a flow list into statistics. The region is consulted
// only to enumerate cities so that idle ones still appear in ByCity.
// Averages are 0 when there is nothing to average.
func Summarize(flows []region.TradeFlow, r *region.Region) *Statistics {
	stats := &Statistics{
		ByResource:   make(map[region.ResourceType]ResourceStats),
		ByCity:       make(map[string]CityStats),
		ByConnection: make(map[string]ConnectionStats),
	}
	if r != nil {
		for _, c := range r.Cities {
			stats.ByCity[c.CityID] = CityStats{}
		}
	}

	for i := range flows {
		f := &flows[i]
		value := f.TotalValue()

		stats.TradeCount++
		stats.TotalTradeVolume += f.Amount
		stats.TotalTradeValue += value

		rs := stats.ByResource[f.ResourceType]
		rs.Count++
		rs.TotalAmount += f.Amount
		rs.TotalValue += value
		// Running mean over unit price.
		rs.AveragePrice += (f.PricePerUnit - rs.AveragePrice) / float64(rs.Count)
		stats.ByResource[f.ResourceType] = rs

		exp := stats.ByCity[f.FromCityID]
		exp.ExportCount++
		exp.ExportValue += value
		exp.ExportVolume += f.Amount
		exp.NetTradeValue = exp.ExportValue - exp.ImportValue
		stats.ByCity[f.FromCityID] = exp

		imp := stats.ByCity[f.ToCityID]
		imp.ImportCount++
		imp.ImportValue += value
		imp.ImportVolume += f.Amount
		imp.NetTradeValue = imp.ExportValue - imp.ImportValue
		stats.ByCity[f.ToCityID] = imp

		if f.ConnectionID != "" {
			cs := stats.ByConnection[f.ConnectionID]
			cs.TradeCount++
			cs.TotalVolume += f.Amount
			cs.TotalValue += value
			// Running mean over travel time.
			cs.AverageTravelTime += (f.TravelTimeMinutes - cs.AverageTravelTime) / float64(cs.TradeCount)
			stats.ByConnection[f.ConnectionID] = cs
		}
	}

	if stats.TradeCount > 0 {
		stats.AverageTradeSize = stats.TotalTradeVolume / float64(stats.TradeCount)
		stats.AverageTradeValue = stats.TotalTradeValue / float64(stats.TradeCount)
	}
	return stats
}
