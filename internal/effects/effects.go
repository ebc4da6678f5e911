// Package effects applies the economic outcome of a sync cycle to the local
// city snapshot: trade flows move money and stockpiles, and the commuter
// pass moves unemployed workers to neighboring jobs.
package effects

import (
	"github.com/citiesregional/regiond/internal/region"
)

// CommuteLimitMinutes is the longest connection workers will commute over.
const CommuteLimitMinutes = 45.0

// commuterIncomePerWorker is the weekly income one outbound commuter brings
// home.
const commuterIncomePerWorker = 10.0

// Handler applies one trade flow to the local city. outgoing is true when the
// city is the exporter.
type Handler func(city *region.City, flow region.TradeFlow, outgoing bool)

// Registry dispatches trade flows to per-resource handlers. Resource types
// without a registered handler fall through to the default goods handler.
type Registry struct {
	handlers map[region.ResourceType]Handler
}

// NewRegistry builds a registry with the standard handlers installed.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[region.ResourceType]Handler)}

	// Utilities transfer no stockpile; the grid either delivers or it does
	// not.
	r.Register(region.ResourceElectricity, moneyOnly)
	r.Register(region.ResourceWater, moneyOnly)

	// Accepting waste is a paid service, so the money moves the other way.
	r.Register(region.ResourceWaste, func(city *region.City, flow region.TradeFlow, outgoing bool) {
		value := int64(flow.TotalValue())
		if outgoing {
			city.Treasury -= value
		} else {
			city.Treasury += value
		}
	})

	// People flows carry income, not treasury transfers.
	r.Register(region.ResourceTourists, func(city *region.City, flow region.TradeFlow, outgoing bool) {
		if !outgoing {
			city.WeeklyIncome += flow.TotalValue()
			city.Tourists += int(flow.Amount)
		}
	})
	r.Register(region.ResourceStudents, func(city *region.City, flow region.TradeFlow, outgoing bool) {
		if !outgoing {
			city.Students += int(flow.Amount)
		}
	})
	r.Register(region.ResourceWorkers, func(city *region.City, flow region.TradeFlow, outgoing bool) {
		// Worker placement is handled by the commuter pass; the flow itself
		// only settles wages.
		if outgoing {
			city.WeeklyIncome += flow.TotalValue()
		}
	})

	return r
}

// Register installs or replaces the handler for a resource type.
func (r *Registry) Register(t region.ResourceType, h Handler) {
	r.handlers[t] = h
}

// ApplyTradeEffects runs every flow touching the city through its handler.
// Flows between other cities are ignored.
func (r *Registry) ApplyTradeEffects(city *region.City, flows []region.TradeFlow) {
	if city == nil {
		return
	}
	for _, flow := range flows {
		var outgoing bool
		switch city.CityID {
		case flow.FromCityID:
			outgoing = true
		case flow.ToCityID:
			outgoing = false
		default:
			continue
		}

		handler, ok := r.handlers[flow.ResourceType]
		if !ok {
			handler = defaultGoods
		}
		handler(city, flow, outgoing)
	}
}

// defaultGoods moves the trade value into the exporter's treasury and out of
// the importer's, and adjusts stockpiles by the traded amount.
func defaultGoods(city *region.City, flow region.TradeFlow, outgoing bool) {
	value := int64(flow.TotalValue())
	if outgoing {
		city.Treasury += value
		adjustStockpile(city, flow.ResourceType, -flow.Amount)
	} else {
		city.Treasury -= value
		adjustStockpile(city, flow.ResourceType, flow.Amount)
	}
}

func moneyOnly(city *region.City, flow region.TradeFlow, outgoing bool) {
	value := int64(flow.TotalValue())
	if outgoing {
		city.Treasury += value
	} else {
		city.Treasury -= value
	}
}

func adjustStockpile(city *region.City, t region.ResourceType, delta float64) {
	for i := range city.Resources {
		if city.Resources[i].Type == t {
			city.Resources[i].Stockpile += delta
			if city.Resources[i].Stockpile < 0 {
				city.Resources[i].Stockpile = 0
			}
			return
		}
	}
}

// ApplyCommuterEffects lets unemployed workers commute over short
// connections. Outbound commuters fill jobs in neighboring cities and bring
// income home; inbound commuters from neighbors fill local openings. At most
// half the unemployed pool of any city commutes out.
func (r *Registry) ApplyCommuterEffects(city *region.City, reg *region.Region) {
	if city == nil || reg == nil {
		return
	}

	outboundBudget := city.CommutableWorkers()
	for _, conn := range reg.Connections {
		if !conn.Touches(city.CityID) || conn.TravelTimeMinutes > CommuteLimitMinutes {
			continue
		}
		neighborID := conn.FromCityID
		if neighborID == city.CityID {
			neighborID = conn.ToCityID
		}
		neighbor := reg.GetCity(neighborID)
		if neighbor == nil {
			continue
		}

		// Locals commuting out to the neighbor's openings.
		out := mini(outboundBudget, neighbor.AvailableJobs)
		if out > 0 {
			city.UnemployedWorkers -= out
			city.WeeklyIncome += float64(out) * commuterIncomePerWorker
			outboundBudget -= out
		}

		// Neighbors commuting in to fill local openings.
		in := mini(neighbor.CommutableWorkers(), city.AvailableJobs)
		if in > 0 {
			city.AvailableJobs -= in
		}
	}
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}
