package trade

import (
	"fmt"

	"github.com/citiesregional/regiond/internal/region"
)

// Validate checks a flow list against the region's current cities and
// connections and returns a human-readable error string per problem found.
// Validation is advisory: it never rejects anything itself, the caller
// decides what to do with a non-empty result.
func Validate(flows []*region.TradeFlow, r *region.Region) []string {
	var errs []string

	for _, f := range flows {
		if f == nil {
			errs = append(errs, "trade flow is nil")
			continue
		}

		if f.FromCityID == "" || f.ToCityID == "" {
			errs = append(errs, fmt.Sprintf("trade flow has invalid city ids: %s", f.ResourceType))
			continue
		}
		if f.FromCityID == f.ToCityID {
			errs = append(errs, fmt.Sprintf("trade flow has same source and destination: %s", f.FromCityID))
			continue
		}

		if r.GetCity(f.FromCityID) == nil {
			errs = append(errs, fmt.Sprintf("trade flow references non-existent city: %s", f.FromCityID))
			continue
		}
		if r.GetCity(f.ToCityID) == nil {
			errs = append(errs, fmt.Sprintf("trade flow references non-existent city: %s", f.ToCityID))
			continue
		}

		if f.ConnectionID != "" {
			found := false
			for _, c := range r.Connections {
				if c.ConnectionID == f.ConnectionID {
					found = true
					break
				}
			}
			if !found {
				errs = append(errs, fmt.Sprintf("trade flow references non-existent connection: %s", f.ConnectionID))
			}
		}

		if f.Amount <= 0 {
			errs = append(errs, fmt.Sprintf("trade flow has invalid amount: %v for %s", f.Amount, f.ResourceType))
		}
		if f.PricePerUnit < 0 {
			errs = append(errs, fmt.Sprintf("trade flow has negative price: %v for %s", f.PricePerUnit, f.ResourceType))
		}
	}

	return errs
}

// ValidateFlows adapts Validate to the value slices the matcher produces.
func ValidateFlows(flows []region.TradeFlow, r *region.Region) []string {
	ptrs := make([]*region.TradeFlow, len(flows))
	for i := range flows {
		ptrs[i] = &flows[i]
	}
	return Validate(ptrs, r)
}
