package snapshot

import (
	"math/rand"
	"sync"

	"github.com/citiesregional/regiond/internal/region"
)

// SimulatedSource is a metric source backed by a slow random walk. It stands
// in for a live city on nodes run without one, so a region can be exercised
// end to end.
type SimulatedSource struct {
	mu     sync.Mutex
	rng    *rand.Rand
	values map[string]float64
}

// NewSimulatedSource seeds a source with a plausible mid-size city.
func NewSimulatedSource(seed int64) *SimulatedSource {
	s := &SimulatedSource{
		rng: rand.New(rand.NewSource(seed)),
		values: map[string]float64{
			MetricPopulation:        45000,
			MetricWorkers:           21000,
			MetricUnemployedWorkers: 1800,
			MetricAvailableJobs:     900,
			MetricStudents:          5200,
			MetricTourists:          350,
			MetricTreasury:          750000,
			MetricWeeklyIncome:      42000,
			MetricWeeklyExpenses:    39000,
			MetricGDPEstimate:       8.1e6,
			MetricHappiness:         72,
			MetricHealth:            68,
			MetricEducation:         61,
			MetricTrafficFlow:       80,
			MetricLandValueAvg:      1400,
			MetricPollution:         22,
			MetricCrimeRate:         14,
		},
	}

	type figures struct{ production, consumption, price float64 }
	resources := map[region.ResourceType]figures{
		region.ResourceElectricity:     {5200, 4800, 12},
		region.ResourceWater:           {3100, 3300, 8},
		region.ResourceIndustrialGoods: {2400, 1700, 45},
		region.ResourceCommercialGoods: {900, 1500, 60},
		region.ResourceAgriculture:     {600, 1100, 25},
		region.ResourceWaste:           {0, 400, 15},
	}
	for t, f := range resources {
		s.values[ResourceMetric(t, "production")] = f.production
		s.values[ResourceMetric(t, "consumption")] = f.consumption
		s.values[ResourceMetric(t, "price")] = f.price
	}
	return s
}

// Metric returns the current value and nudges it for the next read.
func (s *SimulatedSource) Metric(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[name]
	if !ok {
		return 0, false
	}
	// Drift by up to 2% per read so successive snapshots differ.
	drift := 1 + (s.rng.Float64()-0.5)*0.04
	next := v * drift
	if next < 0 {
		next = 0
	}
	s.values[name] = next
	return v, true
}
