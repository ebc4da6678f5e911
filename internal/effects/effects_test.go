package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citiesregional/regiond/internal/region"
)

func goodsFlow(from, to string, amount, price float64) region.TradeFlow {
	return region.TradeFlow{
		ResourceType: region.ResourceIndustrialGoods,
		FromCityID:   from,
		ToCityID:     to,
		Amount:       amount,
		PricePerUnit: price,
	}
}

func TestApplyTradeEffects(t *testing.T) {
	t.Run("goods move treasury and stockpile", func(t *testing.T) {
		reg := NewRegistry()
		exporter := &region.City{
			CityID:   "exp",
			Treasury: 1000,
			Resources: []region.Resource{
				{Type: region.ResourceIndustrialGoods, Stockpile: 500},
			},
		}
		importer := &region.City{
			CityID:   "imp",
			Treasury: 1000,
			Resources: []region.Resource{
				{Type: region.ResourceIndustrialGoods, Stockpile: 0},
			},
		}
		flows := []region.TradeFlow{goodsFlow("exp", "imp", 100, 5)}

		reg.ApplyTradeEffects(exporter, flows)
		assert.Equal(t, int64(1500), exporter.Treasury)
		assert.Equal(t, 400.0, exporter.Resources[0].Stockpile)

		reg.ApplyTradeEffects(importer, flows)
		assert.Equal(t, int64(500), importer.Treasury)
		assert.Equal(t, 100.0, importer.Resources[0].Stockpile)
	})

	t.Run("stockpile never goes negative", func(t *testing.T) {
		reg := NewRegistry()
		exporter := &region.City{
			CityID: "exp",
			Resources: []region.Resource{
				{Type: region.ResourceIndustrialGoods, Stockpile: 10},
			},
		}
		reg.ApplyTradeEffects(exporter, []region.TradeFlow{goodsFlow("exp", "imp", 100, 5)})
		assert.Equal(t, 0.0, exporter.Resources[0].Stockpile)
	})

	t.Run("flows between other cities are ignored", func(t *testing.T) {
		reg := NewRegistry()
		bystander := &region.City{CityID: "other", Treasury: 1000}
		reg.ApplyTradeEffects(bystander, []region.TradeFlow{goodsFlow("exp", "imp", 100, 5)})
		assert.Equal(t, int64(1000), bystander.Treasury)
	})

	t.Run("utilities move money without stockpile", func(t *testing.T) {
		reg := NewRegistry()
		importer := &region.City{
			CityID: "imp",
			Resources: []region.Resource{
				{Type: region.ResourceElectricity, Stockpile: 0},
			},
		}
		reg.ApplyTradeEffects(importer, []region.TradeFlow{{
			ResourceType: region.ResourceElectricity,
			FromCityID:   "exp", ToCityID: "imp",
			Amount: 100, PricePerUnit: 2,
		}})
		assert.Equal(t, int64(-200), importer.Treasury)
		assert.Equal(t, 0.0, importer.Resources[0].Stockpile)
	})

	t.Run("waste importer is paid", func(t *testing.T) {
		reg := NewRegistry()
		importer := &region.City{CityID: "imp"}
		reg.ApplyTradeEffects(importer, []region.TradeFlow{{
			ResourceType: region.ResourceWaste,
			FromCityID:   "exp", ToCityID: "imp",
			Amount: 50, PricePerUnit: 4,
		}})
		assert.Equal(t, int64(200), importer.Treasury)
	})

	t.Run("tourists raise income and headcount", func(t *testing.T) {
		reg := NewRegistry()
		host := &region.City{CityID: "host", Tourists: 10}
		reg.ApplyTradeEffects(host, []region.TradeFlow{{
			ResourceType: region.ResourceTourists,
			FromCityID:   "src", ToCityID: "host",
			Amount: 25, PricePerUnit: 8,
		}})
		assert.Equal(t, 200.0, host.WeeklyIncome)
		assert.Equal(t, 35, host.Tourists)
	})

	t.Run("custom handler overrides the default", func(t *testing.T) {
		reg := NewRegistry()
		called := false
		reg.Register(region.ResourceIndustrialGoods, func(city *region.City, flow region.TradeFlow, outgoing bool) {
			called = true
		})
		city := &region.City{CityID: "exp", Treasury: 100}
		reg.ApplyTradeEffects(city, []region.TradeFlow{goodsFlow("exp", "imp", 10, 1)})
		assert.True(t, called)
		assert.Equal(t, int64(100), city.Treasury)
	})
}

func TestApplyCommuterEffects(t *testing.T) {
	build := func(t *testing.T, travelTime float64) (*region.Region, *region.City) {
		t.Helper()
		r := region.New("Commute Region", 4)
		local := &region.City{CityID: "local", CityName: "Local", UnemployedWorkers: 400, AvailableJobs: 100}
		neighbor := &region.City{CityID: "nbr", CityName: "Neighbor", UnemployedWorkers: 600, AvailableJobs: 150}
		require.True(t, r.AddCity(local))
		require.True(t, r.AddCity(neighbor))
		conn := region.NewConnection("local", "nbr", region.ConnHighway2Lane)
		conn.TravelTimeMinutes = travelTime
		require.True(t, r.AddConnection(conn))
		return r, local
	}

	t.Run("workers commute both ways within the limit", func(t *testing.T) {
		r, local := build(t, 30)
		NewRegistry().ApplyCommuterEffects(local, r)

		// 200 commutable locals cap at the neighbor's 150 openings.
		assert.Equal(t, 250, local.UnemployedWorkers)
		assert.Equal(t, 150*commuterIncomePerWorker, local.WeeklyIncome)
		// 300 commutable neighbors cap at the 100 local openings.
		assert.Equal(t, 0, local.AvailableJobs)
	})

	t.Run("slow connections carry no commuters", func(t *testing.T) {
		r, local := build(t, CommuteLimitMinutes+1)
		NewRegistry().ApplyCommuterEffects(local, r)

		assert.Equal(t, 400, local.UnemployedWorkers)
		assert.Equal(t, 100, local.AvailableJobs)
	})

	t.Run("at most half the unemployed pool commutes out", func(t *testing.T) {
		r, local := build(t, 30)
		local.UnemployedWorkers = 100
		NewRegistry().ApplyCommuterEffects(local, r)
		assert.Equal(t, 50, local.UnemployedWorkers)
	})

	t.Run("nil inputs are no-ops", func(t *testing.T) {
		reg := NewRegistry()
		reg.ApplyCommuterEffects(nil, nil)
		reg.ApplyCommuterEffects(&region.City{CityID: "a"}, nil)
	})
}
