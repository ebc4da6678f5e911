package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citiesregional/regiond/internal/region"
	"github.com/citiesregional/regiond/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer() *Server {
	return New(Config{}, store.NewMemory(), nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func createTestRegion(t *testing.T, s *Server, name string, maxCities int) region.Region {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/regions", map[string]interface{}{
		"name":      name,
		"maxCities": maxCities,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var r region.Region
	decodeJSON(t, w, &r)
	return r
}

func putCity(t *testing.T, s *Server, regionID string, city region.City) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, s, http.MethodPut,
		fmt.Sprintf("/api/v1/regions/%s/cities/%s", regionID, city.CityID), city)
}

func TestHealth(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndGetRegion(t *testing.T) {
	s := newTestServer()
	r := createTestRegion(t, s, "Test Region", 4)
	assert.NotEmpty(t, r.RegionID)
	assert.NotEmpty(t, r.RegionCode)
	assert.Equal(t, 4, r.MaxCities)

	t.Run("by id", func(t *testing.T) {
		w := doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got region.Region
		decodeJSON(t, w, &got)
		assert.Equal(t, r.RegionID, got.RegionID)
	})

	t.Run("by code", func(t *testing.T) {
		w := doJSON(t, s, http.MethodGet, "/api/v1/regions/code/"+r.RegionCode, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got region.Region
		decodeJSON(t, w, &got)
		assert.Equal(t, r.RegionID, got.RegionID)
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		w := doJSON(t, s, http.MethodGet, "/api/v1/regions/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing name is rejected", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/regions", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCityLifecycle(t *testing.T) {
	s := newTestServer()
	r := createTestRegion(t, s, "Test Region", 2)

	t.Run("upsert registers a city", func(t *testing.T) {
		w := putCity(t, s, r.RegionID, region.City{CityID: "a", CityName: "Alpha", Population: 1000})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID+"/cities", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var cities []region.City
		decodeJSON(t, w, &cities)
		require.Len(t, cities, 1)
		assert.Equal(t, "Alpha", cities[0].CityName)
		assert.False(t, cities[0].LastSync.IsZero())
	})

	t.Run("repeated upsert replaces, not duplicates", func(t *testing.T) {
		w := putCity(t, s, r.RegionID, region.City{CityID: "a", CityName: "Alpha Prime"})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID+"/cities", nil)
		var cities []region.City
		decodeJSON(t, w, &cities)
		require.Len(t, cities, 1)
		assert.Equal(t, "Alpha Prime", cities[0].CityName)
	})

	t.Run("full region rejects new cities", func(t *testing.T) {
		require.Equal(t, http.StatusOK, putCity(t, s, r.RegionID, region.City{CityID: "b", CityName: "Beta"}).Code)
		w := putCity(t, s, r.RegionID, region.City{CityID: "c", CityName: "Gamma"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// Existing members still sync fine at capacity.
		assert.Equal(t, http.StatusOK, putCity(t, s, r.RegionID, region.City{CityID: "a", CityName: "Alpha"}).Code)
	})

	t.Run("join is recorded as an event", func(t *testing.T) {
		w := doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID+"/events", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var events []region.Event
		decodeJSON(t, w, &events)
		require.NotEmpty(t, events)

		found := false
		for _, evt := range events {
			if evt.Type == region.EventCityJoined && evt.SourceCityID == "a" {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("delete removes the city", func(t *testing.T) {
		w := doJSON(t, s, http.MethodDelete, "/api/v1/regions/"+r.RegionID+"/cities/a", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID+"/cities", nil)
		var cities []region.City
		decodeJSON(t, w, &cities)
		assert.Len(t, cities, 1)
	})

	t.Run("unknown region is 404", func(t *testing.T) {
		w := putCity(t, s, "nope", region.City{CityID: "a", CityName: "Alpha"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestConnectionEndpoints(t *testing.T) {
	s := newTestServer()
	r := createTestRegion(t, s, "Test Region", 4)
	require.Equal(t, http.StatusOK, putCity(t, s, r.RegionID, region.City{CityID: "a", CityName: "Alpha"}).Code)
	require.Equal(t, http.StatusOK, putCity(t, s, r.RegionID, region.City{CityID: "b", CityName: "Beta"}).Code)

	conn := region.NewConnection("a", "b", region.ConnHighway2Lane)

	t.Run("add and list", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/regions/"+r.RegionID+"/connections", conn)
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID+"/connections", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var conns []region.Connection
		decodeJSON(t, w, &conns)
		require.Len(t, conns, 1)
		assert.Equal(t, conn.ConnectionID, conns[0].ConnectionID)
	})

	t.Run("reverse duplicate is rejected", func(t *testing.T) {
		dup := region.NewConnection("b", "a", region.ConnRegionalRail)
		w := doJSON(t, s, http.MethodPost, "/api/v1/regions/"+r.RegionID+"/connections", dup)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing endpoint is rejected", func(t *testing.T) {
		bad := region.NewConnection("a", "ghost", region.ConnFerry)
		w := doJSON(t, s, http.MethodPost, "/api/v1/regions/"+r.RegionID+"/connections", bad)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEventEndpoints(t *testing.T) {
	s := newTestServer()
	r := createTestRegion(t, s, "Test Region", 4)

	t.Run("post and list", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/regions/"+r.RegionID+"/events", region.Event{
			Type:  region.EventMilestoneReached,
			Title: "Population boom",
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID+"/events", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var events []region.Event
		decodeJSON(t, w, &events)
		require.NotEmpty(t, events)
		assert.Equal(t, "Population boom", events[0].Title)
		assert.NotEmpty(t, events[0].EventID)
	})

	t.Run("since filter", func(t *testing.T) {
		w := doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID+"/events?since=2100-01-01T00:00:00Z", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var events []region.Event
		decodeJSON(t, w, &events)
		assert.Empty(t, events)
	})

	t.Run("bad since timestamp", func(t *testing.T) {
		w := doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID+"/events?since=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTradeReport(t *testing.T) {
	s := newTestServer()
	r := createTestRegion(t, s, "Test Region", 4)

	exporter := region.City{
		CityID:   "exp",
		CityName: "Exporter",
		Resources: []region.Resource{
			region.NewResource(region.ResourceElectricity, 1000, 400, 12),
		},
	}
	importer := region.City{
		CityID:   "imp",
		CityName: "Importer",
		Resources: []region.Resource{
			region.NewResource(region.ResourceElectricity, 100, 500, 12),
		},
	}
	require.Equal(t, http.StatusOK, putCity(t, s, r.RegionID, exporter).Code)
	require.Equal(t, http.StatusOK, putCity(t, s, r.RegionID, importer).Code)

	conn := region.NewConnection("exp", "imp", region.ConnHighway2Lane)
	w := doJSON(t, s, http.MethodPost, "/api/v1/regions/"+r.RegionID+"/connections", conn)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/regions/"+r.RegionID+"/trades", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		Flows            []region.TradeFlow `json:"flows"`
		ValidationErrors []string           `json:"validationErrors"`
		Statistics       struct {
			TradeCount       int     `json:"tradeCount"`
			TotalTradeVolume float64 `json:"totalTradeVolume"`
		} `json:"statistics"`
	}
	decodeJSON(t, w, &report)

	require.Len(t, report.Flows, 1)
	assert.Equal(t, 400.0, report.Flows[0].Amount)
	assert.Equal(t, 1, report.Statistics.TradeCount)
	assert.Equal(t, 400.0, report.Statistics.TotalTradeVolume)
	assert.Empty(t, report.ValidationErrors)
}

func TestRateLimit(t *testing.T) {
	s := New(Config{RateLimitMax: 3, RateLimitWindow: time.Minute}, store.NewMemory(), nil)

	for i := 0; i < 3; i++ {
		w := doJSON(t, s, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
