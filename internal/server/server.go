// Package server hosts regions over HTTP. City nodes create or join regions
// here, push snapshots, and pull the region back each sync cycle; observers
// can follow regional events over a websocket stream, and the same events
// are fanned out over NATS when a messaging client is configured.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/citiesregional/regiond/internal/region"
	"github.com/citiesregional/regiond/internal/store"
	"github.com/citiesregional/regiond/internal/trade"
	"github.com/citiesregional/regiond/pkg/messaging"
)

// Server is the regiond HTTP API.
type Server struct {
	router    *gin.Engine
	store     store.Store
	msgClient *messaging.Client
	hub       *eventHub
	limiter   *rateLimiter
}

// Config holds server tuning.
type Config struct {
	RateLimitWindow time.Duration
	RateLimitMax    int
}

// New wires routes, the rate limiter, and the event hub. msgClient may be
// nil, in which case events only reach websocket subscribers.
func New(cfg Config, st store.Store, msgClient *messaging.Client) *Server {
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.RateLimitMax == 0 {
		cfg.RateLimitMax = 240
	}

	s := &Server{
		router:    gin.Default(),
		store:     st,
		msgClient: msgClient,
		hub:       newEventHub(),
		limiter:   newRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.rateLimitMiddleware())

	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/regions", s.createRegion)
		v1.GET("/regions/code/:code", s.getRegionByCode)
		v1.GET("/regions/:id", s.getRegion)

		v1.GET("/regions/:id/cities", s.listCities)
		v1.PUT("/regions/:id/cities/:cityId", s.upsertCity)
		v1.DELETE("/regions/:id/cities/:cityId", s.removeCity)

		v1.GET("/regions/:id/connections", s.listConnections)
		v1.POST("/regions/:id/connections", s.addConnection)

		v1.GET("/regions/:id/events", s.listEvents)
		v1.POST("/regions/:id/events", s.postEvent)

		v1.GET("/regions/:id/trades", s.tradeReport)

		v1.GET("/regions/:id/stream", s.streamEvents)
	}
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router for tests and custom http.Server setups.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type createRegionRequest struct {
	Name      string `json:"name" binding:"required"`
	MaxCities int    `json:"maxCities"`
}

func (s *Server) createRegion(c *gin.Context) {
	var req createRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	r := region.New(req.Name, req.MaxCities)
	if err := s.store.Save(c.Request.Context(), r); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save region"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) getRegion(c *gin.Context) {
	r, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.regionError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) getRegionByCode(c *gin.Context) {
	r, err := s.store.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.regionError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) listCities(c *gin.Context) {
	r, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.regionError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Cities)
}

var errRegionFull = errors.New("region is full")

func (s *Server) upsertCity(c *gin.Context) {
	regionID := c.Param("id")
	cityID := c.Param("cityId")

	var city region.City
	if err := c.ShouldBindJSON(&city); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid city payload"})
		return
	}
	city.CityID = cityID
	city.LastSync = time.Now().UTC()

	_, err := s.store.Update(c.Request.Context(), regionID, func(r *region.Region) error {
		if r.GetCity(cityID) == nil && len(r.Cities) >= r.MaxCities {
			return errRegionFull
		}
		joined := r.GetCity(cityID) == nil
		r.UpdateCity(&city)
		if joined {
			r.AddEvent(region.Event{
				Type:         region.EventCityJoined,
				Title:        city.CityName + " joined the region!",
				SourceCityID: cityID,
			})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errRegionFull) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "region is full"})
			return
		}
		s.regionError(c, err)
		return
	}

	s.publishCityUpdate(regionID, &city)
	c.JSON(http.StatusOK, gin.H{"message": "city updated"})
}

func (s *Server) removeCity(c *gin.Context) {
	regionID := c.Param("id")
	cityID := c.Param("cityId")

	_, err := s.store.Update(c.Request.Context(), regionID, func(r *region.Region) error {
		r.RemoveCity(cityID)
		return nil
	})
	if err != nil {
		s.regionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "city removed"})
}

func (s *Server) listConnections(c *gin.Context) {
	r, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.regionError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Connections)
}

var errConnectionRejected = errors.New("connection rejected")

func (s *Server) addConnection(c *gin.Context) {
	regionID := c.Param("id")

	var conn region.Connection
	if err := c.ShouldBindJSON(&conn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection payload"})
		return
	}
	if conn.ConnectionID == "" {
		conn.ConnectionID = uuid.NewString()
	}

	updated, err := s.store.Update(c.Request.Context(), regionID, func(r *region.Region) error {
		if !r.AddConnection(&conn) {
			return errConnectionRejected
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errConnectionRejected) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "connection rejected: endpoints missing or duplicate"})
			return
		}
		s.regionError(c, err)
		return
	}

	// AddConnection logged a built event; push the newest one out.
	if len(updated.Events) > 0 {
		s.publishEvent(regionID, updated.Events[0])
	}
	c.JSON(http.StatusOK, conn)
}

func (s *Server) listEvents(c *gin.Context) {
	r, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.regionError(c, err)
		return
	}

	events := r.Events
	if sinceParam := c.Query("since"); sinceParam != "" {
		since, perr := time.Parse(time.RFC3339, sinceParam)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
			return
		}
		var recent []region.Event
		for _, evt := range events {
			if evt.Timestamp.After(since) {
				recent = append(recent, evt)
			}
		}
		events = recent
	} else if len(events) > 50 {
		events = events[:50]
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) postEvent(c *gin.Context) {
	regionID := c.Param("id")

	var evt region.Event
	if err := c.ShouldBindJSON(&evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	updated, err := s.store.Update(c.Request.Context(), regionID, func(r *region.Region) error {
		r.AddEvent(evt)
		return nil
	})
	if err != nil {
		s.regionError(c, err)
		return
	}

	s.publishEvent(regionID, updated.Events[0])
	c.JSON(http.StatusOK, gin.H{"message": "event recorded"})
}

// tradeReport computes flows and statistics for the region's current state.
func (s *Server) tradeReport(c *gin.Context) {
	r, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.regionError(c, err)
		return
	}

	flows := r.CalculateTradeFlowsDefault()
	stats := trade.Summarize(flows, r)
	errs := trade.ValidateFlows(flows, r)

	c.JSON(http.StatusOK, gin.H{
		"flows":            flows,
		"statistics":       stats,
		"validationErrors": errs,
	})
}

func (s *Server) regionError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "region not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (s *Server) publishEvent(regionID string, evt region.Event) {
	msg := messaging.RegionEventMessage{
		RegionID:     regionID,
		EventID:      evt.EventID,
		Type:         string(evt.Type),
		Title:        evt.Title,
		Description:  evt.Description,
		SourceCityID: evt.SourceCityID,
		Timestamp:    evt.Timestamp,
	}
	if s.msgClient != nil {
		s.msgClient.Publish(messaging.RegionEventsSubject(regionID), msg)
	}
	s.hub.broadcast(regionID, msg)
}

func (s *Server) publishCityUpdate(regionID string, city *region.City) {
	if s.msgClient == nil {
		return
	}
	s.msgClient.Publish(messaging.CityUpdatesSubject(regionID), messaging.CityUpdateMessage{
		RegionID: regionID,
		CityID:   city.CityID,
		CityName: city.CityName,
		SyncedAt: city.LastSync,
	})
}
