// Package cloudsync talks to a regiond server over HTTP: it resolves join
// codes, pushes the local city snapshot, and pulls peer snapshots and
// connections each cycle. Calls run behind a circuit breaker so a dead
// server fails fast instead of stalling the sync loop; inbound regional
// events arrive over a NATS subscription when a messaging client is
// provided.
package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/citiesregional/regiond/internal/region"
	"github.com/citiesregional/regiond/pkg/circuit"
	"github.com/citiesregional/regiond/pkg/messaging"
)

// Client implements the sync transport against the regiond HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	msg     *messaging.Client

	mu       sync.Mutex
	regionID string
	cityID   string
	handler  func(region.Event)
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New builds a client. msgClient may be nil; events then never arrive.
func New(cfg Config, msgClient *messaging.Client) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.NewBreaker(circuit.Config{
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
			HalfOpenMax: 3,
		}),
		msg: msgClient,
	}
}

// SetEventHandler registers the inbound regional-event callback.
func (c *Client) SetEventHandler(handler func(region.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// CreateRegion asks the server for a fresh region and binds the client to it.
func (c *Client) CreateRegion(ctx context.Context, name string, maxCities int) (*region.Region, error) {
	body := map[string]interface{}{"name": name, "maxCities": maxCities}
	var r region.Region
	if err := c.do(ctx, http.MethodPost, "/api/v1/regions", body, &r); err != nil {
		return nil, fmt.Errorf("failed to create region: %w", err)
	}
	c.bind(r.RegionID)
	return &r, nil
}

// ConnectToRegion resolves a join code and binds the client to the region.
func (c *Client) ConnectToRegion(ctx context.Context, code string) (*region.Region, error) {
	var r region.Region
	if err := c.do(ctx, http.MethodGet, "/api/v1/regions/code/"+code, nil, &r); err != nil {
		return nil, fmt.Errorf("failed to connect to region %s: %w", code, err)
	}
	c.bind(r.RegionID)
	return &r, nil
}

// LeaveRegion removes the local city from the region and unbinds the client.
func (c *Client) LeaveRegion(ctx context.Context) error {
	c.mu.Lock()
	regionID, cityID := c.regionID, c.cityID
	c.mu.Unlock()
	if regionID == "" {
		return nil
	}

	if cityID != "" {
		path := fmt.Sprintf("/api/v1/regions/%s/cities/%s", regionID, cityID)
		if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
			return fmt.Errorf("failed to leave region: %w", err)
		}
	}
	c.unbind(regionID)
	return nil
}

// PushCitySnapshot uploads the local city's current snapshot.
func (c *Client) PushCitySnapshot(ctx context.Context, city *region.City) error {
	c.mu.Lock()
	regionID := c.regionID
	c.cityID = city.CityID
	c.mu.Unlock()
	if regionID == "" {
		return fmt.Errorf("not connected to a region")
	}

	path := fmt.Sprintf("/api/v1/regions/%s/cities/%s", regionID, city.CityID)
	if err := c.do(ctx, http.MethodPut, path, city, nil); err != nil {
		return fmt.Errorf("failed to push city snapshot: %w", err)
	}
	return nil
}

// PullAllCitySnapshots downloads every city in the region.
func (c *Client) PullAllCitySnapshots(ctx context.Context) ([]*region.City, error) {
	regionID := c.boundRegion()
	if regionID == "" {
		return nil, fmt.Errorf("not connected to a region")
	}

	var cities []*region.City
	if err := c.do(ctx, http.MethodGet, "/api/v1/regions/"+regionID+"/cities", nil, &cities); err != nil {
		return nil, fmt.Errorf("failed to pull city snapshots: %w", err)
	}
	return cities, nil
}

// PullConnections downloads the region's connection list; the server is
// authoritative for it.
func (c *Client) PullConnections(ctx context.Context) ([]*region.Connection, error) {
	regionID := c.boundRegion()
	if regionID == "" {
		return nil, fmt.Errorf("not connected to a region")
	}

	var conns []*region.Connection
	if err := c.do(ctx, http.MethodGet, "/api/v1/regions/"+regionID+"/connections", nil, &conns); err != nil {
		return nil, fmt.Errorf("failed to pull connections: %w", err)
	}
	return conns, nil
}

// ProposeConnection submits a new connection for the region.
func (c *Client) ProposeConnection(ctx context.Context, conn *region.Connection) error {
	regionID := c.boundRegion()
	if regionID == "" {
		return fmt.Errorf("not connected to a region")
	}

	if err := c.do(ctx, http.MethodPost, "/api/v1/regions/"+regionID+"/connections", conn, nil); err != nil {
		return fmt.Errorf("failed to propose connection: %w", err)
	}
	return nil
}

// BroadcastEvent publishes a regional event through the server.
func (c *Client) BroadcastEvent(ctx context.Context, evt region.Event) error {
	regionID := c.boundRegion()
	if regionID == "" {
		return fmt.Errorf("not connected to a region")
	}

	if err := c.do(ctx, http.MethodPost, "/api/v1/regions/"+regionID+"/events", evt, nil); err != nil {
		return fmt.Errorf("failed to broadcast event: %w", err)
	}
	return nil
}

// Close drops the event subscription, if any.
func (c *Client) Close() {
	c.mu.Lock()
	regionID := c.regionID
	c.mu.Unlock()
	if regionID != "" {
		c.unbind(regionID)
	}
}

func (c *Client) bind(regionID string) {
	c.mu.Lock()
	c.regionID = regionID
	c.mu.Unlock()

	if c.msg != nil {
		c.msg.Subscribe(messaging.RegionEventsSubject(regionID), c.handleEventMsg)
	}
}

func (c *Client) unbind(regionID string) {
	if c.msg != nil {
		c.msg.Unsubscribe(messaging.RegionEventsSubject(regionID))
	}
	c.mu.Lock()
	c.regionID = ""
	c.cityID = ""
	c.mu.Unlock()
}

func (c *Client) boundRegion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regionID
}

func (c *Client) handleEventMsg(msg *nats.Msg) {
	var wire messaging.RegionEventMessage
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		return
	}

	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		return
	}

	handler(region.Event{
		EventID:      wire.EventID,
		Type:         region.EventType(wire.Type),
		Title:        wire.Title,
		Description:  wire.Description,
		SourceCityID: wire.SourceCityID,
		Timestamp:    wire.Timestamp,
	})
}

// do runs one HTTP exchange under the circuit breaker, decoding a JSON
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.breaker.Execute(func() error {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request: %w", err)
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	})
}
