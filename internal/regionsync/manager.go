// Package regionsync runs the client-side sync loop: every interval it
// collects the local city snapshot, pushes it, pulls the region's cities and
// connections back, recomputes trade flows, and applies their economic
// effects to the local city. The server stays authoritative for membership
// and connections; this package only orchestrates.
package regionsync

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/citiesregional/regiond/internal/region"
	"github.com/citiesregional/regiond/internal/trade"
)

// ConnectionStatus is the orchestrator's lifecycle state.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Sync loop timing bounds.
const (
	DefaultSyncInterval = 120 * time.Second
	MinSyncInterval     = 10 * time.Second
	stopWait            = 5 * time.Second
)

// Transport moves snapshots and events between this node and the region
// server.
type Transport interface {
	CreateRegion(ctx context.Context, name string, maxCities int) (*region.Region, error)
	ConnectToRegion(ctx context.Context, code string) (*region.Region, error)
	LeaveRegion(ctx context.Context) error
	PushCitySnapshot(ctx context.Context, city *region.City) error
	PullAllCitySnapshots(ctx context.Context) ([]*region.City, error)
	PullConnections(ctx context.Context) ([]*region.Connection, error)
	ProposeConnection(ctx context.Context, conn *region.Connection) error
	BroadcastEvent(ctx context.Context, evt region.Event) error
	SetEventHandler(func(region.Event))
}

// SnapshotProvider produces the local city's current snapshot.
type SnapshotProvider interface {
	Collect() *region.City
}

// EffectsApplicator applies a cycle's trade and commuter outcomes to the
// local city.
type EffectsApplicator interface {
	ApplyTradeEffects(city *region.City, flows []region.TradeFlow)
	ApplyCommuterEffects(city *region.City, reg *region.Region)
}

// Observers receive orchestrator callbacks. All fields are optional.
// Callbacks run on the sync goroutine; keep them quick.
type Observers struct {
	OnRegionUpdated           func(*region.Region)
	OnConnectionStatusChanged func(ConnectionStatus)
	OnRegionalEvent           func(region.Event)
}

// Config holds orchestrator settings.
type Config struct {
	// SyncInterval between cycles. Zero means the default; anything under
	// the minimum is clamped up to it.
	SyncInterval time.Duration
}

// LeaderboardEntry ranks one city.
type LeaderboardEntry struct {
	CityID     string  `json:"cityId"`
	CityName   string  `json:"cityName"`
	Population int     `json:"population"`
	GDP        float64 `json:"gdp"`
	Happiness  float64 `json:"happiness"`
	Rank       int     `json:"rank"`
}

// Manager drives the sync loop for one local city.
type Manager struct {
	transport Transport
	snapshots SnapshotProvider
	effects   EffectsApplicator
	observers Observers
	interval  time.Duration

	mu          sync.Mutex
	status      ConnectionStatus
	region      *region.Region
	localCityID string
	stats       *trade.Statistics
	lastSync    time.Time
	lastErr     error

	stop chan struct{}
	done chan struct{}
}

// NewManager wires the orchestrator. transport, snapshots, and effects are
// required.
func NewManager(cfg Config, transport Transport, snapshots SnapshotProvider, effects EffectsApplicator, observers Observers) *Manager {
	interval := cfg.SyncInterval
	if interval == 0 {
		interval = DefaultSyncInterval
	}
	if interval < MinSyncInterval {
		interval = MinSyncInterval
	}

	m := &Manager{
		transport: transport,
		snapshots: snapshots,
		effects:   effects,
		observers: observers,
		interval:  interval,
	}
	transport.SetEventHandler(m.handleRegionalEvent)
	return m
}

// CreateRegion makes a new region on the server, registers the local city in
// it, and starts the sync loop.
func (m *Manager) CreateRegion(ctx context.Context, name string, maxCities int) (*region.Region, error) {
	return m.connect(ctx, func(ctx context.Context) (*region.Region, error) {
		return m.transport.CreateRegion(ctx, name, maxCities)
	})
}

// JoinRegion resolves a join code, registers the local city, and starts the
// sync loop.
func (m *Manager) JoinRegion(ctx context.Context, code string) (*region.Region, error) {
	return m.connect(ctx, func(ctx context.Context) (*region.Region, error) {
		return m.transport.ConnectToRegion(ctx, code)
	})
}

func (m *Manager) connect(ctx context.Context, dial func(context.Context) (*region.Region, error)) (*region.Region, error) {
	m.mu.Lock()
	if m.status != StatusDisconnected {
		m.mu.Unlock()
		return nil, fmt.Errorf("already connected to region")
	}
	m.status = StatusConnecting
	m.mu.Unlock()
	m.notifyStatus(StatusConnecting)

	r, err := dial(ctx)
	if err != nil {
		m.setDisconnected()
		return nil, err
	}

	// Register the local city before the first pull so it is part of the
	// snapshot set from cycle one.
	city := m.snapshots.Collect()
	if err := m.transport.PushCitySnapshot(ctx, city); err != nil {
		m.transport.LeaveRegion(ctx)
		m.setDisconnected()
		return nil, fmt.Errorf("failed to register city: %w", err)
	}

	m.mu.Lock()
	m.status = StatusConnected
	m.region = r
	m.localCityID = city.CityID
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()
	m.notifyStatus(StatusConnected)

	go m.run(stop, done)

	if err := m.ForceSyncNow(ctx); err != nil {
		log.Printf("initial sync failed: %v", err)
	}
	return m.Region(), nil
}

// LeaveRegion stops the sync loop, waiting a bounded time for an in-flight
// cycle, then removes the local city from the region.
func (m *Manager) LeaveRegion(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusDisconnected {
		m.mu.Unlock()
		return nil
	}
	stop, done := m.stop, m.done
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		select {
		case <-done:
		case <-time.After(stopWait):
			log.Printf("sync loop did not stop within %v, leaving anyway", stopWait)
		}
	}

	err := m.transport.LeaveRegion(ctx)

	m.mu.Lock()
	m.status = StatusDisconnected
	m.region = nil
	m.localCityID = ""
	m.stats = nil
	m.stop = nil
	m.done = nil
	m.mu.Unlock()
	m.notifyStatus(StatusDisconnected)
	return err
}

// ForceSyncNow runs one sync cycle immediately. Disconnected managers treat
// it as a no-op.
func (m *Manager) ForceSyncNow(ctx context.Context) error {
	m.mu.Lock()
	connected := m.status == StatusConnected
	m.mu.Unlock()
	if !connected {
		return nil
	}
	return m.syncCycle(ctx)
}

func (m *Manager) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.interval)
			if err := m.syncCycle(ctx); err != nil {
				log.Printf("sync cycle failed: %v", err)
			}
			cancel()
		}
	}
}

// syncCycle is one full exchange: push the local snapshot, pull the region
// back, recompute flows, and apply their effects locally. A failed cycle
// leaves the previous region state intact.
func (m *Manager) syncCycle(ctx context.Context) error {
	city := m.snapshots.Collect()

	if err := m.transport.PushCitySnapshot(ctx, city); err != nil {
		return m.cycleErr(fmt.Errorf("push failed: %w", err))
	}

	cities, err := m.transport.PullAllCitySnapshots(ctx)
	if err != nil {
		return m.cycleErr(fmt.Errorf("pull cities failed: %w", err))
	}
	conns, err := m.transport.PullConnections(ctx)
	if err != nil {
		return m.cycleErr(fmt.Errorf("pull connections failed: %w", err))
	}

	m.mu.Lock()
	r := m.region
	if r == nil {
		m.mu.Unlock()
		return nil
	}
	r.ReplaceCities(cities)
	r.ReplaceConnections(conns)

	flows := r.CalculateTradeFlowsDefault()
	if problems := trade.ValidateFlows(flows, r); len(problems) > 0 {
		for _, p := range problems {
			log.Printf("trade validation: %s", p)
		}
	}

	if local := r.GetCity(m.localCityID); local != nil {
		m.effects.ApplyTradeEffects(local, flows)
		m.effects.ApplyCommuterEffects(local, r)
	}

	m.stats = trade.Summarize(flows, r)
	m.lastSync = time.Now().UTC()
	m.lastErr = nil
	snapshot := cloneRegion(r)
	m.mu.Unlock()

	if m.observers.OnRegionUpdated != nil {
		m.observers.OnRegionUpdated(snapshot)
	}
	return nil
}

func (m *Manager) cycleErr(err error) error {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	return err
}

func (m *Manager) handleRegionalEvent(evt region.Event) {
	if m.observers.OnRegionalEvent != nil {
		m.observers.OnRegionalEvent(evt)
	}
}

// ProposeConnection submits a connection between the local city and a peer.
func (m *Manager) ProposeConnection(ctx context.Context, toCityID string, connType region.ConnectionType) error {
	m.mu.Lock()
	connected := m.status == StatusConnected
	localID := m.localCityID
	m.mu.Unlock()
	if !connected {
		return fmt.Errorf("not connected to a region")
	}

	conn := region.NewConnection(localID, toCityID, connType)
	return m.transport.ProposeConnection(ctx, conn)
}

// BroadcastEvent publishes a regional event on behalf of the local city.
func (m *Manager) BroadcastEvent(ctx context.Context, evt region.Event) error {
	m.mu.Lock()
	connected := m.status == StatusConnected
	localID := m.localCityID
	m.mu.Unlock()
	if !connected {
		return fmt.Errorf("not connected to a region")
	}

	if evt.SourceCityID == "" {
		evt.SourceCityID = localID
	}
	return m.transport.BroadcastEvent(ctx, evt)
}

// Status returns the current connection state.
func (m *Manager) Status() ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Region returns a copy of the latest region state, nil when disconnected.
func (m *Manager) Region() *region.Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.region == nil {
		return nil
	}
	return cloneRegion(m.region)
}

// LocalCityID is the id the local city syncs under, empty when disconnected.
func (m *Manager) LocalCityID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.localCityID
}

// Statistics returns the last cycle's trade statistics, nil before the first
// successful cycle.
func (m *Manager) Statistics() *trade.Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// LastSyncTime is when the last successful cycle finished.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}

// LastError is the most recent cycle failure, nil after a clean cycle.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Leaderboard ranks the region's cities by GDP, descending.
func (m *Manager) Leaderboard() []LeaderboardEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.region == nil {
		return nil
	}

	entries := make([]LeaderboardEntry, 0, len(m.region.Cities))
	for _, c := range m.region.Cities {
		entries = append(entries, LeaderboardEntry{
			CityID:     c.CityID,
			CityName:   c.CityName,
			Population: c.Population,
			GDP:        c.GDPEstimate,
			Happiness:  c.Happiness,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].GDP > entries[j].GDP
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func (m *Manager) setDisconnected() {
	m.mu.Lock()
	m.status = StatusDisconnected
	m.mu.Unlock()
	m.notifyStatus(StatusDisconnected)
}

func (m *Manager) notifyStatus(s ConnectionStatus) {
	if m.observers.OnConnectionStatusChanged != nil {
		m.observers.OnConnectionStatusChanged(s)
	}
}

// cloneRegion copies the region with fresh slices so callers can read it
// without racing the sync loop. City and connection values are shared; they
// are treated as immutable snapshots once published.
func cloneRegion(r *region.Region) *region.Region {
	out := *r
	out.Cities = append([]*region.City(nil), r.Cities...)
	out.Connections = append([]*region.Connection(nil), r.Connections...)
	out.Events = append([]region.Event(nil), r.Events...)
	return &out
}
