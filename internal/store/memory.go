package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/citiesregional/regiond/internal/region"
)

// Memory is an in-process region store. Regions are stored as deep copies so
// callers never share mutable state with the store.
type Memory struct {
	mu      sync.Mutex
	regions map[string]*region.Region
	byCode  map[string]string // code -> id
}

// NewMemory builds an empty store.
func NewMemory() *Memory {
	return &Memory{
		regions: make(map[string]*region.Region),
		byCode:  make(map[string]string),
	}
}

func (m *Memory) GetByID(ctx context.Context, regionID string) (*region.Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(regionID)
}

func (m *Memory) GetByCode(ctx context.Context, regionCode string) (*region.Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byCode[regionCode]
	if !ok {
		return nil, ErrNotFound
	}
	return m.getLocked(id)
}

func (m *Memory) Save(ctx context.Context, r *region.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(r)
}

func (m *Memory) Delete(ctx context.Context, regionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.regions[regionID]
	if !ok {
		return ErrNotFound
	}
	delete(m.byCode, r.RegionCode)
	delete(m.regions, regionID)
	return nil
}

func (m *Memory) Update(ctx context.Context, regionID string, fn func(*region.Region) error) (*region.Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.getLocked(regionID)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	if err := m.saveLocked(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (m *Memory) getLocked(regionID string) (*region.Region, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRegion(r)
}

func (m *Memory) saveLocked(r *region.Region) error {
	cp, err := cloneRegion(r)
	if err != nil {
		return err
	}
	cp.LastActivity = time.Now().UTC()
	m.regions[cp.RegionID] = cp
	m.byCode[cp.RegionCode] = cp.RegionID
	return nil
}

// cloneRegion deep-copies through JSON, the same round trip the wire uses.
func cloneRegion(r *region.Region) (*region.Region, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var cp region.Region
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
