// Package store persists regions behind a small key-value interface. The
// in-memory backend serves tests and single-node deployments; the Redis
// backend lets several regiond instances share state.
package store

import (
	"context"
	"errors"

	"github.com/citiesregional/regiond/internal/region"
)

// ErrNotFound is returned when no region matches the given id or code.
var ErrNotFound = errors.New("region not found")

// Store is the persistence boundary for regions.
type Store interface {
	GetByID(ctx context.Context, regionID string) (*region.Region, error)
	GetByCode(ctx context.Context, regionCode string) (*region.Region, error)
	Save(ctx context.Context, r *region.Region) error
	Delete(ctx context.Context, regionID string) error

	// Update loads a region, applies fn to it, and saves the result, all
	// under the store's own serialization so concurrent read-modify-write
	// cycles cannot interleave.
	Update(ctx context.Context, regionID string, fn func(*region.Region) error) (*region.Region, error)
}
