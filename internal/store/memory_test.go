package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citiesregional/regiond/internal/region"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save and load", func(t *testing.T) {
		m := NewMemory()
		r := region.New("Test Region", 4)
		require.NoError(t, m.Save(ctx, r))

		got, err := m.GetByID(ctx, r.RegionID)
		require.NoError(t, err)
		assert.Equal(t, r.RegionID, got.RegionID)
		assert.Equal(t, "Test Region", got.RegionName)

		byCode, err := m.GetByCode(ctx, r.RegionCode)
		require.NoError(t, err)
		assert.Equal(t, r.RegionID, byCode.RegionID)
	})

	t.Run("missing region", func(t *testing.T) {
		m := NewMemory()
		_, err := m.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = m.GetByCode(ctx, "NOPE-NOPE")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, m.Delete(ctx, "nope"), ErrNotFound)
	})

	t.Run("loads are isolated copies", func(t *testing.T) {
		m := NewMemory()
		r := region.New("Test Region", 4)
		require.NoError(t, m.Save(ctx, r))

		first, err := m.GetByID(ctx, r.RegionID)
		require.NoError(t, err)
		first.AddCity(&region.City{CityID: "a", CityName: "Alpha"})

		second, err := m.GetByID(ctx, r.RegionID)
		require.NoError(t, err)
		assert.Empty(t, second.Cities)
	})

	t.Run("update persists the mutation", func(t *testing.T) {
		m := NewMemory()
		r := region.New("Test Region", 4)
		require.NoError(t, m.Save(ctx, r))

		updated, err := m.Update(ctx, r.RegionID, func(r *region.Region) error {
			if !r.AddCity(&region.City{CityID: "a", CityName: "Alpha"}) {
				return errors.New("add failed")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, updated.Cities, 1)

		got, err := m.GetByID(ctx, r.RegionID)
		require.NoError(t, err)
		assert.Len(t, got.Cities, 1)
	})

	t.Run("update error leaves the region untouched", func(t *testing.T) {
		m := NewMemory()
		r := region.New("Test Region", 4)
		require.NoError(t, m.Save(ctx, r))

		boom := errors.New("boom")
		_, err := m.Update(ctx, r.RegionID, func(r *region.Region) error {
			r.AddCity(&region.City{CityID: "a", CityName: "Alpha"})
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := m.GetByID(ctx, r.RegionID)
		require.NoError(t, err)
		assert.Empty(t, got.Cities)
	})

	t.Run("delete removes both indexes", func(t *testing.T) {
		m := NewMemory()
		r := region.New("Test Region", 4)
		require.NoError(t, m.Save(ctx, r))
		require.NoError(t, m.Delete(ctx, r.RegionID))

		_, err := m.GetByID(ctx, r.RegionID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = m.GetByCode(ctx, r.RegionCode)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
