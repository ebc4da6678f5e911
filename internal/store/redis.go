package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/citiesregional/regiond/internal/region"
)

const (
	regionKeyPrefix = "region:"
	codeKeyPrefix   = "region:code:"
	lockKeyPrefix   = "region:lock:"

	lockTTL     = 10 * time.Second
	lockRetries = 50
	lockBackoff = 100 * time.Millisecond
)

// Redis stores regions as JSON blobs with a code->id index, so multiple
// regiond instances can serve the same regions.
type Redis struct {
	client *redis.Client
}

// NewRedis builds a store over an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) GetByID(ctx context.Context, regionID string) (*region.Region, error) {
	raw, err := s.client.Get(ctx, regionKeyPrefix+regionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load region %s: %w", regionID, err)
	}

	var r region.Region
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode region %s: %w", regionID, err)
	}
	return &r, nil
}

func (s *Redis) GetByCode(ctx context.Context, regionCode string) (*region.Region, error) {
	id, err := s.client.Get(ctx, codeKeyPrefix+regionCode).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve region code %s: %w", regionCode, err)
	}
	return s.GetByID(ctx, id)
}

func (s *Redis) Save(ctx context.Context, r *region.Region) error {
	r.LastActivity = time.Now().UTC()
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode region %s: %w", r.RegionID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, regionKeyPrefix+r.RegionID, raw, 0)
	pipe.Set(ctx, codeKeyPrefix+r.RegionCode, r.RegionID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save region %s: %w", r.RegionID, err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, regionID string) error {
	r, err := s.GetByID(ctx, regionID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, regionKeyPrefix+regionID)
	pipe.Del(ctx, codeKeyPrefix+r.RegionCode)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete region %s: %w", regionID, err)
	}
	return nil
}

// Update serializes read-modify-write through a best-effort Redis lock.
func (s *Redis) Update(ctx context.Context, regionID string, fn func(*region.Region) error) (*region.Region, error) {
	lockKey := lockKeyPrefix + regionID
	acquired := false
	for i := 0; i < lockRetries; i++ {
		ok, err := s.client.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire region lock %s: %w", regionID, err)
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	if !acquired {
		return nil, fmt.Errorf("region %s is locked", regionID)
	}
	defer s.client.Del(ctx, lockKey)

	r, err := s.GetByID(ctx, regionID)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
