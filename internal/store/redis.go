package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/speedway/garage-engine/internal/keys"
	"github.com/speedway/garage-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Positions are cached in their fixed binary record layout; the
// ledger as JSON. Apply writes to the primary then invalidates, so a cache
// miss always re-reads committed state.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

func (s *CachedStore) GetPosition(ctx context.Context, owner model.Identity) (*model.Position, error) {
	key := cachePositionKey(owner)
	if raw, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var p model.Position
		if err := p.UnmarshalBinary(raw); err == nil {
			if err := keys.ValidateOwnership(&p, owner); err == nil {
				return &p, nil
			}
		}
		// Corrupt or mismatched cache entry: drop it and fall through.
		s.rdb.Del(ctx, key)
	}

	p, err := s.primary.GetPosition(ctx, owner)
	if err != nil {
		return nil, err
	}
	if raw, err := p.MarshalBinary(); err == nil {
		s.rdb.Set(ctx, key, raw, s.ttl)
	}
	return p, nil
}

func (s *CachedStore) GetLedger(ctx context.Context) (*model.Ledger, error) {
	key := cacheLedgerKey()
	if raw, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var l model.Ledger
		if err := json.Unmarshal(raw, &l); err == nil {
			return &l, nil
		}
		s.rdb.Del(ctx, key)
	}

	l, err := s.primary.GetLedger(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(l); err == nil {
		s.rdb.Set(ctx, key, raw, s.ttl)
	}
	return l, nil
}

func (s *CachedStore) Apply(ctx context.Context, mut *Mutation) error {
	if err := s.primary.Apply(ctx, mut); err != nil {
		return err
	}
	// Invalidate after commit; next read re-populates.
	for i := range mut.Positions {
		s.rdb.Del(ctx, cachePositionKey(mut.Positions[i].Owner))
	}
	if mut.Ledger != nil {
		s.rdb.Del(ctx, cacheLedgerKey())
	}
	return nil
}

func (s *CachedStore) GetEventsByAuthority(ctx context.Context, authority model.Identity) ([]model.Event, error) {
	// Event history is append-only and rarely read; no caching.
	return s.primary.GetEventsByAuthority(ctx, authority)
}

func cachePositionKey(owner model.Identity) string {
	return "cache:" + keys.Garage(owner)
}

func cacheLedgerKey() string {
	return "cache:" + keys.Ledger()
}
