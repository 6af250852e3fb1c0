package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"studio-backend/internal/shared/telemetry"
)

const (
	cacheKeyPrefix = "catalog:module:"
	cacheTTL       = 5 * time.Minute
)

// CachedRepo layers a Redis descriptor cache over another Repo.
// Cache failures fall through to the underlying repo.
type CachedRepo struct {
	Next Repo
	RDB  *redis.Client
}

// NewCachedRepo wraps next with a Redis cache.
func NewCachedRepo(next Repo, rdb *redis.Client) *CachedRepo {
	return &CachedRepo{Next: next, RDB: rdb}
}

// GetByID returns a cached descriptor, filling the cache on miss.
func (r *CachedRepo) GetByID(ctx context.Context, moduleID string) (ModuleDescriptor, error) {
	key := cacheKeyPrefix + moduleID

	raw, err := r.RDB.Get(ctx, key).Bytes()
	if err == nil {
		var d ModuleDescriptor
		if jsonErr := json.Unmarshal(raw, &d); jsonErr == nil {
			return d, nil
		}
		// Poisoned entry: drop it and reload.
		r.RDB.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		telemetry.Error("catalog.cache.get_failed", map[string]any{
			"module_id": moduleID,
			"err":       err.Error(),
		})
	}

	d, err := r.Next.GetByID(ctx, moduleID)
	if err != nil {
		return ModuleDescriptor{}, err
	}

	if payload, jsonErr := json.Marshal(d); jsonErr == nil {
		if setErr := r.RDB.Set(ctx, key, payload, cacheTTL).Err(); setErr != nil {
			telemetry.Error("catalog.cache.set_failed", map[string]any{
				"module_id": moduleID,
				"err":       setErr.Error(),
			})
		}
	}
	return d, nil
}

// List is not cached; listings are rare compared to per-session lookups.
func (r *CachedRepo) List(ctx context.Context) ([]ModuleDescriptor, error) {
	return r.Next.List(ctx)
}

var _ Repo = (*CachedRepo)(nil)
