package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hushhire/internal/assessment/model"
	"hushhire/internal/common/cache"
	appErr "hushhire/pkg/errors"
)

const snapshotKeyPrefix = "assessment:status:"

// StatusCache keeps the latest lifecycle snapshot per token so the
// candidate page can poll progress without hitting the database.
type StatusCache struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewStatusCache creates a status cache with the given snapshot TTL.
func NewStatusCache(cacheClient cache.Cache, ttl time.Duration) *StatusCache {
	return &StatusCache{cache: cacheClient, TTL: ttl}
}

// Get returns the latest snapshot for a token.
func (r *StatusCache) Get(ctx context.Context, token string) (model.StatusSnapshot, error) {
	if token == "" {
		return model.StatusSnapshot{}, appErr.ValidationError("token", "required")
	}
	if r.cache == nil {
		return model.StatusSnapshot{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, snapshotKeyPrefix+token)
	if err != nil || val == "" {
		return model.StatusSnapshot{}, appErr.New(appErr.NotFound).WithMessage("assessment status not found")
	}
	var snap model.StatusSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return model.StatusSnapshot{}, appErr.Wrapf(err, appErr.CacheError, "decode status snapshot failed")
	}
	return snap, nil
}

// Save persists a snapshot.
func (r *StatusCache) Save(ctx context.Context, token string, snap model.StatusSnapshot) error {
	if token == "" {
		return appErr.ValidationError("token", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal status snapshot failed: %w", err)
	}
	if err := r.cache.Set(ctx, snapshotKeyPrefix+token, string(data), r.TTL); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status snapshot failed")
	}
	return nil
}
