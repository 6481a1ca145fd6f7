// Package cache owns the admin id set used by the moderation queue.  The set
// is read on every moderator queue request and changes only when a role is
// updated, so it is cached with a bounded staleness and invalidated
// explicitly from the role mutation path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// AdminKey is the Redis key holding the JSON encoded admin id list.
const AdminKey = "admins:ids"

// Loader reads the authoritative admin id list, normally
// repository.UserStore.ListAdminIDs.
type Loader func(ctx context.Context) ([]string, error)

// AdminIDs caches the admin id set.  When rdb is nil the set is held in
// process; otherwise Redis is the shared copy and a Redis failure falls back
// to the loader.
type AdminIDs struct {
	load Loader
	rdb  *redis.Client
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	ids     []string
	expires time.Time
}

// NewAdminIDs returns a cache over load.  A non-positive ttl defaults to
// five minutes.
func NewAdminIDs(load Loader, rdb *redis.Client, ttl time.Duration) *AdminIDs {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AdminIDs{load: load, rdb: rdb, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source of the in-process copy.
func (a *AdminIDs) WithClock(now func() time.Time) *AdminIDs {
	a.now = now
	return a
}

// IDs returns the admin ids, at most ttl old.
func (a *AdminIDs) IDs(ctx context.Context) ([]string, error) {
	if a.rdb != nil {
		return a.fromRedis(ctx)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ids != nil && a.now().Before(a.expires) {
		return clone(a.ids), nil
	}
	ids, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}
	a.ids, a.expires = ids, a.now().Add(a.ttl)
	return clone(ids), nil
}

func (a *AdminIDs) fromRedis(ctx context.Context) ([]string, error) {
	bs, err := a.rdb.Get(ctx, AdminKey).Bytes()
	if err == nil {
		var ids []string
		if jerr := json.Unmarshal(bs, &ids); jerr == nil {
			return ids, nil
		}
		log.Warnf("[cache] dropping undecodable %s", AdminKey)
	} else if !errors.Is(err, redis.Nil) {
		log.Warnf("[cache] redis get %s: %v", AdminKey, err)
	}
	ids, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if payload, jerr := json.Marshal(ids); jerr == nil {
		if serr := a.rdb.SetEx(ctx, AdminKey, payload, a.ttl).Err(); serr != nil {
			log.Warnf("[cache] redis set %s: %v", AdminKey, serr)
		}
	}
	return ids, nil
}

func (a *AdminIDs) fetch(ctx context.Context) ([]string, error) {
	ids, err := a.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load admin ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Invalidate drops the cached set so the next read reloads it.
func (a *AdminIDs) Invalidate(ctx context.Context) {
	a.mu.Lock()
	a.ids = nil
	a.mu.Unlock()
	if a.rdb != nil {
		if err := a.rdb.Del(ctx, AdminKey).Err(); err != nil {
			log.Warnf("[cache] redis del %s: %v", AdminKey, err)
		}
	}
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
