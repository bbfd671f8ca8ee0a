package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9" // Redis client
)

// Registry records which session ids are live. A token whose id is missing
// from the registry is rejected even if its signature and expiry are valid.
type Registry interface {
	Save(ctx context.Context, id string, userID uint, ttl time.Duration) error
	// Lookup reports the user the session belongs to, and whether it exists
	Lookup(ctx context.Context, id string) (uint, bool, error)
	Delete(ctx context.Context, id string) error
}

const redisKeyPrefix = "session:"

// RedisRegistry keeps sessions as expiring Redis keys
type RedisRegistry struct {
	rdb *redis.Client
}

// NewRedisRegistry wraps a connected client
func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

func (r *RedisRegistry) Save(ctx context.Context, id string, userID uint, ttl time.Duration) error {
	return r.rdb.Set(ctx, redisKeyPrefix+id, strconv.FormatUint(uint64(userID), 10), ttl).Err()
}

func (r *RedisRegistry) Lookup(ctx context.Context, id string) (uint, bool, error) {
	val, err := r.rdb.Get(ctx, redisKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // Session expired or revoked
	} else if err != nil {
		return 0, false, err
	}
	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return uint(userID), true, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, redisKeyPrefix+id).Err()
}

type memoryEntry struct {
	userID    uint
	expiresAt time.Time
}

// memorySweepInterval is how often Save drops expired sessions
const memorySweepInterval = time.Minute

// MemoryRegistry is a process-local Registry. Sessions do not survive a restart.
type MemoryRegistry struct {
	mu        sync.Mutex
	sessions  map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]memoryEntry), now: time.Now}
}

func (r *MemoryRegistry) Save(_ context.Context, id string, userID uint, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)
	r.sessions[id] = memoryEntry{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

// sweep drops sessions that expired without being used again. Callers hold mu.
func (r *MemoryRegistry) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < memorySweepInterval {
		return
	}
	r.lastSweep = now
	for id, e := range r.sessions {
		if !now.Before(e.expiresAt) {
			delete(r.sessions, id)
		}
	}
}

// Len is the number of stored sessions, expired ones not yet swept included
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *MemoryRegistry) Lookup(_ context.Context, id string) (uint, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return 0, false, nil
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.sessions, id)
		return 0, false, nil
	}
	return e.userID, true, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}
