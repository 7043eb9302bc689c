package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/yhensel/burgers-api/internal/domain/entity"
	"github.com/yhensel/burgers-api/pkg/helpers"
)

const (
	keyPrefix = "user:"
	genSuffix = ":gen"

	// generations outlive any in-flight fill by a wide margin
	genTTL = 24 * time.Hour
)

func userKey(id string) string { return keyPrefix + id }
func genKey(id string) string  { return keyPrefix + id + genSuffix }

// setIfGen writes KEYS[1] only while KEYS[2] (missing counts as 0) equals ARGV[1].
var setIfGen = redis.NewScript(`
local g = redis.call('GET', KEYS[2]) or '0'
if g ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisUserCache stores public user records as JSON under user:<id>, guarded by
// a generation counter under user:<id>:gen.
type RedisUserCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisUserCache(rdb redis.Cmdable, ttl time.Duration) *RedisUserCache {
	return &RedisUserCache{rdb: rdb, ttl: ttl}
}

func (c *RedisUserCache) Get(ctx context.Context, id string) (*entity.User, bool, error) {
	var u entity.User
	ok, err := helpers.RedisGetJSON(ctx, c.rdb, userKey(id), &u)
	if err != nil || !ok {
		return nil, false, err
	}
	return &u, true, nil
}

func (c *RedisUserCache) Generation(ctx context.Context, id string) (int64, error) {
	g, err := c.rdb.Get(ctx, genKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return g, err
}

// Set caches u when id's generation is still gen. Password is tagged json:"-"
// so the hash never reaches Redis.
func (c *RedisUserCache) Set(ctx context.Context, u *entity.User, gen int64) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	keys := []string{userKey(u.ID), genKey(u.ID)}
	return setIfGen.Run(ctx, c.rdb, keys, strconv.FormatInt(gen, 10), b, c.ttl.Milliseconds()).Err()
}

// Delete drops the entry and bumps the generation in one transaction.
func (c *RedisUserCache) Delete(ctx context.Context, id string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, userKey(id))
		pipe.Incr(ctx, genKey(id))
		pipe.Expire(ctx, genKey(id), genTTL)
		return nil
	})
	return err
}

// MemoryUserCache is an in-process cache for single-instance deployments without
// Redis. Invalidations on one process never reach another.
type MemoryUserCache struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func NewMemoryUserCache(ttl time.Duration) *MemoryUserCache {
	return &MemoryUserCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryUserCache) Get(_ context.Context, id string) (*entity.User, bool, error) {
	v, found := m.c.Get(userKey(id))
	if !found {
		return nil, false, nil
	}
	return v.(*entity.User).Clone(), true, nil
}

func (m *MemoryUserCache) Generation(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen(id), nil
}

func (m *MemoryUserCache) gen(id string) int64 {
	if v, ok := m.c.Get(genKey(id)); ok {
		return v.(int64)
	}
	return 0
}

func (m *MemoryUserCache) Set(_ context.Context, u *entity.User, gen int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen(u.ID) != gen {
		return nil
	}
	cp := u.Clone()
	cp.Password = ""
	m.c.Set(userKey(u.ID), cp, gocache.DefaultExpiration)
	return nil
}

func (m *MemoryUserCache) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Delete(userKey(id))
	m.c.Set(genKey(id), m.gen(id)+1, genTTL)
	return nil
}
