// Package cache holds the Redis read-through cache for single department
// lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/abteilung-service/internal/domain"
)

// DepartmentCache stores departments as JSON keyed by id and the employee
// loading flag.
type DepartmentCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewDepartmentCache wraps client. Entries expire after ttl.
func NewDepartmentCache(client *redis.Client, ttl time.Duration) *DepartmentCache {
	return &DepartmentCache{client: client, ttl: ttl, prefix: "department"}
}

// setScript writes the entry unless its version is below the recorded floor.
// KEYS: entry, floor. ARGV: version, payload, ttl in milliseconds.
var setScript = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '-1')
if tonumber(ARGV[1]) < floor then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// invalidateScript drops both entries and raises the floor, never lowers it.
// KEYS: entry without employees, entry with employees, floor.
// ARGV: minimum version, ttl in milliseconds.
var invalidateScript = redis.NewScript(`
redis.call('DEL', KEYS[1], KEYS[2])
local floor = tonumber(redis.call('GET', KEYS[3]) or '-1')
if tonumber(ARGV[1]) > floor then
  if tonumber(ARGV[2]) > 0 then
    redis.call('SET', KEYS[3], ARGV[1], 'PX', ARGV[2])
  else
    redis.call('SET', KEYS[3], ARGV[1])
  end
end
return 1
`)

func (c *DepartmentCache) key(id int64, withEmployees bool) string {
	return fmt.Sprintf("%s:%d:%t", c.prefix, id, withEmployees)
}

func (c *DepartmentCache) floorKey(id int64) string {
	return fmt.Sprintf("%s:%d:floor", c.prefix, id)
}

// Get returns the cached department and whether it was present.
func (c *DepartmentCache) Get(ctx context.Context, id int64, withEmployees bool) (*domain.Department, bool, error) {
	raw, err := c.client.Get(ctx, c.key(id, withEmployees)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var dept domain.Department
	if err := json.Unmarshal(raw, &dept); err != nil {
		return nil, false, fmt.Errorf("decode cached department %d: %w", id, err)
	}
	return &dept, true, nil
}

// Set stores dept under its id. It is a no-op when dept is older than the
// floor left by the last Invalidate.
func (c *DepartmentCache) Set(ctx context.Context, dept *domain.Department, withEmployees bool) error {
	raw, err := json.Marshal(dept)
	if err != nil {
		return err
	}
	keys := []string{c.key(dept.ID, withEmployees), c.floorKey(dept.ID)}
	return setScript.Run(ctx, c.client, keys, dept.Version, raw, c.ttl.Milliseconds()).Err()
}

// Invalidate drops both cached variants of id and refuses later writes of
// versions below minVersion.
func (c *DepartmentCache) Invalidate(ctx context.Context, id int64, minVersion int) error {
	keys := []string{c.key(id, false), c.key(id, true), c.floorKey(id)}
	return invalidateScript.Run(ctx, c.client, keys, minVersion, c.ttl.Milliseconds()).Err()
}
