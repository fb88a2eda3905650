package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const debounceKeyPrefix = "fleetmon:debounce:"

// transitionScript runs the whole state machine server-side so concurrent
// evaluators (ingestion and the status monitor race on the same target)
// observe one atomic read-modify-write per condition key.
// KEYS[1] entry key; ARGV: now(unix), window(sec), active("1"/"0"), ttl(sec).
// Returns 1 to send, 0 to stay silent.
var transitionScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local active = ARGV[3] == '1'
local ttl = tonumber(ARGV[4])
if not v then
  if active then
    redis.call('SET', KEYS[1], 'alert:' .. now, 'EX', ttl)
    return 1
  end
  return 0
end
local sep = string.find(v, ':')
local status = string.sub(v, 1, sep - 1)
local ts = tonumber(string.sub(v, sep + 1))
if active then
  if status == 'ok' or (now - ts) >= window then
    redis.call('SET', KEYS[1], 'alert:' .. now, 'EX', ttl)
    return 1
  end
  return 0
end
redis.call('SET', KEYS[1], 'ok:' .. now, 'EX', ttl)
return 0
`)

// RedisDebounceStore keeps debounce entries in Redis so restarts do not
// replay every standing alert. Entries carry a TTL, which is also the stale
// purge: PurgeStale has nothing left to do.
type RedisDebounceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDebounceStore(rdb *redis.Client, ttl time.Duration) *RedisDebounceStore {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisDebounceStore{rdb: rdb, ttl: ttl}
}

func (r *RedisDebounceStore) Transition(ctx context.Context, key Key, active bool, window time.Duration, now time.Time) (bool, error) {
	activeArg := "0"
	if active {
		activeArg = "1"
	}
	res, err := transitionScript.Run(ctx, r.rdb,
		[]string{debounceKeyPrefix + key.String()},
		now.Unix(), int64(window.Seconds()), activeArg, int64(r.ttl.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("debounce transition %s: %w", key, err)
	}
	return res == 1, nil
}

func (r *RedisDebounceStore) PurgeStale(ctx context.Context, cutoff time.Time) (int, error) {
	// TTL-based expiry covers this.
	return 0, nil
}
