package ratelimit

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps window timestamps in a sorted set per key, scored by
// nanosecond timestamps, so counting and trimming are single range ops.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// recordScript trims expired members, counts the remainder and appends the
// new timestamp only when the count is under the limit. Runs atomically
// server-side so concurrent requests cannot overshoot the limit.
var recordScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, ARGV[1] .. ':' .. ARGV[4])
	redis.call('PEXPIRE', key, math.ceil(window / 1000000))
	return {1, count + 1}
end
return {0, count}
`)

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// memberSeq makes set members unique even when two requests land on the
// same nanosecond, so neither hit is lost to member collapse.
var memberSeq atomic.Uint64

func (s *RedisStore) Record(ctx context.Context, key string, ts time.Time, window time.Duration, limit int) (bool, int64, error) {
	res, err := recordScript.Run(ctx, s.client, []string{s.prefix + ":" + key},
		strconv.FormatInt(ts.UnixNano(), 10),
		strconv.FormatInt(window.Nanoseconds(), 10),
		strconv.Itoa(limit),
		strconv.FormatUint(memberSeq.Add(1), 10),
	).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, redis.Nil
	}
	return res[0] == 1, res[1], nil
}
