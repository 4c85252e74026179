package repo

import (
	"github.com/redis/go-redis/v9"
)

var windowIncrScript = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = window_ms

local cnt = redis.call('INCR', KEYS[1])
if cnt == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end

local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  -- key lost its expiry (e.g. migrated); restore the window
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end

return {cnt, ttl}
`)
