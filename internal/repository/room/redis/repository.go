package redis

import (
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc             *redis.Client
	maxFieldScript *redis.Script
	expireDuration time.Duration
}

func NewRepo(rc *redis.Client, expireDuration time.Duration) *repo {
	return &repo{
		rc: rc,
		maxFieldScript: redis.NewScript(`
			local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
			local candidate = tonumber(ARGV[2])
			if candidate > current then
				redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
				return candidate
			end
			return current
		`),
		expireDuration: expireDuration,
	}
}
