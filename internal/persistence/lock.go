package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out expiring leases stored as Redis keys.
type RedisLocker struct {
	client redis.UniversalClient
}

// TryLock acquires key for ttl. It returns a release func when the lease was
// won and ok=false when another holder owns it.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	if l == nil || l.client == nil {
		return nil, false, errRedisDisabled
	}
	token := uuid.NewString()
	won, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !won {
		return nil, false, nil
	}
	release = func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}
