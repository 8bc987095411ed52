package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

// DefaultTTL bounds how long a crashed holder can wedge a job kind.
const DefaultTTL = time.Hour

// releaseScript deletes the key only when the stored token matches, so an
// expired-and-reacquired lock is never released by the previous holder.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisLocker implements ports.Locker on a single Redis instance.
type RedisLocker struct {
	client  redis.UniversalClient
	ttl     time.Duration
	release *redis.Script
}

var _ ports.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client:  client,
		ttl:     DefaultTTL,
		release: redis.NewScript(releaseScript),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, jobKind string, repoID string, date string) (ports.LockHandle, bool, error) {
	key := fmt.Sprintf("lock:%s:%s:%s", jobKind, repoID, date)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return ports.LockHandle{}, false, errs.Wrapf(err, "acquire lock %s", key)
	}
	if !ok {
		return ports.LockHandle{}, false, nil
	}
	return ports.LockHandle{Key: key, Token: token}, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, handle ports.LockHandle) (bool, error) {
	deleted, err := l.release.Run(ctx, l.client, []string{handle.Key}, handle.Token).Int()
	if err != nil {
		return false, errs.Wrapf(err, "release lock %s", handle.Key)
	}
	return deleted == 1, nil
}
