package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock is held by another owner")

// releaseScript deletes the key only when it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SettlementLock serializes settlement of a single gateway authorization
// across processes. It is advisory; the journal row lock stays authoritative.
type SettlementLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewSettlementLock(client *redis.Client, ttl time.Duration) *SettlementLock {
	return &SettlementLock{client: client, prefix: "settlement", ttl: ttl}
}

// Acquire takes the lock for ref and returns a release func. It returns
// ErrLockHeld when someone else holds it.
func (l *SettlementLock) Acquire(ctx context.Context, ref string) (func(context.Context) error, error) {
	key := GenerateKey(l.prefix, "ref", ref)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire settlement lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release settlement lock: %w", err)
		}
		return nil
	}
	return release, nil
}
