package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this owner still holds it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// extendScript refreshes the TTL only if this owner still holds the lock.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// ErrLockHeld is returned by Acquire when another owner holds the lock.
var ErrLockHeld = errors.New("lock held by another owner")

// Lock is a single-key lease so only one worker instance runs the periodic
// jobs at a time.
type Lock struct {
	client *goredis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewLock creates a lock on key with a random owner token.
func NewLock(client *goredis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    keyPrefix + "lock:" + key,
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire takes the lease or refreshes it when this owner already holds it.
func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis lock acquire: %w", err)
	}
	if ok {
		return nil
	}

	extended, err := extendScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis lock extend: %w", err)
	}
	if extended == 0 {
		return ErrLockHeld
	}
	return nil
}

// Release drops the lease if this owner holds it.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
