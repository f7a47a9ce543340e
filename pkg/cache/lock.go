package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token, so a
// holder whose lock expired cannot free a lock taken by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held SetNX lock
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// TryLock takes the lock on key for at most ttl. It returns nil and false
// when another holder has it.
func TryLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lock, bool, error) {
	token := uuid.NewString()
	ok, err := SetNX(ctx, client, key, token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{client: client, key: key, token: token}, true, nil
}

// Release frees the lock if it is still ours
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}
