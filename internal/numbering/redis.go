package numbering

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Incrementer is the subset of *redis.Client used by RedisCounter.
type Incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
}

// RedisCounter keeps one INCR counter per prefix in Redis. The first value
// handed out after the key is created is lifted above the highest number
// already stored, so a fresh Redis never re-issues persisted numbers.
type RedisCounter struct {
	Client Incrementer
	Store  MaxFinder
	// KeyPrefix namespaces the counter keys; defaults to "invoice_seq:".
	KeyPrefix string
}

func (r RedisCounter) key(prefix string) string {
	kp := r.KeyPrefix
	if kp == "" {
		kp = "invoice_seq:"
	}
	return kp + prefix
}

func (r RedisCounter) Next(ctx context.Context, prefix string) (int64, error) {
	key := r.key(prefix)
	seq, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	if seq != 1 || r.Store == nil {
		return seq, nil
	}
	// key was just created: catch up with what the database already holds
	max, err := r.Store.MaxSequenceSuffix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if max == 0 {
		return seq, nil
	}
	seq, err = r.Client.IncrBy(ctx, key, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby %s: %w", key, err)
	}
	return seq, nil
}
