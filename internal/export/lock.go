package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another worker holds the lease on a job.
var ErrLocked = errors.New("export is locked by another worker")

// Locker grants exclusive, expiring leases on job IDs.
type Locker interface {
	// Acquire takes the lease on key or returns ErrLocked. The returned
	// release func is safe to call once the work is done.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// LocalLocker is an in-process Locker. Leases do not expire; they end with the process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire takes the lease on key.
func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lease only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker grants leases with SET NX PX so they are shared across processes
// and expire if the holder dies.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
}

// NewRedisLocker creates a RedisLocker. Keys are stored as "<prefix><key>".
func NewRedisLocker(client redis.Cmdable, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "invitely:export:lock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire takes the lease on key.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	redisKey := l.prefix + key
	token := uuid.NewString()

	status, err := l.client.SetArgs(ctx, redisKey, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("redis SET NX: %w", err)
	}
	if status != "OK" {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
		})
	}, nil
}

// Health pings Redis.
func (l *RedisLocker) Health(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var (
	_ Locker = (*LocalLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)
