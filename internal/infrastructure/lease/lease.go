// Package lease provides a Redis-backed mutual exclusion lease so that only
// one worker replica runs a periodic job at a time.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tillcore/pkg/logger"
)

// ErrNotAcquired is returned when another holder owns the lease.
var ErrNotAcquired = errors.New("lease held by another worker")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out leases. A Locker without a client grants every lease,
// which is correct for a single worker replica.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// New creates a Locker. client may be nil.
func New(client redis.UniversalClient, prefix string) *Locker {
	if prefix == "" {
		prefix = "tillcore:lease:"
	}
	return &Locker{client: client, prefix: prefix}
}

// Lease is a held lock.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// Acquire takes the named lease for ttl. Returns ErrNotAcquired when taken.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	lease := &Lease{locker: l, key: l.prefix + name, token: uuid.NewString()}
	if l.client == nil {
		return lease, nil
	}

	ok, err := l.client.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return lease, nil
}

// Release gives the lease up if it is still ours.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil || le.locker.client == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, le.locker.client, []string{le.key}, le.token).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", le.key, err)
	}
	return nil
}

// Run executes fn while holding the named lease. It reports whether fn ran.
func (l *Locker) Run(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	lease, err := l.Acquire(ctx, name, ttl)
	if errors.Is(err, ErrNotAcquired) {
		logger.Debug(ctx, "lease busy, skipping", "lease", name)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "lease release failed", "lease", name, "error", err)
		}
	}()

	return true, fn(ctx)
}

// NewRedisClient connects to addr and pings it. An empty addr or an
// unreachable server yields nil, which disables leasing.
func NewRedisClient(ctx context.Context, addr, password string, db int) redis.UniversalClient {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn(ctx, "redis unavailable, leases disabled", "addr", addr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
