package lock

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired means the lock is held elsewhere and the caller chose
	// (or ran out of time) not to wait.
	ErrNotAcquired = errors.New("lock not acquired")
)

// releaseScript deletes the key only when the caller still holds it, so a
// lock that expired and was re-acquired by someone else is never released
// by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out per-game exclusive locks backed by redis. Each lock is a
// SET NX PX key with a random token; the token is required to release.
type Locker struct {
	rdb      *redis.Client
	ttl      time.Duration
	interval time.Duration
}

func NewLocker(redisURL string, ttl time.Duration) (*Locker, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Locker{rdb: rdb, ttl: ttl, interval: 15 * time.Millisecond}, nil
}

func (l *Locker) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

// TryAcquire attempts the lock once. Returns the release token, or
// ErrNotAcquired when the lock is held.
func (l *Locker) TryAcquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return "", ErrNotAcquired
	}
	return token, nil
}

// Acquire polls for the lock until it succeeds or ctx expires.
func (l *Locker) Acquire(ctx context.Context, key string) (string, error) {
	for {
		token, err := l.TryAcquire(ctx, key)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrNotAcquired) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ErrNotAcquired
		case <-time.After(l.interval):
		}
	}
}

// Release frees the lock if token still holds it.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
}

// GameKey is the lock key for one game record.
func GameKey(gameID int64) string {
	return "game:lock:" + strconv.FormatInt(gameID, 10)
}

// UserKey is the lock key for one user record.
func UserKey(userID int64) string {
	return "user:lock:" + strconv.FormatInt(userID, 10)
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
