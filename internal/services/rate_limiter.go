package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"bailian-gateway/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitStatus describes a key's window without recording anything.
type RateLimitStatus struct {
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // until ResetAt
}

// RateLimitStore keeps per-key event timestamps in milliseconds. Admit must
// purge, count and record atomically for a key.
type RateLimitStore interface {
	Admit(ctx context.Context, key string, ceiling int, window time.Duration, now time.Time) (bool, error)
	Inspect(ctx context.Context, key string, window time.Duration, now time.Time) (count int, oldest time.Time, err error)
}

type RateLimiter struct {
	store RateLimitStore
	now   func() time.Time
}

func NewRateLimiter(store RateLimitStore) *RateLimiter {
	return &RateLimiter{store: store, now: time.Now}
}

// Admit records an event for key when fewer than ceiling events fall inside
// the window ending now. A negative ceiling never limits.
func (l *RateLimiter) Admit(ctx context.Context, key string, ceiling int, window time.Duration) (bool, error) {
	if ceiling < 0 {
		return true, nil
	}
	if ceiling == 0 {
		return false, nil
	}
	return l.store.Admit(ctx, key, ceiling, window, l.now())
}

func (l *RateLimiter) RemainingAndReset(ctx context.Context, key string, ceiling int, window time.Duration) (*RateLimitStatus, error) {
	now := l.now()
	if ceiling < 0 {
		return &RateLimitStatus{Limit: ceiling, Remaining: ceiling, ResetAt: now.Add(window), RetryAfter: window}, nil
	}

	count, oldest, err := l.store.Inspect(ctx, key, window, now)
	if err != nil {
		return nil, err
	}

	remaining := ceiling - count
	if remaining < 0 {
		remaining = 0
	}
	resetAt := now.Add(window)
	if !oldest.IsZero() {
		resetAt = oldest.Add(window)
	}

	retryAfter := resetAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &RateLimitStatus{Limit: ceiling, Remaining: remaining, ResetAt: resetAt, RetryAfter: retryAfter}, nil
}

// Scores and the cutoff travel as strings so the script never formats a float.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	return {1, count + 1}
end
return {0, count}
`)

type RedisRateLimitStore struct {
	client redis.UniversalClient
}

func NewRedisRateLimitStore(client redis.UniversalClient) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

func (s *RedisRateLimitStore) Admit(ctx context.Context, key string, ceiling int, window time.Duration, now time.Time) (bool, error) {
	nowMs := now.UnixMilli()
	cutoff := nowMs - window.Milliseconds()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	result, err := admitScript.Run(ctx, s.client, []string{key},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(cutoff, 10),
		ceiling,
		member,
		window.Milliseconds(),
	).Slice()
	if err != nil {
		return false, errors.Wrap(fmt.Errorf("%w: %v", errors.ErrCacheError, err), "rate limit check failed")
	}
	if len(result) == 0 {
		return false, errors.Wrap(errors.ErrCacheError, "rate limit script returned no result")
	}

	admitted, _ := result[0].(int64)
	return admitted == 1, nil
}

func (s *RedisRateLimitStore) Inspect(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	cutoff := strconv.FormatInt(now.UnixMilli()-window.Milliseconds(), 10)

	count, err := s.client.ZCount(ctx, key, "("+cutoff, "+inf").Result()
	if err != nil {
		return 0, time.Time{}, errors.Wrap(fmt.Errorf("%w: %v", errors.ErrCacheError, err), "rate limit inspect failed")
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}

	earliest, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:    "(" + cutoff,
		Max:    "+inf",
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, time.Time{}, errors.Wrap(fmt.Errorf("%w: %v", errors.ErrCacheError, err), "rate limit inspect failed")
	}

	var oldest time.Time
	if len(earliest) > 0 {
		oldest = time.UnixMilli(int64(earliest[0].Score))
	}
	return int(count), oldest, nil
}

// memorySweepInterval bounds how often the in-memory stores scan for
// expired keys.
const memorySweepInterval = time.Minute

type memoryWindow struct {
	events    []int64
	expiresAt int64 // mirrors the PEXPIRE set by the Redis script
}

// MemoryRateLimitStore serves a single process. Keys expire one window after
// their newest event and are swept on later calls.
type MemoryRateLimitStore struct {
	mu        sync.Mutex
	windows   map[string]*memoryWindow
	lastSweep int64
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{windows: make(map[string]*memoryWindow)}
}

// sweep drops every expired key at most once per interval. Callers hold mu.
func (s *MemoryRateLimitStore) sweep(nowMs int64) {
	if nowMs-s.lastSweep < memorySweepInterval.Milliseconds() {
		return
	}
	s.lastSweep = nowMs
	for key, w := range s.windows {
		if w.expiresAt <= nowMs {
			delete(s.windows, key)
		}
	}
}

// purge drops events at or before the cutoff. Callers hold mu.
func (s *MemoryRateLimitStore) purge(key string, cutoff int64) *memoryWindow {
	w, ok := s.windows[key]
	if !ok {
		return nil
	}
	idx := sort.Search(len(w.events), func(i int) bool { return w.events[i] > cutoff })
	w.events = w.events[idx:]
	if len(w.events) == 0 {
		delete(s.windows, key)
		return nil
	}
	return w
}

func (s *MemoryRateLimitStore) Admit(ctx context.Context, key string, ceiling int, window time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	s.sweep(nowMs)

	w := s.purge(key, nowMs-window.Milliseconds())
	if w == nil {
		w = &memoryWindow{}
	}
	if len(w.events) >= ceiling {
		return false, nil
	}

	// Keep the slice sorted even if the clock steps backwards.
	idx := sort.Search(len(w.events), func(i int) bool { return w.events[i] > nowMs })
	w.events = append(w.events, 0)
	copy(w.events[idx+1:], w.events[idx:])
	w.events[idx] = nowMs
	if expiresAt := nowMs + window.Milliseconds(); expiresAt > w.expiresAt {
		w.expiresAt = expiresAt
	}
	s.windows[key] = w
	return true, nil
}

func (s *MemoryRateLimitStore) Inspect(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	s.sweep(nowMs)

	w, ok := s.windows[key]
	if !ok {
		return 0, time.Time{}, nil
	}
	cutoff := nowMs - window.Milliseconds()
	idx := sort.Search(len(w.events), func(i int) bool { return w.events[i] > cutoff })
	inWindow := w.events[idx:]
	if len(inWindow) == 0 {
		return 0, time.Time{}, nil
	}
	return len(inWindow), time.UnixMilli(inWindow[0]), nil
}
