package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rosterbridge/vendor-portal/pkg/common/logger"
)

// ClassLimits is a per-minute budget pair for one requestor class. The
// detokenize budget is always the smaller of the two: reversal is the
// sensitive direction.
type ClassLimits struct {
	Tokenize   int
	Detokenize int
}

func defaultClassLimits() map[string]ClassLimits {
	return map[string]ClassLimits{
		RequestorVendor:          {Tokenize: 100, Detokenize: 10},
		RequestorInternalService: {Tokenize: 500, Detokenize: 50},
		RequestorAdmin:           {Tokenize: 1000, Detokenize: 100},
		RequestorSyncJob:         {Tokenize: 1000, Detokenize: 100},
	}
}

// Decision is the outcome of a read-only limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	WindowEnd time.Time
}

type windowEntry struct {
	mu          sync.Mutex
	windowStart time.Time
	tokenize    int
	detokenize  int
}

// Limiter tracks fixed one-minute windows aligned to the wall-clock minute,
// one entry per requestor so callers never contend across requestor keys.
// The in-memory counters are authoritative for the current window; durable
// persistence is fire-and-forget for observability only.
type Limiter struct {
	store          Store
	redis          *redis.Client
	classLimits    map[string]ClassLimits
	persistTimeout time.Duration
	now            func() time.Time

	entries sync.Map // requestorID -> *windowEntry

	mu        sync.RWMutex
	overrides map[string]ClassLimits // per requestor id
}

func NewLimiter(store Store, redisClient *redis.Client, classLimits map[string]ClassLimits, persistTimeout time.Duration) *Limiter {
	if classLimits == nil {
		classLimits = defaultClassLimits()
	}
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}
	return &Limiter{
		store:          store,
		redis:          redisClient,
		classLimits:    classLimits,
		persistTimeout: persistTimeout,
		now:            time.Now,
		overrides:      make(map[string]ClassLimits),
	}
}

// LoadOverrides pulls per-requestor limit overrides from the durable config
// store. Absent an override, class defaults apply.
func (l *Limiter) LoadOverrides(ctx context.Context) error {
	configs, err := l.store.ListRateLimitConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load rate limit overrides: %w", err)
	}

	overrides := make(map[string]ClassLimits, len(configs))
	for _, c := range configs {
		overrides[c.RequestorID] = ClassLimits{
			Tokenize:   c.TokenizePerMinute,
			Detokenize: c.DetokenizePerMinute,
		}
	}

	l.mu.Lock()
	l.overrides = overrides
	l.mu.Unlock()
	return nil
}

func (l *Limiter) limitsFor(requestorID, requestorType string) ClassLimits {
	l.mu.RLock()
	limits, ok := l.overrides[requestorID]
	l.mu.RUnlock()
	if ok {
		return limits
	}
	if limits, ok := l.classLimits[requestorType]; ok {
		return limits
	}
	// Unknown classes get the most conservative budget.
	return l.classLimits[RequestorVendor]
}

func (l *Limiter) limitForOp(limits ClassLimits, op string) int {
	if op == AccessDetokenize {
		return limits.Detokenize
	}
	return limits.Tokenize
}

// Check reports whether one more operation of the given kind fits in the
// current window. It never mutates counters.
func (l *Limiter) Check(requestorID, requestorType, op string) Decision {
	limits := l.limitsFor(requestorID, requestorType)
	limit := l.limitForOp(limits, op)
	windowStart := l.now().Truncate(time.Minute)

	count := 0
	if v, ok := l.entries.Load(requestorID); ok {
		entry := v.(*windowEntry)
		entry.mu.Lock()
		if entry.windowStart.Equal(windowStart) {
			if op == AccessDetokenize {
				count = entry.detokenize
			} else {
				count = entry.tokenize
			}
		}
		entry.mu.Unlock()
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count < limit,
		Limit:     limit,
		Remaining: remaining,
		WindowEnd: windowStart.Add(time.Minute),
	}
}

// Increment counts one completed operation and asynchronously persists the
// window snapshot. Persistence failure never reaches the caller.
func (l *Limiter) Increment(requestorID, requestorType, op string) {
	windowStart := l.now().Truncate(time.Minute)

	v, _ := l.entries.LoadOrStore(requestorID, &windowEntry{windowStart: windowStart})
	entry := v.(*windowEntry)

	entry.mu.Lock()
	if !entry.windowStart.Equal(windowStart) {
		// New minute: the previous window is superseded, not carried over.
		entry.windowStart = windowStart
		entry.tokenize = 0
		entry.detokenize = 0
	}
	if op == AccessDetokenize {
		entry.detokenize++
	} else {
		entry.tokenize++
	}
	snapshot := RateLimitWindow{
		RequestorID:     requestorID,
		WindowStart:     entry.windowStart,
		WindowEnd:       entry.windowStart.Add(time.Minute),
		TokenizeCount:   entry.tokenize,
		DetokenizeCount: entry.detokenize,
	}
	entry.mu.Unlock()

	go l.persist(snapshot)
}

func (l *Limiter) persist(window RateLimitWindow) {
	ctx, cancel := context.WithTimeout(context.Background(), l.persistTimeout)
	defer cancel()

	if err := l.store.SaveRateLimitWindow(ctx, window); err != nil {
		logger.Ops("rate_limiter").WithError(err).WithField("requestor_id", window.RequestorID).
			Error("failed to persist rate limit window")
	}

	if l.redis == nil {
		return
	}
	key := fmt.Sprintf("vault:ratelimit:%s:%d", window.RequestorID, window.WindowStart.Unix())
	if err := l.redis.HSet(ctx, key,
		"tokenize", window.TokenizeCount,
		"detokenize", window.DetokenizeCount,
	).Err(); err != nil {
		logger.Ops("rate_limiter").WithError(err).Debug("failed to mirror rate limit window to redis")
		return
	}
	l.redis.Expire(ctx, key, 2*time.Minute)
}
