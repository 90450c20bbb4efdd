package ratelimit

import (
	"sync"
	"time"
)

// Actions that are rate limited per user.
const (
	ActionSendMessage        = "send_message"
	ActionSendOffer          = "send_offer"
	ActionCounterOffer       = "counter_offer"
	ActionCreateConversation = "create_conversation"
)

// TokenBucket represents a token bucket for rate limiting
type TokenBucket struct {
	tokens     int
	maxTokens  int
	refillRate int           // tokens added per refill interval
	refillTime time.Duration // refill interval
	lastRefill time.Time
	lastUsed   time.Time
	mutex      sync.Mutex
}

type bucketSpec struct {
	max    int
	refill time.Duration
}

var actionLimits = map[string]bucketSpec{
	// 10 messages per minute
	ActionSendMessage: {max: 10, refill: 6 * time.Second},
	// offers are heavier: 5 per minute
	ActionSendOffer:    {max: 5, refill: 12 * time.Second},
	ActionCounterOffer: {max: 5, refill: 12 * time.Second},
	// 10 new threads per hour
	ActionCreateConversation: {max: 10, refill: 6 * time.Minute},
}

var defaultLimit = bucketSpec{max: 20, refill: 3 * time.Second}

// RateLimiter manages rate limiting for different users and actions
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		now:     time.Now,
	}
}

func NewTokenBucket(maxTokens, refillRate int, refillTime time.Duration) *TokenBucket {
	now := time.Now()
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		refillTime: refillTime,
		lastRefill: now,
		lastUsed:   now,
	}
}

// allow consumes a token if one is available at now. Otherwise it returns the
// wait until the next refill.
func (tb *TokenBucket) allow(now time.Time) (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	intervals := int(now.Sub(tb.lastRefill) / tb.refillTime)
	if intervals > 0 {
		tb.tokens += intervals * tb.refillRate
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		// keep the partial interval so refills don't drift
		tb.lastRefill = tb.lastRefill.Add(time.Duration(intervals) * tb.refillTime)
	}
	tb.lastUsed = now

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}

	return false, tb.lastRefill.Add(tb.refillTime).Sub(now)
}

func (tb *TokenBucket) Allow() (bool, time.Duration) {
	return tb.allow(time.Now())
}

func (tb *TokenBucket) GetTokens() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return tb.tokens
}

// Allow checks if a user action is allowed
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	key := userID + ":" + action

	rl.mutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		// Double-check pattern
		if bucket, exists = rl.buckets[key]; !exists {
			spec, ok := actionLimits[action]
			if !ok {
				spec = defaultLimit
			}
			bucket = NewTokenBucket(spec.max, 1, spec.refill)
			bucket.lastRefill = rl.now()
			rl.buckets[key] = bucket
		}
		rl.mutex.Unlock()
	}

	return bucket.allow(rl.now())
}

// GetStatus returns current rate limit status for a user action
func (rl *RateLimiter) GetStatus(userID, action string) (tokens int, maxTokens int) {
	rl.mutex.RLock()
	bucket, exists := rl.buckets[userID+":"+action]
	rl.mutex.RUnlock()

	if !exists {
		return 0, 0
	}
	return bucket.GetTokens(), bucket.maxTokens
}

// Cleanup removes buckets idle for more than an hour.
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		idle := now.Sub(bucket.lastUsed)
		bucket.mutex.Unlock()
		if idle > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine starts a cleanup routine that runs periodically
func (rl *RateLimiter) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			rl.Cleanup()
		}
	}()
}
