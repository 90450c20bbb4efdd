package usecase

import (
	"context"
	"time"

	"sakanect/internal/session"
	"sakanect/pkg/errors"
)

// RateLimiter is satisfied by ratelimit.RateLimiter.
type RateLimiter interface {
	Allow(userID, action string) (bool, time.Duration)
}

// RealtimePusher is satisfied by websocket.Manager.
type RealtimePusher interface {
	Push(userID, eventType string, data interface{}) error
}

type noopPusher struct{}

func (noopPusher) Push(string, string, interface{}) error { return nil }

type allowAll struct{}

func (allowAll) Allow(string, string) (bool, time.Duration) { return true, 0 }

func requireSession(sess session.Session) error {
	if sess.IsZero() {
		return errors.Unauthorized("Authentication required", nil)
	}
	return nil
}

func checkRate(limiter RateLimiter, userID, action string) error {
	if allowed, wait := limiter.Allow(userID, action); !allowed {
		return errors.TooManyRequests("Rate limit exceeded. Please slow down", wait)
	}
	return nil
}

// detached keeps request values but survives request cancellation, for
// follow-up work that must not be cut short once a state change committed.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
