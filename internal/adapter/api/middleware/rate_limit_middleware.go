package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"sakanect/pkg/errors"
	"sakanect/pkg/logger"
	"sakanect/pkg/response"
)

// IPRateLimiter caps raw request volume per client IP, in front of the
// per-user action limits the use cases apply.
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows requests per window with the full window as burst.
func NewIPRateLimiter(requests int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
	}
}

func (rl *IPRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			limiter := rl.get(ip)

			reservation := limiter.Reserve()
			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				logger.Warn("Rate limit exceeded for IP %s", ip)
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", delay))
			}
			return next(c)
		}
	}
}

func (rl *IPRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// StartCleanup drops visitors idle for more than maxIdle until ctx ends.
func (rl *IPRateLimiter) StartCleanup(ctx context.Context, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(maxIdle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.mu.Lock()
				for ip, v := range rl.visitors {
					if time.Since(v.lastSeen) > maxIdle {
						delete(rl.visitors, ip)
					}
				}
				rl.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()
}
