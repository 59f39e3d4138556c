// internal/middleware/rate_limit.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/javajoker/authchain/internal/i18n"
	"github.com/javajoker/authchain/internal/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	visitors map[string]*visitor
	mtx      sync.Mutex
	rate     rate.Limit
	burst    int
	done     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		done:     make(chan struct{}),
	}

	// Clean up old visitors every minute
	go rl.cleanupVisitors()

	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}
		rl.mtx.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, ip)
			}
		}
		rl.mtx.Unlock()
	}
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.rate, rl.burst)
		rl.visitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getVisitor(c.ClientIP()).Allow() {
			lang := utils.GetLangFromContext(c)
			utils.ErrorResponse(c, http.StatusTooManyRequests, i18n.T(lang, i18n.KeyRateLimited), "", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RateLimit returns a limiter middleware, or a pass-through when rps is not
// positive. The returned stop function releases the limiter.
func RateLimit(rps float64, burst int) (gin.HandlerFunc, func()) {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }, func() {}
	}
	if burst < 1 {
		burst = 1
	}
	rl := NewRateLimiter(rate.Limit(rps), burst)
	return rl.Middleware(), rl.Stop
}

// UploadRateLimit allows perMinute uploads per client, bursting to the same.
func UploadRateLimit(perMinute int) (gin.HandlerFunc, func()) {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }, func() {}
	}
	rl := NewRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	return rl.Middleware(), rl.Stop
}
