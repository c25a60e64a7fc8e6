package middleware

import (
	"BatteryDetect/pkg/handlerUtil"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	idleTTL   time.Duration
	mutex     *sync.Mutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		idleTTL:   10 * time.Minute,
		mutex:     &sync.Mutex{},
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	for key, v := range r.bucket {
		if now.Sub(v.lastSeen) > r.idleTTL {
			delete(r.bucket, key)
		}
	}

	v, exist := r.bucket[ip]
	if !exist {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen = now

	return v.limiter
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()
	limiter := m.rateLimitter.GetLimiterFrom(clientIP)

	if !limiter.Allow() {
		m.log.Warnf("too many requests for IP %s", clientIP)
		return ctx.Status(fiber.StatusTooManyRequests).JSON(handlerUtil.ErrorResponse{
			Error: "Too many requests",
		})
	}

	return ctx.Next()
}
