package middleware

import (
	"BatteryDetect/pkg/utils"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewSessionMiddleware(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
	GetSessionID(ctx *fiber.Ctx) string
}

type Options struct {
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool
	RateLimit     float64
	RateBurst     int
}

type middleware struct {
	session             *sessionMiddleware
	rateLimitter        *rateLimiter
	requestIDMiddleware fiber.Handler
	utils               utils.IUtils
	log                 *logrus.Logger
}

func New(logger *logrus.Logger, u utils.IUtils, opts Options) Middleware {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}

	m := &middleware{
		session:      newSessionMiddleware(opts.SessionSecret, opts.SessionTTL, opts.CookieSecure),
		rateLimitter: newRateLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		utils:        u,
		log:          logger,
	}
	m.requestIDMiddleware = m.newRequestIDHandler()

	return m
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}
