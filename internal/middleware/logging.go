package middleware

import (
	"BatteryDetect/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// NewLoggingMiddleware writes one line per request. Bodies are never logged:
// they are image uploads.
func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		logFields := log.Fields{
			"request_id":    m.GetRequestID(c),
			"session_id":    m.GetSessionID(c),
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    latency.Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get("User-Agent"),
			"request_size":  len(c.Request().Body()),
			"response_size": len(c.Response().Body()),
		}

		if status >= 500 {
			log.Error(logFields, "Server error")
		} else if status >= 400 {
			log.Warn(logFields, "Client error")
		} else {
			log.Info(logFields, "Success")
		}

		return err
	}
}
