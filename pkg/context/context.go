package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const (
	RequestIDKey = "request_id"
	SessionIDKey = "session_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

func GetSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(SessionIDKey).(string)
	return sessionID
}

// FromFiberCtx detaches the request and session ids from the fasthttp context,
// which must not outlive the handler.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := context.Background()

	requestID, ok := c.Locals("X-Request-ID").(string)
	if !ok || requestID == "" {
		requestID = c.Get("X-Request-ID")
		if requestID == "" {
			requestID = "unknown"
		}
	}
	ctx = WithRequestID(ctx, requestID)

	if sessionID, ok := c.Locals(SessionIDKey).(string); ok && sessionID != "" {
		ctx = WithSessionID(ctx, sessionID)
	}

	return ctx
}
