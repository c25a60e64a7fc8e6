package middleware

import (
	contextPkg "BatteryDetect/pkg/context"
	jwtPkg "BatteryDetect/pkg/jwt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const SessionCookie = "battery_session"

type sessionMiddleware struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func newSessionMiddleware(secret string, ttl time.Duration, secure bool) *sessionMiddleware {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &sessionMiddleware{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
	}
}

// NewSessionMiddleware resolves the browser session from its signed cookie,
// starting a new one when the cookie is missing, tampered with or expired.
func (m *middleware) NewSessionMiddleware(ctx *fiber.Ctx) error {
	if sessionID, err := jwtPkg.VerifySession(ctx.Cookies(SessionCookie), m.session.secret); err == nil {
		ctx.Locals(contextPkg.SessionIDKey, sessionID)
		return ctx.Next()
	}

	sessionID, err := m.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		m.log.WithError(err).Error("Failed to generate session id")
		return fiber.ErrInternalServerError
	}

	token, expiresAt, err := jwtPkg.SignSession(sessionID, m.session.ttl, m.session.secret)
	if err != nil {
		m.log.WithError(err).Error("Failed to sign session cookie")
		return fiber.ErrInternalServerError
	}

	ctx.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   m.session.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	ctx.Locals(contextPkg.SessionIDKey, sessionID)

	m.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"path":       ctx.Path(),
	}).Debug("Started new session")

	return ctx.Next()
}

func (m *middleware) GetSessionID(ctx *fiber.Ctx) string {
	sessionID, _ := ctx.Locals(contextPkg.SessionIDKey).(string)
	return sessionID
}
