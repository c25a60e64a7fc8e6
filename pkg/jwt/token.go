package jwtPkg

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const SessionClaim = "sid"

var ErrInvalidSessionToken = errors.New("invalid session token")

// SignSession issues an HS256 token carrying the session id.
func SignSession(sessionID string, ttl time.Duration, secret []byte) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, fmt.Errorf("session secret not set")
	}

	expiredAt := time.Now().Add(ttl)

	claims := jwt.MapClaims{
		SessionClaim: sessionID,
		"exp":        expiredAt.Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		logrus.WithError(err).Error("Failed to sign session token")
		return "", time.Time{}, err
	}

	return signed, expiredAt, nil
}

// VerifySession returns the session id held by a token from SignSession.
func VerifySession(tokenString string, secret []byte) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidSessionToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidSessionToken
	}

	sessionID, ok := claims[SessionClaim].(string)
	if !ok || sessionID == "" {
		return "", ErrInvalidSessionToken
	}

	return sessionID, nil
}
