package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"sakanect/internal/session"
	"sakanect/pkg/errors"
	"sakanect/pkg/response"
)

const sessionKey = "session"

// TokenVerifier turns a bearer token into a session. Implemented by the
// Firebase auth client and the HS256 JWT verifier.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (session.Session, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, err := bearerToken(c)
		if err != nil {
			return response.Error(c, err)
		}

		sess, err := m.verifier.VerifyToken(c.Request().Context(), token)
		if err != nil || sess.IsZero() {
			return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		}

		c.Set(sessionKey, sess)
		c.Set("uid", sess.UserID)
		c.SetRequest(c.Request().WithContext(session.WithSession(c.Request().Context(), sess)))

		return next(c)
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a websocket handshake, so the token query parameter is accepted as well.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if token := c.QueryParam("token"); token != "" {
			return token, nil
		}
		return "", errors.Unauthorized("Authorization header is required", nil)
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.Unauthorized("Invalid authorization format", nil)
	}
	return parts[1], nil
}

// GetSession returns the session set by Authenticate, or the zero session.
func GetSession(c echo.Context) session.Session {
	if sess, ok := c.Get(sessionKey).(session.Session); ok {
		return sess
	}
	sess, _ := session.FromContext(c.Request().Context())
	return sess
}
