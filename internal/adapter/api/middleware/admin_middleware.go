package middleware

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/session"
	"sakanect/pkg/errors"
	"sakanect/pkg/response"
)

// AdminOnly must run after Authenticate.
func AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := GetSession(c)
		if sess.IsZero() {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}
		if sess.Role != session.RoleAdmin {
			return response.Error(c, errors.Forbidden("Admin privileges required", nil))
		}
		return next(c)
	}
}
