package middleware

import (
	"strings"

	apierrors "github.com/jordanlanch/leaddesk/pkg/api/errors"
	"github.com/jordanlanch/leaddesk/pkg/auth"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTMiddleware.
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
	ContextUserRole  = "user_role"
)

// JWTMiddleware creates a JWT authentication middleware
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return apierrors.UnauthorizedError(c, "missing authorization header")
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" || strings.Contains(token, " ") {
				return apierrors.UnauthorizedError(c, "malformed authorization header")
			}

			claims, err := auth.ValidateJWT(token, secret)
			if err != nil {
				return apierrors.UnauthorizedError(c, err.Error())
			}

			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextUserEmail, claims.Email)
			c.Set(ContextUserRole, claims.Role)

			return next(c)
		}
	}
}

// RequireRole rejects authenticated users without the given role. It must run after JWTMiddleware.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r, _ := c.Get(ContextUserRole).(string); r != role {
				return apierrors.ForbiddenError(c, "role "+r+" lacks "+role)
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated user, or "" on public routes.
func UserID(c echo.Context) string {
	id, _ := c.Get(ContextUserID).(string)
	return id
}
