package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

func run(t *testing.T, header string, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	h := func(c echo.Context) error {
		seen = UserID(c)
		return c.NoContent(http.StatusOK)
	}
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	require.NoError(t, h(c))
	return rec, seen
}

func TestJWTMiddleware(t *testing.T) {
	token, err := auth.GenerateJWT("u1", "agent@example.com", auth.RoleAgent, testSecret, time.Hour)
	require.NoError(t, err)

	t.Run("Success - valid bearer token", func(t *testing.T) {
		rec, user := run(t, "Bearer "+token, JWTMiddleware(testSecret))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", user)
	})

	t.Run("Error - missing header", func(t *testing.T) {
		rec, _ := run(t, "", JWTMiddleware(testSecret))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	})

	t.Run("Error - wrong scheme", func(t *testing.T) {
		rec, _ := run(t, "Token "+token, JWTMiddleware(testSecret))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	})

	t.Run("Error - bad signature", func(t *testing.T) {
		rec, _ := run(t, "Bearer "+token, JWTMiddleware("another-secret-key-minimum-32-characters"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
		assert.NotContains(t, rec.Body.String(), "signature")
	})
}

func TestRequireRole(t *testing.T) {
	agent, err := auth.GenerateJWT("u1", "agent@example.com", auth.RoleAgent, testSecret, time.Hour)
	require.NoError(t, err)
	admin, err := auth.GenerateJWT("u9", "admin@example.com", auth.RoleAdmin, testSecret, time.Hour)
	require.NoError(t, err)

	t.Run("Success - admin passes", func(t *testing.T) {
		rec, user := run(t, "Bearer "+admin, JWTMiddleware(testSecret), RequireRole(auth.RoleAdmin))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u9", user)
	})

	t.Run("Error - agent is forbidden", func(t *testing.T) {
		rec, _ := run(t, "Bearer "+agent, JWTMiddleware(testSecret), RequireRole(auth.RoleAdmin))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "forbidden")
	})
}
