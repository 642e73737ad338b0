package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4/middleware"
)

// CORSConfig returns the CORS configuration for the agent console origins.
// Inbound webhooks are server-to-server and never rely on CORS.
func CORSConfig(origins []string) middleware.CORSConfig {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}
}
