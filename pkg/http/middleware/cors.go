package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/cors"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
}

// CORS adapts rs/cors to an Echo middleware.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowOrigins,
		AllowedMethods: cfg.AllowMethods,
		AllowedHeaders: cfg.AllowHeaders,
		// preflights are answered by rs/cors and never reach the router
		OptionsPassthrough: false,
		MaxAge:             600,
	})
	return echo.WrapMiddleware(func(next http.Handler) http.Handler {
		return c.Handler(next)
	})
}
