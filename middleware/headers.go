package middleware

import (
	"github.com/labstack/echo/v4"
)

// apiCSP locks JSON responses out of any document context
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// APISecurityHeaders sets the response headers for the JSON API
func APISecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Content-Security-Policy", apiCSP)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
