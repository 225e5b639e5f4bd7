package middleware

import (
	"github.com/labstack/echo/v4"
)

// BadgeCameraPolicy lets pages served from this origin open the camera for
// badge capture while keeping other device features off.
const BadgeCameraPolicy = "camera=(self), microphone=(), geolocation=()"

// SecurityHeaders sets the response headers every API reply carries.
// Responses hold camper contact and medical details, so nothing is cached.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			// JSON only; badge previews are data URLs rendered by the client.
			h.Set("Content-Security-Policy", "default-src 'none'; img-src data:; frame-ancestors 'none'")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", BadgeCameraPolicy)
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
