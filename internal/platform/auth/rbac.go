package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole rejects requests whose token carries none of the required
// roles. The billing-admin role always passes.
func RequireRole(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roles := RolesFromContext(c.Request().Context())

			for _, role := range roles {
				if role == "billing-admin" {
					return next(c)
				}
				for _, req := range required {
					if role == req {
						return next(c)
					}
				}
			}

			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
	}
}
