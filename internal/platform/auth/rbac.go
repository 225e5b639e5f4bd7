package auth

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

// Roles carried in admin tokens. Staff read registrations; admins also
// manage stored badge images.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

var knownRoles = []string{RoleAdmin, RoleStaff}

// ValidateRoles rejects empty lists and names outside the known roles.
func ValidateRoles(roles []string) error {
	if len(roles) == 0 {
		return fmt.Errorf("auth: at least one role is required")
	}
	for _, r := range roles {
		if !slices.Contains(knownRoles, r) {
			return fmt.Errorf("auth: unknown role %q (want one of %s)", r, strings.Join(knownRoles, ", "))
		}
	}
	return nil
}

// Grants reports whether held satisfies required. Admin satisfies every role.
func Grants(held []string, required string) bool {
	return slices.Contains(held, RoleAdmin) || slices.Contains(held, required)
}

// RequireRole passes requests whose token holds at least one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			held := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				if Grants(held, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequireStaff admits staff and admins.
func RequireStaff() echo.MiddlewareFunc { return RequireRole(RoleStaff) }

// RequireAdmin admits admins only.
func RequireAdmin() echo.MiddlewareFunc { return RequireRole(RoleAdmin) }
