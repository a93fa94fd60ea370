package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// tenantContextKey is the echo context key the tenant id is stored
// under once extracted.
const tenantContextKey = "tenant_id"

// TenantHeader is the request header carrying the caller's tenant id.
// Identity is assumed to be issued upstream; this layer only scopes.
const TenantHeader = "X-Tenant-ID"

// RequireTenant extracts the tenant id from the request header and
// stores it in the context. Requests without a valid tenant id are
// rejected before any handler runs.
func RequireTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(TenantHeader)
			if raw == "" {
				return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
					"error": "missing " + TenantHeader + " header",
					"code":  "TENANT_REQUIRED",
				})
			}

			tenantID, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || tenantID == 0 {
				return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
					"error": "invalid " + TenantHeader + " header",
					"code":  "TENANT_REQUIRED",
				})
			}

			c.Set(tenantContextKey, uint(tenantID))
			return next(c)
		}
	}
}

// TenantID returns the tenant id stored by RequireTenant, zero when
// the middleware did not run.
func TenantID(c echo.Context) uint {
	if id, ok := c.Get(tenantContextKey).(uint); ok {
		return id
	}
	return 0
}
