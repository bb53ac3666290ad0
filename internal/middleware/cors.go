package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// corsHeaders is the fixed set attached to every response.
var corsHeaders = map[string]string{
	echo.HeaderAccessControlAllowOrigin:  "*",
	echo.HeaderAccessControlAllowMethods: "GET, OPTIONS",
	echo.HeaderAccessControlAllowHeaders: "X-Auth-Email, X-Auth-Key, Content-Type",
}

// CORS returns an Echo middleware that sets the CORS header set on every
// response and answers any OPTIONS request with an empty 204.
//
// Headers are set before the handler runs so error responses, including
// ones rendered later by the HTTP error handler, carry them too.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range corsHeaders {
				h.Set(k, v)
			}

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}

			return next(c)
		}
	}
}
