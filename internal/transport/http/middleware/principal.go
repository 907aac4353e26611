package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/tradehub/internal/presentation/http/response"
	"github.com/Additional-Code/tradehub/internal/principal"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

// Header names set by the upstream identity proxy.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Principal resolves the caller from identity headers and stores it on the request context.
// Requests without a usable identity are rejected with 401.
func Principal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := strconv.ParseInt(c.Request().Header.Get(HeaderUserID), 10, 64)
			if err != nil {
				return response.New(c).WithError(errorbank.Unauthorized("missing or invalid caller identity")).Build()
			}
			p, err := principal.New(id, c.Request().Header.Get(HeaderUserRole))
			if err != nil {
				return response.New(c).WithError(errorbank.Unauthorized("missing or invalid caller identity", errorbank.WithCause(err))).Build()
			}

			req := c.Request()
			c.SetRequest(req.WithContext(principal.WithContext(req.Context(), p)))
			return next(c)
		}
	}
}

// Caller returns the principal attached by Principal.
func Caller(c echo.Context) (principal.Principal, error) {
	p, ok := principal.FromContext(c.Request().Context())
	if !ok {
		return principal.Principal{}, errorbank.Unauthorized("missing caller identity")
	}
	return p, nil
}

// ParamID parses a positive int64 path parameter.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithCause(err))
	}
	return id, nil
}
