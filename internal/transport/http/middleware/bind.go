package middleware

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

// Bind decodes the request payload into v. A value of the wrong JSON type, such as a fractional
// or quoted quantity, is a validation error on that field; any other decode failure is a bad request.
func Bind(c echo.Context, v any) error {
	err := c.Bind(v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return errorbank.Validation("invalid payload", errorbank.WithCause(err), errorbank.WithFields(map[string]string{
			field: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
		}))
	}
	return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
}
