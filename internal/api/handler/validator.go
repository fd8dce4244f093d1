package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/modernapi/identity-system/internal/core/domain"
)

// requestError lists what is wrong with a request body.
type requestError struct {
	messages []string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("invalid request: %v", e.messages)
}

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validator.Validate
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
// Field names in messages follow the json tags.
func NewValidator() *echoValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &echoValidator{v: v}
}

// Validate satisfies the echo.Validator interface.
func (ev *echoValidator) Validate(i any) error {
	if err := ev.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fieldError(fe))
			}
			return &requestError{messages: msgs}
		}
		return err
	}
	return nil
}

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "uuid":
		return field + " must be a valid id"
	case "min":
		return fmt.Sprintf("%s must have a minimum length of %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// bind decodes and validates the request body into req. A malformed body is
// answered with 400 and an InvalidEntity envelope; ok is false in that case.
func bind(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, domain.Invalid[domain.None]([]string{"invalid payload"}))
	}
	if err := c.Validate(req); err != nil {
		var re *requestError
		if errors.As(err, &re) {
			return false, c.JSON(http.StatusBadRequest, domain.Invalid[domain.None](re.messages))
		}
		return false, err
	}
	return true, nil
}

// respond renders r: 200 on success, 400 with the envelope otherwise.
func respond[T any](c echo.Context, r domain.Result[T]) error {
	if r.Success() {
		return c.JSON(http.StatusOK, r)
	}
	return c.JSON(http.StatusBadRequest, r)
}
