// Package apierror carries transport-level failures to the Fiber error
// handler and binds request payloads.
package apierror

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Codes produced outside the accounting engine.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is a failure with a fixed HTTP status and a machine-readable code.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string { return e.Message }

// New builds an Error.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Unauthorized is returned for a missing, malformed or expired bearer token.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Validation wraps field errors into a 400 response.
func Validation(details ...FieldError) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeValidation,
		Message: "Request validation failed",
		Details: details,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	return v
}

// Validate runs struct validation and converts failures into a validation Error.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Validation(FieldError{Field: "body", Rule: "invalid", Message: err.Error()})
	}
	details := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: describe(fe),
		})
	}
	return Validation(details...)
}

// Normalizer is implemented by payloads that trim or canonicalize fields
// before validation.
type Normalizer interface {
	Normalize()
}

// BindJSON decodes the request body into T, normalizes it and validates it.
func BindJSON[T any](c *fiber.Ctx) (T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return input, Validation(FieldError{Field: "body", Rule: "json", Message: "Request body must be valid JSON"})
	}
	if n, ok := any(&input).(Normalizer); ok {
		n.Normalize()
	}
	if err := Validate(input); err != nil {
		return input, err
	}
	return input, nil
}

// BindQuery decodes query parameters into T and validates them.
func BindQuery[T any](c *fiber.Ctx) (T, error) {
	var input T
	if err := c.QueryParser(&input); err != nil {
		return input, Validation(FieldError{Field: "query", Rule: "parse", Message: err.Error()})
	}
	if err := Validate(input); err != nil {
		return input, err
	}
	return input, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// Coded is implemented by domain errors that carry a stable code.
type Coded interface {
	error
	ErrorCode() string
}

var codeStatus = map[string]int{
	"INVALID_AMOUNT":        http.StatusBadRequest,
	"INSUFFICIENT_BALANCE":  http.StatusBadRequest,
	"INVALID_TRANSFER":      http.StatusBadRequest,
	CodeValidation:          http.StatusBadRequest,
	CodeUnauthorized:        http.StatusUnauthorized,
	"ACCOUNT_NOT_FOUND":     http.StatusNotFound,
	"RECIPIENT_NOT_FOUND":   http.StatusNotFound,
	CodeNotFound:            http.StatusNotFound,
	"DUPLICATE_EMAIL":       http.StatusConflict,
	CodeIdempotencyConflict: http.StatusConflict,
	CodeRateLimited:         http.StatusTooManyRequests,
	CodeInternal:            http.StatusInternalServerError,
}

var statusCode = map[int]string{
	http.StatusBadRequest:      CodeValidation,
	http.StatusUnauthorized:    CodeUnauthorized,
	http.StatusNotFound:        CodeNotFound,
	http.StatusConflict:        CodeIdempotencyConflict,
	http.StatusTooManyRequests: CodeRateLimited,
}

// Resolve turns any handler error into the error that is sent to the client.
// Unknown errors become a generic 500 so internals never leak.
func Resolve(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var coded Coded
	if errors.As(err, &coded) {
		status, ok := codeStatus[coded.ErrorCode()]
		if !ok {
			status = http.StatusBadRequest
		}
		return New(status, coded.ErrorCode(), coded.Error())
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code, ok := statusCode[fiberErr.Code]
		if !ok {
			if fiberErr.Code >= http.StatusInternalServerError {
				return New(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred")
			}
			code = strings.ToUpper(strings.ReplaceAll(http.StatusText(fiberErr.Code), " ", "_"))
		}
		return New(fiberErr.Code, code, fiberErr.Message)
	}

	return New(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred")
}
