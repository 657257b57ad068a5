package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pressline/internal/auth"
	"pressline/internal/jobs"
)

// Stable error codes.
const (
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeForbidden        = "forbidden"
	CodeValidationFailed = "validation_failed"
	CodeUnauthorized     = "unauthorized"
	CodeTransient        = "transient"
	CodeInternal         = "internal_error"
)

const internalMessage = "internal error"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// requestError is a decoding or validation failure detected before the
// service is called.
type requestError struct {
	msg    string
	fields map[string]string
}

func (e *requestError) Error() string { return e.msg }

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &requestError{msg: err.Error()}
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fieldPath(fe.Namespace())] = describe(fe)
	}
	return &requestError{msg: "request validation failed", fields: fields}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// classify maps an error onto an HTTP status, a stable code, and the message
// safe to show the caller.
func classify(err error) (int, string, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, CodeValidationFailed, reqErr.msg
	}
	if errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, auth.ErrInvalidToken) {
		return http.StatusUnauthorized, CodeUnauthorized, "authentication required"
	}

	var jobErr *jobs.Error
	if !errors.As(err, &jobErr) {
		return http.StatusInternalServerError, CodeInternal, internalMessage
	}
	switch jobErr.Kind {
	case jobs.KindNotFound:
		return http.StatusNotFound, CodeNotFound, jobErr.Msg
	case jobs.KindConflict:
		return http.StatusConflict, CodeConflict, jobErr.Msg
	case jobs.KindForbidden:
		return http.StatusForbidden, CodeForbidden, jobErr.Msg
	case jobs.KindValidation:
		return http.StatusBadRequest, CodeValidationFailed, jobErr.Msg
	case jobs.KindTransient:
		return http.StatusServiceUnavailable, CodeTransient, jobErr.Msg
	default:
		return http.StatusInternalServerError, CodeInternal, internalMessage
	}
}
