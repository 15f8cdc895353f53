// Package render writes JSON responses and binds validated JSON requests.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
	ServiceErrorType    = "service_error"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	configureValidator(validate)
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	write(w, data, http.StatusOK)
}

// 500 without leaking error details
func InternalError(w http.ResponseWriter) {
	ServiceError(w, "Internal server error", http.StatusInternalServerError)
}

func ServiceError(w http.ResponseWriter, message string, code int) {
	write(w, ErrorResponse{Error: ServiceErrorType, Message: message}, code)
}

func DecodeError(w http.ResponseWriter, err error) {
	write(w, ErrorResponse{Error: DecodingErrorType, Message: decodeMessage(err)}, http.StatusBadRequest)
}

func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = fieldMessage(fe)
	}

	write(w, ErrorResponse{
		Error:   ValidationErrorType,
		Message: "Request validation failed",
		Fields:  fields,
	}, http.StatusBadRequest)
}

// BindAndValidate decodes the JSON body into T and validates it with struct tags.
// On failure the error response is already written.
func BindAndValidate[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	return bind[T](w, r, false)
}

// BindOptional is BindAndValidate that accepts an empty body as zero T
func BindOptional[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	return bind[T](w, r, true)
}

func bind[T any](w http.ResponseWriter, r *http.Request, allowEmpty bool) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	switch {
	case err == nil:
	case allowEmpty && errors.Is(err, io.EOF):
	default:
		DecodeError(w, err)
		return value, err
	}

	if err := validate.Struct(value); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			ValidationErrors(w, errs)
		} else {
			InternalError(w)
		}
		return value, err
	}

	return value, nil
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	case errors.Is(err, io.EOF):
		return "Request body is empty"
	default:
		return "Failed to parse JSON: " + err.Error()
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Value is too short (minimum %s)", fe.Param())
	case "max":
		return fmt.Sprintf("Value is too long (maximum %s)", fe.Param())
	case "email":
		return "Invalid email address"
	case "eqfield":
		return "Must match " + lowerFirst(fe.Param())
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "datetime":
		return "Invalid date, expected " + fe.Param()
	case "zipcode":
		return "Invalid zip code, expected 00000-000"
	default:
		return "Invalid value"
	}
}

// write encodes before touching headers so an encoding failure still yields a clean 500
func write(w http.ResponseWriter, data any, code int) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
