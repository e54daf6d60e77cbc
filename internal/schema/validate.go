package schema

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// ErrValidationRejected is matched by every error DecodeInsert returns for a
// bad payload.
var ErrValidationRejected = errors.New("validation rejected")

// ValidationError lists the problems found in an insert payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrValidationRejected.Error() + ": " + strings.Join(e.Problems, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationRejected
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// DecodeInsert decodes one JSON object into an insert payload of type T.
// Unknown fields (server-generated columns included) and type mismatches are
// rejected, then the validate tags on T are checked.
func DecodeInsert[T any](data []byte) (*T, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var out T
	if err := dec.Decode(&out); err != nil {
		return nil, &ValidationError{Problems: []string{decodeProblem(err)}}
	}
	if dec.More() {
		return nil, &ValidationError{Problems: []string{"unexpected data after JSON object"}}
	}
	if err := Validate(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate checks the validate tags on v.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fieldProblem(fe))
	}
	return &ValidationError{Problems: problems}
}

func fieldProblem(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "url":
		return fe.Field() + " must be a valid URL"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func decodeProblem(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be %s", typeErr.Field, typeErr.Type.String())
	}
	msg := err.Error()
	if strings.Contains(msg, "unknown field") {
		return strings.TrimPrefix(msg, "json: ")
	}
	return "malformed JSON: " + msg
}
