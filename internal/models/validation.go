package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/desertthunder/igloo/internal/shared"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return strings.ToLower(f.Name)
			}
			return name
		})
		_ = validate.RegisterValidation("localpath", func(fl validator.FieldLevel) bool {
			return IsLocalPath(fl.Field().String())
		})
	})
	return validate
}

// FieldError describes one failed field check.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (f FieldError) String() string {
	field := f.Field
	switch f.Tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, f.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, f.Param)
	case "alphanum":
		return field + " may only contain letters and numbers"
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, f.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, f.Param)
	default:
		return field + " is invalid"
	}
}

// ValidationError is returned by [Validate] when one or more fields fail. It wraps [shared.ErrInvalidInput].
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return shared.ErrInvalidInput }

// Field returns the message for the named field, or "" when it passed.
func (e *ValidationError) Field(name string) string {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Field, name) {
			return f.String()
		}
	}
	return ""
}

// Validate checks v's struct tags.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// ValidateNewUser validates input for creation, where a password is mandatory.
func ValidateNewUser(in UserInput) error {
	if err := Validate(in); err != nil {
		return err
	}
	if in.Password == "" {
		return &ValidationError{Fields: []FieldError{{Field: "password", Tag: "required"}}}
	}
	return nil
}

// IsLocalPath reports whether p is an absolute path on this site, rejecting
// scheme-relative ("//host") and backslash forms browsers treat as external.
func IsLocalPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}
