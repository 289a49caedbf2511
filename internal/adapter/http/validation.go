package http

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError names one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
	Errors  []string     `json:"errors,omitempty"`
}

// migration names as they appear in the mapping file
var migrationName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// messages per validator tag; %s is the tag parameter
var tagMessages = map[string]string{
	"required":  "is required",
	"migration": "must start with a letter and contain only letters, digits, _ or -",
	"gte":       "must be greater than or equal to %s",
	"lte":       "must be less than or equal to %s",
}

// Validator plugs go-playground/validator into echo.
type Validator struct{ v *validator.Validate }

func NewValidator() *Validator {
	v := validator.New()
	// report fields under their json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("migration", func(fl validator.FieldLevel) bool {
		return migrationName.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error { return cv.v.Struct(i) }

// ToFieldErrors turns validator errors into readable field messages. Any
// other error becomes a single entry on field "_".
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		msg, ok := tagMessages[fe.Tag()]
		switch {
		case !ok:
			msg = fe.Tag() + " validation failed"
		case strings.Contains(msg, "%s"):
			msg = fmt.Sprintf(msg, fe.Param())
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}
