package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Validate runs struct tag validation and returns a readable summary.
func Validate(v any) ([]ValidationError, error) {
	err := validate.Struct(v)
	if err == nil {
		return nil, nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, err
	}
	out := make([]ValidationError, len(ve))
	msgs := make([]string, len(ve))
	for i, fe := range ve {
		out[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			out[i].Message = fmt.Sprintf("%s is required", fe.Field())
		case "min":
			out[i].Message = fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
		case "max":
			out[i].Message = fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
		case "e164":
			out[i].Message = fmt.Sprintf("%s must be an E.164 phone number", fe.Field())
		case "mongodb":
			out[i].Message = fmt.Sprintf("%s must contain valid ids", fe.Field())
		default:
			out[i].Message = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
		}
		msgs[i] = out[i].Message
	}
	return out, errors.New(strings.Join(msgs, "; "))
}
