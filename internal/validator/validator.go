// Package validator provides custom validation functions for Gin's binding engine
// and maps validation failures to per-field messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"ticketdesk/internal/models"
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var once sync.Once

// Register registers all custom validators with the Gin binding engine and
// reports fields by their JSON names. Safe to call more than once.
func Register() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("username_chars", validateUsernameChars)
		_ = v.RegisterValidation("user_role", validateUserRole)
		_ = v.RegisterValidation("ticket_priority", validateTicketPriority)
	})
}

// Struct validates s with the same engine and tags used for request binding.
func Struct(s interface{}) error {
	Register()
	return binding.Validator.ValidateStruct(s)
}

// FieldErrors converts a validation error into a map of field name to message.
// It returns nil when err is not a validation failure (for example malformed JSON).
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Missing data for required field."
	case "min":
		return fmt.Sprintf("Shorter than minimum length %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Longer than maximum length %s.", fe.Param())
	case "email":
		return "Not a valid email address."
	case "username_chars":
		return "Username may only contain letters, numbers, dots, underscores, and hyphens."
	case "user_role":
		return "Must be one of: user, admin."
	case "ticket_priority":
		return "Must be one of: low, medium, high."
	}
	return fmt.Sprintf("Failed %s validation.", fe.Tag())
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func validateUsernameChars(fl validator.FieldLevel) bool {
	return usernameRegex.MatchString(fl.Field().String())
}

func validateUserRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).IsValid()
}

func validateTicketPriority(fl validator.FieldLevel) bool {
	return models.Priority(fl.Field().String()).IsValid()
}
