package util

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "github.com/tradesmatepro/portal-identity/internal/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
}

func IsValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func NewID() string {
	return uuid.NewString()
}

// ValidateStruct checks v against its validate tags and reports the first
// failing field as an AppError.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.ValidationError("invalid request").WithCause(err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperrors.MissingRequired(fe.Field())
	case "email":
		return apperrors.InvalidInput(fe.Field(), "must be a valid email address")
	case "max":
		return apperrors.InvalidInput(fe.Field(), "must be at most "+fe.Param()+" characters")
	case "len":
		return apperrors.InvalidInput(fe.Field(), "must be exactly "+fe.Param()+" characters")
	case "uuid":
		return apperrors.InvalidInput(fe.Field(), "must be a UUID")
	default:
		return apperrors.InvalidInput(fe.Field(), "failed "+fe.Tag()+" check")
	}
}

// ValidateVar checks a single value against a tag expression.
func ValidateVar(field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return ValidateFieldError(field, err)
	}
	return nil
}

func ValidateFieldError(field string, err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() == "required" {
		return apperrors.MissingRequired(field)
	}
	return apperrors.InvalidInput(field, "invalid value")
}
