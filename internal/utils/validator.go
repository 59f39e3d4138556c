// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/javajoker/authchain/internal/ledger"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("ether_amount", validateEtherAmount)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateVar checks a single value against a tag such as "eth_addr".
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}

func validateEtherAmount(fl validator.FieldLevel) bool {
	_, err := ledger.ParseEther(fl.Field().String())
	return err == nil
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   lowerFirst(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	field := lowerFirst(e.Field())
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return field + " must be greater than " + e.Param()
	case "max":
		return field + " must be at most " + e.Param() + " characters"
	case "eth_addr":
		return field + " must be a 0x-prefixed hex address"
	case "ether_amount":
		return field + " must be a non-negative decimal amount with at most 18 decimals"
	default:
		return field + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
