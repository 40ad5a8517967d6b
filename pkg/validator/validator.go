package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var sqlIdentRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const maxRecordIDLength = 255

// isSQLIdent checks that a string can be safely interpolated as a quoted SQL identifier.
func isSQLIdent(fl validator.FieldLevel) bool {
	return sqlIdentRegex.MatchString(fl.Field().String())
}

// isRecordID checks for a non-blank identifier that fits the id column.
func isRecordID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.TrimSpace(s) != "" && len(s) <= maxRecordIDLength
}

// IsSQLIdent is the plain-function form of the sqlident rule.
func IsSQLIdent(s string) bool {
	return sqlIdentRegex.MatchString(s)
}

// RegisterCustomValidators registers custom validation functions with the validator.
func RegisterCustomValidators(validate *validator.Validate) error {
	if err := validate.RegisterValidation("sqlident", isSQLIdent); err != nil {
		return fmt.Errorf("register sqlident: %w", err)
	}
	if err := validate.RegisterValidation("recordid", isRecordID); err != nil {
		return fmt.Errorf("register recordid: %w", err)
	}
	return nil
}

// New returns a validator with the custom rules registered.
func New() (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(validate); err != nil {
		return nil, err
	}
	return validate, nil
}
