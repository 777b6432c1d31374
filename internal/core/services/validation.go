package services

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("password", strongPassword); err != nil {
		panic(err)
	}
	return v
}

// strongPassword requires at least one upper-case letter, one lower-case
// letter and one digit. Length is checked by min/max.
func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit bool
	for _, c := range fl.Field().String() {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}

// invalid wraps a validator failure with the given sentinel so callers can
// classify it with errors.Is and still show the field detail.
func invalid(sentinel error, err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		fe := errs[0]
		return fmt.Errorf("%w: %s failed on %s", sentinel, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
