// Request payload validation. Uses go-playground/validator with custom
// validators for slugs and field names.
package planforms

import (
	"regexp"
	"unicode/utf8"

	"github.com/go-playground/validator"
)

type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	err := v.RegisterValidation("slug", slugValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("fieldName", fieldNameValidator)
	if err != nil {
		return nil
	}
	return &RequestValidator{v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validator.Struct(i); err != nil {
		_, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil
		}
		return err
	}
	return nil
}

func slugValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	lenStr := utf8.RuneCountInString(value)
	if !isValidLatinLowerDigitHyphen(value) {
		return false
	}
	return lenStr >= 3 && lenStr <= 50
}

// Field names are machine keys, they travel as form-data keys and csv
// headers.
func fieldNameValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	lenStr := utf8.RuneCountInString(value)
	if !isValidIdentifier(value) {
		return false
	}
	return lenStr >= 1 && lenStr <= 100
}

func isValidLatinLowerDigitHyphen(str string) bool {
	pt := `^[a-z0-9-]+$`
	re := regexp.MustCompile(pt)
	return re.MatchString(str)
}

func isValidIdentifier(str string) bool {
	pt := `^[A-Za-z][A-Za-z0-9_-]*$`
	re := regexp.MustCompile(pt)
	return re.MatchString(str)
}
