package render

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Brazilian CEP: 8 digits, dash is optional
var zipCodeRe = regexp.MustCompile(`^\d{5}-?\d{3}$`)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("zipcode", validateZipCode)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func validateZipCode(fl validator.FieldLevel) bool {
	return zipCodeRe.MatchString(fl.Field().String())
}
