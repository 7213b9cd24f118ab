package profile

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ihub/core"
)

var (
	yearLevelTag  = "yearlevel"
	yearLevelText = "year level must be one of: " + strings.Join(YearLevels, ", ")
)

// InitValidators registers the profile validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(yearLevelTag, func(fl validator.FieldLevel) bool {
		return IsYearLevel(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, yearLevelTag, yearLevelText)
}
