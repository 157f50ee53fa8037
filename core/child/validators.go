package child

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinderhub/core"
)

var (
	childStatusTag  = "childstatus"
	childStatusText = "invalid status"
)

// InitValidators registers the child validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(childStatusTag, childStatusValidation)
	core.RegisterCustomTranslation(validate, translator, childStatusTag, childStatusText)
}

func childStatusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}
