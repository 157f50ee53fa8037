package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinderhub/core"
)

var (
	pickupActorTag  = "pickupactor"
	pickupActorText = "{0} must be one of: parent, guardian, staff, other"
)

// InitValidators registers the attendance validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(pickupActorTag, pickupActorValidation)
	core.RegisterCustomTranslation(validate, translator, pickupActorTag, pickupActorText)
}

func pickupActorValidation(fl validator.FieldLevel) bool {
	return PickupActor(fl.Field().String()).Valid()
}
