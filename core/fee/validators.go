package fee

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/conservatoire/core"
)

var (
	amountNotNegTag  = "feeamountneg"
	amountNotNegText = "amount must be 0 or greater"

	rangeOrderTag  = "feerange"
	rangeOrderText = "effective_to must be after effective_from"
)

// InitValidators registers the fee schedule validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(entryStructValidation, NewEntry{})
	core.RegisterCustomTranslation(validate, translator, amountNotNegTag, amountNotNegText)
	core.RegisterCustomTranslation(validate, translator, rangeOrderTag, rangeOrderText)
}

// entryStructValidation does struct level validation on NewEntry.
func entryStructValidation(sl validator.StructLevel) {
	ne, ok := sl.Current().Interface().(NewEntry)
	if !ok {
		return
	}
	if ne.Amount.IsNegative() {
		sl.ReportError(ne.Amount, "amount", "Amount", amountNotNegTag, "")
	}
	if ne.EffectiveTo != nil && !ne.EffectiveTo.After(ne.EffectiveFrom) {
		sl.ReportError(ne.EffectiveTo, "effective_to", "EffectiveTo", rangeOrderTag, "")
	}
}
