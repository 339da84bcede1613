package student

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
)

var (
	lrnTag   = "lrn"
	lrnText  = "LRN must be exactly 12 digits"
	lrnRegex = regexp.MustCompile(`^\d{12}$`)

	personNameTag   = "personname"
	personNameText  = "{0} can only contain letters and spaces"
	personNameRegex = regexp.MustCompile(`^[\p{L} ]+$`)

	phonePHTag   = "phoneph"
	phonePHText  = "{0} must contain digits only, start with 09 and be at most 11 digits long"
	phonePHRegex = regexp.MustCompile(`^09\d{0,9}$`)
)

// InitValidators registers the student validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(lrnTag, regexValidation(lrnRegex))
	core.RegisterCustomTranslation(validate, translator, lrnTag, lrnText)

	_ = validate.RegisterValidation(personNameTag, regexValidation(personNameRegex))
	core.RegisterCustomTranslation(validate, translator, personNameTag, personNameText)

	_ = validate.RegisterValidation(phonePHTag, regexValidation(phonePHRegex))
	core.RegisterCustomTranslation(validate, translator, phonePHTag, phonePHText)
}

func regexValidation(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func validLRN(lrn string) bool {
	return lrnRegex.MatchString(lrn)
}
