package contextutils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	// Register the english error messages for validation errors.
	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Name fields by their form label instead of the Go struct name.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		return strings.ToLower(fld.Name)
	})
}

// IsValidEmail checks if an email address is valid using go-playground/validator
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}

// IsValidPhone accepts E.164 numbers as well as local numbers written with
// spaces or dashes, which are stripped before validation.
func IsValidPhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	if validate.Var(cleaned, "e164") == nil {
		return true
	}
	return validate.Var(cleaned, "numeric,min=7,max=15") == nil
}

// ValidateStruct runs the `validate` struct tags of v.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}

// ValidateStructPartial validates only the named fields of v. Names are Go
// field names, not labels.
func ValidateStructPartial(v interface{}, fields ...string) error {
	return validate.StructPartial(v, fields...)
}

// ValidationMessage translates validator output into one sentence per failed
// field, joined with "; ". Other errors are returned as their text.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(translator))
	}
	return strings.Join(msgs, "; ")
}
