package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var trans ut.Translator

// Setup wires English translations into Gin's binding validator and makes
// error messages use JSON tag names. Call once at startup.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	locale := en.New()
	trans, _ = ut.New(locale, locale).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(v, trans)
}

// Bind binds the JSON body into dst. Returns nil on success, otherwise a
// field-name to message map ready for the validation error envelope.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// TranslateErrors flattens a binding error into per-field messages. Errors
// that are not validation errors (malformed JSON) land under "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		fields["detail"] = err.Error()
		return fields
	}

	for _, fe := range ve {
		fields[fe.Field()] = fe.Translate(trans)
	}
	return fields
}
