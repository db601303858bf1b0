package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	ifscRe          = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	accountNumberRe = regexp.MustCompile(`^[0-9]{9,18}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("ifsc", validateIFSC)
		_ = v.RegisterValidation("account_number", validateAccountNumber)
		_ = v.RegisterValidation("safe_text", validateSafeText)
	}
}

// validateIFSC checks the 11-character bank branch code: four letters, a
// zero, then six alphanumerics.
func validateIFSC(fl validator.FieldLevel) bool {
	return ifscRe.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
}

func validateAccountNumber(fl validator.FieldLevel) bool {
	return accountNumberRe.MatchString(strings.TrimSpace(fl.Field().String()))
}

// validateSafeText rejects control characters.
func validateSafeText(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return false
		}
	}
	return true
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
