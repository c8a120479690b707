package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom binding rules on gin's validator.
//
//   - campusemail: the address ends with domain (case-insensitive) and has a
//     local part.
func RegisterValidators(domain string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	domain = strings.ToLower(domain)
	return v.RegisterValidation("campusemail", func(fl validator.FieldLevel) bool {
		email := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		return len(email) > len(domain) && strings.HasSuffix(email, domain)
	})
}

// bindMessage turns a binding failure into a caller-facing reason.
func bindMessage(err error, domain string) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "campusemail":
		return "only " + domain + " emails are allowed"
	case "oneof":
		return field + " must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return field + " is too long"
	default:
		return "invalid " + field
	}
}
