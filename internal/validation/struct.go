package validation

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one rejected input field, shaped the way the web client
// renders form alerts.
type FieldError struct {
	Param string `json:"param"`
	Msg   string `json:"msg"`
}

// Errors is returned by Validator.Struct when at least one field fails.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Param+": "+fe.Msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Messages returns the field messages in order.
func (e Errors) Messages() []string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Msg)
	}
	return msgs
}

// AsErrors unwraps err into field errors.
func AsErrors(err error) (Errors, bool) {
	var fieldErrs Errors
	if errors.As(err, &fieldErrs) {
		return fieldErrs, true
	}
	return nil, false
}

// Validator wraps go-playground/validator. Field names are reported by their
// json tag and each field may carry a `msg` tag with the user-facing message.
// A `msg_<rule>` tag overrides `msg` when that rule is the one that failed.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return ValidateURL(fl.Field().String(), fl.FieldName(), false) == nil
	})
	// maxbytes bounds the encoded length, e.g. bcrypt's 72-byte input limit.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return &Validator{validate: v}
}

// Struct validates s and returns Errors on failure. Any other error from the
// underlying validator (for example a non-struct argument) is returned as is.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	root := reflect.TypeOf(s)
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Param: fe.Field(),
			Msg:   messageFor(root, fe),
		})
	}
	return out
}

func messageFor(root reflect.Type, fe validator.FieldError) string {
	if field, ok := lookupField(root, fe.StructNamespace()); ok {
		if msg := field.Tag.Get("msg_" + fe.Tag()); msg != "" {
			return msg
		}
		if msg := field.Tag.Get("msg"); msg != "" {
			return msg
		}
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Please include a valid email"
	case "httpurl", "url":
		return "Please include a valid URL"
	case "maxbytes":
		return fe.Field() + " is too long"
	default:
		return "Invalid value"
	}
}

// lookupField walks a namespace such as "ProfileInput.Social.Twitter" from
// the root type down to the named struct field.
func lookupField(root reflect.Type, namespace string) (reflect.StructField, bool) {
	parts := strings.Split(namespace, ".")
	if len(parts) < 2 {
		return reflect.StructField{}, false
	}

	typ := root
	var field reflect.StructField
	for _, part := range parts[1:] {
		if i := strings.IndexByte(part, '['); i >= 0 {
			part = part[:i]
		}
		for typ.Kind() == reflect.Pointer || typ.Kind() == reflect.Slice {
			typ = typ.Elem()
		}
		if typ.Kind() != reflect.Struct {
			return reflect.StructField{}, false
		}
		f, ok := typ.FieldByName(part)
		if !ok {
			return reflect.StructField{}, false
		}
		field = f
		typ = f.Type
	}
	return field, true
}
