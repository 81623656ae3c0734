package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Field errors are keyed by the JSON name the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// money: positive major-unit amount with at most two fraction digits, e.g. "10.50".
	// money0 is the same but also accepts zero, for task rewards.
	_ = v.RegisterValidation("money", amountRule(false))
	_ = v.RegisterValidation("money0", amountRule(true))

	_ = v.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "telebirr", "chapa":
			return true
		}
		return false
	})
	return v
}

func amountRule(allowZero bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil || d.Exponent() < -2 {
			return false
		}
		if allowZero {
			return !d.IsNegative()
		}
		return d.IsPositive()
	}
}

var messages = map[string]string{
	"required":    "This field is required",
	"required_if": "This field is required",
	"url":         "Invalid URL format",
	"uuid":        "Invalid id",
	"alphanum":    "Only letters and digits are allowed",
	"money":       "Invalid amount. Must be positive with at most 2 decimal places",
	"money0":      "Invalid amount. Must be zero or positive with at most 2 decimal places",
	"provider":    "Invalid provider. Must be: telebirr or chapa",
}

func message(fe validator.FieldError) string {
	if m, ok := messages[fe.Tag()]; ok {
		return m
	}
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("Value is too short (min: %s)", fe.Param())
	case "max":
		return fmt.Sprintf("Value is too long (max: %s)", fe.Param())
	case "gt", "gte":
		return "Value must be at least " + fe.Param()
	case "lte":
		return "Value must be at most " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	}
	return "Invalid value"
}

// Validate checks s against its validate tags and returns field -> message, or nil.
func Validate(s any) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}
