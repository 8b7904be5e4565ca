package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

// Validator checks struct tags and reports the first failure as a
// validation AppError.
type Validator interface {
	Validate(interface{}) error
}

// Rule is a custom tag registered on top of the built-in ones.
type Rule struct {
	Tag     string
	Fn      validator.Func
	Message string
}

// TypeFunc converts a custom field type into something the tag rules can
// inspect, e.g. a decimal into its string form.
type TypeFunc struct {
	Fn    validator.CustomTypeFunc
	Types []interface{}
}

type structValidator struct {
	v        *validator.Validate
	messages map[string]string
}

var defaultMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
	"min":      "is too short or too small",
	"max":      "is too long or too large",
	"gte":      "is below the minimum",
	"gt":       "must be greater than the minimum",
	"url":      "must be a valid URL",
	"uuid":     "must be a valid UUID",
}

// New builds a validator with the given custom rules. Field names in errors
// use the json tag.
func New(rules []Rule, types ...TypeFunc) (Validator, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	messages := make(map[string]string, len(defaultMessages)+len(rules))
	for k, m := range defaultMessages {
		messages[k] = m
	}
	for _, r := range rules {
		if err := v.RegisterValidation(r.Tag, r.Fn); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", r.Tag, err)
		}
		if r.Message != "" {
			messages[r.Tag] = r.Message
		}
	}
	for _, t := range types {
		v.RegisterCustomTypeFunc(t.Fn, t.Types...)
	}
	return &structValidator{v: v, messages: messages}, nil
}

func (s *structValidator) Validate(obj interface{}) error {
	err := s.v.Struct(obj)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewValidation("", err.Error())
	}
	first := verrs[0]
	msg, ok := s.messages[first.Tag()]
	if !ok {
		msg = fmt.Sprintf("failed %s validation", first.Tag())
	}
	if first.Param() != "" && (first.Tag() == "vocab" || first.Tag() == "oneof") {
		msg = fmt.Sprintf("%s (%s)", msg, first.Param())
	}
	return apperrors.NewValidation(first.Field(), fmt.Sprintf("%s %s", first.Field(), msg))
}
