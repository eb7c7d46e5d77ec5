package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Letters, digits and @.+-_ only.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validationMessages turns validator errors into one sentence per field,
// keyed by the field's label tag.
func validationMessages(err error, labels map[string]string) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		label, ok := labels[fe.Field()]
		if !ok {
			label = strings.ToLower(fe.Field())
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("The %s field is required.", label))
		case "max":
			msgs = append(msgs, fmt.Sprintf("The %s must be at most %s characters.", label, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("The %s must be at least %s characters.", label, fe.Param()))
		case "email":
			msgs = append(msgs, "Enter a valid email address.")
		case "eqfield":
			msgs = append(msgs, "The two password fields didn't match.")
		case "username":
			msgs = append(msgs, "Enter a valid username. It may contain only letters, numbers, and @/./+/-/_ characters.")
		case "ip":
			msgs = append(msgs, "Enter a valid IPv4 or IPv6 address.")
		default:
			msgs = append(msgs, fmt.Sprintf("The %s is invalid.", label))
		}
	}
	return msgs
}

func errorFlashes(msgs []string) []Flash {
	flashes := make([]Flash, len(msgs))
	for i, m := range msgs {
		flashes[i] = flashError(m)
	}
	return flashes
}
