package notification

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Payload is the JSON body accepted by the notify endpoint. The email address
// may arrive under either "mail" or "email"; "nombre" and "telefono" are kept
// as aliases for callers still sending the legacy field names.
type Payload struct {
	Name     string `json:"name"`
	Nombre   string `json:"nombre,omitempty"`
	Mail     string `json:"mail,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Telefono string `json:"telefono,omitempty"`
}

// NotificationRequest is a normalized, validated Payload.
//
//nolint:revive
type NotificationRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ResolveEmail picks the address to notify about. "mail" takes priority over
// "email"; blank values count as absent.
func (p Payload) ResolveEmail() string {
	return firstNonBlank(p.Mail, p.Email)
}

// Normalize trims every field, resolves the email alias and validates the
// result. It returns a *ValidationError when the name is missing or the email
// is missing or malformed.
func (p Payload) Normalize() (NotificationRequest, error) {
	req := NotificationRequest{
		Name:  firstNonBlank(p.Name, p.Nombre),
		Email: p.ResolveEmail(),
		Phone: firstNonBlank(p.Phone, p.Telefono),
	}

	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return NotificationRequest{}, validationErrorFor(fieldErrs[0])
		}
		return NotificationRequest{}, &ValidationError{Message: err.Error()}
	}
	return req, nil
}

func validationErrorFor(fe validator.FieldError) *ValidationError {
	switch {
	case fe.Field() == "email" && fe.Tag() == "required":
		return &ValidationError{Field: "email", Message: "email/mail is required"}
	case fe.Field() == "email":
		return &ValidationError{Field: "email", Message: "email/mail is not a valid address"}
	case fe.Tag() == "required":
		return &ValidationError{Field: fe.Field(), Message: fe.Field() + " is required"}
	}
	return &ValidationError{Field: fe.Field(), Message: "failed " + fe.Tag() + " validation"}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
