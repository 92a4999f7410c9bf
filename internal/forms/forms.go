// Package forms validates the input of the login, register and post forms
// before anything is sent to the backend.
package forms

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

// MinPasswordLength is the shortest password the backend accepts.
const MinPasswordLength = 6

const (
	msgInvalidEmailFormat = "Invalid email format"
	msgInvalidEmail       = "Invalid email"
	msgPasswordTooShort   = "Password must be at least 6 characters"
	msgNameRequired       = "Name is required"
	msgCaptionTooLong     = "Caption must be at most 280 characters"
	msgPostEmpty          = "Add a caption or an image"
)

// FieldError reports a single invalid field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors maps field names to messages. A nil or empty Errors is valid input.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return strings.Join(parts, "; ")
}

// Err returns nil when there are no field errors.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Login is the sign-in form.
type Login struct {
	Email    string
	Password string
}

// Validate returns the first invalid field as a *FieldError.
func (l Login) Validate() error {
	if !govalidator.IsEmail(strings.TrimSpace(l.Email)) {
		return &FieldError{Field: "email", Message: msgInvalidEmailFormat}
	}
	if utf8.RuneCountInString(l.Password) < MinPasswordLength {
		return &FieldError{Field: "password", Message: msgPasswordTooShort}
	}
	return nil
}

// Register is the sign-up form. Image is an optional avatar path.
type Register struct {
	Name     string
	Email    string
	Password string
	Image    string
}

// Validate reports every invalid field.
func (r Register) Validate() Errors {
	errs := Errors{}
	if strings.TrimSpace(r.Name) == "" {
		errs["name"] = msgNameRequired
	}
	if !govalidator.IsEmail(strings.TrimSpace(r.Email)) {
		errs["email"] = msgInvalidEmail
	}
	if utf8.RuneCountInString(r.Password) < MinPasswordLength {
		errs["password"] = msgPasswordTooShort
	}
	return errs
}

// Post is the create-post form.
type Post struct {
	Caption  string
	HasImage bool
}

// Validate returns the first invalid field as a *FieldError.
func (p Post) Validate() error {
	if utf8.RuneCountInString(p.Caption) > models.MaxCaptionLength {
		return &FieldError{Field: "caption", Message: msgCaptionTooLong}
	}
	if strings.TrimSpace(p.Caption) == "" && !p.HasImage {
		return &FieldError{Field: "caption", Message: msgPostEmpty}
	}
	return nil
}
