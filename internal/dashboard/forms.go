package dashboard

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

type signUpForm struct {
	FirstName         string `json:"firstName" validate:"required"`
	LastName          string `json:"lastName" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	PhoneNumber       string `json:"phoneNumber" validate:"required,phone"`
	PreferredLanguage string `json:"preferredLanguage"`
	Password          string `json:"password" validate:"required,min=6"`
	ConfirmPassword   string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func (f *signUpForm) trim() {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	f.PreferredLanguage = strings.TrimSpace(f.PreferredLanguage)
}

type signInForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileForm struct {
	FirstName         string `json:"firstName" validate:"required"`
	LastName          string `json:"lastName" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	PhoneNumber       string `json:"phoneNumber" validate:"required,phone"`
	PreferredLanguage string `json:"preferredLanguage"`
}

func (f *profileForm) trim() {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	f.PreferredLanguage = strings.TrimSpace(f.PreferredLanguage)
}

type sosForm struct {
	Location *struct {
		Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
		Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
	} `json:"location"`
	Contacts []string `json:"contacts"`
}

const minPhoneDigits = 10

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		digits := 0
		for _, r := range fl.Field().String() {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		return digits >= minPhoneDigits
	})
	return v
}

// fieldErrors converts validator output into per-field messages.
func fieldErrors(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out, true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Please fill in all fields"
	case "email":
		return "Please enter a valid email address"
	case "min":
		return "Password must be at least 6 characters long"
	case "eqfield":
		return "Passwords do not match"
	case "phone":
		return "Please enter a valid phone number"
	case "datetime":
		return "Use the yyyy-mm-dd date format"
	case "gte", "lte":
		return "Value is out of range"
	default:
		return "Invalid value"
	}
}
