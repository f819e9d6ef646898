// Package validation wraps a shared go-playground validator configured with
// the catalog's custom rules and converts its failures into apperr values.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Clark-Hu/movie-reviews/internal/apperr"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	// now is replaced in tests.
	now = time.Now
)

// Validator returns the process-wide validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		mustRegister(v, "notblank", notBlank)
		mustRegister(v, "genre", isGenre)
		mustRegister(v, "releaseyear", isReleaseYear)
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		return strings.TrimSpace(field.String()) != ""
	case reflect.Ptr:
		if field.IsNil() {
			return true
		}
		return field.Elem().Kind() != reflect.String || strings.TrimSpace(field.Elem().String()) != ""
	default:
		return !field.IsZero()
	}
}

func isGenre(fl validator.FieldLevel) bool {
	return domain.IsGenre(fl.Field().String())
}

func isReleaseYear(fl validator.FieldLevel) bool {
	year := int(fl.Field().Int())
	return year >= domain.EarliestReleaseYear && year <= domain.LatestReleaseYear(now())
}

// Struct validates s and returns an *apperr.Error of kind Validation listing
// every failing field, or nil.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fieldPath(fe),
			Message: message(fe),
		})
	}
	return apperr.Validation(fields[0].Field+" "+fields[0].Message, fields...)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be empty"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid id"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "genre":
		return "must be one of: " + strings.Join(domain.Genres, ", ")
	case "releaseyear":
		return fmt.Sprintf("must be between %d and %d", domain.EarliestReleaseYear, domain.LatestReleaseYear(now()))
	case "alphanum":
		return "must contain only letters and numbers"
	default:
		return "is invalid"
	}
}
