// AngelaMos | 2026
// validation.go

package core

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var academicYearPattern = regexp.MustCompile(`^(\d{2})/(\d{2})$`)

// IsAcademicYear reports whether s has the NN/NN shape with the second pair
// following the first, e.g. 23/24 or 99/00.
func IsAcademicYear(s string) bool {
	m := academicYearPattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}

	first, _ := strconv.Atoi(m[1])  //nolint:errcheck // regex guarantees digits
	second, _ := strconv.Atoi(m[2]) //nolint:errcheck // regex guarantees digits

	return second == (first+1)%100
}

func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	//nolint:errcheck // tag name is static and valid
	_ = v.RegisterValidation("academic_year", func(fl validator.FieldLevel) bool {
		return IsAcademicYear(fl.Field().String())
	})

	return v
}

// ValidationDetails flattens validator errors into field/message pairs.
func ValidationDetails(err error) []FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	details := make([]FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, FieldError{
			Field:   e.Field(),
			Message: describeTag(e),
		})
	}

	return details
}

func FormatValidationError(err error) string {
	details := ValidationDetails(err)
	parts := make([]string, 0, len(details))
	for _, d := range details {
		parts = append(parts, d.Field+": "+d.Message)
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct runs v against s and returns a VALIDATION_ERROR carrying the
// field details, or nil.
func ValidateStruct(v *validator.Validate, s any) error {
	if err := v.Struct(s); err != nil {
		return ValidationError(ValidationDetails(err)...)
	}
	return nil
}

func describeTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "uuid", "uuid4":
		return "must be a valid identifier"
	case "len":
		return fmt.Sprintf("must have length %s", e.Param())
	case "numeric":
		return "must be numeric"
	case "academic_year":
		return "must look like NN/NN with consecutive years"
	}
	return fmt.Sprintf("failed %s validation", e.Tag())
}
