// Package constraint evaluates a collection's FieldConstraint set against
// the flattened projection of a candidate document (spec §4.4, component
// E).
package constraint

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/lattice/lattice/internal/lattice/flatten"
	"github.com/lattice/lattice/internal/lattice/model"
)

// FieldError describes one constraint violation.
type FieldError struct {
	FieldPath string
	Message   string
}

// Result is the outcome of validating a document against a constraint set.
type Result struct {
	OK     bool
	Errors []FieldError
}

// Validate checks values against constraints and returns a Result whose
// Errors are sorted deterministically by FieldPath (spec §4.4).
func Validate(values []flatten.Value, constraints []model.FieldConstraint) Result {
	var errs []FieldError

	byPath := make(map[string][]flatten.Value, len(values))
	for _, v := range values {
		byPath[v.Key] = append(byPath[v.Key], v)
	}

	for _, c := range constraints {
		matches := byPath[c.FieldPath]

		if c.Required && len(matches) == 0 {
			errs = append(errs, FieldError{FieldPath: c.FieldPath, Message: "required field is missing"})
			continue
		}

		for _, v := range matches {
			errs = append(errs, validateValue(c, v)...)
		}

		if c.ArrayElementType != nil {
			errs = append(errs, validateArrayElementType(c, matches)...)
		}
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].FieldPath < errs[j].FieldPath })

	return Result{OK: len(errs) == 0, Errors: errs}
}

func validateValue(c model.FieldConstraint, v flatten.Value) []FieldError {
	var errs []FieldError

	if c.DataType != nil && v.DataType != *c.DataType {
		if !(v.DataType == "null" && c.Nullable) {
			errs = append(errs, FieldError{
				FieldPath: c.FieldPath,
				Message:   "expected type " + *c.DataType + ", got " + v.DataType,
			})
		}
	}

	if v.DataType == "null" && !c.Nullable {
		errs = append(errs, FieldError{FieldPath: c.FieldPath, Message: "value must not be null"})
	}

	if c.RegexPattern != nil && v.DataType != "null" {
		re, err := regexp.Compile(*c.RegexPattern)
		if err == nil && !re.MatchString(v.Value) {
			errs = append(errs, FieldError{FieldPath: c.FieldPath, Message: "value does not match pattern"})
		}
	}

	if c.MinLength != nil && len(v.Value) < *c.MinLength {
		errs = append(errs, FieldError{FieldPath: c.FieldPath, Message: "value is shorter than minLength"})
	}
	if c.MaxLength != nil && len(v.Value) > *c.MaxLength {
		errs = append(errs, FieldError{FieldPath: c.FieldPath, Message: "value is longer than maxLength"})
	}

	if (c.MinValue != nil || c.MaxValue != nil) && (v.DataType == "integer" || v.DataType == "number") {
		if n, err := strconv.ParseFloat(v.Value, 64); err == nil {
			if c.MinValue != nil && n < *c.MinValue {
				errs = append(errs, FieldError{FieldPath: c.FieldPath, Message: "value is less than minValue"})
			}
			if c.MaxValue != nil && n > *c.MaxValue {
				errs = append(errs, FieldError{FieldPath: c.FieldPath, Message: "value is greater than maxValue"})
			}
		}
	}

	if len(c.AllowedValues) > 0 {
		allowed := false
		for _, a := range c.AllowedValues {
			if a == v.Value {
				allowed = true
				break
			}
		}
		if !allowed {
			errs = append(errs, FieldError{FieldPath: c.FieldPath, Message: "value is not in allowedValues"})
		}
	}

	return errs
}

// validateArrayElementType checks every array-positioned entry for a field
// against the constraint's declared element type, once per constraint
// rather than once per sibling (spec §4.4 point 2, last bullet).
func validateArrayElementType(c model.FieldConstraint, matches []flatten.Value) []FieldError {
	var errs []FieldError
	for _, v := range matches {
		if v.Position != nil && v.DataType != *c.ArrayElementType {
			errs = append(errs, FieldError{
				FieldPath: c.FieldPath,
				Message:   "array element has type " + v.DataType + ", expected " + *c.ArrayElementType,
			})
		}
	}
	return errs
}
