package constraint

import (
	"testing"

	"github.com/lattice/lattice/internal/lattice/flatten"
	"github.com/lattice/lattice/internal/lattice/model"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }
func f64p(f float64) *float64 { return &f }

func mustFlatten(t *testing.T, raw string) []flatten.Value {
	t.Helper()
	values, err := flatten.Flatten([]byte(raw))
	if err != nil {
		t.Fatalf("flatten.Flatten: %v", err)
	}
	return values
}

func TestValidateRequiredFieldMissing(t *testing.T) {
	values := mustFlatten(t, `{"name":"ada"}`)
	constraints := []model.FieldConstraint{{FieldPath: "email", Required: true}}

	result := Validate(values, constraints)
	if result.OK {
		t.Fatal("expected validation failure for missing required field")
	}
	if len(result.Errors) != 1 || result.Errors[0].FieldPath != "email" {
		t.Fatalf("Errors = %+v", result.Errors)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	values := mustFlatten(t, `{"age":"thirty"}`)
	constraints := []model.FieldConstraint{{FieldPath: "age", DataType: strp("integer")}}

	result := Validate(values, constraints)
	if result.OK {
		t.Fatal("expected validation failure for type mismatch")
	}
}

func TestValidateNullRejectedWhenNotNullable(t *testing.T) {
	values := mustFlatten(t, `{"age":null}`)
	constraints := []model.FieldConstraint{{FieldPath: "age", Nullable: false}}

	result := Validate(values, constraints)
	if result.OK {
		t.Fatal("expected validation failure for disallowed null")
	}
}

func TestValidateNullAllowedWhenNullable(t *testing.T) {
	values := mustFlatten(t, `{"age":null}`)
	constraints := []model.FieldConstraint{{FieldPath: "age", DataType: strp("integer"), Nullable: true}}

	result := Validate(values, constraints)
	if !result.OK {
		t.Fatalf("expected validation success, got errors: %+v", result.Errors)
	}
}

func TestValidateRegexPattern(t *testing.T) {
	values := mustFlatten(t, `{"email":"not-an-email"}`)
	constraints := []model.FieldConstraint{{FieldPath: "email", RegexPattern: strp(`^[^@]+@[^@]+$`)}}

	result := Validate(values, constraints)
	if result.OK {
		t.Fatal("expected validation failure for regex mismatch")
	}
}

func TestValidateLengthBounds(t *testing.T) {
	values := mustFlatten(t, `{"code":"ab"}`)
	constraints := []model.FieldConstraint{{FieldPath: "code", MinLength: intp(3)}}

	result := Validate(values, constraints)
	if result.OK {
		t.Fatal("expected validation failure for minLength violation")
	}
}

func TestValidateNumericBounds(t *testing.T) {
	values := mustFlatten(t, `{"age":15}`)
	constraints := []model.FieldConstraint{{FieldPath: "age", MinValue: f64p(18)}}

	result := Validate(values, constraints)
	if result.OK {
		t.Fatal("expected validation failure for minValue violation")
	}
}

func TestValidateAllowedValues(t *testing.T) {
	values := mustFlatten(t, `{"status":"archived"}`)
	constraints := []model.FieldConstraint{{FieldPath: "status", AllowedValues: []string{"active", "inactive"}}}

	result := Validate(values, constraints)
	if result.OK {
		t.Fatal("expected validation failure for value outside allowedValues")
	}
}

func TestValidateArrayElementType(t *testing.T) {
	values := mustFlatten(t, `{"tags":["a", 2, "c"]}`)
	constraints := []model.FieldConstraint{{FieldPath: "tags", ArrayElementType: strp("string")}}

	result := Validate(values, constraints)
	if result.OK {
		t.Fatal("expected validation failure for mixed-type array")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %+v, want exactly one error for the integer element", result.Errors)
	}
}

func TestValidateErrorsSortedByFieldPath(t *testing.T) {
	values := mustFlatten(t, `{}`)
	constraints := []model.FieldConstraint{
		{FieldPath: "zeta", Required: true},
		{FieldPath: "alpha", Required: true},
	}

	result := Validate(values, constraints)
	if len(result.Errors) != 2 {
		t.Fatalf("Errors = %+v", result.Errors)
	}
	if result.Errors[0].FieldPath != "alpha" || result.Errors[1].FieldPath != "zeta" {
		t.Errorf("Errors not sorted: %+v", result.Errors)
	}
}
