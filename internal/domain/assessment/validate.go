package assessment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

// recordValidate is shared by all validations; validator.Validate caches
// struct metadata and is safe for concurrent use.
var recordValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that every record carries its identifiers and that scores
// and rates are on their documented scales. It fails fast: records are never
// silently dropped because downstream joins key on these identifiers.
func (s Snapshot) Validate() error {
	return validateStruct("ValidateSnapshot", s, nil)
}

// Validate checks that all goals are within 0-100.
func (g InstitutionalGoals) Validate() error {
	return validateStruct("ValidateGoals", g, shared.ErrInvalidGoals)
}

// validateStruct reports the first failing field. cause overrides the
// per-field domain error when set.
func validateStruct(op string, v any, cause error) error {
	err := recordValidate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return shared.WrapError("assessment", op, shared.ErrValidation, "invalid input", err)
	}

	first := fieldErrs[0]
	msg := fmt.Sprintf("%s: %s", fieldPath(first), describe(first))
	if extra := len(fieldErrs) - 1; extra > 0 {
		msg = fmt.Sprintf("%s (and %d more)", msg, extra)
	}
	if cause == nil {
		cause = causeOf(first)
	}
	return shared.WrapError("assessment", op, shared.ErrValidation, msg, cause)
}

// fieldPath turns "Snapshot.Students[3].StudentID" into "students[3].StudentID".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		return fe.Field()
	}
	return strings.ToLower(ns[:1]) + ns[1:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "gte":
		return fmt.Sprintf("must be >= %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be <= %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// causeOf maps a field failure onto the matching domain error so callers can
// use errors.Is with shared.ErrInvalidID or shared.ErrValueOutOfRange.
func causeOf(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		switch fe.StructField() {
		case "StudentID":
			return shared.ErrMissingStudentID
		case "ClassID":
			return shared.ErrMissingClassID
		default:
			return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, fe.StructField()+" is required")
		}
	case "gte", "lte":
		return shared.ErrScoreOutOfRange
	default:
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidFormat, fe.StructField()+" has an invalid value")
	}
}
