package values

import (
	"regexp"
	"strings"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
)

// PAYEReference represents an employer PAYE reference, e.g. "123/AB456"
type PAYEReference struct {
	value string
}

var payeRefFormat = regexp.MustCompile(`^\d{3}/[A-Z0-9]{1,10}$`)

// NewPAYEReference creates a PAYEReference value object with validation
func NewPAYEReference(raw string) (PAYEReference, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))

	if normalized == "" {
		return PAYEReference{}, errors.NewValidationError("MISSING_PAYE_REFERENCE",
			"employer PAYE reference is required")
	}

	if !payeRefFormat.MatchString(normalized) {
		return PAYEReference{}, errors.NewValidationError("INVALID_PAYE_REFERENCE",
			"employer PAYE reference must be in the form 123/AB456")
	}

	return PAYEReference{value: normalized}, nil
}

// MustNewPAYEReference creates a PAYEReference and panics on error (for tests)
func MustNewPAYEReference(raw string) PAYEReference {
	r, err := NewPAYEReference(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the normalized reference
func (r PAYEReference) String() string {
	return r.value
}

// IsZero reports whether the value is unset
func (r PAYEReference) IsZero() bool {
	return r.value == ""
}

// OfficeNumber returns the three digit tax office number
func (r PAYEReference) OfficeNumber() string {
	if r.value == "" {
		return ""
	}
	return r.value[:3]
}
