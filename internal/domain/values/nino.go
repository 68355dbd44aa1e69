package values

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
)

// NINumber represents a validated UK National Insurance number
type NINumber struct {
	value string
}

var (
	ninoFormat = regexp.MustCompile(`^[A-CEGHJ-PR-TW-Z][A-CEGHJ-NPR-TW-Z]\d{6}[A-D]$`)

	// Prefixes HMRC never allocates
	ninoInvalidPrefixes = []string{"BG", "GB", "NK", "KN", "TN", "NT", "ZZ"}
)

// NewNINumber creates a NINumber value object with validation.
// Input is normalized to uppercase with spaces removed.
func NewNINumber(raw string) (NINumber, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))

	if normalized == "" {
		return NINumber{}, errors.NewValidationError("MISSING_NI_NUMBER",
			"National Insurance number is required")
	}

	if !ninoFormat.MatchString(normalized) {
		return NINumber{}, errors.NewValidationError("INVALID_NI_NUMBER",
			fmt.Sprintf("invalid National Insurance number format: %s", MaskValue(raw)))
	}

	prefix := normalized[:2]
	for _, p := range ninoInvalidPrefixes {
		if prefix == p {
			return NINumber{}, errors.NewValidationError("INVALID_NI_PREFIX",
				fmt.Sprintf("National Insurance prefix %s is not allocated", prefix))
		}
	}

	return NINumber{value: normalized}, nil
}

// MustNewNINumber creates a NINumber and panics on error (for tests)
func MustNewNINumber(raw string) NINumber {
	n, err := NewNINumber(raw)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the normalized NI number
func (n NINumber) String() string {
	return n.value
}

// IsZero reports whether the value is unset
func (n NINumber) IsZero() bool {
	return n.value == ""
}

// Masked returns the redacted form suitable for logs
func (n NINumber) Masked() string {
	if n.value == "" {
		return ""
	}
	return n.value[:2] + "******" + n.value[len(n.value)-1:]
}
