package values

import (
	"fmt"
	"time"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
)

// RetentionPeriod represents how long a category of data is kept before it
// becomes eligible for archive, deletion or anonymisation. Expiry arithmetic
// is deliberately fixed-length (365-day years, 30-day months) so computed
// expiry timestamps are deterministic regardless of calendar position.
type RetentionPeriod struct {
	years  int
	months int
}

const (
	MaxRetentionYears = 100

	dayDuration   = 24 * time.Hour
	yearDuration  = 365 * dayDuration
	monthDuration = 30 * dayDuration

	// MonthApprox is the fixed 30-day month used for all retention arithmetic
	MonthApprox = monthDuration
)

// NewRetentionPeriod creates a RetentionPeriod value object with validation
func NewRetentionPeriod(years, months int) (RetentionPeriod, error) {
	if years < 0 || months < 0 {
		return RetentionPeriod{}, errors.NewValidationError("INVALID_RETENTION_DURATION",
			"retention period components must not be negative")
	}

	if years == 0 && months == 0 {
		return RetentionPeriod{}, errors.NewValidationError("EMPTY_RETENTION",
			"retention period must be at least one month")
	}

	if years > MaxRetentionYears {
		return RetentionPeriod{}, errors.NewValidationError("RETENTION_TOO_LONG",
			fmt.Sprintf("retention period cannot exceed %d years", MaxRetentionYears))
	}

	return RetentionPeriod{years: years, months: months}, nil
}

// NewRetentionPeriodFromDays creates a RetentionPeriod covering the given
// number of whole days, rounded up to months of 30 days.
func NewRetentionPeriodFromDays(days int) (RetentionPeriod, error) {
	if days <= 0 {
		return RetentionPeriod{}, errors.NewValidationError("INVALID_RETENTION_DURATION",
			"retention period must be positive")
	}
	months := (days + 29) / 30
	return NewRetentionPeriod(months/12, months%12)
}

// MustNewRetentionPeriod creates a RetentionPeriod and panics on error (for tests)
func MustNewRetentionPeriod(years, months int) RetentionPeriod {
	rp, err := NewRetentionPeriod(years, months)
	if err != nil {
		panic(err)
	}
	return rp
}

// Years returns the whole-year component
func (rp RetentionPeriod) Years() int {
	return rp.years
}

// Months returns the whole-month component
func (rp RetentionPeriod) Months() int {
	return rp.months
}

// Duration returns the fixed-length duration of the period
func (rp RetentionPeriod) Duration() time.Duration {
	return time.Duration(rp.years)*yearDuration + time.Duration(rp.months)*monthDuration
}

// Days returns the period length in whole days
func (rp RetentionPeriod) Days() int {
	return rp.years*365 + rp.months*30
}

// ExpiryFrom computes the expiry timestamp for data whose retention clock
// started at the given time.
func (rp RetentionPeriod) ExpiryFrom(start time.Time) time.Time {
	return start.Add(rp.Duration())
}

// IsZero reports whether the period is unset
func (rp RetentionPeriod) IsZero() bool {
	return rp.years == 0 && rp.months == 0
}

// String returns a human readable form, e.g. "6y" or "2y6m"
func (rp RetentionPeriod) String() string {
	switch {
	case rp.months == 0:
		return fmt.Sprintf("%dy", rp.years)
	case rp.years == 0:
		return fmt.Sprintf("%dm", rp.months)
	default:
		return fmt.Sprintf("%dy%dm", rp.years, rp.months)
	}
}
