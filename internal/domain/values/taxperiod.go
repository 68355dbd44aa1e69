package values

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
)

// PayFrequency identifies how often a payroll is run
type PayFrequency string

const (
	FrequencyMonthly PayFrequency = "monthly"
	FrequencyWeekly  PayFrequency = "weekly"
)

// TaxPeriod identifies a single reporting period within a UK tax year,
// e.g. tax year "2024-25" period 3 (monthly).
type TaxPeriod struct {
	TaxYear   string       `json:"taxYear"`
	Period    int          `json:"period"`
	Frequency PayFrequency `json:"frequency"`
}

var taxYearFormat = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// NewTaxPeriod creates a TaxPeriod with validation
func NewTaxPeriod(taxYear string, period int, frequency PayFrequency) (TaxPeriod, error) {
	m := taxYearFormat.FindStringSubmatch(taxYear)
	if m == nil {
		return TaxPeriod{}, errors.NewValidationError("INVALID_TAX_YEAR",
			"tax year must be in the form 2024-25")
	}

	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if (start+1)%100 != end {
		return TaxPeriod{}, errors.NewValidationError("INVALID_TAX_YEAR",
			fmt.Sprintf("tax year %s does not span consecutive years", taxYear))
	}

	switch frequency {
	case FrequencyMonthly:
		if period < 1 || period > 12 {
			return TaxPeriod{}, errors.NewValidationError("INVALID_TAX_PERIOD",
				"monthly tax period must be between 1 and 12")
		}
	case FrequencyWeekly:
		if period < 1 || period > 53 {
			return TaxPeriod{}, errors.NewValidationError("INVALID_TAX_PERIOD",
				"weekly tax period must be between 1 and 53")
		}
	default:
		return TaxPeriod{}, errors.NewValidationError("INVALID_PAY_FREQUENCY",
			fmt.Sprintf("unknown pay frequency: %s", frequency))
	}

	return TaxPeriod{TaxYear: taxYear, Period: period, Frequency: frequency}, nil
}

// MustNewTaxPeriod creates a TaxPeriod and panics on error (for tests)
func MustNewTaxPeriod(taxYear string, period int, frequency PayFrequency) TaxPeriod {
	tp, err := NewTaxPeriod(taxYear, period, frequency)
	if err != nil {
		panic(err)
	}
	return tp
}

// String returns a stable key for the period, e.g. "2024-25/M3"
func (t TaxPeriod) String() string {
	marker := "M"
	if t.Frequency == FrequencyWeekly {
		marker = "W"
	}
	return fmt.Sprintf("%s/%s%d", t.TaxYear, marker, t.Period)
}

// Equal reports whether two periods identify the same reporting period
func (t TaxPeriod) Equal(other TaxPeriod) bool {
	return t.TaxYear == other.TaxYear && t.Period == other.Period && t.Frequency == other.Frequency
}

// YearEnd returns the last day of the tax year (5 April of the end year)
func (t TaxPeriod) YearEnd() time.Time {
	m := taxYearFormat.FindStringSubmatch(t.TaxYear)
	if m == nil {
		return time.Time{}
	}
	start, _ := strconv.Atoi(m[1])
	return time.Date(start+1, time.April, 5, 0, 0, 0, 0, time.UTC)
}
