package consent

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

// Purpose identifies what the data subject's data is processed for
type Purpose string

const (
	PurposeHMRCSubmission    Purpose = "hmrc_submission"
	PurposePayrollProcessing Purpose = "payroll_processing"
	PurposeEmployeeRecords   Purpose = "employee_records"
	PurposeMarketing         Purpose = "marketing"
	PurposeAnalytics         Purpose = "analytics"
	PurposeDataSharing       Purpose = "data_sharing"
)

// String returns the string representation of the purpose
func (p Purpose) String() string {
	return string(p)
}

// LawfulBasis is the UK GDPR Article 6 basis for processing
type LawfulBasis string

const (
	BasisConsent             LawfulBasis = "consent"
	BasisContract            LawfulBasis = "contract"
	BasisLegalObligation     LawfulBasis = "legal_obligation"
	BasisVitalInterests      LawfulBasis = "vital_interests"
	BasisPublicTask          LawfulBasis = "public_task"
	BasisLegitimateInterests LawfulBasis = "legitimate_interests"
)

// String returns the string representation of the lawful basis
func (b LawfulBasis) String() string {
	return string(b)
}

// IsNonConsent reports whether the basis does not depend on the subject's
// consent. HMRC submissions require one of these.
func (b LawfulBasis) IsNonConsent() bool {
	return b == BasisLegalObligation || b == BasisContract
}

// Method records how the consent or basis documentation was captured
type Method string

const (
	MethodExplicitForm     Method = "explicit_form"
	MethodImplicit         Method = "implicit"
	MethodImported         Method = "imported"
	MethodVerbalDocumented Method = "verbal_documented"
)

// Record is a single consent or lawful-basis documentation event. Records
// are append-only: withdrawal creates a companion record and patches the
// original, it never removes anything. The current validity for a
// (user, purpose) pair is decided by the most recent record by
// ConsentTimestamp, not by any keyed lookup.
type Record struct {
	ID                 string                 `json:"id"`
	UserID             string                 `json:"user_id"`
	CompanyID          string                 `json:"company_id"`
	Purpose            Purpose                `json:"purpose"`
	LawfulBasis        LawfulBasis            `json:"lawful_basis"`
	ConsentGiven       bool                   `json:"consent_given"`
	ConsentTimestamp   values.Time            `json:"consent_timestamp"`
	WithdrawnTimestamp *values.Time           `json:"withdrawn_timestamp,omitempty"`
	WithdrawalRecordID string                 `json:"withdrawal_record_id,omitempty"`
	WithdrawnFrom      string                 `json:"withdrawn_from,omitempty"`
	ExpiresAt          *values.Time           `json:"expires_at,omitempty"`
	Method             Method                 `json:"method"`
	Version            string                 `json:"version"`
	Justification      string                 `json:"justification,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// NewRecord creates a consent record with validation
func NewRecord(userID, companyID string, purpose Purpose, basis LawfulBasis, given bool, method Method, version string) (*Record, error) {
	if userID == "" {
		return nil, errors.NewValidationError("MISSING_USER_ID", "user ID is required")
	}
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}
	if err := ValidatePurpose(purpose); err != nil {
		return nil, err
	}
	if err := ValidateLawfulBasis(basis); err != nil {
		return nil, err
	}
	if version == "" {
		version = "1.0"
	}
	if method == "" {
		method = MethodExplicitForm
	}

	return &Record{
		ID:               uuid.New().String(),
		UserID:           userID,
		CompanyID:        companyID,
		Purpose:          purpose,
		LawfulBasis:      basis,
		ConsentGiven:     given,
		ConsentTimestamp: values.Now(),
		Method:           method,
		Version:          version,
	}, nil
}

// ValidAt reports whether the record represents a usable basis at time t:
// given, not withdrawn, not expired.
func (r *Record) ValidAt(t values.Time) bool {
	if !r.ConsentGiven {
		return false
	}
	if r.WithdrawnTimestamp != nil {
		return false
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(t) {
		return false
	}
	return true
}

// IsWithdrawn reports whether the record has been withdrawn
func (r *Record) IsWithdrawn() bool {
	return r.WithdrawnTimestamp != nil
}

// ValidatePurpose checks the purpose is a known value
func ValidatePurpose(p Purpose) error {
	switch p {
	case PurposeHMRCSubmission, PurposePayrollProcessing, PurposeEmployeeRecords,
		PurposeMarketing, PurposeAnalytics, PurposeDataSharing:
		return nil
	default:
		return errors.NewValidationError("INVALID_PURPOSE",
			fmt.Sprintf("invalid consent purpose: %s", p))
	}
}

// ValidateLawfulBasis checks the basis is a known value
func ValidateLawfulBasis(b LawfulBasis) error {
	switch b {
	case BasisConsent, BasisContract, BasisLegalObligation, BasisVitalInterests,
		BasisPublicTask, BasisLegitimateInterests:
		return nil
	default:
		return errors.NewValidationError("INVALID_LAWFUL_BASIS",
			fmt.Sprintf("invalid lawful basis: %s", b))
	}
}

// Latest returns the record with the most recent ConsentTimestamp, or nil
// for an empty slice. Ties keep the earlier element, so insertion order only
// matters for identical timestamps.
func Latest(records []*Record) *Record {
	var latest *Record
	for _, r := range records {
		if latest == nil || r.ConsentTimestamp.After(latest.ConsentTimestamp) {
			latest = r
		}
	}
	return latest
}

// FilterByPurpose returns the records matching the given purpose
func FilterByPurpose(records []*Record, purpose Purpose) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if r.Purpose == purpose {
			out = append(out, r)
		}
	}
	return out
}
