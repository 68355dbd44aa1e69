package retention

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

// DataCategory classifies the kind of data a retention policy governs
type DataCategory string

const (
	CategoryPayrollRecords     DataCategory = "payroll_records"
	CategoryEmployeeRecords    DataCategory = "employee_records"
	CategoryTaxDocuments       DataCategory = "tax_documents"
	CategoryAuditLogs          DataCategory = "audit_logs"
	CategoryConsentRecords     DataCategory = "consent_records"
	CategoryTimesheets         DataCategory = "timesheets"
	CategoryExpenseRecords     DataCategory = "expense_records"
	CategoryRecruitmentRecords DataCategory = "recruitment_records"
	CategoryHealthRecords      DataCategory = "health_records"
	CategoryPensionRecords     DataCategory = "pension_records"
)

// String returns the string representation of the data category
func (c DataCategory) String() string {
	return string(c)
}

// ValidateDataCategory checks the category is a known value
func ValidateDataCategory(c DataCategory) error {
	switch c {
	case CategoryPayrollRecords, CategoryEmployeeRecords, CategoryTaxDocuments,
		CategoryAuditLogs, CategoryConsentRecords, CategoryTimesheets,
		CategoryExpenseRecords, CategoryRecruitmentRecords, CategoryHealthRecords,
		CategoryPensionRecords:
		return nil
	default:
		return errors.NewValidationError("INVALID_DATA_CATEGORY",
			fmt.Sprintf("unknown data category: %s", c))
	}
}

// Policy is a per-company, per-category retention schedule. There is at most
// one policy per (company, category) pair; upserts replace in place.
type Policy struct {
	ID                    string       `json:"id"`
	CompanyID             string       `json:"company_id"`
	DataCategory          DataCategory `json:"data_category"`
	RetentionPeriodYears  int          `json:"retention_period_years"`
	RetentionPeriodMonths int          `json:"retention_period_months"`
	AutoArchive           bool         `json:"auto_archive"`
	AutoDelete            bool         `json:"auto_delete"`
	AutoAnonymize         bool         `json:"auto_anonymize"`
	ReviewFrequencyMonths int          `json:"review_frequency_months"`
	NextReviewAt          values.Time  `json:"next_review_at"`
	IsActive              bool         `json:"is_active"`
	LegalBasis            string       `json:"legal_basis,omitempty"`
	CreatedAt             values.Time  `json:"created_at"`
	UpdatedAt             values.Time  `json:"updated_at"`
}

// NewPolicy creates a retention policy with validation
func NewPolicy(companyID string, category DataCategory, years, months int) (*Policy, error) {
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}
	if err := ValidateDataCategory(category); err != nil {
		return nil, err
	}
	if _, err := values.NewRetentionPeriod(years, months); err != nil {
		return nil, err
	}

	now := values.Now()
	return &Policy{
		ID:                    uuid.New().String(),
		CompanyID:             companyID,
		DataCategory:          category,
		RetentionPeriodYears:  years,
		RetentionPeriodMonths: months,
		ReviewFrequencyMonths: 12,
		NextReviewAt:          now.Add(values.MonthApprox * 12),
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// Period returns the policy duration as a value object
func (p *Policy) Period() (values.RetentionPeriod, error) {
	return values.NewRetentionPeriod(p.RetentionPeriodYears, p.RetentionPeriodMonths)
}

// DefaultPolicies returns the statutory baseline schedule created for every
// new company. PAYE records carry a 6 year HMRC minimum; recruitment data for
// unsuccessful candidates is held only 6 months.
func DefaultPolicies(companyID string) []*Policy {
	type def struct {
		category   DataCategory
		years      int
		months     int
		archive    bool
		delete     bool
		anonymize  bool
		legalBasis string
	}
	defs := []def{
		{CategoryPayrollRecords, 6, 0, true, false, false, "HMRC record keeping requirements"},
		{CategoryTaxDocuments, 6, 0, true, false, false, "HMRC record keeping requirements"},
		{CategoryEmployeeRecords, 6, 0, true, false, false, "limitation period for contract claims"},
		{CategoryAuditLogs, 6, 0, false, true, false, "accountability principle"},
		{CategoryConsentRecords, 6, 0, true, false, false, "demonstrating compliance"},
		{CategoryTimesheets, 2, 0, true, true, false, "Working Time Regulations"},
		{CategoryExpenseRecords, 6, 0, true, false, false, "HMRC record keeping requirements"},
		{CategoryRecruitmentRecords, 0, 6, false, true, false, "discrimination claim window"},
		{CategoryHealthRecords, 3, 0, true, false, true, "SSP record keeping"},
		{CategoryPensionRecords, 6, 0, true, false, false, "auto-enrolment requirements"},
	}

	now := values.Now()
	policies := make([]*Policy, 0, len(defs))
	for _, d := range defs {
		policies = append(policies, &Policy{
			ID:                    uuid.New().String(),
			CompanyID:             companyID,
			DataCategory:          d.category,
			RetentionPeriodYears:  d.years,
			RetentionPeriodMonths: d.months,
			AutoArchive:           d.archive,
			AutoDelete:            d.delete,
			AutoAnonymize:         d.anonymize,
			ReviewFrequencyMonths: 12,
			NextReviewAt:          now.Add(values.MonthApprox * 12),
			IsActive:              true,
			LegalBasis:            d.legalBasis,
			CreatedAt:             now,
			UpdatedAt:             now,
		})
	}
	return policies
}

// TrackedRecord binds a stored document to a retention schedule. The sweep
// mutates the three lifecycle flags; they are idempotent markers, not a state
// machine, so a record can be archived and later deleted in the same sweep.
type TrackedRecord struct {
	ID                 string       `json:"id"`
	CompanyID          string       `json:"company_id"`
	DataCategory       DataCategory `json:"data_category"`
	DataPath           string       `json:"data_path"`
	RetentionStartDate values.Time  `json:"retention_start_date"`
	ExpiresAt          values.Time  `json:"expires_at"`
	IsArchived         bool         `json:"is_archived"`
	IsDeleted          bool         `json:"is_deleted"`
	IsAnonymized       bool         `json:"is_anonymized"`
	RetentionExemption string       `json:"retention_exemption,omitempty"`
	ArchivedAt         *values.Time `json:"archived_at,omitempty"`
	DeletedAt          *values.Time `json:"deleted_at,omitempty"`
	AnonymizedAt       *values.Time `json:"anonymized_at,omitempty"`
	CreatedAt          values.Time  `json:"created_at"`
}

// NewTrackedRecord creates a tracked record, computing expiry from the policy
func NewTrackedRecord(policy *Policy, dataPath string, start values.Time) (*TrackedRecord, error) {
	if policy == nil || !policy.IsActive {
		return nil, errors.ErrPolicyNotFound
	}
	if dataPath == "" {
		return nil, errors.NewValidationError("MISSING_DATA_PATH", "data path is required")
	}

	period, err := policy.Period()
	if err != nil {
		return nil, err
	}

	return &TrackedRecord{
		ID:                 uuid.New().String(),
		CompanyID:          policy.CompanyID,
		DataCategory:       policy.DataCategory,
		DataPath:           dataPath,
		RetentionStartDate: start,
		ExpiresAt:          values.NewTime(period.ExpiryFrom(start.Time)),
		CreatedAt:          values.Now(),
	}, nil
}

// IsExpired reports whether the record is due for cleanup
func (r *TrackedRecord) IsExpired(now values.Time) bool {
	return !r.ExpiresAt.After(now)
}

// IsExempt reports whether an explicit exemption blocks cleanup
func (r *TrackedRecord) IsExempt() bool {
	return r.RetentionExemption != ""
}
