package specialcategory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

// Category is the Article 9 special category of personal data
type Category string

const (
	CategoryHealth          Category = "health"
	CategoryRacialEthnic    Category = "racial_ethnic_origin"
	CategoryTradeUnion      Category = "trade_union_membership"
	CategoryReligion        Category = "religious_beliefs"
	CategoryPoliticalViews  Category = "political_opinions"
	CategoryBiometric       Category = "biometric"
	CategoryGenetic         Category = "genetic"
	CategorySexualOrient    Category = "sexual_orientation"
	CategorySexLife         Category = "sex_life"
	CategoryCriminalOffence Category = "criminal_offence"
)

// Article9Condition is the UK GDPR Article 9(2) processing condition
type Article9Condition string

const (
	ConditionExplicitConsent    Article9Condition = "explicit_consent"
	ConditionEmploymentLaw      Article9Condition = "employment_social_security"
	ConditionVitalInterests     Article9Condition = "vital_interests"
	ConditionLegalClaims        Article9Condition = "legal_claims"
	ConditionPublicInterest     Article9Condition = "substantial_public_interest"
	ConditionHealthOccupational Article9Condition = "health_occupational"
	ConditionPublicHealth       Article9Condition = "public_health"
	ConditionArchivingResearch  Article9Condition = "archiving_research"
)

// Schedule1Condition is the DPA 2018 Schedule 1 condition
type Schedule1Condition string

const (
	Sched1Employment           Schedule1Condition = "employment_social_security" // Part 1
	Sched1HealthSocialCare     Schedule1Condition = "health_social_care"         // Part 1
	Sched1PublicHealth         Schedule1Condition = "public_health"              // Part 1
	Sched1Research             Schedule1Condition = "research"                   // Part 1
	Sched1EqualityMonitoring   Schedule1Condition = "equality_of_opportunity"    // Part 2
	Sched1PreventingCrime      Schedule1Condition = "preventing_detecting_crime" // Part 2
	Sched1RegulatoryReqs       Schedule1Condition = "regulatory_requirements"    // Part 2
	Sched1StatutoryPurpose     Schedule1Condition = "statutory_government"       // Part 2
	Sched1SafeguardingChildren Schedule1Condition = "safeguarding"               // Part 2
)

// part2Conditions require an appropriate policy document under DPA 2018 s.42
var part2Conditions = map[Schedule1Condition]bool{
	Sched1EqualityMonitoring:   true,
	Sched1PreventingCrime:      true,
	Sched1RegulatoryReqs:       true,
	Sched1StatutoryPurpose:     true,
	Sched1SafeguardingChildren: true,
}

// IsPart2 reports whether the condition sits in Schedule 1 Part 2
func (c Schedule1Condition) IsPart2() bool {
	return part2Conditions[c]
}

// ValidateCategory checks the category is a known value
func ValidateCategory(c Category) error {
	switch c {
	case CategoryHealth, CategoryRacialEthnic, CategoryTradeUnion, CategoryReligion,
		CategoryPoliticalViews, CategoryBiometric, CategoryGenetic,
		CategorySexualOrient, CategorySexLife, CategoryCriminalOffence:
		return nil
	default:
		return errors.NewValidationError("INVALID_CATEGORY",
			fmt.Sprintf("unknown special category: %s", c))
	}
}

// ValidateArticle9Condition checks the condition is a known value
func ValidateArticle9Condition(c Article9Condition) error {
	switch c {
	case ConditionExplicitConsent, ConditionEmploymentLaw, ConditionVitalInterests,
		ConditionLegalClaims, ConditionPublicInterest, ConditionHealthOccupational,
		ConditionPublicHealth, ConditionArchivingResearch:
		return nil
	default:
		return errors.NewValidationError("INVALID_ARTICLE9_CONDITION",
			fmt.Sprintf("unknown Article 9 condition: %s", c))
	}
}

// ValidateSchedule1Condition checks the condition is a known value
func ValidateSchedule1Condition(c Schedule1Condition) error {
	switch c {
	case Sched1Employment, Sched1HealthSocialCare, Sched1PublicHealth, Sched1Research,
		Sched1EqualityMonitoring, Sched1PreventingCrime, Sched1RegulatoryReqs,
		Sched1StatutoryPurpose, Sched1SafeguardingChildren:
		return nil
	default:
		return errors.NewValidationError("INVALID_SCHEDULE1_CONDITION",
			fmt.Sprintf("unknown Schedule 1 condition: %s", c))
	}
}

// ProcessingRecord documents why a special category of data is processed.
// Explicit-consent processing must describe the consent and withdrawal
// mechanisms; Part 2 Schedule 1 conditions must reference the appropriate
// policy document. Both are checked before any write.
type ProcessingRecord struct {
	ID                     string             `json:"id"`
	CompanyID              string             `json:"company_id"`
	Category               Category           `json:"category"`
	Article9Condition      Article9Condition  `json:"article9_condition"`
	Schedule1Condition     Schedule1Condition `json:"schedule1_condition"`
	ProcessingPurpose      string             `json:"processing_purpose"`
	ConsentMechanism       string             `json:"consent_mechanism,omitempty"`
	WithdrawalProcess      string             `json:"withdrawal_process,omitempty"`
	PolicyDocumentRef      string             `json:"policy_document_ref,omitempty"`
	DataSubjects           string             `json:"data_subjects,omitempty"`
	SecurityMeasures       string             `json:"security_measures,omitempty"`
	RetentionJustification string             `json:"retention_justification,omitempty"`
	DocumentedBy           string             `json:"documented_by"`
	IsActive               bool               `json:"is_active"`
	LastConsentCheckAt     *values.Time       `json:"last_consent_check_at,omitempty"`
	NextReviewAt           values.Time        `json:"next_review_at"`
	CreatedAt              values.Time        `json:"created_at"`
	UpdatedAt              values.Time        `json:"updated_at"`
}

// NewProcessingRecord creates a processing record, enforcing the structural
// preconditions before any state exists.
func NewProcessingRecord(companyID string, category Category, art9 Article9Condition, sched1 Schedule1Condition, purpose, documentedBy string, opts RecordOptions) (*ProcessingRecord, error) {
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}
	if purpose == "" {
		return nil, errors.NewValidationError("MISSING_PURPOSE", "processing purpose is required")
	}
	if err := ValidateCategory(category); err != nil {
		return nil, err
	}
	if err := ValidateArticle9Condition(art9); err != nil {
		return nil, err
	}
	if err := ValidateSchedule1Condition(sched1); err != nil {
		return nil, err
	}
	if art9 == ConditionExplicitConsent && (opts.ConsentMechanism == "" || opts.WithdrawalProcess == "") {
		return nil, errors.NewValidationError("MISSING_CONSENT_MECHANISM",
			"explicit consent processing requires consent mechanism and withdrawal process descriptions")
	}
	if sched1.IsPart2() && opts.PolicyDocumentRef == "" {
		return nil, errors.NewValidationError("MISSING_POLICY_DOCUMENT",
			fmt.Sprintf("Schedule 1 Part 2 condition %s requires a policy document reference", sched1))
	}

	now := values.Now()
	rec := &ProcessingRecord{
		ID:                     uuid.New().String(),
		CompanyID:              companyID,
		Category:               category,
		Article9Condition:      art9,
		Schedule1Condition:     sched1,
		ProcessingPurpose:      purpose,
		ConsentMechanism:       opts.ConsentMechanism,
		WithdrawalProcess:      opts.WithdrawalProcess,
		PolicyDocumentRef:      opts.PolicyDocumentRef,
		DataSubjects:           opts.DataSubjects,
		SecurityMeasures:       opts.SecurityMeasures,
		RetentionJustification: opts.RetentionJustification,
		DocumentedBy:           documentedBy,
		IsActive:               true,
		NextReviewAt:           now.Add(values.MonthApprox * 12),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if art9 == ConditionExplicitConsent {
		rec.LastConsentCheckAt = &now
	}
	return rec, nil
}

// RecordOptions carries the optional documentation fields
type RecordOptions struct {
	ConsentMechanism       string
	WithdrawalProcess      string
	PolicyDocumentRef      string
	DataSubjects           string
	SecurityMeasures       string
	RetentionJustification string
}

// consentCheckMaxAge bounds how stale a consent verification may be
const consentCheckMaxAge = 365 * 24 * time.Hour

// IsValid reports whether the record currently justifies processing: active,
// review not lapsed, and consent verified within the last year when the
// condition is consent based.
func (r *ProcessingRecord) IsValid(now values.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.NextReviewAt.Before(now) {
		return false
	}
	if r.Article9Condition == ConditionExplicitConsent {
		if r.LastConsentCheckAt == nil {
			return false
		}
		if now.After(r.LastConsentCheckAt.Add(consentCheckMaxAge)) {
			return false
		}
	}
	return true
}

// Template is a canned processing record for a common HR scenario
type Template struct {
	Name               string             `json:"name"`
	Category           Category           `json:"category"`
	Article9Condition  Article9Condition  `json:"article9_condition"`
	Schedule1Condition Schedule1Condition `json:"schedule1_condition"`
	ProcessingPurpose  string             `json:"processing_purpose"`
	DataSubjects       string             `json:"data_subjects"`
	SecurityMeasures   string             `json:"security_measures"`
}

// Templates returns the canned records for the payroll scenarios every
// employer encounters.
func Templates() []Template {
	return []Template{
		{
			Name:               "statutory_sick_pay",
			Category:           CategoryHealth,
			Article9Condition:  ConditionEmploymentLaw,
			Schedule1Condition: Sched1Employment,
			ProcessingPurpose:  "Processing fit notes and sickness absence records to calculate Statutory Sick Pay entitlement",
			DataSubjects:       "Employees absent through illness",
			SecurityMeasures:   "Access restricted to payroll administrators; records encrypted at rest",
		},
		{
			Name:               "trade_union_deductions",
			Category:           CategoryTradeUnion,
			Article9Condition:  ConditionEmploymentLaw,
			Schedule1Condition: Sched1Employment,
			ProcessingPurpose:  "Deducting trade union subscriptions from pay at the employee's request",
			DataSubjects:       "Employees with active check-off arrangements",
			SecurityMeasures:   "Deduction records visible only to payroll administrators",
		},
		{
			Name:               "ethnicity_monitoring",
			Category:           CategoryRacialEthnic,
			Article9Condition:  ConditionPublicInterest,
			Schedule1Condition: Sched1EqualityMonitoring,
			ProcessingPurpose:  "Workforce equality of opportunity monitoring and pay gap reporting",
			DataSubjects:       "All employees who choose to disclose",
			SecurityMeasures:   "Aggregated reporting only; individual responses access controlled",
		},
		{
			Name:               "occupational_health_referral",
			Category:           CategoryHealth,
			Article9Condition:  ConditionHealthOccupational,
			Schedule1Condition: Sched1HealthSocialCare,
			ProcessingPurpose:  "Occupational health assessments for fitness to work and workplace adjustments",
			DataSubjects:       "Employees referred to occupational health",
			SecurityMeasures:   "Reports held separately from general HR records",
		},
	}
}

// FindTemplate returns the named template or an error
func FindTemplate(name string) (*Template, error) {
	for _, t := range Templates() {
		if t.Name == name {
			tmpl := t
			return &tmpl, nil
		}
	}
	return nil, errors.NewNotFoundError(fmt.Sprintf("processing template %q", name))
}
