package breach

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

// NotificationWindow is the UK GDPR Article 33 deadline for notifying the
// ICO after becoming aware of a reportable breach.
const NotificationWindow = 72 * time.Hour

// ICORecordThreshold triggers mandatory ICO notification by affected volume
const ICORecordThreshold = 100

// Severity grades the breach impact
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Risk grades the likelihood of harm to data subjects
type Risk string

const (
	RiskUnlikely     Risk = "unlikely"
	RiskPossible     Risk = "possible"
	RiskLikely       Risk = "likely"
	RiskHighlyLikely Risk = "highly_likely"
)

// Status tracks the incident response lifecycle. Transitions are free-form;
// only resolved carries extra bookkeeping.
type Status string

const (
	StatusDetected      Status = "detected"
	StatusInvestigating Status = "investigating"
	StatusContained     Status = "contained"
	StatusNotifiedICO   Status = "notified_ico"
	StatusNotifiedUsers Status = "notified_users"
	StatusResolved      Status = "resolved"
	StatusClosed        Status = "closed"
)

// ValidateSeverity checks the severity is a known value
func ValidateSeverity(s Severity) error {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return nil
	default:
		return errors.NewValidationError("INVALID_SEVERITY",
			fmt.Sprintf("unknown breach severity: %s", s))
	}
}

// ValidateRisk checks the risk level is a known value
func ValidateRisk(r Risk) error {
	switch r {
	case RiskUnlikely, RiskPossible, RiskLikely, RiskHighlyLikely:
		return nil
	default:
		return errors.NewValidationError("INVALID_RISK",
			fmt.Sprintf("unknown breach risk level: %s", r))
	}
}

// ValidateStatus checks the status is a known value
func ValidateStatus(s Status) error {
	switch s {
	case StatusDetected, StatusInvestigating, StatusContained, StatusNotifiedICO,
		StatusNotifiedUsers, StatusResolved, StatusClosed:
		return nil
	default:
		return errors.NewValidationError("INVALID_STATUS",
			fmt.Sprintf("unknown breach status: %s", s))
	}
}

// severeConsequences are the harms that force user notification regardless of
// the assessed risk level.
var severeConsequences = map[string]bool{
	"identity_theft":     true,
	"financial_loss":     true,
	"fraud":              true,
	"discrimination":     true,
	"physical_harm":      true,
	"loss_of_control":    true,
	"reputational_harm":  true,
	"salary_disclosure":  true,
	"bank_details_leak":  true,
	"benefit_fraud_risk": true,
}

// hmrcDataKeywords mark data categories whose exposure must be reported to
// HMRC in addition to the ICO.
var hmrcDataKeywords = []string{"payroll", "tax", "paye", "ni ", "national insurance", "p45", "p60", "rti", "salary"}

// Incident is a personal data breach record. Breaches are never deleted;
// the notification flags are computed once at creation and never recomputed,
// so later edits to severity or risk do not change the statutory duties
// assessed at detection time.
type Incident struct {
	ID                       string       `json:"id"`
	CompanyID                string       `json:"company_id"`
	Title                    string       `json:"title"`
	Description              string       `json:"description"`
	Severity                 Severity     `json:"severity"`
	Risk                     Risk         `json:"risk"`
	Status                   Status       `json:"status"`
	DetectedAt               values.Time  `json:"detected_at"`
	ReportedBy               string       `json:"reported_by"`
	DataCategories           []string     `json:"data_categories"`
	Consequences             []string     `json:"consequences,omitempty"`
	EstimatedRecordsAffected int          `json:"estimated_records_affected"`
	AffectedUserIDs          []string     `json:"affected_user_ids,omitempty"`
	RequiresICONotification  bool         `json:"requires_ico_notification"`
	RequiresUserNotification bool         `json:"requires_user_notification"`
	RequiresHMRCNotification bool         `json:"requires_hmrc_notification"`
	ICONotifiedAt            *values.Time `json:"ico_notified_at,omitempty"`
	ICOReference             string       `json:"ico_reference,omitempty"`
	UsersNotifiedAt          *values.Time `json:"users_notified_at,omitempty"`
	HMRCNotifiedAt           *values.Time `json:"hmrc_notified_at,omitempty"`
	RemediationActions       []string     `json:"remediation_actions,omitempty"`
	ResolvedAt               *values.Time `json:"resolved_at,omitempty"`
	ResolvedBy               string       `json:"resolved_by,omitempty"`
	SourceIncidentID         string       `json:"source_incident_id,omitempty"`
	CreatedAt                values.Time  `json:"created_at"`
	UpdatedAt                values.Time  `json:"updated_at"`
}

// NewIncident creates a breach record and assesses its notification duties
func NewIncident(companyID, title, description, reportedBy string, severity Severity, risk Risk, dataCategories []string, opts IncidentOptions) (*Incident, error) {
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}
	if title == "" {
		return nil, errors.NewValidationError("MISSING_TITLE", "breach title is required")
	}
	if err := ValidateSeverity(severity); err != nil {
		return nil, err
	}
	if err := ValidateRisk(risk); err != nil {
		return nil, err
	}
	if len(dataCategories) == 0 {
		return nil, errors.NewValidationError("MISSING_DATA_CATEGORIES",
			"at least one affected data category is required")
	}

	now := values.Now()
	detectedAt := now
	if opts.DetectedAt != nil {
		detectedAt = *opts.DetectedAt
	}

	inc := &Incident{
		ID:                       uuid.New().String(),
		CompanyID:                companyID,
		Title:                    title,
		Description:              description,
		Severity:                 severity,
		Risk:                     risk,
		Status:                   StatusDetected,
		DetectedAt:               detectedAt,
		ReportedBy:               reportedBy,
		DataCategories:           dataCategories,
		Consequences:             opts.Consequences,
		EstimatedRecordsAffected: opts.EstimatedRecordsAffected,
		AffectedUserIDs:          opts.AffectedUserIDs,
		SourceIncidentID:         opts.SourceIncidentID,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	inc.RequiresICONotification = severity == SeverityCritical || severity == SeverityHigh ||
		risk == RiskLikely || risk == RiskHighlyLikely ||
		opts.EstimatedRecordsAffected >= ICORecordThreshold
	inc.RequiresUserNotification = risk == RiskLikely || risk == RiskHighlyLikely ||
		hasSevereConsequence(opts.Consequences)
	inc.RequiresHMRCNotification = touchesHMRCData(dataCategories)

	return inc, nil
}

// IncidentOptions carries the optional fields of a breach report
type IncidentOptions struct {
	DetectedAt               *values.Time
	Consequences             []string
	EstimatedRecordsAffected int
	AffectedUserIDs          []string
	SourceIncidentID         string
}

func hasSevereConsequence(consequences []string) bool {
	for _, c := range consequences {
		if severeConsequences[strings.ToLower(strings.TrimSpace(c))] {
			return true
		}
	}
	return false
}

func touchesHMRCData(categories []string) bool {
	for _, c := range categories {
		lc := " " + strings.ToLower(c) + " "
		for _, kw := range hmrcDataKeywords {
			if strings.Contains(lc, kw) {
				return true
			}
		}
	}
	return false
}

// NotificationDeadline is the end of the 72 hour window
func (i *Incident) NotificationDeadline() values.Time {
	return i.DetectedAt.Add(NotificationWindow)
}

// IsICOUrgent reports whether ICO notification is still due and inside the window
func (i *Incident) IsICOUrgent(now values.Time) bool {
	return i.RequiresICONotification && i.ICONotifiedAt == nil &&
		now.Before(i.NotificationDeadline())
}

// IsICOOverdue reports whether ICO notification is due and the window has passed
func (i *Incident) IsICOOverdue(now values.Time) bool {
	return i.RequiresICONotification && i.ICONotifiedAt == nil &&
		!now.Before(i.NotificationDeadline())
}

// IncidentType classifies a security incident
type IncidentType string

const (
	IncidentDataBreach         IncidentType = "data_breach"
	IncidentPhishing           IncidentType = "phishing"
	IncidentMalware            IncidentType = "malware"
	IncidentUnauthorizedAccess IncidentType = "unauthorized_access"
	IncidentSystemOutage       IncidentType = "system_outage"
	IncidentPolicyViolation    IncidentType = "policy_violation"
)

// SecurityIncident is the wider incident register entry. Incidents involving
// personal data escalate into a full breach record; the two are
// cross-referenced but live in separate collections.
type SecurityIncident struct {
	ID                    string       `json:"id"`
	CompanyID             string       `json:"company_id"`
	Type                  IncidentType `json:"type"`
	Title                 string       `json:"title"`
	Description           string       `json:"description"`
	Severity              Severity     `json:"severity"`
	Status                Status       `json:"status"`
	DetectedAt            values.Time  `json:"detected_at"`
	ReportedBy            string       `json:"reported_by"`
	PersonalDataInvolved  bool         `json:"personal_data_involved"`
	AffectedSystems       []string     `json:"affected_systems,omitempty"`
	EscalatedToBreachID   string       `json:"escalated_to_breach_id,omitempty"`
	ResolvedAt            *values.Time `json:"resolved_at,omitempty"`
	CreatedAt             values.Time  `json:"created_at"`
	UpdatedAt             values.Time  `json:"updated_at"`
}

// NewSecurityIncident creates a security incident record with validation
func NewSecurityIncident(companyID string, incType IncidentType, title, description, reportedBy string, severity Severity, personalData bool) (*SecurityIncident, error) {
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}
	if title == "" {
		return nil, errors.NewValidationError("MISSING_TITLE", "incident title is required")
	}
	switch incType {
	case IncidentDataBreach, IncidentPhishing, IncidentMalware,
		IncidentUnauthorizedAccess, IncidentSystemOutage, IncidentPolicyViolation:
	default:
		return nil, errors.NewValidationError("INVALID_INCIDENT_TYPE",
			fmt.Sprintf("unknown incident type: %s", incType))
	}
	if err := ValidateSeverity(severity); err != nil {
		return nil, err
	}

	now := values.Now()
	return &SecurityIncident{
		ID:                   uuid.New().String(),
		CompanyID:            companyID,
		Type:                 incType,
		Title:                title,
		Description:          description,
		Severity:             severity,
		Status:               StatusDetected,
		DetectedAt:           now,
		ReportedBy:           reportedBy,
		PersonalDataInvolved: personalData,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// ShouldEscalate reports whether the incident must become a breach record
func (s *SecurityIncident) ShouldEscalate() bool {
	return s.PersonalDataInvolved && s.Type == IncidentDataBreach && s.EscalatedToBreachID == ""
}
