package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

// Action classifies an audit trail entry
type Action string

const (
	// Data lifecycle
	ActionDataAccess Action = "data_access"
	ActionDataCreate Action = "data_create"
	ActionDataUpdate Action = "data_update"
	ActionDataDelete Action = "data_delete"
	ActionDataExport Action = "data_export"

	// Consent and lawful basis
	ActionConsentGiven          Action = "consent_given"
	ActionConsentWithdrawn      Action = "consent_withdrawn"
	ActionLawfulBasisDocumented Action = "lawful_basis_documented"

	// Statutory workflows
	ActionHMRCSubmission    Action = "hmrc_submission"
	ActionBreachReported    Action = "breach_reported"
	ActionBreachUpdated     Action = "breach_updated"
	ActionDSARSubmitted     Action = "dsar_submitted"
	ActionDSARCompleted     Action = "dsar_completed"
	ActionSpecialCategory   Action = "special_category_documented"
	ActionRetentionCleanup  Action = "retention_cleanup"

	// Account activity
	ActionLogin          Action = "login"
	ActionLogout         Action = "logout"
	ActionSettingsChange Action = "settings_change"
)

// DefaultRetentionDays keeps audit entries for 6 years, the statutory
// minimum for PAYE records.
const DefaultRetentionDays = 2190

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// Category groups actions for filtering and reporting
func (a Action) Category() string {
	switch a {
	case ActionDataAccess, ActionDataCreate, ActionDataUpdate, ActionDataDelete, ActionDataExport:
		return "data"
	case ActionConsentGiven, ActionConsentWithdrawn, ActionLawfulBasisDocumented, ActionSpecialCategory:
		return "consent"
	case ActionHMRCSubmission:
		return "submission"
	case ActionBreachReported, ActionBreachUpdated:
		return "breach"
	case ActionDSARSubmitted, ActionDSARCompleted:
		return "dsar"
	case ActionRetentionCleanup:
		return "retention"
	case ActionLogin, ActionLogout, ActionSettingsChange:
		return "account"
	default:
		return "other"
	}
}

// ValidateAction checks the action is a known value
func ValidateAction(a Action) error {
	switch a {
	case ActionDataAccess, ActionDataCreate, ActionDataUpdate, ActionDataDelete,
		ActionDataExport, ActionConsentGiven, ActionConsentWithdrawn,
		ActionLawfulBasisDocumented, ActionHMRCSubmission, ActionBreachReported,
		ActionBreachUpdated, ActionDSARSubmitted, ActionDSARCompleted,
		ActionSpecialCategory, ActionRetentionCleanup, ActionLogin, ActionLogout,
		ActionSettingsChange:
		return nil
	default:
		return errors.NewValidationError("INVALID_ACTION",
			fmt.Sprintf("unknown audit action: %s", a))
	}
}

// Entry is an immutable audit trail record. PII is masked before the entry
// is constructed and never stored in clear; entries are only ever deleted by
// the retention cleanup once past ExpiresAt.
type Entry struct {
	ID                  string                 `json:"id"`
	Timestamp           values.Time            `json:"timestamp"`
	Action              Action                 `json:"action"`
	UserID              string                 `json:"user_id"`
	MaskedUserEmail     string                 `json:"masked_user_email,omitempty"`
	CompanyID           string                 `json:"company_id"`
	SiteID              string                 `json:"site_id,omitempty"`
	SubsiteID           string                 `json:"subsite_id,omitempty"`
	ResourceType        string                 `json:"resource_type"`
	ResourceID          string                 `json:"resource_id,omitempty"`
	Description         string                 `json:"description"`
	MaskedPreviousValue string                 `json:"masked_previous_value,omitempty"`
	MaskedNewValue      string                 `json:"masked_new_value,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	MaskedIPAddress     string                 `json:"masked_ip_address,omitempty"`
	Success             bool                   `json:"success"`
	ErrorCode           string                 `json:"error_code,omitempty"`
	RetentionPeriodDays int                    `json:"retention_period_days"`
	ExpiresAt           values.Time            `json:"expires_at"`
}

// EntryOptions carries the optional fields of an audit entry. Unmasked
// values are accepted here; the constructor applies the masking transforms.
type EntryOptions struct {
	UserEmail     string
	SiteID        string
	SubsiteID     string
	ResourceType  string
	ResourceID    string
	Description   string
	PreviousValue string
	NewValue      string
	Metadata      map[string]interface{}
	IPAddress     string
	Failed        bool
	ErrorCode     string
	RetentionDays int
}

// NewEntry creates an audit entry with validation and PII masking
func NewEntry(action Action, userID, companyID string, opts EntryOptions) (*Entry, error) {
	if err := ValidateAction(action); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, errors.NewValidationError("MISSING_USER_ID", "user ID is required")
	}
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}

	retentionDays := opts.RetentionDays
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	resourceType := opts.ResourceType
	if resourceType == "" {
		resourceType = action.Category()
	}

	now := values.Now()
	entry := &Entry{
		ID:                  uuid.New().String(),
		Timestamp:           now,
		Action:              action,
		UserID:              userID,
		CompanyID:           companyID,
		SiteID:              opts.SiteID,
		SubsiteID:           opts.SubsiteID,
		ResourceType:        resourceType,
		ResourceID:          opts.ResourceID,
		Description:         opts.Description,
		Metadata:            opts.Metadata,
		Success:             !opts.Failed,
		ErrorCode:           opts.ErrorCode,
		RetentionPeriodDays: retentionDays,
		ExpiresAt:           now.Add(time.Duration(retentionDays) * 24 * time.Hour),
	}

	if opts.UserEmail != "" {
		entry.MaskedUserEmail = values.MaskEmail(opts.UserEmail)
	}
	if opts.IPAddress != "" {
		entry.MaskedIPAddress = values.MaskIP(opts.IPAddress)
	}
	if opts.PreviousValue != "" {
		entry.MaskedPreviousValue = values.MaskValue(opts.PreviousValue)
	}
	if opts.NewValue != "" {
		entry.MaskedNewValue = values.MaskValue(opts.NewValue)
	}

	return entry, nil
}

// IsExpired reports whether the entry is past its retention period
func (e *Entry) IsExpired(now values.Time) bool {
	return e.ExpiresAt.Before(now)
}
