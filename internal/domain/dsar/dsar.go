package dsar

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

// Statutory response windows: one calendar month treated as 30 days, with a
// further two months available for complex requests.
const (
	ResponseWindow  = 30 * 24 * time.Hour
	ExtensionWindow = 60 * 24 * time.Hour
)

// RequestType is the data subject right being exercised
type RequestType string

const (
	TypeAccess        RequestType = "access"
	TypeRectification RequestType = "rectification"
	TypeErasure       RequestType = "erasure"
	TypePortability   RequestType = "portability"
	TypeObjection     RequestType = "objection"
)

// Status tracks the request lifecycle
type Status string

const (
	StatusPending              Status = "pending"
	StatusIdentityVerification Status = "identity_verification"
	StatusInProgress           Status = "in_progress"
	StatusExtended             Status = "extended"
	StatusCompleted            Status = "completed"
	StatusRejected             Status = "rejected"
	StatusWithdrawn            Status = "withdrawn"
)

// ValidateRequestType checks the request type is a known value
func ValidateRequestType(t RequestType) error {
	switch t {
	case TypeAccess, TypeRectification, TypeErasure, TypePortability, TypeObjection:
		return nil
	default:
		return errors.NewValidationError("INVALID_REQUEST_TYPE",
			fmt.Sprintf("unknown DSAR request type: %s", t))
	}
}

// Request is a data subject access request (or other Chapter III request).
// DueDate is fixed at receipt; a single extension pushes the effective
// deadline out by ExtensionWindow.
type Request struct {
	ID               string       `json:"id"`
	CompanyID        string       `json:"company_id"`
	SubjectUserID    string       `json:"subject_user_id"`
	SubjectName      string       `json:"subject_name"`
	RequestType      RequestType  `json:"request_type"`
	Status           Status       `json:"status"`
	Details          string       `json:"details,omitempty"`
	ReceivedAt       values.Time  `json:"received_at"`
	DueDate          values.Time  `json:"due_date"`
	ExtendedDueDate  *values.Time `json:"extended_due_date,omitempty"`
	ExtensionReason  string       `json:"extension_reason,omitempty"`
	IdentityVerified bool         `json:"identity_verified"`
	VerifiedBy       string       `json:"verified_by,omitempty"`
	VerifiedAt       *values.Time `json:"verified_at,omitempty"`
	AssignedTo       string       `json:"assigned_to,omitempty"`
	CompletedAt      *values.Time `json:"completed_at,omitempty"`
	CompletedBy      string       `json:"completed_by,omitempty"`
	ResponseSummary  string       `json:"response_summary,omitempty"`
	RejectionReason  string       `json:"rejection_reason,omitempty"`
	CreatedAt        values.Time  `json:"created_at"`
	UpdatedAt        values.Time  `json:"updated_at"`
}

// NewRequest creates a DSAR with the statutory due date stamped at receipt
func NewRequest(companyID, subjectUserID, subjectName string, reqType RequestType, details string) (*Request, error) {
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}
	if subjectUserID == "" && subjectName == "" {
		return nil, errors.NewValidationError("MISSING_SUBJECT",
			"a subject user ID or name is required")
	}
	if err := ValidateRequestType(reqType); err != nil {
		return nil, err
	}

	now := values.Now()
	return &Request{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		SubjectUserID: subjectUserID,
		SubjectName:   subjectName,
		RequestType:   reqType,
		Status:        StatusPending,
		Details:       details,
		ReceivedAt:    now,
		DueDate:       now.Add(ResponseWindow),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Extend grants the single permitted extension. A second call fails with a
// conflict; the extended deadline is relative to the original due date, not
// to when the extension was requested.
func (r *Request) Extend(reason string, now values.Time) error {
	if r.ExtendedDueDate != nil {
		return errors.ErrExtensionGranted
	}
	if r.IsTerminal() {
		return errors.NewConflictError(fmt.Sprintf("cannot extend a %s request", r.Status))
	}
	extended := r.DueDate.Add(ExtensionWindow)
	r.ExtendedDueDate = &extended
	r.ExtensionReason = reason
	r.Status = StatusExtended
	r.UpdatedAt = now
	return nil
}

// EffectiveDueDate is the extended deadline when granted, else the original
func (r *Request) EffectiveDueDate() values.Time {
	if r.ExtendedDueDate != nil {
		return *r.ExtendedDueDate
	}
	return r.DueDate
}

// IsOverdue reports whether an open request has passed its effective deadline
func (r *Request) IsOverdue(now values.Time) bool {
	return !r.IsTerminal() && now.After(r.EffectiveDueDate())
}

// IsTerminal reports whether the request reached a final state
func (r *Request) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusRejected || r.Status == StatusWithdrawn
}

// CheckType validates that a completion method matches the request type
func (r *Request) CheckType(want RequestType) error {
	if r.RequestType != want {
		return errors.NewValidationError("REQUEST_TYPE_MISMATCH",
			fmt.Sprintf("request %s is a %s request, not %s", r.ID, r.RequestType, want))
	}
	return nil
}
