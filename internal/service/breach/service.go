package breach

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/audit"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/breach"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	"github.com/ledgerline/payroll-compliance-backend/internal/metrics"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
)

// Service manages the breach register and the wider incident register.
// Breach records are never deleted.
type Service struct {
	store   docstore.Store
	auditor *auditsvc.Service
	logger  *zap.Logger
}

// NewService creates the breach service
func NewService(store docstore.Store, auditor *auditsvc.Service, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		auditor: auditor,
		logger:  logger.Named("breach"),
	}
}

func breachPath(companyID string) string {
	return "compliance/breaches/" + companyID
}

func incidentPath(companyID string) string {
	return "compliance/incidents/" + companyID
}

// ReportBreach records a new breach and assesses its notification duties
func (s *Service) ReportBreach(ctx context.Context, companyID, title, description, reportedBy string, severity breach.Severity, risk breach.Risk, dataCategories []string, opts breach.IncidentOptions) (*breach.Incident, error) {
	inc, err := breach.NewIncident(companyID, title, description, reportedBy, severity, risk, dataCategories, opts)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, breachPath(companyID)+"/"+inc.ID, inc); err != nil {
		return nil, errors.NewInternalError("failed to store breach record").WithCause(err)
	}
	metrics.BreachesReported.WithLabelValues(string(severity)).Inc()

	if inc.RequiresICONotification {
		s.logger.Warn("breach requires ICO notification within 72 hours",
			zap.String("breach_id", inc.ID),
			zap.String("company_id", companyID),
			zap.String("deadline", inc.NotificationDeadline().Key()))
	}

	s.logAudit(ctx, audit.ActionBreachReported, reportedBy, companyID, audit.EntryOptions{
		ResourceType: "breach",
		ResourceID:   inc.ID,
		Description:  fmt.Sprintf("breach reported: %s (severity %s, risk %s)", title, severity, risk),
	})

	return inc, nil
}

// GetBreach loads a breach record
func (s *Service) GetBreach(ctx context.Context, companyID, breachID string) (*breach.Incident, error) {
	var inc breach.Incident
	if err := s.store.Get(ctx, breachPath(companyID)+"/"+breachID, &inc); err != nil {
		if docstore.IsNotFound(err) {
			return nil, errors.ErrBreachNotFound
		}
		return nil, errors.NewInternalError("failed to load breach record").WithCause(err)
	}
	return &inc, nil
}

// UpdateStatus moves a breach to a new status. Transitions are free-form;
// only resolved stamps the resolution fields.
func (s *Service) UpdateStatus(ctx context.Context, companyID, breachID string, status breach.Status, updatedBy string) (*breach.Incident, error) {
	if err := breach.ValidateStatus(status); err != nil {
		return nil, err
	}
	inc, err := s.GetBreach(ctx, companyID, breachID)
	if err != nil {
		return nil, err
	}

	now := values.Now()
	fields := map[string]interface{}{
		"status":     string(status),
		"updated_at": now.Key(),
	}
	if status == breach.StatusResolved {
		fields["resolved_at"] = now.Key()
		fields["resolved_by"] = updatedBy
	}

	if err := s.store.Update(ctx, breachPath(companyID)+"/"+breachID, fields); err != nil {
		return nil, errors.NewInternalError("failed to update breach status").WithCause(err)
	}

	inc.Status = status
	inc.UpdatedAt = now
	if status == breach.StatusResolved {
		inc.ResolvedAt = &now
		inc.ResolvedBy = updatedBy
	}

	s.logAudit(ctx, audit.ActionBreachUpdated, updatedBy, companyID, audit.EntryOptions{
		ResourceType: "breach",
		ResourceID:   breachID,
		Description:  fmt.Sprintf("breach status changed to %s", status),
	})
	return inc, nil
}

// RecordICONotification stamps the ICO notification time and reference
func (s *Service) RecordICONotification(ctx context.Context, companyID, breachID, icoReference, notifiedBy string) error {
	return s.recordNotification(ctx, companyID, breachID, notifiedBy, map[string]interface{}{
		"ico_notified_at": values.Now().Key(),
		"ico_reference":   icoReference,
	}, "ICO notified of breach")
}

// RecordHMRCNotification stamps the HMRC notification time
func (s *Service) RecordHMRCNotification(ctx context.Context, companyID, breachID, notifiedBy string) error {
	return s.recordNotification(ctx, companyID, breachID, notifiedBy, map[string]interface{}{
		"hmrc_notified_at": values.Now().Key(),
	}, "HMRC notified of breach")
}

// RecordUserNotification stamps the data subject notification time
func (s *Service) RecordUserNotification(ctx context.Context, companyID, breachID, notifiedBy string) error {
	return s.recordNotification(ctx, companyID, breachID, notifiedBy, map[string]interface{}{
		"users_notified_at": values.Now().Key(),
	}, "affected users notified of breach")
}

func (s *Service) recordNotification(ctx context.Context, companyID, breachID, notifiedBy string, fields map[string]interface{}, description string) error {
	if _, err := s.GetBreach(ctx, companyID, breachID); err != nil {
		return err
	}
	fields["updated_at"] = values.Now().Key()
	if err := s.store.Update(ctx, breachPath(companyID)+"/"+breachID, fields); err != nil {
		return errors.NewInternalError("failed to record notification").WithCause(err)
	}
	s.logAudit(ctx, audit.ActionBreachUpdated, notifiedBy, companyID, audit.EntryOptions{
		ResourceType: "breach",
		ResourceID:   breachID,
		Description:  description,
	})
	return nil
}

// AddRemediationAction appends a remediation step to the breach record
func (s *Service) AddRemediationAction(ctx context.Context, companyID, breachID, action, addedBy string) error {
	if action == "" {
		return errors.NewValidationError("MISSING_ACTION", "remediation action text is required")
	}
	inc, err := s.GetBreach(ctx, companyID, breachID)
	if err != nil {
		return err
	}

	actions := append(inc.RemediationActions, action)
	if err := s.store.Update(ctx, breachPath(companyID)+"/"+breachID, map[string]interface{}{
		"remediation_actions": actions,
		"updated_at":          values.Now().Key(),
	}); err != nil {
		return errors.NewInternalError("failed to add remediation action").WithCause(err)
	}

	s.logAudit(ctx, audit.ActionBreachUpdated, addedBy, companyID, audit.EntryOptions{
		ResourceType: "breach",
		ResourceID:   breachID,
		Description:  "remediation action recorded",
	})
	return nil
}

// allBreaches scans the company's breach register
func (s *Service) allBreaches(ctx context.Context, companyID string) ([]*breach.Incident, error) {
	snaps, err := s.store.Query(ctx, breachPath(companyID), docstore.QueryOptions{})
	if err != nil {
		return nil, errors.NewInternalError("failed to query breach register").WithCause(err)
	}
	out := make([]*breach.Incident, 0, len(snaps))
	for _, snap := range snaps {
		var inc breach.Incident
		if err := snap.Decode(&inc); err != nil {
			s.logger.Warn("skipping undecodable breach record", zap.String("key", snap.Key), zap.Error(err))
			continue
		}
		out = append(out, &inc)
	}
	return out, nil
}

// GetUrgentBreaches returns breaches still owing an ICO notification inside
// the 72 hour window.
func (s *Service) GetUrgentBreaches(ctx context.Context, companyID string) ([]*breach.Incident, error) {
	all, err := s.allBreaches(ctx, companyID)
	if err != nil {
		return nil, err
	}
	now := values.Now()
	urgent := make([]*breach.Incident, 0)
	for _, inc := range all {
		if inc.IsICOUrgent(now) {
			urgent = append(urgent, inc)
		}
	}
	return urgent, nil
}

// GetOverdueBreaches returns breaches owing an ICO notification past the window
func (s *Service) GetOverdueBreaches(ctx context.Context, companyID string) ([]*breach.Incident, error) {
	all, err := s.allBreaches(ctx, companyID)
	if err != nil {
		return nil, err
	}
	now := values.Now()
	overdue := make([]*breach.Incident, 0)
	for _, inc := range all {
		if inc.IsICOOverdue(now) {
			overdue = append(overdue, inc)
		}
	}
	return overdue, nil
}

// ReportSecurityIncident records a security incident, escalating to the
// breach register when personal data is involved in a data breach.
func (s *Service) ReportSecurityIncident(ctx context.Context, companyID string, incType breach.IncidentType, title, description, reportedBy string, severity breach.Severity, personalData bool) (*breach.SecurityIncident, error) {
	si, err := breach.NewSecurityIncident(companyID, incType, title, description, reportedBy, severity, personalData)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, incidentPath(companyID)+"/"+si.ID, si); err != nil {
		return nil, errors.NewInternalError("failed to store security incident").WithCause(err)
	}

	if si.ShouldEscalate() {
		if _, err := s.EscalateIncident(ctx, companyID, si); err != nil {
			// The incident record stands; escalation can be retried
			s.logger.Error("automatic breach escalation failed",
				zap.String("incident_id", si.ID), zap.Error(err))
		}
	}
	return si, nil
}

// EscalateIncident creates a cross-referenced breach record for the incident
func (s *Service) EscalateIncident(ctx context.Context, companyID string, si *breach.SecurityIncident) (*breach.Incident, error) {
	if !si.ShouldEscalate() {
		return nil, errors.NewValidationError("NOT_ESCALATABLE",
			"incident does not involve personal data or is already escalated")
	}

	inc, err := s.ReportBreach(ctx, companyID, si.Title, si.Description, si.ReportedBy,
		si.Severity, breach.RiskPossible, []string{"personal data"}, breach.IncidentOptions{
			SourceIncidentID: si.ID,
		})
	if err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, incidentPath(companyID)+"/"+si.ID, map[string]interface{}{
		"escalated_to_breach_id": inc.ID,
		"updated_at":             values.Now().Key(),
	}); err != nil {
		return nil, errors.NewInternalError("failed to cross-reference escalation").WithCause(err)
	}
	si.EscalatedToBreachID = inc.ID
	return inc, nil
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, userID, companyID string, opts audit.EntryOptions) {
	if s.auditor == nil {
		return
	}
	if userID == "" {
		userID = "system"
	}
	if _, err := s.auditor.Log(ctx, action, userID, companyID, opts); err != nil {
		s.logger.Warn("audit logging failed", zap.Error(err))
	}
}
