package specialcategory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/audit"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/specialcategory"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
)

// Service documents and validates special-category data processing
type Service struct {
	store   docstore.Store
	auditor *auditsvc.Service
	logger  *zap.Logger
}

// NewService creates the special-category service
func NewService(store docstore.Store, auditor *auditsvc.Service, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		auditor: auditor,
		logger:  logger.Named("specialcategory"),
	}
}

func basePath(companyID string) string {
	return "compliance/special_category/" + companyID
}

// DocumentProcessing records a processing justification. All structural
// preconditions are checked in the constructor, so nothing is written on
// validation failure.
func (s *Service) DocumentProcessing(ctx context.Context, companyID string, category specialcategory.Category, art9 specialcategory.Article9Condition, sched1 specialcategory.Schedule1Condition, purpose, documentedBy string, opts specialcategory.RecordOptions) (*specialcategory.ProcessingRecord, error) {
	rec, err := specialcategory.NewProcessingRecord(companyID, category, art9, sched1, purpose, documentedBy, opts)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, basePath(companyID)+"/"+rec.ID, rec); err != nil {
		return nil, errors.NewInternalError("failed to store processing record").WithCause(err)
	}

	if s.auditor != nil {
		if _, err := s.auditor.Log(ctx, audit.ActionSpecialCategory, documentedBy, companyID, audit.EntryOptions{
			ResourceType: "special_category",
			ResourceID:   rec.ID,
			Description:  fmt.Sprintf("special category processing documented: %s under %s", category, art9),
		}); err != nil {
			s.logger.Warn("audit logging failed", zap.Error(err))
		}
	}
	return rec, nil
}

// DocumentFromTemplate documents processing using a canned HR scenario
func (s *Service) DocumentFromTemplate(ctx context.Context, companyID, templateName, documentedBy, policyDocumentRef string) (*specialcategory.ProcessingRecord, error) {
	tmpl, err := specialcategory.FindTemplate(templateName)
	if err != nil {
		return nil, err
	}

	opts := specialcategory.RecordOptions{
		DataSubjects:     tmpl.DataSubjects,
		SecurityMeasures: tmpl.SecurityMeasures,
	}
	if tmpl.Schedule1Condition.IsPart2() {
		opts.PolicyDocumentRef = policyDocumentRef
	}
	return s.DocumentProcessing(ctx, companyID, tmpl.Category, tmpl.Article9Condition,
		tmpl.Schedule1Condition, tmpl.ProcessingPurpose, documentedBy, opts)
}

// Records returns every processing record for the company
func (s *Service) Records(ctx context.Context, companyID string) ([]*specialcategory.ProcessingRecord, error) {
	snaps, err := s.store.Query(ctx, basePath(companyID), docstore.QueryOptions{})
	if err != nil {
		return nil, errors.NewInternalError("failed to query processing records").WithCause(err)
	}
	out := make([]*specialcategory.ProcessingRecord, 0, len(snaps))
	for _, snap := range snaps {
		var rec specialcategory.ProcessingRecord
		if err := snap.Decode(&rec); err != nil {
			s.logger.Warn("skipping undecodable processing record", zap.String("key", snap.Key), zap.Error(err))
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// ValidateProcessing reports whether processing the given category is
// currently justified by a valid record.
func (s *Service) ValidateProcessing(ctx context.Context, companyID string, category specialcategory.Category) (bool, error) {
	if err := specialcategory.ValidateCategory(category); err != nil {
		return false, err
	}
	records, err := s.Records(ctx, companyID)
	if err != nil {
		return false, err
	}

	now := values.Now()
	for _, rec := range records {
		if rec.Category == category && rec.IsValid(now) {
			return true, nil
		}
	}
	return false, nil
}

// RecordConsentCheck refreshes the consent verification timestamp on a
// consent-based processing record.
func (s *Service) RecordConsentCheck(ctx context.Context, companyID, recordID string) error {
	path := basePath(companyID) + "/" + recordID
	var rec specialcategory.ProcessingRecord
	if err := s.store.Get(ctx, path, &rec); err != nil {
		if docstore.IsNotFound(err) {
			return errors.NewNotFoundError("processing record")
		}
		return errors.NewInternalError("failed to load processing record").WithCause(err)
	}
	if rec.Article9Condition != specialcategory.ConditionExplicitConsent {
		return errors.NewValidationError("NOT_CONSENT_BASED",
			"consent checks only apply to explicit consent processing")
	}

	now := values.Now()
	if err := s.store.Update(ctx, path, map[string]interface{}{
		"last_consent_check_at": now.Key(),
		"updated_at":            now.Key(),
	}); err != nil {
		return errors.NewInternalError("failed to record consent check").WithCause(err)
	}
	return nil
}
