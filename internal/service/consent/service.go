package consent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/audit"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/consent"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/cache"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	"github.com/ledgerline/payroll-compliance-backend/internal/metrics"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
)

// Service manages consent and lawful-basis records. Records are append-only;
// validity questions are answered by scanning the user's records and taking
// the latest by consent timestamp, so a fresh grant supersedes an earlier
// withdrawal without touching it.
type Service struct {
	store  docstore.Store
	auditor *auditsvc.Service
	cache  *cache.ConsentDecisionCache
	logger *zap.Logger
}

// NewService creates the consent service. The decision cache may be nil.
func NewService(store docstore.Store, auditor *auditsvc.Service, decisionCache *cache.ConsentDecisionCache, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		auditor: auditor,
		cache:   decisionCache,
		logger:  logger.Named("consent"),
	}
}

func basePath(companyID string) string {
	return "compliance/consent/" + companyID
}

func recordPath(companyID, recordID string) string {
	return basePath(companyID) + "/" + recordID
}

// RecordConsent appends a new consent record
func (s *Service) RecordConsent(ctx context.Context, userID, companyID string, purpose consent.Purpose, basis consent.LawfulBasis, given bool, method consent.Method, version string) (*consent.Record, error) {
	rec, err := consent.NewRecord(userID, companyID, purpose, basis, given, method, version)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, recordPath(companyID, rec.ID), rec); err != nil {
		return nil, errors.NewInternalError("failed to store consent record").WithCause(err)
	}
	s.cache.InvalidateUser(ctx, userID, companyID)

	action := audit.ActionConsentGiven
	if !given {
		action = audit.ActionConsentWithdrawn
	}
	s.logAudit(ctx, action, userID, companyID, audit.EntryOptions{
		ResourceType: "consent",
		ResourceID:   rec.ID,
		Description:  fmt.Sprintf("consent %s recorded for %s (%s)", statusWord(given), purpose, basis),
	})

	return rec, nil
}

func statusWord(given bool) string {
	if given {
		return "grant"
	}
	return "refusal"
}

// WithdrawConsent withdraws an existing record. A companion withdrawal record
// is written first, then the original is patched with the back-reference. The
// two writes are not transactional; see GetLatestConsent for why an orphaned
// withdrawal record still yields the correct answer.
func (s *Service) WithdrawConsent(ctx context.Context, userID, companyID, recordID string) (*consent.Record, error) {
	var original consent.Record
	if err := s.store.Get(ctx, recordPath(companyID, recordID), &original); err != nil {
		if docstore.IsNotFound(err) {
			return nil, errors.ErrConsentNotFound
		}
		return nil, errors.NewInternalError("failed to load consent record").WithCause(err)
	}

	if original.UserID != userID {
		return nil, errors.NewUnauthorizedError("consent record belongs to a different user")
	}
	if original.IsWithdrawn() {
		return nil, errors.ErrAlreadyWithdrawn
	}

	now := values.Now()
	withdrawal := &consent.Record{
		ID:               original.ID + "-w",
		UserID:           userID,
		CompanyID:        companyID,
		Purpose:          original.Purpose,
		LawfulBasis:      original.LawfulBasis,
		ConsentGiven:     false,
		ConsentTimestamp: now,
		Method:           original.Method,
		Version:          original.Version,
		WithdrawnFrom:    original.ID,
	}
	if err := s.store.Set(ctx, recordPath(companyID, withdrawal.ID), withdrawal); err != nil {
		return nil, errors.NewInternalError("failed to store withdrawal record").WithCause(err)
	}

	if err := s.store.Update(ctx, recordPath(companyID, recordID), map[string]interface{}{
		"withdrawn_timestamp":  now.Key(),
		"withdrawal_record_id": withdrawal.ID,
	}); err != nil {
		return nil, errors.NewInternalError("failed to mark consent withdrawn").WithCause(err)
	}
	s.cache.InvalidateUser(ctx, userID, companyID)

	s.logAudit(ctx, audit.ActionConsentWithdrawn, userID, companyID, audit.EntryOptions{
		ResourceType: "consent",
		ResourceID:   recordID,
		Description:  fmt.Sprintf("consent withdrawn for %s", original.Purpose),
	})

	withdrawnAt := now
	original.WithdrawnTimestamp = &withdrawnAt
	original.WithdrawalRecordID = withdrawal.ID
	return &original, nil
}

// userRecords returns every consent record for the user in the company
func (s *Service) userRecords(ctx context.Context, userID, companyID string) ([]*consent.Record, error) {
	snaps, err := s.store.Query(ctx, basePath(companyID), docstore.QueryOptions{})
	if err != nil {
		return nil, errors.NewInternalError("failed to query consent records").WithCause(err)
	}

	records := make([]*consent.Record, 0, len(snaps))
	for _, snap := range snaps {
		var r consent.Record
		if err := snap.Decode(&r); err != nil {
			s.logger.Warn("skipping undecodable consent record", zap.String("key", snap.Key), zap.Error(err))
			continue
		}
		if r.UserID == userID {
			records = append(records, &r)
		}
	}
	return records, nil
}

// GetLatestConsent returns the most recent record for the purpose, or nil
func (s *Service) GetLatestConsent(ctx context.Context, userID, companyID string, purpose consent.Purpose) (*consent.Record, error) {
	records, err := s.userRecords(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}
	return consent.Latest(consent.FilterByPurpose(records, purpose)), nil
}

// HasConsent reports whether the latest record for the purpose is a valid grant
func (s *Service) HasConsent(ctx context.Context, userID, companyID string, purpose consent.Purpose) (bool, error) {
	if granted, ok := s.cache.GetDecision(ctx, userID, companyID, purpose); ok {
		metrics.ConsentChecks.WithLabelValues(purpose.String(), outcomeWord(granted)).Inc()
		return granted, nil
	}

	latest, err := s.GetLatestConsent(ctx, userID, companyID, purpose)
	if err != nil {
		return false, err
	}

	granted := latest != nil && latest.ValidAt(values.Now())
	s.cache.SetDecision(ctx, userID, companyID, purpose, granted)
	metrics.ConsentChecks.WithLabelValues(purpose.String(), outcomeWord(granted)).Inc()
	return granted, nil
}

func outcomeWord(granted bool) string {
	if granted {
		return "granted"
	}
	return "denied"
}

// HasHMRCSubmissionBasis reports whether the latest hmrc_submission record is
// a valid grant resting on a non-consent basis (legal obligation or contract).
func (s *Service) HasHMRCSubmissionBasis(ctx context.Context, userID, companyID string) (bool, error) {
	latest, err := s.GetLatestConsent(ctx, userID, companyID, consent.PurposeHMRCSubmission)
	if err != nil {
		return false, err
	}
	if latest == nil || !latest.ValidAt(values.Now()) {
		return false, nil
	}
	return latest.LawfulBasis.IsNonConsent(), nil
}

// DocumentLawfulBasis records a non-consent basis with a justification. Used
// directly by administrators and as the auto-fallback before HMRC submission.
func (s *Service) DocumentLawfulBasis(ctx context.Context, userID, companyID string, purpose consent.Purpose, basis consent.LawfulBasis, justification string) (*consent.Record, error) {
	if basis == consent.BasisConsent {
		return nil, errors.NewValidationError("CONSENT_NOT_A_FALLBACK",
			"use RecordConsent for consent-based processing")
	}
	if justification == "" {
		return nil, errors.NewValidationError("MISSING_JUSTIFICATION",
			"a justification is required when documenting a lawful basis")
	}

	rec, err := consent.NewRecord(userID, companyID, purpose, basis, true, consent.MethodImplicit, "1.0")
	if err != nil {
		return nil, err
	}
	rec.Justification = justification

	if err := s.store.Set(ctx, recordPath(companyID, rec.ID), rec); err != nil {
		return nil, errors.NewInternalError("failed to store lawful basis record").WithCause(err)
	}
	s.cache.InvalidateUser(ctx, userID, companyID)

	s.logAudit(ctx, audit.ActionLawfulBasisDocumented, userID, companyID, audit.EntryOptions{
		ResourceType: "consent",
		ResourceID:   rec.ID,
		Description:  fmt.Sprintf("lawful basis %s documented for %s", basis, purpose),
	})

	return rec, nil
}

// DeleteResult classifies the outcome of a user consent purge
type DeleteResult struct {
	Deleted   []string `json:"deleted"`
	Preserved []string `json:"preserved"`
}

// DeleteUserConsents removes a user's consent records, optionally preserving
// legal-obligation records. The summary audit entry is written before any
// deletion so the trail survives a partial failure.
func (s *Service) DeleteUserConsents(ctx context.Context, userID, companyID string, preserveLegalObligation bool) (*DeleteResult, error) {
	records, err := s.userRecords(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	for _, r := range records {
		if preserveLegalObligation && r.LawfulBasis == consent.BasisLegalObligation {
			result.Preserved = append(result.Preserved, r.ID)
			continue
		}
		result.Deleted = append(result.Deleted, r.ID)
	}

	// Audit first: the deletion record must exist even if deletes fail midway
	if s.auditor != nil {
		if _, err := s.auditor.Log(ctx, audit.ActionDataDelete, userID, companyID, audit.EntryOptions{
			ResourceType: "consent",
			Description: fmt.Sprintf("deleting %d consent records for user (preserving %d legal obligation records)",
				len(result.Deleted), len(result.Preserved)),
		}); err != nil {
			return nil, errors.NewInternalError("failed to record consent deletion").WithCause(err)
		}
	}

	for _, id := range result.Deleted {
		if err := s.store.Remove(ctx, recordPath(companyID, id)); err != nil {
			return result, errors.NewInternalError("failed to delete consent record").WithCause(err)
		}
	}
	s.cache.InvalidateUser(ctx, userID, companyID)

	return result, nil
}

// logAudit is best-effort: consent operations never fail on trail problems
func (s *Service) logAudit(ctx context.Context, action audit.Action, userID, companyID string, opts audit.EntryOptions) {
	if s.auditor == nil {
		return
	}
	if _, err := s.auditor.Log(ctx, action, userID, companyID, opts); err != nil {
		s.logger.Warn("audit logging failed",
			zap.String("action", action.String()),
			zap.Error(err))
	}
}
