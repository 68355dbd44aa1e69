package dsar

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/audit"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/dsar"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	"github.com/ledgerline/payroll-compliance-backend/internal/metrics"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
)

// Service manages the subject access request lifecycle
type Service struct {
	store   docstore.Store
	auditor *auditsvc.Service
	logger  *zap.Logger
}

// NewService creates the DSAR service
func NewService(store docstore.Store, auditor *auditsvc.Service, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		auditor: auditor,
		logger:  logger.Named("dsar"),
	}
}

func basePath(companyID string) string {
	return "compliance/dsar/" + companyID
}

func requestPath(companyID, requestID string) string {
	return basePath(companyID) + "/" + requestID
}

// SubmitRequest opens a new request with the statutory due date
func (s *Service) SubmitRequest(ctx context.Context, companyID, subjectUserID, subjectName string, reqType dsar.RequestType, details string) (*dsar.Request, error) {
	req, err := dsar.NewRequest(companyID, subjectUserID, subjectName, reqType, details)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, requestPath(companyID, req.ID), req); err != nil {
		return nil, errors.NewInternalError("failed to store subject access request").WithCause(err)
	}
	metrics.DSAROpenRequests.WithLabelValues(companyID).Inc()

	s.logAudit(ctx, audit.ActionDSARSubmitted, subjectUserID, companyID, audit.EntryOptions{
		ResourceType: "dsar",
		ResourceID:   req.ID,
		Description:  fmt.Sprintf("%s request received, due %s", reqType, req.DueDate.Key()),
	})
	return req, nil
}

// GetRequest loads a request
func (s *Service) GetRequest(ctx context.Context, companyID, requestID string) (*dsar.Request, error) {
	var req dsar.Request
	if err := s.store.Get(ctx, requestPath(companyID, requestID), &req); err != nil {
		if docstore.IsNotFound(err) {
			return nil, errors.ErrRequestNotFound
		}
		return nil, errors.NewInternalError("failed to load subject access request").WithCause(err)
	}
	return &req, nil
}

func (s *Service) save(ctx context.Context, companyID string, req *dsar.Request) error {
	req.UpdatedAt = values.Now()
	if err := s.store.Set(ctx, requestPath(companyID, req.ID), req); err != nil {
		return errors.NewInternalError("failed to store subject access request").WithCause(err)
	}
	return nil
}

// VerifyIdentity records the identity check and moves the request forward
func (s *Service) VerifyIdentity(ctx context.Context, companyID, requestID, verifiedBy string) (*dsar.Request, error) {
	req, err := s.GetRequest(ctx, companyID, requestID)
	if err != nil {
		return nil, err
	}
	if req.IsTerminal() {
		return nil, errors.NewConflictError(fmt.Sprintf("cannot verify a %s request", req.Status))
	}

	now := values.Now()
	req.IdentityVerified = true
	req.VerifiedBy = verifiedBy
	req.VerifiedAt = &now
	req.Status = dsar.StatusIdentityVerification
	if err := s.save(ctx, companyID, req); err != nil {
		return nil, err
	}
	return req, nil
}

// StartProcessing moves a verified request into progress
func (s *Service) StartProcessing(ctx context.Context, companyID, requestID, assignedTo string) (*dsar.Request, error) {
	req, err := s.GetRequest(ctx, companyID, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IdentityVerified {
		return nil, errors.NewValidationError("IDENTITY_NOT_VERIFIED",
			"identity must be verified before processing starts")
	}
	if req.IsTerminal() {
		return nil, errors.NewConflictError(fmt.Sprintf("cannot start a %s request", req.Status))
	}

	req.Status = dsar.StatusInProgress
	req.AssignedTo = assignedTo
	if err := s.save(ctx, companyID, req); err != nil {
		return nil, err
	}
	return req, nil
}

// RequestExtension grants the single permitted two month extension
func (s *Service) RequestExtension(ctx context.Context, companyID, requestID, reason string) (*dsar.Request, error) {
	req, err := s.GetRequest(ctx, companyID, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.Extend(reason, values.Now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, companyID, req); err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.ActionDSARSubmitted, "system", companyID, audit.EntryOptions{
		ResourceType: "dsar",
		ResourceID:   requestID,
		Description:  fmt.Sprintf("extension granted, now due %s", req.ExtendedDueDate.Key()),
	})
	return req, nil
}

// CompleteAccessRequest closes an access request with a response summary
func (s *Service) CompleteAccessRequest(ctx context.Context, companyID, requestID, completedBy, responseSummary string) (*dsar.Request, error) {
	return s.complete(ctx, companyID, requestID, completedBy, responseSummary, dsar.TypeAccess)
}

// CompleteRectificationRequest closes a rectification request
func (s *Service) CompleteRectificationRequest(ctx context.Context, companyID, requestID, completedBy, responseSummary string) (*dsar.Request, error) {
	return s.complete(ctx, companyID, requestID, completedBy, responseSummary, dsar.TypeRectification)
}

// CompleteErasureRequest closes an erasure request
func (s *Service) CompleteErasureRequest(ctx context.Context, companyID, requestID, completedBy, responseSummary string) (*dsar.Request, error) {
	return s.complete(ctx, companyID, requestID, completedBy, responseSummary, dsar.TypeErasure)
}

// complete validates the request type before mutating: calling the wrong
// completion method fails loudly instead of silently mismatching fields.
func (s *Service) complete(ctx context.Context, companyID, requestID, completedBy, responseSummary string, want dsar.RequestType) (*dsar.Request, error) {
	req, err := s.GetRequest(ctx, companyID, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.CheckType(want); err != nil {
		return nil, err
	}
	if req.IsTerminal() {
		return nil, errors.NewConflictError(fmt.Sprintf("request already %s", req.Status))
	}

	now := values.Now()
	req.Status = dsar.StatusCompleted
	req.CompletedAt = &now
	req.CompletedBy = completedBy
	req.ResponseSummary = responseSummary
	if err := s.save(ctx, companyID, req); err != nil {
		return nil, err
	}
	metrics.DSAROpenRequests.WithLabelValues(companyID).Dec()

	s.logAudit(ctx, audit.ActionDSARCompleted, completedBy, companyID, audit.EntryOptions{
		ResourceType: "dsar",
		ResourceID:   requestID,
		Description:  fmt.Sprintf("%s request completed", req.RequestType),
	})
	return req, nil
}

// RejectRequest closes a request without fulfilment, recording why
func (s *Service) RejectRequest(ctx context.Context, companyID, requestID, rejectedBy, reason string) (*dsar.Request, error) {
	if reason == "" {
		return nil, errors.NewValidationError("MISSING_REASON",
			"a rejection reason is required")
	}
	req, err := s.GetRequest(ctx, companyID, requestID)
	if err != nil {
		return nil, err
	}
	if req.IsTerminal() {
		return nil, errors.NewConflictError(fmt.Sprintf("request already %s", req.Status))
	}

	req.Status = dsar.StatusRejected
	req.RejectionReason = reason
	if err := s.save(ctx, companyID, req); err != nil {
		return nil, err
	}
	metrics.DSAROpenRequests.WithLabelValues(companyID).Dec()

	s.logAudit(ctx, audit.ActionDSARCompleted, rejectedBy, companyID, audit.EntryOptions{
		ResourceType: "dsar",
		ResourceID:   requestID,
		Description:  fmt.Sprintf("%s request rejected: %s", req.RequestType, reason),
	})
	return req, nil
}

// GetOverdueRequests returns open requests past their effective deadline
func (s *Service) GetOverdueRequests(ctx context.Context, companyID string) ([]*dsar.Request, error) {
	snaps, err := s.store.Query(ctx, basePath(companyID), docstore.QueryOptions{})
	if err != nil {
		return nil, errors.NewInternalError("failed to query subject access requests").WithCause(err)
	}

	now := values.Now()
	overdue := make([]*dsar.Request, 0)
	for _, snap := range snaps {
		var req dsar.Request
		if err := snap.Decode(&req); err != nil {
			s.logger.Warn("skipping undecodable request", zap.String("key", snap.Key), zap.Error(err))
			continue
		}
		if req.IsOverdue(now) {
			overdue = append(overdue, &req)
		}
	}
	return overdue, nil
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
