package hmrc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/audit"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/consent"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/payroll"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	"github.com/ledgerline/payroll-compliance-backend/internal/metrics"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
	consentsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/consent"
)

// Submission status values returned in Result.Status
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Lawful basis outcomes reported in Result.LawfulBasisOutcome
const (
	BasisExisting       = "existing"
	BasisAutoDocumented = "auto_documented"
	BasisDocFailed      = "documentation_failed"
	BasisNotChecked     = "not_checked"
)

// Service orchestrates RTI submissions. Its entry points never return an
// error: every failure is folded into the Result so callers always get a
// structured outcome they can persist and display.
type Service struct {
	store    docstore.Store
	client   Client
	consents *consentsvc.Service
	auditor  *auditsvc.Service
	logger   *zap.Logger
}

// NewService creates the submission orchestration service
func NewService(store docstore.Store, client Client, consents *consentsvc.Service, auditor *auditsvc.Service, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		client:   client,
		consents: consents,
		auditor:  auditor,
		logger:   logger.Named("hmrc"),
	}
}

// FPSRequest asks for a Full Payment Submission covering a set of approved
// payroll records.
type FPSRequest struct {
	CompanyID        string       `json:"company_id"`
	SiteID           string       `json:"site_id"`
	SubsiteID        string       `json:"subsite_id,omitempty"`
	PayrollRecordIDs []string     `json:"payroll_record_ids"`
	UserID           string       `json:"user_id,omitempty"`
	PaymentDate      *values.Time `json:"payment_date,omitempty"`
}

// EPSRequest asks for an Employer Payment Summary for one tax period
type EPSRequest struct {
	CompanyID           string           `json:"company_id"`
	SiteID              string           `json:"site_id"`
	SubsiteID           string           `json:"subsite_id,omitempty"`
	UserID              string           `json:"user_id,omitempty"`
	TaxPeriod           values.TaxPeriod `json:"tax_period"`
	NoPaymentForPeriod  bool             `json:"no_payment_for_period"`
	EmploymentAllowance bool             `json:"employment_allowance"`
}

// Result is the uniform submission outcome
type Result struct {
	Success            bool         `json:"success"`
	Status             string       `json:"status"`
	SubmissionID       string       `json:"submission_id,omitempty"`
	SubmittedAt        *values.Time `json:"submitted_at,omitempty"`
	RecordsSubmitted   int          `json:"records_submitted"`
	LawfulBasisOutcome string       `json:"lawful_basis_outcome,omitempty"`
	Errors             []string     `json:"errors,omitempty"`
	Warnings           []string     `json:"warnings,omitempty"`
}

func (r *Result) reject(format string, args ...interface{}) *Result {
	r.Success = false
	r.Status = StatusRejected
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	return r
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func recordPath(companyID, recordID string) string {
	return "payroll/records/" + companyID + "/" + recordID
}

func employeePath(companyID, employeeID string) string {
	return "payroll/employees/" + companyID + "/" + employeeID
}

// SubmitFPSForPayrollRun runs the full FPS sequence for a payroll run. It
// never returns an error: validation problems, upstream failures and store
// failures all land in the Result.
func (s *Service) SubmitFPSForPayrollRun(ctx context.Context, req FPSRequest) *Result {
	result := &Result{Status: StatusRejected, LawfulBasisOutcome: BasisNotChecked}

	if len(req.PayrollRecordIDs) == 0 {
		return result.reject("no payroll records requested")
	}

	settings, level, err := s.FetchSettings(ctx, req.CompanyID, req.SiteID, req.SubsiteID)
	if err != nil {
		return result.reject("HMRC settings unavailable: %v", err)
	}
	if settings.PAYEReference == "" || settings.AccountsOfficeReference == "" {
		return result.reject("employer PAYE and accounts office references must be configured before submitting")
	}

	result.LawfulBasisOutcome = s.ensureLawfulBasis(ctx, req.UserID, req.CompanyID, result)

	pairs, rejected := s.loadPairs(ctx, req.CompanyID, req.PayrollRecordIDs, result)
	if rejected {
		return result
	}
	if len(pairs) == 0 {
		return result.reject("no valid payroll records remain after validation")
	}

	period := pairs[0].Record.TaxPeriod
	for _, p := range pairs[1:] {
		if !p.Record.TaxPeriod.Equal(period) {
			return result.reject("payroll records span multiple tax periods (%s and %s); submit one period at a time",
				period, p.Record.TaxPeriod)
		}
	}

	paymentDate := s.resolvePaymentDate(req.PaymentDate, pairs[0].Record, result)

	sub, err := payroll.BuildFPS(req.CompanyID, settings.PAYEReference,
		settings.AccountsOfficeReference, period, paymentDate, pairs)
	if err != nil {
		return result.reject("submission validation failed: %v", err)
	}

	res, err := s.client.SubmitFPS(ctx, sub, settings)
	if err != nil {
		s.patchRecords(ctx, req, pairs, nil, false)
		metrics.HMRCSubmissions.WithLabelValues("fps", "error").Inc()
		return result.reject("HMRC submission failed: %v", err)
	}

	s.patchRecords(ctx, req, pairs, res, res.Success)
	result.SubmissionID = res.SubmissionID
	submittedAt := res.SubmittedAt
	result.SubmittedAt = &submittedAt

	if !res.Success {
		metrics.HMRCSubmissions.WithLabelValues("fps", "rejected").Inc()
		result.Errors = append(result.Errors, res.Errors...)
		if len(res.Errors) == 0 {
			result.Errors = append(result.Errors, "submission rejected by HMRC gateway")
		}
		s.logSubmission(ctx, req.UserID, req.CompanyID, "fps", period, false)
		return result
	}

	if err := s.SaveSettings(ctx, req.CompanyID, req.SiteID, req.SubsiteID, level, map[string]interface{}{
		"last_fps_submission_date": res.SubmittedAt.Key(),
	}); err != nil {
		result.warn("submission accepted but recording the submission date failed: %v", err)
	}

	result.Success = true
	result.Status = StatusAccepted
	result.RecordsSubmitted = len(pairs)
	metrics.HMRCSubmissions.WithLabelValues("fps", "accepted").Inc()
	s.logSubmission(ctx, req.UserID, req.CompanyID, "fps", period, true)
	return result
}

// SubmitEPSForPeriod submits an Employer Payment Summary. Same no-error
// contract as the FPS path.
func (s *Service) SubmitEPSForPeriod(ctx context.Context, req EPSRequest) *Result {
	result := &Result{Status: StatusRejected, LawfulBasisOutcome: BasisNotChecked}

	settings, level, err := s.FetchSettings(ctx, req.CompanyID, req.SiteID, req.SubsiteID)
	if err != nil {
		return result.reject("HMRC settings unavailable: %v", err)
	}
	if settings.PAYEReference == "" || settings.AccountsOfficeReference == "" {
		return result.reject("employer PAYE and accounts office references must be configured before submitting")
	}

	result.LawfulBasisOutcome = s.ensureLawfulBasis(ctx, req.UserID, req.CompanyID, result)

	sub := &payroll.EPSSubmission{
		CompanyID:           req.CompanyID,
		PAYEReference:       settings.PAYEReference,
		AccountsOffice:      settings.AccountsOfficeReference,
		TaxPeriod:           req.TaxPeriod,
		NoPaymentForPeriod:  req.NoPaymentForPeriod,
		EmploymentAllowance: req.EmploymentAllowance,
	}
	if err := sub.Validate(); err != nil {
		return result.reject("submission validation failed: %v", err)
	}

	res, err := s.client.SubmitEPS(ctx, sub, settings)
	if err != nil {
		metrics.HMRCSubmissions.WithLabelValues("eps", "error").Inc()
		return result.reject("HMRC submission failed: %v", err)
	}

	result.SubmissionID = res.SubmissionID
	submittedAt := res.SubmittedAt
	result.SubmittedAt = &submittedAt

	if !res.Success {
		metrics.HMRCSubmissions.WithLabelValues("eps", "rejected").Inc()
		result.Errors = append(result.Errors, res.Errors...)
		if len(res.Errors) == 0 {
			result.Errors = append(result.Errors, "submission rejected by HMRC gateway")
		}
		s.logSubmission(ctx, req.UserID, req.CompanyID, "eps", req.TaxPeriod, false)
		return result
	}

	if err := s.SaveSettings(ctx, req.CompanyID, req.SiteID, req.SubsiteID, level, map[string]interface{}{
		"last_eps_submission_date": res.SubmittedAt.Key(),
	}); err != nil {
		result.warn("submission accepted but recording the submission date failed: %v", err)
	}

	result.Success = true
	result.Status = StatusAccepted
	metrics.HMRCSubmissions.WithLabelValues("eps", "accepted").Inc()
	s.logSubmission(ctx, req.UserID, req.CompanyID, "eps", req.TaxPeriod, true)
	return result
}

// ensureLawfulBasis checks the submitting user holds a non-consent lawful
// basis, documenting legal_obligation when absent. Failures here warn and
// never block the submission.
func (s *Service) ensureLawfulBasis(ctx context.Context, userID, companyID string, result *Result) string {
	if userID == "" || s.consents == nil {
		return BasisNotChecked
	}

	has, err := s.consents.HasHMRCSubmissionBasis(ctx, userID, companyID)
	if err != nil {
		s.logger.Warn("lawful basis check failed", zap.String("user_id", userID), zap.Error(err))
		result.warn("lawful basis check failed: %v", err)
		return BasisDocFailed
	}
	if has {
		return BasisExisting
	}

	_, err = s.consents.DocumentLawfulBasis(ctx, userID, companyID,
		consent.PurposeHMRCSubmission, consent.BasisLegalObligation,
		"Statutory obligation to report payroll information to HMRC under RTI regulations")
	if err != nil {
		s.logger.Warn("lawful basis auto-documentation failed",
			zap.String("user_id", userID), zap.Error(err))
		result.warn("lawful basis documentation failed: %v", err)
		return BasisDocFailed
	}
	return BasisAutoDocumented
}

// loadPairs fetches each payroll record and its employee. Per-record problems
// (not approved, missing NI number, inconsistent amounts) skip the record with
// a warning; a missing record or employee document fails the whole batch.
func (s *Service) loadPairs(ctx context.Context, companyID string, recordIDs []string, result *Result) ([]payroll.RecordEmployeePair, bool) {
	pairs := make([]payroll.RecordEmployeePair, 0, len(recordIDs))
	for _, id := range recordIDs {
		var rec payroll.Record
		if err := s.store.Get(ctx, recordPath(companyID, id), &rec); err != nil {
			if docstore.IsNotFound(err) {
				result.reject("payroll record %s not found", id)
			} else {
				result.reject("failed to load payroll record %s: %v", id, err)
			}
			return nil, true
		}

		if !rec.IsApproved() {
			result.warn("skipping payroll record %s: status is %s, not approved", id, rec.Status)
			continue
		}
		if err := rec.Validate(); err != nil {
			result.warn("skipping payroll record %s: %v", id, err)
			continue
		}

		var emp payroll.Employee
		if err := s.store.Get(ctx, employeePath(companyID, rec.EmployeeID), &emp); err != nil {
			if docstore.IsNotFound(err) {
				result.reject("employee %s referenced by payroll record %s does not exist", rec.EmployeeID, id)
			} else {
				result.reject("failed to load employee %s: %v", rec.EmployeeID, err)
			}
			return nil, true
		}
		if _, err := emp.ValidNINumber(); err != nil {
			result.warn("skipping payroll record %s: %v", id, err)
			continue
		}

		pairs = append(pairs, payroll.RecordEmployeePair{Record: &rec, Employee: &emp})
	}
	return pairs, false
}

// resolvePaymentDate picks the payment date: an explicit request value wins,
// then the record's period end; falling back to today is flagged because it
// can misstate the payment timing to HMRC.
func (s *Service) resolvePaymentDate(explicit *values.Time, first *payroll.Record, result *Result) values.Time {
	if explicit != nil {
		return *explicit
	}
	if first.PeriodEndDate != nil {
		return *first.PeriodEndDate
	}
	result.warn("no payment date or period end date available; defaulting to today")
	return values.Now()
}

// patchRecords writes submission outcomes back to every record in the batch.
// Per-record write failures are logged and appended as warnings; the
// submission itself already happened and must still be reported.
func (s *Service) patchRecords(ctx context.Context, req FPSRequest, pairs []payroll.RecordEmployeePair, res *SubmissionResult, success bool) {
	now := values.Now()
	for _, p := range pairs {
		info := &payroll.SubmissionInfo{
			Submitted:   success,
			SubmittedAt: now,
			SubmittedBy: req.UserID,
		}
		status := payroll.RecordFailed
		if success {
			status = payroll.RecordSubmitted
			info.Status = StatusAccepted
		} else {
			info.Status = StatusRejected
		}
		if res != nil {
			info.SubmissionID = res.SubmissionID
			info.SubmittedAt = res.SubmittedAt
			if !success && len(res.Errors) > 0 {
				info.FailureCode = res.Errors[0]
			}
		}

		err := s.store.Update(ctx, recordPath(req.CompanyID, p.Record.ID), map[string]interface{}{
			"status":            string(status),
			"submitted_to_hmrc": info,
			"updated_at":        now.Key(),
		})
		if err != nil {
			s.logger.Error("failed to patch payroll record after submission",
				zap.String("record_id", p.Record.ID), zap.Error(err))
		}
	}
}

func (s *Service) logSubmission(ctx context.Context, userID, companyID, subType string, period values.TaxPeriod, success bool) {
	if s.auditor == nil {
		return
	}
	if userID == "" {
		userID = "system"
	}
	opts := audit.EntryOptions{
		ResourceType: "hmrc_submission",
		Description:  fmt.Sprintf("%s submission for %s", subType, period),
		Failed:       !success,
	}
	if _, err := s.auditor.Log(ctx, audit.ActionHMRCSubmission, userID, companyID, opts); err != nil {
		s.logger.Warn("audit logging failed", zap.Error(err))
	}
}
