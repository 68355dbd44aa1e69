package rest

import (
	"net/http"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	hmrcsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/hmrc"
)

type submitFPSRequest struct {
	SiteID           string   `json:"site_id" validate:"required"`
	SubsiteID        string   `json:"subsite_id"`
	PayrollRecordIDs []string `json:"payroll_record_ids" validate:"required,min=1"`
	PaymentDate      string   `json:"payment_date"`
}

// handleSubmitFPS always answers 200: the orchestration's Result carries
// rejection detail so clients can show per-record warnings.
func (h *Handler) handleSubmitFPS(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req submitFPSRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	fpsReq := hmrcsvc.FPSRequest{
		CompanyID:        claims.CompanyID,
		SiteID:           req.SiteID,
		SubsiteID:        req.SubsiteID,
		PayrollRecordIDs: req.PayrollRecordIDs,
		UserID:           claims.UserID,
	}
	if req.PaymentDate != "" {
		parsed, err := values.ParseTime(req.PaymentDate)
		if err != nil {
			h.writeError(w, errors.NewValidationError("INVALID_PAYMENT_DATE",
				"payment_date must be RFC 3339"))
			return
		}
		fpsReq.PaymentDate = &parsed
	}

	result := h.services.HMRC.SubmitFPSForPayrollRun(r.Context(), fpsReq)
	h.writeJSON(w, http.StatusOK, result)
}

type submitEPSRequest struct {
	SiteID              string `json:"site_id" validate:"required"`
	SubsiteID           string `json:"subsite_id"`
	TaxYear             string `json:"tax_year" validate:"required"`
	Period              int    `json:"period" validate:"required,min=1"`
	Frequency           string `json:"frequency" validate:"required"`
	NoPaymentForPeriod  bool   `json:"no_payment_for_period"`
	EmploymentAllowance bool   `json:"employment_allowance"`
}

func (h *Handler) handleSubmitEPS(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req submitEPSRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	period, err := values.NewTaxPeriod(req.TaxYear, req.Period, values.PayFrequency(req.Frequency))
	if err != nil {
		h.writeError(w, err)
		return
	}

	result := h.services.HMRC.SubmitEPSForPeriod(r.Context(), hmrcsvc.EPSRequest{
		CompanyID:           claims.CompanyID,
		SiteID:              req.SiteID,
		SubsiteID:           req.SubsiteID,
		UserID:              claims.UserID,
		TaxPeriod:           period,
		NoPaymentForPeriod:  req.NoPaymentForPeriod,
		EmploymentAllowance: req.EmploymentAllowance,
	})
	h.writeJSON(w, http.StatusOK, result)
}
