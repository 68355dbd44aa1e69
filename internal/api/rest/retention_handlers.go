package rest

import (
	"net/http"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/retention"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

func (h *Handler) handleGetPolicies(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	policies, err := h.services.Retention.Policies(r.Context(), claims.CompanyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"policies": policies})
}

func (h *Handler) handleInitializePolicies(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	created, err := h.services.Retention.InitializePolicies(r.Context(), claims.CompanyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"created": created})
}

type upsertPolicyRequest struct {
	DataCategory  string `json:"data_category" validate:"required"`
	Years         int    `json:"retention_period_years" validate:"min=0"`
	Months        int    `json:"retention_period_months" validate:"min=0,max=11"`
	AutoArchive   bool   `json:"auto_archive"`
	AutoDelete    bool   `json:"auto_delete"`
	AutoAnonymize bool   `json:"auto_anonymize"`
}

func (h *Handler) handleUpsertPolicy(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req upsertPolicyRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	policy, err := h.services.Retention.UpsertPolicy(r.Context(), claims.CompanyID,
		retention.DataCategory(req.DataCategory), req.Years, req.Months,
		req.AutoArchive, req.AutoDelete, req.AutoAnonymize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, policy)
}

type trackRecordRequest struct {
	DataCategory       string `json:"data_category" validate:"required"`
	DataPath           string `json:"data_path" validate:"required"`
	RetentionStartDate string `json:"retention_start_date"`
}

func (h *Handler) handleTrackRecord(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req trackRecordRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	start := values.Now()
	if req.RetentionStartDate != "" {
		parsed, err := values.ParseTime(req.RetentionStartDate)
		if err != nil {
			h.writeError(w, errors.NewValidationError("INVALID_START_DATE",
				"retention_start_date must be RFC 3339"))
			return
		}
		start = parsed
	}

	tracked, err := h.services.Retention.TrackRecord(r.Context(), claims.CompanyID,
		retention.DataCategory(req.DataCategory), req.DataPath, start)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tracked)
}

func (h *Handler) handleRunCleanup(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	result, err := h.services.Retention.RunCleanup(r.Context(), claims.CompanyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRetentionStatistics(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	stats, err := h.services.Retention.Statistics(r.Context(), claims.CompanyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}
