package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/breach"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

type reportBreachRequest struct {
	Title                    string   `json:"title" validate:"required"`
	Description              string   `json:"description" validate:"required"`
	Severity                 string   `json:"severity" validate:"required"`
	Risk                     string   `json:"risk" validate:"required"`
	DataCategories           []string `json:"data_categories" validate:"required,min=1"`
	DetectedAt               string   `json:"detected_at"`
	Consequences             []string `json:"consequences"`
	EstimatedRecordsAffected int      `json:"estimated_records_affected"`
	AffectedUserIDs          []string `json:"affected_user_ids"`
}

func (h *Handler) handleReportBreach(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req reportBreachRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	opts := breach.IncidentOptions{
		Consequences:             req.Consequences,
		EstimatedRecordsAffected: req.EstimatedRecordsAffected,
		AffectedUserIDs:          req.AffectedUserIDs,
	}
	if req.DetectedAt != "" {
		detected, err := values.ParseTime(req.DetectedAt)
		if err != nil {
			h.writeError(w, errors.NewValidationError("INVALID_DETECTED_AT",
				"detected_at must be RFC 3339"))
			return
		}
		opts.DetectedAt = &detected
	}

	incident, err := h.services.Breach.ReportBreach(r.Context(), claims.CompanyID,
		req.Title, req.Description, claims.UserID,
		breach.Severity(req.Severity), breach.Risk(req.Risk), req.DataCategories, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, incident)
}

func (h *Handler) handleGetBreach(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	incident, err := h.services.Breach.GetBreach(r.Context(), claims.CompanyID, chi.URLParam(r, "breachID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, incident)
}

type updateBreachStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) handleUpdateBreachStatus(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req updateBreachStatusRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	incident, err := h.services.Breach.UpdateStatus(r.Context(), claims.CompanyID,
		chi.URLParam(r, "breachID"), breach.Status(req.Status), claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, incident)
}

type icoNotificationRequest struct {
	ICOReference string `json:"ico_reference"`
}

func (h *Handler) handleICONotification(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req icoNotificationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	err := h.services.Breach.RecordICONotification(r.Context(), claims.CompanyID,
		chi.URLParam(r, "breachID"), req.ICOReference, claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleHMRCNotification(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	err := h.services.Breach.RecordHMRCNotification(r.Context(), claims.CompanyID,
		chi.URLParam(r, "breachID"), claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleUserNotification(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	err := h.services.Breach.RecordUserNotification(r.Context(), claims.CompanyID,
		chi.URLParam(r, "breachID"), claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

type remediationRequest struct {
	Action string `json:"action" validate:"required"`
}

func (h *Handler) handleAddRemediation(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req remediationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	err := h.services.Breach.AddRemediationAction(r.Context(), claims.CompanyID,
		chi.URLParam(r, "breachID"), req.Action, claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleUrgentBreaches(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	incidents, err := h.services.Breach.GetUrgentBreaches(r.Context(), claims.CompanyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"breaches": incidents})
}

func (h *Handler) handleOverdueBreaches(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	incidents, err := h.services.Breach.GetOverdueBreaches(r.Context(), claims.CompanyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"breaches": incidents})
}

type reportIncidentRequest struct {
	Type                 string `json:"type" validate:"required"`
	Title                string `json:"title" validate:"required"`
	Description          string `json:"description" validate:"required"`
	Severity             string `json:"severity" validate:"required"`
	PersonalDataInvolved bool   `json:"personal_data_involved"`
}

func (h *Handler) handleReportIncident(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req reportIncidentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	incident, err := h.services.Breach.ReportSecurityIncident(r.Context(), claims.CompanyID,
		breach.IncidentType(req.Type), req.Title, req.Description, claims.UserID,
		breach.Severity(req.Severity), req.PersonalDataInvolved)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, incident)
}
