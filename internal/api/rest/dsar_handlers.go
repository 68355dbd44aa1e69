package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/dsar"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
)

type submitDSARRequest struct {
	SubjectUserID string `json:"subject_user_id"`
	SubjectName   string `json:"subject_name"`
	RequestType   string `json:"request_type" validate:"required"`
	Details       string `json:"details"`
}

func (h *Handler) handleSubmitDSAR(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req submitDSARRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	// Subjects filing their own request need not repeat their user ID
	subjectID := req.SubjectUserID
	if subjectID == "" {
		subjectID = claims.UserID
	}

	request, err := h.services.DSAR.SubmitRequest(r.Context(), claims.CompanyID,
		subjectID, req.SubjectName, dsar.RequestType(req.RequestType), req.Details)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, request)
}

func (h *Handler) handleGetDSAR(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	request, err := h.services.DSAR.GetRequest(r.Context(), claims.CompanyID, chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	request, err := h.services.DSAR.VerifyIdentity(r.Context(), claims.CompanyID,
		chi.URLParam(r, "requestID"), claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleStartProcessing(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	request, err := h.services.DSAR.StartProcessing(r.Context(), claims.CompanyID,
		chi.URLParam(r, "requestID"), claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

type extensionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleRequestExtension(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req extensionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	request, err := h.services.DSAR.RequestExtension(r.Context(), claims.CompanyID,
		chi.URLParam(r, "requestID"), req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

type completeDSARRequest struct {
	ResponseSummary string `json:"response_summary" validate:"required"`
}

// handleCompleteDSAR dispatches to the completion method matching the
// request's type, so the per-type validation still applies.
func (h *Handler) handleCompleteDSAR(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	requestID := chi.URLParam(r, "requestID")

	var req completeDSARRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	existing, err := h.services.DSAR.GetRequest(r.Context(), claims.CompanyID, requestID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var request *dsar.Request
	switch existing.RequestType {
	case dsar.TypeAccess:
		request, err = h.services.DSAR.CompleteAccessRequest(r.Context(), claims.CompanyID,
			requestID, claims.UserID, req.ResponseSummary)
	case dsar.TypeRectification:
		request, err = h.services.DSAR.CompleteRectificationRequest(r.Context(), claims.CompanyID,
			requestID, claims.UserID, req.ResponseSummary)
	case dsar.TypeErasure:
		request, err = h.services.DSAR.CompleteErasureRequest(r.Context(), claims.CompanyID,
			requestID, claims.UserID, req.ResponseSummary)
	default:
		err = errors.NewValidationError("UNSUPPORTED_REQUEST_TYPE",
			"this request type has no completion workflow")
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

type rejectDSARRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleRejectDSAR(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req rejectDSARRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	request, err := h.services.DSAR.RejectRequest(r.Context(), claims.CompanyID,
		chi.URLParam(r, "requestID"), claims.UserID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleOverdueDSARs(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	requests, err := h.services.DSAR.GetOverdueRequests(r.Context(), claims.CompanyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}
