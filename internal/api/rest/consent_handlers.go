package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/consent"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
)

type recordConsentRequest struct {
	Purpose       string `json:"purpose" validate:"required"`
	LawfulBasis   string `json:"lawful_basis" validate:"required"`
	ConsentGiven  bool   `json:"consent_given"`
	Method        string `json:"method"`
	PolicyVersion string `json:"policy_version"`
}

func (h *Handler) handleRecordConsent(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req recordConsentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.services.Consent.RecordConsent(r.Context(), claims.UserID, claims.CompanyID,
		consent.Purpose(req.Purpose), consent.LawfulBasis(req.LawfulBasis),
		req.ConsentGiven, consent.Method(req.Method), req.PolicyVersion)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	rec, err := h.services.Consent.WithdrawConsent(r.Context(),
		claims.UserID, claims.CompanyID, chi.URLParam(r, "recordID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleCheckConsent(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	purpose := consent.Purpose(r.URL.Query().Get("purpose"))
	if err := consent.ValidatePurpose(purpose); err != nil {
		h.writeError(w, err)
		return
	}

	granted, err := h.services.Consent.HasConsent(r.Context(), claims.UserID, claims.CompanyID, purpose)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"purpose": purpose,
		"granted": granted,
	})
}

func (h *Handler) handleLatestConsent(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	purpose := consent.Purpose(r.URL.Query().Get("purpose"))
	if err := consent.ValidatePurpose(purpose); err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.services.Consent.GetLatestConsent(r.Context(), claims.UserID, claims.CompanyID, purpose)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rec == nil {
		h.writeError(w, errors.ErrConsentNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

type lawfulBasisRequest struct {
	Purpose       string `json:"purpose" validate:"required"`
	LawfulBasis   string `json:"lawful_basis" validate:"required"`
	Justification string `json:"justification" validate:"required"`
}

func (h *Handler) handleDocumentLawfulBasis(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req lawfulBasisRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.services.Consent.DocumentLawfulBasis(r.Context(), claims.UserID, claims.CompanyID,
		consent.Purpose(req.Purpose), consent.LawfulBasis(req.LawfulBasis), req.Justification)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleDeleteUserConsents(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	// Legal obligation records survive erasure by default
	preserve := true
	if v := r.URL.Query().Get("preserve_legal_obligation"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, errors.NewValidationError("INVALID_QUERY",
				"preserve_legal_obligation must be a boolean"))
			return
		}
		preserve = parsed
	}

	result, err := h.services.Consent.DeleteUserConsents(r.Context(),
		chi.URLParam(r, "userID"), claims.CompanyID, preserve)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
