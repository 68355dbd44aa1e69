package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/specialcategory"
)

type documentSpecialCategoryRequest struct {
	Category           string `json:"category" validate:"required"`
	Article9Condition  string `json:"article9_condition" validate:"required"`
	Schedule1Condition string `json:"schedule1_condition" validate:"required"`
	ProcessingPurpose  string `json:"processing_purpose" validate:"required"`
	DataSubjects       string `json:"data_subjects"`
	SecurityMeasures   string `json:"security_measures"`
	ConsentMechanism   string `json:"consent_mechanism"`
	WithdrawalProcess  string `json:"withdrawal_process"`
	PolicyDocumentRef  string `json:"policy_document_ref"`
}

func (h *Handler) handleDocumentSpecialCategory(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req documentSpecialCategoryRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.services.SpecialCategory.DocumentProcessing(r.Context(), claims.CompanyID,
		specialcategory.Category(req.Category),
		specialcategory.Article9Condition(req.Article9Condition),
		specialcategory.Schedule1Condition(req.Schedule1Condition),
		req.ProcessingPurpose, claims.UserID,
		specialcategory.RecordOptions{
			DataSubjects:      req.DataSubjects,
			SecurityMeasures:  req.SecurityMeasures,
			ConsentMechanism:  req.ConsentMechanism,
			WithdrawalProcess: req.WithdrawalProcess,
			PolicyDocumentRef: req.PolicyDocumentRef,
		})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

type fromTemplateRequest struct {
	Template          string `json:"template" validate:"required"`
	PolicyDocumentRef string `json:"policy_document_ref"`
}

func (h *Handler) handleDocumentFromTemplate(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req fromTemplateRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.services.SpecialCategory.DocumentFromTemplate(r.Context(), claims.CompanyID,
		req.Template, claims.UserID, req.PolicyDocumentRef)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleListSpecialCategory(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	records, err := h.services.SpecialCategory.Records(r.Context(), claims.CompanyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func (h *Handler) handleValidateSpecialCategory(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	category := specialcategory.Category(r.URL.Query().Get("category"))

	valid, err := h.services.SpecialCategory.ValidateProcessing(r.Context(), claims.CompanyID, category)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
		"valid":    valid,
	})
}

func (h *Handler) handleConsentCheck(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	err := h.services.SpecialCategory.RecordConsentCheck(r.Context(), claims.CompanyID,
		chi.URLParam(r, "recordID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}
