package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/audit"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
)

func auditFilterFromQuery(r *http.Request) (auditsvc.Filter, error) {
	q := r.URL.Query()
	var f auditsvc.Filter

	if v := q.Get("start_date"); v != "" {
		t, err := values.ParseTime(v)
		if err != nil {
			return f, errors.NewValidationError("INVALID_QUERY", "start_date must be RFC 3339")
		}
		f.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := values.ParseTime(v)
		if err != nil {
			return f, errors.NewValidationError("INVALID_QUERY", "end_date must be RFC 3339")
		}
		f.EndDate = &t
	}
	if v := q.Get("action"); v != "" {
		action := audit.Action(v)
		if err := audit.ValidateAction(action); err != nil {
			return f, err
		}
		f.Action = action
	}
	f.UserID = q.Get("user_id")
	f.ResourceType = q.Get("resource_type")
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return f, errors.NewValidationError("INVALID_QUERY", "limit must be a non-negative integer")
		}
		f.Limit = limit
	}
	return f, nil
}

func (h *Handler) handleGetAuditLogs(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	f, err := auditFilterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	entries, err := h.services.Audit.GetLogs(r.Context(), claims.CompanyID, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handler) handleExportAuditLogs(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	format := auditsvc.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = auditsvc.FormatJSON
	}

	f, err := auditFilterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data, err := h.services.Audit.ExportLogs(r.Context(), claims.UserID, claims.CompanyID, format, f)
	if err != nil {
		h.writeError(w, err)
		return
	}

	contentType := "application/json"
	if format == auditsvc.FormatCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=audit-export.%s", format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
