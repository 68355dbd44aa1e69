package rest

import (
	"encoding/json"
	"net/http"

	goerrors "errors"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Type    string                 `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encoding failed", zap.Error(err))
	}
}

// writeError maps AppError values onto HTTP statuses. Internal causes are
// logged but never serialized to the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errors.GetStatusCode(err)

	var appErr *errors.AppError
	if !goerrors.As(err, &appErr) {
		appErr = errors.NewInternalError("internal server error")
	}
	if status >= 500 {
		h.logger.Error("request failed", zap.Error(err))
		// Do not leak store or upstream details
		appErr = errors.NewInternalError("internal server error")
	}

	h.writeJSON(w, status, errorResponse{Error: errorBody{
		Type:    string(appErr.Type),
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

func (h *Handler) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.NewValidationError("INVALID_BODY", "request body is not valid JSON")
	}
	if err := h.validate.Struct(v); err != nil {
		return errors.NewValidationError("INVALID_REQUEST", err.Error())
	}
	return nil
}
