package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/dsar"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/config"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
	breachsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/breach"
	consentsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/consent"
	dsarsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/dsar"
	hmrcsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/hmrc"
	retentionsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/retention"
	scsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/specialcategory"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := docstore.NewMemory()
	logger := zaptest.NewLogger(t)
	auditor := auditsvc.NewService(store, logger, 0)
	consents := consentsvc.NewService(store, auditor, nil, logger)

	services := Services{
		Audit:           auditor,
		Consent:         consents,
		Retention:       retentionsvc.NewService(store, auditor, logger),
		Breach:          breachsvc.NewService(store, auditor, logger),
		DSAR:            dsarsvc.NewService(store, auditor, logger),
		SpecialCategory: scsvc.NewService(store, auditor, logger),
		HMRC:            hmrcsvc.NewService(store, nil, consents, auditor, logger),
	}

	cfg := &config.Config{Version: "test"}
	cfg.Security.JWTSecret = testSecret
	cfg.Security.RateLimit.RequestsPerSecond = 1000
	cfg.Security.RateLimit.BurstSize = 1000

	return NewHandler(services, cfg, logger).Routes()
}

func testToken(t *testing.T, userID, companyID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:    userID,
		CompanyID: companyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/audit/logs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/audit/logs", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConsentRoundTrip(t *testing.T) {
	router := newTestRouter(t)
	token := testToken(t, "u1", "c1")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/consent", token, map[string]interface{}{
		"purpose":       "marketing",
		"lawful_basis":  "consent",
		"consent_given": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/v1/consent/check?purpose=marketing", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check struct {
		Granted bool `json:"granted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.True(t, check.Granted)

	// Unknown purpose is a validation error
	rec = doJSON(t, router, http.MethodGet, "/api/v1/consent/check?purpose=astrology", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDSARLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := testToken(t, "dpo", "c1")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/dsar", token, map[string]interface{}{
		"subject_user_id": "u9",
		"request_type":    "access",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created dsar.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/dsar/"+created.ID+"/verify", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/dsar/"+created.ID+"/start", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/dsar/"+created.ID+"/complete", token, map[string]interface{}{
		"response_summary": "export delivered",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var completed dsar.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, dsar.StatusCompleted, completed.Status)

	// Completing twice maps the conflict to 409
	rec = doJSON(t, router, http.MethodPost, "/api/v1/dsar/"+created.ID+"/complete", token, map[string]interface{}{
		"response_summary": "again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestNotFoundMapping(t *testing.T) {
	router := newTestRouter(t)
	token := testToken(t, "u1", "c1")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/breaches/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "RESOURCE_NOT_FOUND")
}

func TestRetentionEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := testToken(t, "admin", "c1")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/retention/policies/defaults", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/v1/retention/policies", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Policies []json.RawMessage `json:"policies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.NotEmpty(t, listed.Policies)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/retention/cleanup", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuditExportCSV(t *testing.T) {
	router := newTestRouter(t)
	token := testToken(t, "u1", "c1")

	// Seed one entry through the consent endpoint
	rec := doJSON(t, router, http.MethodPost, "/api/v1/consent", token, map[string]interface{}{
		"purpose":       "marketing",
		"lawful_basis":  "consent",
		"consent_given": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/audit/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "consent_given")
}
