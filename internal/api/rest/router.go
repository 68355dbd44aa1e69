package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/config"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
	breachsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/breach"
	consentsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/consent"
	dsarsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/dsar"
	hmrcsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/hmrc"
	retentionsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/retention"
	scsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/specialcategory"
)

// Services bundles everything the HTTP layer dispatches to
type Services struct {
	Audit           *auditsvc.Service
	Consent         *consentsvc.Service
	Retention       *retentionsvc.Service
	Breach          *breachsvc.Service
	DSAR            *dsarsvc.Service
	SpecialCategory *scsvc.Service
	HMRC            *hmrcsvc.Service
}

// Handler is the REST API surface
type Handler struct {
	services  Services
	validate  *validator.Validate
	limiter   *ipRateLimiter
	jwtSecret string
	version   string
	logger    *zap.Logger
}

// NewHandler creates the API handler
func NewHandler(services Services, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		services:  services,
		validate:  validator.New(),
		limiter:   newIPRateLimiter(cfg.Security.RateLimit.RequestsPerSecond, cfg.Security.RateLimit.BurstSize),
		jwtSecret: cfg.Security.JWTSecret,
		version:   cfg.Version,
		logger:    logger.Named("rest"),
	}
}

// Routes assembles the router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.Recoverer)
	r.Use(h.RequestLogger)
	r.Use(h.Metrics)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.RateLimit)
		r.Use(h.Authenticate)

		r.Route("/consent", func(r chi.Router) {
			r.Post("/", h.handleRecordConsent)
			r.Post("/{recordID}/withdraw", h.handleWithdrawConsent)
			r.Get("/check", h.handleCheckConsent)
			r.Get("/latest", h.handleLatestConsent)
			r.Post("/lawful-basis", h.handleDocumentLawfulBasis)
			r.Delete("/users/{userID}", h.handleDeleteUserConsents)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/logs", h.handleGetAuditLogs)
			r.Get("/export", h.handleExportAuditLogs)
		})

		r.Route("/retention", func(r chi.Router) {
			r.Get("/policies", h.handleGetPolicies)
			r.Post("/policies", h.handleUpsertPolicy)
			r.Post("/policies/defaults", h.handleInitializePolicies)
			r.Post("/track", h.handleTrackRecord)
			r.Post("/cleanup", h.handleRunCleanup)
			r.Get("/statistics", h.handleRetentionStatistics)
		})

		r.Route("/breaches", func(r chi.Router) {
			r.Post("/", h.handleReportBreach)
			r.Get("/urgent", h.handleUrgentBreaches)
			r.Get("/overdue", h.handleOverdueBreaches)
			r.Get("/{breachID}", h.handleGetBreach)
			r.Put("/{breachID}/status", h.handleUpdateBreachStatus)
			r.Post("/{breachID}/ico-notification", h.handleICONotification)
			r.Post("/{breachID}/hmrc-notification", h.handleHMRCNotification)
			r.Post("/{breachID}/user-notification", h.handleUserNotification)
			r.Post("/{breachID}/remediation", h.handleAddRemediation)
		})
		r.Post("/incidents", h.handleReportIncident)

		r.Route("/dsar", func(r chi.Router) {
			r.Post("/", h.handleSubmitDSAR)
			r.Get("/overdue", h.handleOverdueDSARs)
			r.Get("/{requestID}", h.handleGetDSAR)
			r.Post("/{requestID}/verify", h.handleVerifyIdentity)
			r.Post("/{requestID}/start", h.handleStartProcessing)
			r.Post("/{requestID}/extend", h.handleRequestExtension)
			r.Post("/{requestID}/complete", h.handleCompleteDSAR)
			r.Post("/{requestID}/reject", h.handleRejectDSAR)
		})

		r.Route("/special-category", func(r chi.Router) {
			r.Get("/", h.handleListSpecialCategory)
			r.Post("/", h.handleDocumentSpecialCategory)
			r.Post("/from-template", h.handleDocumentFromTemplate)
			r.Get("/validate", h.handleValidateSpecialCategory)
			r.Post("/{recordID}/consent-check", h.handleConsentCheck)
		})

		r.Route("/hmrc", func(r chi.Router) {
			r.Post("/fps", h.handleSubmitFPS)
			r.Post("/eps", h.handleSubmitEPS)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}
