package hmrc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/payroll"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

// SubmissionResult is the outcome reported by the HMRC gateway
type SubmissionResult struct {
	Success      bool        `json:"success"`
	SubmissionID string      `json:"submission_id,omitempty"`
	SubmittedAt  values.Time `json:"submitted_at"`
	ResponseBody string      `json:"response_body,omitempty"`
	Errors       []string    `json:"errors,omitempty"`
}

// Client is the boundary to the HMRC transaction engine. The RTI wire
// protocol itself lives behind this interface; the orchestration layer only
// sees payloads and results.
type Client interface {
	SubmitFPS(ctx context.Context, sub *payroll.FPSSubmission, settings *Settings) (*SubmissionResult, error)
	SubmitEPS(ctx context.Context, sub *payroll.EPSSubmission, settings *Settings) (*SubmissionResult, error)
}

// HTTPClient is a thin JSON-over-HTTP client for a gateway relay service
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates the gateway client
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("hmrc_client"),
	}
}

var _ Client = (*HTTPClient)(nil)

// SubmitFPS posts a Full Payment Submission to the gateway
func (c *HTTPClient) SubmitFPS(ctx context.Context, sub *payroll.FPSSubmission, settings *Settings) (*SubmissionResult, error) {
	return c.post(ctx, "/rti/fps", sub, settings)
}

// SubmitEPS posts an Employer Payment Summary to the gateway
func (c *HTTPClient) SubmitEPS(ctx context.Context, sub *payroll.EPSSubmission, settings *Settings) (*SubmissionResult, error) {
	return c.post(ctx, "/rti/eps", sub, settings)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload interface{}, settings *Settings) (*SubmissionResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"payload":      payload,
		"sender_id":    settings.SenderID,
		"test_in_live": settings.TestInLive,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	var result SubmissionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding gateway response: %w", err)
	}
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = values.Now()
	}

	c.logger.Info("gateway submission completed",
		zap.String("path", path),
		zap.Bool("success", result.Success),
		zap.String("submission_id", result.SubmissionID))
	return &result, nil
}
