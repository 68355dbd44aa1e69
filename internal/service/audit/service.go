package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/audit"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	"github.com/ledgerline/payroll-compliance-backend/internal/metrics"
)

// Service writes and queries the immutable audit trail. Callers on primary
// flows treat Log failures as best-effort; only the store write itself can
// fail a call.
type Service struct {
	store         docstore.Store
	logger        *zap.Logger
	retentionDays int
}

// NewService creates the audit trail service
func NewService(store docstore.Store, logger *zap.Logger, retentionDays int) *Service {
	if retentionDays <= 0 {
		retentionDays = audit.DefaultRetentionDays
	}
	return &Service{
		store:         store,
		logger:        logger.Named("audit"),
		retentionDays: retentionDays,
	}
}

func basePath(companyID string) string {
	return "compliance/audit/" + companyID
}

// Log builds a masked entry and appends it to the company's trail
func (s *Service) Log(ctx context.Context, action audit.Action, userID, companyID string, opts audit.EntryOptions) (*audit.Entry, error) {
	if opts.RetentionDays == 0 {
		opts.RetentionDays = s.retentionDays
	}
	entry, err := audit.NewEntry(action, userID, companyID, opts)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Push(ctx, basePath(companyID), entry); err != nil {
		s.logger.Error("audit write failed",
			zap.String("action", action.String()),
			zap.String("company_id", companyID),
			zap.Error(err))
		return nil, errors.NewInternalError("failed to write audit entry").WithCause(err)
	}

	metrics.AuditEntriesWritten.WithLabelValues(action.Category()).Inc()
	return entry, nil
}

// Filter narrows a trail query. Timestamp bounds are applied by the store
// range query; the remaining predicates are applied in memory.
type Filter struct {
	StartDate    *values.Time
	EndDate      *values.Time
	Action       audit.Action
	UserID       string
	ResourceType string
	Limit        int
}

// GetLogs returns matching entries, most recent first
func (s *Service) GetLogs(ctx context.Context, companyID string, f Filter) ([]*audit.Entry, error) {
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}

	opts := docstore.QueryOptions{OrderBy: "timestamp"}
	if f.StartDate != nil {
		opts.StartAt = f.StartDate.Key()
	}
	if f.EndDate != nil {
		opts.EndAt = f.EndDate.Key()
	}

	snaps, err := s.store.Query(ctx, basePath(companyID), opts)
	if err != nil {
		return nil, errors.NewInternalError("failed to query audit trail").WithCause(err)
	}

	entries := make([]*audit.Entry, 0, len(snaps))
	for _, snap := range snaps {
		var e audit.Entry
		if err := snap.Decode(&e); err != nil {
			s.logger.Warn("skipping undecodable audit entry", zap.String("key", snap.Key), zap.Error(err))
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		entries = append(entries, &e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[:f.Limit]
	}
	return entries, nil
}

// ExportFormat selects the serialization for ExportLogs
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ExportLogs serializes matching entries. Every export is itself recorded in
// the trail before the data leaves the service.
func (s *Service) ExportLogs(ctx context.Context, userID, companyID string, format ExportFormat, f Filter) ([]byte, error) {
	entries, err := s.GetLogs(ctx, companyID, f)
	if err != nil {
		return nil, err
	}

	if _, err := s.Log(ctx, audit.ActionDataExport, userID, companyID, audit.EntryOptions{
		ResourceType: "audit_log",
		Description:  fmt.Sprintf("exported %d audit entries as %s", len(entries), format),
	}); err != nil {
		s.logger.Warn("failed to record export event", zap.Error(err))
	}

	switch format {
	case FormatJSON:
		return json.MarshalIndent(entries, "", "  ")
	case FormatCSV:
		return marshalCSV(entries)
	default:
		return nil, errors.NewValidationError("INVALID_EXPORT_FORMAT",
			fmt.Sprintf("unsupported export format: %s", format))
	}
}

func marshalCSV(entries []*audit.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "timestamp", "action", "user_id", "company_id",
		"resource_type", "resource_id", "description", "success", "error_code"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, e := range entries {
		row := []string{
			e.ID,
			e.Timestamp.Key(),
			e.Action.String(),
			e.UserID,
			e.CompanyID,
			e.ResourceType,
			e.ResourceID,
			e.Description,
			fmt.Sprintf("%t", e.Success),
			e.ErrorCode,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CleanupResult summarizes one expired-entry sweep
type CleanupResult struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// CleanupExpiredLogs deletes entries past their retention expiry, then writes
// one summary entry. Per-entry delete failures are counted, not fatal.
func (s *Service) CleanupExpiredLogs(ctx context.Context, companyID string) (*CleanupResult, error) {
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}

	snaps, err := s.store.Query(ctx, basePath(companyID), docstore.QueryOptions{})
	if err != nil {
		return nil, errors.NewInternalError("failed to scan audit trail").WithCause(err)
	}

	now := values.Now()
	result := &CleanupResult{Scanned: len(snaps)}
	for _, snap := range snaps {
		var e audit.Entry
		if err := snap.Decode(&e); err != nil {
			result.Failed++
			continue
		}
		if !e.IsExpired(now) {
			continue
		}
		if err := s.store.Remove(ctx, basePath(companyID)+"/"+snap.Key); err != nil {
			s.logger.Warn("failed to delete expired audit entry",
				zap.String("key", snap.Key), zap.Error(err))
			result.Failed++
			continue
		}
		result.Deleted++
	}

	if result.Deleted > 0 {
		if _, err := s.Log(ctx, audit.ActionDataDelete, "system", companyID, audit.EntryOptions{
			ResourceType: "audit_log",
			Description:  fmt.Sprintf("retention cleanup removed %d expired audit entries", result.Deleted),
		}); err != nil {
			s.logger.Warn("failed to record cleanup summary", zap.Error(err))
		}
	}

	return result, nil
}
