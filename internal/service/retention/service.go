package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/audit"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/retention"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	"github.com/ledgerline/payroll-compliance-backend/internal/metrics"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
)

// Service manages retention policies and runs the cleanup sweep
type Service struct {
	store   docstore.Store
	auditor *auditsvc.Service
	logger  *zap.Logger
}

// NewService creates the retention service
func NewService(store docstore.Store, auditor *auditsvc.Service, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		auditor: auditor,
		logger:  logger.Named("retention"),
	}
}

func policyPath(companyID string) string {
	return "compliance/retention/policies/" + companyID
}

func trackedPath(companyID string) string {
	return "compliance/retention/tracked/" + companyID
}

// InitializePolicies creates the default schedule for every category that has
// no policy yet. Existing policies are never overwritten.
func (s *Service) InitializePolicies(ctx context.Context, companyID string) ([]*retention.Policy, error) {
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}

	existing, err := s.Policies(ctx, companyID)
	if err != nil {
		return nil, err
	}
	have := make(map[retention.DataCategory]bool, len(existing))
	for _, p := range existing {
		have[p.DataCategory] = true
	}

	created := make([]*retention.Policy, 0)
	for _, p := range retention.DefaultPolicies(companyID) {
		if have[p.DataCategory] {
			continue
		}
		if err := s.store.Set(ctx, policyPath(companyID)+"/"+p.ID, p); err != nil {
			return nil, errors.NewInternalError("failed to store retention policy").WithCause(err)
		}
		created = append(created, p)
	}

	s.logger.Info("retention policies initialized",
		zap.String("company_id", companyID),
		zap.Int("created", len(created)),
		zap.Int("existing", len(existing)))
	return created, nil
}

// Policies returns every retention policy for the company
func (s *Service) Policies(ctx context.Context, companyID string) ([]*retention.Policy, error) {
	snaps, err := s.store.Query(ctx, policyPath(companyID), docstore.QueryOptions{})
	if err != nil {
		return nil, errors.NewInternalError("failed to query retention policies").WithCause(err)
	}

	policies := make([]*retention.Policy, 0, len(snaps))
	for _, snap := range snaps {
		var p retention.Policy
		if err := snap.Decode(&p); err != nil {
			s.logger.Warn("skipping undecodable policy", zap.String("key", snap.Key), zap.Error(err))
			continue
		}
		policies = append(policies, &p)
	}
	return policies, nil
}

// ActivePolicy returns the active policy for the category, or ErrPolicyNotFound
func (s *Service) ActivePolicy(ctx context.Context, companyID string, category retention.DataCategory) (*retention.Policy, error) {
	policies, err := s.Policies(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		if p.DataCategory == category && p.IsActive {
			return p, nil
		}
	}
	return nil, errors.ErrPolicyNotFound
}

// UpsertPolicy updates the existing policy for (company, category) in place,
// or creates one when none exists.
func (s *Service) UpsertPolicy(ctx context.Context, companyID string, category retention.DataCategory, years, months int, autoArchive, autoDelete, autoAnonymize bool) (*retention.Policy, error) {
	policies, err := s.Policies(ctx, companyID)
	if err != nil {
		return nil, err
	}

	var target *retention.Policy
	for _, p := range policies {
		if p.DataCategory == category {
			target = p
			break
		}
	}

	if target == nil {
		target, err = retention.NewPolicy(companyID, category, years, months)
		if err != nil {
			return nil, err
		}
	} else {
		if _, err := values.NewRetentionPeriod(years, months); err != nil {
			return nil, err
		}
		target.RetentionPeriodYears = years
		target.RetentionPeriodMonths = months
		target.UpdatedAt = values.Now()
	}
	target.AutoArchive = autoArchive
	target.AutoDelete = autoDelete
	target.AutoAnonymize = autoAnonymize

	if err := s.store.Set(ctx, policyPath(companyID)+"/"+target.ID, target); err != nil {
		return nil, errors.NewInternalError("failed to store retention policy").WithCause(err)
	}

	s.logAudit(ctx, "system", companyID, fmt.Sprintf("retention policy for %s set to %dy%dm", category, years, months))
	return target, nil
}

// TrackRecord places a stored document under retention management
func (s *Service) TrackRecord(ctx context.Context, companyID string, category retention.DataCategory, dataPath string, start values.Time) (*retention.TrackedRecord, error) {
	policy, err := s.ActivePolicy(ctx, companyID, category)
	if err != nil {
		return nil, err
	}

	rec, err := retention.NewTrackedRecord(policy, dataPath, start)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, trackedPath(companyID)+"/"+rec.ID, rec); err != nil {
		return nil, errors.NewInternalError("failed to store tracked record").WithCause(err)
	}
	return rec, nil
}

// CleanupResult summarizes one retention sweep
type CleanupResult struct {
	Processed  int `json:"processed"`
	Archived   int `json:"archived"`
	Deleted    int `json:"deleted"`
	Anonymized int `json:"anonymized"`
	Skipped    int `json:"skipped"`
}

// RunCleanup sweeps expired tracked records. For each: exempt or policy-less
// records are skipped; archive, then independently delete or anonymize, each
// guarded by its idempotent flag so reruns take no further action. Deletion
// also removes the referenced data path. A single record's failure is counted
// as skipped and does not abort the sweep.
func (s *Service) RunCleanup(ctx context.Context, companyID string) (*CleanupResult, error) {
	if companyID == "" {
		return nil, errors.NewValidationError("MISSING_COMPANY_ID", "company ID is required")
	}

	snaps, err := s.store.Query(ctx, trackedPath(companyID), docstore.QueryOptions{})
	if err != nil {
		return nil, errors.NewInternalError("failed to scan tracked records").WithCause(err)
	}

	policies, err := s.Policies(ctx, companyID)
	if err != nil {
		return nil, err
	}
	active := make(map[retention.DataCategory]*retention.Policy, len(policies))
	for _, p := range policies {
		if p.IsActive {
			active[p.DataCategory] = p
		}
	}

	now := values.Now()
	result := &CleanupResult{}
	for _, snap := range snaps {
		var rec retention.TrackedRecord
		if err := snap.Decode(&rec); err != nil {
			result.Skipped++
			continue
		}
		if !rec.IsExpired(now) {
			continue
		}
		result.Processed++

		policy, ok := active[rec.DataCategory]
		if !ok || rec.IsExempt() {
			result.Skipped++
			continue
		}

		if err := s.applyCleanup(ctx, companyID, snap.Key, &rec, policy, now, result); err != nil {
			s.logger.Warn("cleanup failed for record",
				zap.String("record_id", rec.ID),
				zap.String("data_path", rec.DataPath),
				zap.Error(err))
			result.Skipped++
		}
	}

	if s.auditor != nil && (result.Archived > 0 || result.Deleted > 0 || result.Anonymized > 0) {
		if _, err := s.auditor.Log(ctx, audit.ActionRetentionCleanup, "system", companyID, audit.EntryOptions{
			ResourceType: "retention",
			Description: fmt.Sprintf("retention sweep: %d archived, %d deleted, %d anonymized, %d skipped",
				result.Archived, result.Deleted, result.Anonymized, result.Skipped),
		}); err != nil {
			s.logger.Warn("failed to record sweep summary", zap.Error(err))
		}
	}

	return result, nil
}

func (s *Service) applyCleanup(ctx context.Context, companyID, key string, rec *retention.TrackedRecord, policy *retention.Policy, now values.Time, result *CleanupResult) error {
	recPath := trackedPath(companyID) + "/" + key

	if policy.AutoArchive && !rec.IsArchived {
		if err := s.store.Update(ctx, recPath, map[string]interface{}{
			"is_archived": true,
			"archived_at": now.Key(),
		}); err != nil {
			return err
		}
		rec.IsArchived = true
		result.Archived++
		metrics.RetentionSweepActions.WithLabelValues("archive").Inc()
	}

	if policy.AutoDelete && !rec.IsDeleted {
		// Irreversible: the tracked data itself goes too
		if err := s.store.Remove(ctx, rec.DataPath); err != nil {
			return err
		}
		if err := s.store.Update(ctx, recPath, map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now.Key(),
		}); err != nil {
			return err
		}
		rec.IsDeleted = true
		result.Deleted++
		metrics.RetentionSweepActions.WithLabelValues("delete").Inc()
	} else if policy.AutoAnonymize && !rec.IsAnonymized {
		if err := s.store.Update(ctx, recPath, map[string]interface{}{
			"is_anonymized": true,
			"anonymized_at": now.Key(),
		}); err != nil {
			return err
		}
		rec.IsAnonymized = true
		result.Anonymized++
		metrics.RetentionSweepActions.WithLabelValues("anonymize").Inc()
	}

	return nil
}

// Statistics summarizes the retention position for dashboards
type Statistics struct {
	TotalTracked    int                          `json:"total_tracked"`
	Archived        int                          `json:"archived"`
	Deleted         int                          `json:"deleted"`
	Anonymized      int                          `json:"anonymized"`
	Expired         int                          `json:"expired"`
	ExpiringIn30d   int                          `json:"expiring_in_30d"`
	ExpiringIn90d   int                          `json:"expiring_in_90d"`
	ByCategory      map[retention.DataCategory]int `json:"by_category"`
}

// Statistics scans every tracked record and buckets it
func (s *Service) Statistics(ctx context.Context, companyID string) (*Statistics, error) {
	snaps, err := s.store.Query(ctx, trackedPath(companyID), docstore.QueryOptions{})
	if err != nil {
		return nil, errors.NewInternalError("failed to scan tracked records").WithCause(err)
	}

	now := values.Now()
	in30 := now.Add(30 * 24 * time.Hour)
	in90 := now.Add(90 * 24 * time.Hour)

	stats := &Statistics{ByCategory: make(map[retention.DataCategory]int)}
	for _, snap := range snaps {
		var rec retention.TrackedRecord
		if err := snap.Decode(&rec); err != nil {
			continue
		}
		stats.TotalTracked++
		stats.ByCategory[rec.DataCategory]++
		if rec.IsArchived {
			stats.Archived++
		}
		if rec.IsDeleted {
			stats.Deleted++
		}
		if rec.IsAnonymized {
			stats.Anonymized++
		}
		switch {
		case rec.IsExpired(now):
			stats.Expired++
		case !rec.ExpiresAt.After(in30):
			stats.ExpiringIn30d++
		case !rec.ExpiresAt.After(in90):
			stats.ExpiringIn90d++
		}
	}
	return stats, nil
}

func (s *Service) logAudit(ctx context.Context, userID, companyID, description string) {
	if s.auditor == nil {
		return
	}
	if _, err := s.auditor.Log(ctx, audit.ActionSettingsChange, userID, companyID, audit.EntryOptions{
		ResourceType: "retention",
		Description:  description,
	}); err != nil {
		s.logger.Warn("audit logging failed", zap.Error(err))
	}
}
