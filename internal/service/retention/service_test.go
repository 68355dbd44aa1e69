package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/retention"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
)

func newTestService(t *testing.T) (*Service, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	logger := zaptest.NewLogger(t)
	return NewService(store, auditsvc.NewService(store, logger, 0), logger), store
}

func TestInitializePolicies(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.InitializePolicies(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, created, len(retention.DefaultPolicies("c1")))

	// Second initialization creates nothing new
	again, err := svc.InitializePolicies(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestUpsertPolicy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.UpsertPolicy(ctx, "c1", retention.CategoryTimesheets, 2, 0, true, true, false)
	require.NoError(t, err)

	// Upsert replaces in place, keeping the ID
	updated, err := svc.UpsertPolicy(ctx, "c1", retention.CategoryTimesheets, 3, 6, true, false, true)
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, 3, updated.RetentionPeriodYears)
	assert.Equal(t, 6, updated.RetentionPeriodMonths)
	assert.False(t, updated.AutoDelete)
	assert.True(t, updated.AutoAnonymize)

	policies, err := svc.Policies(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, policies, 1)
}

func TestTrackRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Tracking without a policy fails
	_, err := svc.TrackRecord(ctx, "c1", retention.CategoryPayrollRecords,
		"payroll/c1/run-1", values.Now())
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.UpsertPolicy(ctx, "c1", retention.CategoryPayrollRecords, 6, 0, true, false, false)
	require.NoError(t, err)

	start := values.NewTime(time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC))
	rec, err := svc.TrackRecord(ctx, "c1", retention.CategoryPayrollRecords,
		"payroll/c1/run-1", start)
	require.NoError(t, err)
	assert.True(t, rec.ExpiresAt.Equal(start.Add(6*365*24*time.Hour)))
}

// seedExpired writes a tracked record that is already past expiry
func seedExpired(t *testing.T, store *docstore.Memory, companyID, id string, category retention.DataCategory, dataPath string, exemption string) {
	t.Helper()
	now := values.Now()
	rec := &retention.TrackedRecord{
		ID:                 id,
		CompanyID:          companyID,
		DataCategory:       category,
		DataPath:           dataPath,
		RetentionStartDate: now.Add(-48 * time.Hour),
		ExpiresAt:          now.Add(-time.Hour),
		RetentionExemption: exemption,
		CreatedAt:          now,
	}
	require.NoError(t, store.Set(context.Background(), "compliance/retention/tracked/"+companyID+"/"+id, rec))
}

func TestRunCleanup(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// archive-only and archive+delete policies
	_, err := svc.UpsertPolicy(ctx, "c1", retention.CategoryPayrollRecords, 6, 0, true, false, false)
	require.NoError(t, err)
	_, err = svc.UpsertPolicy(ctx, "c1", retention.CategoryRecruitmentRecords, 0, 6, false, true, false)
	require.NoError(t, err)
	_, err = svc.UpsertPolicy(ctx, "c1", retention.CategoryHealthRecords, 3, 0, true, false, true)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "payroll/c1/run-1", map[string]string{"status": "approved"}))
	require.NoError(t, store.Set(ctx, "recruitment/c1/cand-1", map[string]string{"name": "x"}))
	require.NoError(t, store.Set(ctx, "health/c1/fit-1", map[string]string{"note": "x"}))

	seedExpired(t, store, "c1", "t1", retention.CategoryPayrollRecords, "payroll/c1/run-1", "")
	seedExpired(t, store, "c1", "t2", retention.CategoryRecruitmentRecords, "recruitment/c1/cand-1", "")
	seedExpired(t, store, "c1", "t3", retention.CategoryHealthRecords, "health/c1/fit-1", "")
	seedExpired(t, store, "c1", "t4", retention.CategoryPayrollRecords, "payroll/c1/run-2", "litigation hold")
	// No policy for this category, so it is skipped
	seedExpired(t, store, "c1", "t5", retention.CategoryPensionRecords, "pension/c1/p-1", "")

	result, err := svc.RunCleanup(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 2, result.Archived)   // payroll + health
	assert.Equal(t, 1, result.Deleted)    // recruitment
	assert.Equal(t, 1, result.Anonymized) // health
	assert.Equal(t, 2, result.Skipped)    // exemption + missing policy

	// Deleted data path is gone; archived one remains
	var doc map[string]string
	err = store.Get(ctx, "recruitment/c1/cand-1", &doc)
	assert.True(t, docstore.IsNotFound(err))
	assert.NoError(t, store.Get(ctx, "payroll/c1/run-1", &doc))
}

func TestRunCleanup_Idempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertPolicy(ctx, "c1", retention.CategoryRecruitmentRecords, 0, 6, true, true, false)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "recruitment/c1/cand-1", map[string]string{"name": "x"}))
	seedExpired(t, store, "c1", "t1", retention.CategoryRecruitmentRecords, "recruitment/c1/cand-1", "")

	first, err := svc.RunCleanup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Archived)
	assert.Equal(t, 1, first.Deleted)

	// Rerun: flags suppress any further action
	second, err := svc.RunCleanup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Archived)
	assert.Equal(t, 0, second.Deleted)
	assert.Equal(t, 0, second.Anonymized)
}

func TestRunCleanup_NotYetExpired(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertPolicy(ctx, "c1", retention.CategoryPayrollRecords, 6, 0, true, false, false)
	require.NoError(t, err)
	_, err = svc.TrackRecord(ctx, "c1", retention.CategoryPayrollRecords, "payroll/c1/run-1", values.Now())
	require.NoError(t, err)

	result, err := svc.RunCleanup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
}

func TestStatistics(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertPolicy(ctx, "c1", retention.CategoryPayrollRecords, 6, 0, true, false, false)
	require.NoError(t, err)

	// One expired, one expiring soon, one far out
	seedExpired(t, store, "c1", "t1", retention.CategoryPayrollRecords, "payroll/c1/a", "")
	soon := &retention.TrackedRecord{
		ID: "t2", CompanyID: "c1", DataCategory: retention.CategoryPayrollRecords,
		DataPath: "payroll/c1/b", ExpiresAt: values.Now().Add(10 * 24 * time.Hour),
	}
	require.NoError(t, store.Set(ctx, "compliance/retention/tracked/c1/t2", soon))
	far := &retention.TrackedRecord{
		ID: "t3", CompanyID: "c1", DataCategory: retention.CategoryPayrollRecords,
		DataPath: "payroll/c1/c", ExpiresAt: values.Now().Add(400 * 24 * time.Hour),
	}
	require.NoError(t, store.Set(ctx, "compliance/retention/tracked/c1/t3", far))

	stats, err := svc.Statistics(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTracked)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 1, stats.ExpiringIn30d)
	assert.Equal(t, 0, stats.ExpiringIn90d)
	assert.Equal(t, 3, stats.ByCategory[retention.CategoryPayrollRecords])
}
