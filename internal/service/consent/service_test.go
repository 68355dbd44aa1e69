package consent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/audit"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/consent"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/infrastructure/docstore"
	auditsvc "github.com/ledgerline/payroll-compliance-backend/internal/service/audit"
)

func newTestService(t *testing.T) (*Service, *auditsvc.Service, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	logger := zaptest.NewLogger(t)
	auditor := auditsvc.NewService(store, logger, 0)
	return NewService(store, auditor, nil, logger), auditor, store
}

// tick guarantees the next record gets a strictly later millisecond timestamp
func tick() {
	time.Sleep(2 * time.Millisecond)
}

func TestRecordConsent(t *testing.T) {
	svc, auditor, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.RecordConsent(ctx, "u1", "c1", consent.PurposeMarketing,
		consent.BasisConsent, true, consent.MethodExplicitForm, "1.0")
	require.NoError(t, err)
	assert.True(t, rec.ConsentGiven)

	// The grant is mirrored into the audit trail
	logs, err := auditor.GetLogs(ctx, "c1", auditsvc.Filter{Action: audit.ActionConsentGiven})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestHasConsent_LatestWins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordConsent(ctx, "u1", "c1", consent.PurposeMarketing,
		consent.BasisConsent, true, consent.MethodExplicitForm, "1.0")
	require.NoError(t, err)
	tick()
	_, err = svc.RecordConsent(ctx, "u1", "c1", consent.PurposeMarketing,
		consent.BasisConsent, false, consent.MethodExplicitForm, "1.0")
	require.NoError(t, err)
	tick()
	last, err := svc.RecordConsent(ctx, "u1", "c1", consent.PurposeMarketing,
		consent.BasisConsent, true, consent.MethodExplicitForm, "1.1")
	require.NoError(t, err)

	granted, err := svc.HasConsent(ctx, "u1", "c1", consent.PurposeMarketing)
	require.NoError(t, err)
	assert.True(t, granted)

	latest, err := svc.GetLatestConsent(ctx, "u1", "c1", consent.PurposeMarketing)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, last.ID, latest.ID)
}

func TestWithdrawConsent_Supersession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.RecordConsent(ctx, "u1", "c1", consent.PurposeMarketing,
		consent.BasisConsent, true, consent.MethodExplicitForm, "1.0")
	require.NoError(t, err)

	granted, err := svc.HasConsent(ctx, "u1", "c1", consent.PurposeMarketing)
	require.NoError(t, err)
	require.True(t, granted)

	tick()
	withdrawn, err := svc.WithdrawConsent(ctx, "u1", "c1", rec.ID)
	require.NoError(t, err)
	assert.NotNil(t, withdrawn.WithdrawnTimestamp)
	assert.NotEmpty(t, withdrawn.WithdrawalRecordID)

	granted, err = svc.HasConsent(ctx, "u1", "c1", consent.PurposeMarketing)
	require.NoError(t, err)
	assert.False(t, granted)

	// A fresh grant supersedes the withdrawal
	tick()
	_, err = svc.RecordConsent(ctx, "u1", "c1", consent.PurposeMarketing,
		consent.BasisConsent, true, consent.MethodExplicitForm, "2.0")
	require.NoError(t, err)

	granted, err = svc.HasConsent(ctx, "u1", "c1", consent.PurposeMarketing)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestWithdrawConsent_Failures(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.WithdrawConsent(ctx, "u1", "c1", "missing")
	assert.True(t, errors.IsNotFound(err))

	rec, err := svc.RecordConsent(ctx, "u1", "c1", consent.PurposeMarketing,
		consent.BasisConsent, true, consent.MethodExplicitForm, "1.0")
	require.NoError(t, err)

	// Ownership check
	_, err = svc.WithdrawConsent(ctx, "intruder", "c1", rec.ID)
	assert.Error(t, err)

	// Double withdrawal conflicts
	tick()
	_, err = svc.WithdrawConsent(ctx, "u1", "c1", rec.ID)
	require.NoError(t, err)
	_, err = svc.WithdrawConsent(ctx, "u1", "c1", rec.ID)
	assert.True(t, errors.IsConflict(err))
}

func TestHasHMRCSubmissionBasis(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.HasHMRCSubmissionBasis(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Consent-based record is not enough for statutory submissions
	_, err = svc.RecordConsent(ctx, "u1", "c1", consent.PurposeHMRCSubmission,
		consent.BasisConsent, true, consent.MethodExplicitForm, "1.0")
	require.NoError(t, err)

	ok, err = svc.HasHMRCSubmissionBasis(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	tick()
	_, err = svc.DocumentLawfulBasis(ctx, "u1", "c1", consent.PurposeHMRCSubmission,
		consent.BasisLegalObligation, "RTI reporting required by the Income Tax (PAYE) Regulations")
	require.NoError(t, err)

	ok, err = svc.HasHMRCSubmissionBasis(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDocumentLawfulBasis_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.DocumentLawfulBasis(ctx, "u1", "c1", consent.PurposeHMRCSubmission,
		consent.BasisConsent, "justified")
	assert.Error(t, err)

	_, err = svc.DocumentLawfulBasis(ctx, "u1", "c1", consent.PurposeHMRCSubmission,
		consent.BasisLegalObligation, "")
	assert.Error(t, err)
}

func TestDeleteUserConsents(t *testing.T) {
	svc, auditor, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordConsent(ctx, "u1", "c1", consent.PurposeMarketing,
		consent.BasisConsent, true, consent.MethodExplicitForm, "1.0")
	require.NoError(t, err)
	tick()
	_, err = svc.DocumentLawfulBasis(ctx, "u1", "c1", consent.PurposeHMRCSubmission,
		consent.BasisLegalObligation, "statutory reporting")
	require.NoError(t, err)

	result, err := svc.DeleteUserConsents(ctx, "u1", "c1", true)
	require.NoError(t, err)
	assert.Len(t, result.Deleted, 1)
	assert.Len(t, result.Preserved, 1)

	// The legal obligation record survives
	latest, err := svc.GetLatestConsent(ctx, "u1", "c1", consent.PurposeHMRCSubmission)
	require.NoError(t, err)
	assert.NotNil(t, latest)

	gone, err := svc.GetLatestConsent(ctx, "u1", "c1", consent.PurposeMarketing)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// The deletion audit entry was written
	logs, err := auditor.GetLogs(ctx, "c1", auditsvc.Filter{Action: audit.ActionDataDelete})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestDeleteUserConsents_NoPreserve(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.DocumentLawfulBasis(ctx, "u1", "c1", consent.PurposeHMRCSubmission,
		consent.BasisLegalObligation, "statutory reporting")
	require.NoError(t, err)

	result, err := svc.DeleteUserConsents(ctx, "u1", "c1", false)
	require.NoError(t, err)
	assert.Len(t, result.Deleted, 1)
	assert.Empty(t, result.Preserved)
}
