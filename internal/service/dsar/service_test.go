package dsar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/dsar"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
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

func TestSubmitRequest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.SubmitRequest(ctx, "c1", "u1", "Jo Smith", dsar.TypeAccess, "everything you hold")
	require.NoError(t, err)

	assert.Equal(t, dsar.StatusPending, req.Status)
	assert.True(t, req.DueDate.Equal(req.ReceivedAt.Add(dsar.ResponseWindow)))

	got, err := svc.GetRequest(ctx, "c1", req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
}

func TestLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.SubmitRequest(ctx, "c1", "u1", "", dsar.TypeAccess, "")
	require.NoError(t, err)

	// Processing before verification fails
	_, err = svc.StartProcessing(ctx, "c1", req.ID, "dpo")
	assert.Error(t, err)

	verified, err := svc.VerifyIdentity(ctx, "c1", req.ID, "dpo")
	require.NoError(t, err)
	assert.True(t, verified.IdentityVerified)
	assert.Equal(t, dsar.StatusIdentityVerification, verified.Status)

	started, err := svc.StartProcessing(ctx, "c1", req.ID, "dpo")
	require.NoError(t, err)
	assert.Equal(t, dsar.StatusInProgress, started.Status)
	assert.Equal(t, "dpo", started.AssignedTo)

	done, err := svc.CompleteAccessRequest(ctx, "c1", req.ID, "dpo", "export provided")
	require.NoError(t, err)
	assert.Equal(t, dsar.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	// Completed requests are closed to further mutation
	_, err = svc.CompleteAccessRequest(ctx, "c1", req.ID, "dpo", "again")
	assert.True(t, errors.IsConflict(err))
	_, err = svc.RejectRequest(ctx, "c1", req.ID, "dpo", "late")
	assert.True(t, errors.IsConflict(err))
}

func TestRequestExtension_OnlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.SubmitRequest(ctx, "c1", "u1", "", dsar.TypeErasure, "")
	require.NoError(t, err)

	extended, err := svc.RequestExtension(ctx, "c1", req.ID, "complex multi-entity records")
	require.NoError(t, err)
	assert.Equal(t, dsar.StatusExtended, extended.Status)
	require.NotNil(t, extended.ExtendedDueDate)
	assert.True(t, extended.ExtendedDueDate.Equal(req.DueDate.Add(dsar.ExtensionWindow)))

	_, err = svc.RequestExtension(ctx, "c1", req.ID, "still complex")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestComplete_WrongType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.SubmitRequest(ctx, "c1", "u1", "", dsar.TypeErasure, "")
	require.NoError(t, err)

	_, err = svc.CompleteAccessRequest(ctx, "c1", req.ID, "dpo", "summary")
	assert.True(t, errors.IsValidation(err))
	_, err = svc.CompleteRectificationRequest(ctx, "c1", req.ID, "dpo", "summary")
	assert.True(t, errors.IsValidation(err))

	done, err := svc.CompleteErasureRequest(ctx, "c1", req.ID, "dpo", "records purged")
	require.NoError(t, err)
	assert.Equal(t, dsar.StatusCompleted, done.Status)
}

func TestRejectRequest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.SubmitRequest(ctx, "c1", "u1", "", dsar.TypeObjection, "")
	require.NoError(t, err)

	_, err = svc.RejectRequest(ctx, "c1", req.ID, "dpo", "")
	assert.Error(t, err)

	rejected, err := svc.RejectRequest(ctx, "c1", req.ID, "dpo", "manifestly unfounded")
	require.NoError(t, err)
	assert.Equal(t, dsar.StatusRejected, rejected.Status)
	assert.Equal(t, "manifestly unfounded", rejected.RejectionReason)
}

func TestGetOverdueRequests(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Current request, not overdue
	_, err := svc.SubmitRequest(ctx, "c1", "u1", "", dsar.TypeAccess, "")
	require.NoError(t, err)

	// Seeded request past its deadline
	late, err := dsar.NewRequest("c1", "u2", "", dsar.TypeAccess, "")
	require.NoError(t, err)
	late.ReceivedAt = values.NewTime(time.Now().Add(-40 * 24 * time.Hour))
	late.DueDate = late.ReceivedAt.Add(dsar.ResponseWindow)
	require.NoError(t, store.Set(ctx, "compliance/dsar/c1/"+late.ID, late))

	// Completed overdue request does not count
	closed, err := dsar.NewRequest("c1", "u3", "", dsar.TypeAccess, "")
	require.NoError(t, err)
	closed.ReceivedAt = late.ReceivedAt
	closed.DueDate = late.DueDate
	closed.Status = dsar.StatusCompleted
	require.NoError(t, store.Set(ctx, "compliance/dsar/c1/"+closed.ID, closed))

	overdue, err := svc.GetOverdueRequests(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
}

func TestGetRequest_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetRequest(context.Background(), "c1", "missing")
	assert.True(t, errors.IsNotFound(err))
}
