package breach

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/breach"
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

func TestReportBreach(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inc, err := svc.ReportBreach(ctx, "c1", "payroll export emailed externally", "",
		"u1", breach.SeverityHigh, breach.RiskLikely, []string{"payroll records"}, breach.IncidentOptions{})
	require.NoError(t, err)

	assert.True(t, inc.RequiresICONotification)
	assert.True(t, inc.RequiresUserNotification)
	assert.True(t, inc.RequiresHMRCNotification)

	got, err := svc.GetBreach(ctx, "c1", inc.ID)
	require.NoError(t, err)
	assert.Equal(t, breach.StatusDetected, got.Status)
}

func TestGetBreach_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetBreach(context.Background(), "c1", "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inc, err := svc.ReportBreach(ctx, "c1", "t", "", "u1", breach.SeverityLow,
		breach.RiskUnlikely, []string{"contact details"}, breach.IncidentOptions{})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, "c1", inc.ID, breach.StatusInvestigating, "u2")
	require.NoError(t, err)
	assert.Equal(t, breach.StatusInvestigating, updated.Status)
	assert.Nil(t, updated.ResolvedAt)

	resolved, err := svc.UpdateStatus(ctx, "c1", inc.ID, breach.StatusResolved, "u2")
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, "u2", resolved.ResolvedBy)

	// Persisted state carries the resolution stamp
	got, err := svc.GetBreach(ctx, "c1", inc.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ResolvedAt)

	_, err = svc.UpdateStatus(ctx, "c1", inc.ID, "eaten_by_dog", "u2")
	assert.Error(t, err)
}

func TestUrgentAndOverdueBreaches(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Inside the 72h window
	urgent, err := svc.ReportBreach(ctx, "c1", "urgent", "", "u1", breach.SeverityCritical,
		breach.RiskLikely, []string{"payroll records"}, breach.IncidentOptions{})
	require.NoError(t, err)

	// Past the window: seeded with an old detection time
	old := values.NewTime(time.Now().Add(-100 * time.Hour))
	overdueInc, err := breach.NewIncident("c1", "overdue", "", "u1", breach.SeverityCritical,
		breach.RiskLikely, []string{"payroll records"}, breach.IncidentOptions{DetectedAt: &old})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "compliance/breaches/c1/"+overdueInc.ID, overdueInc))

	// Not reportable at all
	_, err = svc.ReportBreach(ctx, "c1", "minor", "", "u1", breach.SeverityLow,
		breach.RiskUnlikely, []string{"contact details"}, breach.IncidentOptions{})
	require.NoError(t, err)

	urgentList, err := svc.GetUrgentBreaches(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, urgentList, 1)
	assert.Equal(t, urgent.ID, urgentList[0].ID)

	overdueList, err := svc.GetOverdueBreaches(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, overdueList, 1)
	assert.Equal(t, overdueInc.ID, overdueList[0].ID)

	// Once notified, the breach leaves both lists
	require.NoError(t, svc.RecordICONotification(ctx, "c1", urgent.ID, "ICO-2026-1234", "u1"))
	urgentList, err = svc.GetUrgentBreaches(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, urgentList)
}

func TestRecordNotifications(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inc, err := svc.ReportBreach(ctx, "c1", "t", "", "u1", breach.SeverityHigh,
		breach.RiskLikely, []string{"PAYE references"}, breach.IncidentOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.RecordICONotification(ctx, "c1", inc.ID, "ICO-1", "u1"))
	require.NoError(t, svc.RecordHMRCNotification(ctx, "c1", inc.ID, "u1"))
	require.NoError(t, svc.RecordUserNotification(ctx, "c1", inc.ID, "u1"))

	got, err := svc.GetBreach(ctx, "c1", inc.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ICONotifiedAt)
	assert.Equal(t, "ICO-1", got.ICOReference)
	assert.NotNil(t, got.HMRCNotifiedAt)
	assert.NotNil(t, got.UsersNotifiedAt)

	assert.Error(t, svc.RecordICONotification(ctx, "c1", "missing", "ICO-2", "u1"))
}

func TestAddRemediationAction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inc, err := svc.ReportBreach(ctx, "c1", "t", "", "u1", breach.SeverityLow,
		breach.RiskUnlikely, []string{"contact details"}, breach.IncidentOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.AddRemediationAction(ctx, "c1", inc.ID, "rotated credentials", "u1"))
	require.NoError(t, svc.AddRemediationAction(ctx, "c1", inc.ID, "enabled MFA", "u1"))

	got, err := svc.GetBreach(ctx, "c1", inc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rotated credentials", "enabled MFA"}, got.RemediationActions)

	assert.Error(t, svc.AddRemediationAction(ctx, "c1", inc.ID, "", "u1"))
}

func TestReportSecurityIncident_Escalation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	si, err := svc.ReportSecurityIncident(ctx, "c1", breach.IncidentDataBreach,
		"database snapshot exposed", "", "u1", breach.SeverityHigh, true)
	require.NoError(t, err)
	require.NotEmpty(t, si.EscalatedToBreachID)

	// The escalated breach exists and points back
	inc, err := svc.GetBreach(ctx, "c1", si.EscalatedToBreachID)
	require.NoError(t, err)
	assert.Equal(t, si.ID, inc.SourceIncidentID)
	assert.Equal(t, si.Title, inc.Title)
}

func TestReportSecurityIncident_NoEscalation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	si, err := svc.ReportSecurityIncident(ctx, "c1", breach.IncidentPhishing,
		"credential phishing attempt", "", "u1", breach.SeverityMedium, false)
	require.NoError(t, err)
	assert.Empty(t, si.EscalatedToBreachID)

	breaches, err := svc.GetUrgentBreaches(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, breaches)
}
