package breach

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

func TestNewIncident(t *testing.T) {
	inc, err := NewIncident("c1", "laptop theft", "unencrypted laptop stolen", "u1",
		SeverityMedium, RiskPossible, []string{"contact details"}, IncidentOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, inc.ID)
	assert.Equal(t, StatusDetected, inc.Status)
	assert.False(t, inc.RequiresICONotification)
	assert.False(t, inc.RequiresUserNotification)
	assert.False(t, inc.RequiresHMRCNotification)
}

func TestNewIncident_Validation(t *testing.T) {
	tests := []struct {
		name       string
		companyID  string
		title      string
		severity   Severity
		risk       Risk
		categories []string
	}{
		{name: "missing company", title: "t", severity: SeverityLow, risk: RiskUnlikely, categories: []string{"x"}},
		{name: "missing title", companyID: "c1", severity: SeverityLow, risk: RiskUnlikely, categories: []string{"x"}},
		{name: "bad severity", companyID: "c1", title: "t", severity: "meh", risk: RiskUnlikely, categories: []string{"x"}},
		{name: "bad risk", companyID: "c1", title: "t", severity: SeverityLow, risk: "dunno", categories: []string{"x"}},
		{name: "no categories", companyID: "c1", title: "t", severity: SeverityLow, risk: RiskUnlikely},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIncident(tt.companyID, tt.title, "", "u1", tt.severity, tt.risk, tt.categories, IncidentOptions{})
			assert.Error(t, err)
		})
	}
}

func TestNewIncident_ICONotificationRules(t *testing.T) {
	tests := []struct {
		name     string
		severity Severity
		risk     Risk
		records  int
		want     bool
	}{
		{name: "critical severity", severity: SeverityCritical, risk: RiskUnlikely, want: true},
		{name: "high severity", severity: SeverityHigh, risk: RiskUnlikely, want: true},
		{name: "likely risk", severity: SeverityLow, risk: RiskLikely, want: true},
		{name: "highly likely risk", severity: SeverityLow, risk: RiskHighlyLikely, want: true},
		{name: "volume threshold", severity: SeverityLow, risk: RiskUnlikely, records: 100, want: true},
		{name: "below threshold", severity: SeverityLow, risk: RiskUnlikely, records: 99, want: false},
		{name: "minor", severity: SeverityMedium, risk: RiskPossible, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inc, err := NewIncident("c1", "t", "", "u1", tt.severity, tt.risk,
				[]string{"contact details"}, IncidentOptions{EstimatedRecordsAffected: tt.records})
			require.NoError(t, err)
			assert.Equal(t, tt.want, inc.RequiresICONotification)
		})
	}
}

func TestNewIncident_UserNotificationRules(t *testing.T) {
	inc, err := NewIncident("c1", "t", "", "u1", SeverityLow, RiskUnlikely,
		[]string{"contact details"}, IncidentOptions{Consequences: []string{"Identity_Theft"}})
	require.NoError(t, err)
	assert.True(t, inc.RequiresUserNotification)

	inc, err = NewIncident("c1", "t", "", "u1", SeverityLow, RiskLikely,
		[]string{"contact details"}, IncidentOptions{})
	require.NoError(t, err)
	assert.True(t, inc.RequiresUserNotification)

	inc, err = NewIncident("c1", "t", "", "u1", SeverityLow, RiskUnlikely,
		[]string{"contact details"}, IncidentOptions{Consequences: []string{"inconvenience"}})
	require.NoError(t, err)
	assert.False(t, inc.RequiresUserNotification)
}

func TestNewIncident_HMRCNotificationRules(t *testing.T) {
	tests := []struct {
		name     string
		category string
		want     bool
	}{
		{name: "payroll data", category: "payroll records", want: true},
		{name: "paye reference", category: "PAYE references", want: true},
		{name: "national insurance", category: "National Insurance numbers", want: true},
		{name: "tax documents", category: "tax documents", want: true},
		{name: "contact data", category: "contact details", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inc, err := NewIncident("c1", "t", "", "u1", SeverityLow, RiskUnlikely,
				[]string{tt.category}, IncidentOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, inc.RequiresHMRCNotification)
		})
	}
}

func TestIncident_NotificationWindow(t *testing.T) {
	detected := values.Now().Add(-time.Hour)
	inc, err := NewIncident("c1", "t", "", "u1", SeverityCritical, RiskLikely,
		[]string{"payroll records"}, IncidentOptions{DetectedAt: &detected})
	require.NoError(t, err)
	require.True(t, inc.RequiresICONotification)

	now := values.Now()
	assert.True(t, inc.IsICOUrgent(now))
	assert.False(t, inc.IsICOOverdue(now))

	late := detected.Add(NotificationWindow)
	assert.False(t, inc.IsICOUrgent(late))
	assert.True(t, inc.IsICOOverdue(late))

	// Once notified, neither urgent nor overdue
	notified := values.Now()
	inc.ICONotifiedAt = &notified
	assert.False(t, inc.IsICOUrgent(now))
	assert.False(t, inc.IsICOOverdue(late))
}

func TestNewSecurityIncident(t *testing.T) {
	si, err := NewSecurityIncident("c1", IncidentDataBreach, "db exposure", "", "u1", SeverityHigh, true)
	require.NoError(t, err)

	assert.Equal(t, StatusDetected, si.Status)
	assert.True(t, si.ShouldEscalate())

	si.EscalatedToBreachID = "b1"
	assert.False(t, si.ShouldEscalate())
}

func TestNewSecurityIncident_NoEscalationWithoutPersonalData(t *testing.T) {
	si, err := NewSecurityIncident("c1", IncidentDataBreach, "t", "", "u1", SeverityHigh, false)
	require.NoError(t, err)
	assert.False(t, si.ShouldEscalate())

	si, err = NewSecurityIncident("c1", IncidentPhishing, "t", "", "u1", SeverityHigh, true)
	require.NoError(t, err)
	assert.False(t, si.ShouldEscalate())
}

func TestNewSecurityIncident_Validation(t *testing.T) {
	_, err := NewSecurityIncident("c1", "carrier_pigeon", "t", "", "u1", SeverityHigh, false)
	assert.Error(t, err)

	_, err = NewSecurityIncident("", IncidentMalware, "t", "", "u1", SeverityHigh, false)
	assert.Error(t, err)
}
