package consent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord("user-1", "company-1", PurposeHMRCSubmission, BasisLegalObligation, true, MethodExplicitForm, "2.0")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, PurposeHMRCSubmission, rec.Purpose)
	assert.Equal(t, BasisLegalObligation, rec.LawfulBasis)
	assert.True(t, rec.ConsentGiven)
	assert.Equal(t, "2.0", rec.Version)
	assert.False(t, rec.IsWithdrawn())
}

func TestNewRecord_Defaults(t *testing.T) {
	rec, err := NewRecord("u1", "c1", PurposeMarketing, BasisConsent, true, "", "")
	require.NoError(t, err)

	assert.Equal(t, MethodExplicitForm, rec.Method)
	assert.Equal(t, "1.0", rec.Version)
}

func TestNewRecord_Validation(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		purpose Purpose
		basis   LawfulBasis
	}{
		{name: "missing user", userID: "", purpose: PurposeMarketing, basis: BasisConsent},
		{name: "bad purpose", userID: "u1", purpose: "gossip", basis: BasisConsent},
		{name: "bad basis", userID: "u1", purpose: PurposeMarketing, basis: "vibes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecord(tt.userID, "c1", tt.purpose, tt.basis, true, MethodExplicitForm, "1.0")
			assert.Error(t, err)
		})
	}
}

func TestRecord_ValidAt(t *testing.T) {
	now := values.Now()
	withdrawn := now.Add(-time.Hour)
	expired := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{name: "given and clean", rec: Record{ConsentGiven: true}, want: true},
		{name: "not given", rec: Record{ConsentGiven: false}, want: false},
		{name: "withdrawn", rec: Record{ConsentGiven: true, WithdrawnTimestamp: &withdrawn}, want: false},
		{name: "expired", rec: Record{ConsentGiven: true, ExpiresAt: &expired}, want: false},
		{name: "not yet expired", rec: Record{ConsentGiven: true, ExpiresAt: &future}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.ValidAt(now))
		})
	}
}

func TestLatest(t *testing.T) {
	base := values.Now()
	older := &Record{ID: "a", ConsentTimestamp: base.Add(-2 * time.Hour)}
	newest := &Record{ID: "b", ConsentTimestamp: base}
	middle := &Record{ID: "c", ConsentTimestamp: base.Add(-time.Hour)}

	assert.Nil(t, Latest(nil))
	assert.Equal(t, "b", Latest([]*Record{older, newest, middle}).ID)
	// Insertion order does not matter
	assert.Equal(t, "b", Latest([]*Record{newest, older, middle}).ID)
}

func TestFilterByPurpose(t *testing.T) {
	records := []*Record{
		{ID: "a", Purpose: PurposeMarketing},
		{ID: "b", Purpose: PurposeHMRCSubmission},
		{ID: "c", Purpose: PurposeMarketing},
	}

	got := FilterByPurpose(records, PurposeMarketing)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestLawfulBasis_IsNonConsent(t *testing.T) {
	assert.True(t, BasisLegalObligation.IsNonConsent())
	assert.True(t, BasisContract.IsNonConsent())
	assert.False(t, BasisConsent.IsNonConsent())
	assert.False(t, BasisLegitimateInterests.IsNonConsent())
}
