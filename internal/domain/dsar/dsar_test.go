package dsar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("c1", "u1", "Jo Smith", TypeAccess, "all payroll data")
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, StatusPending, req.Status)
	assert.False(t, req.IdentityVerified)
	assert.True(t, req.DueDate.Equal(req.ReceivedAt.Add(ResponseWindow)))
	assert.Nil(t, req.ExtendedDueDate)
}

func TestNewRequest_Validation(t *testing.T) {
	_, err := NewRequest("", "u1", "", TypeAccess, "")
	assert.Error(t, err)

	_, err = NewRequest("c1", "", "", TypeAccess, "")
	assert.Error(t, err)

	_, err = NewRequest("c1", "u1", "", "deletion", "")
	assert.Error(t, err)
}

func TestRequest_Extend(t *testing.T) {
	req, err := NewRequest("c1", "u1", "", TypeErasure, "")
	require.NoError(t, err)

	now := values.Now()
	require.NoError(t, req.Extend("complex multi-site records", now))

	assert.Equal(t, StatusExtended, req.Status)
	require.NotNil(t, req.ExtendedDueDate)
	assert.True(t, req.ExtendedDueDate.Equal(req.DueDate.Add(ExtensionWindow)))

	// Second extension fails with a conflict
	err = req.Extend("still complex", now)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestRequest_ExtendTerminal(t *testing.T) {
	req, err := NewRequest("c1", "u1", "", TypeAccess, "")
	require.NoError(t, err)
	req.Status = StatusCompleted

	err = req.Extend("too late", values.Now())
	assert.Error(t, err)
}

func TestRequest_IsOverdue(t *testing.T) {
	req, err := NewRequest("c1", "u1", "", TypeAccess, "")
	require.NoError(t, err)

	assert.False(t, req.IsOverdue(values.Now()))

	past := req.DueDate.Add(time.Hour)
	assert.True(t, req.IsOverdue(past))

	// Extension moves the effective deadline
	require.NoError(t, req.Extend("complex", values.Now()))
	assert.False(t, req.IsOverdue(past))
	assert.True(t, req.IsOverdue(req.ExtendedDueDate.Add(time.Hour)))

	// Terminal requests are never overdue
	req.Status = StatusCompleted
	assert.False(t, req.IsOverdue(req.ExtendedDueDate.Add(time.Hour)))
}

func TestRequest_CheckType(t *testing.T) {
	req, err := NewRequest("c1", "u1", "", TypeRectification, "")
	require.NoError(t, err)

	assert.NoError(t, req.CheckType(TypeRectification))
	assert.Error(t, req.CheckType(TypeAccess))
}
