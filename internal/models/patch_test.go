package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchFieldsOmitsNilPointers(t *testing.T) {
	fields, err := PatchFields(ClaimPatch{
		Status:    Ptr(ClaimApproved),
		UpdatedAt: Ptr("2025-07-10T00:00:00Z"),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"status":    "approved",
		"updatedAt": "2025-07-10T00:00:00Z",
	}, fields)
}

func TestPatchFieldsKeepsExplicitZeroValues(t *testing.T) {
	// A pointer to the zero value is an intentional clear and must survive.
	fields, err := PatchFields(ClaimPatch{RejectReason: Ptr("")})
	require.NoError(t, err)

	value, present := fields["rejectReason"]
	assert.True(t, present)
	assert.Equal(t, "", value)
	assert.Len(t, fields, 1)
}

func TestPatchFieldsEmptyPatch(t *testing.T) {
	fields, err := PatchFields(ImportJobPatch{})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleApplicant.IsValid())
	assert.True(t, RoleFinance.IsValid())
	assert.True(t, RoleAdmin.IsValid())
	assert.False(t, Role("manager").IsValid())
	assert.False(t, Role("").IsValid())
}
