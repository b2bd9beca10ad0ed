package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/audit"
	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st := store.NewMemory()
	logger := zap.NewNop()
	return NewService(st, audit.NewRecorder(st, logger), logger), st
}

func finance() *models.User {
	return &models.User{UserID: "user_fin", Role: models.RoleFinance}
}

func applicant() *models.User {
	return &models.User{UserID: "user_a", Role: models.RoleApplicant}
}

func TestEnsureExists(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	created, err := svc.EnsureExists(ctx, "P1", "user_x")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "P1", created.ProjectID)
	assert.Equal(t, "auto", created.Source)
	assert.Equal(t, models.ProjectActive, created.Status)
	assert.Equal(t, "user_x", created.CreatedBy)

	// Second reference returns the existing record, no duplicate.
	again, err := svc.EnsureExists(ctx, "P1", "user_y")
	require.NoError(t, err)
	assert.Equal(t, "user_x", again.CreatedBy)

	docs, err := st.List(ctx, store.Projects)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// Blank ids are a no-op.
	none, err := svc.EnsureExists(ctx, "  ", "user_x")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpsert(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Upsert(ctx, UpsertInput{ProjectID: "P1", Name: "Bridge works"}, finance())
	require.NoError(t, err)
	assert.Equal(t, "manual", created.Source)
	assert.Equal(t, models.ProjectActive, created.Status)

	updated, err := svc.Upsert(ctx, UpsertInput{
		ProjectID: "P1", Name: "Bridge works phase 2", Status: models.ProjectArchived,
	}, finance())
	require.NoError(t, err)
	assert.Equal(t, "Bridge works phase 2", updated.Name)
	assert.Equal(t, models.ProjectArchived, updated.Status)

	_, err = svc.Upsert(ctx, UpsertInput{ProjectID: "P2", Name: "X"}, applicant())
	assert.True(t, apperr.Is(err, apperr.CodeForbidden), "got %v", err)

	_, err = svc.Upsert(ctx, UpsertInput{ProjectID: "", Name: "X"}, finance())
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)

	_, err = svc.Upsert(ctx, UpsertInput{ProjectID: "P3", Name: "X", Status: "paused"}, finance())
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
}

func TestListFiltersAndVisibility(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	fin := finance()

	_, err := svc.Upsert(ctx, UpsertInput{ProjectID: "P1", Name: "Harbor dredging"}, fin)
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, UpsertInput{ProjectID: "P2", Name: "Rail siding", Status: models.ProjectDisabled}, fin)
	require.NoError(t, err)

	visible, err := svc.List(ctx, "", false, applicant())
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "P1", visible[0].ProjectID)

	// Applicants cannot opt into disabled projects.
	visible, err = svc.List(ctx, "", true, applicant())
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	all, err := svc.List(ctx, "", true, fin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byKeyword, err := svc.List(ctx, "harbor", false, fin)
	require.NoError(t, err)
	require.Len(t, byKeyword, 1)
	assert.Equal(t, "P1", byKeyword[0].ProjectID)
}

func TestUpsertPeriodData(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	fin := finance()
	amount := func(v float64) *float64 { return &v }

	labor, tax, err := svc.UpsertPeriodData(ctx, PeriodDataInput{
		ProjectID: "P1", Period: "2025-07",
		LaborAmount: amount(100.005), TaxFeeAmount: amount(50),
	}, fin)
	require.NoError(t, err)
	assert.Equal(t, 100.01, labor.LaborAmount)
	assert.Equal(t, 50.0, tax.TaxFeeAmount)
	assert.Equal(t, "manual", labor.Source)

	// Re-upserting the same key overwrites, never duplicates.
	labor2, _, err := svc.UpsertPeriodData(ctx, PeriodDataInput{
		ProjectID: "P1", Period: "2025-07",
		LaborAmount: amount(120), TaxFeeAmount: amount(60),
	}, fin)
	require.NoError(t, err)
	assert.Equal(t, labor.AllocationID, labor2.AllocationID)
	assert.Equal(t, 120.0, labor2.LaborAmount)

	laborDocs, err := st.FindMany(ctx, store.LaborAllocation, store.Query{"projectId": "P1", "period": "2025-07"})
	require.NoError(t, err)
	assert.Len(t, laborDocs, 1)

	// The referenced project is auto-created.
	projDoc, err := st.FindOne(ctx, store.Projects, store.Query{"projectId": "P1"})
	require.NoError(t, err)
	assert.NotNil(t, projDoc)
}

func TestUpsertPeriodDataValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	amount := func(v float64) *float64 { return &v }

	tests := []struct {
		name  string
		input PeriodDataInput
	}{
		{name: "missing project", input: PeriodDataInput{Period: "2025-07", LaborAmount: amount(1), TaxFeeAmount: amount(1)}},
		{name: "bad period", input: PeriodDataInput{ProjectID: "P1", Period: "2025", LaborAmount: amount(1), TaxFeeAmount: amount(1)}},
		{name: "missing labor", input: PeriodDataInput{ProjectID: "P1", Period: "2025-07", TaxFeeAmount: amount(1)}},
		{name: "negative labor", input: PeriodDataInput{ProjectID: "P1", Period: "2025-07", LaborAmount: amount(-1), TaxFeeAmount: amount(1)}},
		{name: "missing tax", input: PeriodDataInput{ProjectID: "P1", Period: "2025-07", LaborAmount: amount(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.UpsertPeriodData(ctx, tt.input, finance())
			assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
		})
	}
}
