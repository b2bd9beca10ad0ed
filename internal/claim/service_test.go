package claim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/audit"
	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/internal/project"
	"github.com/lijunhao/projfin/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st := store.NewMemory()
	logger := zap.NewNop()
	recorder := audit.NewRecorder(st, logger)
	projects := project.NewService(st, recorder, logger)
	return NewService(st, projects, recorder, logger), st
}

func applicant(id string) *models.User {
	return &models.User{UserID: id, Role: models.RoleApplicant}
}

func financeUser() *models.User {
	return &models.User{UserID: "user_fin", Role: models.RoleFinance}
}

func draftClaim(t *testing.T, svc *Service, actor *models.User) *Result {
	t.Helper()
	result, err := svc.CreateOrUpdate(context.Background(), SaveInput{
		ProjectID: "P100",
		ClaimType: models.ClaimTypeElectronic,
		OccurDate: "2025-07-10",
		Items: []ItemInput{
			{Category: "travel", Amount: 120.50, TaxAmount: 6.02},
			{Category: "meal", Amount: 80, TaxAmount: 0},
		},
	}, actor)
	require.NoError(t, err)
	return result
}

func TestCreateClaimComputesTotals(t *testing.T) {
	svc, st := newTestService(t)
	actor := applicant("user_a")

	result := draftClaim(t, svc, actor)

	assert.Equal(t, models.ClaimDraft, result.Claim.Status)
	assert.Equal(t, "user_a", result.Claim.ApplicantID)
	assert.Equal(t, models.ClaimSourceManual, result.Claim.Source)
	assert.Equal(t, 200.50, result.Claim.AmountTotal)
	assert.Equal(t, 6.02, result.Claim.TaxAmount)
	assert.Len(t, result.Items, 2)

	// First reference auto-creates the project.
	doc, err := st.FindOne(context.Background(), store.Projects, store.Query{"projectId": "P100"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "auto", doc["source"])
}

func TestCreateClaimValidation(t *testing.T) {
	svc, _ := newTestService(t)
	actor := applicant("user_a")

	tests := []struct {
		name  string
		input SaveInput
	}{
		{
			name: "missing project",
			input: SaveInput{ClaimType: models.ClaimTypeElectronic, OccurDate: "2025-07-10",
				Items: []ItemInput{{Category: "travel", Amount: 10}}},
		},
		{
			name: "bad claim type",
			input: SaveInput{ProjectID: "P1", ClaimType: "cash", OccurDate: "2025-07-10",
				Items: []ItemInput{{Category: "travel", Amount: 10}}},
		},
		{
			name: "bad occur date",
			input: SaveInput{ProjectID: "P1", ClaimType: models.ClaimTypeElectronic, OccurDate: "someday",
				Items: []ItemInput{{Category: "travel", Amount: 10}}},
		},
		{
			name:  "empty items",
			input: SaveInput{ProjectID: "P1", ClaimType: models.ClaimTypeElectronic, OccurDate: "2025-07-10"},
		},
		{
			name: "zero amount item",
			input: SaveInput{ProjectID: "P1", ClaimType: models.ClaimTypeElectronic, OccurDate: "2025-07-10",
				Items: []ItemInput{{Category: "travel", Amount: 0}}},
		},
		{
			name: "negative tax item",
			input: SaveInput{ProjectID: "P1", ClaimType: models.ClaimTypeElectronic, OccurDate: "2025-07-10",
				Items: []ItemInput{{Category: "travel", Amount: 10, TaxAmount: -1}}},
		},
		{
			name: "blank category",
			input: SaveInput{ProjectID: "P1", ClaimType: models.ClaimTypeElectronic, OccurDate: "2025-07-10",
				Items: []ItemInput{{Category: "  ", Amount: 10}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrUpdate(context.Background(), tt.input, actor)
			assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
		})
	}
}

func TestUpdateReplacesItemsWholesale(t *testing.T) {
	svc, st := newTestService(t)
	actor := applicant("user_a")
	created := draftClaim(t, svc, actor)

	updated, err := svc.CreateOrUpdate(context.Background(), SaveInput{
		ClaimID:   created.Claim.ClaimID,
		ProjectID: "P100",
		ClaimType: models.ClaimTypeElectronic,
		OccurDate: "2025-07-12",
		Items:     []ItemInput{{Category: "hotel", Amount: 300.004, TaxAmount: 15}},
	}, actor)
	require.NoError(t, err)

	assert.Equal(t, created.Claim.ClaimID, updated.Claim.ClaimID)
	assert.Equal(t, 300.0, updated.Claim.AmountTotal)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "hotel", updated.Items[0].Category)

	docs, err := st.FindMany(context.Background(), store.ExpenseItems, store.Query{"claimId": created.Claim.ClaimID})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUpdateRequiresOwnershipAndEditableState(t *testing.T) {
	svc, _ := newTestService(t)
	owner := applicant("user_a")
	created := draftClaim(t, svc, owner)

	update := SaveInput{
		ClaimID:   created.Claim.ClaimID,
		ProjectID: "P100",
		ClaimType: models.ClaimTypeElectronic,
		OccurDate: "2025-07-10",
		Items:     []ItemInput{{Category: "travel", Amount: 50}},
	}

	_, err := svc.CreateOrUpdate(context.Background(), update, applicant("user_b"))
	assert.True(t, apperr.Is(err, apperr.CodeForbidden), "got %v", err)

	// Finance may edit someone else's claim while it is editable.
	_, err = svc.CreateOrUpdate(context.Background(), update, financeUser())
	assert.NoError(t, err)

	_, err = svc.Submit(context.Background(), created.Claim.ClaimID, owner)
	require.NoError(t, err)
	_, err = svc.CreateOrUpdate(context.Background(), update, owner)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState), "got %v", err)
}

func TestSubmitAndDecideLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	owner := applicant("user_a")
	fin := financeUser()
	created := draftClaim(t, svc, owner)

	submitted, err := svc.Submit(context.Background(), created.Claim.ClaimID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimSubmitted, submitted.Status)
	assert.NotEmpty(t, submitted.SubmittedAt)

	// Totals survive the transition untouched.
	assert.Equal(t, 200.50, submitted.AmountTotal)

	approved, err := svc.Decide(context.Background(), created.Claim.ClaimID, ActionApprove, "", fin)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, approved.Status)
	assert.Equal(t, fin.UserID, approved.ApprovalBy)
	assert.NotEmpty(t, approved.ApprovalAt)
	assert.Empty(t, approved.RejectReason)

	// Submitting an approved claim fails and leaves it unmodified.
	_, err = svc.Submit(context.Background(), created.Claim.ClaimID, owner)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState), "got %v", err)

	detail, err := svc.Detail(context.Background(), created.Claim.ClaimID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, detail.Claim.Status)
	assert.Equal(t, 200.50, detail.Claim.AmountTotal)
}

func TestDecideGuards(t *testing.T) {
	svc, _ := newTestService(t)
	owner := applicant("user_a")
	fin := financeUser()
	created := draftClaim(t, svc, owner)

	// Only finance/admin may decide.
	_, err := svc.Decide(context.Background(), created.Claim.ClaimID, ActionApprove, "", owner)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden), "got %v", err)

	// Draft claims cannot be decided.
	_, err = svc.Decide(context.Background(), created.Claim.ClaimID, ActionApprove, "", fin)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState), "got %v", err)

	_, err = svc.Submit(context.Background(), created.Claim.ClaimID, owner)
	require.NoError(t, err)

	rejected, err := svc.Decide(context.Background(), created.Claim.ClaimID, ActionReject, "", fin)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimRejected, rejected.Status)
	assert.Equal(t, "rejected by reviewer", rejected.RejectReason)

	// A rejected claim can be edited and resubmitted, or voided.
	voided, err := svc.Decide(context.Background(), created.Claim.ClaimID, ActionVoid, "", fin)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimVoid, voided.Status)
	assert.Equal(t, "voided manually", voided.VoidReason)

	// Void is terminal.
	_, err = svc.Decide(context.Background(), created.Claim.ClaimID, ActionVoid, "", fin)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState), "got %v", err)
	_, err = svc.Submit(context.Background(), created.Claim.ClaimID, owner)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState), "got %v", err)
}

func TestDecideUnknownClaim(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Decide(context.Background(), "claim_missing", ActionApprove, "", financeUser())
	assert.True(t, apperr.Is(err, apperr.CodeNotFound), "got %v", err)
}

func TestListScopes(t *testing.T) {
	svc, _ := newTestService(t)
	a := applicant("user_a")
	b := applicant("user_b")
	fin := financeUser()

	claimA := draftClaim(t, svc, a)
	draftClaim(t, svc, b)
	_, err := svc.Submit(context.Background(), claimA.Claim.ClaimID, a)
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), ListFilter{}, a)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, claimA.Claim.ClaimID, mine[0].ClaimID)

	// Applicants cannot widen their scope.
	_, err = svc.List(context.Background(), ListFilter{Scope: "all"}, a)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden), "got %v", err)
	_, err = svc.List(context.Background(), ListFilter{Scope: "pending"}, b)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden), "got %v", err)

	all, err := svc.List(context.Background(), ListFilter{Scope: "all"}, fin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := svc.List(context.Background(), ListFilter{Scope: "pending"}, fin)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.ClaimSubmitted, pending[0].Status)

	byPeriod, err := svc.List(context.Background(), ListFilter{Scope: "all", Period: "2025-08"}, fin)
	require.NoError(t, err)
	assert.Empty(t, byPeriod)
}

func TestDetailPermissions(t *testing.T) {
	svc, _ := newTestService(t)
	owner := applicant("user_a")
	created := draftClaim(t, svc, owner)

	_, err := svc.Detail(context.Background(), created.Claim.ClaimID, applicant("user_b"))
	assert.True(t, apperr.Is(err, apperr.CodeForbidden), "got %v", err)

	result, err := svc.Detail(context.Background(), created.Claim.ClaimID, financeUser())
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
}
