// Package claim implements the expense claim lifecycle: create/edit in
// draft, submit for approval, and the finance decision transitions.
package claim

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/audit"
	"github.com/lijunhao/projfin/internal/auth"
	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/internal/project"
	"github.com/lijunhao/projfin/internal/store"
	"github.com/lijunhao/projfin/pkg/ids"
	"github.com/lijunhao/projfin/pkg/money"
	"github.com/lijunhao/projfin/pkg/period"
)

// Service implements claim lifecycle operations.
type Service struct {
	store    store.Store
	projects *project.Service
	audit    *audit.Recorder
	logger   *zap.Logger
}

// NewService creates a claim service.
func NewService(st store.Store, projects *project.Service, recorder *audit.Recorder, logger *zap.Logger) *Service {
	return &Service{store: st, projects: projects, audit: recorder, logger: logger}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ItemInput is one expense line submitted by the caller.
type ItemInput struct {
	Category  string  `json:"category"`
	Amount    float64 `json:"amount"`
	TaxAmount float64 `json:"taxAmount"`
	Remark    string  `json:"remark"`
}

// SaveInput carries a claim create-or-update with its full item set.
type SaveInput struct {
	ClaimID      string      `json:"claimId"`
	ProjectID    string      `json:"projectId"`
	ApplicantID  string      `json:"applicantId"`
	ClaimType    string      `json:"claimType"`
	Source       string      `json:"source"`
	CostCategory string      `json:"costCategory"`
	OccurDate    string      `json:"occurDate"`
	Items        []ItemInput `json:"items"`
}

// Result is a claim together with its current items.
type Result struct {
	Claim models.ExpenseClaim  `json:"claim"`
	Items []models.ExpenseItem `json:"items"`
}

// sanitizeItems validates and rounds the submitted item set. Rounding to
// 2 decimals happens here, before persistence, never lazily.
func sanitizeItems(items []ItemInput) ([]ItemInput, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("claim items must not be empty")
	}
	out := make([]ItemInput, 0, len(items))
	for i, item := range items {
		category := strings.TrimSpace(item.Category)
		amount := money.Round2(item.Amount)
		taxAmount := money.Round2(item.TaxAmount)

		if category == "" {
			return nil, apperr.Validation("item %d: category is required", i+1)
		}
		if math.IsNaN(amount) || amount <= 0 {
			return nil, apperr.Validation("item %d: amount must be greater than 0", i+1)
		}
		if math.IsNaN(taxAmount) || taxAmount < 0 {
			return nil, apperr.Validation("item %d: taxAmount must not be negative", i+1)
		}
		out = append(out, ItemInput{
			Category:  category,
			Amount:    amount,
			TaxAmount: taxAmount,
			Remark:    strings.TrimSpace(item.Remark),
		})
	}
	return out, nil
}

func normalizeOccurDate(dateLike string) (string, error) {
	if strings.TrimSpace(dateLike) == "" {
		return "", apperr.Validation("occurDate is required")
	}
	t, ok := period.ParseDate(dateLike)
	if !ok {
		return "", apperr.Validation("occurDate is not a valid date")
	}
	return t.Format(time.RFC3339), nil
}

func resolveSource(claimType, source string) string {
	if source != "" {
		return source
	}
	if claimType == models.ClaimTypePaper {
		return models.ClaimSourcePaperManual
	}
	return models.ClaimSourceManual
}

// CreateOrUpdate creates a draft claim or replaces an editable claim's item
// set wholesale. Creating is open to any authenticated actor; updating
// requires ownership or the finance/admin capability and an editable state.
func (s *Service) CreateOrUpdate(ctx context.Context, in SaveInput, actor *models.User) (*Result, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("no resolved identity")
	}

	projectID := strings.TrimSpace(in.ProjectID)
	claimType := strings.TrimSpace(in.ClaimType)
	if projectID == "" {
		return nil, apperr.Validation("projectId is required")
	}
	if claimType != models.ClaimTypeElectronic && claimType != models.ClaimTypePaper {
		return nil, apperr.Validation("claimType must be electronic or paper")
	}
	occurDate, err := normalizeOccurDate(in.OccurDate)
	if err != nil {
		return nil, err
	}
	items, err := sanitizeItems(in.Items)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.EnsureExists(ctx, projectID, actor.UserID); err != nil {
		return nil, err
	}

	amounts := make([]float64, len(items))
	taxes := make([]float64, len(items))
	for i, item := range items {
		amounts[i] = item.Amount
		taxes[i] = item.TaxAmount
	}
	amountTotal := money.Sum2(amounts...)
	taxTotal := money.Sum2(taxes...)

	applicantID := strings.TrimSpace(in.ApplicantID)
	ts := now()

	var saved models.ExpenseClaim
	updating := strings.TrimSpace(in.ClaimID) != ""
	if updating {
		existing, err := s.getClaim(ctx, in.ClaimID)
		if err != nil {
			return nil, err
		}
		if !auth.IsOwnerOrPrivileged(actor, existing.ApplicantID) {
			return nil, apperr.Forbidden("not allowed to edit this claim")
		}
		if !CanEdit(existing.Status) {
			return nil, apperr.InvalidState("claim in status %q cannot be edited; only draft or rejected claims can", existing.Status)
		}
		// An edit never reassigns ownership unless explicitly asked to.
		if applicantID == "" {
			applicantID = existing.ApplicantID
		}

		patch := models.ClaimPatch{
			ProjectID:    &projectID,
			ApplicantID:  &applicantID,
			ClaimType:    &claimType,
			Source:       models.Ptr(resolveSource(claimType, in.Source)),
			CostCategory: models.Ptr(strings.TrimSpace(in.CostCategory)),
			OccurDate:    &occurDate,
			AmountTotal:  &amountTotal,
			TaxAmount:    &taxTotal,
			UpdatedAt:    &ts,
		}
		fields, err := models.PatchFields(patch)
		if err != nil {
			return nil, apperr.From(err)
		}
		updated, err := s.store.UpdateByID(ctx, store.ExpenseClaims, "claimId", existing.ClaimID, fields)
		if err != nil {
			return nil, apperr.From(err)
		}
		if err := store.Decode(updated, &saved); err != nil {
			return nil, apperr.From(err)
		}
		// Wholesale item replacement: the old set goes away entirely.
		if _, err := s.store.DeleteMany(ctx, store.ExpenseItems, store.Query{"claimId": existing.ClaimID}); err != nil {
			return nil, apperr.From(err)
		}
	} else {
		if applicantID == "" {
			applicantID = actor.UserID
		}
		saved = models.ExpenseClaim{
			ClaimID:      ids.New("claim"),
			ProjectID:    projectID,
			ApplicantID:  applicantID,
			ClaimType:    claimType,
			Source:       resolveSource(claimType, in.Source),
			CostCategory: strings.TrimSpace(in.CostCategory),
			OccurDate:    occurDate,
			AmountTotal:  amountTotal,
			TaxAmount:    taxTotal,
			Status:       models.ClaimDraft,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		}
		doc, err := store.Encode(saved)
		if err != nil {
			return nil, apperr.From(err)
		}
		if _, err := s.store.Insert(ctx, store.ExpenseClaims, doc); err != nil {
			return nil, apperr.From(err)
		}
	}

	savedItems := make([]models.ExpenseItem, 0, len(items))
	for _, item := range items {
		row := models.ExpenseItem{
			ItemID:    ids.New("item"),
			ClaimID:   saved.ClaimID,
			ProjectID: saved.ProjectID,
			Category:  item.Category,
			Amount:    item.Amount,
			TaxAmount: item.TaxAmount,
			Remark:    item.Remark,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		doc, err := store.Encode(row)
		if err != nil {
			return nil, apperr.From(err)
		}
		if _, err := s.store.Insert(ctx, store.ExpenseItems, doc); err != nil {
			return nil, apperr.From(err)
		}
		savedItems = append(savedItems, row)
	}

	action := "claim.create"
	if updating {
		action = "claim.update"
	}
	s.audit.Record(ctx, audit.Entry{
		Action:     action,
		UserID:     actor.UserID,
		TargetType: "expense_claim",
		TargetID:   saved.ClaimID,
		Payload:    map[string]any{"amountTotal": amountTotal, "itemCount": len(items)},
	})

	return &Result{Claim: saved, Items: savedItems}, nil
}

// Submit moves an editable claim into the submitted state.
func (s *Service) Submit(ctx context.Context, claimID string, actor *models.User) (*models.ExpenseClaim, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("no resolved identity")
	}
	existing, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !auth.IsOwnerOrPrivileged(actor, existing.ApplicantID) {
		return nil, apperr.Forbidden("not allowed to submit this claim")
	}
	if !CanSubmit(existing.Status) {
		return nil, apperr.InvalidState("claim in status %q cannot be submitted; only draft or rejected claims can", existing.Status)
	}

	itemDocs, err := s.store.FindMany(ctx, store.ExpenseItems, store.Query{"claimId": existing.ClaimID})
	if err != nil {
		return nil, apperr.From(err)
	}
	if len(itemDocs) == 0 {
		return nil, apperr.Validation("claim has no items")
	}

	ts := now()
	patch := models.ClaimPatch{
		Status:      models.Ptr(models.ClaimSubmitted),
		SubmittedAt: &ts,
		UpdatedAt:   &ts,
	}
	fields, err := models.PatchFields(patch)
	if err != nil {
		return nil, apperr.From(err)
	}
	updatedDoc, err := s.store.UpdateByID(ctx, store.ExpenseClaims, "claimId", existing.ClaimID, fields)
	if err != nil {
		return nil, apperr.From(err)
	}
	var updated models.ExpenseClaim
	if err := store.Decode(updatedDoc, &updated); err != nil {
		return nil, apperr.From(err)
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "claim.submit",
		UserID:     actor.UserID,
		TargetType: "expense_claim",
		TargetID:   existing.ClaimID,
	})
	return &updated, nil
}

// Decide applies an approve/reject/void decision to a claim.
// Finance/admin only; the state machine guards the transition.
func (s *Service) Decide(ctx context.Context, claimID string, action Action, reason string, actor *models.User) (*models.ExpenseClaim, error) {
	if err := auth.RequireFinanceOrAdmin(actor); err != nil {
		return nil, err
	}
	if !action.IsValid() {
		return nil, apperr.Validation("action must be approve, reject or void")
	}
	existing, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !CanFire(existing.Status, action) {
		return nil, apperr.InvalidState("cannot %s a claim in status %q", action, existing.Status)
	}

	ts := now()
	reason = strings.TrimSpace(reason)
	patch := models.ClaimPatch{
		Status:    models.Ptr(Target(action)),
		UpdatedAt: &ts,
	}
	switch action {
	case ActionApprove:
		patch.ApprovalBy = &actor.UserID
		patch.ApprovalAt = &ts
		patch.RejectReason = models.Ptr("")
	case ActionReject:
		if reason == "" {
			reason = "rejected by reviewer"
		}
		patch.ApprovalBy = &actor.UserID
		patch.ApprovalAt = &ts
		patch.RejectReason = &reason
	case ActionVoid:
		if reason == "" {
			reason = "voided manually"
		}
		patch.VoidReason = &reason
	}

	fields, err := models.PatchFields(patch)
	if err != nil {
		return nil, apperr.From(err)
	}
	updatedDoc, err := s.store.UpdateByID(ctx, store.ExpenseClaims, "claimId", existing.ClaimID, fields)
	if err != nil {
		return nil, apperr.From(err)
	}
	var updated models.ExpenseClaim
	if err := store.Decode(updatedDoc, &updated); err != nil {
		return nil, apperr.From(err)
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "claim." + string(action),
		UserID:     actor.UserID,
		TargetType: "expense_claim",
		TargetID:   existing.ClaimID,
		Payload:    map[string]any{"reason": reason},
	})
	return &updated, nil
}

// ListFilter narrows List output.
type ListFilter struct {
	Scope     string // mine, pending, all
	Status    string
	ProjectID string
	Period    string
}

// List returns claims visible to the actor, newest first. The pending and
// all scopes require the finance/admin capability.
func (s *Service) List(ctx context.Context, filter ListFilter, actor *models.User) ([]models.ExpenseClaim, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("no resolved identity")
	}
	scope := filter.Scope
	if scope == "" {
		scope = "mine"
	}
	if scope == "pending" || scope == "all" {
		if err := auth.RequireFinanceOrAdmin(actor); err != nil {
			return nil, err
		}
	}

	docs, err := s.store.List(ctx, store.ExpenseClaims)
	if err != nil {
		return nil, apperr.From(err)
	}
	claims, err := store.DecodeAll[models.ExpenseClaim](docs)
	if err != nil {
		return nil, apperr.From(err)
	}

	periodFilter, _ := period.Normalize(filter.Period)
	out := []models.ExpenseClaim{}
	for _, c := range claims {
		if scope == "mine" && c.ApplicantID != actor.UserID {
			continue
		}
		if scope == "pending" && c.Status != models.ClaimSubmitted {
			continue
		}
		if filter.Status != "" && string(c.Status) != filter.Status {
			continue
		}
		if filter.ProjectID != "" && c.ProjectID != filter.ProjectID {
			continue
		}
		if periodFilter != "" && !period.Contains(periodFilter, c.OccurDate) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

// Detail returns one claim with its items. Readable by the owner or a
// privileged actor.
func (s *Service) Detail(ctx context.Context, claimID string, actor *models.User) (*Result, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("no resolved identity")
	}
	existing, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !auth.IsOwnerOrPrivileged(actor, existing.ApplicantID) {
		return nil, apperr.Forbidden("not allowed to view this claim")
	}
	itemDocs, err := s.store.FindMany(ctx, store.ExpenseItems, store.Query{"claimId": existing.ClaimID})
	if err != nil {
		return nil, apperr.From(err)
	}
	items, err := store.DecodeAll[models.ExpenseItem](itemDocs)
	if err != nil {
		return nil, apperr.From(err)
	}
	return &Result{Claim: *existing, Items: items}, nil
}

func (s *Service) getClaim(ctx context.Context, claimID string) (*models.ExpenseClaim, error) {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil, apperr.Validation("claimId is required")
	}
	doc, err := s.store.FindOne(ctx, store.ExpenseClaims, store.Query{"claimId": claimID})
	if err != nil {
		return nil, apperr.From(err)
	}
	if doc == nil {
		return nil, apperr.NotFound("claim not found")
	}
	var claim models.ExpenseClaim
	if err := store.Decode(doc, &claim); err != nil {
		return nil, apperr.From(err)
	}
	return &claim, nil
}
