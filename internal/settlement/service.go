package settlement

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/audit"
	"github.com/lijunhao/projfin/internal/auth"
	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/internal/store"
	"github.com/lijunhao/projfin/pkg/ids"
	"github.com/lijunhao/projfin/pkg/money"
	"github.com/lijunhao/projfin/pkg/period"
)

// Service generates and reads project settlements.
type Service struct {
	store  store.Store
	audit  *audit.Recorder
	logger *zap.Logger
}

// NewService creates a settlement service.
func NewService(st store.Store, recorder *audit.Recorder, logger *zap.Logger) *Service {
	return &Service{store: st, audit: recorder, logger: logger}
}

// Generate computes and upserts the settlement for one (projectId, period).
// Finance/admin only. Each of the revenue, labor and tax-fee records must
// exist; a missing one fails with its own code so the caller can show a
// targeted remediation message. Recomputation overwrites in place.
func (s *Service) Generate(ctx context.Context, projectID, targetPeriod string, actor *models.User) (*models.Settlement, error) {
	if err := auth.RequireFinanceOrAdmin(actor); err != nil {
		return nil, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, apperr.Validation("projectId is required")
	}
	p, ok := period.Normalize(targetPeriod)
	if !ok {
		return nil, apperr.Validation("period must be formatted YYYY-MM")
	}

	expenseCost, claimCount, err := s.approvedExpenseCost(ctx, projectID, p)
	if err != nil {
		return nil, err
	}

	key := store.Query{"projectId": projectID, "period": p}
	revenueDoc, err := s.store.FindOne(ctx, store.ProjectRevenue, key)
	if err != nil {
		return nil, apperr.From(err)
	}
	if revenueDoc == nil {
		return nil, apperr.Missing(apperr.CodeMissingRevenue, "cannot settle: no revenue record for this project and period")
	}
	laborDoc, err := s.store.FindOne(ctx, store.LaborAllocation, key)
	if err != nil {
		return nil, apperr.From(err)
	}
	if laborDoc == nil {
		return nil, apperr.Missing(apperr.CodeMissingLabor, "cannot settle: no labor allocation for this project and period")
	}
	taxDoc, err := s.store.FindOne(ctx, store.ProjectTaxFees, key)
	if err != nil {
		return nil, apperr.From(err)
	}
	if taxDoc == nil {
		return nil, apperr.Missing(apperr.CodeMissingTax, "cannot settle: no tax fee record for this project and period")
	}

	var revenue models.RevenueRecord
	var labor models.LaborAllocation
	var taxFee models.TaxFee
	if err := store.Decode(revenueDoc, &revenue); err != nil {
		return nil, apperr.From(err)
	}
	if err := store.Decode(laborDoc, &labor); err != nil {
		return nil, apperr.From(err)
	}
	if err := store.Decode(taxDoc, &taxFee); err != nil {
		return nil, apperr.From(err)
	}

	ruleDocs, err := s.store.List(ctx, store.CommissionRules)
	if err != nil {
		return nil, apperr.From(err)
	}
	rules, err := store.DecodeAll[models.CommissionRule](ruleDocs)
	if err != nil {
		return nil, apperr.From(err)
	}
	rule := ResolveRule(rules, p)

	outcome := Compute(Input{
		Revenue:     revenue.RevenueAmount,
		ExpenseCost: expenseCost,
		TaxFee:      taxFee.TaxFeeAmount,
		LaborCost:   labor.LaborAmount,
		Ranges:      rule.Ranges,
	})

	snapshot := models.SettlementSnapshot{
		ProjectID:     projectID,
		Period:        p,
		RevenueRecord: revenue,
		LaborRecord:   labor,
		TaxFeeRecord:  taxFee,
		ClaimCount:    claimCount,
		RuleVersion:   rule.Version,
		RuleRanges:    rule.Ranges,
	}
	snapshotDoc, err := store.Encode(snapshot)
	if err != nil {
		return nil, apperr.From(err)
	}

	ts := time.Now().UTC().Format(time.RFC3339)
	patch := store.Doc{
		"revenue":          outcome.Revenue,
		"expenseCost":      outcome.ExpenseCost,
		"taxFee":           outcome.TaxFee,
		"laborCost":        outcome.LaborCost,
		"profit":           outcome.Profit,
		"profitRate":       outcome.ProfitRate,
		"commissionRate":   outcome.CommissionRate,
		"commissionAmount": outcome.CommissionAmount,
		"ruleVersion":      rule.Version,
		"snapshot":         snapshotDoc,
		"generatedBy":      actor.UserID,
		"generatedAt":      ts,
		"updatedAt":        ts,
	}
	savedDoc, err := s.store.UpsertOne(ctx, store.Settlements, key, patch,
		store.Doc{"settlementId": ids.New("settlement"), "createdAt": ts})
	if err != nil {
		return nil, apperr.From(err)
	}

	var saved models.Settlement
	if err := store.Decode(savedDoc, &saved); err != nil {
		return nil, apperr.From(err)
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "settlement.generate",
		UserID:     actor.UserID,
		TargetType: "project_settlement",
		TargetID:   saved.SettlementID,
		Payload: map[string]any{
			"projectId":        projectID,
			"period":           p,
			"profit":           saved.Profit,
			"commissionAmount": saved.CommissionAmount,
		},
	})
	return &saved, nil
}

// approvedExpenseCost sums amountTotal over the project's approved claims
// whose occurDate falls in the period.
func (s *Service) approvedExpenseCost(ctx context.Context, projectID, p string) (float64, int, error) {
	docs, err := s.store.FindMany(ctx, store.ExpenseClaims, store.Query{
		"projectId": projectID,
		"status":    string(models.ClaimApproved),
	})
	if err != nil {
		return 0, 0, apperr.From(err)
	}
	claims, err := store.DecodeAll[models.ExpenseClaim](docs)
	if err != nil {
		return 0, 0, apperr.From(err)
	}

	amounts := []float64{}
	for _, c := range claims {
		if period.Contains(p, c.OccurDate) {
			amounts = append(amounts, c.AmountTotal)
		}
	}
	return money.Sum2(amounts...), len(amounts), nil
}

// Detail fetches one settlement by id or by (projectId, period).
// Finance/admin only.
func (s *Service) Detail(ctx context.Context, settlementID, projectID, targetPeriod string, actor *models.User) (*models.Settlement, error) {
	if err := auth.RequireFinanceOrAdmin(actor); err != nil {
		return nil, err
	}

	var query store.Query
	settlementID = strings.TrimSpace(settlementID)
	projectID = strings.TrimSpace(projectID)
	p, _ := period.Normalize(targetPeriod)
	switch {
	case settlementID != "":
		query = store.Query{"settlementId": settlementID}
	case projectID != "" && p != "":
		query = store.Query{"projectId": projectID, "period": p}
	default:
		return nil, apperr.Validation("provide settlementId or projectId+period")
	}

	doc, err := s.store.FindOne(ctx, store.Settlements, query)
	if err != nil {
		return nil, apperr.From(err)
	}
	if doc == nil {
		return nil, apperr.NotFound("settlement not found")
	}
	var out models.Settlement
	if err := store.Decode(doc, &out); err != nil {
		return nil, apperr.From(err)
	}
	return &out, nil
}
