// Package report aggregates one period's approved expense activity into
// the monthly summary/detail/anomaly views and materializes them as a
// downloadable workbook.
package report

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/audit"
	"github.com/lijunhao/projfin/internal/auth"
	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/internal/store"
	"github.com/lijunhao/projfin/internal/tabular"
	"github.com/lijunhao/projfin/pkg/money"
	"github.com/lijunhao/projfin/pkg/period"
)

// SummaryRow aggregates one project's approved claims in the period.
type SummaryRow struct {
	Period       string  `json:"period"`
	ProjectID    string  `json:"projectId"`
	ClaimCount   int     `json:"claimCount"`
	ExpenseTotal float64 `json:"expenseTotal"`
	TaxTotal     float64 `json:"taxTotal"`
}

// DetailRow is one expense item denormalized with claim-level fields.
type DetailRow struct {
	Period      string  `json:"period"`
	ProjectID   string  `json:"projectId"`
	ClaimID     string  `json:"claimId"`
	OccurDate   string  `json:"occurDate"`
	ApplicantID string  `json:"applicantId"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	TaxAmount   float64 `json:"taxAmount"`
	Source      string  `json:"source"`
}

// AnomalyRow flags a project with missing period data. Issues lists the
// missing categories joined into one human-readable string.
type AnomalyRow struct {
	Period    string `json:"period"`
	ProjectID string `json:"projectId"`
	Issues    string `json:"issues"`
}

// Stats counts the rows in each view.
type Stats struct {
	SummaryCount int `json:"summaryCount"`
	DetailCount  int `json:"detailCount"`
	AnomalyCount int `json:"anomalyCount"`
}

// Monthly is one generated report.
type Monthly struct {
	Period   string       `json:"period"`
	Stats    Stats        `json:"stats"`
	Summary  []SummaryRow `json:"summary"`
	Detail   []DetailRow  `json:"detail"`
	Anomaly  []AnomalyRow `json:"anomaly"`
	FileName string       `json:"fileName"`
	MimeType string       `json:"mimeType"`
	File     []byte       `json:"-"`
}

// Aggregator builds monthly reports.
type Aggregator struct {
	store  store.Store
	audit  *audit.Recorder
	logger *zap.Logger
}

// NewAggregator creates a report aggregator.
func NewAggregator(st store.Store, recorder *audit.Recorder, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: st, audit: recorder, logger: logger}
}

// GenerateMonthly builds the monthly report for a period, optionally
// filtered to one project. Finance/admin only.
func (a *Aggregator) GenerateMonthly(ctx context.Context, targetPeriod, filterProjectID string, actor *models.User) (*Monthly, error) {
	if err := auth.RequireFinanceOrAdmin(actor); err != nil {
		return nil, err
	}
	p, ok := period.Normalize(targetPeriod)
	if !ok {
		return nil, apperr.Validation("period must be formatted YYYY-MM")
	}
	filterProjectID = strings.TrimSpace(filterProjectID)

	claims, err := a.approvedClaims(ctx, p, filterProjectID)
	if err != nil {
		return nil, err
	}
	items, err := a.itemsOf(ctx, claims)
	if err != nil {
		return nil, err
	}

	summary := buildSummary(p, claims)
	detail := buildDetail(p, claims, items)

	revenue, err := a.periodRecords(ctx, store.ProjectRevenue, p)
	if err != nil {
		return nil, err
	}
	labor, err := a.periodRecords(ctx, store.LaborAllocation, p)
	if err != nil {
		return nil, err
	}
	taxFees, err := a.periodRecords(ctx, store.ProjectTaxFees, p)
	if err != nil {
		return nil, err
	}
	anomaly := buildAnomalies(p, filterProjectID, summary, revenue, labor, taxFees)

	file, err := tabular.WriteWorkbook(buildSheets(summary, detail, anomaly))
	if err != nil {
		return nil, apperr.From(err)
	}
	fileName := tabular.MonthlyFileName(p)

	out := &Monthly{
		Period: p,
		Stats: Stats{
			SummaryCount: len(summary),
			DetailCount:  len(detail),
			AnomalyCount: len(anomaly),
		},
		Summary:  summary,
		Detail:   detail,
		Anomaly:  anomaly,
		FileName: fileName,
		MimeType: tabular.XLSXMimeType,
		File:     file,
	}

	targetID := p + ":ALL"
	if filterProjectID != "" {
		targetID = p + ":" + filterProjectID
	}
	a.audit.Record(ctx, audit.Entry{
		Action:     "report.monthly.generate",
		UserID:     actor.UserID,
		TargetType: "monthly_report",
		TargetID:   targetID,
		Payload:    out.Stats,
	})
	return out, nil
}

func (a *Aggregator) approvedClaims(ctx context.Context, p, filterProjectID string) ([]models.ExpenseClaim, error) {
	docs, err := a.store.List(ctx, store.ExpenseClaims)
	if err != nil {
		return nil, apperr.From(err)
	}
	claims, err := store.DecodeAll[models.ExpenseClaim](docs)
	if err != nil {
		return nil, apperr.From(err)
	}
	out := []models.ExpenseClaim{}
	for _, c := range claims {
		if c.Status != models.ClaimApproved {
			continue
		}
		if !period.Contains(p, c.OccurDate) {
			continue
		}
		if filterProjectID != "" && c.ProjectID != filterProjectID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *Aggregator) itemsOf(ctx context.Context, claims []models.ExpenseClaim) ([]models.ExpenseItem, error) {
	claimIDs := map[string]bool{}
	for _, c := range claims {
		claimIDs[c.ClaimID] = true
	}
	docs, err := a.store.List(ctx, store.ExpenseItems)
	if err != nil {
		return nil, apperr.From(err)
	}
	items, err := store.DecodeAll[models.ExpenseItem](docs)
	if err != nil {
		return nil, apperr.From(err)
	}
	out := []models.ExpenseItem{}
	for _, item := range items {
		if claimIDs[item.ClaimID] {
			out = append(out, item)
		}
	}
	return out, nil
}

func (a *Aggregator) periodRecords(ctx context.Context, collection, p string) (map[string]bool, error) {
	docs, err := a.store.FindMany(ctx, collection, store.Query{"period": p})
	if err != nil {
		return nil, apperr.From(err)
	}
	projects := map[string]bool{}
	for _, doc := range docs {
		if id, ok := doc["projectId"].(string); ok {
			projects[id] = true
		}
	}
	return projects, nil
}

func buildSummary(p string, claims []models.ExpenseClaim) []SummaryRow {
	byProject := map[string]*SummaryRow{}
	order := []string{}
	for _, c := range claims {
		row := byProject[c.ProjectID]
		if row == nil {
			row = &SummaryRow{Period: p, ProjectID: c.ProjectID}
			byProject[c.ProjectID] = row
			order = append(order, c.ProjectID)
		}
		row.ClaimCount++
		row.ExpenseTotal = money.Sum2(row.ExpenseTotal, c.AmountTotal)
		row.TaxTotal = money.Sum2(row.TaxTotal, c.TaxAmount)
	}
	out := make([]SummaryRow, 0, len(order))
	for _, id := range order {
		out = append(out, *byProject[id])
	}
	return out
}

func buildDetail(p string, claims []models.ExpenseClaim, items []models.ExpenseItem) []DetailRow {
	claimByID := map[string]models.ExpenseClaim{}
	for _, c := range claims {
		claimByID[c.ClaimID] = c
	}
	out := make([]DetailRow, 0, len(items))
	for _, item := range items {
		claim := claimByID[item.ClaimID]
		out = append(out, DetailRow{
			Period:      p,
			ProjectID:   item.ProjectID,
			ClaimID:     item.ClaimID,
			OccurDate:   claim.OccurDate,
			ApplicantID: claim.ApplicantID,
			Category:    item.Category,
			Amount:      money.Round2(item.Amount),
			TaxAmount:   money.Round2(item.TaxAmount),
			Source:      claim.Source,
		})
	}
	return out
}

// buildAnomalies flags every project touched by the period's summary,
// revenue, labor or tax records whose revenue, labor or tax data is
// missing. Present-but-zero values are not anomalies.
func buildAnomalies(p, filterProjectID string, summary []SummaryRow, revenue, labor, taxFees map[string]bool) []AnomalyRow {
	involved := map[string]bool{}
	for _, row := range summary {
		involved[row.ProjectID] = true
	}
	for id := range revenue {
		involved[id] = true
	}
	for id := range labor {
		involved[id] = true
	}
	for id := range taxFees {
		involved[id] = true
	}

	ids := make([]string, 0, len(involved))
	for id := range involved {
		if filterProjectID != "" && id != filterProjectID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []AnomalyRow{}
	for _, id := range ids {
		issues := []string{}
		if !revenue[id] {
			issues = append(issues, "missing revenue data")
		}
		if !labor[id] {
			issues = append(issues, "missing labor allocation")
		}
		if !taxFees[id] {
			issues = append(issues, "missing tax fee data")
		}
		if len(issues) > 0 {
			out = append(out, AnomalyRow{Period: p, ProjectID: id, Issues: strings.Join(issues, "; ")})
		}
	}
	return out
}

// buildSheets lays the three views out in their fixed workbook order.
func buildSheets(summary []SummaryRow, detail []DetailRow, anomaly []AnomalyRow) []tabular.Sheet {
	summarySheet := tabular.Sheet{
		Name:   tabular.SheetSummary,
		Header: []string{"period", "projectId", "claimCount", "expenseTotal", "taxTotal"},
	}
	for _, r := range summary {
		summarySheet.Rows = append(summarySheet.Rows,
			[]any{r.Period, r.ProjectID, r.ClaimCount, r.ExpenseTotal, r.TaxTotal})
	}

	detailSheet := tabular.Sheet{
		Name: tabular.SheetDetail,
		Header: []string{"period", "projectId", "claimId", "occurDate",
			"applicantId", "category", "amount", "taxAmount", "source"},
	}
	for _, r := range detail {
		detailSheet.Rows = append(detailSheet.Rows, []any{r.Period, r.ProjectID, r.ClaimID,
			r.OccurDate, r.ApplicantID, r.Category, r.Amount, r.TaxAmount, r.Source})
	}

	anomalySheet := tabular.Sheet{
		Name:   tabular.SheetAnomaly,
		Header: []string{"period", "projectId", "issues"},
	}
	for _, r := range anomaly {
		anomalySheet.Rows = append(anomalySheet.Rows, []any{r.Period, r.ProjectID, r.Issues})
	}

	return []tabular.Sheet{summarySheet, detailSheet, anomalySheet}
}
