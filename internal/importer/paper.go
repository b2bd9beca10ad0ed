package importer

import (
	"context"
	"encoding/json"
	"math"
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

// PaperRow is one paper-claim import row. Amount fields that arrive
// non-numeric decode to NaN so the row fails validation instead of
// aborting the batch.
type PaperRow struct {
	ProjectID   string
	ApplicantID string
	OccurDate   string
	Category    string
	Amount      float64
	TaxAmount   float64
	Remark      string
}

// UnmarshalJSON decodes a paper row tolerantly: amounts may be JSON numbers
// or numeric strings; anything else becomes NaN.
func (r *PaperRow) UnmarshalJSON(data []byte) error {
	raw := struct {
		ProjectID   string `json:"projectId"`
		ApplicantID string `json:"applicantId"`
		OccurDate   string `json:"occurDate"`
		Category    string `json:"category"`
		Amount      any    `json:"amount"`
		TaxAmount   any    `json:"taxAmount"`
		Remark      string `json:"remark"`
	}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ProjectID = strings.TrimSpace(raw.ProjectID)
	r.ApplicantID = strings.TrimSpace(raw.ApplicantID)
	r.OccurDate = strings.TrimSpace(raw.OccurDate)
	r.Category = strings.TrimSpace(raw.Category)
	r.Remark = strings.TrimSpace(raw.Remark)
	r.Amount = CoerceNumber(raw.Amount, math.NaN())
	r.TaxAmount = CoerceNumber(raw.TaxAmount, 0)
	return nil
}

// CoerceNumber converts a loosely typed cell value into a float64,
// returning fallback for blank or non-numeric input.
func CoerceNumber(v any, fallback float64) float64 {
	switch n := v.(type) {
	case nil:
		return fallback
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return fallback
		}
		return f
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return fallback
		}
		var f float64
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			return fallback
		}
		return f
	}
	return fallback
}

// validate returns every problem with the row, joined for the job error
// list, so one entry per failed row keeps successCount+failCount == rows.
func (r PaperRow) validate(jobPeriod string) error {
	problems := []string{}
	if r.ProjectID == "" {
		problems = append(problems, "projectId is required")
	}
	if r.OccurDate == "" {
		problems = append(problems, "occurDate is required")
	}
	if r.Category == "" {
		problems = append(problems, "category is required")
	}
	if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) || r.Amount <= 0 {
		problems = append(problems, "amount must be greater than 0")
	}
	if math.IsNaN(r.TaxAmount) || math.IsInf(r.TaxAmount, 0) || r.TaxAmount < 0 {
		problems = append(problems, "taxAmount must not be negative")
	}
	if len(problems) == 0 && !period.Contains(jobPeriod, r.OccurDate) {
		problems = append(problems, "occurDate is outside period "+jobPeriod)
	}
	if len(problems) > 0 {
		return RowErrorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// PaperImporter persists validated paper-claim rows as pre-approved claims.
// Paper claims carry physical authorization, so they skip the submit and
// approve transitions entirely.
type PaperImporter struct {
	engine   *Engine
	store    store.Store
	projects *project.Service
	audit    *audit.Recorder
	logger   *zap.Logger
}

// NewPaperImporter creates a paper-claim importer.
func NewPaperImporter(engine *Engine, st store.Store, projects *project.Service, recorder *audit.Recorder, logger *zap.Logger) *PaperImporter {
	return &PaperImporter{engine: engine, store: st, projects: projects, audit: recorder, logger: logger}
}

// Import runs one paper-claim batch for a period. Mode distinguishes
// manually keyed rows from spreadsheet uploads in the claim source tag.
func (p *PaperImporter) Import(ctx context.Context, jobPeriod string, rows []PaperRow, mode string, actor *models.User) (*models.ImportJob, error) {
	if err := auth.RequireFinanceOrAdmin(actor); err != nil {
		return nil, err
	}
	normalized, ok := period.Normalize(jobPeriod)
	if !ok {
		return nil, apperr.Validation("period must be formatted YYYY-MM")
	}

	source := models.ClaimSourcePaperExcel
	if mode == "manual" {
		source = models.ClaimSourcePaperManual
	}

	job, err := Run(ctx, p.engine, models.ImportTypePaperExcel, normalized, actor.UserID, rows,
		func(ctx context.Context, _ string, row PaperRow) error {
			return p.persistRow(ctx, normalized, row, source, actor)
		})
	if err != nil {
		return nil, err
	}

	p.audit.Record(ctx, audit.Entry{
		Action:     "paper.import",
		UserID:     actor.UserID,
		TargetType: "import_job",
		TargetID:   job.JobID,
		Payload: map[string]any{
			"period":       normalized,
			"successCount": job.SuccessCount,
			"failCount":    job.FailCount,
		},
	})
	return job, nil
}

func (p *PaperImporter) persistRow(ctx context.Context, jobPeriod string, row PaperRow, source string, actor *models.User) error {
	if err := row.validate(jobPeriod); err != nil {
		return err
	}

	applicantID := row.ApplicantID
	if applicantID == "" {
		applicantID = actor.UserID
	}
	if _, err := p.projects.EnsureExists(ctx, row.ProjectID, actor.UserID); err != nil {
		return err
	}

	occurAt, _ := period.ParseDate(row.OccurDate)
	ts := time.Now().UTC().Format(time.RFC3339)
	claim := models.ExpenseClaim{
		ClaimID:      ids.New("claim"),
		ProjectID:    row.ProjectID,
		ApplicantID:  applicantID,
		ClaimType:    models.ClaimTypePaper,
		Source:       source,
		CostCategory: row.Category,
		OccurDate:    occurAt.Format(time.RFC3339),
		AmountTotal:  money.Round2(row.Amount),
		TaxAmount:    money.Round2(row.TaxAmount),
		Status:       models.ClaimApproved,
		ApprovalBy:   actor.UserID,
		ApprovalAt:   ts,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	claimDoc, err := store.Encode(claim)
	if err != nil {
		return err
	}
	if _, err := p.store.Insert(ctx, store.ExpenseClaims, claimDoc); err != nil {
		return err
	}

	item := models.ExpenseItem{
		ItemID:    ids.New("item"),
		ClaimID:   claim.ClaimID,
		ProjectID: claim.ProjectID,
		Category:  row.Category,
		Amount:    money.Round2(row.Amount),
		TaxAmount: money.Round2(row.TaxAmount),
		Remark:    row.Remark,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	itemDoc, err := store.Encode(item)
	if err != nil {
		return err
	}
	_, err = p.store.Insert(ctx, store.ExpenseItems, itemDoc)
	return err
}
