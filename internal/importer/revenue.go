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

// RevenueRow is one project revenue figure for the import period.
type RevenueRow struct {
	ProjectID     string
	RevenueAmount float64
}

// UnmarshalJSON decodes a revenue row tolerantly; a non-numeric amount
// becomes NaN and fails row validation instead of aborting the batch.
func (r *RevenueRow) UnmarshalJSON(data []byte) error {
	raw := struct {
		ProjectID     string `json:"projectId"`
		RevenueAmount any    `json:"revenueAmount"`
	}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ProjectID = strings.TrimSpace(raw.ProjectID)
	r.RevenueAmount = CoerceNumber(raw.RevenueAmount, math.NaN())
	return nil
}

// RevenueImporter upserts per-period revenue records from manual payloads
// or the external ERP feed.
type RevenueImporter struct {
	engine   *Engine
	store    store.Store
	projects *project.Service
	feed     *ERPClient
	audit    *audit.Recorder
	logger   *zap.Logger
}

// NewRevenueImporter creates a revenue importer.
func NewRevenueImporter(engine *Engine, st store.Store, projects *project.Service, feed *ERPClient, recorder *audit.Recorder, logger *zap.Logger) *RevenueImporter {
	return &RevenueImporter{engine: engine, store: st, projects: projects, feed: feed, audit: recorder, logger: logger}
}

// Import runs one revenue batch for a period. When rows is nil the batch is
// pulled from the configured ERP endpoint. Re-running a period overwrites
// the previous records (upsert by projectId+period), never duplicates.
func (r *RevenueImporter) Import(ctx context.Context, jobPeriod string, rows []RevenueRow, actor *models.User) (*models.ImportJob, error) {
	if err := auth.RequireFinanceOrAdmin(actor); err != nil {
		return nil, err
	}
	normalized, ok := period.Normalize(jobPeriod)
	if !ok {
		return nil, apperr.Validation("period must be formatted YYYY-MM")
	}

	source := "manual"
	if rows == nil {
		if r.feed == nil {
			return nil, apperr.Validation("no rows given and no ERP feed configured")
		}
		pulled, err := r.feed.FetchRevenue(ctx, normalized)
		if err != nil {
			return nil, err
		}
		rows = pulled
		source = "erp_pull"
	}

	job, err := Run(ctx, r.engine, models.ImportTypeERPPull, normalized, actor.UserID, rows,
		func(ctx context.Context, jobID string, row RevenueRow) error {
			return r.persistRow(ctx, jobID, normalized, row, source, actor)
		})
	if err != nil {
		return nil, err
	}

	r.audit.Record(ctx, audit.Entry{
		Action:     "revenue.import",
		UserID:     actor.UserID,
		TargetType: "import_job",
		TargetID:   job.JobID,
		Payload: map[string]any{
			"period":       normalized,
			"source":       source,
			"successCount": job.SuccessCount,
			"failCount":    job.FailCount,
		},
	})
	return job, nil
}

func (r *RevenueImporter) persistRow(ctx context.Context, jobID, jobPeriod string, row RevenueRow, source string, actor *models.User) error {
	if row.ProjectID == "" {
		return RowErrorf("projectId is required")
	}
	amount := money.Round2(row.RevenueAmount)
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return RowErrorf("revenueAmount must be a number >= 0")
	}
	if _, err := r.projects.EnsureExists(ctx, row.ProjectID, actor.UserID); err != nil {
		return err
	}

	// The current job id tags the record so a period's figures are
	// traceable to the batch that wrote them.
	ts := time.Now().UTC().Format(time.RFC3339)
	_, err := r.store.UpsertOne(ctx, store.ProjectRevenue,
		store.Query{"projectId": row.ProjectID, "period": jobPeriod},
		store.Doc{
			"revenueAmount": amount,
			"source":        source,
			"syncBatchId":   jobID,
			"updatedBy":     actor.UserID,
			"updatedAt":     ts,
		},
		store.Doc{"recordId": ids.New("rev"), "createdAt": ts})
	return err
}
