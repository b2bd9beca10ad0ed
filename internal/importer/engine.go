// Package importer implements the batch import/reconciliation engine:
// a generic sequential row loop with per-row outcome tracking, and the two
// row sources built on it (paper claims and ERP revenue).
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/internal/store"
	"github.com/lijunhao/projfin/pkg/ids"
)

// Engine runs import jobs. Rows are processed strictly sequentially and
// independently: one row's failure never aborts or rolls back prior rows,
// and no transaction spans the batch.
type Engine struct {
	store  store.Store
	logger *zap.Logger
}

// NewEngine creates an import engine.
func NewEngine(st store.Store, logger *zap.Logger) *Engine {
	return &Engine{store: st, logger: logger}
}

// rowError marks a failure attributable to one row rather than the batch.
type rowError struct {
	msg string
}

func (e *rowError) Error() string { return e.msg }

// RowErrorf builds a per-row failure from one or more problems.
func RowErrorf(format string, args ...any) error {
	return &rowError{msg: fmt.Sprintf(format, args...)}
}

// deriveStatus maps the success/failure counts onto the job status.
func deriveStatus(successCount, failCount int) string {
	switch {
	case failCount == 0:
		return models.ImportSuccess
	case successCount > 0:
		return models.ImportPartialSuccess
	default:
		return models.ImportFailed
	}
}

// Run executes one import job over rows. The job record is created in
// processing state before the row loop and finalized exactly once at the
// end. Row errors are accumulated as 1-indexed messages; infrastructure
// errors from the store abort the batch and leave the job in processing
// state, which callers read as "job did not finish".
func Run[T any](ctx context.Context, e *Engine, jobType, jobPeriod, createdBy string, rows []T,
	process func(ctx context.Context, jobID string, row T) error) (*models.ImportJob, error) {

	ts := time.Now().UTC().Format(time.RFC3339)
	job := models.ImportJob{
		JobID:     ids.New("job"),
		Type:      jobType,
		Status:    models.ImportProcessing,
		Period:    jobPeriod,
		Errors:    []string{},
		CreatedBy: createdBy,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	jobDoc, err := store.Encode(job)
	if err != nil {
		return nil, apperr.From(err)
	}
	if _, err := e.store.Insert(ctx, store.ImportJobs, jobDoc); err != nil {
		return nil, apperr.From(err)
	}

	rowErrors := []string{}
	successCount := 0
	for i, row := range rows {
		if err := process(ctx, job.JobID, row); err != nil {
			var re *rowError
			if errors.As(err, &re) {
				rowErrors = append(rowErrors, fmt.Sprintf("row %d: %s", i+1, re.msg))
				continue
			}
			// Not a row-level problem: the batch cannot continue.
			e.logger.Error("Import batch aborted",
				zap.String("job_id", job.JobID),
				zap.Int("row", i+1),
				zap.Error(err))
			return nil, apperr.From(err)
		}
		successCount++
	}

	failCount := len(rowErrors)
	status := deriveStatus(successCount, failCount)
	ts = time.Now().UTC().Format(time.RFC3339)
	patch, err := models.PatchFields(models.ImportJobPatch{
		Status:       &status,
		SuccessCount: &successCount,
		FailCount:    &failCount,
		Errors:       &rowErrors,
		UpdatedAt:    &ts,
	})
	if err != nil {
		return nil, apperr.From(err)
	}
	finalDoc, err := e.store.UpdateByID(ctx, store.ImportJobs, "jobId", job.JobID, patch)
	if err != nil {
		return nil, apperr.From(err)
	}

	var final models.ImportJob
	if err := store.Decode(finalDoc, &final); err != nil {
		return nil, apperr.From(err)
	}
	e.logger.Info("Import job finished",
		zap.String("job_id", final.JobID),
		zap.String("type", jobType),
		zap.String("status", final.Status),
		zap.Int("success", final.SuccessCount),
		zap.Int("fail", final.FailCount))
	return &final, nil
}
