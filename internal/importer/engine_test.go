package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/internal/store"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name         string
		successCount int
		failCount    int
		expected     string
	}{
		{name: "all rows succeeded", successCount: 3, failCount: 0, expected: models.ImportSuccess},
		{name: "mixed outcome", successCount: 2, failCount: 1, expected: models.ImportPartialSuccess},
		{name: "all rows failed", successCount: 0, failCount: 3, expected: models.ImportFailed},
		{name: "empty batch", successCount: 0, failCount: 0, expected: models.ImportSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, deriveStatus(tt.successCount, tt.failCount))
		})
	}
}

func TestRunCountsRowOutcomes(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, zap.NewNop())

	rows := []int{1, 2, 3, 4}
	job, err := Run(context.Background(), engine, "paper_excel", "2025-07", "user_fin", rows,
		func(_ context.Context, jobID string, row int) error {
			assert.NotEmpty(t, jobID)
			if row%2 == 0 {
				return RowErrorf("even rows are no good")
			}
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, models.ImportPartialSuccess, job.Status)
	assert.Equal(t, 2, job.SuccessCount)
	assert.Equal(t, 2, job.FailCount)
	assert.Equal(t, len(rows), job.SuccessCount+job.FailCount)
	require.Len(t, job.Errors, 2)
	assert.Equal(t, "row 2: even rows are no good", job.Errors[0])
	assert.Equal(t, "row 4: even rows are no good", job.Errors[1])
}

func TestRunInfrastructureErrorAborts(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, zap.NewNop())

	boom := errors.New("store unavailable")
	_, err := Run(context.Background(), engine, "paper_excel", "2025-07", "user_fin", []int{1, 2},
		func(context.Context, string, int) error { return boom })
	require.Error(t, err)

	// The job record stays in processing state: it did not finish.
	docs, listErr := st.List(context.Background(), store.ImportJobs)
	require.NoError(t, listErr)
	require.Len(t, docs, 1)
	assert.Equal(t, models.ImportProcessing, docs[0]["status"])
}

func TestRunEmptyBatch(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, zap.NewNop())

	job, err := Run(context.Background(), engine, "erp_pull", "2025-07", "user_fin", []int{},
		func(context.Context, string, int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, models.ImportSuccess, job.Status)
	assert.Equal(t, 0, job.SuccessCount)
	assert.Equal(t, 0, job.FailCount)
	assert.Empty(t, job.Errors)
}
