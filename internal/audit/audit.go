// Package audit writes the append-only operation log. Recording is
// best-effort: a failed audit write is logged and swallowed so it can never
// roll back the business mutation it describes.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/internal/store"
	"github.com/lijunhao/projfin/pkg/ids"
)

// Entry describes one audited operation.
type Entry struct {
	Action     string
	UserID     string
	TargetType string
	TargetID   string
	Payload    any
}

// Recorder appends operation log records to the store.
type Recorder struct {
	store  store.Store
	logger *zap.Logger
}

// NewRecorder creates an audit recorder.
func NewRecorder(st store.Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: st, logger: logger}
}

// Record appends one audit entry, fire-and-forget.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	log := models.OperationLog{
		LogID:      ids.New("log"),
		Action:     entry.Action,
		UserID:     entry.UserID,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Payload:    entry.Payload,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	doc, err := store.Encode(log)
	if err == nil {
		_, err = r.store.Insert(ctx, store.OperationLogs, doc)
	}
	if err != nil {
		r.logger.Warn("Failed to write operation log",
			zap.String("action", entry.Action),
			zap.String("target_id", entry.TargetID),
			zap.Error(err))
	}
}
