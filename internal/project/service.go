// Package project manages the project registry and the manually maintained
// per-period labor and tax-fee records.
package project

import (
	"context"
	"sort"
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

// Service implements project operations.
type Service struct {
	store  store.Store
	audit  *audit.Recorder
	logger *zap.Logger
}

// NewService creates a project service.
func NewService(st store.Store, recorder *audit.Recorder, logger *zap.Logger) *Service {
	return &Service{store: st, audit: recorder, logger: logger}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// EnsureExists auto-creates a project on first reference. Returns the
// existing or newly created project; blank ids yield nil without error.
func (s *Service) EnsureExists(ctx context.Context, projectID, operatorID string) (*models.Project, error) {
	normalized := strings.TrimSpace(projectID)
	if normalized == "" {
		return nil, nil
	}

	doc, err := s.store.FindOne(ctx, store.Projects, store.Query{"projectId": normalized})
	if err != nil {
		return nil, apperr.From(err)
	}
	if doc != nil {
		var existing models.Project
		if err := store.Decode(doc, &existing); err != nil {
			return nil, apperr.From(err)
		}
		return &existing, nil
	}

	if operatorID == "" {
		operatorID = "system"
	}
	created := models.Project{
		ProjectID: normalized,
		Name:      normalized,
		Status:    models.ProjectActive,
		Source:    "auto",
		CreatedBy: operatorID,
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	createdDoc, err := store.Encode(created)
	if err != nil {
		return nil, apperr.From(err)
	}
	if _, err := s.store.Insert(ctx, store.Projects, createdDoc); err != nil {
		return nil, apperr.From(err)
	}
	s.logger.Info("Project auto-created", zap.String("project_id", normalized))
	return &created, nil
}

// UpsertInput carries a manual project create-or-update.
type UpsertInput struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	Status    string `json:"status"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Upsert creates or updates a project. Finance/admin only.
func (s *Service) Upsert(ctx context.Context, in UpsertInput, actor *models.User) (*models.Project, error) {
	if err := auth.RequireFinanceOrAdmin(actor); err != nil {
		return nil, err
	}

	projectID := strings.TrimSpace(in.ProjectID)
	name := strings.TrimSpace(in.Name)
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = models.ProjectActive
	}
	if projectID == "" {
		return nil, apperr.Validation("projectId is required")
	}
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	switch status {
	case models.ProjectActive, models.ProjectArchived, models.ProjectDisabled:
	default:
		return nil, apperr.Validation("status must be active, archived or disabled")
	}

	ts := now()
	existingDoc, err := s.store.FindOne(ctx, store.Projects, store.Query{"projectId": projectID})
	if err != nil {
		return nil, apperr.From(err)
	}

	var saved models.Project
	if existingDoc != nil {
		patch := models.ProjectPatch{
			Name:      &name,
			Owner:     models.Ptr(strings.TrimSpace(in.Owner)),
			Status:    &status,
			UpdatedBy: &actor.UserID,
			UpdatedAt: &ts,
		}
		if in.StartDate != "" {
			patch.StartDate = models.Ptr(strings.TrimSpace(in.StartDate))
		}
		if in.EndDate != "" {
			patch.EndDate = models.Ptr(strings.TrimSpace(in.EndDate))
		}
		fields, err := models.PatchFields(patch)
		if err != nil {
			return nil, apperr.From(err)
		}
		updated, err := s.store.UpdateByID(ctx, store.Projects, "projectId", projectID, fields)
		if err != nil {
			return nil, apperr.From(err)
		}
		if err := store.Decode(updated, &saved); err != nil {
			return nil, apperr.From(err)
		}
	} else {
		saved = models.Project{
			ProjectID: projectID,
			Name:      name,
			Owner:     strings.TrimSpace(in.Owner),
			Status:    status,
			StartDate: strings.TrimSpace(in.StartDate),
			EndDate:   strings.TrimSpace(in.EndDate),
			Source:    "manual",
			CreatedBy: actor.UserID,
			UpdatedBy: actor.UserID,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		doc, err := store.Encode(saved)
		if err != nil {
			return nil, apperr.From(err)
		}
		if _, err := s.store.Insert(ctx, store.Projects, doc); err != nil {
			return nil, apperr.From(err)
		}
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "project.upsert",
		UserID:     actor.UserID,
		TargetType: "project",
		TargetID:   projectID,
		Payload:    map[string]any{"name": name, "status": status},
	})
	return &saved, nil
}

// List returns projects visible to the actor, sorted by project id.
// Disabled projects are only included for privileged callers asking for them.
func (s *Service) List(ctx context.Context, keyword string, includeDisabled bool, actor *models.User) ([]models.Project, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("no resolved identity")
	}
	includeDisabled = includeDisabled && auth.HasCapability(actor, auth.FinanceOrAdmin...)
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	docs, err := s.store.List(ctx, store.Projects)
	if err != nil {
		return nil, apperr.From(err)
	}
	projects, err := store.DecodeAll[models.Project](docs)
	if err != nil {
		return nil, apperr.From(err)
	}

	out := []models.Project{}
	for _, p := range projects {
		if !includeDisabled && p.Status == models.ProjectDisabled {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(p.ProjectID), keyword) &&
			!strings.Contains(strings.ToLower(p.Name), keyword) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

// PeriodDataInput carries one manual labor+tax upsert for a project period.
type PeriodDataInput struct {
	ProjectID    string   `json:"projectId"`
	Period       string   `json:"period"`
	LaborAmount  *float64 `json:"laborAmount"`
	TaxFeeAmount *float64 `json:"taxFeeAmount"`
}

// UpsertPeriodData upserts the labor allocation and tax fee for one
// (projectId, period). Finance/admin only; one record per key.
func (s *Service) UpsertPeriodData(ctx context.Context, in PeriodDataInput, actor *models.User) (*models.LaborAllocation, *models.TaxFee, error) {
	if err := auth.RequireFinanceOrAdmin(actor); err != nil {
		return nil, nil, err
	}

	projectID := strings.TrimSpace(in.ProjectID)
	if projectID == "" {
		return nil, nil, apperr.Validation("projectId is required")
	}
	p, ok := period.Normalize(in.Period)
	if !ok {
		return nil, nil, apperr.Validation("period must be formatted YYYY-MM")
	}
	if in.LaborAmount == nil || *in.LaborAmount < 0 {
		return nil, nil, apperr.Validation("laborAmount must be >= 0")
	}
	if in.TaxFeeAmount == nil || *in.TaxFeeAmount < 0 {
		return nil, nil, apperr.Validation("taxFeeAmount must be >= 0")
	}
	if _, err := s.EnsureExists(ctx, projectID, actor.UserID); err != nil {
		return nil, nil, err
	}

	ts := now()
	key := store.Query{"projectId": projectID, "period": p}

	laborDoc, err := s.store.UpsertOne(ctx, store.LaborAllocation, key,
		store.Doc{
			"laborAmount": money.Round2(*in.LaborAmount),
			"source":      "manual",
			"updatedBy":   actor.UserID,
			"updatedAt":   ts,
		},
		store.Doc{"allocationId": ids.New("labor"), "createdAt": ts})
	if err != nil {
		return nil, nil, apperr.From(err)
	}

	taxDoc, err := s.store.UpsertOne(ctx, store.ProjectTaxFees, key,
		store.Doc{
			"taxFeeAmount": money.Round2(*in.TaxFeeAmount),
			"source":       "manual",
			"updatedBy":    actor.UserID,
			"updatedAt":    ts,
		},
		store.Doc{"feeId": ids.New("tax"), "createdAt": ts})
	if err != nil {
		return nil, nil, apperr.From(err)
	}

	var labor models.LaborAllocation
	var tax models.TaxFee
	if err := store.Decode(laborDoc, &labor); err != nil {
		return nil, nil, apperr.From(err)
	}
	if err := store.Decode(taxDoc, &tax); err != nil {
		return nil, nil, apperr.From(err)
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "project.period.upsert",
		UserID:     actor.UserID,
		TargetType: "project_period",
		TargetID:   projectID + ":" + p,
		Payload: map[string]any{
			"laborAmount":  labor.LaborAmount,
			"taxFeeAmount": tax.TaxFeeAmount,
		},
	})
	return &labor, &tax, nil
}
