// Package user bootstraps and resolves principals. The transport-level
// identity mechanism stays outside the engine; this service only maintains
// the user records the authorization predicates read.
package user

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/internal/store"
	"github.com/lijunhao/projfin/pkg/ids"
)

// RoleDirectory maps phone numbers onto elevated roles, configured by ops.
type RoleDirectory struct {
	AdminPhones   []string
	FinancePhones []string
}

// roleFor returns the elevated role a phone number is entitled to, or the
// current role when no entry matches.
func (d RoleDirectory) roleFor(phone string, current models.Role) models.Role {
	if phone == "" {
		return current
	}
	for _, p := range d.AdminPhones {
		if p == phone {
			return models.RoleAdmin
		}
	}
	for _, p := range d.FinancePhones {
		if p == phone {
			return models.RoleFinance
		}
	}
	return current
}

// Service manages user records.
type Service struct {
	store     store.Store
	directory RoleDirectory
	logger    *zap.Logger
}

// NewService creates a user service.
func NewService(st store.Store, directory RoleDirectory, logger *zap.Logger) *Service {
	return &Service{store: st, directory: directory, logger: logger}
}

// LoginInput carries an externally resolved identity.
type LoginInput struct {
	ExternalID string `json:"externalId"`
	Phone      string `json:"phone"`
	Name       string `json:"name"`
}

// Login upserts the user for an external identity and applies any role
// promotion the directory grants. New users start as applicants.
func (s *Service) Login(ctx context.Context, in LoginInput, fallbackExternalID string) (*models.User, error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		externalID = strings.TrimSpace(fallbackExternalID)
	}
	if externalID == "" {
		return nil, apperr.Unauthorized("missing external identity")
	}

	phone := strings.TrimSpace(in.Phone)
	name := strings.TrimSpace(in.Name)
	ts := time.Now().UTC().Format(time.RFC3339)

	doc, err := s.store.FindOne(ctx, store.Users, store.Query{"externalId": externalID})
	if err != nil {
		return nil, apperr.From(err)
	}

	var current models.User
	if doc == nil {
		current = models.User{
			UserID:     ids.New("user"),
			ExternalID: externalID,
			Phone:      phone,
			Name:       name,
			Role:       models.RoleApplicant,
			Status:     "active",
			CreatedAt:  ts,
			UpdatedAt:  ts,
		}
		created, err := store.Encode(current)
		if err != nil {
			return nil, apperr.From(err)
		}
		if _, err := s.store.Insert(ctx, store.Users, created); err != nil {
			return nil, apperr.From(err)
		}
	} else {
		if err := store.Decode(doc, &current); err != nil {
			return nil, apperr.From(err)
		}
		patch := models.UserPatch{UpdatedAt: &ts}
		if phone != "" {
			patch.Phone = &phone
		}
		if name != "" {
			patch.Name = &name
		}
		fields, err := models.PatchFields(patch)
		if err != nil {
			return nil, apperr.From(err)
		}
		updated, err := s.store.UpdateByID(ctx, store.Users, "userId", current.UserID, fields)
		if err != nil {
			return nil, apperr.From(err)
		}
		if err := store.Decode(updated, &current); err != nil {
			return nil, apperr.From(err)
		}
	}

	if target := s.directory.roleFor(current.Phone, current.Role); target != current.Role {
		fields, err := models.PatchFields(models.UserPatch{Role: &target, UpdatedAt: &ts})
		if err != nil {
			return nil, apperr.From(err)
		}
		updated, err := s.store.UpdateByID(ctx, store.Users, "userId", current.UserID, fields)
		if err != nil {
			return nil, apperr.From(err)
		}
		if err := store.Decode(updated, &current); err != nil {
			return nil, apperr.From(err)
		}
		s.logger.Info("User role promoted",
			zap.String("user_id", current.UserID),
			zap.String("role", string(target)))
	}
	return &current, nil
}

// GetByID resolves a user by id, returning Unauthorized when absent so the
// HTTP layer can reject stale tokens uniformly.
func (s *Service) GetByID(ctx context.Context, userID string) (*models.User, error) {
	doc, err := s.store.FindOne(ctx, store.Users, store.Query{"userId": userID})
	if err != nil {
		return nil, apperr.From(err)
	}
	if doc == nil {
		return nil, apperr.Unauthorized("user not found")
	}
	var u models.User
	if err := store.Decode(doc, &u); err != nil {
		return nil, apperr.From(err)
	}
	return &u, nil
}
