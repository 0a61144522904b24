package repository

import (
	"context"
	"errors"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
)

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	GetByID(ctx context.Context, userID string) (*models.Profile, error)
	// Upsert creates the profile or updates its editable fields.
	Upsert(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, userID string, values map[string]any) error
}

type profileRepository struct {
	tables backend.Tables
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(tables backend.Tables) ProfileRepository {
	return &profileRepository{tables: tables}
}

func (r *profileRepository) GetByID(ctx context.Context, userID string) (*models.Profile, error) {
	return first[models.Profile](ctx, r.tables, models.TableProfiles, backend.Eq("id", userID))
}

func (r *profileRepository) Upsert(ctx context.Context, profile *models.Profile) error {
	existing, err := r.GetByID(ctx, profile.ID)
	if errors.Is(err, ErrNotFound) {
		return r.tables.Insert(ctx, models.TableProfiles, profile)
	}
	if err != nil {
		return err
	}
	values := map[string]any{}
	if profile.Email != "" && profile.Email != existing.Email {
		values["email"] = profile.Email
	}
	if profile.FullName != "" {
		values["full_name"] = profile.FullName
	}
	if profile.CampusID != "" {
		values["campus_id"] = profile.CampusID
	}
	if len(values) == 0 {
		return nil
	}
	return r.Update(ctx, profile.ID, values)
}

func (r *profileRepository) Update(ctx context.Context, userID string, values map[string]any) error {
	return r.tables.Update(ctx, models.TableProfiles, values, backend.Eq("id", userID))
}
