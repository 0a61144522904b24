package service

import (
	"context"
	"errors"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/repository"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
)

// CampusService backs the campus picker.
type CampusService struct {
	campuses repository.CampusRepository
	profiles repository.ProfileRepository
	stores   *store.Stores
}

func NewCampusService(client backend.Client, stores *store.Stores) *CampusService {
	repos := repository.New(client.Tables())
	return &CampusService{campuses: repos.Campuses, profiles: repos.Profiles, stores: stores}
}

// List returns every campus, alphabetically.
func (s *CampusService) List(ctx context.Context) ([]models.Campus, error) {
	campuses, err := s.campuses.List(ctx)
	if err != nil {
		return nil, backend.Wrap(err)
	}
	return campuses, nil
}

// Select records campusID on the user's profile and in the campus store.
func (s *CampusService) Select(ctx context.Context, user models.SessionUser, campusID string) (*models.CampusSelection, error) {
	if campusID == "" {
		return nil, models.NewValidationError("Please choose a campus")
	}
	campus, err := s.campuses.GetByID(ctx, campusID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.NewValidationError("That campus does not exist")
	}
	if err != nil {
		return nil, backend.Wrap(err)
	}

	err = s.profiles.Upsert(ctx, &models.Profile{
		Record:   models.Record{ID: user.ID},
		Email:    user.Email,
		CampusID: campus.ID,
	})
	if err != nil {
		return nil, backend.Wrap(err)
	}

	sel := campus.Selection()
	if err := s.stores.Campus.Set(ctx, sel); err != nil {
		return nil, models.NewInternalError(err)
	}
	return &sel, nil
}
