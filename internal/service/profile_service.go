package service

import (
	"context"
	"errors"
	"strings"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/repository"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
	"github.com/brayobiz/campus-hub-sub000/internal/validation"
)

// ProfileService backs the profile and settings screens.
type ProfileService struct {
	profiles repository.ProfileRepository
	campuses repository.CampusRepository
	stores   *store.Stores
}

type UpdateProfileInput struct {
	FullName string `json:"full_name" form:"full_name"`
	Year     string `json:"year" form:"year"`
	Bio      string `json:"bio" form:"bio"`
	// CampusID switches campus when set.
	CampusID string `json:"campus_id" form:"campus_id"`
}

// ProfileView is the profile screen.
type ProfileView struct {
	Profile *models.Profile         `json:"profile"`
	Campus  *models.CampusSelection `json:"campus,omitempty"`
}

func NewProfileService(client backend.Client, stores *store.Stores) *ProfileService {
	repos := repository.New(client.Tables())
	return &ProfileService{profiles: repos.Profiles, campuses: repos.Campuses, stores: stores}
}

// Get returns the profile of user. A user without a profile row gets an
// unsaved one prefilled from the session.
func (s *ProfileService) Get(ctx context.Context, user models.SessionUser) (*ProfileView, error) {
	profile, err := s.profiles.GetByID(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		profile = &models.Profile{Record: models.Record{ID: user.ID}, Email: user.Email, FullName: user.Name}
	} else if err != nil {
		return nil, backend.Wrap(err)
	}
	return &ProfileView{Profile: profile, Campus: s.stores.Campus.Get()}, nil
}

// Update saves profile fields and keeps the device stores in step: the
// display name follows full_name and a campus change replaces the campus
// selection.
func (s *ProfileService) Update(ctx context.Context, user models.SessionUser, in UpdateProfileInput) (*ProfileView, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Year = strings.TrimSpace(in.Year)
	in.Bio = strings.TrimSpace(in.Bio)
	if err := validation.ValidateFullName(in.FullName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateProfile(in.Year, in.Bio); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var campus *models.Campus
	if in.CampusID != "" {
		c, err := s.campuses.GetByID(ctx, in.CampusID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewValidationError("That campus does not exist")
		}
		if err != nil {
			return nil, backend.Wrap(err)
		}
		campus = c
	}

	if err := s.profiles.Upsert(ctx, &models.Profile{Record: models.Record{ID: user.ID}, Email: user.Email}); err != nil {
		return nil, backend.Wrap(err)
	}
	values := map[string]any{"full_name": in.FullName, "year": in.Year, "bio": in.Bio}
	if campus != nil {
		values["campus_id"] = campus.ID
	}
	if err := s.profiles.Update(ctx, user.ID, values); err != nil {
		return nil, backend.Wrap(err)
	}

	user.Name = models.DisplayNameFor(in.FullName, user.Email)
	if err := s.stores.User.Set(ctx, user); err != nil {
		return nil, models.NewInternalError(err)
	}
	if campus != nil {
		if err := s.stores.Campus.Set(ctx, campus.Selection()); err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	return s.Get(ctx, user)
}
