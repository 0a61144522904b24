package repository

import (
	"context"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/cache"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
)

// CampusRepository reads the campus catalogue. Results are cached in Redis
// when a client is configured.
type CampusRepository interface {
	List(ctx context.Context) ([]models.Campus, error)
	GetByID(ctx context.Context, id string) (*models.Campus, error)
}

type campusRepository struct {
	tables backend.Tables
}

// NewCampusRepository creates a new campus repository
func NewCampusRepository(tables backend.Tables) CampusRepository {
	return &campusRepository{tables: tables}
}

func (r *campusRepository) List(ctx context.Context) ([]models.Campus, error) {
	campuses := make([]models.Campus, 0)
	err := cache.Aside(ctx, cache.CampusListKey, &campuses, cache.CampusListTTL, func() error {
		return r.tables.Select(ctx, backend.Query{Table: models.TableCampuses, OrderBy: "name"}, &campuses)
	})
	if err != nil {
		return nil, err
	}
	return campuses, nil
}

func (r *campusRepository) GetByID(ctx context.Context, id string) (*models.Campus, error) {
	var campus *models.Campus
	err := cache.Aside(ctx, cache.CampusKey(id), &campus, cache.CampusTTL, func() error {
		var err error
		campus, err = first[models.Campus](ctx, r.tables, models.TableCampuses, backend.Eq("id", id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return campus, nil
}
