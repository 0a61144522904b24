package repository

import (
	"context"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
)

// ConfessionRepository covers confessions, their likes and comments.
type ConfessionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Confession, error)
	LikedIDs(ctx context.Context, userID string, confessionIDs []string) (map[string]bool, error)
	IsLiked(ctx context.Context, userID, confessionID string) (bool, error)
	Like(ctx context.Context, userID, confessionID string) error
	Unlike(ctx context.Context, userID, confessionID string) error
	CountLikes(ctx context.Context, confessionID string) (int64, error)
	ListComments(ctx context.Context, confessionID string, limit int) ([]models.ConfessionComment, error)
	AddComment(ctx context.Context, c *models.ConfessionComment) error
	CountComments(ctx context.Context, confessionID string) (int64, error)
	// SetCounters stores the authoritative like and comment counts.
	SetCounters(ctx context.Context, confessionID string, likes, comments int64) error
}

type confessionRepository struct {
	tables backend.Tables
}

// NewConfessionRepository creates a new confession repository
func NewConfessionRepository(tables backend.Tables) ConfessionRepository {
	return &confessionRepository{tables: tables}
}

func (r *confessionRepository) GetByID(ctx context.Context, id string) (*models.Confession, error) {
	return first[models.Confession](ctx, r.tables, models.TableConfessions, backend.Eq("id", id))
}

func (r *confessionRepository) LikedIDs(ctx context.Context, userID string, confessionIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool, len(confessionIDs))
	if userID == "" || len(confessionIDs) == 0 {
		return liked, nil
	}
	var likes []models.ConfessionLike
	if err := r.tables.Select(ctx, backend.Query{
		Table:   models.TableConfessionLikes,
		Filters: []backend.Filter{backend.Eq("user_id", userID)},
	}, &likes); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(confessionIDs))
	for _, id := range confessionIDs {
		wanted[id] = struct{}{}
	}
	for _, l := range likes {
		if _, ok := wanted[l.ConfessionID]; ok {
			liked[l.ConfessionID] = true
		}
	}
	return liked, nil
}

func (r *confessionRepository) IsLiked(ctx context.Context, userID, confessionID string) (bool, error) {
	n, err := r.tables.Count(ctx, models.TableConfessionLikes,
		backend.Eq("confession_id", confessionID), backend.Eq("user_id", userID))
	return n > 0, err
}

func (r *confessionRepository) Like(ctx context.Context, userID, confessionID string) error {
	liked, err := r.IsLiked(ctx, userID, confessionID)
	if err != nil || liked {
		return err
	}
	return r.tables.Insert(ctx, models.TableConfessionLikes, &models.ConfessionLike{
		ConfessionID: confessionID,
		UserID:       userID,
	})
}

func (r *confessionRepository) Unlike(ctx context.Context, userID, confessionID string) error {
	return r.tables.Delete(ctx, models.TableConfessionLikes,
		backend.Eq("confession_id", confessionID), backend.Eq("user_id", userID))
}

func (r *confessionRepository) CountLikes(ctx context.Context, confessionID string) (int64, error) {
	return r.tables.Count(ctx, models.TableConfessionLikes, backend.Eq("confession_id", confessionID))
}

func (r *confessionRepository) ListComments(ctx context.Context, confessionID string, limit int) ([]models.ConfessionComment, error) {
	rows := make([]models.ConfessionComment, 0)
	err := r.tables.Select(ctx, backend.Query{
		Table:   models.TableConfessionComments,
		Filters: []backend.Filter{backend.Eq("confession_id", confessionID)},
		OrderBy: "created_at",
		Limit:   limit,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *confessionRepository) AddComment(ctx context.Context, c *models.ConfessionComment) error {
	return r.tables.Insert(ctx, models.TableConfessionComments, c)
}

func (r *confessionRepository) CountComments(ctx context.Context, confessionID string) (int64, error) {
	return r.tables.Count(ctx, models.TableConfessionComments, backend.Eq("confession_id", confessionID))
}

func (r *confessionRepository) SetCounters(ctx context.Context, confessionID string, likes, comments int64) error {
	return r.tables.Update(ctx, models.TableConfessions,
		map[string]any{"likes_count": likes, "comments_count": comments},
		backend.Eq("id", confessionID))
}
