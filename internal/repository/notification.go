package repository

import (
	"context"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
)

// NotificationRepository stores alerts addressed to users.
type NotificationRepository interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	Create(ctx context.Context, n *models.Notification) error
	MarkRead(ctx context.Context, userID, id string) error
}

type notificationRepository struct {
	tables backend.Tables
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(tables backend.Tables) NotificationRepository {
	return &notificationRepository{tables: tables}
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	rows := make([]models.Notification, 0)
	err := r.tables.Select(ctx, backend.Query{
		Table:   models.TableNotifications,
		Filters: []backend.Filter{backend.Eq("user_id", userID)},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	return r.tables.Count(ctx, models.TableNotifications, backend.Eq("user_id", userID), backend.Eq("read", false))
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.tables.Insert(ctx, models.TableNotifications, n)
}

// MarkRead only touches the row when it belongs to userID.
func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	return r.tables.Update(ctx, models.TableNotifications, map[string]any{"read": true},
		backend.Eq("id", id), backend.Eq("user_id", userID))
}
