package content

import (
	"context"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
)

const alertsLimit = 50

// Alerts is the alerts screen of a user.
type Alerts struct {
	Items  []models.Notification `json:"items"`
	Unread int64                 `json:"unread"`
}

// Alerts lists the newest notifications of userID.
func (s *Service) Alerts(ctx context.Context, userID string) (*Alerts, error) {
	items, err := s.repos.Notifications.ListForUser(ctx, userID, alertsLimit)
	if err != nil {
		return nil, backend.Wrap(err)
	}
	unread, err := s.repos.Notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, backend.Wrap(err)
	}
	return &Alerts{Items: items, Unread: unread}, nil
}

// MarkAlertRead marks one notification of userID as read.
func (s *Service) MarkAlertRead(ctx context.Context, userID, id string) error {
	if err := s.repos.Notifications.MarkRead(ctx, userID, id); err != nil {
		return backend.Wrap(err)
	}
	return nil
}

// notify records an alert. Failures are logged; the action that caused the
// alert has already succeeded.
func (s *Service) notify(ctx context.Context, n *models.Notification) {
	if n.UserID == "" {
		return
	}
	if err := s.repos.Notifications.Create(ctx, n); err != nil {
		observability.LogAsyncOperationError(ctx, "notification.create", err, map[string]any{"type": n.Type})
	}
}
