// Package repository provides typed access to backend collections.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("record not found")

// first selects at most one row matching filters.
func first[T any](ctx context.Context, tables backend.Tables, table string, filters ...backend.Filter) (*T, error) {
	var rows []T
	if err := tables.Select(ctx, backend.Query{Table: table, Filters: filters, Limit: 1}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return &rows[0], nil
}

// Repositories bundles every repository over one backend client.
type Repositories struct {
	Profiles      ProfileRepository
	Campuses      CampusRepository
	Confessions   ConfessionRepository
	Notifications NotificationRepository
	Marketplace   FeedRepository[models.MarketplaceListing]
	Events        FeedRepository[models.Event]
	Food          FeedRepository[models.FoodItem]
	Notes         FeedRepository[models.Note]
	Roommates     FeedRepository[models.RoommatePost]
}

// New wires every repository to tables.
func New(tables backend.Tables) *Repositories {
	return &Repositories{
		Profiles:      NewProfileRepository(tables),
		Campuses:      NewCampusRepository(tables),
		Confessions:   NewConfessionRepository(tables),
		Notifications: NewNotificationRepository(tables),
		Marketplace:   NewFeedRepository[models.MarketplaceListing](tables, models.TableMarketplace),
		Events:        NewFeedRepository[models.Event](tables, models.TableEvents),
		Food:          NewFeedRepository[models.FoodItem](tables, models.TableFood),
		Notes:         NewFeedRepository[models.Note](tables, models.TableNotes),
		Roommates:     NewFeedRepository[models.RoommatePost](tables, models.TableRoommates),
	}
}
