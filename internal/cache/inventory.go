package cache

import (
	"context"
	"time"
)

const (
	CampusListKey   = "campuses:all"
	CampusKeyPrefix = "campus:"
)

const (
	CampusListTTL = 10 * time.Minute
	CampusTTL     = 10 * time.Minute
)

func CampusKey(id string) string {
	return CampusKeyPrefix + id
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateCampuses drops the campus list and, when given, single campus entries.
func InvalidateCampuses(ctx context.Context, ids ...string) {
	Invalidate(ctx, CampusListKey)
	for _, id := range ids {
		Invalidate(ctx, CampusKey(id))
	}
}
