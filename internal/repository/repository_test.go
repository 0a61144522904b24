package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/brayobiz/campus-hub-sub000/internal/backend/stub"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository_UpsertCreatesThenUpdates(t *testing.T) {
	repos := New(testutil.NewPlatform(t).ClientFor("dev-1").Tables())
	ctx := context.Background()

	_, err := repos.Profiles.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repos.Profiles.Upsert(ctx, &models.Profile{Record: models.Record{ID: "u1"}, Email: "a@uni.edu", FullName: "Ann"}))
	require.NoError(t, repos.Profiles.Upsert(ctx, &models.Profile{Record: models.Record{ID: "u1"}, CampusID: "c1"}))

	p, err := repos.Profiles.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.FullName)
	assert.Equal(t, "c1", p.CampusID)
}

func TestCampusRepository_ListAndGet(t *testing.T) {
	client := testutil.NewPlatform(t).ClientFor("dev-1")
	south := testutil.SeedCampus(t, client.Tables(), "South Campus", "SC")
	testutil.SeedCampus(t, client.Tables(), "North Campus", "NC")
	repos := New(client.Tables())
	ctx := context.Background()

	list, err := repos.Campuses.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "North Campus", list[0].Name)

	got, err := repos.Campuses.GetByID(ctx, south.ID)
	require.NoError(t, err)
	assert.Equal(t, "SC", got.ShortName)

	_, err = repos.Campuses.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeedRepository_ListByCampusIsScoped(t *testing.T) {
	repos := New(testutil.NewPlatform(t).ClientFor("dev-1").Tables())
	ctx := context.Background()

	for _, campus := range []string{"north", "north", "south"} {
		require.NoError(t, repos.Food.Create(ctx, &models.FoodItem{
			CampusScoped: models.CampusScoped{CampusID: campus, UserID: "u1"},
			Name:         "Githeri",
		}))
	}
	rows, err := repos.Food.ListByCampus(ctx, "north", 50)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, models.TableFood, repos.Food.Table())

	empty, err := repos.Food.ListByCampus(ctx, "east", 50)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestConfessionRepository_LikesAndComments(t *testing.T) {
	tables := testutil.NewPlatform(t).ClientFor("dev-1").Tables()
	repos := New(tables)
	ctx := context.Background()

	c := models.Confession{CampusScoped: models.CampusScoped{CampusID: "north", UserID: "u1"}, Content: "I love the library"}
	require.NoError(t, tables.Insert(ctx, models.TableConfessions, &c))

	require.NoError(t, repos.Confessions.Like(ctx, "u2", c.ID))
	require.NoError(t, repos.Confessions.Like(ctx, "u2", c.ID), "liking twice is a no-op")
	n, err := repos.Confessions.CountLikes(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	liked, err := repos.Confessions.LikedIDs(ctx, "u2", []string{c.ID, "other"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{c.ID: true}, liked)

	require.NoError(t, repos.Confessions.AddComment(ctx, &models.ConfessionComment{ConfessionID: c.ID, UserID: "u3", Content: "same"}))
	comments, err := repos.Confessions.ListComments(ctx, c.ID, 20)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	require.NoError(t, repos.Confessions.SetCounters(ctx, c.ID, 1, 1))
	got, err := repos.Confessions.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)
	assert.Equal(t, 1, got.CommentsCount)

	require.NoError(t, repos.Confessions.Unlike(ctx, "u2", c.ID))
	liked2, err := repos.Confessions.IsLiked(ctx, "u2", c.ID)
	require.NoError(t, err)
	assert.False(t, liked2)
}

func TestNotificationRepository_MarkReadIsOwnerScoped(t *testing.T) {
	repos := New(testutil.NewPlatform(t).ClientFor("dev-1").Tables())
	ctx := context.Background()

	n := models.Notification{UserID: "u1", Type: "comment", Title: "New comment"}
	require.NoError(t, repos.Notifications.Create(ctx, &n))

	require.NoError(t, repos.Notifications.MarkRead(ctx, "intruder", n.ID))
	unread, err := repos.Notifications.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, repos.Notifications.MarkRead(ctx, "u1", n.ID))
	unread, err = repos.Notifications.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestRepositories_StubBackendReadsEmpty(t *testing.T) {
	repos := New(stub.NewProvider().ClientFor("dev-1").Tables())
	ctx := context.Background()

	list, err := repos.Campuses.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = repos.Profiles.GetByID(ctx, "u1")
	assert.True(t, errors.Is(err, ErrNotFound))
}
