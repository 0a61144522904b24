package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/backend/stub"
	"github.com/brayobiz/campus-hub-sub000/internal/feed"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/postform"
	"github.com/brayobiz/campus-hub-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	client backend.Client
	svc    *Service
	author Author
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := testutil.NewPlatform(t).ClientFor("dev-1")
	campus := testutil.SeedCampus(t, client.Tables(), "Moi University", "MU")
	return &fixture{
		client: client,
		svc:    New(client),
		author: Author{
			User:   models.SessionUser{ID: "u-amina", Email: "amina@mu.ac.ke", Name: "Amina"},
			Campus: campus.Selection(),
		},
	}
}

func memFile(name, contentType string, data []byte) postform.File {
	return postform.File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func submit(t *testing.T, f *fixture, d Domain, values map[string]string, files map[string][]postform.File) (postform.Outcome, *postform.Form, error) {
	t.Helper()
	form := f.svc.NewForm(d, f.author, FormOptions{SuccessDelay: time.Minute})
	t.Cleanup(form.Close)
	outcome, err := form.Submit(context.Background(), values, files)
	return outcome, form, err
}

func loadFeed(t *testing.T, f *fixture, d Domain, viewer string) any {
	t.Helper()
	campus := f.author.Campus
	s := f.svc.OpenFeed(d, &campus, viewer, feed.Options{})
	t.Cleanup(s.Close)
	return s.Refresh(context.Background(), false)
}

func TestParseDomain(t *testing.T) {
	for _, d := range Domains {
		got, ok := ParseDomain(string(d))
		assert.True(t, ok)
		assert.Equal(t, d, got)
		assert.NotEmpty(t, d.Table())
		assert.NotEmpty(t, Fields(d))
	}
	_, ok := ParseDomain("gossip")
	assert.False(t, ok)
}

func TestConfession_AnonymousByDefault(t *testing.T) {
	f := newFixture(t)
	outcome, _, err := submit(t, f, Confessions, map[string]string{"content": "I still don't know where LT4 is"}, nil)
	require.NoError(t, err)
	assert.Equal(t, postform.Succeeded, outcome)

	_, _, err = submit(t, f, Confessions, map[string]string{"content": "Signed one", "anonymous": "false"}, nil)
	require.NoError(t, err)

	v := loadFeed(t, f, Confessions, "").(feed.View[models.Confession])
	require.Len(t, v.Items, 2)
	byContent := map[string]models.Confession{}
	for _, c := range v.Items {
		byContent[c.Content] = c
	}
	assert.True(t, byContent["I still don't know where LT4 is"].IsAnonymous)
	assert.Empty(t, byContent["I still don't know where LT4 is"].AuthorName)
	assert.Equal(t, "Amina", byContent["Signed one"].AuthorName)
}

func TestConfession_AnonymousAuthorHiddenFromEveryViewer(t *testing.T) {
	f := newFixture(t)
	_, _, err := submit(t, f, Confessions, map[string]string{"content": "secret crush"}, nil)
	require.NoError(t, err)

	for _, viewer := range []string{"", "someone-else", "u-amina"} {
		v := loadFeed(t, f, Confessions, viewer).(feed.View[models.Confession])
		require.Len(t, v.Items, 1)
		got := v.Items[0]
		assert.Empty(t, got.UserID, "viewer %q", viewer)
		assert.Empty(t, got.AuthorName, "viewer %q", viewer)
		assert.Equal(t, viewer == "u-amina", got.Mine, "viewer %q", viewer)

		raw, err := json.Marshal(got)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "user_id")
		assert.NotContains(t, string(raw), "u-amina")
	}
}

func TestComment_ForViewerHidesIDsAndAnonymousAuthor(t *testing.T) {
	parent := &models.Confession{CampusScoped: models.CampusScoped{UserID: "u-amina"}, IsAnonymous: true}
	byAuthor := models.ConfessionComment{UserID: "u-amina", AuthorName: "Amina", Content: "thanks all"}
	byOther := models.ConfessionComment{UserID: "u-juma", AuthorName: "Juma", Content: "same"}

	got := byAuthor.ForViewer("u-juma", parent)
	assert.Empty(t, got.UserID)
	assert.Empty(t, got.AuthorName)
	assert.True(t, got.ByAuthor)
	assert.False(t, got.Mine)

	got = byOther.ForViewer("u-juma", parent)
	assert.Empty(t, got.UserID)
	assert.Equal(t, "Juma", got.AuthorName)
	assert.False(t, got.ByAuthor)
	assert.True(t, got.Mine)

	parent.IsAnonymous = false
	got = byAuthor.ForViewer("u-juma", parent)
	assert.Equal(t, "Amina", got.AuthorName)
	assert.False(t, got.ByAuthor)
}

func TestMarketplace_ValidatesPriceAndPhotos(t *testing.T) {
	f := newFixture(t)

	outcome, form, err := submit(t, f, Marketplace, map[string]string{"title": "Desk lamp", "price": "cheap"}, nil)
	assert.Error(t, err)
	assert.Equal(t, postform.Failed, outcome)
	assert.Equal(t, "Price must be a number", form.State().Error)
	assert.Equal(t, "Desk lamp", form.State().Values["title"])

	_, form, _ = submit(t, f, Marketplace, map[string]string{"title": "Desk lamp", "price": "-5"}, nil)
	assert.Equal(t, "Price cannot be negative", form.State().Error)

	png := testutil.PNG(t, 8, 8)
	photos := make([]postform.File, MaxListingImages+1)
	for i := range photos {
		photos[i] = memFile("p.png", "image/png", png)
	}
	_, form, _ = submit(t, f, Marketplace, map[string]string{"title": "Desk lamp", "price": "500"}, map[string][]postform.File{"images": photos})
	assert.Equal(t, "You can add up to 5 photos", form.State().Error)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr string
	}{
		{raw: "1,200", want: 1200},
		{raw: " 45.5 ", want: 45.5},
		{raw: "0", want: 0},
		{raw: "-0", want: 0},
		{raw: "-5", wantErr: "Price cannot be negative"},
		{raw: "NaN", wantErr: "Price must be a number"},
		{raw: "nan", wantErr: "Price must be a number"},
		{raw: "Inf", wantErr: "Price must be a number"},
		{raw: "+Inf", wantErr: "Price must be a number"},
		{raw: "-Infinity", wantErr: "Price must be a number"},
		{raw: "1e400", wantErr: "Price must be a number"},
		{raw: "free", wantErr: "Price must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseAmount("Price", tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.False(t, math.Signbit(got))
		})
	}
}

func TestFood_NonFinitePriceRejected(t *testing.T) {
	f := newFixture(t)
	for _, raw := range []string{"NaN", "+Inf"} {
		outcome, form, err := submit(t, f, Food, map[string]string{"name": "Chapati", "price": raw}, nil)
		assert.Error(t, err)
		assert.Equal(t, postform.Failed, outcome)
		assert.Equal(t, "Price must be a number", form.State().Error)
	}
	_, _, err := submit(t, f, Marketplace, map[string]string{"title": "Desk lamp", "price": "+Inf"}, nil)
	assert.Error(t, err)

	v := loadFeed(t, f, Food, "").(feed.View[models.FoodItem])
	assert.Empty(t, v.Items)
}

func TestMarketplace_UploadsNormalizedPhotos(t *testing.T) {
	f := newFixture(t)
	png := testutil.PNG(t, 40, 20)
	outcome, _, err := submit(t, f, Marketplace,
		map[string]string{"title": "Calculus textbook", "price": "1,200", "condition": "used"},
		map[string][]postform.File{"images": {memFile("front.png", "image/png", png), memFile("back.png", "image/png", png)}})
	require.NoError(t, err)
	require.Equal(t, postform.Succeeded, outcome)

	v := loadFeed(t, f, Marketplace, "").(feed.View[models.MarketplaceListing])
	require.Len(t, v.Items, 1)
	item := v.Items[0]
	assert.Equal(t, 1200.0, item.Price)
	require.Len(t, item.ImageURLs, 2)
	for _, u := range item.ImageURLs {
		assert.True(t, strings.HasPrefix(u, "http://localhost:8375/storage/marketplace/"+f.author.Campus.ID+"/"), u)
		assert.True(t, strings.HasSuffix(u, ".webp"), u)
	}
}

func TestMarketplace_RejectsNonImagePhotos(t *testing.T) {
	f := newFixture(t)
	_, form, err := submit(t, f, Marketplace, map[string]string{"title": "Lamp", "price": "10"},
		map[string][]postform.File{"images": {memFile("doc.png", "image/png", []byte("not a png"))}})
	assert.Error(t, err)
	assert.Contains(t, form.State().Error, "Could not process doc.png")
}

func TestEvents_ParseStartTime(t *testing.T) {
	f := newFixture(t)
	for _, raw := range []string{"2026-11-03T18:30:00+03:00", "2026-11-03T18:30"} {
		outcome, _, err := submit(t, f, Events, map[string]string{"title": "Open mic", "starts_at": raw}, nil)
		require.NoError(t, err, raw)
		assert.Equal(t, postform.Succeeded, outcome)
	}
	_, form, err := submit(t, f, Events, map[string]string{"title": "Open mic", "starts_at": "next friday"}, nil)
	assert.Error(t, err)
	assert.Equal(t, "Date and time is not a valid date", form.State().Error)

	v := loadFeed(t, f, Events, "").(feed.View[models.Event])
	require.Len(t, v.Items, 2)
	for _, e := range v.Items {
		assert.Equal(t, 30, e.StartsAt.Minute())
	}
}

func TestFood_OptionalImage(t *testing.T) {
	f := newFixture(t)
	outcome, _, err := submit(t, f, Food, map[string]string{"name": "Chapati beans", "price": "80", "vendor": "Mama Njeri"}, nil)
	require.NoError(t, err)
	assert.Equal(t, postform.Succeeded, outcome)

	v := loadFeed(t, f, Food, "").(feed.View[models.FoodItem])
	require.Len(t, v.Items, 1)
	assert.Empty(t, v.Items[0].ImageURL)
	assert.Equal(t, 80.0, v.Items[0].Price)
}

func TestNotes_StoredUnderCampusWithUniqueName(t *testing.T) {
	f := newFixture(t)

	outcome, form, err := submit(t, f, Notes, map[string]string{"title": "Week 1"}, nil)
	assert.Equal(t, postform.Invalid, outcome)
	assert.EqualError(t, err, "File is required")
	assert.Equal(t, "Week 1", form.State().Values["title"])

	_, _, err = submit(t, f, Notes, map[string]string{"title": "Week 1"},
		map[string][]postform.File{"file": {memFile("setup.exe", "application/octet-stream", []byte("MZ"))}})
	assert.ErrorContains(t, err, "not an accepted file type")

	outcome, _, err = submit(t, f, Notes, map[string]string{"title": "Week 1", "course": "csc 201"},
		map[string][]postform.File{"file": {memFile("week1.pdf", "application/pdf", []byte("%PDF-1.4"))}})
	require.NoError(t, err)
	assert.Equal(t, postform.Succeeded, outcome)

	v := loadFeed(t, f, Notes, "").(feed.View[models.Note])
	require.Len(t, v.Items, 1)
	note := v.Items[0]
	assert.Equal(t, "CSC 201", note.Course)
	assert.Equal(t, "week1.pdf", note.FileName)
	prefix := "http://localhost:8375/storage/notes/" + f.author.Campus.ID + "/"
	assert.True(t, strings.HasPrefix(note.FileURL, prefix), note.FileURL)
	assert.True(t, strings.HasSuffix(note.FileURL, "-week1.pdf"), note.FileURL)
}

func TestRoommates_OptionalBudgetAndDate(t *testing.T) {
	f := newFixture(t)
	outcome, _, err := submit(t, f, Roommates, map[string]string{"title": "Room in Kilimani"}, nil)
	require.NoError(t, err)
	assert.Equal(t, postform.Succeeded, outcome)

	_, form, _ := submit(t, f, Roommates, map[string]string{"title": "Bedsitter", "move_in_date": "soon"}, nil)
	assert.Equal(t, "Move-in date is not a valid date", form.State().Error)

	_, _, err = submit(t, f, Roommates, map[string]string{"title": "Bedsitter", "budget": "15000", "move_in_date": "2026-12-01"}, nil)
	require.NoError(t, err)

	v := loadFeed(t, f, Roommates, "").(feed.View[models.RoommatePost])
	require.Len(t, v.Items, 2)
}

func TestSubmit_WithoutCampusIsRejected(t *testing.T) {
	f := newFixture(t)
	f.author.Campus = models.CampusSelection{}
	outcome, form, err := submit(t, f, Confessions, map[string]string{"content": "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, postform.Rejected, outcome)
	assert.Empty(t, form.State().Success)
}

func TestSubmit_StubBackendReportsReadOnly(t *testing.T) {
	client := stub.NewProvider().ClientFor("dev-1")
	svc := New(client)
	form := svc.NewForm(Confessions, Author{
		User:   models.SessionUser{ID: "u1"},
		Campus: models.CampusSelection{ID: "c1"},
	}, FormOptions{})
	t.Cleanup(form.Close)

	outcome, err := form.Submit(context.Background(), map[string]string{"content": "hello"}, nil)
	assert.Equal(t, postform.Failed, outcome)
	assert.ErrorIs(t, err, backend.ErrNotConfigured)
	assert.Equal(t, backend.ErrNotConfigured.Error(), form.State().Error)

	campus := models.CampusSelection{ID: "c1"}
	v := svc.OpenFeed(Confessions, &campus, "u1", feed.Options{}).Refresh(context.Background(), false)
	assert.Equal(t, feed.StatusEmpty, v.(feed.View[models.Confession]).Status)
}

func seedConfession(t *testing.T, f *fixture, owner string) *models.Confession {
	t.Helper()
	c := &models.Confession{
		CampusScoped: models.CampusScoped{CampusID: f.author.Campus.ID, UserID: owner},
		Content:      "The library wifi is faster at 3am",
		IsAnonymous:  true,
	}
	require.NoError(t, f.client.Tables().Insert(context.Background(), models.TableConfessions, c))
	return c
}

func TestLikeUnlike_ReconcilesCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := seedConfession(t, f, "u-owner")

	require.NoError(t, f.svc.Like(ctx, f.author.User, c))
	assert.Equal(t, 1, c.LikesCount)
	assert.True(t, c.Liked)
	require.NoError(t, f.svc.Like(ctx, f.author.User, c), "liking twice is a no-op")

	stored, err := f.svc.GetConfession(ctx, f.author.User.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LikesCount)
	assert.True(t, stored.Liked)

	v := loadFeed(t, f, Confessions, f.author.User.ID).(feed.View[models.Confession])
	require.Len(t, v.Items, 1)
	assert.True(t, v.Items[0].Liked)

	require.NoError(t, f.svc.Unlike(ctx, f.author.User, stored))
	assert.Equal(t, 0, stored.LikesCount)
	assert.False(t, stored.Liked)

	alerts, err := f.svc.Alerts(ctx, "u-owner")
	require.NoError(t, err)
	require.Len(t, alerts.Items, 1)
	assert.Equal(t, "confession_like", alerts.Items[0].Type)
}

func TestLike_FailedWriteIsRevertedByRefetch(t *testing.T) {
	f := newFixture(t)
	c := seedConfession(t, f, "u-owner")

	flaky := testutil.NewFlakyTables(f.client.Tables())
	flaky.Fail("insert", errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	svc := New(&testutil.Client{Client: f.client, TablesOverride: flaky})

	err := svc.Like(context.Background(), f.author.User, c)
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNetwork, appErr.Code)
	assert.Equal(t, 0, c.LikesCount)
	assert.False(t, c.Liked)
}

func TestComments_BumpCounterAndNotifyOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := seedConfession(t, f, "u-owner")

	_, err := f.svc.AddComment(ctx, f.author.User, c, "   ")
	assert.Error(t, err)
	assert.Equal(t, 0, c.CommentsCount)

	comment, err := f.svc.AddComment(ctx, f.author.User, c, "Same, and the printers work too")
	require.NoError(t, err)
	assert.Equal(t, "Amina", comment.AuthorName)
	assert.Equal(t, 1, c.CommentsCount)

	comments, err := f.svc.Comments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	alerts, err := f.svc.Alerts(ctx, "u-owner")
	require.NoError(t, err)
	require.Len(t, alerts.Items, 1)
	assert.EqualValues(t, 1, alerts.Unread)

	require.NoError(t, f.svc.MarkAlertRead(ctx, "u-owner", alerts.Items[0].ID))
	alerts, err = f.svc.Alerts(ctx, "u-owner")
	require.NoError(t, err)
	assert.EqualValues(t, 0, alerts.Unread)

	// Replies to your own confession do not alert you.
	own := seedConfession(t, f, f.author.User.ID)
	_, err = f.svc.AddComment(ctx, f.author.User, own, "bump")
	require.NoError(t, err)
	mine, err := f.svc.Alerts(ctx, f.author.User.ID)
	require.NoError(t, err)
	assert.Empty(t, mine.Items)
}

func TestGetConfession_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetConfession(context.Background(), "", "missing")
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestExplore_CountsPerDomain(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"first", "second"} {
		outcome, _, err := submit(t, f, Confessions, map[string]string{"content": text}, nil)
		require.NoError(t, err)
		require.Equal(t, postform.Succeeded, outcome)
	}

	tiles, err := f.svc.Explore(context.Background(), f.author.Campus.ID)
	require.NoError(t, err)
	require.Len(t, tiles, len(Domains))
	assert.Equal(t, Confessions, tiles[0].Domain)
	assert.Equal(t, int64(2), tiles[0].Count)
	assert.Equal(t, "/post/confessions", tiles[0].Post)
	for _, tile := range tiles[1:] {
		assert.Zero(t, tile.Count, tile.Domain)
	}

	stubTiles, err := New(stub.NewProvider().ClientFor("d")).Explore(context.Background(), "any")
	require.NoError(t, err)
	assert.Len(t, stubTiles, len(Domains))
}
