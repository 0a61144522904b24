package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
	"github.com/brayobiz/campus-hub-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu       sync.Mutex
	session  *backend.Session
	err      error
	getCalls int
	subs     map[int]func(backend.AuthChange)
	next     int
}

func newFakeAuth(session *backend.Session) *fakeAuth {
	return &fakeAuth{session: session, subs: map[int]func(backend.AuthChange){}}
}

func (a *fakeAuth) GetSession(context.Context) (*backend.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.getCalls++
	return a.session, a.err
}

func (a *fakeAuth) SignIn(context.Context, string, string) (*backend.Session, error) {
	return nil, errors.New("not used")
}

func (a *fakeAuth) SignUp(context.Context, backend.SignUpInput) (*backend.SignUpResult, error) {
	return nil, errors.New("not used")
}

func (a *fakeAuth) SignOut(context.Context) error                   { return nil }
func (a *fakeAuth) ResendConfirmation(context.Context, string) error { return nil }

func (a *fakeAuth) OnAuthStateChange(fn func(backend.AuthChange)) backend.Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.subs[id] = fn
	return backend.SubscriptionFunc(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	})
}

func (a *fakeAuth) emit(change backend.AuthChange) {
	a.mu.Lock()
	subs := make([]func(backend.AuthChange), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()
	for _, fn := range subs {
		fn(change)
	}
}

func (a *fakeAuth) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.getCalls
}

// gateTables blocks campus lookups until gate is closed.
type gateTables struct {
	backend.Tables
	gate chan struct{}
}

func (g *gateTables) Select(ctx context.Context, q backend.Query, dest any) error {
	if q.Table == models.TableCampuses && g.gate != nil {
		<-g.gate
	}
	return g.Tables.Select(ctx, q, dest)
}

type fakeClient struct {
	backend.Client
	auth   backend.Auth
	tables backend.Tables
}

func (c *fakeClient) Auth() backend.Auth     { return c.auth }
func (c *fakeClient) Tables() backend.Tables { return c.tables }

type fixture struct {
	auth   *fakeAuth
	tables *gateTables
	stores *store.Stores
	boot   *Bootstrap
	campus models.Campus
}

func sessionFor(id, email, name string) *backend.Session {
	return &backend.Session{
		AccessToken: "token-" + id,
		User:        &backend.AuthUser{ID: id, Email: email, Metadata: map[string]any{"full_name": name}},
	}
}

func newFixture(t *testing.T, session *backend.Session, withProfile bool) *fixture {
	t.Helper()
	client := testutil.NewPlatform(t).ClientFor("dev-1")
	campus := testutil.SeedCampus(t, client.Tables(), "University of Nairobi", "UoN")
	if withProfile && session != nil {
		require.NoError(t, client.Tables().Insert(context.Background(), models.TableProfiles, &models.Profile{
			Record:   models.Record{ID: session.User.ID},
			Email:    session.User.Email,
			CampusID: campus.ID,
		}))
	}
	f := &fixture{
		auth:   newFakeAuth(session),
		tables: &gateTables{Tables: client.Tables()},
		stores: store.NewStores(store.NewMemoryKV(), "dev-1"),
		campus: campus,
	}
	f.boot = New(&fakeClient{Client: client, auth: f.auth, tables: f.tables}, f.stores)
	require.NoError(t, f.stores.Load(context.Background()))
	t.Cleanup(f.boot.Stop)
	return f
}

func waitReady(t *testing.T, b *Bootstrap) {
	t.Helper()
	select {
	case <-b.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("bootstrap never became ready")
	}
}

func TestBootstrap_NoSessionStaysSignedOut(t *testing.T) {
	f := newFixture(t, nil, false)
	f.boot.Start(context.Background())
	f.boot.Start(context.Background())
	waitReady(t, f.boot)

	assert.False(t, f.boot.Loading())
	assert.Nil(t, f.stores.User.Get())
	assert.Nil(t, f.stores.Campus.Get())
	assert.Equal(t, 1, f.auth.calls(), "session is requested exactly once")
}

func TestBootstrap_SessionErrorIsNotFatal(t *testing.T) {
	f := newFixture(t, nil, false)
	f.auth.err = errors.New("dial tcp: connection refused")
	f.boot.Start(context.Background())
	waitReady(t, f.boot)

	assert.False(t, f.boot.Loading())
	assert.Nil(t, f.stores.User.Get())
}

func TestBootstrap_RestoresUserAndCampus(t *testing.T) {
	f := newFixture(t, sessionFor("u1", "wanjiru@uonbi.ac.ke", "Wanjiru K"), true)
	f.tables.gate = make(chan struct{})
	f.boot.Start(context.Background())
	assert.True(t, f.boot.Loading())
	close(f.tables.gate)
	waitReady(t, f.boot)

	user := f.stores.User.Get()
	require.NotNil(t, user)
	assert.Equal(t, models.SessionUser{ID: "u1", Email: "wanjiru@uonbi.ac.ke", Name: "Wanjiru K"}, *user)

	campus := f.stores.Campus.Get()
	require.NotNil(t, campus)
	assert.Equal(t, f.campus.Selection(), *campus)
}

func TestBootstrap_DisplayNameFallsBackToEmail(t *testing.T) {
	session := &backend.Session{User: &backend.AuthUser{ID: "u2", Email: "otieno@uonbi.ac.ke"}}
	f := newFixture(t, session, false)
	f.boot.Start(context.Background())
	waitReady(t, f.boot)

	assert.Equal(t, "otieno", f.stores.User.Get().Name)
}

func TestBootstrap_MissingProfileKeepsUserWithoutCampus(t *testing.T) {
	f := newFixture(t, sessionFor("u1", "a@uni.edu", "A"), false)
	f.boot.Start(context.Background())
	waitReady(t, f.boot)

	assert.NotNil(t, f.stores.User.Get())
	assert.Nil(t, f.stores.Campus.Get())
}

func TestBootstrap_SignOutFromAnotherTabClearsStores(t *testing.T) {
	f := newFixture(t, sessionFor("u1", "a@uni.edu", "A"), true)
	f.boot.Start(context.Background())
	waitReady(t, f.boot)
	require.NotNil(t, f.stores.Campus.Get())

	f.auth.emit(backend.AuthChange{Event: backend.EventSignedOut})

	assert.Nil(t, f.stores.User.Get())
	assert.Nil(t, f.stores.Campus.Get())
}

func TestBootstrap_SignInEventPopulates(t *testing.T) {
	f := newFixture(t, sessionFor("u1", "a@uni.edu", "A"), true)
	f.auth.session = nil
	f.boot.Start(context.Background())
	waitReady(t, f.boot)
	require.Nil(t, f.stores.User.Get())

	f.auth.emit(backend.AuthChange{Event: backend.EventSignedIn, Session: sessionFor("u1", "a@uni.edu", "A")})

	require.NotNil(t, f.stores.User.Get())
	require.NotNil(t, f.stores.Campus.Get())
}

func TestBootstrap_SwitchingUserDropsPreviousCampus(t *testing.T) {
	f := newFixture(t, sessionFor("u1", "a@uni.edu", "A"), true)
	f.boot.Start(context.Background())
	waitReady(t, f.boot)
	require.NotNil(t, f.stores.Campus.Get())

	// u2 has no profile, so no campus of its own.
	f.auth.emit(backend.AuthChange{Event: backend.EventSignedIn, Session: sessionFor("u2", "b@uni.edu", "B")})

	require.NotNil(t, f.stores.User.Get())
	assert.Equal(t, "u2", f.stores.User.Get().ID)
	assert.Nil(t, f.stores.Campus.Get())
}

func TestBootstrap_SameUserRefreshKeepsCampus(t *testing.T) {
	f := newFixture(t, sessionFor("u1", "a@uni.edu", "A"), true)
	f.boot.Start(context.Background())
	waitReady(t, f.boot)

	f.auth.emit(backend.AuthChange{Event: backend.EventTokenRefreshed, Session: sessionFor("u1", "a@uni.edu", "A")})

	require.NotNil(t, f.stores.Campus.Get())
	assert.Equal(t, f.campus.ID, f.stores.Campus.Get().ID)
}

func TestBootstrap_StaleCampusResolutionCannotResurrectClearedState(t *testing.T) {
	f := newFixture(t, sessionFor("u1", "a@uni.edu", "A"), true)
	f.tables.gate = make(chan struct{})

	f.boot.Start(context.Background())
	require.Eventually(t, func() bool { return f.stores.User.Get() != nil }, time.Second, 5*time.Millisecond)

	// Sign out lands while the campus lookup of the restore is still in flight.
	f.auth.emit(backend.AuthChange{Event: backend.EventSignedOut})
	close(f.tables.gate)
	waitReady(t, f.boot)

	assert.Nil(t, f.stores.User.Get())
	assert.Nil(t, f.stores.Campus.Get())
}

func TestBootstrap_NewerEventWinsOverSlowerOlderFlow(t *testing.T) {
	f := newFixture(t, sessionFor("u1", "a@uni.edu", "A"), true)
	f.tables.gate = make(chan struct{})

	f.boot.Start(context.Background())
	require.Eventually(t, func() bool { return f.stores.User.Get() != nil }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.auth.emit(backend.AuthChange{Event: backend.EventSignedIn, Session: sessionFor("u9", "b@uni.edu", "B")})
	}()
	time.Sleep(20 * time.Millisecond)
	close(f.tables.gate)
	waitReady(t, f.boot)
	<-done

	assert.Equal(t, "u9", f.stores.User.Get().ID)
	// u9 has no profile, so the campus of the older flow must not be applied.
	assert.Nil(t, f.stores.Campus.Get())
}

func TestBootstrap_StopDropsLaterEvents(t *testing.T) {
	f := newFixture(t, sessionFor("u1", "a@uni.edu", "A"), true)
	f.boot.Start(context.Background())
	waitReady(t, f.boot)

	f.boot.Stop()
	assert.False(t, f.boot.Mounted())
	f.auth.emit(backend.AuthChange{Event: backend.EventSignedOut})

	assert.NotNil(t, f.stores.User.Get(), "unmounted bootstrap must not write")
}

func TestBootstrap_ApplyWaitsForSettledState(t *testing.T) {
	f := newFixture(t, nil, true)
	f.boot.Start(context.Background())
	waitReady(t, f.boot)

	// Seed a profile for the user that signs in now.
	require.NoError(t, f.tables.Insert(context.Background(), models.TableProfiles, &models.Profile{
		Record: models.Record{ID: "u5"}, CampusID: f.campus.ID,
	}))
	f.boot.Apply(context.Background(), sessionFor("u5", "e@uni.edu", "E"))

	require.NotNil(t, f.stores.User.Get())
	assert.Equal(t, f.campus.ID, f.stores.Campus.Get().ID)
}
