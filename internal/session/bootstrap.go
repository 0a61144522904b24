// Package session keeps a device's stores in step with the backend session:
// a one-time restore at start plus a long-lived auth-change subscription.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/brayobiz/campus-hub-sub000/internal/repository"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
)

var bootLog = observability.NewComponentLogger("session")

// Campus resolution outcomes, logged so a silently missing campus can be
// traced to its cause.
const (
	CauseProfileMissing     = "profile_missing"
	CauseProfileQueryFailed = "profile_query_failed"
	CauseCampusUnset        = "campus_unset"
	CauseCampusMissing      = "campus_missing"
	CauseCampusQueryFailed  = "campus_query_failed"
)

// Bootstrap restores and tracks the session of one device.
//
// Population flows are numbered. A flow commits only while it is the most
// recently started flow and nothing else wrote the store since the flow
// began; any clear invalidates every flow in progress. The newest auth
// event therefore always wins and a stale campus lookup can never bring
// back state that was cleared after it started.
type Bootstrap struct {
	auth     backend.Auth
	profiles repository.ProfileRepository
	campuses repository.CampusRepository
	stores   *store.Stores

	startOnce sync.Once
	ready     chan struct{}

	mu       sync.Mutex
	mounted  bool
	loading  bool
	latest   uint64
	inflight int
	idle     chan struct{}
	sub      backend.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a bootstrap over client for stores.
func New(client backend.Client, stores *store.Stores) *Bootstrap {
	repos := repository.New(client.Tables())
	return &Bootstrap{
		auth:     client.Auth(),
		profiles: repos.Profiles,
		campuses: repos.Campuses,
		stores:   stores,
		ready:    make(chan struct{}),
		idle:     make(chan struct{}),
	}
}

// Start mounts the bootstrap: it subscribes to auth changes and launches the
// one-time session restore. Only the first call has any effect.
func (b *Bootstrap) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.mu.Lock()
		b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
		b.mounted = true
		b.loading = true
		b.mu.Unlock()
		seq := b.beginFlow()
		runCtx := b.ctx

		sub := b.auth.OnAuthStateChange(b.handleChange)
		b.mu.Lock()
		if b.mounted {
			b.sub = sub
			sub = nil
		}
		b.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}

		go b.initialize(runCtx, seq)
	})
}

// Stop unmounts: the subscription is cancelled and every later async result
// is dropped.
func (b *Bootstrap) Stop() {
	b.mu.Lock()
	b.mounted = false
	sub := b.sub
	b.sub = nil
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Loading is true from Start until the one-time restore completes.
func (b *Bootstrap) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Ready is closed when the one-time restore completes.
func (b *Bootstrap) Ready() <-chan struct{} { return b.ready }

// Mounted reports whether Start ran and Stop has not.
func (b *Bootstrap) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mounted
}

func (b *Bootstrap) initialize(ctx context.Context, seq uint64) {
	defer func() {
		b.mu.Lock()
		b.loading = false
		b.mu.Unlock()
		b.endFlow()
		close(b.ready)
	}()

	userGen, campusGen := b.stores.User.Generation(), b.stores.Campus.Generation()
	session, err := b.auth.GetSession(ctx)
	if err != nil {
		observability.SessionBootstraps.WithLabelValues("error").Inc()
		bootLog.Warn(ctx, "session restore failed, continuing signed out", map[string]any{"error": err.Error()})
		return
	}
	if session == nil || session.User == nil {
		observability.SessionBootstraps.WithLabelValues("anonymous").Inc()
		return
	}
	observability.SessionBootstraps.WithLabelValues("session").Inc()
	b.populate(ctx, seq, userGen, campusGen, session)
}

func (b *Bootstrap) handleChange(change backend.AuthChange) {
	b.mu.Lock()
	if !b.mounted {
		b.mu.Unlock()
		return
	}
	ctx := b.ctx
	b.mu.Unlock()

	if change.Session == nil || change.Session.User == nil {
		b.clear(ctx, true)
		return
	}
	b.apply(ctx, change.Session)
}

// Apply populates the stores from session and waits until no population
// flow is running, so a sign-in handler sees the settled state even when the
// auth-change subscription raced it.
func (b *Bootstrap) Apply(ctx context.Context, session *backend.Session) {
	b.apply(ctx, session)
	select {
	case <-b.Settled():
	case <-ctx.Done():
	}
}

func (b *Bootstrap) apply(ctx context.Context, session *backend.Session) {
	if !b.Mounted() {
		return
	}
	seq := b.beginFlow()
	defer b.endFlow()
	userGen, campusGen := b.stores.User.Generation(), b.stores.Campus.Generation()
	b.populate(ctx, seq, userGen, campusGen, session)
}

// Settled is closed once no population flow is in flight.
func (b *Bootstrap) Settled() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inflight == 0 {
		done := make(chan struct{})
		close(done)
		return done
	}
	return b.idle
}

func (b *Bootstrap) beginFlow() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest++
	b.inflight++
	return b.latest
}

func (b *Bootstrap) endFlow() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inflight--
	if b.inflight == 0 {
		close(b.idle)
		b.idle = make(chan struct{})
	}
}

// Clear empties both stores and invalidates every population in flight.
func (b *Bootstrap) Clear(ctx context.Context) {
	b.clear(ctx, false)
}

func (b *Bootstrap) clear(ctx context.Context, requireMounted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest++
	if requireMounted && !b.mounted {
		return
	}
	if err := b.stores.ClearAll(ctx); err != nil {
		bootLog.Error(ctx, "failed to persist cleared session", err, nil)
	}
}

func (b *Bootstrap) populate(ctx context.Context, seq, userGen, campusGen uint64, session *backend.Session) {
	u := session.User
	user := models.SessionUser{
		ID:    u.ID,
		Email: u.Email,
		Name:  models.DisplayNameFor(firstNonEmpty(u.MetadataString("name"), u.MetadataString("full_name")), u.Email),
	}
	ctx = observability.WithUserID(ctx, u.ID)

	committed, userGen := b.commit(ctx, seq, func() (bool, error) {
		prev := b.stores.User.Get()
		applied, err := b.stores.User.SetIfGeneration(ctx, userGen, user)
		if !applied || prev == nil || prev.ID == user.ID {
			return applied, err
		}
		// Another account's campus must not carry over to this one.
		if cerr := b.stores.Campus.Clear(ctx); cerr != nil && err == nil {
			err = cerr
		}
		campusGen = b.stores.Campus.Generation()
		return applied, err
	}, b.stores.User.Generation)
	if !committed {
		return
	}

	campus, ok := b.resolveCampus(ctx, u.ID)
	if !ok {
		return
	}
	b.commit(ctx, seq, func() (bool, error) {
		if b.stores.User.Generation() != userGen {
			return false, nil
		}
		return b.stores.Campus.SetIfGeneration(ctx, campusGen, campus)
	}, b.stores.Campus.Generation)
}

// commit runs write while seq is current and the bootstrap mounted. It
// returns whether the write applied and the store generation afterwards.
func (b *Bootstrap) commit(ctx context.Context, seq uint64, write func() (bool, error), gen func() uint64) (bool, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted || seq != b.latest {
		return false, 0
	}
	applied, err := write()
	if err != nil {
		bootLog.Error(ctx, "failed to persist session state", err, nil)
	}
	return applied, gen()
}

func (b *Bootstrap) resolveCampus(ctx context.Context, userID string) (models.CampusSelection, bool) {
	profile, err := b.profiles.GetByID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		b.logCampusFailure(ctx, CauseProfileMissing, nil, userID)
		return models.CampusSelection{}, false
	case err != nil:
		b.logCampusFailure(ctx, CauseProfileQueryFailed, err, userID)
		return models.CampusSelection{}, false
	}
	if profile.CampusID == "" {
		bootLog.Info(ctx, "user has not picked a campus yet", map[string]any{"cause": CauseCampusUnset})
		return models.CampusSelection{}, false
	}

	campus, err := b.campuses.GetByID(ctx, profile.CampusID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		b.logCampusFailure(ctx, CauseCampusMissing, nil, userID)
		return models.CampusSelection{}, false
	case err != nil:
		b.logCampusFailure(ctx, CauseCampusQueryFailed, err, userID)
		return models.CampusSelection{}, false
	}
	return campus.Selection(), true
}

func (b *Bootstrap) logCampusFailure(ctx context.Context, cause string, err error, userID string) {
	fields := map[string]any{"cause": cause, "user_id": userID}
	if err != nil {
		bootLog.Error(ctx, "campus resolution failed", err, fields)
		return
	}
	bootLog.Warn(ctx, "campus resolution failed", fields)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
