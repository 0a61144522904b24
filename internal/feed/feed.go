// Package feed implements the read side of a campus-scoped collection: one
// filtered query, an optional realtime subscription that refetches on every
// change, and explicit loading, empty, error and ready branches.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/cenkalti/backoff/v5"
)

var feedLog = observability.NewComponentLogger("feed")

// DefaultLimit caps a feed query.
const DefaultLimit = 50

// ErrorSelectCampus is the error code shown when no campus is selected.
const ErrorSelectCampus = "select_campus"

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("feed is closed")

// Status is the render branch of a feed.
type Status string

const (
	StatusLoading Status = "loading"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// View is what a feed screen renders.
type View[T any] struct {
	Status    Status `json:"status"`
	Items     []T    `json:"items"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	// Retry is set on the error branch when a reload can help.
	Retry bool `json:"retry,omitempty"`
}

// Lister runs the campus-scoped query of a collection.
type Lister[T any] interface {
	Table() string
	ListByCampus(ctx context.Context, campusID string, limit int) ([]T, error)
}

// RetryPolicy caps automatic reloads in LoadWithRetry.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetry is used when Options.Retry is zero.
var DefaultRetry = RetryPolicy{MaxTries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 4 * time.Second}

// Options configure a feed.
type Options struct {
	Limit int
	Retry RetryPolicy
	// OnUpdate is called after every committed view change.
	OnUpdate func()
}

// Feed is one mounted feed screen.
type Feed[T any] struct {
	lister   Lister[T]
	realtime backend.Realtime
	campus   *models.CampusSelection
	opts     Options

	mu     sync.Mutex
	view   View[T]
	seq    uint64
	closed bool
	sub    backend.Subscription
	ctx    context.Context
	cancel context.CancelFunc
}

// New mounts a feed over lister for campus. A nil campus puts the feed in
// the select_campus error branch and no query is ever issued.
func New[T any](lister Lister[T], rt backend.Realtime, campus *models.CampusSelection, opts Options) *Feed[T] {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Retry.MaxTries == 0 {
		opts.Retry = DefaultRetry
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed[T]{
		lister:   lister,
		realtime: rt,
		campus:   campus,
		opts:     opts,
		view:     View[T]{Status: StatusLoading, Items: []T{}},
		ctx:      ctx,
		cancel:   cancel,
	}
	if campus == nil {
		f.view = View[T]{Status: StatusError, Items: []T{}, Error: "Select a campus to see this feed.", ErrorCode: ErrorSelectCampus}
	}
	return f
}

// Table names the collection behind the feed.
func (f *Feed[T]) Table() string { return f.lister.Table() }

// View returns the current render state.
func (f *Feed[T]) View() View[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

// Load issues the feed query once and commits the result unless the feed
// was closed or a newer load started meanwhile.
func (f *Feed[T]) Load(ctx context.Context) View[T] {
	return f.load(ctx, "load")
}

func (f *Feed[T]) load(ctx context.Context, trigger string) View[T] {
	seq, ok := f.begin()
	if !ok {
		return f.View()
	}
	observability.FeedRefetches.WithLabelValues(f.Table(), trigger).Inc()
	items, err := f.lister.ListByCampus(ctx, f.campus.ID, f.opts.Limit)
	return f.commit(ctx, seq, items, err)
}

// LoadWithRetry is Load with capped exponential-backoff retries before the
// error branch is shown.
func (f *Feed[T]) LoadWithRetry(ctx context.Context) View[T] {
	seq, ok := f.begin()
	if !ok {
		return f.View()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.Retry.InitialInterval
	b.MaxInterval = f.opts.Retry.MaxInterval

	items, err := backoff.Retry(ctx, func() ([]T, error) {
		observability.FeedRefetches.WithLabelValues(f.Table(), "retry").Inc()
		if f.superseded(seq) {
			return nil, backoff.Permanent(context.Canceled)
		}
		return f.lister.ListByCampus(ctx, f.campus.ID, f.opts.Limit)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(f.opts.Retry.MaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			feedLog.Warn(ctx, "feed load failed, retrying", map[string]any{
				"collection": f.Table(), "error": err.Error(), "wait_ms": wait.Milliseconds(),
			})
		}),
	)
	return f.commit(ctx, seq, items, err)
}

// Watch subscribes to changes of the feed's collection on its campus. Each
// change event triggers exactly one refetch.
func (f *Feed[T]) Watch(ctx context.Context) error {
	if f.campus == nil {
		return nil
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.sub != nil {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	filter := backend.Eq("campus_id", f.campus.ID)
	sub, err := f.realtime.Subscribe(ctx, backend.Channel{Table: f.Table(), Filter: &filter}, func(backend.ChangeEvent) {
		f.load(f.ctx, "realtime")
	})
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.closed || f.sub != nil {
		f.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	f.sub = sub
	f.mu.Unlock()
	return nil
}

// Close unmounts the feed. Responses arriving afterwards are discarded.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	f.closed = true
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()
	f.cancel()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Closed reports whether Close was called.
func (f *Feed[T]) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Feed[T]) begin() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.campus == nil {
		return 0, false
	}
	f.seq++
	if f.view.Status != StatusReady {
		f.view = View[T]{Status: StatusLoading, Items: []T{}}
	}
	return f.seq, true
}

func (f *Feed[T]) superseded(seq uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed || seq != f.seq
}

func (f *Feed[T]) commit(ctx context.Context, seq uint64, items []T, err error) View[T] {
	f.mu.Lock()
	if f.closed || seq != f.seq {
		v := f.view
		f.mu.Unlock()
		return v
	}
	switch {
	case err != nil:
		feedLog.Error(ctx, "feed query failed", err, map[string]any{"collection": f.Table()})
		f.view = View[T]{Status: StatusError, Items: []T{}, Error: models.UserMessage(err), Retry: true}
	case len(items) == 0:
		f.view = View[T]{Status: StatusEmpty, Items: []T{}}
	default:
		f.view = View[T]{Status: StatusReady, Items: items}
	}
	v := f.view
	f.mu.Unlock()

	if f.opts.OnUpdate != nil {
		f.opts.OnUpdate()
	}
	return v
}

// Screen is a feed with its item type erased, so a device can hold feeds of
// every collection side by side.
type Screen interface {
	Table() string
	Render() any
	Refresh(ctx context.Context, retry bool) any
	Watch(ctx context.Context) error
	Close()
	Closed() bool
}

type screen[T any] struct{ *Feed[T] }

// Erase wraps f as a Screen.
func Erase[T any](f *Feed[T]) Screen { return screen[T]{f} }

func (s screen[T]) Render() any { return s.View() }

func (s screen[T]) Refresh(ctx context.Context, retry bool) any {
	if retry {
		return s.LoadWithRetry(ctx)
	}
	return s.Load(ctx)
}
