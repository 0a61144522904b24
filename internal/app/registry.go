// Package app holds the per-device application contexts of the server.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/featureflags"
	"github.com/brayobiz/campus-hub-sub000/internal/notifications"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
	"github.com/google/uuid"
)

var appLog = observability.NewComponentLogger("app")

// ErrRegistryClosed is returned once Close has run.
var ErrRegistryClosed = errors.New("device registry is closed")

// Settings tune every device context.
type Settings struct {
	SignupTimeout   time.Duration
	ConfirmRedirect string
	FeedLimit       int
	SuccessDelay    time.Duration
	IdleTimeout     time.Duration
	// JanitorInterval defaults to a quarter of IdleTimeout.
	JanitorInterval time.Duration
}

// OnlineChecker reports devices that still hold a live connection.
type OnlineChecker interface {
	IsOnline(ctx context.Context, deviceID string) bool
}

// Options configure a Registry.
type Options struct {
	Provider backend.Provider
	KV       store.KV
	Notifier *notifications.Notifier
	Presence OnlineChecker
	Flags    *featureflags.Manager
	Settings Settings
}

// Registry owns the device contexts and evicts idle ones.
type Registry struct {
	provider backend.Provider
	kv       store.KV
	notifier *notifications.Notifier
	presence OnlineChecker
	flags    *featureflags.Manager
	cfg      Settings
	now      func() time.Time

	mu      sync.Mutex
	devices map[string]*Device
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

// NewRegistry creates a registry. Start launches the idle janitor.
func NewRegistry(opts Options) *Registry {
	if opts.KV == nil {
		opts.KV = store.NewMemoryKV()
	}
	if opts.Settings.IdleTimeout <= 0 {
		opts.Settings.IdleTimeout = 30 * time.Minute
	}
	if opts.Settings.JanitorInterval <= 0 {
		opts.Settings.JanitorInterval = opts.Settings.IdleTimeout / 4
	}
	return &Registry{
		provider: opts.Provider,
		kv:       opts.KV,
		notifier: opts.Notifier,
		presence: opts.Presence,
		flags:    opts.Flags,
		cfg:      opts.Settings,
		now:      time.Now,
		devices:  make(map[string]*Device),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// NewDeviceID mints an identifier for a device cookie.
func NewDeviceID() string { return uuid.NewString() }

// Get returns the context of deviceID, creating and mounting it on first use.
func (r *Registry) Get(ctx context.Context, deviceID string) (*Device, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	d, ok := r.devices[deviceID]
	if ok {
		r.mu.Unlock()
		d.touch(r.now())
		return d, nil
	}
	d = newDevice(r, deviceID)
	r.devices[deviceID] = d
	observability.ActiveDevices.Set(float64(len(r.devices)))
	r.mu.Unlock()

	d.start(observability.WithDeviceID(ctx, deviceID))
	return d, nil
}

// Lookup returns an existing device context without creating one.
func (r *Registry) Lookup(deviceID string) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	return d, ok
}

// Len reports how many device contexts are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Start runs the idle janitor until Close.
func (r *Registry) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.cfg.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.EvictIdle(context.Background())
			}
		}
	}()
}

// EvictIdle unmounts devices idle longer than the idle timeout that hold no
// live connection. It returns how many were evicted.
func (r *Registry) EvictIdle(ctx context.Context) int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)
	r.mu.Lock()
	var idle []*Device
	for id, d := range r.devices {
		if !d.idleSince().Before(cutoff) {
			continue
		}
		if r.presence != nil && r.presence.IsOnline(ctx, id) {
			continue
		}
		idle = append(idle, d)
		delete(r.devices, id)
	}
	observability.ActiveDevices.Set(float64(len(r.devices)))
	r.mu.Unlock()

	for _, d := range idle {
		d.close()
	}
	if len(idle) > 0 {
		appLog.Info(ctx, "evicted idle devices", map[string]any{"count": len(idle)})
	}
	return len(idle)
}

// Close stops the janitor and unmounts every device.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	devices := r.devices
	r.devices = make(map[string]*Device)
	r.mu.Unlock()

	close(r.stop)
	for _, d := range devices {
		d.close()
	}
	observability.ActiveDevices.Set(0)
}

// Done is closed when the janitor exits.
func (r *Registry) Done() <-chan struct{} { return r.done }
