package app

import (
	"context"
	"sync"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/content"
	"github.com/brayobiz/campus-hub-sub000/internal/featureflags"
	"github.com/brayobiz/campus-hub-sub000/internal/feed"
	"github.com/brayobiz/campus-hub-sub000/internal/guard"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/notifications"
	"github.com/brayobiz/campus-hub-sub000/internal/postform"
	"github.com/brayobiz/campus-hub-sub000/internal/service"
	"github.com/brayobiz/campus-hub-sub000/internal/session"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
)

// Device is the application context of one browser device: its stores,
// session bootstrap, backend client and the screens it has open.
type Device struct {
	ID       string
	Client   backend.Client
	Stores   *store.Stores
	Boot     *session.Bootstrap
	Auth     *service.AuthService
	Campuses *service.CampusService
	Profiles *service.ProfileService
	Content  *content.Service

	reg *Registry

	mu         sync.Mutex
	feeds      map[content.Domain]feed.Screen
	feedCampus string
	forms      map[content.Domain]*deviceForm
	lastSeen   time.Time
	closed     bool
	unsubUser  func()
	unsubCamp  func()
}

type deviceForm struct {
	form   *postform.Form
	author content.Author
}

func newDevice(r *Registry, id string) *Device {
	client := r.provider.ClientFor(id)
	stores := store.NewStores(r.kv, id)
	boot := session.New(client, stores)
	d := &Device{
		ID:       id,
		Client:   client,
		Stores:   stores,
		Boot:     boot,
		Auth:     service.NewAuthService(client, boot, stores, service.AuthOptions{SignupTimeout: r.cfg.SignupTimeout, ConfirmRedirect: r.cfg.ConfirmRedirect}),
		Campuses: service.NewCampusService(client, stores),
		Profiles: service.NewProfileService(client, stores),
		Content:  content.New(client),
		reg:      r,
		feeds:    make(map[content.Domain]feed.Screen),
		forms:    make(map[content.Domain]*deviceForm),
		lastSeen: r.now(),
	}
	d.unsubUser = stores.User.Subscribe(d.userChanged)
	d.unsubCamp = stores.Campus.Subscribe(d.campusChanged)
	return d
}

// start hydrates the stores and mounts the bootstrap.
func (d *Device) start(ctx context.Context) {
	if err := d.Stores.Load(ctx); err != nil {
		appLog.Error(ctx, "device stores failed to load", err, nil)
	}
	d.Boot.Start(ctx)
}

// Feed returns the mounted feed of domain, opening it on first use. Feeds
// are re-mounted when the selected campus changes.
func (d *Device) Feed(ctx context.Context, domain content.Domain) feed.Screen {
	d.mu.Lock()
	campus := d.Stores.Campus.Get()
	campusID := ""
	if campus != nil {
		campusID = campus.ID
	}
	if campusID != d.feedCampus {
		d.closeFeedsLocked()
		d.feedCampus = campusID
	}
	if s, ok := d.feeds[domain]; ok && !s.Closed() {
		d.mu.Unlock()
		return s
	}

	viewerID := ""
	if u := d.Stores.User.Get(); u != nil {
		viewerID = u.ID
	}
	var screen feed.Screen
	screen = d.Content.OpenFeed(domain, campus, viewerID, feed.Options{
		Limit:    d.reg.cfg.FeedLimit,
		OnUpdate: func() { d.pushFeed(domain, screen) },
	})
	d.feeds[domain] = screen
	d.mu.Unlock()

	if d.reg.flags.Enabled(featureflags.LiveFeeds, d.ID) {
		if err := screen.Watch(ctx); err != nil {
			appLog.Warn(ctx, "live feed unavailable", map[string]any{"domain": string(domain), "error": err.Error()})
		}
	}
	screen.Refresh(ctx, d.reg.flags.Enabled(featureflags.AutoRetryFeeds, d.ID))
	return screen
}

// OpenFeeds lists the domains with a mounted feed.
func (d *Device) OpenFeeds() []content.Domain {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]content.Domain, 0, len(d.feeds))
	for _, dom := range content.Domains {
		if _, ok := d.feeds[dom]; ok {
			out = append(out, dom)
		}
	}
	return out
}

// Form returns the posting form of domain for the signed-in author. A form
// is rebuilt when the author changes.
func (d *Device) Form(domain content.Domain, user models.SessionUser, campus models.CampusSelection) *postform.Form {
	author := content.Author{User: user, Campus: campus}
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.forms[domain]; ok && f.author == author {
		return f.form
	}
	if f, ok := d.forms[domain]; ok {
		f.form.Close()
	}
	form := d.Content.NewForm(domain, author, content.FormOptions{
		SuccessDelay: d.reg.cfg.SuccessDelay,
	})
	d.forms[domain] = &deviceForm{form: form, author: author}
	return form
}

// Push sends ev to the live connections of this device.
func (d *Device) Push(ctx context.Context, ev notifications.Event) {
	if d.reg.notifier == nil {
		return
	}
	if err := d.reg.notifier.PublishDevice(ctx, d.ID, ev); err != nil {
		appLog.Warn(ctx, "live push failed", map[string]any{"device_id": d.ID, "type": ev.Type, "error": err.Error()})
	}
}

func (d *Device) pushFeed(domain content.Domain, s feed.Screen) {
	if s == nil || s.Closed() {
		return
	}
	d.Push(context.Background(), notifications.Event{
		Type:    notifications.EventFeedUpdated,
		Payload: notifications.FeedUpdate{Domain: string(domain), View: s.Render()},
	})
}

// userChanged follows sign-out from any source: open screens are dropped
// and live pages are sent to login.
func (d *Device) userChanged(u *models.SessionUser) {
	if u != nil {
		return
	}
	d.mu.Lock()
	d.closeFeedsLocked()
	d.closeFormsLocked()
	closed := d.closed
	d.mu.Unlock()
	if !closed {
		d.Push(context.Background(), notifications.Event{
			Type:    notifications.EventRedirect,
			Payload: notifications.Redirect{To: guard.LoginPath, Reason: "signed_out"},
		})
	}
}

func (d *Device) campusChanged(c *models.CampusSelection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c == nil || c.ID != d.feedCampus {
		d.closeFeedsLocked()
	}
}

func (d *Device) touch(now time.Time) {
	d.mu.Lock()
	d.lastSeen = now
	d.mu.Unlock()
}

func (d *Device) idleSince() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSeen
}

// close unmounts everything the device owns.
func (d *Device) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.closeFeedsLocked()
	d.closeFormsLocked()
	d.mu.Unlock()

	d.unsubUser()
	d.unsubCamp()
	d.Boot.Stop()
}

func (d *Device) closeFeedsLocked() {
	for dom, s := range d.feeds {
		s.Close()
		delete(d.feeds, dom)
	}
}

func (d *Device) closeFormsLocked() {
	for dom, f := range d.forms {
		f.form.Close()
		delete(d.forms, dom)
	}
}
