// Package stub provides the degraded backend used when the real backend is
// not configured. Reads succeed with no data, writes fail with a readable
// error, and nothing panics.
package stub

import (
	"context"
	"io"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
)

var stubLog = observability.NewComponentLogger("backend.stub")

// Provider returns the same stub client for every device.
type Provider struct {
	client *Client
}

// NewProvider creates the stub provider and logs that the app is degraded.
func NewProvider() *Provider {
	stubLog.Warn(context.Background(), "BACKEND_URL or BACKEND_KEY missing; running with the read-only stub backend", nil)
	return &Provider{client: &Client{}}
}

// ClientFor returns the shared stub client.
func (p *Provider) ClientFor(string) backend.Client { return p.client }

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// Client implements backend.Client with empty results.
type Client struct{}

func (c *Client) Auth() backend.Auth         { return auth{} }
func (c *Client) Tables() backend.Tables     { return tables{} }
func (c *Client) Realtime() backend.Realtime { return realtime{} }
func (c *Client) Storage() backend.Storage   { return storage{} }
func (c *Client) Degraded() bool             { return true }

type auth struct{}

func (auth) GetSession(context.Context) (*backend.Session, error) { return nil, nil }

func (auth) SignIn(context.Context, string, string) (*backend.Session, error) {
	return nil, backend.ErrNotConfigured
}

func (auth) SignUp(context.Context, backend.SignUpInput) (*backend.SignUpResult, error) {
	return nil, backend.ErrNotConfigured
}

func (auth) SignOut(context.Context) error { return nil }

func (auth) ResendConfirmation(context.Context, string) error { return backend.ErrNotConfigured }

func (auth) OnAuthStateChange(func(backend.AuthChange)) backend.Subscription {
	return backend.SubscriptionFunc(func() {})
}

type tables struct{}

// Select leaves dest untouched, which decodes as an empty slice.
func (tables) Select(context.Context, backend.Query, any) error { return nil }

func (tables) Count(context.Context, string, ...backend.Filter) (int64, error) { return 0, nil }

func (tables) Insert(context.Context, string, any) error { return backend.ErrNotConfigured }

func (tables) Update(context.Context, string, map[string]any, ...backend.Filter) error {
	return backend.ErrNotConfigured
}

func (tables) Delete(context.Context, string, ...backend.Filter) error {
	return backend.ErrNotConfigured
}

type realtime struct{}

func (realtime) Subscribe(context.Context, backend.Channel, func(backend.ChangeEvent)) (backend.Subscription, error) {
	return backend.SubscriptionFunc(func() {}), nil
}

type storage struct{}

func (storage) Upload(context.Context, string, string, io.Reader, string) error {
	return backend.ErrNotConfigured
}

func (storage) PublicURL(string, string) string { return "" }
