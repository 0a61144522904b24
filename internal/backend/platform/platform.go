// Package platform is the self-hosted backend: GORM tables, JWT sessions,
// pub/sub realtime and blob storage behind the backend interfaces.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/config"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
	"gorm.io/gorm"
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	tokenIssuer       = "campus-hub"
	tokenAudience     = "authenticated"
	// SessionNamespace prefixes the per-device session token key.
	SessionNamespace = "campus-hub-auth"
)

var platformLog = observability.NewComponentLogger("platform")

// Options configures a Platform.
type Options struct {
	DB         *gorm.DB
	Broker     Broker
	SigningKey string
	// Sessions keeps the per-device access token.
	Sessions store.KV
	Storage  backend.Storage
	Mailer   Mailer
	// RequireConfirmation makes new accounts confirm their email before the
	// first sign in.
	RequireConfirmation bool
	// ConfirmURL is the base of the link sent in confirmation mails.
	ConfirmURL string
	SessionTTL time.Duration
	Reconnect  config.ReconnectPolicy
}

// Platform implements backend.Provider.
type Platform struct {
	db         *gorm.DB
	broker     Broker
	key        []byte
	sessions   store.KV
	storage    backend.Storage
	mailer     Mailer
	confirm    bool
	confirmURL string
	sessionTTL time.Duration
	reconnect  config.ReconnectPolicy
	ctx        context.Context
	cancel     context.CancelFunc
	now        func() time.Time
}

// New validates opts and builds the platform.
func New(opts Options) (*Platform, error) {
	if opts.DB == nil {
		return nil, errors.New("platform: database is required")
	}
	if opts.SigningKey == "" {
		return nil, errors.New("platform: signing key is required")
	}
	if opts.Broker == nil {
		opts.Broker = NewMemoryBroker()
	}
	if opts.Sessions == nil {
		opts.Sessions = store.NewMemoryKV()
	}
	if opts.Mailer == nil {
		opts.Mailer = LogMailer{}
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Platform{
		db:         opts.DB,
		broker:     opts.Broker,
		key:        []byte(opts.SigningKey),
		sessions:   opts.Sessions,
		storage:    opts.Storage,
		mailer:     opts.Mailer,
		confirm:    opts.RequireConfirmation,
		confirmURL: opts.ConfirmURL,
		sessionTTL: opts.SessionTTL,
		reconnect:  opts.Reconnect,
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
	}, nil
}

// Migrate creates the auth table and every collection.
func (p *Platform) Migrate() error {
	toMigrate := append([]any{&authUser{}}, models.AllModels()...)
	if err := p.db.AutoMigrate(toMigrate...); err != nil {
		return fmt.Errorf("migrate platform tables: %w", err)
	}
	return nil
}

// ClientFor returns the client bound to deviceID.
func (p *Platform) ClientFor(deviceID string) backend.Client {
	return &client{p: p, device: deviceID}
}

// Close stops every listener and the broker.
func (p *Platform) Close() error {
	p.cancel()
	return p.broker.Close()
}

type client struct {
	p      *Platform
	device string
}

func (c *client) Auth() backend.Auth         { return &deviceAuth{p: c.p, device: c.device} }
func (c *client) Tables() backend.Tables     { return &tables{p: c.p} }
func (c *client) Realtime() backend.Realtime { return &realtime{p: c.p} }
func (c *client) Storage() backend.Storage   { return c.p.storageOrDisabled() }
func (c *client) Degraded() bool             { return false }

func (p *Platform) storageOrDisabled() backend.Storage {
	if p.storage == nil {
		return disabledStorage{}
	}
	return p.storage
}
