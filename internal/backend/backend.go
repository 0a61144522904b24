// Package backend defines the collaborator that owns persistence, auth, blob
// storage and realtime change notification. Everything in the app talks to
// these interfaces; platform and stub provide implementations.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/models"
)

// ErrNotConfigured is returned by writes against the degraded stub backend.
var ErrNotConfigured = errors.New("backend is not configured; the app is running read-only")

// ErrInvalidCredentials is returned by SignIn for a wrong email or password.
var ErrInvalidCredentials = errors.New("invalid login credentials")

// ErrEmailNotConfirmed is returned by SignIn when the account is not confirmed yet.
var ErrEmailNotConfirmed = errors.New("email not confirmed")

// ErrUserExists is returned by SignUp when the email is already registered.
var ErrUserExists = errors.New("user already registered")

// ErrUnknownTable is returned for a collection the backend does not expose.
var ErrUnknownTable = errors.New("unknown table")

// AuthUser is the identity carried inside a session.
type AuthUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Metadata         map[string]any `json:"user_metadata,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
}

// MetadataString returns a string value from the user metadata.
func (u *AuthUser) MetadataString(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	s, _ := u.Metadata[key].(string)
	return s
}

// Session is an authenticated session held by one device.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *AuthUser `json:"user"`
}

// AuthEvent names a session change.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthChange is delivered to auth subscribers.
type AuthChange struct {
	Event   AuthEvent `json:"event"`
	Session *Session  `json:"session,omitempty"`
}

// SignUpInput carries the fields needed to register.
type SignUpInput struct {
	Email    string
	Password string
	Metadata map[string]any
	// RedirectTo is embedded in the confirmation email link.
	RedirectTo string
}

// SignUpResult reports the outcome of a registration. Session is nil when
// the account still needs email confirmation.
type SignUpResult struct {
	User    *AuthUser
	Session *Session
}

// Subscription is a long-lived registration that can be cancelled.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a func to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() { f() }

// Auth is the authentication surface, bound to one device.
type Auth interface {
	GetSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	ResendConfirmation(ctx context.Context, email string) error
	OnAuthStateChange(fn func(AuthChange)) Subscription
}

// Filter is an equality predicate on a column.
type Filter struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Query describes a select against a collection.
type Query struct {
	Table   string
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Tables is the tabular data surface.
type Tables interface {
	// Select runs q and decodes rows into dest, a pointer to a slice of models.
	Select(ctx context.Context, q Query, dest any) error
	// Count returns the number of rows matching filters.
	Count(ctx context.Context, table string, filters ...Filter) (int64, error)
	// Insert stores row, a pointer to a model, and fills generated fields.
	Insert(ctx context.Context, table string, row any) error
	// Update sets values on every row matching filters.
	Update(ctx context.Context, table string, values map[string]any, filters ...Filter) error
	// Delete removes every row matching filters.
	Delete(ctx context.Context, table string, filters ...Filter) error
}

// ChangeType is the kind of row change.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one row-level change pushed by the realtime surface.
type ChangeEvent struct {
	Table  string          `json:"table"`
	Type   ChangeType      `json:"type"`
	Record json.RawMessage `json:"record,omitempty"`
	At     time.Time       `json:"at"`
}

// Channel selects the change stream of one collection, optionally narrowed
// by an equality filter on the changed record.
type Channel struct {
	Table  string
	Filter *Filter
}

// Name returns a stable identifier for metrics and logs.
func (c Channel) Name() string {
	if c.Filter == nil {
		return c.Table
	}
	return c.Table + ":" + c.Filter.Column
}

// Realtime is the change-notification surface.
type Realtime interface {
	Subscribe(ctx context.Context, ch Channel, fn func(ChangeEvent)) (Subscription, error)
}

// Storage is the blob-storage surface.
type Storage interface {
	Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) error
	PublicURL(bucket, path string) string
}

// Client bundles the four surfaces for one device.
type Client interface {
	Auth() Auth
	Tables() Tables
	Realtime() Realtime
	Storage() Storage
	// Degraded reports whether this is the read-only stand-in.
	Degraded() bool
}

// Provider hands out per-device clients.
type Provider interface {
	ClientFor(deviceID string) Client
	Close() error
}

// Wrap converts a collaborator error into the AppError shown to users. The
// read-only stand-in's rejection keeps its own message.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotConfigured) {
		return &models.AppError{Code: models.CodeUnavailable, Message: ErrNotConfigured.Error(), Err: err}
	}
	return models.WrapBackendError(err)
}
