package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidConfirmation is returned for an unknown or used confirmation token.
var ErrInvalidConfirmation = errors.New("invalid or expired confirmation link")

// authUser is the credential row. It never leaves this package.
type authUser struct {
	ID                 string         `gorm:"primaryKey;size:36"`
	Email              string         `gorm:"uniqueIndex;not null"`
	PasswordHash       string         `gorm:"not null"`
	Metadata           map[string]any `gorm:"serializer:json"`
	EmailConfirmedAt   *time.Time
	ConfirmationToken  string `gorm:"index"`
	ConfirmationSentAt *time.Time
	LastSignInAt       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (authUser) TableName() string { return "auth_users" }

func (u *authUser) public() *backend.AuthUser {
	return &backend.AuthUser{
		ID:               u.ID,
		Email:            u.Email,
		Metadata:         u.Metadata,
		EmailConfirmedAt: u.EmailConfirmedAt,
	}
}

func sessionKey(device string) string   { return SessionNamespace + ":" + device }
func revokedKey(jti string) string      { return SessionNamespace + "-revoked:" + jti }
func authChannel(device string) string  { return "auth:device:" + device }
func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

type deviceAuth struct {
	p      *Platform
	device string
}

// GetSession returns the device's session, or nil when there is none or it
// expired. An expired token is dropped and SIGNED_OUT is published.
func (a *deviceAuth) GetSession(ctx context.Context) (*backend.Session, error) {
	defer observability.TrackBackendCall("auth", "get_session")()

	token, ok, err := a.p.sessions.Get(ctx, sessionKey(a.device))
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !ok || token == "" {
		return nil, nil
	}

	session, err := a.p.parseToken(ctx, token)
	if err != nil {
		platformLog.Info(ctx, "dropping invalid session", map[string]any{"reason": err.Error()})
		_ = a.p.sessions.Delete(ctx, sessionKey(a.device))
		a.publish(ctx, backend.AuthChange{Event: backend.EventSignedOut})
		return nil, nil
	}
	return session, nil
}

func (a *deviceAuth) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	defer observability.TrackBackendCall("auth", "sign_in")()

	var u authUser
	err := a.p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backend.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("database error loading user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, backend.ErrInvalidCredentials
	}
	if a.p.confirm && u.EmailConfirmedAt == nil {
		return nil, backend.ErrEmailNotConfirmed
	}

	now := a.p.now()
	if err := a.p.db.WithContext(ctx).Model(&u).Update("last_sign_in_at", now).Error; err != nil {
		platformLog.Warn(ctx, "failed to record sign in", map[string]any{"error": err.Error()})
	}
	return a.startSession(ctx, &u)
}

func (a *deviceAuth) SignUp(ctx context.Context, in backend.SignUpInput) (*backend.SignUpResult, error) {
	defer observability.TrackBackendCall("auth", "sign_up")()

	email := normalizeEmail(in.Email)
	var existing int64
	if err := a.p.db.WithContext(ctx).Model(&authUser{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("database error checking email: %w", err)
	}
	if existing > 0 {
		return nil, backend.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := a.p.now()
	u := authUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     in.Metadata,
	}
	if a.p.confirm {
		u.ConfirmationToken = uuid.NewString()
		u.ConfirmationSentAt = &now
	} else {
		u.EmailConfirmedAt = &now
	}
	if err := a.p.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("database error creating user: %w", err)
	}

	if a.p.confirm {
		if err := a.p.mailer.SendConfirmation(ctx, u.Email, a.p.confirmLink(u.ConfirmationToken, in.RedirectTo)); err != nil {
			observability.LogAsyncOperationError(ctx, "send_confirmation", err, map[string]any{"email": u.Email})
		}
		return &backend.SignUpResult{User: u.public()}, nil
	}

	session, err := a.startSession(ctx, &u)
	if err != nil {
		return nil, err
	}
	return &backend.SignUpResult{User: u.public(), Session: session}, nil
}

func (a *deviceAuth) SignOut(ctx context.Context) error {
	defer observability.TrackBackendCall("auth", "sign_out")()

	token, ok, err := a.p.sessions.Get(ctx, sessionKey(a.device))
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if ok && token != "" {
		if jti := tokenID(token, a.p.key); jti != "" {
			if err := a.p.sessions.Set(ctx, revokedKey(jti), "1"); err != nil {
				platformLog.Warn(ctx, "failed to revoke token", map[string]any{"error": err.Error()})
			}
		}
	}
	if err := a.p.sessions.Delete(ctx, sessionKey(a.device)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	a.publish(ctx, backend.AuthChange{Event: backend.EventSignedOut})
	return nil
}

func (a *deviceAuth) ResendConfirmation(ctx context.Context, email string) error {
	defer observability.TrackBackendCall("auth", "resend_confirmation")()

	var u authUser
	err := a.p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Unknown addresses are not revealed.
		return nil
	}
	if err != nil {
		return fmt.Errorf("database error loading user: %w", err)
	}
	if u.EmailConfirmedAt != nil {
		return nil
	}
	now := a.p.now()
	token := uuid.NewString()
	if err := a.p.db.WithContext(ctx).Model(&u).Updates(map[string]any{
		"confirmation_token":   token,
		"confirmation_sent_at": now,
	}).Error; err != nil {
		return fmt.Errorf("database error updating user: %w", err)
	}
	return a.p.mailer.SendConfirmation(ctx, u.Email, a.p.confirmLink(token, ""))
}

// OnAuthStateChange delivers every session change published for this device,
// including ones caused by other tabs or server processes.
func (a *deviceAuth) OnAuthStateChange(fn func(backend.AuthChange)) backend.Subscription {
	ctx, cancel := context.WithCancel(a.p.ctx)
	err := a.p.listen(ctx, authChannel(a.device), "auth", func(payload []byte) {
		var change backend.AuthChange
		if err := json.Unmarshal(payload, &change); err != nil {
			platformLog.Warn(ctx, "auth listener: bad payload", map[string]any{"device_id": a.device, "error": err.Error()})
			return
		}
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in auth state listener: %v\n%s", r, debug.Stack())
			}
		}()
		fn(change)
	})
	if err != nil {
		platformLog.Error(ctx, "auth state subscription failed", err, map[string]any{"device_id": a.device})
	}
	return backend.SubscriptionFunc(cancel)
}

func (a *deviceAuth) startSession(ctx context.Context, u *authUser) (*backend.Session, error) {
	session, err := a.p.issueToken(u)
	if err != nil {
		return nil, err
	}
	if err := a.p.sessions.Set(ctx, sessionKey(a.device), session.AccessToken); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	a.publish(ctx, backend.AuthChange{Event: backend.EventSignedIn, Session: session})
	return session, nil
}

func (a *deviceAuth) publish(ctx context.Context, change backend.AuthChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		return
	}
	if err := a.p.broker.Publish(ctx, authChannel(a.device), payload); err != nil {
		platformLog.Error(ctx, "failed to publish auth change", err, map[string]any{"event": string(change.Event)})
	}
}

// ConfirmEmail marks the account behind token as confirmed.
func (p *Platform) ConfirmEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidConfirmation
	}
	res := p.db.WithContext(ctx).Model(&authUser{}).
		Where("confirmation_token = ? AND email_confirmed_at IS NULL", token).
		Updates(map[string]any{"email_confirmed_at": p.now(), "confirmation_token": ""})
	if res.Error != nil {
		return fmt.Errorf("database error confirming email: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidConfirmation
	}
	return nil
}

func (p *Platform) confirmLink(token, redirect string) string {
	link := strings.TrimRight(p.confirmURL, "/") + "/auth/confirm?token=" + token
	if redirect != "" {
		link += "&redirect_to=" + redirect
	}
	return link
}

type sessionClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	ConfirmedAt  *time.Time     `json:"email_confirmed_at,omitempty"`
	jwt.RegisteredClaims
}

func (p *Platform) issueToken(u *authUser) (*backend.Session, error) {
	now := p.now()
	exp := now.Add(p.sessionTTL)
	claims := sessionClaims{
		Email:        u.Email,
		UserMetadata: u.Metadata,
		ConfirmedAt:  u.EmailConfirmedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &backend.Session{
		AccessToken: signed,
		ExpiresAt:   exp,
		User:        u.public(),
	}, nil
}

func (p *Platform) parseToken(ctx context.Context, raw string) (*backend.Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.key, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.ID != "" {
		if _, revoked, err := p.sessions.Get(ctx, revokedKey(claims.ID)); err == nil && revoked {
			return nil, errors.New("token revoked")
		}
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return &backend.Session{
		AccessToken: raw,
		ExpiresAt:   exp,
		User: &backend.AuthUser{
			ID:               claims.Subject,
			Email:            claims.Email,
			Metadata:         claims.UserMetadata,
			EmailConfirmedAt: claims.ConfirmedAt,
		},
	}, nil
}

// tokenID extracts the jti of a token signed with key, ignoring expiry.
func tokenID(raw string, key []byte) string {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithoutClaimsValidation())
	if err != nil {
		return ""
	}
	return claims.ID
}
