package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/guard"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/brayobiz/campus-hub-sub000/internal/repository"
	"github.com/brayobiz/campus-hub-sub000/internal/session"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
	"github.com/brayobiz/campus-hub-sub000/internal/validation"
)

var authLog = observability.NewComponentLogger("auth")

// DefaultSignupTimeout is raced against the signup backend call.
const DefaultSignupTimeout = 15 * time.Second

// Signup statuses.
const (
	SignupSignedIn         = "signed_in"
	SignupConfirmationSent = "confirmation_sent"
)

// AuthService runs the login, signup and logout flows of one device.
type AuthService struct {
	auth          backend.Auth
	profiles      repository.ProfileRepository
	boot          *session.Bootstrap
	stores        *store.Stores
	signupTimeout time.Duration
	redirectTo    string
}

// AuthOptions configure AuthService.
type AuthOptions struct {
	SignupTimeout time.Duration
	// ConfirmRedirect is where the confirmation email link lands.
	ConfirmRedirect string
}

type LoginInput struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type SignupInput struct {
	FullName        string `json:"full_name" form:"full_name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// AuthResult tells the caller where to go next.
type AuthResult struct {
	Status   string              `json:"status,omitempty"`
	User     *models.SessionUser `json:"user,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
}

func NewAuthService(client backend.Client, boot *session.Bootstrap, stores *store.Stores, opts AuthOptions) *AuthService {
	if opts.SignupTimeout <= 0 {
		opts.SignupTimeout = DefaultSignupTimeout
	}
	return &AuthService{
		auth:          client.Auth(),
		profiles:      repository.NewProfileRepository(client.Tables()),
		boot:          boot,
		stores:        stores,
		signupTimeout: opts.SignupTimeout,
		redirectTo:    opts.ConfirmRedirect,
	}
}

// Login signs in and waits until the stores reflect the new session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	sess, err := s.auth.SignIn(ctx, email, in.Password)
	switch {
	case errors.Is(err, backend.ErrInvalidCredentials):
		return nil, models.NewUnauthorizedError("Invalid email or password")
	case errors.Is(err, backend.ErrEmailNotConfirmed):
		return nil, models.NewEmailNotConfirmedError(email)
	case err != nil:
		authLog.Warn(ctx, "sign in failed", map[string]any{"error": err.Error(), "class": string(models.Classify(err))})
		return nil, backend.Wrap(err)
	}
	return s.enter(ctx, sess, SignupSignedIn), nil
}

// Signup validates input, registers the account within the signup timeout
// and creates the profile row.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	for _, check := range []error{
		validation.ValidateFullName(in.FullName),
		validation.ValidateEmail(in.Email),
		validation.ValidatePassword(in.Password),
		validation.ValidatePasswordConfirmation(in.Password, in.ConfirmPassword),
	} {
		if check != nil {
			return nil, models.NewValidationError(check.Error())
		}
	}

	res, err := s.signUpWithTimeout(ctx, backend.SignUpInput{
		Email:      in.Email,
		Password:   in.Password,
		Metadata:   map[string]any{"full_name": in.FullName},
		RedirectTo: s.redirectTo,
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return nil, models.NewTimeoutError(err)
	case errors.Is(err, backend.ErrUserExists):
		return nil, models.NewValidationError("An account with this email already exists. Try signing in instead.")
	case err != nil:
		return nil, backend.Wrap(err)
	}

	if res.User != nil {
		profile := &models.Profile{Record: models.Record{ID: res.User.ID}, Email: in.Email, FullName: in.FullName}
		if err := s.profiles.Upsert(ctx, profile); err != nil {
			observability.LogAsyncOperationError(ctx, "profile.create", err, map[string]any{"user_id": res.User.ID})
		}
	}
	if res.Session == nil {
		return &AuthResult{Status: SignupConfirmationSent, Redirect: guard.LoginPath}, nil
	}
	return s.enter(ctx, res.Session, SignupSignedIn), nil
}

// signUpWithTimeout returns context.DeadlineExceeded when the timer wins,
// even if the backend call ignores cancellation.
func (s *AuthService) signUpWithTimeout(ctx context.Context, in backend.SignUpInput) (*backend.SignUpResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.signupTimeout)
	defer cancel()

	type result struct {
		res *backend.SignUpResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := s.auth.SignUp(ctx, in)
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		authLog.Warn(ctx, "signup timed out", map[string]any{"timeout_ms": s.signupTimeout.Milliseconds()})
		return nil, ctx.Err()
	}
}

// ResendConfirmation sends a new confirmation email.
func (s *AuthService) ResendConfirmation(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := s.auth.ResendConfirmation(ctx, email); err != nil {
		return backend.Wrap(err)
	}
	return nil
}

// Logout ends the session. Stores are cleared here as well as through the
// auth-change subscription so the redirect does not depend on delivery.
func (s *AuthService) Logout(ctx context.Context) error {
	err := s.auth.SignOut(ctx)
	s.boot.Clear(ctx)
	if err != nil {
		return backend.Wrap(err)
	}
	return nil
}

func (s *AuthService) enter(ctx context.Context, sess *backend.Session, status string) *AuthResult {
	s.boot.Apply(ctx, sess)
	d := guard.Decide(s.stores.User.Get(), s.stores.Campus.Get(), true)
	redirect := "/home"
	if d.Target != "" {
		redirect = d.Target
	}
	return &AuthResult{Status: status, User: s.stores.User.Get(), Redirect: redirect}
}
