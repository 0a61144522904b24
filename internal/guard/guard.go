// Package guard decides whether a protected route may render for a device.
package guard

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
	"github.com/gofiber/fiber/v2"
)

// Redirect targets.
const (
	LoginPath        = "/auth/login"
	CampusPickerPath = "/auth/campuspicker"
)

// Outcome is the branch a navigation takes.
type Outcome string

const (
	RedirectLogin  Outcome = "redirect_login"
	Pending        Outcome = "pending"
	RedirectCampus Outcome = "redirect_campus"
	Render         Outcome = "render"
)

// Decision is the result of evaluating the guard.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Target  string  `json:"target,omitempty"`
}

// Decide evaluates the guard table. The user check comes first: a device
// with no user is sent to login even while stores are still hydrating.
func Decide(user *models.SessionUser, campus *models.CampusSelection, hydrated bool) Decision {
	switch {
	case user == nil:
		return Decision{Outcome: RedirectLogin, Target: LoginPath}
	case !hydrated:
		return Decision{Outcome: Pending}
	case campus == nil:
		return Decision{Outcome: RedirectCampus, Target: CampusPickerPath}
	default:
		return Decision{Outcome: Render}
	}
}

// StoresFunc resolves the stores of the device behind a request.
type StoresFunc func(c *fiber.Ctx) (*store.Stores, error)

// Config configures the middleware.
type Config struct {
	Stores StoresFunc
	// HydrationTimeout bounds the wait for persisted stores to load.
	HydrationTimeout time.Duration
	// RetryAfter is advertised when hydration did not finish in time.
	RetryAfter time.Duration
}

// LocalsUser and LocalsCampus hold the values the guard rendered with.
const (
	LocalsUser   = "sessionUser"
	LocalsCampus = "campusSelection"
)

// New returns a middleware that runs Decide for every request. It waits for
// the device's stores to finish loading; a wait that times out answers 503
// because an unloaded user store would otherwise read as signed out.
func New(cfg Config) fiber.Handler {
	if cfg.HydrationTimeout <= 0 {
		cfg.HydrationTimeout = 2 * time.Second
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = time.Second
	}
	return func(c *fiber.Ctx) error {
		stores, err := cfg.Stores(c)
		if err != nil {
			return models.RespondWithError(c, models.StatusFor(err), err)
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), cfg.HydrationTimeout)
		defer cancel()
		d := Decision{Outcome: Pending}
		if stores.WaitLoaded(ctx) == nil {
			d = Decide(stores.User.Get(), stores.Campus.Get(), true)
		}
		observability.GuardDecisions.WithLabelValues(string(d.Outcome)).Inc()

		switch d.Outcome {
		case Render:
			c.Locals(LocalsUser, stores.User.Get())
			c.Locals(LocalsCampus, stores.Campus.Get())
			return c.Next()
		case Pending:
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(cfg.RetryAfter.Seconds()+0.5)))
			return c.Status(fiber.StatusServiceUnavailable).JSON(d)
		}

		if wantsHTML(c) {
			return c.Redirect(d.Target, fiber.StatusFound)
		}
		status := fiber.StatusUnauthorized
		if d.Outcome == RedirectCampus {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(d)
	}
}

// User returns the user the guard admitted the request with.
func User(c *fiber.Ctx) (*models.SessionUser, error) {
	u, ok := c.Locals(LocalsUser).(*models.SessionUser)
	if !ok || u == nil {
		return nil, errors.New("request was not admitted by the route guard")
	}
	return u, nil
}

// Campus returns the campus the guard admitted the request with.
func Campus(c *fiber.Ctx) (*models.CampusSelection, error) {
	cs, ok := c.Locals(LocalsCampus).(*models.CampusSelection)
	if !ok || cs == nil {
		return nil, errors.New("request was not admitted by the route guard")
	}
	return cs, nil
}

func wantsHTML(c *fiber.Ctx) bool {
	if c.Get(fiber.HeaderXRequestedWith) != "" {
		return false
	}
	accept := c.Get(fiber.HeaderAccept)
	return strings.Contains(accept, fiber.MIMETextHTML)
}
