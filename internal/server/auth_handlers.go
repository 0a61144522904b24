package server

import (
	"errors"
	"net/url"
	"strings"

	"github.com/brayobiz/campus-hub-sub000/internal/backend/platform"
	"github.com/brayobiz/campus-hub-sub000/internal/guard"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/service"
	"github.com/gofiber/fiber/v2"
)

// Landing handles GET /
// @Summary Landing screen
// @Description Where the device should go next, given its stored session
// @Tags auth
// @Produce json
// @Success 200 {object} object{next=string,signed_in=bool,degraded=bool}
// @Router / [get]
func (s *Server) Landing(c *fiber.Ctx) error {
	d, err := s.device(c)
	if err != nil {
		return respond(c, err)
	}
	next := guard.LoginPath
	user := d.Stores.User.Get()
	if user != nil {
		next = "/home"
		if d.Stores.Campus.Get() == nil {
			next = guard.CampusPickerPath
		}
	}
	return c.JSON(fiber.Map{
		"next":      next,
		"signed_in": user != nil,
		"degraded":  d.Client.Degraded(),
	})
}

// LoginScreen describes the login form. A signed-in device is pointed past it.
func (s *Server) LoginScreen(c *fiber.Ctx) error {
	d, err := s.device(c)
	if err != nil {
		return respond(c, err)
	}
	view := fiber.Map{
		"fields":   []string{"email", "password"},
		"degraded": d.Client.Degraded(),
	}
	if u := d.Stores.User.Get(); u != nil {
		dec := guard.Decide(u, d.Stores.Campus.Get(), true)
		view["redirect"] = "/home"
		if dec.Target != "" {
			view["redirect"] = dec.Target
		}
	}
	return c.JSON(view)
}

// Login handles POST /auth/login
// @Summary Sign in
// @Description Authenticate and populate the device session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse "email not confirmed; action resend_confirmation"
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	d, err := s.device(c)
	if err != nil {
		return respond(c, err)
	}
	res, err := d.Auth.Login(c.UserContext(), req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(res)
}

// SignupScreen describes the signup form.
func (s *Server) SignupScreen(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"fields": []string{"full_name", "email", "password", "confirm_password"},
	})
}

// Signup handles POST /auth/signup
// @Summary Create an account
// @Description Validate, register and either sign in or send a confirmation email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} service.AuthResult
// @Success 202 {object} service.AuthResult "confirmation_sent"
// @Failure 400 {object} models.ErrorResponse
// @Failure 504 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	d, err := s.device(c)
	if err != nil {
		return respond(c, err)
	}
	res, err := d.Auth.Signup(c.UserContext(), req)
	if err != nil {
		return respond(c, err)
	}
	status := fiber.StatusCreated
	if res.Status == service.SignupConfirmationSent {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(res)
}

// ResendConfirmation handles POST /auth/resend
func (s *Server) ResendConfirmation(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" form:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	d, err := s.device(c)
	if err != nil {
		return respond(c, err)
	}
	if err := d.Auth.ResendConfirmation(c.UserContext(), req.Email); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Confirmation email sent. Check your inbox."})
}

// ConfirmEmail handles the link in the confirmation email.
func (s *Server) ConfirmEmail(c *fiber.Ctx) error {
	if s.platform == nil {
		return respond(c, models.NewUnavailableError("Email confirmation is unavailable"))
	}
	err := s.platform.ConfirmEmail(c.UserContext(), c.Query("token"))
	if errors.Is(err, platform.ErrInvalidConfirmation) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("This confirmation link is invalid or has already been used"))
	}
	if err != nil {
		return respond(c, models.WrapBackendError(err))
	}

	target := guard.LoginPath
	if to := c.Query("redirect_to"); sameOrigin(to, s.config.PublicBaseURL) {
		target = to
	}
	return c.Redirect(target, fiber.StatusFound)
}

// sameOrigin accepts only targets on the public base URL, so the link
// cannot bounce users to another site.
func sameOrigin(target, base string) bool {
	if target == "" || base == "" {
		return false
	}
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	return strings.EqualFold(t.Scheme, b.Scheme) && strings.EqualFold(t.Host, b.Host)
}

// Logout handles POST /auth/logout
// @Summary Sign out
// @Tags auth
// @Produce json
// @Success 200 {object} object{redirect=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	d, err := s.device(c)
	if err != nil {
		return respond(c, err)
	}
	if err := d.Auth.Logout(c.UserContext()); err != nil {
		// The stores are already cleared; the device is signed out locally.
		serverLog.Warn(c.UserContext(), "backend sign out failed", map[string]any{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"redirect": guard.LoginPath})
}

// CampusPicker handles GET /auth/campuspicker
func (s *Server) CampusPicker(c *fiber.Ctx) error {
	d, err := s.device(c)
	if err != nil {
		return respond(c, err)
	}
	campuses, err := d.Campuses.List(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{
		"campuses": campuses,
		"selected": d.Stores.Campus.Get(),
	})
}

// SelectCampus handles POST /auth/campuspicker
// @Summary Pick a campus
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{campus_id=string} true "Campus"
// @Success 200 {object} object{campus=models.CampusSelection,redirect=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /auth/campuspicker [post]
func (s *Server) SelectCampus(c *fiber.Ctx) error {
	var req struct {
		CampusID string `json:"campus_id" form:"campus_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	d, err := s.device(c)
	if err != nil {
		return respond(c, err)
	}
	user, err := guard.User(c)
	if err != nil {
		return respond(c, models.NewUnauthorizedError(err.Error()))
	}
	campus, err := d.Campuses.Select(c.UserContext(), *user, req.CampusID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"campus": campus, "redirect": "/home"})
}
