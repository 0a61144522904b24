package server

import (
	"github.com/brayobiz/campus-hub-sub000/internal/content"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/service"
	"github.com/gofiber/fiber/v2"
)

type menuItem struct {
	Domain content.Domain `json:"domain"`
	Feed   string         `json:"feed"`
	Post   string         `json:"post"`
}

type homeView struct {
	User   models.SessionUser     `json:"user"`
	Campus models.CampusSelection `json:"campus"`
	Menu   []menuItem             `json:"menu"`
	Unread int64                  `json:"unread_alerts"`
}

// Home handles GET /home
// @Summary Home screen
// @Tags screens
// @Produce json
// @Success 200 {object} homeView
// @Failure 401 {object} guard.Decision
// @Failure 409 {object} guard.Decision
// @Router /home [get]
func (s *Server) Home(c *fiber.Ctx) error {
	d, user, campus, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}
	view := homeView{User: user, Campus: campus, Menu: make([]menuItem, 0, len(content.Domains))}
	for _, dom := range content.Domains {
		view.Menu = append(view.Menu, menuItem{Domain: dom, Feed: "/feeds/" + string(dom), Post: "/post/" + string(dom)})
	}
	// The badge is decoration; a failed count leaves it at zero.
	if alerts, err := d.Content.Alerts(c.UserContext(), user.ID); err == nil {
		view.Unread = alerts.Unread
	} else {
		serverLog.Warn(c.UserContext(), "alert badge unavailable", map[string]any{"error": err.Error()})
	}
	return c.JSON(view)
}

// Explore handles GET /explore
func (s *Server) Explore(c *fiber.Ctx) error {
	d, _, campus, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}
	tiles, err := d.Content.Explore(c.UserContext(), campus.ID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"campus": campus, "tiles": tiles})
}

// Alerts handles GET /alerts
func (s *Server) Alerts(c *fiber.Ctx) error {
	d, user, _, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}
	alerts, err := d.Content.Alerts(c.UserContext(), user.ID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(alerts)
}

// MarkAlertRead handles POST /alerts/:alertId/read
func (s *Server) MarkAlertRead(c *fiber.Ctx) error {
	id, err := parseID(c, "alertId")
	if err != nil {
		return nil
	}
	d, user, _, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}
	if err := d.Content.MarkAlertRead(c.UserContext(), user.ID, id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Profile handles GET /profile
func (s *Server) Profile(c *fiber.Ctx) error {
	d, user, _, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}
	view, err := d.Profiles.Get(c.UserContext(), user)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(view)
}

// Settings handles GET /settings: the profile plus the campuses it may
// switch to.
func (s *Server) Settings(c *fiber.Ctx) error {
	d, user, _, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}
	view, err := d.Profiles.Get(c.UserContext(), user)
	if err != nil {
		return respond(c, err)
	}
	campuses, err := d.Campuses.List(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"profile": view.Profile, "campus": view.Campus, "campuses": campuses})
}

// SaveSettings handles POST /settings
// @Summary Update profile
// @Description Saves name, year and bio; a campus_id switches campus
// @Tags screens
// @Accept json
// @Produce json
// @Param request body service.UpdateProfileInput true "Profile fields"
// @Success 200 {object} service.ProfileView
// @Failure 400 {object} models.ErrorResponse
// @Router /settings [post]
func (s *Server) SaveSettings(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	d, user, _, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}
	view, err := d.Profiles.Update(c.UserContext(), user, req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(view)
}
