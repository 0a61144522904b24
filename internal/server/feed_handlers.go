package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brayobiz/campus-hub-sub000/internal/content"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/postform"
	"github.com/gofiber/fiber/v2"
)

// parseDomain reads :domain. On failure it writes a 404 and returns
// errResponseWritten.
func parseDomain(c *fiber.Ctx) (content.Domain, error) {
	d, ok := content.ParseDomain(c.Params("domain"))
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Feed", c.Params("domain")))
		return "", errResponseWritten
	}
	return d, nil
}

// Feed handles GET /feeds/:domain
// @Summary Campus feed
// @Description Current view of a domain feed; refresh=true reloads it (the manual retry action)
// @Tags feeds
// @Produce json
// @Param domain path string true "confessions, marketplace, events, food, notes or roommates"
// @Param refresh query bool false "Reload before answering"
// @Success 200 {object} object{domain=string,view=object}
// @Router /feeds/{domain} [get]
func (s *Server) Feed(c *fiber.Ctx) error {
	domain, err := parseDomain(c)
	if err != nil {
		return nil
	}
	d, _, _, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}

	screen := d.Feed(c.UserContext(), domain)
	view := screen.Render()
	if c.QueryBool("refresh") {
		view = screen.Refresh(c.UserContext(), false)
	}
	return c.JSON(fiber.Map{"domain": domain, "view": view})
}

// PostForm handles GET /post/:domain
func (s *Server) PostForm(c *fiber.Ctx) error {
	domain, err := parseDomain(c)
	if err != nil {
		return nil
	}
	d, user, campus, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(d.Form(domain, user, campus).State())
}

// SubmitPost handles POST /post/:domain
// @Summary Publish a post
// @Description Multipart form with the domain's fields; files go in their field name
// @Tags feeds
// @Accept mpfd
// @Produce json
// @Param domain path string true "Domain"
// @Success 201 {object} object{outcome=string,state=postform.State}
// @Failure 400 {object} object{outcome=string,state=postform.State}
// @Failure 409 {object} models.ErrorResponse
// @Router /post/{domain} [post]
func (s *Server) SubmitPost(c *fiber.Ctx) error {
	domain, err := parseDomain(c)
	if err != nil {
		return nil
	}
	d, user, campus, err := s.admitted(c)
	if err != nil {
		return respond(c, err)
	}

	values, files, err := submission(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid form body"))
	}

	form := d.Form(domain, user, campus)
	outcome, err := form.Submit(c.UserContext(), values, files)
	if errors.Is(err, postform.ErrBusy) {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewValidationError(err.Error()))
	}

	status := fiber.StatusCreated
	switch outcome {
	case postform.Invalid, postform.Rejected:
		status = fiber.StatusBadRequest
	case postform.Failed:
		status = models.StatusFor(err)
	}
	return c.Status(status).JSON(fiber.Map{"outcome": outcome, "state": form.State()})
}

// submission reads a post body: multipart with files, a JSON object or an
// urlencoded form.
func submission(c *fiber.Ctx) (map[string]string, map[string][]postform.File, error) {
	if len(c.Request().Header.MultipartFormBoundary()) > 0 {
		mf, err := c.MultipartForm()
		if err != nil {
			return nil, nil, err
		}
		return formValues(mf), formFiles(mf), nil
	}

	values := map[string]string{}
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		var raw map[string]any
		if err := json.Unmarshal(c.Body(), &raw); err != nil {
			return nil, nil, err
		}
		for k, v := range raw {
			if v != nil {
				values[k] = fmt.Sprint(v)
			}
		}
		return values, nil, nil
	}
	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		values[string(k)] = string(v)
	})
	return values, nil, nil
}
