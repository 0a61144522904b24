package server

import (
	"github.com/brayobiz/campus-hub-sub000/internal/app"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/gofiber/fiber/v2"
)

// confession loads :id for the admitted viewer. Confessions of other
// campuses are reported as missing. On failure the response is already
// written and errResponseWritten is returned.
func (s *Server) confession(c *fiber.Ctx) (*app.Device, models.SessionUser, *models.Confession, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, models.SessionUser{}, nil, err
	}
	d, user, campus, err := s.admitted(c)
	if err != nil {
		_ = respond(c, err)
		return nil, models.SessionUser{}, nil, errResponseWritten
	}
	conf, err := d.Content.GetConfession(c.UserContext(), user.ID, id)
	if err == nil && conf.CampusID != campus.ID {
		err = models.NewNotFoundError("Confession", id)
	}
	if err != nil {
		_ = respond(c, err)
		return nil, models.SessionUser{}, nil, errResponseWritten
	}
	return d, user, conf, nil
}

func commentsForViewer(comments []models.ConfessionComment, viewerID string, parent *models.Confession) []models.ConfessionComment {
	out := make([]models.ConfessionComment, len(comments))
	for i := range comments {
		out[i] = comments[i].ForViewer(viewerID, parent)
	}
	return out
}

// LikeConfession handles POST /confessions/:id/like
// @Summary Like a confession
// @Tags confessions
// @Produce json
// @Param id path string true "Confession ID"
// @Success 200 {object} models.Confession
// @Failure 404 {object} models.ErrorResponse
// @Router /confessions/{id}/like [post]
func (s *Server) LikeConfession(c *fiber.Ctx) error {
	d, user, conf, err := s.confession(c)
	if err != nil {
		return nil
	}
	if err := d.Content.Like(c.UserContext(), user, conf); err != nil {
		return respond(c, err)
	}
	return c.JSON(conf.ForViewer(user.ID))
}

// UnlikeConfession handles DELETE /confessions/:id/like
func (s *Server) UnlikeConfession(c *fiber.Ctx) error {
	d, user, conf, err := s.confession(c)
	if err != nil {
		return nil
	}
	if err := d.Content.Unlike(c.UserContext(), user, conf); err != nil {
		return respond(c, err)
	}
	return c.JSON(conf.ForViewer(user.ID))
}

// ConfessionComments handles GET /confessions/:id/comments
func (s *Server) ConfessionComments(c *fiber.Ctx) error {
	d, user, conf, err := s.confession(c)
	if err != nil {
		return nil
	}
	comments, err := d.Content.Comments(c.UserContext(), conf.ID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{
		"confession": conf.ForViewer(user.ID),
		"comments":   commentsForViewer(comments, user.ID, conf),
	})
}

// AddConfessionComment handles POST /confessions/:id/comments
// @Summary Comment on a confession
// @Tags confessions
// @Accept json
// @Produce json
// @Param id path string true "Confession ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} models.ConfessionComment
// @Failure 400 {object} models.ErrorResponse
// @Router /confessions/{id}/comments [post]
func (s *Server) AddConfessionComment(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content" form:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	d, user, conf, err := s.confession(c)
	if err != nil {
		return nil
	}
	comment, err := d.Content.AddComment(c.UserContext(), user, conf, req.Content)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"comment":    comment.ForViewer(user.ID, conf),
		"confession": conf.ForViewer(user.ID),
	})
}
