package server

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"time"
	"unicode"

	"github.com/brayobiz/campus-hub-sub000/internal/app"
	"github.com/brayobiz/campus-hub-sub000/internal/guard"
	"github.com/brayobiz/campus-hub-sub000/internal/middleware"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/postform"
	"github.com/brayobiz/campus-hub-sub000/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// respond writes err with the status its code maps to.
func respond(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// parseID extracts a route parameter holding a record id.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "alertId" -> "Invalid alert ID").
func parseID(c *fiber.Ctx, param string) (string, error) {
	id := c.Params(param)
	if _, err := uuid.Parse(id); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return "", errResponseWritten
	}
	return id, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "alertId" -> "alert ID", "confessionId" -> "confession ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// device resolves the application context of the request's device.
func (s *Server) device(c *fiber.Ctx) (*app.Device, error) {
	id := middleware.DeviceID(c)
	if id == "" {
		return nil, models.NewValidationError("Missing device cookie")
	}
	d, err := s.registry.Get(c.UserContext(), id)
	if errors.Is(err, app.ErrRegistryClosed) {
		return nil, models.NewUnavailableError("Server is shutting down")
	}
	return d, err
}

// deviceStores is the guard's view of a request.
func (s *Server) deviceStores(c *fiber.Ctx) (*store.Stores, error) {
	d, err := s.device(c)
	if err != nil {
		return nil, err
	}
	return d.Stores, nil
}

// admitted returns the device, user and campus a guarded request rendered
// with.
func (s *Server) admitted(c *fiber.Ctx) (*app.Device, models.SessionUser, models.CampusSelection, error) {
	d, err := s.device(c)
	if err != nil {
		return nil, models.SessionUser{}, models.CampusSelection{}, err
	}
	user, err := guard.User(c)
	if err != nil {
		return nil, models.SessionUser{}, models.CampusSelection{}, models.NewUnauthorizedError(err.Error())
	}
	campus, err := guard.Campus(c)
	if err != nil {
		return nil, models.SessionUser{}, models.CampusSelection{}, models.NewUnauthorizedError(err.Error())
	}
	return d, *user, *campus, nil
}

// signedIn admits any device with a user, campus or not. The campus picker
// sits behind it.
func (s *Server) signedIn() fiber.Handler {
	return func(c *fiber.Ctx) error {
		stores, err := s.deviceStores(c)
		if err != nil {
			return respond(c, err)
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), s.hydrationTimeout())
		defer cancel()
		if err := stores.WaitLoaded(ctx); err != nil {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).JSON(guard.Decision{Outcome: guard.Pending})
		}
		user := stores.User.Get()
		if user == nil {
			d := guard.Decide(nil, nil, true)
			if strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMETextHTML) {
				return c.Redirect(d.Target, fiber.StatusFound)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(d)
		}
		c.Locals(guard.LocalsUser, user)
		return c.Next()
	}
}

func (s *Server) hydrationTimeout() time.Duration {
	if s.config == nil {
		return 2 * time.Second
	}
	return s.config.HydrationTimeout()
}

// formFiles adapts a multipart form to the post form's file values.
func formFiles(form *multipart.Form) map[string][]postform.File {
	if form == nil {
		return nil
	}
	out := make(map[string][]postform.File, len(form.File))
	for name, headers := range form.File {
		for _, h := range headers {
			out[name] = append(out[name], postform.File{
				Name:        h.Filename,
				ContentType: h.Header.Get(fiber.HeaderContentType),
				Size:        h.Size,
				Open: func() (io.ReadCloser, error) {
					f, err := h.Open()
					if err != nil {
						return nil, err
					}
					return f, nil
				},
			})
		}
	}
	return out
}

// formValues flattens a multipart form to its first value per field.
func formValues(form *multipart.Form) map[string]string {
	if form == nil {
		return nil
	}
	out := make(map[string]string, len(form.Value))
	for name, vs := range form.Value {
		if len(vs) > 0 {
			out[name] = vs[0]
		}
	}
	return out
}
