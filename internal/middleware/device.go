package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// DeviceCookie identifies a browser device across requests.
	DeviceCookie = "campus_device"
	// LocalsDeviceID holds the device id of the request.
	LocalsDeviceID = "deviceID"

	deviceCookieTTL = 365 * 24 * time.Hour
)

// DeviceOptions configure the device cookie.
type DeviceOptions struct {
	Secure bool
}

// Device assigns every browser a stable device id. An absent or malformed
// cookie is replaced by a freshly minted one.
func Device(opts DeviceOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(DeviceCookie)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     DeviceCookie,
				Value:    id,
				Path:     "/",
				Expires:  time.Now().Add(deviceCookieTTL),
				HTTPOnly: true,
				Secure:   opts.Secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		c.Locals(LocalsDeviceID, id)
		return c.Next()
	}
}

// DeviceID returns the device id set by Device.
func DeviceID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalsDeviceID).(string)
	return id
}
