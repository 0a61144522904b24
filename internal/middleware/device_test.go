package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deviceApp() *fiber.App {
	app := fiber.New()
	app.Use(Device(DeviceOptions{Secure: true}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(DeviceID(c)) })
	return app
}

func TestDevice_MintsCookie(t *testing.T) {
	resp, err := deviceApp().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DeviceCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	_, err = uuid.Parse(cookies[0].Value)
	assert.NoError(t, err)
}

func TestDevice_KeepsValidCookie(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookie, Value: id})
	resp, err := deviceApp().Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Empty(t, resp.Cookies())
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, id, string(body))
}

func TestDevice_ReplacesForgedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookie, Value: "../../etc"})
	resp, err := deviceApp().Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Len(t, resp.Cookies(), 1)
	assert.NotEqual(t, "../../etc", resp.Cookies()[0].Value)
}
