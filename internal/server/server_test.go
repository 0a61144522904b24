package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brayobiz/campus-hub-sub000/internal/backend/platform"
	"github.com/brayobiz/campus-hub-sub000/internal/config"
	"github.com/brayobiz/campus-hub-sub000/internal/middleware"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/testutil"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// harness drives one server as a single browser device.
type harness struct {
	t        *testing.T
	s        *Server
	platform *platform.Platform
	app      *fiber.App
	device   string
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                "test",
		Port:               "0",
		FeatureFlags:       "live_feeds=on",
		PublicBaseURL:      "http://localhost:8375",
		HydrationTimeoutMS: 1000,
		SuccessMessageMS:   3600000,
		FeedLimit:          20,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	p := testutil.NewPlatform(t)
	s, err := NewServerWithDeps(testConfig(), p, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &harness{t: t, s: s, platform: p, app: s.App(), device: uuid.NewString()}
}

// as returns a harness for another device on the same server.
func (h *harness) as(device string) *harness {
	other := *h
	other.device = device
	return &other
}

func (h *harness) send(req *http.Request) (*http.Response, map[string]any) {
	h.t.Helper()
	req.AddCookie(&http.Cookie{Name: middleware.DeviceCookie, Value: h.device})
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	body := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(h.t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

// request sends a JSON request the way the app's pages do.
func (h *harness) request(method, path string, payload any) (*http.Response, map[string]any) {
	h.t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(h.t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return h.send(req)
}

// navigate sends a browser navigation.
func (h *harness) navigate(path string) *http.Response {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(fiber.HeaderAccept, "text/html,application/xhtml+xml")
	resp, _ := h.send(req)
	return resp
}

func (h *harness) seedCampus(name, short string) models.Campus {
	h.t.Helper()
	return testutil.SeedCampus(h.t, h.platform.ClientFor("seed").Tables(), name, short)
}

func (h *harness) signup(email string) map[string]any {
	h.t.Helper()
	resp, body := h.request(http.MethodPost, "/auth/signup", map[string]string{
		"full_name":        "Wanjiru Kamau",
		"email":            email,
		"password":         "Str0ngPass!",
		"confirm_password": "Str0ngPass!",
	})
	require.Equal(h.t, fiber.StatusCreated, resp.StatusCode, body)
	return body
}

// ready signs the device up and selects a fresh campus.
func (h *harness) ready(email string) models.Campus {
	h.t.Helper()
	campus := h.seedCampus("Kenyatta University "+email, "KU")
	h.signup(email)
	resp, body := h.request(http.MethodPost, "/auth/campuspicker", map[string]string{"campus_id": campus.ID})
	require.Equal(h.t, fiber.StatusOK, resp.StatusCode, body)
	return campus
}
