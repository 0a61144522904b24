package server

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_UpdateProfileAndSwitchCampus(t *testing.T) {
	h := newHarness(t)
	h.ready("nelly@uonbi.ac.ke")
	other := h.seedCampus("Moi University", "MU")

	resp, body := h.request(http.MethodGet, "/settings", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Len(t, body["campuses"], 2)

	resp, body = h.request(http.MethodPost, "/settings", map[string]string{
		"full_name": "Nelly Chebet",
		"year":      "3",
		"bio":       "Comp Sci, loves hiking",
		"campus_id": other.ID,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Nelly Chebet", body["profile"].(map[string]any)["full_name"])
	assert.Equal(t, "Moi University", body["campus"].(map[string]any)["name"])

	resp, body = h.request(http.MethodGet, "/home", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Nelly Chebet", body["user"].(map[string]any)["name"])
	assert.Equal(t, "Moi University", body["campus"].(map[string]any)["name"])
}

func TestSettings_RejectsUnknownCampus(t *testing.T) {
	h := newHarness(t)
	h.ready("ian@ku.ac.ke")

	resp, body := h.request(http.MethodPost, "/settings", map[string]string{
		"full_name": "Ian Mutua",
		"campus_id": uuid.NewString(),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "That campus does not exist", body["error"])
}

func TestProfile(t *testing.T) {
	h := newHarness(t)
	h.ready("beth@egerton.ac.ke")

	resp, body := h.request(http.MethodGet, "/profile", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "beth@egerton.ac.ke", body["profile"].(map[string]any)["email"])
}

func TestAlerts_LikeNotifiesAuthor(t *testing.T) {
	author := newHarness(t)
	campus := author.ready("daisy@uonbi.ac.ke")
	id := postConfession(t, author, "Lost my student ID near the hostel")

	fan := author.as(uuid.NewString())
	fan.signup("tom@uonbi.ac.ke")
	resp, _ := fan.request(http.MethodPost, "/auth/campuspicker", map[string]string{"campus_id": campus.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = fan.request(http.MethodPost, "/confessions/"+id+"/like", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := author.request(http.MethodGet, "/home", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["unread_alerts"])

	resp, body = author.request(http.MethodGet, "/alerts", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	alertID := items[0].(map[string]any)["id"].(string)

	resp, _ = author.request(http.MethodPost, "/alerts/"+alertID+"/read", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, body = author.request(http.MethodGet, "/alerts", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["unread"])

	resp, body = author.request(http.MethodPost, "/alerts/nope/read", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid alert ID", body["error"])
}

func TestFeatureFlags(t *testing.T) {
	h := newHarness(t)
	h.ready("sam@tuk.ac.ke")

	resp, body := h.request(http.MethodGet, "/flags", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "on", body["raw"].(map[string]any)["live_feeds"])
	assert.Equal(t, true, body["evaluated"].(map[string]any)["live_feeds"])
}
