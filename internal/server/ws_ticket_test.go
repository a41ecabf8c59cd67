package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"duet/internal/cache"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestApp mounts a plain echo route behind AuthRequired on a WS-shaped path
// so ticket consumption can be asserted without a real socket upgrade.
func wsTestApp(f *serverFixture) *fiber.App {
	app := fiber.New()
	app.Get("/api/ws/test", f.srv.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": currentUserID(c)})
	})
	app.Get("/api/other", f.srv.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": currentUserID(c)})
	})
	return app
}

func TestIssueWSTicket(t *testing.T) {
	f := newServerFixture(t)

	resp := f.request(t, http.MethodPost, "/api/ws/ticket", f.authToken(t, f.initiator), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON[struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}](t, resp)
	require.NotEmpty(t, body.Ticket)
	assert.Equal(t, int(cache.WSTicketTTL.Seconds()), body.ExpiresIn)

	stored, err := f.mr.Get(cache.WSTicketKey(body.Ticket))
	require.NoError(t, err)
	assert.Equal(t, f.initiator.String(), stored)
}

func TestAuthRequiredWSTicket(t *testing.T) {
	f := newServerFixture(t)
	app := wsTestApp(f)

	t.Run("valid ticket authenticates and is consumed", func(t *testing.T) {
		userID := uuid.New()
		ticket := uuid.NewString()
		require.NoError(t, f.mr.Set(cache.WSTicketKey(ticket), userID.String()))

		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket="+ticket, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeJSON[struct {
			UserID uuid.UUID `json:"user_id"`
		}](t, resp)
		assert.Equal(t, userID, body.UserID)

		// Single-use: the key is gone and a replay fails.
		assert.False(t, f.mr.Exists(cache.WSTicketKey(ticket)))
		req = httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket="+ticket, nil)
		resp, err = app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage ticket on ws path is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket=bogus", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("query token is not accepted on ws path", func(t *testing.T) {
		token := f.authToken(t, f.initiator)
		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?token="+token, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid ticket on regular path falls back to bearer", func(t *testing.T) {
		token := f.authToken(t, f.counterpart)
		req := httptest.NewRequest(http.MethodGet, "/api/other?ticket=stale", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeJSON[struct {
			UserID uuid.UUID `json:"user_id"`
		}](t, resp)
		assert.Equal(t, f.counterpart, body.UserID)
	})

	t.Run("query token works on regular path", func(t *testing.T) {
		token := f.authToken(t, f.initiator)
		req := httptest.NewRequest(http.MethodGet, "/api/other?token="+token, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
