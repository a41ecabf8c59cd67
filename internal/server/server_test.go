package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"duet/internal/config"
	"duet/internal/models"
	"duet/internal/questionbank"
	"duet/internal/repository"
	"duet/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// serverFixture bundles a fully wired test server with two account IDs that
// play the invite/accept flow in most tests.
type serverFixture struct {
	srv         *Server
	app         *fiber.App
	mr          *miniredis.Miniredis
	initiator   uuid.UUID
	counterpart uuid.UUID
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:         "test-secret",
		JWTIssuer:         "duet-auth",
		JWTAudience:       "duet-client",
		DefaultDailyQuota: 3,
		SlotTTL:           24 * time.Hour,
		InviteTTL:         time.Hour,
		PresenceTTL:       time.Minute,
		PresenceSweep:     time.Minute,
		PresenceGrace:     time.Second,
		FeatureFlags:      "presence=on,lifetime_progress=on,expiry_sweeper=on",
	}
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	db := testutil.OpenTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)

	bank, err := questionbank.Load()
	require.NoError(t, err)
	require.NoError(t, repository.NewQuestionRepository(db).UpsertBank(context.Background(), bank.Models()))

	srv, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)
	t.Cleanup(srv.tracker.Stop)

	app := fiber.New()
	srv.SetupRoutes(app)

	return &serverFixture{
		srv:         srv,
		app:         app,
		mr:          mr,
		initiator:   uuid.New(),
		counterpart: uuid.New(),
	}
}

// authToken mints a JWT the way the external auth service would.
func (f *serverFixture) authToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	return mintToken(t, f.srv.config, jwt.MapClaims{
		"sub": userID.String(),
		"iss": f.srv.config.JWTIssuer,
		"aud": f.srv.config.JWTAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

func mintToken(t *testing.T, cfg *config.Config, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	return signed
}

// request performs an HTTP request against the test app. A nil body sends no
// payload; anything else is JSON-encoded.
func (f *serverFixture) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// acceptedPairing drives the invite/accept flow over HTTP and returns the
// active pairing.
func (f *serverFixture) acceptedPairing(t *testing.T) *models.Pairing {
	t.Helper()

	resp := f.request(t, http.MethodPost, "/api/pairings", f.authToken(t, f.initiator), fiber.Map{
		"kind": models.KindCouple,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[struct {
		Pairing    models.Pairing `json:"pairing"`
		InviteCode string         `json:"invite_code"`
	}](t, resp)
	require.NotEmpty(t, created.InviteCode)

	resp = f.request(t, http.MethodPost, "/api/pairings/accept", f.authToken(t, f.counterpart), fiber.Map{
		"invite_code": created.InviteCode,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pairing := decodeJSON[models.Pairing](t, resp)
	require.Equal(t, models.PairingAccepted, pairing.Status)
	return &pairing
}
