package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/testutil"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/usercontext"
)

func newAuthApp(t *testing.T) (*fiber.App, *testutil.Stores) {
	t.Helper()
	stores := testutil.NewStores()
	app := fiber.New()
	app.Use(APIKeyAuthMiddleware(stores.Members))
	app.Get("/whoami", RequireAuth, func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	app.Get("/admin", RequireAdmin, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app, stores
}

func addMemberWithKey(t *testing.T, stores *testutil.Stores, role, status string) (*models.Member, string) {
	t.Helper()
	m := &models.Member{Name: "Grower", Email: role + "@example.com", Role: role, Status: status}
	key, err := m.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, stores.Members.Create(context.Background(), m))
	return m, key
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	app, stores := newAuthApp(t)
	member, key := addMemberWithKey(t, stores, models.ROLE_MEMBER, models.STATUS_ACTIVE)
	_, suspendedKey := addMemberWithKey(t, stores, models.ROLE_UNIT_LEADER, models.STATUS_SUSPENDED)

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"Missing key", "", "", fiber.StatusUnauthorized},
		{"Unknown key", "X-API-Key", "ac_nope", fiber.StatusUnauthorized},
		{"Header key", "X-API-Key", key, fiber.StatusOK},
		{"Bearer key", "Authorization", "Bearer " + key, fiber.StatusOK},
		{"Lowercase bearer", "Authorization", "bearer " + key, fiber.StatusOK},
		{"Suspended member", "X-API-Key", suspendedKey, fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("X-API-Key", key)
	resp, err := app.Test(req)
	require.NoError(t, err)
	var uc usercontext.UserContext
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uc))
	assert.Equal(t, member.ID, uc.MemberID)
	assert.True(t, uc.IsLoggedIn)
	assert.False(t, uc.IsAdmin)

	stored, err := stores.Members.GetByID(context.Background(), member.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.APIKeyLastUsedAt, "successful calls touch the key")
}

func TestRequireAdmin(t *testing.T) {
	app, stores := newAuthApp(t)
	_, memberKey := addMemberWithKey(t, stores, models.ROLE_MEMBER, models.STATUS_ACTIVE)
	_, adminKey := addMemberWithKey(t, stores, models.ROLE_ADMIN, models.STATUS_ACTIVE)

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-API-Key", memberKey)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-API-Key", adminKey)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAuthWithoutContext(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequireAuth, func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/admin", RequireAdmin, func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
