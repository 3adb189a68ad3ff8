package ginserver

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleamarket/internal/app/dto"
	authsvc "fleamarket/internal/app/services/auth"
	marketsvc "fleamarket/internal/app/services/market"
	domainlistings "fleamarket/internal/domain/listings"
	domainuser "fleamarket/internal/domain/user"
	"fleamarket/internal/infra/config"
	"fleamarket/internal/infra/obs"
	"fleamarket/internal/infra/security"
	"fleamarket/internal/infra/storage/memory"
	"fleamarket/internal/infra/storage/s3"
)

type adminTestApp struct {
	*testApp
	users  *memory.UserRepository
	market *marketsvc.Service
}

func newAdminTestApp(t *testing.T) *adminTestApp {
	t.Helper()
	users := memory.NewUserRepository()
	chatStore := memory.NewChatStore()
	listings := memory.NewListingRepository()
	purchases := memory.NewPurchaseRepository()

	authService := &authsvc.Service{
		Users:      users,
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{Cost: 4},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}
	marketService := &marketsvc.Service{
		Listings:  listings,
		Purchases: purchases,
		Uploader:  s3.NoopUploader{},
	}

	cfg := config.Config{Env: "test", HTTPAddr: ":0"}
	httpServer := NewServer(cfg, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Auth: AuthHandler{Service: authService},
		Admin: AdminHandler{
			Users:         users,
			Listings:      listings,
			Purchases:     purchases,
			Conversations: chatStore,
		},
		AuthMiddleware: AuthMiddleware{Service: authService}.Handle,
	})

	server := httptest.NewServer(httpServer.Handler)
	t.Cleanup(server.Close)
	return &adminTestApp{
		testApp: &testApp{server: server, client: server.Client()},
		users:   users,
		market:  marketService,
	}
}

func (a *adminTestApp) promote(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	user, err := a.users.ByID(ctx, domainuser.ID(userID))
	require.NoError(t, err)
	require.NoError(t, user.EnsureRole(domainuser.RoleAdmin, time.Now()))
	require.NoError(t, a.users.Save(ctx, user))
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	app := newAdminTestApp(t)
	_, memberToken := app.register(t, "Alice")

	for _, path := range []string{
		"/api/v1/admin/users",
		"/api/v1/admin/listings",
		"/api/v1/admin/conversations",
		"/api/v1/admin/listings/export",
		"/api/v1/admin/purchases/export",
	} {
		resp := app.do(t, http.MethodGet, path, memberToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
		resp.Body.Close()

		resp = app.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestAdminListsAndBlocksUsers(t *testing.T) {
	app := newAdminTestApp(t)
	adminID, adminToken := app.register(t, "Root")
	app.promote(t, adminID)
	bobID, bobToken := app.register(t, "Bob")

	resp := app.do(t, http.MethodGet, "/api/v1/admin/users?q=bob", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[dto.UserList](t, resp)
	require.Equal(t, int64(1), list.Total)
	assert.Equal(t, bobID, list.Items[0].ID)

	// Block Bob; his session stops resolving.
	resp = app.do(t, http.MethodPost, "/api/v1/admin/users/"+bobID+"/blocked", adminToken, map[string]bool{"blocked": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	blocked := decodeBody[dto.UserProfile](t, resp)
	assert.True(t, blocked.Blocked)

	resp = app.do(t, http.MethodGet, "/api/v1/auth/me", bobToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Admins cannot block themselves.
	resp = app.do(t, http.MethodPost, "/api/v1/admin/users/"+adminID+"/blocked", adminToken, map[string]bool{"blocked": true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminSeesAllListingStates(t *testing.T) {
	app := newAdminTestApp(t)
	adminID, adminToken := app.register(t, "Root")
	app.promote(t, adminID)

	ctx := context.Background()
	draft, err := app.market.CreateListing(ctx, "seller-1", marketsvc.ListingInput{Title: "Draft lamp", PriceCents: 900})
	require.NoError(t, err)
	_, err = app.market.CreateListing(ctx, "seller-1", marketsvc.ListingInput{Title: "Another", PriceCents: 100})
	require.NoError(t, err)
	_, err = app.market.PublishListing(ctx, "seller-1", draft.ID)
	require.NoError(t, err)

	resp := app.do(t, http.MethodGet, "/api/v1/admin/listings", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[dto.ListingList](t, resp)
	assert.Equal(t, int64(2), list.Total)
}

func TestAdminPurchaseExportCSV(t *testing.T) {
	app := newAdminTestApp(t)
	adminID, adminToken := app.register(t, "Root")
	app.promote(t, adminID)

	ctx := context.Background()
	listing, err := app.market.CreateListing(ctx, "seller-1", marketsvc.ListingInput{
		Title:      "Bicycle",
		Condition:  domainlistings.ConditionGood,
		PriceCents: 12500,
	})
	require.NoError(t, err)
	_, err = app.market.PublishListing(ctx, "seller-1", listing.ID)
	require.NoError(t, err)
	purchase, err := app.market.Buy(ctx, "buyer-1", listing.ID)
	require.NoError(t, err)

	resp := app.do(t, http.MethodGet, "/api/v1/admin/purchases/export", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "listing_id", "buyer_id", "seller_id", "price_cents", "created_at"}, rows[0])
	assert.Equal(t, string(purchase.ID), rows[1][0])
	assert.Equal(t, string(listing.ID), rows[1][1])
	assert.Equal(t, "12500", rows[1][4])
}

func TestAdminListingExportCSV(t *testing.T) {
	app := newAdminTestApp(t)
	adminID, adminToken := app.register(t, "Root")
	app.promote(t, adminID)

	ctx := context.Background()
	listing, err := app.market.CreateListing(ctx, "seller-1", marketsvc.ListingInput{
		Title:      "Winter tires",
		Category:   "auto",
		Condition:  domainlistings.ConditionGood,
		PriceCents: 8000,
	})
	require.NoError(t, err)

	resp := app.do(t, http.MethodGet, "/api/v1/admin/listings/export", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "seller_id", "title", "category", "condition", "price_cents", "state", "created_at"}, rows[0])
	assert.Equal(t, string(listing.ID), rows[1][0])
	assert.Equal(t, "Winter tires", rows[1][2])
	assert.Equal(t, string(domainlistings.ListingDraft), rows[1][6])
}
