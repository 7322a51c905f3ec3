package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/profilehub/backend/internal/middleware"
	"github.com/profilehub/backend/internal/models"
	"github.com/profilehub/backend/internal/services"
	"github.com/profilehub/backend/internal/storage"
)

func testAddr(n byte) models.Address {
	var a models.Address
	a[19] = n
	return a
}

func newProfileFixture(t *testing.T) (*ProfileHandler, *services.WhitelistService, *services.IdentityService) {
	t.Helper()
	store := storage.NewMemorySlotStore()
	whitelist := services.NewWhitelistService(store)
	identity := services.NewIdentityService()
	registry := services.NewProfileRegistry(
		store, whitelist, identity,
		services.NewModuleRegistry(), services.NewEventLog(), services.NewSignatureService(),
	)
	return NewProfileHandler(registry, identity), whitelist, identity
}

func postCreateProfile(t *testing.T, h *ProfileHandler, caller models.Address, req models.CreateProfileRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/profiles", bytes.NewReader(body))
	r = r.WithContext(context.WithValue(r.Context(), middleware.CallerAddressKey, caller))
	w := httptest.NewRecorder()
	h.CreateProfile(w, r)
	return w
}

func TestCreateProfileRejectionReleasesMintedID(t *testing.T) {
	h, whitelist, identity := newProfileFixture(t)
	creator, owner := testAddr(1), testAddr(2)

	// Non-whitelisted creator: the request fails and the minted ID must not
	// linger as an owned, empty profile.
	w := postCreateProfile(t, h, creator, models.CreateProfileRequest{To: owner, ImageURI: "ipfs://abc"})
	require.Equal(t, http.StatusForbidden, w.Code)

	_, err := identity.OwnerOf(1)
	require.ErrorIs(t, err, services.ErrProfileNotFound)

	// A later successful creation gets a fresh ID; released IDs are never
	// reissued.
	require.NoError(t, whitelist.WhitelistProfileCreator(context.Background(), creator, true))
	w = postCreateProfile(t, h, creator, models.CreateProfileRequest{To: owner, ImageURI: "ipfs://abc"})
	require.Equal(t, http.StatusCreated, w.Code)

	got, err := identity.OwnerOf(2)
	require.NoError(t, err)
	require.Equal(t, owner, got)
}
