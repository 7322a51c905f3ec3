package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/profilehub/backend/internal/middleware"
	"github.com/profilehub/backend/internal/models"
	"github.com/profilehub/backend/internal/services"
)

type ProfileHandler struct {
	registry *services.ProfileRegistry
	identity *services.IdentityService
}

func NewProfileHandler(registry *services.ProfileRegistry, identity *services.IdentityService) *ProfileHandler {
	return &ProfileHandler{registry: registry, identity: identity}
}

// CreateProfile mints a fresh profile ID for the recipient and writes the
// initial record. The caller must be a whitelisted creator.
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCallerAddress(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if req.To.IsZero() {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Recipient address required"))
		return
	}

	profileID, err := h.identity.Mint(req.To)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	req.ProfileID = profileID

	event, err := h.registry.CreateProfile(r.Context(), caller, req)
	if err != nil {
		// Rejected creations must not leave an owned, empty profile behind.
		h.identity.Release(profileID)
		log.Printf("[profiles] create failed caller=%s to=%s: %v", caller, req.To, err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(event))
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := profileIDParam(w, r)
	if !ok {
		return
	}

	profile, err := h.registry.GetProfile(r.Context(), profileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(profile))
}

func (h *ProfileHandler) SetImageURI(w http.ResponseWriter, r *http.Request) {
	h.setStringField(w, r, func(caller models.Address, id uint64, value string) (*models.Event, error) {
		return h.registry.SetProfileImageURI(r.Context(), caller, id, value)
	})
}

func (h *ProfileHandler) SetFollowNFTURI(w http.ResponseWriter, r *http.Request) {
	h.setStringField(w, r, func(caller models.Address, id uint64, value string) (*models.Event, error) {
		return h.registry.SetFollowNFTURI(r.Context(), caller, id, value)
	})
}

func (h *ProfileHandler) SetMetadataURI(w http.ResponseWriter, r *http.Request) {
	h.setStringField(w, r, func(caller models.Address, id uint64, value string) (*models.Event, error) {
		return h.registry.SetProfileMetadataURI(r.Context(), caller, id, value)
	})
}

func (h *ProfileHandler) SetDispatcher(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCallerAddress(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	profileID, ok := profileIDParam(w, r)
	if !ok {
		return
	}

	var req models.SetAddressFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	event, err := h.registry.SetDispatcher(r.Context(), caller, profileID, req.Address)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(event))
}

func (h *ProfileHandler) SetFollowModule(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCallerAddress(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	profileID, ok := profileIDParam(w, r)
	if !ok {
		return
	}

	var req models.SetAddressFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	event, err := h.registry.SetFollowModule(r.Context(), caller, profileID, req.Address, req.InitData)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(event))
}

// MetaTx executes a signature-authorized mutation. The live caller only
// relays the signed token; authorization comes from the recovered signer.
func (h *ProfileHandler) MetaTx(w http.ResponseWriter, r *http.Request) {
	var req models.MetaTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	var (
		event *models.Event
		err   error
	)
	switch req.Kind {
	case services.OpSetImageURI:
		event, err = h.registry.SetProfileImageURIWithSig(r.Context(), req.Token, req.ProfileID, req.Value)
	case services.OpSetFollowNFTURI:
		event, err = h.registry.SetFollowNFTURIWithSig(r.Context(), req.Token, req.ProfileID, req.Value)
	case services.OpSetMetadataURI:
		event, err = h.registry.SetProfileMetadataURIWithSig(r.Context(), req.Token, req.ProfileID, req.Value)
	case services.OpSetDispatcher:
		event, err = h.registry.SetDispatcherWithSig(r.Context(), req.Token, req.ProfileID, req.Address)
	case services.OpSetFollowModule:
		event, err = h.registry.SetFollowModuleWithSig(r.Context(), req.Token, req.ProfileID, req.Address, req.InitData)
	default:
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Unknown operation kind"))
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(event))
}

func (h *ProfileHandler) setStringField(w http.ResponseWriter, r *http.Request, apply func(models.Address, uint64, string) (*models.Event, error)) {
	caller, ok := middleware.GetCallerAddress(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	profileID, ok := profileIDParam(w, r)
	if !ok {
		return
	}

	var req models.SetStringFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	event, err := apply(caller, profileID, req.Value)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(event))
}

func profileIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "profileId")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid profile ID"))
		return 0, false
	}
	return id, true
}
