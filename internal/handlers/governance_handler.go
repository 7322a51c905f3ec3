package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/profilehub/backend/internal/models"
	"github.com/profilehub/backend/internal/services"
)

// GovernanceHandler exposes the whitelist mutation entry points. Routes using
// it must sit behind the admin middleware; the registry core never mutates
// these lists itself.
type GovernanceHandler struct {
	whitelist *services.WhitelistService
	events    *services.EventLog
}

func NewGovernanceHandler(whitelist *services.WhitelistService, events *services.EventLog) *GovernanceHandler {
	return &GovernanceHandler{whitelist: whitelist, events: events}
}

func (h *GovernanceHandler) WhitelistCreator(w http.ResponseWriter, r *http.Request) {
	h.whitelistEntry(w, r, h.whitelist.WhitelistProfileCreator)
}

func (h *GovernanceHandler) WhitelistFollowModule(w http.ResponseWriter, r *http.Request) {
	h.whitelistEntry(w, r, h.whitelist.WhitelistFollowModule)
}

// ListEvents serves the append-only event log, optionally filtered by
// profileId.
func (h *GovernanceHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("profileId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid profileId"))
			return
		}
		writeJSON(w, http.StatusOK, models.NewSuccessResponse(h.events.ByProfile(id)))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(h.events.All()))
}

func (h *GovernanceHandler) whitelistEntry(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, addr models.Address, whitelisted bool) error) {
	var req models.WhitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if req.Address.IsZero() {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Address required"))
		return
	}

	if err := apply(r.Context(), req.Address, req.Whitelisted); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(req))
}
