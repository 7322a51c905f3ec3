package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/profilehub/backend/internal/models"
	"github.com/profilehub/backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeServiceError maps registry sentinel errors onto HTTP statuses. Unknown
// errors become a 500 without leaking internals.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProfileCreatorNotWhitelisted),
		errors.Is(err, services.ErrFollowModuleNotWhitelisted):
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse(err.Error()))
	case errors.Is(err, services.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not authorized for this profile"))
	case errors.Is(err, services.ErrProfileImageURILengthInvalid),
		errors.Is(err, services.ErrUnknownFollowModule),
		errors.Is(err, services.ErrInvalidMintTo):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
	case errors.Is(err, services.ErrModuleInitFailed):
		writeJSON(w, http.StatusUnprocessableEntity, models.NewErrorResponse(err.Error()))
	case errors.Is(err, services.ErrSignatureInvalidOrExpired):
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse(err.Error()))
	case errors.Is(err, services.ErrProfileNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Profile not found"))
	default:
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Internal error"))
	}
}
