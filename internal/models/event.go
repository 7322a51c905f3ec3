package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the registry. Events are append-only and carry the
// changed fields plus a timestamp; consumers are fire-and-forget.
const (
	EventProfileCreated     = "ProfileCreated"
	EventProfileImageURISet = "ProfileImageURISet"
	EventFollowNFTURISet    = "FollowNFTURISet"
	EventFollowModuleSet    = "FollowModuleSet"
	EventDispatcherSet      = "DispatcherSet"
	EventProfileMetadataSet = "ProfileMetadataSet"
)

type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ProfileID uint64    `json:"profile_id"`
	Timestamp time.Time `json:"timestamp"`

	// Populated per event type. Empty strings and byte slices are omitted;
	// address fields always serialize, with the zero address meaning unset.
	Creator        Address `json:"creator"`
	To             Address `json:"to"`
	ImageURI       string  `json:"image_uri,omitempty"`
	FollowNFTURI   string  `json:"follow_nft_uri,omitempty"`
	MetadataURI    string  `json:"metadata_uri,omitempty"`
	FollowModule   Address `json:"follow_module"`
	Dispatcher     Address `json:"dispatcher"`
	ModuleInitData []byte  `json:"module_init_data,omitempty"`
	ModuleReturn   []byte  `json:"module_return,omitempty"`
}

// NewEvent stamps a fresh event of the given type.
func NewEvent(eventType string, profileID uint64) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		ProfileID: profileID,
		Timestamp: time.Now().UTC(),
	}
}
