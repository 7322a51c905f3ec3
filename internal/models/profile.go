package models

// MaxProfileImageURILength is the protocol cap on image URI byte length.
// Creation and updates exceeding it fail atomically.
const MaxProfileImageURILength = 6000

// Profile is the registry's view of one identity record. ProfileID is minted
// externally (monotonic, never reused); the registry only stores the fields.
type Profile struct {
	ProfileID    uint64  `json:"profile_id"`
	ImageURI     string  `json:"image_uri"`
	FollowNFTURI string  `json:"follow_nft_uri"`
	MetadataURI  string  `json:"metadata_uri"`
	FollowModule Address `json:"follow_module"`
	Dispatcher   Address `json:"dispatcher"`
}

type CreateProfileRequest struct {
	To                   Address `json:"to"`
	ProfileID            uint64  `json:"profile_id"`
	ImageURI             string  `json:"image_uri"`
	FollowModule         Address `json:"follow_module"`
	FollowModuleInitData []byte  `json:"follow_module_init_data,omitempty"`
	FollowNFTURI         string  `json:"follow_nft_uri"`
}

type SetStringFieldRequest struct {
	Value string `json:"value"`
}

type SetAddressFieldRequest struct {
	Address  Address `json:"address"`
	InitData []byte  `json:"init_data,omitempty"`
}

// MetaTxRequest carries a signature-authorized mutation: the signed token is
// verified by the signature authority, which yields the acting signer address.
// Kind selects the operation; Value or Address/InitData carry its argument.
type MetaTxRequest struct {
	Kind      string  `json:"kind"`
	ProfileID uint64  `json:"profile_id"`
	Token     string  `json:"token"`
	Value     string  `json:"value,omitempty"`
	Address   Address `json:"address,omitempty"`
	InitData  []byte  `json:"init_data,omitempty"`
}

// WhitelistRequest is a governance mutation of one allow-list entry.
type WhitelistRequest struct {
	Address     Address `json:"address"`
	Whitelisted bool    `json:"whitelisted"`
}
