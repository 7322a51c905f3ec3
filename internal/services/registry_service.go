package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/profilehub/backend/internal/models"
	"github.com/profilehub/backend/internal/storage"
)

var (
	ErrProfileCreatorNotWhitelisted = errors.New("profile creator not whitelisted")
	ErrFollowModuleNotWhitelisted   = errors.New("follow module not whitelisted")
	ErrProfileImageURILengthInvalid = errors.New("profile image URI exceeds maximum length")
	ErrUnauthorized                 = errors.New("caller is not owner, dispatcher, or approved executor")
	ErrModuleInitFailed             = errors.New("follow module initialization failed")
	ErrUnknownFollowModule          = errors.New("follow module has no registered implementation")
)

// Operation kinds bound into meta-transaction digests.
const (
	OpSetImageURI     = "profile.set_image_uri"
	OpSetFollowNFTURI = "profile.set_follow_nft_uri"
	OpSetMetadataURI  = "profile.set_metadata_uri"
	OpSetDispatcher   = "profile.set_dispatcher"
	OpSetFollowModule = "profile.set_follow_module"
)

// WhitelistGate is the read-only membership oracle the registry consults.
type WhitelistGate interface {
	IsProfileCreatorWhitelisted(ctx context.Context, addr models.Address) (bool, error)
	IsFollowModuleWhitelisted(ctx context.Context, addr models.Address) (bool, error)
}

// OwnershipOracle resolves profile ownership and approved executors. The
// dispatcher itself lives in registry storage, not here.
type OwnershipOracle interface {
	OwnerOf(profileID uint64) (models.Address, error)
	IsApprovedExecutor(profileID uint64, executor models.Address) (bool, error)
}

// ProfileRegistry is the profile record storage and mutation engine. Every
// operation runs under a per-profile lock and inside a storage transaction
// spanning whitelist check, writes, and any external module call, so failures
// anywhere leave zero observable state change and emit nothing.
type ProfileRegistry struct {
	store     storage.SlotStore
	whitelist WhitelistGate
	owners    OwnershipOracle
	modules   ModuleResolver
	events    EventSink
	signer    SignatureAuthority

	lockMu sync.Mutex
	locks  map[uint64]*sync.RWMutex
}

func NewProfileRegistry(store storage.SlotStore, whitelist WhitelistGate, owners OwnershipOracle, modules ModuleResolver, events EventSink, signer SignatureAuthority) *ProfileRegistry {
	return &ProfileRegistry{
		store:     store,
		whitelist: whitelist,
		owners:    owners,
		modules:   modules,
		events:    events,
		signer:    signer,
		locks:     make(map[uint64]*sync.RWMutex),
	}
}

// CreateProfile writes the initial record for a freshly minted profile ID.
// Freshness and ownership of the ID are the identity issuer's responsibility;
// no ownership check happens here. The caller must be a whitelisted creator.
func (s *ProfileRegistry) CreateProfile(ctx context.Context, caller models.Address, req models.CreateProfileRequest) (*models.Event, error) {
	unlock := s.lockProfile(req.ProfileID)
	defer unlock()

	ok, err := s.whitelist.IsProfileCreatorWhitelisted(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProfileCreatorNotWhitelisted
	}
	if len(req.ImageURI) > models.MaxProfileImageURILength {
		return nil, ErrProfileImageURILengthInvalid
	}

	tx := storage.NewTx(s.store)
	packed := storage.NewPackedStringStore(tx)

	if err := packed.Write(ctx, storage.NamespaceProfile, req.ProfileID, storage.FieldImageURI, []byte(req.ImageURI)); err != nil {
		return nil, err
	}
	if err := packed.Write(ctx, storage.NamespaceProfile, req.ProfileID, storage.FieldFollowNFTURI, []byte(req.FollowNFTURI)); err != nil {
		return nil, err
	}

	moduleReturn, err := s.bindFollowModule(ctx, tx, req.ProfileID, caller, req.FollowModule, req.FollowModuleInitData)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	event := models.NewEvent(models.EventProfileCreated, req.ProfileID)
	event.Creator = caller
	event.To = req.To
	event.ImageURI = req.ImageURI
	event.FollowModule = req.FollowModule
	event.ModuleInitData = req.FollowModuleInitData
	event.ModuleReturn = moduleReturn
	event.FollowNFTURI = req.FollowNFTURI
	s.events.Emit(event)

	log.Printf("[registry] profile %d created for %s by %s", req.ProfileID, req.To, caller)
	return &event, nil
}

// SetProfileImageURI updates the image URI for a profile.
func (s *ProfileRegistry) SetProfileImageURI(ctx context.Context, caller models.Address, profileID uint64, imageURI string) (*models.Event, error) {
	return s.setProfileImageURI(ctx, caller, profileID, imageURI)
}

// SetProfileImageURIWithSig is the meta-transaction variant: authorization
// comes from the verified signer, not the live caller. Both variants share
// the same apply step, so storage effects and event shape are identical.
func (s *ProfileRegistry) SetProfileImageURIWithSig(ctx context.Context, token string, profileID uint64, imageURI string) (*models.Event, error) {
	signer, err := s.signer.VerifyMetaTx(token, OpSetImageURI, profileID, []byte(imageURI))
	if err != nil {
		return nil, err
	}
	return s.setProfileImageURI(ctx, signer, profileID, imageURI)
}

func (s *ProfileRegistry) setProfileImageURI(ctx context.Context, actor models.Address, profileID uint64, imageURI string) (*models.Event, error) {
	unlock := s.lockProfile(profileID)
	defer unlock()

	if err := s.authorize(ctx, profileID, actor); err != nil {
		return nil, err
	}
	if len(imageURI) > models.MaxProfileImageURILength {
		return nil, ErrProfileImageURILengthInvalid
	}

	tx := storage.NewTx(s.store)
	if err := storage.NewPackedStringStore(tx).Write(ctx, storage.NamespaceProfile, profileID, storage.FieldImageURI, []byte(imageURI)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	event := models.NewEvent(models.EventProfileImageURISet, profileID)
	event.ImageURI = imageURI
	s.events.Emit(event)
	return &event, nil
}

// SetFollowNFTURI updates the follow-NFT URI. No length cap applies.
func (s *ProfileRegistry) SetFollowNFTURI(ctx context.Context, caller models.Address, profileID uint64, followNFTURI string) (*models.Event, error) {
	return s.setFollowNFTURI(ctx, caller, profileID, followNFTURI)
}

func (s *ProfileRegistry) SetFollowNFTURIWithSig(ctx context.Context, token string, profileID uint64, followNFTURI string) (*models.Event, error) {
	signer, err := s.signer.VerifyMetaTx(token, OpSetFollowNFTURI, profileID, []byte(followNFTURI))
	if err != nil {
		return nil, err
	}
	return s.setFollowNFTURI(ctx, signer, profileID, followNFTURI)
}

func (s *ProfileRegistry) setFollowNFTURI(ctx context.Context, actor models.Address, profileID uint64, followNFTURI string) (*models.Event, error) {
	unlock := s.lockProfile(profileID)
	defer unlock()

	if err := s.authorize(ctx, profileID, actor); err != nil {
		return nil, err
	}

	tx := storage.NewTx(s.store)
	if err := storage.NewPackedStringStore(tx).Write(ctx, storage.NamespaceProfile, profileID, storage.FieldFollowNFTURI, []byte(followNFTURI)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	event := models.NewEvent(models.EventFollowNFTURISet, profileID)
	event.FollowNFTURI = followNFTURI
	s.events.Emit(event)
	return &event, nil
}

// SetProfileMetadataURI updates the metadata URI, which lives in its own
// namespace, deliberately apart from the main record.
func (s *ProfileRegistry) SetProfileMetadataURI(ctx context.Context, caller models.Address, profileID uint64, metadataURI string) (*models.Event, error) {
	return s.setProfileMetadataURI(ctx, caller, profileID, metadataURI)
}

func (s *ProfileRegistry) SetProfileMetadataURIWithSig(ctx context.Context, token string, profileID uint64, metadataURI string) (*models.Event, error) {
	signer, err := s.signer.VerifyMetaTx(token, OpSetMetadataURI, profileID, []byte(metadataURI))
	if err != nil {
		return nil, err
	}
	return s.setProfileMetadataURI(ctx, signer, profileID, metadataURI)
}

func (s *ProfileRegistry) setProfileMetadataURI(ctx context.Context, actor models.Address, profileID uint64, metadataURI string) (*models.Event, error) {
	unlock := s.lockProfile(profileID)
	defer unlock()

	if err := s.authorize(ctx, profileID, actor); err != nil {
		return nil, err
	}

	tx := storage.NewTx(s.store)
	if err := storage.NewPackedStringStore(tx).Write(ctx, storage.NamespaceProfileMetadata, profileID, 0, []byte(metadataURI)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	event := models.NewEvent(models.EventProfileMetadataSet, profileID)
	event.MetadataURI = metadataURI
	s.events.Emit(event)
	return &event, nil
}

// SetDispatcher delegates (or revokes, with the zero address) mutation rights
// for a profile.
func (s *ProfileRegistry) SetDispatcher(ctx context.Context, caller models.Address, profileID uint64, dispatcher models.Address) (*models.Event, error) {
	return s.setDispatcher(ctx, caller, profileID, dispatcher)
}

func (s *ProfileRegistry) SetDispatcherWithSig(ctx context.Context, token string, profileID uint64, dispatcher models.Address) (*models.Event, error) {
	signer, err := s.signer.VerifyMetaTx(token, OpSetDispatcher, profileID, dispatcher[:])
	if err != nil {
		return nil, err
	}
	return s.setDispatcher(ctx, signer, profileID, dispatcher)
}

func (s *ProfileRegistry) setDispatcher(ctx context.Context, actor models.Address, profileID uint64, dispatcher models.Address) (*models.Event, error) {
	unlock := s.lockProfile(profileID)
	defer unlock()

	if err := s.authorize(ctx, profileID, actor); err != nil {
		return nil, err
	}

	tx := storage.NewTx(s.store)
	if err := writeAddress(ctx, tx, dispatcherSlot(profileID), dispatcher); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	event := models.NewEvent(models.EventDispatcherSet, profileID)
	event.Dispatcher = dispatcher
	s.events.Emit(event)
	return &event, nil
}

// SetFollowModule binds a follow module (or unbinds, with the zero address).
// Rebinding the same address writes nothing but still re-runs initialization
// and emits an event.
func (s *ProfileRegistry) SetFollowModule(ctx context.Context, caller models.Address, profileID uint64, module models.Address, initData []byte) (*models.Event, error) {
	return s.setFollowModule(ctx, caller, profileID, module, initData)
}

func (s *ProfileRegistry) SetFollowModuleWithSig(ctx context.Context, token string, profileID uint64, module models.Address, initData []byte) (*models.Event, error) {
	signer, err := s.signer.VerifyMetaTx(token, OpSetFollowModule, profileID, append(module[:], initData...))
	if err != nil {
		return nil, err
	}
	return s.setFollowModule(ctx, signer, profileID, module, initData)
}

func (s *ProfileRegistry) setFollowModule(ctx context.Context, actor models.Address, profileID uint64, module models.Address, initData []byte) (*models.Event, error) {
	unlock := s.lockProfile(profileID)
	defer unlock()

	if err := s.authorize(ctx, profileID, actor); err != nil {
		return nil, err
	}

	tx := storage.NewTx(s.store)
	moduleReturn, err := s.bindFollowModule(ctx, tx, profileID, actor, module, initData)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	event := models.NewEvent(models.EventFollowModuleSet, profileID)
	event.FollowModule = module
	event.ModuleReturn = moduleReturn
	s.events.Emit(event)
	return &event, nil
}

// bindFollowModule validates, conditionally stores, and initializes a follow
// module inside the caller's transaction. The whitelist is checked at bind
// time only: a module that is later removed from the whitelist stays bound.
// A failing initialization aborts the whole enclosing operation because the
// transaction is never committed.
func (s *ProfileRegistry) bindFollowModule(ctx context.Context, tx *storage.Tx, profileID uint64, executor, module models.Address, initData []byte) ([]byte, error) {
	slot := storage.FieldSlot(storage.BaseSlot(storage.NamespaceProfile, profileID), storage.FieldFollowModule)

	current, err := readAddress(ctx, tx, slot)
	if err != nil {
		return nil, err
	}

	if module.IsZero() {
		// The null module skips the whitelist check and initialization.
		if current != module {
			if err := writeAddress(ctx, tx, slot, module); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	ok, err := s.whitelist.IsFollowModuleWhitelisted(ctx, module)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFollowModuleNotWhitelisted
	}

	if current != module {
		if err := writeAddress(ctx, tx, slot, module); err != nil {
			return nil, err
		}
	}

	impl, found := s.modules.Resolve(module)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFollowModule, module)
	}
	moduleReturn, err := impl.InitializeFollowModule(ctx, profileID, executor, initData)
	if err != nil {
		return nil, fmt.Errorf("%w: module %s: %w", ErrModuleInitFailed, module, err)
	}
	return moduleReturn, nil
}

// GetProfile reads the full record for a profile.
func (s *ProfileRegistry) GetProfile(ctx context.Context, profileID uint64) (*models.Profile, error) {
	unlock := s.rlockProfile(profileID)
	defer unlock()

	if _, err := s.owners.OwnerOf(profileID); err != nil {
		return nil, err
	}

	packed := storage.NewPackedStringStore(s.store)

	imageURI, err := packed.Read(ctx, storage.NamespaceProfile, profileID, storage.FieldImageURI)
	if err != nil {
		return nil, err
	}
	followNFTURI, err := packed.Read(ctx, storage.NamespaceProfile, profileID, storage.FieldFollowNFTURI)
	if err != nil {
		return nil, err
	}
	metadataURI, err := packed.Read(ctx, storage.NamespaceProfileMetadata, profileID, 0)
	if err != nil {
		return nil, err
	}
	module, err := readAddress(ctx, s.store, storage.FieldSlot(storage.BaseSlot(storage.NamespaceProfile, profileID), storage.FieldFollowModule))
	if err != nil {
		return nil, err
	}
	dispatcher, err := readAddress(ctx, s.store, dispatcherSlot(profileID))
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		ProfileID:    profileID,
		ImageURI:     string(imageURI),
		FollowNFTURI: string(followNFTURI),
		MetadataURI:  string(metadataURI),
		FollowModule: module,
		Dispatcher:   dispatcher,
	}, nil
}

// GetDispatcher reads a profile's dispatcher (zero address when unset).
func (s *ProfileRegistry) GetDispatcher(ctx context.Context, profileID uint64) (models.Address, error) {
	unlock := s.rlockProfile(profileID)
	defer unlock()
	return readAddress(ctx, s.store, dispatcherSlot(profileID))
}

// GetFollowModule reads a profile's bound follow module.
func (s *ProfileRegistry) GetFollowModule(ctx context.Context, profileID uint64) (models.Address, error) {
	unlock := s.rlockProfile(profileID)
	defer unlock()
	return readAddress(ctx, s.store, storage.FieldSlot(storage.BaseSlot(storage.NamespaceProfile, profileID), storage.FieldFollowModule))
}

// authorize admits the profile owner, its dispatcher, and approved executors.
func (s *ProfileRegistry) authorize(ctx context.Context, profileID uint64, actor models.Address) error {
	owner, err := s.owners.OwnerOf(profileID)
	if err != nil {
		return err
	}
	if actor == owner {
		return nil
	}

	dispatcher, err := readAddress(ctx, s.store, dispatcherSlot(profileID))
	if err != nil {
		return err
	}
	if !dispatcher.IsZero() && actor == dispatcher {
		return nil
	}

	approved, err := s.owners.IsApprovedExecutor(profileID, actor)
	if err != nil {
		return err
	}
	if !approved {
		return fmt.Errorf("%w: profile %d caller %s", ErrUnauthorized, profileID, actor)
	}
	return nil
}

// lockProfile serializes all mutations of one profile, spanning whitelist
// checks, storage writes, and external module calls. Independent profiles
// proceed concurrently.
func (s *ProfileRegistry) lockProfile(profileID uint64) func() {
	l := s.profileLock(profileID)
	l.Lock()
	return l.Unlock
}

// rlockProfile guards the read path. Readers of one profile run concurrently
// with each other but are excluded while a commit on that profile flushes
// slot by slot, so a reader never observes a half-written record.
func (s *ProfileRegistry) rlockProfile(profileID uint64) func() {
	l := s.profileLock(profileID)
	l.RLock()
	return l.RUnlock
}

func (s *ProfileRegistry) profileLock(profileID uint64) *sync.RWMutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	l, ok := s.locks[profileID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[profileID] = l
	}
	return l
}

func dispatcherSlot(profileID uint64) storage.Slot {
	return storage.BaseSlot(storage.NamespaceDispatcher, profileID)
}

func readAddress(ctx context.Context, store storage.SlotStore, slot storage.Slot) (models.Address, error) {
	w, err := store.Get(ctx, slot)
	if err != nil {
		return models.ZeroAddress, err
	}
	var addr models.Address
	copy(addr[:], w[12:])
	return addr, nil
}

func writeAddress(ctx context.Context, store storage.SlotStore, slot storage.Slot, addr models.Address) error {
	return store.Set(ctx, slot, storage.WordFromBytes(addr[:]))
}
