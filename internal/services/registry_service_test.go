package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/profilehub/backend/internal/models"
	"github.com/profilehub/backend/internal/storage"
)

// countingStore counts committed writes so tests can assert "zero storage
// writes" precisely.
type countingStore struct {
	inner *storage.MemorySlotStore
	sets  int
}

func newCountingStore() *countingStore {
	return &countingStore{inner: storage.NewMemorySlotStore()}
}

func (c *countingStore) Get(ctx context.Context, slot storage.Slot) (storage.Word, error) {
	return c.inner.Get(ctx, slot)
}

func (c *countingStore) Set(ctx context.Context, slot storage.Slot, word storage.Word) error {
	c.sets++
	return c.inner.Set(ctx, slot, word)
}

// recordingModule accepts initialization and remembers each call.
type recordingModule struct {
	calls  int
	ret    []byte
	lastID uint64
}

func (m *recordingModule) InitializeFollowModule(ctx context.Context, profileID uint64, executor models.Address, initData []byte) ([]byte, error) {
	m.calls++
	m.lastID = profileID
	return m.ret, nil
}

// failingModule rejects every initialization.
type failingModule struct{}

func (failingModule) InitializeFollowModule(ctx context.Context, profileID uint64, executor models.Address, initData []byte) ([]byte, error) {
	return nil, errors.New("module says no")
}

func addr(n byte) models.Address {
	var a models.Address
	a[19] = n
	return a
}

type fixture struct {
	store     *countingStore
	whitelist *WhitelistService
	identity  *IdentityService
	modules   *ModuleRegistry
	events    *EventLog
	signer    *SignatureService
	registry  *ProfileRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newCountingStore()
	whitelist := NewWhitelistService(store)
	identity := NewIdentityService()
	modules := NewModuleRegistry()
	events := NewEventLog()
	signer := NewSignatureService()
	return &fixture{
		store:     store,
		whitelist: whitelist,
		identity:  identity,
		modules:   modules,
		events:    events,
		signer:    signer,
		registry:  NewProfileRegistry(store, whitelist, identity, modules, events, signer),
	}
}

// mintProfile whitelists the creator, mints an ID for the owner, and creates
// a bare profile.
func (f *fixture) mintProfile(t *testing.T, creator, owner models.Address) uint64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.whitelist.WhitelistProfileCreator(ctx, creator, true))

	id, err := f.identity.Mint(owner)
	require.NoError(t, err)

	_, err = f.registry.CreateProfile(ctx, creator, models.CreateProfileRequest{
		To:        owner,
		ProfileID: id,
		ImageURI:  "ipfs://abc",
	})
	require.NoError(t, err)
	return id
}

func TestCreateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner := addr(1), addr(2)

	require.NoError(t, f.whitelist.WhitelistProfileCreator(ctx, creator, true))
	id, err := f.identity.Mint(owner)
	require.NoError(t, err)

	event, err := f.registry.CreateProfile(ctx, creator, models.CreateProfileRequest{
		To:           owner,
		ProfileID:    id,
		ImageURI:     "ipfs://abc",
		FollowNFTURI: "",
	})
	require.NoError(t, err)
	require.Equal(t, models.EventProfileCreated, event.Type)
	require.Empty(t, event.ModuleReturn)

	profile, err := f.registry.GetProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ipfs://abc", profile.ImageURI)
	require.Equal(t, "", profile.FollowNFTURI)
	require.True(t, profile.FollowModule.IsZero())

	all := f.events.All()
	require.Len(t, all, 1)
	require.Equal(t, models.EventProfileCreated, all[0].Type)
	require.False(t, all[0].Timestamp.IsZero())
}

func TestCreateProfileCreatorNotWhitelisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := addr(2)

	id, err := f.identity.Mint(owner)
	require.NoError(t, err)

	before := f.store.sets
	_, err = f.registry.CreateProfile(ctx, addr(1), models.CreateProfileRequest{
		To:        owner,
		ProfileID: id,
		ImageURI:  "ipfs://abc",
	})
	require.ErrorIs(t, err, ErrProfileCreatorNotWhitelisted)
	require.Equal(t, before, f.store.sets, "no writes on rejected creation")
	require.Empty(t, f.events.All())

	profile, err := f.registry.GetProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "", profile.ImageURI)
}

func TestCreateProfileImageURITooLong(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner := addr(1), addr(2)

	require.NoError(t, f.whitelist.WhitelistProfileCreator(ctx, creator, true))
	id, err := f.identity.Mint(owner)
	require.NoError(t, err)

	oversized := make([]byte, models.MaxProfileImageURILength+1)
	for i := range oversized {
		oversized[i] = 'x'
	}

	before := f.store.sets
	_, err = f.registry.CreateProfile(ctx, creator, models.CreateProfileRequest{
		To:        owner,
		ProfileID: id,
		ImageURI:  string(oversized),
	})
	require.ErrorIs(t, err, ErrProfileImageURILengthInvalid)
	require.Equal(t, before, f.store.sets)
	require.Empty(t, f.events.All())

	// Exactly at the cap is fine.
	_, err = f.registry.CreateProfile(ctx, creator, models.CreateProfileRequest{
		To:        owner,
		ProfileID: id,
		ImageURI:  string(oversized[:models.MaxProfileImageURILength]),
	})
	require.NoError(t, err)
}

func TestSetFollowModuleNotWhitelisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner, moduleX := addr(1), addr(2), addr(9)
	id := f.mintProfile(t, creator, owner)

	_, err := f.registry.SetFollowModule(ctx, owner, id, moduleX, []byte("data"))
	require.ErrorIs(t, err, ErrFollowModuleNotWhitelisted)

	bound, err := f.registry.GetFollowModule(ctx, id)
	require.NoError(t, err)
	require.True(t, bound.IsZero(), "module address unchanged")
}

func TestRebindSameModuleSkipsWriteButReRunsEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner, moduleAddr := addr(1), addr(2), addr(9)
	id := f.mintProfile(t, creator, owner)

	module := &recordingModule{ret: []byte("ok")}
	f.modules.Register(moduleAddr, module)
	require.NoError(t, f.whitelist.WhitelistFollowModule(ctx, moduleAddr, true))

	_, err := f.registry.SetFollowModule(ctx, owner, id, moduleAddr, nil)
	require.NoError(t, err)
	require.Equal(t, 1, module.calls)

	eventsBefore := len(f.events.All())
	writesBefore := f.store.sets

	event, err := f.registry.SetFollowModule(ctx, owner, id, moduleAddr, nil)
	require.NoError(t, err)

	require.Equal(t, writesBefore, f.store.sets, "identical rebind writes nothing")
	require.Equal(t, 2, module.calls, "initialization still re-runs")
	require.Len(t, f.events.All(), eventsBefore+1, "event still emitted")
	require.Equal(t, []byte("ok"), event.ModuleReturn)
}

func TestModuleInitFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner, badModule := addr(1), addr(2), addr(9)
	id := f.mintProfile(t, creator, owner)

	f.modules.Register(badModule, failingModule{})
	require.NoError(t, f.whitelist.WhitelistFollowModule(ctx, badModule, true))

	writesBefore := f.store.sets
	eventsBefore := len(f.events.All())

	_, err := f.registry.SetFollowModule(ctx, owner, id, badModule, nil)
	require.ErrorIs(t, err, ErrModuleInitFailed)

	require.Equal(t, writesBefore, f.store.sets, "module write rolled back")
	require.Len(t, f.events.All(), eventsBefore, "no event on failure")

	bound, err := f.registry.GetFollowModule(ctx, id)
	require.NoError(t, err)
	require.True(t, bound.IsZero())
}

func TestCreateProfileModuleInitFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner, badModule := addr(1), addr(2), addr(9)

	require.NoError(t, f.whitelist.WhitelistProfileCreator(ctx, creator, true))
	f.modules.Register(badModule, failingModule{})
	require.NoError(t, f.whitelist.WhitelistFollowModule(ctx, badModule, true))

	id, err := f.identity.Mint(owner)
	require.NoError(t, err)

	writesBefore := f.store.sets
	_, err = f.registry.CreateProfile(ctx, creator, models.CreateProfileRequest{
		To:           owner,
		ProfileID:    id,
		ImageURI:     "ipfs://abc",
		FollowModule: badModule,
	})
	require.ErrorIs(t, err, ErrModuleInitFailed)
	require.Equal(t, writesBefore, f.store.sets, "image URI write rolled back too")

	profile, err := f.registry.GetProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "", profile.ImageURI)
}

func TestUnknownModuleFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner, ghost := addr(1), addr(2), addr(9)
	id := f.mintProfile(t, creator, owner)

	// Whitelisted but no registered implementation.
	require.NoError(t, f.whitelist.WhitelistFollowModule(ctx, ghost, true))

	_, err := f.registry.SetFollowModule(ctx, owner, id, ghost, nil)
	require.ErrorIs(t, err, ErrUnknownFollowModule)

	bound, err := f.registry.GetFollowModule(ctx, id)
	require.NoError(t, err)
	require.True(t, bound.IsZero())
}

func TestUnbindModuleNeedsNoWhitelist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner, moduleAddr := addr(1), addr(2), addr(9)
	id := f.mintProfile(t, creator, owner)

	f.modules.Register(moduleAddr, &recordingModule{})
	require.NoError(t, f.whitelist.WhitelistFollowModule(ctx, moduleAddr, true))
	_, err := f.registry.SetFollowModule(ctx, owner, id, moduleAddr, nil)
	require.NoError(t, err)

	// Remove from whitelist, then unbind: the null module always passes.
	require.NoError(t, f.whitelist.WhitelistFollowModule(ctx, moduleAddr, false))
	_, err = f.registry.SetFollowModule(ctx, owner, id, models.ZeroAddress, nil)
	require.NoError(t, err)

	bound, err := f.registry.GetFollowModule(ctx, id)
	require.NoError(t, err)
	require.True(t, bound.IsZero())
}

func TestStaleWhitelistedModuleStaysBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner, moduleAddr := addr(1), addr(2), addr(9)
	id := f.mintProfile(t, creator, owner)

	f.modules.Register(moduleAddr, &recordingModule{})
	require.NoError(t, f.whitelist.WhitelistFollowModule(ctx, moduleAddr, true))
	_, err := f.registry.SetFollowModule(ctx, owner, id, moduleAddr, nil)
	require.NoError(t, err)

	// The whitelist is only consulted at bind time.
	require.NoError(t, f.whitelist.WhitelistFollowModule(ctx, moduleAddr, false))
	bound, err := f.registry.GetFollowModule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, moduleAddr, bound)
}

func TestSetterAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner, stranger, dispatcher, executor := addr(1), addr(2), addr(3), addr(4), addr(5)
	id := f.mintProfile(t, creator, owner)

	_, err := f.registry.SetProfileImageURI(ctx, stranger, id, "ipfs://nope")
	require.ErrorIs(t, err, ErrUnauthorized)

	// Owner may delegate a dispatcher, which then mutates on their behalf.
	_, err = f.registry.SetDispatcher(ctx, owner, id, dispatcher)
	require.NoError(t, err)
	_, err = f.registry.SetProfileImageURI(ctx, dispatcher, id, "ipfs://via-dispatcher")
	require.NoError(t, err)

	// Approved executors work too.
	f.identity.SetApprovalForAll(owner, executor, true)
	_, err = f.registry.SetFollowNFTURI(ctx, executor, id, "ipfs://via-executor")
	require.NoError(t, err)

	profile, err := f.registry.GetProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ipfs://via-dispatcher", profile.ImageURI)
	require.Equal(t, "ipfs://via-executor", profile.FollowNFTURI)
	require.Equal(t, dispatcher, profile.Dispatcher)
}

func TestMetadataLivesInSeparateNamespace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner := addr(1), addr(2)
	id := f.mintProfile(t, creator, owner)

	_, err := f.registry.SetProfileMetadataURI(ctx, owner, id, "ipfs://meta")
	require.NoError(t, err)

	profile, err := f.registry.GetProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ipfs://meta", profile.MetadataURI)
	require.Equal(t, "ipfs://abc", profile.ImageURI, "main record untouched")
}

func TestSetImageURIWithSig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner := addr(1), addr(2)
	id := f.mintProfile(t, creator, owner)

	f.signer.RegisterSigner(owner, []byte("owner-signing-key"))
	token, err := f.signer.SignMetaTx(owner, OpSetImageURI, id, []byte("ipfs://signed"), "nonce-1", time.Now().Add(time.Minute))
	require.NoError(t, err)

	event, err := f.registry.SetProfileImageURIWithSig(ctx, token, id, "ipfs://signed")
	require.NoError(t, err)
	require.Equal(t, models.EventProfileImageURISet, event.Type)

	profile, err := f.registry.GetProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ipfs://signed", profile.ImageURI)

	// Replaying the same token must fail: the nonce is consumed.
	_, err = f.registry.SetProfileImageURIWithSig(ctx, token, id, "ipfs://signed")
	require.ErrorIs(t, err, ErrSignatureInvalidOrExpired)
}

func TestWithSigBindsToOperation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner := addr(1), addr(2)
	id := f.mintProfile(t, creator, owner)

	f.signer.RegisterSigner(owner, []byte("owner-signing-key"))
	token, err := f.signer.SignMetaTx(owner, OpSetImageURI, id, []byte("ipfs://one"), "nonce-1", time.Now().Add(time.Minute))
	require.NoError(t, err)

	// Token signed for one value cannot authorize another.
	_, err = f.registry.SetProfileImageURIWithSig(ctx, token, id, "ipfs://two")
	require.ErrorIs(t, err, ErrSignatureInvalidOrExpired)
}

func TestConcurrentReadsSeeWholeRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator, owner := addr(1), addr(2)
	id := f.mintProfile(t, creator, owner)

	// Long-form values span several slots, so a torn read would surface as a
	// mix of the two.
	valueA := strings.Repeat("A", 100)
	valueB := strings.Repeat("B", 100)
	_, err := f.registry.SetProfileImageURI(ctx, owner, id, valueA)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 200; i++ {
			v := valueA
			if i%2 == 1 {
				v = valueB
			}
			if _, err := f.registry.SetProfileImageURI(ctx, owner, id, v); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			return
		default:
		}
		profile, err := f.registry.GetProfile(ctx, id)
		require.NoError(t, err)
		if profile.ImageURI != valueA && profile.ImageURI != valueB {
			t.Fatalf("read a record that was never written: %q", profile.ImageURI)
		}
	}
}

func TestGetProfileUnknownID(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.GetProfile(context.Background(), 404)
	require.ErrorIs(t, err, ErrProfileNotFound)
}
