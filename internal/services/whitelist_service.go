package services

import (
	"context"
	"log"

	"github.com/profilehub/backend/internal/models"
	"github.com/profilehub/backend/internal/storage"
)

// WhitelistService answers the two governance allow-lists: profile creators
// and follow modules. The checks are pure reads; the mutation entry points
// exist for governance only and are never reachable by end users. The service
// itself never raises a not-whitelisted error, it only answers — callers
// decide what a false answer means.
type WhitelistService struct {
	store storage.SlotStore
}

func NewWhitelistService(store storage.SlotStore) *WhitelistService {
	return &WhitelistService{store: store}
}

func (s *WhitelistService) IsProfileCreatorWhitelisted(ctx context.Context, addr models.Address) (bool, error) {
	return s.isListed(ctx, storage.NamespaceCreatorAllow, addr)
}

func (s *WhitelistService) IsFollowModuleWhitelisted(ctx context.Context, addr models.Address) (bool, error) {
	return s.isListed(ctx, storage.NamespaceModuleAllow, addr)
}

// WhitelistProfileCreator adds or removes a creator. Governance only.
func (s *WhitelistService) WhitelistProfileCreator(ctx context.Context, addr models.Address, whitelisted bool) error {
	log.Printf("[whitelist] creator %s whitelisted=%v", addr, whitelisted)
	return s.setListed(ctx, storage.NamespaceCreatorAllow, addr, whitelisted)
}

// WhitelistFollowModule adds or removes a follow module. Governance only.
func (s *WhitelistService) WhitelistFollowModule(ctx context.Context, addr models.Address, whitelisted bool) error {
	log.Printf("[whitelist] follow module %s whitelisted=%v", addr, whitelisted)
	return s.setListed(ctx, storage.NamespaceModuleAllow, addr, whitelisted)
}

func (s *WhitelistService) isListed(ctx context.Context, namespace uint64, addr models.Address) (bool, error) {
	w, err := s.store.Get(ctx, storage.AddressSlot(namespace, addr))
	if err != nil {
		return false, err
	}
	return !w.IsZero(), nil
}

func (s *WhitelistService) setListed(ctx context.Context, namespace uint64, addr models.Address, listed bool) error {
	var w storage.Word
	if listed {
		w = storage.WordFromUint64(1)
	}
	return s.store.Set(ctx, storage.AddressSlot(namespace, addr), w)
}
