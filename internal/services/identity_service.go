package services

import (
	"errors"
	"sync"

	"github.com/profilehub/backend/internal/models"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidMintTo   = errors.New("cannot mint to the zero address")
)

// IdentityService issues profile IDs and answers ownership queries. IDs are
// monotonically increasing and never reused; once its creation completes, a
// profile is never destroyed.
// The registry consumes this through the OwnershipOracle interface and trusts
// that a minted ID is fresh and owned before any field mutation runs.
type IdentityService struct {
	mu        sync.RWMutex
	nextID    uint64
	owners    map[uint64]models.Address
	approvals map[models.Address]map[models.Address]bool // owner -> executor -> approved
}

func NewIdentityService() *IdentityService {
	return &IdentityService{
		nextID:    1,
		owners:    make(map[uint64]models.Address),
		approvals: make(map[models.Address]map[models.Address]bool),
	}
}

// Mint allocates the next profile ID to the given owner.
func (s *IdentityService) Mint(to models.Address) (uint64, error) {
	if to.IsZero() {
		return 0, ErrInvalidMintTo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.owners[id] = to
	return id, nil
}

// Release discards an ID whose creation was rejected before the profile
// became observable. The counter never rewinds, so a released ID is not
// reissued.
func (s *IdentityService) Release(profileID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.owners, profileID)
}

func (s *IdentityService) OwnerOf(profileID uint64) (models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, exists := s.owners[profileID]
	if !exists {
		return models.ZeroAddress, ErrProfileNotFound
	}
	return owner, nil
}

// SetApprovalForAll lets an owner grant or revoke a blanket executor.
func (s *IdentityService) SetApprovalForAll(owner, executor models.Address, approved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.approvals[owner] == nil {
		s.approvals[owner] = make(map[models.Address]bool)
	}
	if approved {
		s.approvals[owner][executor] = true
	} else {
		delete(s.approvals[owner], executor)
	}
}

// IsApprovedExecutor reports whether executor may act for the profile's owner.
func (s *IdentityService) IsApprovedExecutor(profileID uint64, executor models.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, exists := s.owners[profileID]
	if !exists {
		return false, ErrProfileNotFound
	}
	if executor == owner {
		return true, nil
	}
	return s.approvals[owner][executor], nil
}
