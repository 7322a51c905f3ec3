package services

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"

	"github.com/profilehub/backend/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailExists     = errors.New("email already registered")
	ErrInvalidPassword = errors.New("invalid password")
)

// AccountService manages API credentials. Each account gets a deterministic
// protocol address derived from its ID; the registry only ever sees the
// address. The account registering with adminEmail receives the admin claim,
// which is the bootstrap for the governance routes.
type AccountService struct {
	adminEmail string

	mu       sync.RWMutex
	accounts map[string]*models.Account // accountID -> account
	byEmail  map[string]string          // email -> accountID
}

func NewAccountService(adminEmail string) *AccountService {
	return &AccountService{
		adminEmail: adminEmail,
		accounts:   make(map[string]*models.Account),
		byEmail:    make(map[string]string),
	}
}

func (s *AccountService) Register(req *models.RegisterRequest) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[req.Email]; exists {
		return nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	account := &models.Account{
		ID:           id,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Address:      deriveAddress(id),
		Admin:        s.adminEmail != "" && req.Email == s.adminEmail,
		CreatedAt:    time.Now(),
	}

	s.accounts[account.ID] = account
	s.byEmail[account.Email] = account.ID

	return account, nil
}

func (s *AccountService) Login(req *models.LoginRequest) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, exists := s.byEmail[req.Email]
	if !exists {
		return nil, ErrAccountNotFound
	}

	account := s.accounts[accountID]
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidPassword
	}

	return account, nil
}

func (s *AccountService) GetByID(id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// deriveAddress maps an account ID to its protocol address: the low 20 bytes
// of keccak256(id), mirroring how chain addresses fall out of key hashes.
func deriveAddress(id string) models.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(id))
	sum := h.Sum(nil)

	var addr models.Address
	copy(addr[:], sum[12:32])
	return addr
}
