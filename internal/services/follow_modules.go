package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/profilehub/backend/internal/models"
)

// FollowModule is the pluggable policy gating new followers for a profile.
// The registry only ever calls initialization; a failure here aborts the
// whole enclosing operation, writes included.
type FollowModule interface {
	InitializeFollowModule(ctx context.Context, profileID uint64, executor models.Address, initData []byte) ([]byte, error)
}

// ModuleResolver maps a bound module address to its capability object.
type ModuleResolver interface {
	Resolve(addr models.Address) (FollowModule, bool)
}

// ModuleRegistry is the in-process resolver implementation.
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[models.Address]FollowModule
}

func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: make(map[models.Address]FollowModule)}
}

func (r *ModuleRegistry) Register(addr models.Address, module FollowModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[addr] = module
}

func (r *ModuleRegistry) Resolve(addr models.Address) (FollowModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[addr]
	return m, ok
}

// OpenFollowModule accepts any follower and takes no configuration.
type OpenFollowModule struct{}

func (OpenFollowModule) InitializeFollowModule(ctx context.Context, profileID uint64, executor models.Address, initData []byte) ([]byte, error) {
	if len(initData) != 0 {
		return nil, errors.New("open follow module takes no init data")
	}
	return nil, nil
}

// FeeFollowModule charges a follow fee paid to a recipient. Init data is
// 8 bytes big-endian amount followed by a 20-byte recipient address.
type FeeFollowModule struct {
	mu      sync.RWMutex
	configs map[uint64]feeConfig
}

type feeConfig struct {
	amount    uint64
	recipient models.Address
}

func NewFeeFollowModule() *FeeFollowModule {
	return &FeeFollowModule{configs: make(map[uint64]feeConfig)}
}

func (m *FeeFollowModule) InitializeFollowModule(ctx context.Context, profileID uint64, executor models.Address, initData []byte) ([]byte, error) {
	if len(initData) != 28 {
		return nil, fmt.Errorf("fee follow module: init data must be 28 bytes, got %d", len(initData))
	}
	amount := binary.BigEndian.Uint64(initData[:8])
	var recipient models.Address
	copy(recipient[:], initData[8:28])
	if amount == 0 {
		return nil, errors.New("fee follow module: amount must be positive")
	}
	if recipient.IsZero() {
		return nil, errors.New("fee follow module: recipient must be set")
	}

	m.mu.Lock()
	m.configs[profileID] = feeConfig{amount: amount, recipient: recipient}
	m.mu.Unlock()

	// Echo the accepted configuration back to the caller.
	out := make([]byte, 28)
	copy(out, initData)
	return out, nil
}
