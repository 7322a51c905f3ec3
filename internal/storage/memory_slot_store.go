package storage

import (
	"context"
	"encoding/hex"
	"sync"
)

// MemorySlotStore keeps the word map in process memory, optionally snapshotted
// to disk through a JSONStore so a restart picks up where it left off.
type MemorySlotStore struct {
	mu       sync.RWMutex
	words    map[Slot]Word
	snapshot *JSONStore
}

func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{words: make(map[Slot]Word)}
}

// NewPersistentSlotStore loads any existing snapshot from dataDir and saves
// one after every write batch.
func NewPersistentSlotStore(dataDir string) (*MemorySlotStore, error) {
	js, err := NewJSONStore(dataDir, "slots.json")
	if err != nil {
		return nil, err
	}

	s := &MemorySlotStore{
		words:    make(map[Slot]Word),
		snapshot: js,
	}

	raw := make(map[string]string)
	if err := js.Load(&raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		slotBytes, err := hex.DecodeString(k)
		if err != nil || len(slotBytes) != 32 {
			continue
		}
		wordBytes, err := hex.DecodeString(v)
		if err != nil || len(wordBytes) != 32 {
			continue
		}
		var slot Slot
		var word Word
		copy(slot[:], slotBytes)
		copy(word[:], wordBytes)
		s.words[slot] = word
	}
	return s, nil
}

func (s *MemorySlotStore) Get(ctx context.Context, slot Slot) (Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.words[slot], nil
}

func (s *MemorySlotStore) Set(ctx context.Context, slot Slot, word Word) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if word.IsZero() {
		delete(s.words, slot)
	} else {
		s.words[slot] = word
	}

	if s.snapshot == nil {
		return nil
	}
	raw := make(map[string]string, len(s.words))
	for k, v := range s.words {
		raw[hex.EncodeToString(k[:])] = hex.EncodeToString(v[:])
	}
	return s.snapshot.Save(raw)
}

// Len reports how many non-zero slots are held.
func (s *MemorySlotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.words)
}
