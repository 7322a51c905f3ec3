package storage

import "context"

// SlotStore is the flat word store every registry record lives in. A slot
// that was never written reads back as the zero word.
type SlotStore interface {
	Get(ctx context.Context, slot Slot) (Word, error)
	Set(ctx context.Context, slot Slot, word Word) error
}
