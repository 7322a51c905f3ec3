package storage

import "context"

// Tx buffers writes over a backing SlotStore. Nothing reaches the backend
// until Commit; dropping an uncommitted Tx discards every write, which is how
// registry operations get their all-or-nothing contract even when an external
// module call fails midway.
//
// Reads see the Tx's own pending writes first, then fall through.
type Tx struct {
	backend SlotStore
	pending map[Slot]Word
	order   []Slot
}

func NewTx(backend SlotStore) *Tx {
	return &Tx{
		backend: backend,
		pending: make(map[Slot]Word),
	}
}

func (tx *Tx) Get(ctx context.Context, slot Slot) (Word, error) {
	if w, ok := tx.pending[slot]; ok {
		return w, nil
	}
	return tx.backend.Get(ctx, slot)
}

func (tx *Tx) Set(ctx context.Context, slot Slot, word Word) error {
	if _, ok := tx.pending[slot]; !ok {
		tx.order = append(tx.order, slot)
	}
	tx.pending[slot] = word
	return nil
}

// Writes reports how many distinct slots this Tx would flush.
func (tx *Tx) Writes() int {
	return len(tx.pending)
}

// Commit flushes pending writes to the backend in first-write order.
func (tx *Tx) Commit(ctx context.Context) error {
	for _, slot := range tx.order {
		if err := tx.backend.Set(ctx, slot, tx.pending[slot]); err != nil {
			return err
		}
	}
	tx.pending = make(map[Slot]Word)
	tx.order = nil
	return nil
}
