package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

// Variable-length byte strings are stored in one of two mutually exclusive
// layouts, chosen solely by length:
//
//   short (len <= 31): the value sits left-aligned in a single word and the
//   low byte holds 2*len (even low byte, LSB clear).
//
//   long (len > 31): the word at the field slot holds the header 2*len+1
//   (odd, LSB set) and the value spills into ceil(len/32) consecutive words
//   starting at SpillSlot(fieldSlot).
//
// Decoding dispatches on the header's LSB only, never on caller hints.

// ShortFormMax is the largest value length that fits the inline layout.
const ShortFormMax = 31

var ErrCorruptString = errors.New("corrupt packed string")

// EncodeShort packs a value of at most 31 bytes into a single word.
func EncodeShort(value []byte) (Word, error) {
	if len(value) > ShortFormMax {
		return Word{}, fmt.Errorf("%w: short form overflow (%d bytes)", ErrCorruptString, len(value))
	}
	var w Word
	copy(w[:], value)
	w[31] = byte(2 * len(value))
	return w, nil
}

// EncodeLongHeader builds the header word 2*len+1 for a spilled value.
func EncodeLongHeader(length int) Word {
	var w Word
	binary.BigEndian.PutUint64(w[24:], uint64(2*length+1))
	return w
}

// EncodeChunks splits a value into 32-byte words, zero-padding the tail.
func EncodeChunks(value []byte) []Word {
	n := (len(value) + 31) / 32
	chunks := make([]Word, n)
	for i := 0; i < n; i++ {
		copy(chunks[i][:], value[i*32:])
	}
	return chunks
}

// DecodeShort is the inverse of EncodeShort.
func DecodeShort(w Word) ([]byte, error) {
	tag := w[31]
	if tag&1 != 0 {
		return nil, fmt.Errorf("%w: long-form header in short decode", ErrCorruptString)
	}
	length := int(tag / 2)
	if length > ShortFormMax {
		return nil, fmt.Errorf("%w: short length %d", ErrCorruptString, length)
	}
	out := make([]byte, length)
	copy(out, w[:length])
	return out, nil
}

// DecodeLongLength extracts the value length from a long-form header word.
func DecodeLongLength(w Word) (int, error) {
	if w[31]&1 == 0 {
		return 0, fmt.Errorf("%w: short-form word in long decode", ErrCorruptString)
	}
	raw := binary.BigEndian.Uint64(w[24:])
	return int((raw - 1) / 2), nil
}

// IsLongForm reports whether a field word is a spill header.
func IsLongForm(w Word) bool {
	return w[31]&1 == 1
}

// PackedStringStore reads and writes variable-length strings over a flat
// SlotStore using the dual layout above. Addressing is by hash of
// (id, namespace) plus a field index; there is no growable collection.
type PackedStringStore struct {
	store SlotStore
}

func NewPackedStringStore(store SlotStore) *PackedStringStore {
	return &PackedStringStore{store: store}
}

func (p *PackedStringStore) Write(ctx context.Context, namespace, id, field uint64, value []byte) error {
	slot := FieldSlot(BaseSlot(namespace, id), field)

	if len(value) <= ShortFormMax {
		w, err := EncodeShort(value)
		if err != nil {
			return err
		}
		return p.store.Set(ctx, slot, w)
	}

	if err := p.store.Set(ctx, slot, EncodeLongHeader(len(value))); err != nil {
		return err
	}
	spill := SpillSlot(slot)
	for i, chunk := range EncodeChunks(value) {
		if err := p.store.Set(ctx, addSlot(spill, uint64(i)), chunk); err != nil {
			return err
		}
	}
	return nil
}

func (p *PackedStringStore) Read(ctx context.Context, namespace, id, field uint64) ([]byte, error) {
	slot := FieldSlot(BaseSlot(namespace, id), field)
	head, err := p.store.Get(ctx, slot)
	if err != nil {
		return nil, err
	}

	if !IsLongForm(head) {
		return DecodeShort(head)
	}

	length, err := DecodeLongLength(head)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, length)
	spill := SpillSlot(slot)
	for i := 0; len(out) < length; i++ {
		chunk, err := p.store.Get(ctx, addSlot(spill, uint64(i)))
		if err != nil {
			return nil, err
		}
		remaining := length - len(out)
		if remaining > 32 {
			remaining = 32
		}
		out = append(out, chunk[:remaining]...)
	}
	return out, nil
}
