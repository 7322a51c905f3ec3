package storage

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Word is one 32-byte storage cell. Slot is its 32-byte address. The store is
// a flat word-addressed space: records are located by hashing, never by
// growing a collection.
type (
	Word [32]byte
	Slot [32]byte
)

// Namespaces anchoring each keyed record family. Slot addresses are derived
// from these, so the constants are part of the persisted layout and must not
// change once data exists.
const (
	NamespaceProfile         uint64 = 12
	NamespaceProfileMetadata uint64 = 21
	NamespaceDispatcher      uint64 = 22
	NamespaceCreatorAllow    uint64 = 30
	NamespaceModuleAllow     uint64 = 31
)

// Field indexes within the profile record namespace.
const (
	FieldImageURI     uint64 = 0
	FieldFollowNFTURI uint64 = 1
	FieldFollowModule uint64 = 2
)

func (w Word) IsZero() bool {
	return w == Word{}
}

func (s Slot) Hex() string {
	return hex.EncodeToString(s[:])
}

// WordFromUint64 right-aligns v in a word (big-endian, zero-padded).
func WordFromUint64(v uint64) Word {
	var w Word
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

// WordFromBytes right-aligns up to 32 bytes in a word.
func WordFromBytes(b []byte) Word {
	var w Word
	copy(w[32-len(b):], b)
	return w
}

func keccak256(chunks ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// BaseSlot locates an entity's record: keccak256(uint256(id) || uint256(ns)).
func BaseSlot(namespace, id uint64) Slot {
	idWord := WordFromUint64(id)
	nsWord := WordFromUint64(namespace)
	return Slot(keccak256(idWord[:], nsWord[:]))
}

// FieldSlot offsets a record's base slot by the field index, as 256-bit
// big-endian addition with wraparound.
func FieldSlot(base Slot, field uint64) Slot {
	return addSlot(base, field)
}

// AddressSlot locates a record keyed by a 20-byte address instead of an id.
func AddressSlot(namespace uint64, addr [20]byte) Slot {
	addrWord := WordFromBytes(addr[:])
	nsWord := WordFromUint64(namespace)
	return Slot(keccak256(addrWord[:], nsWord[:]))
}

// SpillSlot is where a long-form value's chunks begin: the hash of the header
// slot itself.
func SpillSlot(header Slot) Slot {
	return Slot(keccak256(header[:]))
}

func addSlot(s Slot, n uint64) Slot {
	var carry uint64 = n
	for i := 31; i >= 0 && carry > 0; i-- {
		sum := uint64(s[i]) + (carry & 0xff)
		s[i] = byte(sum)
		carry = (carry >> 8) + (sum >> 8)
	}
	return s
}
