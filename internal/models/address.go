package models

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Address is a 20-byte account identifier, rendered as 0x-prefixed hex.
type Address [20]byte

// ZeroAddress means "no address bound" wherever an Address field is optional.
var ZeroAddress Address

var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress decodes a 0x-prefixed (or bare) 40-hex-digit string.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	var a Address
	if len(s) != 40 {
		return a, ErrInvalidAddress
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, ErrInvalidAddress
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
