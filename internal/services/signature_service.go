package services

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/sha3"

	"github.com/profilehub/backend/internal/models"
)

var (
	ErrSignatureInvalidOrExpired = errors.New("signature invalid or expired")
	ErrUnknownSigner             = errors.New("no signing key registered for signer")
)

// SignatureAuthority verifies meta-transactions: mutations authorized by a
// signed token instead of a live caller. Verification recovers the signer
// address, checks the operation digest and deadline, and consumes the nonce
// exactly once — a replayed token fails even if otherwise valid.
type SignatureAuthority interface {
	VerifyMetaTx(token string, kind string, profileID uint64, payload []byte) (models.Address, error)
}

type metaTxClaims struct {
	Signer string `json:"signer"`
	Digest string `json:"digest"`
	Nonce  string `json:"nonce"`
	jwt.RegisteredClaims
}

// SignatureService implements SignatureAuthority over per-address HMAC keys.
// Key registration is governance-provisioned, like the whitelists.
type SignatureService struct {
	mu         sync.Mutex
	keys       map[models.Address][]byte
	usedNonces map[string]bool // signer.String() + ":" + nonce
}

func NewSignatureService() *SignatureService {
	return &SignatureService{
		keys:       make(map[models.Address][]byte),
		usedNonces: make(map[string]bool),
	}
}

func (s *SignatureService) RegisterSigner(addr models.Address, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[addr] = key
}

// OperationDigest canonically hashes one mutation so the signed token binds
// to exactly the operation being executed.
func OperationDigest(kind string, profileID uint64, payload []byte) string {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], profileID)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(kind))
	h.Write(id[:])
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignMetaTx produces a token a registered signer would submit. The deadline
// becomes the token's expiry.
func (s *SignatureService) SignMetaTx(signer models.Address, kind string, profileID uint64, payload []byte, nonce string, deadline time.Time) (string, error) {
	s.mu.Lock()
	key, ok := s.keys[signer]
	s.mu.Unlock()
	if !ok {
		return "", ErrUnknownSigner
	}

	claims := metaTxClaims{
		Signer: signer.String(),
		Digest: OperationDigest(kind, profileID, payload),
		Nonce:  nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(deadline),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func (s *SignatureService) VerifyMetaTx(token string, kind string, profileID uint64, payload []byte) (models.Address, error) {
	parsed, err := jwt.ParseWithClaims(token, &metaTxClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		claims, ok := t.Claims.(*metaTxClaims)
		if !ok {
			return nil, jwt.ErrTokenInvalidClaims
		}
		signer, err := models.ParseAddress(claims.Signer)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		key, ok := s.keys[signer]
		s.mu.Unlock()
		if !ok {
			return nil, ErrUnknownSigner
		}
		return key, nil
	}, jwt.WithExpirationRequired())

	if err != nil || !parsed.Valid {
		return models.ZeroAddress, ErrSignatureInvalidOrExpired
	}

	claims, ok := parsed.Claims.(*metaTxClaims)
	if !ok || claims.Nonce == "" {
		return models.ZeroAddress, ErrSignatureInvalidOrExpired
	}
	if claims.Digest != OperationDigest(kind, profileID, payload) {
		return models.ZeroAddress, ErrSignatureInvalidOrExpired
	}

	signer, err := models.ParseAddress(claims.Signer)
	if err != nil {
		return models.ZeroAddress, ErrSignatureInvalidOrExpired
	}

	// Consume the nonce exactly once. Everything above is stateless; this is
	// the single point a valid token can still be refused.
	nonceKey := claims.Signer + ":" + claims.Nonce
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usedNonces[nonceKey] {
		return models.ZeroAddress, ErrSignatureInvalidOrExpired
	}
	s.usedNonces[nonceKey] = true
	return signer, nil
}
