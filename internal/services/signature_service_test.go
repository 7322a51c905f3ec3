package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyMetaTxHappyPath(t *testing.T) {
	s := NewSignatureService()
	signer := addr(7)
	s.RegisterSigner(signer, []byte("k"))

	token, err := s.SignMetaTx(signer, OpSetImageURI, 1, []byte("v"), "n1", time.Now().Add(time.Minute))
	require.NoError(t, err)

	got, err := s.VerifyMetaTx(token, OpSetImageURI, 1, []byte("v"))
	require.NoError(t, err)
	require.Equal(t, signer, got)
}

func TestVerifyMetaTxConsumesNonceOnce(t *testing.T) {
	s := NewSignatureService()
	signer := addr(7)
	s.RegisterSigner(signer, []byte("k"))

	token, err := s.SignMetaTx(signer, OpSetImageURI, 1, []byte("v"), "n1", time.Now().Add(time.Minute))
	require.NoError(t, err)

	_, err = s.VerifyMetaTx(token, OpSetImageURI, 1, []byte("v"))
	require.NoError(t, err)

	_, err = s.VerifyMetaTx(token, OpSetImageURI, 1, []byte("v"))
	require.ErrorIs(t, err, ErrSignatureInvalidOrExpired)

	// A fresh nonce from the same signer still works.
	token2, err := s.SignMetaTx(signer, OpSetImageURI, 1, []byte("v"), "n2", time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = s.VerifyMetaTx(token2, OpSetImageURI, 1, []byte("v"))
	require.NoError(t, err)
}

func TestVerifyMetaTxRejectsExpired(t *testing.T) {
	s := NewSignatureService()
	signer := addr(7)
	s.RegisterSigner(signer, []byte("k"))

	token, err := s.SignMetaTx(signer, OpSetImageURI, 1, []byte("v"), "n1", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = s.VerifyMetaTx(token, OpSetImageURI, 1, []byte("v"))
	require.ErrorIs(t, err, ErrSignatureInvalidOrExpired)
}

func TestVerifyMetaTxRejectsDigestMismatch(t *testing.T) {
	s := NewSignatureService()
	signer := addr(7)
	s.RegisterSigner(signer, []byte("k"))

	token, err := s.SignMetaTx(signer, OpSetImageURI, 1, []byte("v"), "n1", time.Now().Add(time.Minute))
	require.NoError(t, err)

	// Different payload
	_, err = s.VerifyMetaTx(token, OpSetImageURI, 1, []byte("other"))
	require.ErrorIs(t, err, ErrSignatureInvalidOrExpired)
	// Different operation kind
	_, err = s.VerifyMetaTx(token, OpSetMetadataURI, 1, []byte("v"))
	require.ErrorIs(t, err, ErrSignatureInvalidOrExpired)
	// Different profile
	_, err = s.VerifyMetaTx(token, OpSetImageURI, 2, []byte("v"))
	require.ErrorIs(t, err, ErrSignatureInvalidOrExpired)
}

func TestVerifyMetaTxRejectsUnknownSigner(t *testing.T) {
	s := NewSignatureService()
	_, err := s.SignMetaTx(addr(7), OpSetImageURI, 1, []byte("v"), "n1", time.Now().Add(time.Minute))
	require.ErrorIs(t, err, ErrUnknownSigner)
}

func TestVerifyMetaTxRejectsTamperedToken(t *testing.T) {
	s := NewSignatureService()
	signer := addr(7)
	s.RegisterSigner(signer, []byte("k"))

	token, err := s.SignMetaTx(signer, OpSetImageURI, 1, []byte("v"), "n1", time.Now().Add(time.Minute))
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = s.VerifyMetaTx(tampered, OpSetImageURI, 1, []byte("v"))
	require.ErrorIs(t, err, ErrSignatureInvalidOrExpired)
}

func TestOperationDigestIsCanonical(t *testing.T) {
	d1 := OperationDigest(OpSetImageURI, 1, []byte("v"))
	require.Equal(t, d1, OperationDigest(OpSetImageURI, 1, []byte("v")))
	require.NotEqual(t, d1, OperationDigest(OpSetImageURI, 2, []byte("v")))
	require.NotEqual(t, d1, OperationDigest(OpSetFollowNFTURI, 1, []byte("v")))
	require.NotEqual(t, d1, OperationDigest(OpSetImageURI, 1, []byte("w")))
}
