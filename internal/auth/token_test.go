package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionToken(t *testing.T) {
	token, fingerprint, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.Len(t, token, 2*SessionTokenBytes)
	assert.Len(t, fingerprint, 64)
	assert.NotEqual(t, token, fingerprint)
	assert.Equal(t, fingerprint, FingerprintSessionToken(token))

	other, otherFingerprint, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
	assert.NotEqual(t, fingerprint, otherFingerprint)
}

func TestFingerprintSessionToken(t *testing.T) {
	assert.Equal(t, FingerprintSessionToken("abc"), FingerprintSessionToken("abc"))
	assert.NotEqual(t, FingerprintSessionToken("abc"), FingerprintSessionToken("abd"))
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", FingerprintSessionToken("abc"))
}
