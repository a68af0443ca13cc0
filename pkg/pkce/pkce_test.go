package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	codes, err := Generate()
	require.NoError(t, err)

	assert.Equal(t, MethodS256, codes.CodeChallengeMethod)
	assert.Len(t, codes.CodeVerifier, 43) // 32 bytes, unpadded base64url
	assert.Equal(t, ChallengeS256(codes.CodeVerifier), codes.CodeChallenge)

	// The encoding must be URL-safe.
	_, err = base64.RawURLEncoding.DecodeString(codes.CodeVerifier)
	assert.NoError(t, err)
	_, err = base64.RawURLEncoding.DecodeString(codes.CodeChallenge)
	assert.NoError(t, err)
}

func TestGenerateWithPlainMethod(t *testing.T) {
	t.Parallel()

	codes, err := GenerateWithMethod(MethodPlain)
	require.NoError(t, err)
	assert.Equal(t, codes.CodeVerifier, codes.CodeChallenge)
}

func TestGenerateWithUnknownMethod(t *testing.T) {
	t.Parallel()

	_, err := GenerateWithMethod(Method("S512"))
	assert.ErrorContains(t, err, "unsupported code challenge method")
}

func TestChallengeS256IsDeterministic(t *testing.T) {
	t.Parallel()

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	expected := base64.RawURLEncoding.EncodeToString(sum[:])

	assert.Equal(t, expected, ChallengeS256(verifier))
	assert.Equal(t, ChallengeS256(verifier), ChallengeS256(verifier))
	assert.NotEqual(t, ChallengeS256(verifier), ChallengeS256(verifier+"x"))
}

func TestGeneratedValuesAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		state, err := GenerateState()
		require.NoError(t, err)
		assert.False(t, seen[state], "generated state repeated")
		seen[state] = true
	}
}
