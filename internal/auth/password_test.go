package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-io/palisade/internal/auth"
)

func TestHashAndVerify(t *testing.T) {
	hasher := auth.NewArgon2Hasher()

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"), "parameters must be self-describing")

	ok, err := hasher.Verify("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashUsesFreshSalt(t *testing.T) {
	hasher := auth.NewArgon2Hasher()

	h1, err := hasher.Hash("same password")
	require.NoError(t, err)
	h2, err := hasher.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "two hashes of the same password must differ by salt")
}

func TestHashEmptyPassword(t *testing.T) {
	hasher := auth.NewArgon2Hasher()

	_, err := hasher.Hash("")
	assert.ErrorIs(t, err, auth.ErrEmptyPassword)
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := auth.NewArgon2Hasher()

	cases := []string{
		"not-a-valid-hash",
		"",
		"$argon2id$v=19$m=65536,t=3,p=2$short",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$bogus$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
		"$argon2id$v=19$m=32768,t=2,p=1$c29tZXNhbHRzb21lc2FsdA$",
	}

	for _, bad := range cases {
		ok, err := hasher.Verify("any password", bad)
		assert.False(t, ok, "hash %q", bad)
		assert.ErrorIs(t, err, auth.ErrInvalidHash, "hash %q", bad)
	}
}
