package mysqlproto

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNativePasswordTokenMatchesDocumentedFormula exercises §8 scenario
// 1: given any 20-byte salt and password "canal", the returned token
// equals SHA1(password) XOR SHA1(salt || SHA1(SHA1(password))), with
// length 20.
func TestNativePasswordTokenMatchesDocumentedFormula(t *testing.T) {
	salt := make([]byte, 20)
	for i := range salt {
		salt[i] = byte(i + 1)
	}
	password := "canal"

	h1 := sha1.Sum([]byte(password))
	h2 := sha1.Sum(h1[:])
	hasher := sha1.New()
	hasher.Write(salt)
	hasher.Write(h2[:])
	saltedH2 := hasher.Sum(nil)
	want := make([]byte, len(h1))
	for i := range h1 {
		want[i] = h1[i] ^ saltedH2[i]
	}

	got := NativePasswordToken(salt, password)
	require.Len(t, got, 20)
	assert.Equal(t, want, got)
}

func TestNativePasswordTokenEmptyPasswordReturnsNil(t *testing.T) {
	salt := make([]byte, 20)
	assert.Nil(t, NativePasswordToken(salt, ""))
}
