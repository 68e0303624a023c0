package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns the lowercase hex BLAKE2b-512 digest of input
func Digest(input string) string {
	sum := blake2b.Sum512([]byte(input))
	return hex.EncodeToString(sum[:])
}

// HashPassword turns a plaintext password into the digest the credential
// store keeps. The API boundary calls it; services only ever see digests.
func HashPassword(password string) string {
	return Digest(password)
}
