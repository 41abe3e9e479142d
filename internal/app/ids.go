package app

import (
	"crypto/rand"
	"encoding/base32"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// newSecret returns an unpadded lowercase base32 secret of n random bytes,
// suitable for ticket secrets, gift card codes and API tokens.
func newSecret(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	out := make([]byte, enc.EncodedLen(n))
	enc.Encode(out, b)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}
