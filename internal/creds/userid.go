package creds

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// DeriveUserID maps a username to a stable UUID-shaped identifier. The same
// username always yields the same id. Stored metadata and client caches
// carry these ids across restarts, so the transform is frozen: a new scheme
// would need a migration, never an edit here.
//
// The transform takes the md5 hex digest and arranges it as
// 8-4-"4"+3-variant+3-12, skipping digest position 12 and folding position
// 16 into the 8..b variant range. The skipped position is a quirk of the
// historical implementation and is preserved deliberately.
func DeriveUserID(username string) string {
	sum := md5.Sum([]byte(username))
	h := hex.EncodeToString(sum[:])

	variant := (hexDigit(h[16]) & 0x3) | 0x8

	return fmt.Sprintf("%s-%s-4%s-%x%s-%s",
		h[0:8], h[8:12], h[13:16], variant, h[17:20], h[20:32])
}

func hexDigit(c byte) byte {
	if c >= 'a' {
		return c - 'a' + 10
	}
	return c - '0'
}
