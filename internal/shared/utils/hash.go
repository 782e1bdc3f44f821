package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChecksumPrefix names the algorithm in every checksum
const ChecksumPrefix = "sha256:"

// Checksum returns a content hash of module source, used to tell reloaded
// revisions of one module apart
func Checksum(source string) string {
	sum := sha256.Sum256([]byte(source))
	return ChecksumPrefix + hex.EncodeToString(sum[:])
}

// ShortChecksum returns the first 12 hex digits of a checksum for display
func ShortChecksum(checksum string) string {
	digest := checksum
	if len(digest) > len(ChecksumPrefix) && digest[:len(ChecksumPrefix)] == ChecksumPrefix {
		digest = digest[len(ChecksumPrefix):]
	}
	if len(digest) < 12 {
		return digest
	}
	return digest[:12]
}
