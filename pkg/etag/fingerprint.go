package etag

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Hash names accepted by FingerprintByName.
const (
	HashMD5    = "md5"
	HashXXHash = "xxhash"
)

// Fingerprint computes a change-detector over a serialized body.
type Fingerprint func(body []byte) string

// MD5 fingerprints with MD5 (hex). Used as a change detector only.
func MD5(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// XXHash fingerprints with 64-bit xxHash (hex).
func XXHash(body []byte) string {
	return strconv.FormatUint(xxhash.Sum64(body), 16)
}

// FingerprintByName resolves a configured hash name ("md5", "xxhash").
func FingerprintByName(name string) (Fingerprint, error) {
	switch strings.ToLower(name) {
	case "", HashMD5:
		return MD5, nil
	case HashXXHash:
		return XXHash, nil
	default:
		return nil, fmt.Errorf("unknown etag hash %q", name)
	}
}

// Quote renders a fingerprint as a strong entity tag.
func Quote(fp string) string {
	return `"` + fp + `"`
}

// Matches reports whether an If-None-Match header value is exactly tag.
// Lists, weak validators and "*" are not honored; they get a full response.
func Matches(ifNoneMatch, tag string) bool {
	return tag != "" && ifNoneMatch == tag
}
