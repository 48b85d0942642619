package memory

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 16

// NormalizeText lowercases s, trims it and collapses whitespace runs to a
// single space.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ComputeFingerprint derives the dedupe key of a capability from its title,
// commit hash and feature id. The same inputs always produce the same key,
// whichever command recorded the capability.
func ComputeFingerprint(title, commitHash, featureID string) string {
	raw := NormalizeText(title) + "|" + strings.TrimSpace(commitHash) + "|" + featureID
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
