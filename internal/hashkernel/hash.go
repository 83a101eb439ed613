// Package hashkernel computes the content hashes the Validation Engine
// reconciles source files against, and enumerates the line-ending
// variations a source can take after passing through lossy transport.
package hashkernel

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Digest is a raw 32-byte Keccak256 hash. Hex renders it with the 0x
// prefix used throughout Solidity compiler metadata.
type Digest [32]byte

// Keccak256 hashes text the way the Solidity compiler hashes source files.
func Keccak256(text string) Digest {
	var d Digest
	copy(d[:], crypto.Keccak256([]byte(text)))
	return d
}

// Hex renders the digest the way metadata manifests declare it:
// 0x-prefixed lowercase hex.
func (d Digest) Hex() string {
	return "0x" + hex.EncodeToString(d[:])
}

// ParseDigest parses a 0x-prefixed or bare hex digest as declared in a
// metadata manifest's sources[*].keccak256 field.
func ParseDigest(s string) (Digest, bool) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return Digest{}, false
	}
	var d Digest
	copy(d[:], b)
	return d, true
}

// contentVariators rewrites line endings; ending variators trim/append
// trailing whitespace. Applied in this fixed order and composed as a
// Cartesian product — see spec §4.1.
var contentVariators = []func(string) string{
	func(s string) string { return s },
	lfToCRLF,
	crlfToLF,
}

var endingVariators = []func(string) string{
	func(s string) string { return s },
	rightTrim,
	func(s string) string { return rightTrim(s) + "\n" },
	func(s string) string { return rightTrim(s) + "\r\n" },
	func(s string) string { return s + "\n" },
	func(s string) string { return s + "\r\n" },
}

// Variations produces the 18 semantically-equivalent renderings of text
// used to reconstruct a hash across platform/editor line-ending mutations.
// Duplicates are not suppressed; callers that index by hash simply let
// later identical hashes overwrite earlier ones.
func Variations(text string) []string {
	out := make([]string, 0, len(contentVariators)*len(endingVariators))
	for _, cv := range contentVariators {
		base := cv(text)
		for _, ev := range endingVariators {
			out = append(out, ev(base))
		}
	}
	return out
}

func lfToCRLF(s string) string {
	// Normalize any existing CRLF to LF first so we don't double up on \r.
	s = crlfToLF(s)
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func crlfToLF(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func rightTrim(s string) string {
	return strings.TrimRight(s, " \t\r\n\v\f")
}
