package hashkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeccak256HexRoundTrip(t *testing.T) {
	d := Keccak256("a\n")
	parsed, ok := ParseDigest(d.Hex())
	require.True(t, ok)
	assert.Equal(t, d, parsed)
}

func TestParseDigestRejectsBadInput(t *testing.T) {
	_, ok := ParseDigest("not-hex")
	assert.False(t, ok)

	_, ok = ParseDigest("0x1234")
	assert.False(t, ok)
}

func TestVariationsCount(t *testing.T) {
	vs := Variations("a\n")
	assert.Len(t, vs, 18)
}

func TestVariationsFindsCRLFMatch(t *testing.T) {
	// Manifest declares the digest of "a\n"; the provided blob holds "a\r\n".
	declared := Keccak256("a\n")

	found := false
	for _, v := range Variations("a\r\n") {
		if Keccak256(v) == declared {
			found = true
			break
		}
	}
	assert.True(t, found, "CRLF->LF variator should reconstruct the declared hash")
}

func TestVariationsFindsTrimMatch(t *testing.T) {
	declared := Keccak256("a")

	found := false
	for _, v := range Variations("a   \n") {
		if Keccak256(v) == declared {
			found = true
			break
		}
	}
	assert.True(t, found)
}
