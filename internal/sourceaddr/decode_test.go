package sourceaddr

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendTrailer(t *testing.T, code []byte, payload map[string]any) []byte {
	t.Helper()
	blob, err := cbor.Marshal(payload)
	require.NoError(t, err)

	length := len(blob)
	out := append([]byte{}, code...)
	out = append(out, blob...)
	out = append(out, byte(length>>8), byte(length))
	return out
}

func TestDecodeIPFS(t *testing.T) {
	code := appendTrailer(t, []byte{0x60, 0x80}, map[string]any{
		"ipfs":    []byte{0x01, 0x02, 0x03},
		"solc":    []byte{0x00, 0x08, 0x1e},
	})

	addr, err := Decode(code)
	require.NoError(t, err)
	assert.Equal(t, KindIPFS, addr.Kind)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, addr.Digest)
}

func TestDecodeBzzr1(t *testing.T) {
	code := appendTrailer(t, []byte{0x60, 0x80}, map[string]any{
		"bzzr1": []byte{0xaa, 0xbb},
	})

	addr, err := Decode(code)
	require.NoError(t, err)
	assert.Equal(t, KindBzzr1, addr.Kind)
}

func TestDecodeNoPointer(t *testing.T) {
	_, err := Decode([]byte{0x60, 0x80, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrNoMetadataPointer)
}

func TestDecodeTooShort(t *testing.T) {
	_, err := Decode([]byte{0x01})
	assert.ErrorIs(t, err, ErrNoMetadataPointer)
}

func TestDecodeUnrecognizedKeys(t *testing.T) {
	code := appendTrailer(t, []byte{0x60, 0x80}, map[string]any{
		"unknown": []byte{0x01},
	})
	_, err := Decode(code)
	assert.ErrorIs(t, err, ErrNoMetadataPointer)
}
