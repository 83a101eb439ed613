package archive

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExpandPassesThroughNonArchives(t *testing.T) {
	blobs := []Blob{{Path: "a.sol", Data: []byte("contract A {}")}}
	out, err := Expand(blobs)
	require.NoError(t, err)
	assert.Equal(t, blobs, out)
}

func TestExpandRoundTrip(t *testing.T) {
	data := buildZip(t, map[string]string{
		"metadata.json": `{"language":"Solidity"}`,
		"src/A.sol":     "contract A {}",
	})

	out, err := Expand([]Blob{{Path: "bundle.zip", Data: data}})
	require.NoError(t, err)
	require.Len(t, out, 2)

	byPath := map[string]string{}
	for _, b := range out {
		byPath[b.Path] = string(b.Data)
	}
	assert.Equal(t, `{"language":"Solidity"}`, byPath["metadata.json"])
	assert.Equal(t, "contract A {}", byPath["src/A.sol"])
}

func TestExpandDoesNotRecurse(t *testing.T) {
	inner := buildZip(t, map[string]string{"A.sol": "contract A {}"})
	outer := buildZip(t, map[string]string{"inner.zip": string(inner)})

	out, err := Expand([]Blob{{Path: "outer.zip", Data: outer}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "inner.zip", out[0].Path)
	assert.True(t, isZip(out[0].Data), "nested archive is left unexpanded")
}

func TestExpandRejectsCorruptArchive(t *testing.T) {
	corrupt := append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("garbage")...)
	_, err := Expand([]Blob{{Path: "bad.zip", Data: corrupt}})
	assert.ErrorIs(t, err, ErrUnreadable)
}
