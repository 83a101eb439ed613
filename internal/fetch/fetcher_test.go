package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certen/sourceverify/internal/hashkernel"
	"github.com/certen/sourceverify/internal/sourceaddr"
	"github.com/certen/sourceverify/internal/validation"
)

type fakeTransport struct {
	mu       sync.Mutex
	manifest []byte
	sources  map[string][]byte
	calls    int
}

func (f *fakeTransport) FetchManifest(_ context.Context, _ *sourceaddr.SourceAddress) ([]byte, error) {
	return f.manifest, nil
}

func (f *fakeTransport) FetchSource(_ context.Context, urlOrDigest string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	data, ok := f.sources[urlOrDigest]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func TestFetchAssemblesValidContract(t *testing.T) {
	digest := hashkernel.Keccak256("contract A {}").Hex()
	manifest := []byte(`{
		"language": "Solidity",
		"version": "1",
		"settings": {"compilationTarget": {"A.sol": "A"}},
		"output": {"abi": [{}], "userdoc": {"k":1}, "devdoc": {"k":1}},
		"sources": {"A.sol": {"keccak256": "` + digest + `", "urls": ["bzz-raw://abc"]}}
	}`)

	transport := &fakeTransport{manifest: manifest, sources: map[string][]byte{
		"bzz-raw://abc": []byte("contract A {}"),
	}}

	f := New(transport, nil, nil)

	var delivered *validation.CheckedContract
	err := f.Fetch(context.Background(), &sourceaddr.SourceAddress{Kind: sourceaddr.KindBzzr1, Digest: []byte{1}}, func(c *validation.CheckedContract) {
		delivered = c
	})
	require.NoError(t, err)
	require.NotNil(t, delivered)
	assert.True(t, delivered.Valid())
}

func TestFetchTreatsFailedSourceAsMissing(t *testing.T) {
	digest := hashkernel.Keccak256("contract A {}").Hex()
	manifest := []byte(`{
		"language": "Solidity",
		"version": "1",
		"settings": {"compilationTarget": {"A.sol": "A"}},
		"output": {"abi": [{}], "userdoc": {"k":1}, "devdoc": {"k":1}},
		"sources": {"A.sol": {"keccak256": "` + digest + `", "urls": ["bzz-raw://missing"]}}
	}`)

	transport := &fakeTransport{manifest: manifest, sources: map[string][]byte{}}
	f := New(transport, nil, nil)

	var delivered *validation.CheckedContract
	err := f.Fetch(context.Background(), &sourceaddr.SourceAddress{}, func(c *validation.CheckedContract) {
		delivered = c
	})
	require.NoError(t, err)
	require.NotNil(t, delivered)
	assert.False(t, delivered.Valid())
	assert.Len(t, delivered.Missing, 1)
}

func TestFetchStopPreventsDelivery(t *testing.T) {
	digest := hashkernel.Keccak256("contract A {}").Hex()
	manifest := []byte(`{
		"language": "Solidity",
		"version": "1",
		"settings": {"compilationTarget": {"A.sol": "A"}},
		"output": {"abi": [{}], "userdoc": {"k":1}, "devdoc": {"k":1}},
		"sources": {"A.sol": {"content": "contract A {}", "keccak256": "` + digest + `"}}
	}`)

	transport := &fakeTransport{manifest: manifest, sources: map[string][]byte{}}
	f := New(transport, nil, nil)
	f.Stop()

	called := false
	err := f.Fetch(context.Background(), &sourceaddr.SourceAddress{}, func(c *validation.CheckedContract) {
		called = true
	})
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, called)
}
