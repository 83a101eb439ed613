// Package sourceaddr decodes the metadata pointer trailer embedded in
// deployed EVM bytecode into a storage-network SourceAddress (spec §4.5).
package sourceaddr

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrNoMetadataPointer is returned when the bytecode carries no decodable
// CBOR trailer, or the trailer carries none of the recognized storage
// keys.
var ErrNoMetadataPointer = errors.New("sourceaddr: no metadata pointer in bytecode")

// Kind identifies the decentralized storage network a SourceAddress
// points into.
type Kind string

const (
	KindIPFS  Kind = "ipfs"
	KindBzzr0 Kind = "bzzr0"
	KindBzzr1 Kind = "bzzr1"
)

// SourceAddress is a decoded reference extracted from a deployed
// contract's bytecode trailer.
type SourceAddress struct {
	Kind   Kind
	Digest []byte
}

// trailer mirrors the CBOR map the Solidity compiler appends to deployed
// bytecode. Keys without a matching field (such as "solc") are ignored
// when decoding.
type trailer struct {
	IPFS  []byte `cbor:"ipfs,omitempty"`
	Bzzr0 []byte `cbor:"bzzr0,omitempty"`
	Bzzr1 []byte `cbor:"bzzr1,omitempty"`
}

// Decode reads the trailing metadata structure of deployed bytecode: the
// last two bytes encode the big-endian length of the preceding CBOR blob.
// The decoded map is inspected for a recognized storage key, in the
// priority order ipfs, bzzr1, bzzr0.
func Decode(deployedBytecode []byte) (*SourceAddress, error) {
	if len(deployedBytecode) < 2 {
		return nil, fmt.Errorf("%w: bytecode too short", ErrNoMetadataPointer)
	}

	n := len(deployedBytecode)
	cborLen := int(deployedBytecode[n-2])<<8 | int(deployedBytecode[n-1])
	if cborLen <= 0 || cborLen > n-2 {
		return nil, fmt.Errorf("%w: invalid trailer length", ErrNoMetadataPointer)
	}

	cborBlob := deployedBytecode[n-2-cborLen : n-2]

	var t trailer
	if err := cbor.Unmarshal(cborBlob, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMetadataPointer, err)
	}

	switch {
	case len(t.IPFS) > 0:
		return &SourceAddress{Kind: KindIPFS, Digest: t.IPFS}, nil
	case len(t.Bzzr1) > 0:
		return &SourceAddress{Kind: KindBzzr1, Digest: t.Bzzr1}, nil
	case len(t.Bzzr0) > 0:
		return &SourceAddress{Kind: KindBzzr0, Digest: t.Bzzr0}, nil
	default:
		return nil, fmt.Errorf("%w: no recognized storage key", ErrNoMetadataPointer)
	}
}
