// Package fetch implements the Source Fetcher (spec §4.6): given a
// SourceAddress, pull the metadata manifest and every referenced source
// from a decentralized storage network, then hand the assembled blobs to
// the Validation Engine.
package fetch

import (
	"context"

	"github.com/certen/sourceverify/internal/sourceaddr"
)

// SourceTransport is the injected collaborator that knows how to reach a
// decentralized storage network. It is an external dependency — HTTP
// gateways, IPFS nodes, Swarm nodes — and out of scope for this module;
// only the contract lives here.
type SourceTransport interface {
	// FetchManifest retrieves the metadata manifest bytes the address
	// points at.
	FetchManifest(ctx context.Context, addr *sourceaddr.SourceAddress) ([]byte, error)

	// FetchSource retrieves one referenced source, by URL (bzz-raw://,
	// ipfs://, dweb:/ipfs/) or by content digest.
	FetchSource(ctx context.Context, urlOrDigest string) ([]byte, error)
}
