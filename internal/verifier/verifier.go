// Package verifier defines the downstream verification service contract
// (spec §6). The service itself — bytecode comparison and repository
// write-out — is an external collaborator and out of scope for this
// module; only the interface the Chain Monitor depends on lives here,
// plus an in-memory fake used by tests.
package verifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/certen/sourceverify/internal/validation"
)

// VerifiedMatch is one previously-verified record for a deployed address.
type VerifiedMatch struct {
	Address string
	ChainID int64
}

// InjectRequest carries a checked contract and its deployment context to
// the downstream verifier.
type InjectRequest struct {
	RequestID    uuid.UUID
	Contract     *validation.CheckedContract
	Bytecode     []byte
	CreationData []byte
	ChainID      int64
	Addresses    []string
}

// Verifier is the downstream verification service contract. Injection is
// fire-and-forget from the Chain Monitor's perspective (spec §4.7, §9).
type Verifier interface {
	FindByAddress(ctx context.Context, address string, chainID int64) ([]VerifiedMatch, error)
	Inject(ctx context.Context, req InjectRequest) error
}

// MemoryVerifier is an in-memory Verifier test double, grounded in the
// teacher's MemoryKV pattern (main.go) of a simple mutex-guarded map
// standing in for a real backing store.
type MemoryVerifier struct {
	mu       sync.RWMutex
	verified map[string][]VerifiedMatch
	injected []InjectRequest
}

// NewMemoryVerifier constructs an empty MemoryVerifier.
func NewMemoryVerifier() *MemoryVerifier {
	return &MemoryVerifier{verified: make(map[string][]VerifiedMatch)}
}

func key(address string, chainID int64) string {
	return fmt.Sprintf("%d:%s", chainID, address)
}

// FindByAddress returns any matches previously recorded via Inject.
func (m *MemoryVerifier) FindByAddress(_ context.Context, address string, chainID int64) ([]VerifiedMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.verified[key(address, chainID)], nil
}

// Inject records the request and marks every target address as verified.
func (m *MemoryVerifier) Inject(_ context.Context, req InjectRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injected = append(m.injected, req)
	for _, addr := range req.Addresses {
		m.verified[key(addr, req.ChainID)] = append(m.verified[key(addr, req.ChainID)], VerifiedMatch{Address: addr, ChainID: req.ChainID})
	}
	return nil
}

// Injected returns every request recorded so far, for test assertions.
func (m *MemoryVerifier) Injected() []InjectRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]InjectRequest, len(m.injected))
	copy(out, m.injected)
	return out
}
