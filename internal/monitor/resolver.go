package monitor

import (
	"context"

	"github.com/certen/sourceverify/internal/sourceaddr"
	"github.com/certen/sourceverify/internal/validation"
)

// SourceResolver is the subset of *fetch.Fetcher the Chain Monitor
// depends on, narrowed to an interface so tests can substitute a fake
// without standing up a real SourceTransport.
type SourceResolver interface {
	Fetch(ctx context.Context, addr *sourceaddr.SourceAddress, onContract func(*validation.CheckedContract)) error
	Stop()
}
