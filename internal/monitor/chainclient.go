package monitor

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainClient is the subset of ethclient.Client the Chain Monitor depends
// on. A real *ethclient.Client satisfies this interface directly; tests
// supply a fake.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Endpoint pairs an RPC URL (for diagnostics) with the client dialed
// against it.
type Endpoint struct {
	URL    string
	Client ChainClient
}
