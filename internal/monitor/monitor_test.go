package monitor

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certen/sourceverify/internal/sourceaddr"
	"github.com/certen/sourceverify/internal/validation"
	"github.com/certen/sourceverify/internal/verifier"
)

func appendCBORTrailer(t *testing.T, code []byte, payload map[string]any) []byte {
	t.Helper()
	blob, err := cbor.Marshal(payload)
	require.NoError(t, err)

	length := len(blob)
	out := append([]byte{}, code...)
	out = append(out, blob...)
	out = append(out, byte(length>>8), byte(length))
	return out
}

const testChainID = 1337

type fakeChainClient struct {
	mu          sync.Mutex
	blockNumber uint64
	blocks      map[uint64]*types.Block
	code        map[common.Address][]byte
	probeErr    error
}

func (f *fakeChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	return f.blockNumber, f.probeErr
}

func (f *fakeChainClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return b, nil
}

func (f *fakeChainClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[account], nil
}

func signedCreationTx(t *testing.T, key []byte, nonce uint64) *types.Transaction {
	t.Helper()
	pk, err := crypto.ToECDSA(key)
	require.NoError(t, err)

	tx := types.NewTx(&types.LegacyTx{
		Nonce: nonce,
		To:    nil,
		Value: big.NewInt(0),
		Gas:   100000,
		Data:  []byte{0x60, 0x80},
	})

	signer := types.LatestSignerForChainID(big.NewInt(testChainID))
	signed, err := types.SignTx(tx, signer, pk)
	require.NoError(t, err)
	return signed
}

func testKey(t *testing.T) []byte {
	t.Helper()
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	return crypto.FromECDSA(pk)
}

func baseConfig(client ChainClient, resolver SourceResolver, v verifier.Verifier) MonitorConfig {
	return MonitorConfig{
		ChainID:              testChainID,
		Endpoints:            []Endpoint{{URL: "fake://primary", Client: client}},
		PaceFactor:           1.1,
		PauseUpperLimit:      30 * time.Second,
		PauseLowerLimit:      10 * time.Millisecond,
		InitialPause:         10 * time.Millisecond,
		BytecodeRetryPause:   5 * time.Millisecond,
		InitialBytecodeTries: 3,
		Verifier:             v,
		Resolver:             resolver,
	}
}

func TestNewChainMonitorRejectsWeakPaceFactor(t *testing.T) {
	_, err := NewChainMonitor(MonitorConfig{PaceFactor: 1.0})
	assert.ErrorIs(t, err, ErrPaceFactorTooSmall)
}

func TestInitializeFailsWhenNoEndpointHealthy(t *testing.T) {
	client := &fakeChainClient{probeErr: errProbeFailed}
	cfg := baseConfig(client, nil, nil)
	m, err := NewChainMonitor(cfg)
	require.NoError(t, err)

	err = m.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoHealthyEndpoint)
	assert.Equal(t, Stopped, m.State())
}

var errProbeFailed = probeError{}

type probeError struct{}

func (probeError) Error() string { return "probe failed" }

func TestPollOnceBacksOffOnEmptyBlock(t *testing.T) {
	client := &fakeChainClient{blockNumber: 10, blocks: map[uint64]*types.Block{}}
	cfg := baseConfig(client, nil, verifier.NewMemoryVerifier())
	m, err := NewChainMonitor(cfg)
	require.NoError(t, err)

	require.NoError(t, m.initialize(context.Background()))
	before := m.pause()
	m.pollOnce(context.Background())
	after := m.pause()

	assert.Greater(t, after, before)
	assert.Equal(t, uint64(10), m.CurrentBlock())
}

func TestPollOnceAdvancesAndDecreasesPauseOnNonEmptyBlock(t *testing.T) {
	header := &types.Header{Number: big.NewInt(10)}
	block := types.NewBlockWithHeader(header)

	client := &fakeChainClient{blockNumber: 10, blocks: map[uint64]*types.Block{10: block}}
	cfg := baseConfig(client, nil, verifier.NewMemoryVerifier())
	cfg.InitialPause = 100 * time.Millisecond
	m, err := NewChainMonitor(cfg)
	require.NoError(t, err)

	require.NoError(t, m.initialize(context.Background()))
	before := m.pause()
	m.pollOnce(context.Background())
	after := m.pause()

	assert.Less(t, after, before)
	assert.Equal(t, uint64(11), m.CurrentBlock())
}

type fakeResolver struct {
	mu        sync.Mutex
	delivered []*validation.CheckedContract
}

func (r *fakeResolver) Fetch(ctx context.Context, addr *sourceaddr.SourceAddress, onContract func(*validation.CheckedContract)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	contract := &validation.CheckedContract{Found: map[string]string{"A.sol": "contract A {}"}}
	r.delivered = append(r.delivered, contract)
	onContract(contract)
	return nil
}

func (r *fakeResolver) Stop() {}

func TestProcessBlockDiscoversContractCreationAndInjects(t *testing.T) {
	key := testKey(t)
	pk, err := crypto.ToECDSA(key)
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(pk.PublicKey)
	expectedAddr := crypto.CreateAddress(sender, 0)

	tx := signedCreationTx(t, key, 0)
	header := &types.Header{Number: big.NewInt(10)}
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: []*types.Transaction{tx}})

	trailer := appendCBORTrailer(t, []byte{0x60, 0x80}, map[string]any{"bzzr1": []byte{0x01}})

	client := &fakeChainClient{
		blockNumber: 10,
		blocks:      map[uint64]*types.Block{10: block},
		code:        map[common.Address][]byte{expectedAddr: trailer},
	}

	v := verifier.NewMemoryVerifier()
	resolver := &fakeResolver{}
	cfg := baseConfig(client, resolver, v)
	m, err := NewChainMonitor(cfg)
	require.NoError(t, err)

	require.NoError(t, m.initialize(context.Background()))
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()

	m.pollOnce(context.Background())
	m.wg.Wait()

	injected := v.Injected()
	require.Len(t, injected, 1)
	assert.Equal(t, []string{expectedAddr.Hex()}, injected[0].Addresses)
}

func TestStopPreventsFurtherPolling(t *testing.T) {
	client := &fakeChainClient{blockNumber: 1, blocks: map[uint64]*types.Block{}}
	cfg := baseConfig(client, nil, verifier.NewMemoryVerifier())
	m, err := NewChainMonitor(cfg)
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, Polling, m.State())

	m.Stop()
	assert.Equal(t, Stopped, m.State())
	assert.False(t, m.isRunning())
}
