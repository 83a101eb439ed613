// Package monitor implements the Chain Monitor and Monitor Supervisor
// (spec §4.7, §4.8): a per-chain polling state machine that discovers
// contract-creation transactions, resolves their deployed source, and
// injects the verified result downstream.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/certen/sourceverify/internal/applog"
	"github.com/certen/sourceverify/internal/metrics"
	"github.com/certen/sourceverify/internal/sourceaddr"
	"github.com/certen/sourceverify/internal/validation"
	"github.com/certen/sourceverify/internal/verifier"
)

// ErrNoHealthyEndpoint is returned by Start when every configured RPC
// endpoint fails its block-number probe during Initializing.
var ErrNoHealthyEndpoint = errors.New("monitor: no healthy RPC endpoint")

// ErrPaceFactorTooSmall guards the adaptive-pacing invariant (spec §5):
// the factor must be strictly greater than 1.
var ErrPaceFactorTooSmall = errors.New("monitor: pace factor must be greater than 1")

// MonitorConfig configures one ChainMonitor.
type MonitorConfig struct {
	ChainID    int64
	Endpoints  []Endpoint
	StartBlock *uint64 // env override; nil defers to the probe result

	PaceFactor      float64
	PauseUpperLimit time.Duration
	PauseLowerLimit time.Duration
	InitialPause    time.Duration
	ProbeTimeout    time.Duration // bounds the Initializing-step probe, default 3s (spec §4.7, §6)
	RPCCallTimeout  time.Duration // bounds each ongoing block/bytecode RPC call while Polling

	BytecodeRetryPause   time.Duration
	InitialBytecodeTries int

	Verifier verifier.Verifier
	Resolver SourceResolver
	Metrics  *metrics.Registry
	Logger   *applog.Logger
}

// ChainMonitor drives one chain's polling state machine.
type ChainMonitor struct {
	cfg MonitorConfig

	mu            sync.Mutex
	state         State
	currentBlock  uint64
	getBlockPause time.Duration
	client        ChainClient
	endpointURL   string
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	signer types.Signer
}

// NewChainMonitor constructs a ChainMonitor in the Initializing state.
func NewChainMonitor(cfg MonitorConfig) (*ChainMonitor, error) {
	if cfg.PaceFactor <= 1 {
		return nil, ErrPaceFactorTooSmall
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	if cfg.InitialBytecodeTries <= 0 {
		cfg.InitialBytecodeTries = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.Noop()
	}
	if cfg.InitialPause <= 0 {
		cfg.InitialPause = cfg.PauseLowerLimit
	}
	if cfg.RPCCallTimeout <= 0 {
		cfg.RPCCallTimeout = 10 * time.Second
	}

	return &ChainMonitor{
		cfg:           cfg,
		state:         Initializing,
		getBlockPause: cfg.InitialPause,
		stopCh:        make(chan struct{}),
		signer:        types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
	}, nil
}

// State returns the monitor's current lifecycle state.
func (m *ChainMonitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentBlock returns the block the monitor is about to process or just
// finished processing.
func (m *ChainMonitor) CurrentBlock() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBlock
}

// Start runs the Initializing step synchronously (probing every endpoint
// in order) then launches the poll loop in the background. It returns
// ErrNoHealthyEndpoint if every endpoint fails its probe.
func (m *ChainMonitor) Start(ctx context.Context) error {
	if err := m.initialize(ctx); err != nil {
		m.mu.Lock()
		m.state = Stopped
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.running = true
	m.state = Polling
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop(ctx)

	return nil
}

func (m *ChainMonitor) initialize(ctx context.Context) error {
	for _, ep := range m.cfg.Endpoints {
		probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		blockNumber, err := ep.Client.BlockNumber(probeCtx)
		cancel()
		if err != nil {
			m.cfg.Logger.Warn("endpoint probe failed", applog.Field{Key: "chain", Value: m.cfg.ChainID}, applog.Field{Key: "url", Value: ep.URL})
			continue
		}

		m.mu.Lock()
		m.client = ep.Client
		m.endpointURL = ep.URL
		if m.cfg.StartBlock != nil {
			m.currentBlock = *m.cfg.StartBlock
		} else {
			m.currentBlock = blockNumber
		}
		m.mu.Unlock()
		return nil
	}

	return fmt.Errorf("%w: chain %d", ErrNoHealthyEndpoint, m.cfg.ChainID)
}

// Stop transitions to Stopping: running is flipped false so that no
// future timer reschedules, then waits for the in-flight poll iteration
// to return (spec §4.7, §5).
func (m *ChainMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.state = Stopping
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()

	m.mu.Lock()
	m.state = Stopped
	m.mu.Unlock()
}

func (m *ChainMonitor) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *ChainMonitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	for m.isRunning() {
		m.pollOnce(ctx)

		pause := m.pause()
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(pause):
		}
	}
}

func (m *ChainMonitor) pause() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBlockPause
}

// withRPCCallTimeout bounds a single ongoing RPC call by RPCCallTimeout
// without shortening the caller's own deadline, if any.
func (m *ChainMonitor) withRPCCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.RPCCallTimeout)
}

// pollOnce fetches the current block and either advances (present) or
// backs off (absent), mirroring the teacher's pollEvents single-shot
// query step.
func (m *ChainMonitor) pollOnce(ctx context.Context) {
	m.mu.Lock()
	client := m.client
	chainID := m.cfg.ChainID
	blockNum := m.currentBlock
	m.mu.Unlock()

	callCtx, cancel := m.withRPCCallTimeout(ctx)
	defer cancel()

	block, err := client.BlockByNumber(callCtx, new(big.Int).SetUint64(blockNum))
	if errors.Is(err, ethereum.NotFound) || (err == nil && block == nil) {
		m.adjustPause(true)
		return
	}
	if err != nil {
		m.cfg.Logger.Warn("block fetch failed", applog.Field{Key: "chain", Value: chainID}, applog.Field{Key: "block", Value: blockNum})
		return
	}

	m.adjustPause(false)
	m.processBlock(ctx, block)

	m.mu.Lock()
	m.currentBlock++
	m.mu.Unlock()

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.CurrentBlock.WithLabelValues(fmt.Sprint(chainID)).Set(float64(blockNum))
	}
}

// adjustPause implements the adaptive backpressure rule: multiply by
// the pace factor on empty blocks, divide on nonempty ones, clamped to
// [lower, upper] (spec §5).
func (m *ChainMonitor) adjustPause(empty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if empty {
		m.getBlockPause = time.Duration(float64(m.getBlockPause) * m.cfg.PaceFactor)
	} else {
		m.getBlockPause = time.Duration(float64(m.getBlockPause) / m.cfg.PaceFactor)
	}

	if m.getBlockPause > m.cfg.PauseUpperLimit {
		m.getBlockPause = m.cfg.PauseUpperLimit
	}
	if m.getBlockPause < m.cfg.PauseLowerLimit {
		m.getBlockPause = m.cfg.PauseLowerLimit
	}

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.GetBlockPause.WithLabelValues(fmt.Sprint(m.cfg.ChainID)).Set(m.getBlockPause.Seconds())
	}
}

// processBlock scans every transaction in block for contract creation
// (an absent "to" field) and launches the bytecode pipeline for each,
// in transaction order (spec §5: "contract creations within a block are
// processed in transaction order").
func (m *ChainMonitor) processBlock(ctx context.Context, block *types.Block) {
	for _, tx := range block.Transactions() {
		if tx.To() != nil {
			continue
		}

		sender, err := types.Sender(m.signer, tx)
		if err != nil {
			m.cfg.Logger.Warn("could not recover sender", applog.Field{Key: "tx", Value: tx.Hash().Hex()})
			continue
		}

		address := crypto.CreateAddress(sender, tx.Nonce())

		if m.cfg.Metrics != nil {
			m.cfg.Metrics.ContractsFound.WithLabelValues(fmt.Sprint(m.cfg.ChainID)).Inc()
		}

		alreadyVerified, err := m.cfg.Verifier.FindByAddress(ctx, address.Hex(), m.cfg.ChainID)
		if err == nil && len(alreadyVerified) > 0 {
			if m.cfg.Metrics != nil {
				m.cfg.Metrics.ContractsSkipped.WithLabelValues(fmt.Sprint(m.cfg.ChainID), "already_verified").Inc()
			}
			continue
		}

		m.wg.Add(1)
		go func(addr common.Address, creationData []byte) {
			defer m.wg.Done()
			m.processBytecode(ctx, creationData, addr, m.cfg.InitialBytecodeTries)
		}(address, tx.Data())
	}
}

// processBytecode fetches deployed code at address. Empty code means the
// deployment has not yet finalized: retry after BytecodeRetryPause with
// one fewer try, giving up silently when exhausted (spec §4.7).
func (m *ChainMonitor) processBytecode(ctx context.Context, creationData []byte, address common.Address, triesLeft int) {
	if !m.isRunning() {
		return
	}

	callCtx, cancel := m.withRPCCallTimeout(ctx)
	code, err := m.client.CodeAt(callCtx, address, nil)
	cancel()
	if err != nil {
		m.cfg.Logger.Warn("bytecode fetch failed", applog.Field{Key: "address", Value: address.Hex()})
		return
	}

	if len(code) == 0 {
		if triesLeft <= 1 {
			return
		}
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.BytecodeRetryPause):
		}
		m.processBytecode(ctx, creationData, address, triesLeft-1)
		return
	}

	addr, err := sourceaddr.Decode(code)
	if err != nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.cfg.Resolver.Fetch(ctx, addr, func(contract *validation.CheckedContract) {
			m.inject(ctx, contract, code, creationData, address)
		})
		if err != nil {
			m.cfg.Logger.Warn("source fetch failed", applog.Field{Key: "address", Value: address.Hex()})
		}
	}()
}

// inject hands the checked contract to the downstream verifier.
// Injection is fire-and-forget from the monitor's perspective (spec
// §4.7).
func (m *ChainMonitor) inject(ctx context.Context, contract *validation.CheckedContract, code, creationData []byte, address common.Address) {
	if !m.isRunning() {
		return
	}

	err := m.cfg.Verifier.Inject(ctx, verifier.InjectRequest{
		RequestID:    uuid.New(),
		Contract:     contract,
		Bytecode:     code,
		CreationData: creationData,
		ChainID:      m.cfg.ChainID,
		Addresses:    []string{address.Hex()},
	})

	if m.cfg.Metrics != nil {
		if err != nil {
			m.cfg.Metrics.ContractsSkipped.WithLabelValues(fmt.Sprint(m.cfg.ChainID), "inject_failed").Inc()
		} else {
			m.cfg.Metrics.ContractsInjected.WithLabelValues(fmt.Sprint(m.cfg.ChainID)).Inc()
		}
	}

	if err != nil {
		m.cfg.Logger.Warn("injection failed", applog.Field{Key: "address", Value: address.Hex()})
		return
	}
	m.cfg.Logger.Info("injected checked contract", applog.Field{Key: "address", Value: address.Hex()})
}
