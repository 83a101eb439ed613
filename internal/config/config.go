// Package config loads Chain Monitor configuration from environment
// variables, following the teacher's getEnv/getEnvInt pattern (spec §6).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ChainDescriptor names one EVM chain the Monitor Supervisor should poll.
type ChainDescriptor struct {
	ChainID int64
	RPCURL  string
	Start   bool

	// StartBlock overrides the block the Chain Monitor begins polling
	// from, read from MONITOR_START_<chainId>. nil defers to the
	// Initializing probe result (spec §4.7, §6).
	StartBlock *uint64
}

// Config holds every tunable the Chain Monitor and Validation Engine
// read at startup.
type Config struct {
	// Chains lists every chain the supervisor may poll: one per
	// RPC_URL_<chainId> variable that is set, followed by the entries of
	// CHAINS_CONFIG_FILE.
	Chains []ChainDescriptor

	// Pacing controls the Chain Monitor's adaptive backpressure.
	BlockPauseFactor     float64
	BlockPauseUpperLimit time.Duration
	BlockPauseLowerLimit time.Duration
	GetBlockPause        time.Duration

	// ProbeTimeout bounds the Initializing-step RPC probe (spec §4.7,
	// §6: WEB3_TIMEOUT).
	ProbeTimeout time.Duration

	// RPCCallTimeout bounds each ongoing block/bytecode RPC call once
	// the Chain Monitor is Polling. The spec names no variable for this;
	// it gets its own so WEB3_TIMEOUT keeps its documented meaning.
	RPCCallTimeout time.Duration

	// Bytecode retry budget for newly observed contract-creation
	// addresses whose code has not yet propagated.
	GetBytecodeRetryPause   time.Duration
	InitialGetBytecodeTries int

	LogLevel string
}

// envChainIDs is the set of RPC_URL_<id> / MONITOR_START_<id> suffixes
// this process recognizes. Operators add a chain by setting RPC_URL_<id>;
// MONITOR_START_<id> optionally overrides its starting block and is
// ignored when RPC_URL_<id> is unset.
var envChainIDs = []int64{1, 5, 11155111, 137, 80001, 42161, 10}

// Load reads configuration from environment variables. Every field has a
// default, and unset or unparseable variables fall back to it, matching
// the teacher's approach of resolving every variable through
// getEnv/getEnvInt helpers. Load returns an error only when
// CHAINS_CONFIG_FILE cannot be read or parsed, or when the lower pause
// limit exceeds the upper one.
func Load() (*Config, error) {
	cfg := &Config{
		BlockPauseFactor:        getEnvFloat("BLOCK_PAUSE_FACTOR", 1.1),
		BlockPauseUpperLimit:    getEnvDuration("BLOCK_PAUSE_UPPER_LIMIT", 30*time.Second),
		BlockPauseLowerLimit:    getEnvDuration("BLOCK_PAUSE_LOWER_LIMIT", 500*time.Millisecond),
		GetBlockPause:           getEnvDuration("GET_BLOCK_PAUSE", 10*time.Second),
		ProbeTimeout:            getEnvDuration("WEB3_TIMEOUT", 3*time.Second),
		RPCCallTimeout:          getEnvDuration("RPC_CALL_TIMEOUT", 10*time.Second),
		GetBytecodeRetryPause:   getEnvDuration("GET_BYTECODE_RETRY_PAUSE", 5*time.Second),
		InitialGetBytecodeTries: getEnvInt("INITIAL_GET_BYTECODE_TRIES", 3),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}

	for _, id := range envChainIDs {
		rpcURL := getEnv(fmt.Sprintf("RPC_URL_%d", id), "")
		if rpcURL == "" {
			continue
		}
		startBlock := getEnvUint64Ptr(fmt.Sprintf("MONITOR_START_%d", id))
		cfg.Chains = append(cfg.Chains, ChainDescriptor{ChainID: id, RPCURL: rpcURL, Start: true, StartBlock: startBlock})
	}

	if path := getEnv("CHAINS_CONFIG_FILE", ""); path != "" {
		fileChains, err := loadChainsFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		cfg.Chains = append(cfg.Chains, fileChains...)
	}

	if cfg.BlockPauseLowerLimit > cfg.BlockPauseUpperLimit {
		return nil, fmt.Errorf("config: BLOCK_PAUSE_LOWER_LIMIT (%s) exceeds BLOCK_PAUSE_UPPER_LIMIT (%s)",
			cfg.BlockPauseLowerLimit, cfg.BlockPauseUpperLimit)
	}

	return cfg, nil
}

// Validate checks that every chain configured to start carries an RPC
// endpoint to poll.
func (c *Config) Validate() error {
	var problems []string
	for _, chain := range c.Chains {
		if chain.Start && chain.RPCURL == "" {
			problems = append(problems, fmt.Sprintf("chain %d is set to start but RPC_URL_%d is not set", chain.ChainID, chain.ChainID))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// chainsFile is the YAML document shape accepted by CHAINS_CONFIG_FILE,
// an alternative to the MONITOR_START_<id>/RPC_URL_<id> variable pairs
// for operators managing many chains declaratively, following the
// teacher's yaml-tagged settings-struct convention (pkg/config/anchor_config.go).
type chainsFile struct {
	Chains []struct {
		ChainID int64  `yaml:"chain_id"`
		RPCURL  string `yaml:"rpc_url"`
		Start   bool   `yaml:"start"`
	} `yaml:"chains"`
}

func loadChainsFile(path string) ([]ChainDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chains file %q: %w", path, err)
	}

	var doc chainsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse chains file %q: %w", path, err)
	}

	out := make([]ChainDescriptor, len(doc.Chains))
	for i, c := range doc.Chains {
		out[i] = ChainDescriptor{ChainID: c.ChainID, RPCURL: c.RPCURL, Start: c.Start}
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvUint64Ptr reads key as an unsigned integer block number. It
// returns nil (defer to the Initializing probe result) when the
// variable is unset or unparseable.
func getEnvUint64Ptr(key string) *uint64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
