package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/certen/sourceverify/internal/applog"
	"github.com/certen/sourceverify/internal/config"
	"github.com/certen/sourceverify/internal/fetch"
	"github.com/certen/sourceverify/internal/metrics"
	"github.com/certen/sourceverify/internal/monitor"
	"github.com/certen/sourceverify/internal/validation"
	"github.com/certen/sourceverify/internal/verifier"
)

func main() {
	var (
		checkPaths = flag.String("check", "", "comma-separated files or directories to validate against their metadata manifests")
		watch      = flag.Bool("watch", false, "start the chain monitor for every chain configured via RPC_URL_<id> or CHAINS_CONFIG_FILE")
		showHelp   = flag.Bool("help", false, "show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sourceverify: load configuration:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "sourceverify:", err)
		os.Exit(1)
	}

	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logger := applog.New(applog.Config{Level: level, Format: "json", Output: os.Stdout})
	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	if *checkPaths != "" {
		runValidation(*checkPaths, reg, logger)
	}

	if *watch {
		runMonitor(cfg, reg, logger)
	}

	if *checkPaths == "" && !*watch {
		printHelp()
	}
}

func printHelp() {
	fmt.Println("sourceverify - Solidity metadata validator and chain monitor")
	flag.PrintDefaults()
}

func runValidation(pathList string, reg *metrics.Registry, logger *applog.Logger) {
	paths := strings.Split(pathList, ",")
	for i := range paths {
		paths[i] = strings.TrimSpace(paths[i])
	}

	var unreadable []string
	contracts, err := validation.CheckPaths(paths, &unreadable, reg, logger.WithComponent("validation"))
	if err != nil {
		logger.Error("validation failed", applog.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	for _, path := range unreadable {
		logger.Warn("path unreadable", applog.Field{Key: "path", Value: path})
	}
	for _, c := range contracts {
		logger.Info("checked contract",
			applog.Field{Key: "target", Value: c.Manifest.CompilationTargetPath()},
			applog.Field{Key: "valid", Value: c.Valid()},
			applog.Field{Key: "found", Value: len(c.Found)},
			applog.Field{Key: "missing", Value: len(c.Missing)},
			applog.Field{Key: "invalid", Value: len(c.Invalid)},
		)
	}
}

func runMonitor(cfg *config.Config, reg *metrics.Registry, logger *applog.Logger) {
	if len(cfg.Chains) == 0 {
		logger.Warn("no chains configured; set RPC_URL_<id> or CHAINS_CONFIG_FILE")
		return
	}

	v := verifier.NewMemoryVerifier()
	resolver := fetch.New(fetch.NewGatewayTransport(), reg, logger.WithComponent("fetch"))

	var monitors []*monitor.ChainMonitor
	for _, chain := range cfg.Chains {
		if !chain.Start {
			continue
		}

		client, err := ethclient.Dial(chain.RPCURL)
		if err != nil {
			logger.Error("dial RPC endpoint failed",
				applog.Field{Key: "chain", Value: chain.ChainID},
				applog.Field{Key: "error", Value: err.Error()})
			continue
		}

		m, err := monitor.NewChainMonitor(monitor.MonitorConfig{
			ChainID:              chain.ChainID,
			Endpoints:            []monitor.Endpoint{{URL: chain.RPCURL, Client: client}},
			StartBlock:           chain.StartBlock,
			PaceFactor:           cfg.BlockPauseFactor,
			PauseUpperLimit:      cfg.BlockPauseUpperLimit,
			PauseLowerLimit:      cfg.BlockPauseLowerLimit,
			InitialPause:         cfg.GetBlockPause,
			ProbeTimeout:         cfg.ProbeTimeout,
			RPCCallTimeout:       cfg.RPCCallTimeout,
			BytecodeRetryPause:   cfg.GetBytecodeRetryPause,
			InitialBytecodeTries: cfg.InitialGetBytecodeTries,
			Verifier:             v,
			Resolver:             resolver,
			Metrics:              reg,
			Logger:               logger.WithComponent("monitor"),
		})
		if err != nil {
			logger.Error("construct chain monitor failed",
				applog.Field{Key: "chain", Value: chain.ChainID},
				applog.Field{Key: "error", Value: err.Error()})
			continue
		}
		monitors = append(monitors, m)
	}

	if len(monitors) == 0 {
		logger.Warn("no chain monitors could be constructed")
		return
	}

	supervisor := monitor.NewSupervisor(monitors, resolver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Start(ctx); err != nil {
		logger.Error("supervisor start reported errors", applog.Field{Key: "error", Value: err.Error()})
	}

	<-ctx.Done()
	logger.Info("shutting down")
	supervisor.Stop()
}
