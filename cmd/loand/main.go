package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loanchain/config"
	"loanchain/core"
	"loanchain/observability/logging"
	"loanchain/rpc"
	"loanchain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LOANCHAIN_ENV"))
	logger := logging.Setup("loand", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	admin, err := cfg.Admin()
	if err != nil {
		logger.Error("Invalid admin address", slog.Any("error", err))
		os.Exit(1)
	}
	treasury, err := cfg.FeeTreasury()
	if err != nil {
		logger.Error("Invalid fee treasury address", slog.Any("error", err))
		os.Exit(1)
	}

	node := core.NewNode(db)
	node.SetLogger(logger)
	if err := node.Bootstrap(admin.Raw(), treasury.Raw()); err != nil {
		logger.Error("Failed to bootstrap protocol state", slog.Any("error", err))
		os.Exit(1)
	}
	if err := applyFeeDefaults(node, cfg, admin.Raw()); err != nil {
		logger.Error("Failed to apply fee configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("node initialized",
		slog.String("network", cfg.NetworkName),
		slog.String("vault", node.VaultAddress().String()),
		slog.String("loanCore", node.LoanCoreAddress().String()),
	)

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		go serveMetrics(logger, addr)
	}

	server := rpc.NewServer(node)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// applyFeeDefaults seeds the fee parameters from the config file when they
// have never been set. A zero stored value with a non-zero configured one is
// taken as first start; explicit admin changes afterwards always win.
func applyFeeDefaults(node *core.Node, cfg *config.Config, admin [20]byte) error {
	params, err := node.LoanParams()
	if err != nil {
		return err
	}
	if params.ProcessingFeeBps == 0 && cfg.ProcessingFeeBps != 0 {
		if err := node.SetProcessingFee(admin, cfg.ProcessingFeeBps); err != nil {
			return err
		}
	}
	if params.InterestFeeBps == 0 && cfg.InterestFeeBps != 0 {
		if err := node.SetInterestFee(admin, cfg.InterestFeeBps); err != nil {
			return err
		}
	}
	return nil
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics server listening", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil {
		logger.Error("metrics server exited", slog.Any("error", err))
	}
}
