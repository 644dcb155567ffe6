package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"surplusrouter/config"
	"surplusrouter/native/fees"
	"surplusrouter/native/surplus"
	"surplusrouter/observability/logging"
	"surplusrouter/storage"
)

type feeEntry struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type auditReport struct {
	DataDir                  string     `json:"dataDir"`
	MaxProtocolFeePercentage string     `json:"maxProtocolFeePercentage"`
	ProtocolFeePercentage    string     `json:"protocolFeePercentage"`
	FeeSweeper               string     `json:"feeSweeper"`
	FeeAccount               string     `json:"feeAccount"`
	CollectedFees            []feeEntry `json:"collectedFees"`
}

type tokenList []string

func (l *tokenList) String() string { return strings.Join(*l, ",") }

func (l *tokenList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func main() {
	configPath := flag.String("config", "./config.toml", "Path to surplus configuration file")
	var tokens tokenList
	flag.Var(&tokens, "token", "Token address to report collected fees for (repeatable)")
	flag.Parse()

	if err := run(*configPath, tokens, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "surplus-audit: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, extraTokens []string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ValidateConfig(*cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := logging.Setup("surplus-audit", cfg.Log.Env, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	params, err := cfg.Surplus.Parameters()
	if err != nil {
		return err
	}
	for _, raw := range extraTokens {
		if !ethcommon.IsHexAddress(strings.TrimSpace(raw)) {
			return fmt.Errorf("invalid token %q", raw)
		}
		params.Tokens = append(params.Tokens, ethcommon.HexToAddress(strings.TrimSpace(raw)))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open data dir: %w", err)
	}
	defer db.Close()

	store, err := surplus.OpenStore(db, surplus.Config{
		MaxProtocolFeePercentage: params.MaxProtocolFeePercentage,
		ProtocolFeePercentage:    params.ProtocolFeePercentage,
		FeeSweeper:               params.FeeSweeper,
	})
	if err != nil {
		return fmt.Errorf("open surplus store: %w", err)
	}

	current := store.Config()
	report := auditReport{
		DataDir:                  cfg.DataDir,
		MaxProtocolFeePercentage: fees.FormatPercentage(current.MaxProtocolFeePercentage),
		ProtocolFeePercentage:    fees.FormatPercentage(current.ProtocolFeePercentage),
		FeeSweeper:               current.FeeSweeper.Hex(),
		FeeAccount:               params.FeeAccount.Hex(),
		CollectedFees:            make([]feeEntry, 0, len(params.Tokens)),
	}
	seen := make(map[ethcommon.Address]struct{}, len(params.Tokens))
	for _, token := range params.Tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		amount, err := store.CollectedFees(token)
		if err != nil {
			return fmt.Errorf("read collected fees for %s: %w", token.Hex(), err)
		}
		report.CollectedFees = append(report.CollectedFees, feeEntry{Token: token.Hex(), Amount: amount.Dec()})
	}
	logger.Info("surplus: audit report built", "component", "surplus-audit", "tokens", len(report.CollectedFees))

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = fmt.Fprintln(out, string(output))
	return err
}
