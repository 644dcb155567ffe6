package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"surplusrouter/core/types"
	"surplusrouter/native/bank"
	nativecommon "surplusrouter/native/common"
	"surplusrouter/native/surplus"
	"surplusrouter/native/vault"
	"surplusrouter/storage"
)

var (
	dai     = ethcommon.HexToAddress("0xda1")
	usdc    = ethcommon.HexToAddress("0x05dc")
	sweeper = ethcommon.HexToAddress("0x5555")
	feeAcct = ethcommon.HexToAddress("0xfee0")
)

func writeAuditConfig(t *testing.T, dataDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := fmt.Sprintf(`DataDir = %q

[surplus]
MaxProtocolFeePercentage = "50%%"
ProtocolFeePercentage = "1%%"
FeeSweeper = %q
FeeAccount = %q
Tokens = [%q]
`, dataDir, sweeper.Hex(), feeAcct.Hex(), dai.Hex())
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func seedFees(t *testing.T, dataDir string) {
	t.Helper()
	db, err := storage.NewLevelDB(dataDir)
	require.NoError(t, err)
	defer db.Close()

	store, err := surplus.OpenStore(db, surplus.Config{
		MaxProtocolFeePercentage: uint256.NewInt(500_000_000_000_000_000),
		ProtocolFeePercentage:    uint256.NewInt(10_000_000_000_000_000),
		FeeSweeper:               sweeper,
	})
	require.NoError(t, err)

	vaultAddr := ethcommon.HexToAddress("0xfa01")
	pool := ethcommon.HexToAddress("0xb001")
	donor := ethcommon.HexToAddress("0x2222")
	ledger := bank.NewLedger()
	v := vault.NewEngine(vaultAddr, ledger)
	require.NoError(t, v.RegisterPool(pool, []ethcommon.Address{dai, usdc}, vault.LinearCurve{}, nil))
	require.NoError(t, ledger.Mint(dai, donor, uint256.NewInt(300)))
	require.NoError(t, ledger.Transfer(dai, donor, vaultAddr, uint256.NewInt(300)))

	gate := nativecommon.NewAllowList()
	gate.Grant(donor, surplus.ActionDonate)
	engine, err := surplus.NewEngine(store, v, gate, ledger, feeAcct)
	require.NoError(t, err)
	_, err = engine.Donate(context.Background(), donor, surplus.DonateParams{Pool: pool, DonationAmounts: types.AmountsFromUint64(300, 0)})
	require.NoError(t, err)
}

func TestRunReportsPersistedFees(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dataDir := filepath.Join(t.TempDir(), "data")
	seedFees(t, dataDir)

	var out bytes.Buffer
	require.NoError(t, run(writeAuditConfig(t, dataDir), []string{usdc.Hex(), dai.Hex()}, &out))

	var report auditReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Equal(t, "0.5", report.MaxProtocolFeePercentage)
	require.Equal(t, "0.01", report.ProtocolFeePercentage)
	require.Equal(t, sweeper.Hex(), report.FeeSweeper)
	require.Equal(t, feeAcct.Hex(), report.FeeAccount)
	require.Equal(t, []feeEntry{
		{Token: dai.Hex(), Amount: "3"},
		{Token: usdc.Hex(), Amount: "0"},
	}, report.CollectedFees)
}

func TestRunRejectsBadToken(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dataDir := filepath.Join(t.TempDir(), "data")
	var out bytes.Buffer
	require.Error(t, run(writeAuditConfig(t, dataDir), []string{"not-an-address"}, &out))
}
