package config

import (
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"surplusrouter/native/fees"
)

// SurplusParams are the parsed runtime values of the [surplus] table.
type SurplusParams struct {
	MaxProtocolFeePercentage *uint256.Int
	ProtocolFeePercentage    *uint256.Int
	FeeSweeper               ethcommon.Address
	FeeAccount               ethcommon.Address
	Tokens                   []ethcommon.Address
}

// Parameters parses the surplus settings into runtime values.
func (s Surplus) Parameters() (SurplusParams, error) {
	var params SurplusParams
	ceiling, err := fees.ParsePercentage(s.MaxProtocolFeePercentage)
	if err != nil {
		return params, fmt.Errorf("invalid surplus.MaxProtocolFeePercentage: %w", err)
	}
	params.MaxProtocolFeePercentage = ceiling
	pct, err := fees.ParsePercentage(s.ProtocolFeePercentage)
	if err != nil {
		return params, fmt.Errorf("invalid surplus.ProtocolFeePercentage: %w", err)
	}
	params.ProtocolFeePercentage = pct
	if params.FeeSweeper, err = parseAddress("FeeSweeper", s.FeeSweeper); err != nil {
		return params, err
	}
	if params.FeeAccount, err = parseAddress("FeeAccount", s.FeeAccount); err != nil {
		return params, err
	}
	params.Tokens = make([]ethcommon.Address, 0, len(s.Tokens))
	for _, raw := range s.Tokens {
		token, err := parseAddress("Tokens", raw)
		if err != nil {
			return params, err
		}
		params.Tokens = append(params.Tokens, token)
	}
	return params, nil
}

func parseAddress(field, raw string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return ethcommon.Address{}, fmt.Errorf("invalid surplus.%s: %q is not a hex address", field, raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

// ValidateConfig checks the deployment invariants of the loaded configuration.
func ValidateConfig(cfg Config) error {
	params, err := cfg.Surplus.Parameters()
	if err != nil {
		return err
	}
	if params.ProtocolFeePercentage.Gt(params.MaxProtocolFeePercentage) {
		return fmt.Errorf("surplus: ProtocolFeePercentage > MaxProtocolFeePercentage")
	}
	if params.FeeSweeper == (ethcommon.Address{}) {
		return fmt.Errorf("surplus: FeeSweeper must not be the zero address")
	}
	if params.FeeAccount == (ethcommon.Address{}) {
		return fmt.Errorf("surplus: FeeAccount must not be the zero address")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DataDir required")
	}
	return nil
}
