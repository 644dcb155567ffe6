package config

// Surplus captures the deployment settings of the surplus engine. Fee
// percentages accept fractions of one ("0.01") or percent strings ("1%").
// The ceiling is fixed once a data directory has been initialised.
type Surplus struct {
	MaxProtocolFeePercentage string   `toml:"MaxProtocolFeePercentage"`
	ProtocolFeePercentage    string   `toml:"ProtocolFeePercentage"`
	FeeSweeper               string   `toml:"FeeSweeper"`
	FeeAccount               string   `toml:"FeeAccount"`
	Tokens                   []string `toml:"Tokens"`
}

// Log controls structured logging output.
type Log struct {
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}
