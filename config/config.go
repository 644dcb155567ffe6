package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultDataDir                  = "./surplus-data"
	DefaultMaxProtocolFeePercentage = "50%"
	DefaultProtocolFeePercentage    = "0"
)

type Config struct {
	DataDir string  `toml:"DataDir"`
	Surplus Surplus `toml:"surplus"`
	Log     Log     `toml:"log"`
}

// Load loads the configuration from the given path. A missing file is created
// with defaults; the sweeper and fee account still have to be filled in
// before the configuration validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(cfg.Surplus.MaxProtocolFeePercentage) == "" {
		cfg.Surplus.MaxProtocolFeePercentage = DefaultMaxProtocolFeePercentage
	}
	if strings.TrimSpace(cfg.Surplus.ProtocolFeePercentage) == "" {
		cfg.Surplus.ProtocolFeePercentage = DefaultProtocolFeePercentage
	}
	if cfg.Surplus.Tokens == nil {
		cfg.Surplus.Tokens = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
