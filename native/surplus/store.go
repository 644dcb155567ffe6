package surplus

import (
	"errors"
	"fmt"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"surplusrouter/native/fees"
	"surplusrouter/storage"
)

var (
	configKey = []byte("surplus/config")
	feePrefix = []byte("surplus/fees/")
)

func feeKey(token ethcommon.Address) []byte {
	buf := make([]byte, len(feePrefix)+len(token))
	copy(buf, feePrefix)
	copy(buf[len(feePrefix):], token[:])
	return buf
}

// Config is the mutable protocol-fee configuration together with its
// immutable ceiling.
type Config struct {
	MaxProtocolFeePercentage *uint256.Int
	ProtocolFeePercentage    *uint256.Int
	FeeSweeper               ethcommon.Address
}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	clone := Config{FeeSweeper: c.FeeSweeper}
	if c.MaxProtocolFeePercentage != nil {
		clone.MaxProtocolFeePercentage = new(uint256.Int).Set(c.MaxProtocolFeePercentage)
	}
	if c.ProtocolFeePercentage != nil {
		clone.ProtocolFeePercentage = new(uint256.Int).Set(c.ProtocolFeePercentage)
	}
	return clone
}

// Validate checks the deployment-time invariants.
func (c Config) Validate() error {
	if c.MaxProtocolFeePercentage == nil || c.MaxProtocolFeePercentage.Gt(fees.One) {
		return fmt.Errorf("surplus: max protocol fee percentage must be within [0, 1e18]")
	}
	pct := c.ProtocolFeePercentage
	if pct == nil {
		pct = new(uint256.Int)
	}
	if pct.Gt(c.MaxProtocolFeePercentage) {
		return &ProtocolFeePercentageAboveLimitError{Percentage: new(uint256.Int).Set(pct), Max: new(uint256.Int).Set(c.MaxProtocolFeePercentage)}
	}
	if c.FeeSweeper == (ethcommon.Address{}) {
		return ErrInvalidFeeSweeper
	}
	return nil
}

type storedConfig struct {
	MaxPercentage string
	Percentage    string
	Sweeper       [20]byte
}

type storedFee struct {
	Amount string
}

// Store persists the configuration record and the per-token fee ledger. The
// configuration is cached in memory after Open; fee entries are read through.
// Mutations are only made through a journal so that they can be committed in
// one batch.
type Store struct {
	mu  sync.RWMutex
	db  storage.Database
	cfg Config
}

// OpenStore loads the persisted configuration, initialising it from deploy
// on first use. A persisted ceiling that differs from deploy's is rejected:
// the ceiling is fixed for the lifetime of the deployment.
func OpenStore(db storage.Database, deploy Config) (*Store, error) {
	if db == nil {
		return nil, errNilStore
	}
	if err := deploy.Validate(); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	raw, err := db.Get(configKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		cfg := deploy.Clone()
		if cfg.ProtocolFeePercentage == nil {
			cfg.ProtocolFeePercentage = new(uint256.Int)
		}
		encoded, err := rlp.EncodeToBytes(toStoredConfig(cfg))
		if err != nil {
			return nil, err
		}
		if err := db.Put(configKey, encoded); err != nil {
			return nil, err
		}
		s.cfg = cfg
		return s, nil
	case err != nil:
		return nil, err
	}
	cfg, err := decodeConfig(raw)
	if err != nil {
		return nil, err
	}
	if !cfg.MaxProtocolFeePercentage.Eq(deploy.MaxProtocolFeePercentage) {
		return nil, fmt.Errorf("%w: stored %s, deployment %s", ErrCeilingMismatch, cfg.MaxProtocolFeePercentage.Dec(), deploy.MaxProtocolFeePercentage.Dec())
	}
	s.cfg = cfg
	return s, nil
}

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// CollectedFees returns the fee amount recorded for token.
func (s *Store) CollectedFees(token ethcommon.Address) (*uint256.Int, error) {
	raw, err := s.db.Get(feeKey(token))
	if errors.Is(err, storage.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedFee
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("surplus: decode fee entry: %w", err)
	}
	return decodeAmount(stored.Amount)
}

func toStoredConfig(cfg Config) storedConfig {
	return storedConfig{
		MaxPercentage: cfg.MaxProtocolFeePercentage.Dec(),
		Percentage:    cfg.ProtocolFeePercentage.Dec(),
		Sweeper:       cfg.FeeSweeper,
	}
}

func decodeConfig(raw []byte) (Config, error) {
	var stored storedConfig
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return Config{}, fmt.Errorf("surplus: decode config: %w", err)
	}
	ceiling, err := decodeAmount(stored.MaxPercentage)
	if err != nil {
		return Config{}, err
	}
	pct, err := decodeAmount(stored.Percentage)
	if err != nil {
		return Config{}, err
	}
	return Config{MaxProtocolFeePercentage: ceiling, ProtocolFeePercentage: pct, FeeSweeper: stored.Sweeper}, nil
}

func decodeAmount(raw string) (*uint256.Int, error) {
	if raw == "" || raw == "0" {
		return new(uint256.Int), nil
	}
	value, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("surplus: decode amount %q: %w", raw, err)
	}
	return value, nil
}

// journal stages fee-ledger and configuration writes for one operation.
// Nothing is visible to readers until commit; after a commit, rollback
// restores every touched key to its prior value.
type journal struct {
	store     *Store
	fees      map[ethcommon.Address]*uint256.Int
	prior     map[ethcommon.Address]*uint256.Int
	order     []ethcommon.Address
	cfg       *Config
	priorCfg  Config
	committed bool
}

func (s *Store) begin() *journal {
	return &journal{
		store: s,
		fees:  make(map[ethcommon.Address]*uint256.Int),
		prior: make(map[ethcommon.Address]*uint256.Int),
	}
}

func (j *journal) current(token ethcommon.Address) (*uint256.Int, error) {
	if staged, ok := j.fees[token]; ok {
		return new(uint256.Int).Set(staged), nil
	}
	amount, err := j.store.CollectedFees(token)
	if err != nil {
		return nil, err
	}
	j.prior[token] = new(uint256.Int).Set(amount)
	j.order = append(j.order, token)
	return amount, nil
}

// creditFee adds amount to token's staged ledger entry.
func (j *journal) creditFee(token ethcommon.Address, amount *uint256.Int) error {
	cur, err := j.current(token)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(cur, amount)
	if overflow {
		return ErrFeeOverflow
	}
	j.fees[token] = next
	return nil
}

// resetFee stages a zero entry for token and returns the amount it held.
func (j *journal) resetFee(token ethcommon.Address) (*uint256.Int, error) {
	cur, err := j.current(token)
	if err != nil {
		return nil, err
	}
	j.fees[token] = new(uint256.Int)
	return cur, nil
}

func (j *journal) setConfig(cfg Config) {
	clone := cfg.Clone()
	j.cfg = &clone
}

func (j *journal) write(feeValues map[ethcommon.Address]*uint256.Int, cfg *Config) error {
	batch := j.store.db.NewBatch()
	for _, token := range j.order {
		amount, ok := feeValues[token]
		if !ok {
			continue
		}
		if amount.IsZero() {
			batch.Delete(feeKey(token))
			continue
		}
		encoded, err := rlp.EncodeToBytes(storedFee{Amount: amount.Dec()})
		if err != nil {
			return err
		}
		batch.Put(feeKey(token), encoded)
	}
	if cfg != nil {
		encoded, err := rlp.EncodeToBytes(toStoredConfig(*cfg))
		if err != nil {
			return err
		}
		batch.Put(configKey, encoded)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := j.store.db.Write(batch); err != nil {
		return err
	}
	if cfg != nil {
		j.store.mu.Lock()
		j.store.cfg = cfg.Clone()
		j.store.mu.Unlock()
	}
	return nil
}

func (j *journal) commit() error {
	if j.committed {
		return nil
	}
	j.priorCfg = j.store.Config()
	if err := j.write(j.fees, j.cfg); err != nil {
		return err
	}
	j.committed = true
	return nil
}

func (j *journal) rollback() error {
	if !j.committed {
		return nil
	}
	var cfg *Config
	if j.cfg != nil {
		cfg = &j.priorCfg
	}
	if err := j.write(j.prior, cfg); err != nil {
		return err
	}
	j.committed = false
	return nil
}
