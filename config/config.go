package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/perpstats/internal/entity"
	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

const (
	defaultPageSize       = 1000
	defaultChunkSize      = 150
	defaultRotateInterval = 500 * time.Millisecond

	defaultMinCollateralUsd    = "1"
	defaultMinCollateralFactor = "0.01"
	defaultMaxLeverage         = "100"
	defaultFeeFactorPositive   = "0.0005"
	defaultFeeFactorNegative   = "0.0007"
)

// BatchStrategy selects how chunked on-chain queries are scheduled.
type BatchStrategy string

const (
	BatchConcurrent BatchStrategy = "concurrent"
	BatchRotating   BatchStrategy = "rotating"
)

// Config holds engine wiring and protocol constants.
type Config struct {
	IndexerURL string

	PageSize       int
	ChunkSize      int
	BatchStrategy  BatchStrategy
	RotateInterval time.Duration

	IncludePnlInLeverage bool

	MinCollateralUsd    fixed.Value // UsdScale
	MinCollateralFactor fixed.Value // UsdScale
	MaxLeverageBps      fixed.Value // BpsScale
	FeeFactorPositive   fixed.Value // UsdScale
	FeeFactorNegative   fixed.Value // UsdScale
}

type configTmp struct {
	IndexerURL           string        `yaml:"indexer_url"`
	PageSize             int           `yaml:"page_size,omitempty"`
	ChunkSize            int           `yaml:"chunk_size,omitempty"`
	BatchStrategy        string        `yaml:"batch_strategy,omitempty"`
	RotateInterval       time.Duration `yaml:"rotate_interval,omitempty"`
	IncludePnlInLeverage bool          `yaml:"include_pnl_in_leverage,omitempty"`
	MinCollateralUsd     string        `yaml:"min_collateral_usd,omitempty"`
	MinCollateralFactor  string        `yaml:"min_collateral_factor,omitempty"`
	MaxLeverage          string        `yaml:"max_leverage,omitempty"`
	FeeFactorPositive    string        `yaml:"position_fee_factor_positive,omitempty"`
	FeeFactorNegative    string        `yaml:"position_fee_factor_negative,omitempty"`
}

// Default returns a config with protocol defaults and no indexer URL.
func Default() (Config, error) {
	return fromTmp(configTmp{})
}

// Load reads a yaml config file.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse yaml config")
	}
	return fromTmp(tmp)
}

func fromTmp(tmp configTmp) (Config, error) {
	cfg := Config{
		IndexerURL:           tmp.IndexerURL,
		PageSize:             tmp.PageSize,
		ChunkSize:            tmp.ChunkSize,
		BatchStrategy:        BatchConcurrent,
		RotateInterval:       tmp.RotateInterval,
		IncludePnlInLeverage: tmp.IncludePnlInLeverage,
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.RotateInterval <= 0 {
		cfg.RotateInterval = defaultRotateInterval
	}

	switch tmp.BatchStrategy {
	case "", string(BatchConcurrent):
		cfg.BatchStrategy = BatchConcurrent
	case string(BatchRotating):
		cfg.BatchStrategy = BatchRotating
	default:
		return Config{}, errors.Errorf("incorrect 'batch_strategy' param in yaml config: %s", tmp.BatchStrategy)
	}

	var err error
	if cfg.MinCollateralUsd, err = usdParam("min_collateral_usd", tmp.MinCollateralUsd, defaultMinCollateralUsd, entity.UsdScale); err != nil {
		return Config{}, err
	}
	if cfg.MinCollateralFactor, err = usdParam("min_collateral_factor", tmp.MinCollateralFactor, defaultMinCollateralFactor, entity.UsdScale); err != nil {
		return Config{}, err
	}
	if cfg.MaxLeverageBps, err = usdParam("max_leverage", tmp.MaxLeverage, defaultMaxLeverage, entity.BpsScale); err != nil {
		return Config{}, err
	}
	if cfg.FeeFactorPositive, err = usdParam("position_fee_factor_positive", tmp.FeeFactorPositive, defaultFeeFactorPositive, entity.UsdScale); err != nil {
		return Config{}, err
	}
	if cfg.FeeFactorNegative, err = usdParam("position_fee_factor_negative", tmp.FeeFactorNegative, defaultFeeFactorNegative, entity.UsdScale); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func usdParam(name, value, fallback string, scale int32) (fixed.Value, error) {
	if value == "" {
		value = fallback
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fixed.Value{}, errors.Wrapf(err, "incorrect '%s' param in yaml config (must be a decimal)", name)
	}
	return fixed.New(d.Shift(scale).BigInt(), scale), nil
}
