package internal

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpstats/config"
	"github.com/vadiminshakov/perpstats/internal/clients"
	"github.com/vadiminshakov/perpstats/internal/entity"
	"github.com/vadiminshakov/perpstats/internal/services/batcher"
	"github.com/vadiminshakov/perpstats/internal/services/fetcher"
	"github.com/vadiminshakov/perpstats/internal/services/leaderboard"
	"github.com/vadiminshakov/perpstats/internal/services/perf"
	"github.com/vadiminshakov/perpstats/internal/services/pricefeed"
	"github.com/vadiminshakov/perpstats/internal/services/valuation"
)

// IndexerSource is the paged indexer interface the engine fetches from.
// *clients.IndexerClient satisfies it; tests supply doubles.
type IndexerSource interface {
	PositionsPage(ctx context.Context, pageSize, offset int) ([]entity.RawPositionRecord, error)
	PerformancePage(ctx context.Context, period entity.Period, since time.Time, pageSize, offset int) ([]entity.PerformanceRecord, error)
}

// PositionReader is the batched on-chain reader: one loosely-typed tuple per
// requested position key, in key order.
type PositionReader interface {
	PositionInfo(ctx context.Context, keys []common.Hash) ([]clients.PositionTuple, error)
}

// Metadata is the market/token universe a recompute pass runs against.
type Metadata struct {
	Markets map[common.Address]entity.Market
	Tokens  map[common.Address]entity.Token
}

// Snapshot is the result of one recompute pass. Each output carries its own
// loading/error/data triple so presentation can render partial failures.
type Snapshot struct {
	Stamp uuid.UUID

	Positions entity.Outcome[[]entity.ValuedPosition]
	Totals    entity.Outcome[map[common.Address]*entity.PerformanceTotal]
	Summaries entity.Outcome[map[common.Address]*entity.OpenPositionSummary]
	Rows      entity.Outcome[[]entity.RankedRow]
}

// Engine wires the fetch, valuation and aggregation services into one
// recompute pipeline. It holds no reactive state: every pass is a pure
// function of its inputs, and concurrent passes are reconciled by the caller
// via generation stamps.
type Engine struct {
	cfg     config.Config
	indexer IndexerSource
	reader  PositionReader
	prices  pricefeed.SnapshotSource
	batch   batcher.Strategy[common.Hash, clients.PositionTuple]
	valuer  *valuation.Engine
	perf    *perf.Aggregator
	ranker  *leaderboard.Ranker
	logger  *zap.Logger

	mu      sync.Mutex
	current uuid.UUID
}

// NewEngine assembles an engine from explicit collaborator handles.
func NewEngine(cfg config.Config, indexer IndexerSource, reader PositionReader, prices pricefeed.SnapshotSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.L()
	}

	var batch batcher.Strategy[common.Hash, clients.PositionTuple]
	if cfg.BatchStrategy == config.BatchRotating {
		batch = batcher.NewRotating[common.Hash, clients.PositionTuple](cfg.ChunkSize, cfg.RotateInterval)
	} else {
		batch = batcher.NewConcurrent[common.Hash, clients.PositionTuple](cfg.ChunkSize)
	}

	constants := valuation.Constants{
		MinCollateralUsd:          cfg.MinCollateralUsd,
		MinCollateralFactor:       cfg.MinCollateralFactor,
		MaxLeverageBps:            cfg.MaxLeverageBps,
		PositionFeeFactorPositive: cfg.FeeFactorPositive,
		PositionFeeFactorNegative: cfg.FeeFactorNegative,
	}

	return &Engine{
		cfg:     cfg,
		indexer: indexer,
		reader:  reader,
		prices:  prices,
		batch:   batch,
		valuer:  valuation.NewEngine(constants, logger),
		perf:    perf.NewAggregator(logger),
		ranker:  leaderboard.NewRanker(logger),
		logger:  logger,
	}
}

// IsCurrent reports whether stamp still identifies the latest recompute pass.
// Callers discard snapshots whose stamp has been superseded: last write wins
// by recency of the triggering input, not by completion order.
func (e *Engine) IsCurrent(stamp uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current == stamp
}

// Recompute runs one full pass: fetch open positions, re-read them through
// the batched on-chain reader, value them against fresh prices, aggregate
// performance records for the window, and rank. There is no cancellation API;
// a newer pass simply supersedes this one's stamp.
func (e *Engine) Recompute(ctx context.Context, meta Metadata, period entity.Period, since time.Time) *Snapshot {
	stamp := uuid.New()
	e.mu.Lock()
	e.current = stamp
	e.mu.Unlock()

	snap := &Snapshot{
		Stamp:     stamp,
		Positions: entity.LoadingOutcome[[]entity.ValuedPosition](),
		Totals:    entity.LoadingOutcome[map[common.Address]*entity.PerformanceTotal](),
		Summaries: entity.LoadingOutcome[map[common.Address]*entity.OpenPositionSummary](),
		Rows:      entity.LoadingOutcome[[]entity.RankedRow](),
	}

	logger := e.logger.With(zap.String("pass", stamp.String()))
	logger.Debug("recompute pass started", zap.String("period", period.String()))

	positions, posErr := e.valuePositions(ctx, meta)
	if posErr != nil {
		snap.Positions = entity.FailedOutcome[[]entity.ValuedPosition](posErr)
		snap.Summaries = entity.FailedOutcome[map[common.Address]*entity.OpenPositionSummary](posErr)
	} else {
		snap.Positions = entity.ReadyOutcome(positions)
		snap.Summaries = entity.ReadyOutcome(leaderboard.SummarizeOpen(positions))
	}

	records, perfErr := fetcher.FetchAll(ctx, e.cfg.PageSize, func(ctx context.Context, pageSize, offset int) ([]entity.PerformanceRecord, error) {
		return e.indexer.PerformancePage(ctx, period, since, pageSize, offset)
	})
	var totals map[common.Address]*entity.PerformanceTotal
	var order []common.Address
	if perfErr != nil {
		perfErr = errors.Wrap(perfErr, "failed to fetch performance records")
		snap.Totals = entity.FailedOutcome[map[common.Address]*entity.PerformanceTotal](perfErr)
	} else {
		totals, order = e.perf.Aggregate(records)
		snap.Totals = entity.ReadyOutcome(totals)
	}

	switch {
	case perfErr != nil:
		snap.Rows = entity.FailedOutcome[[]entity.RankedRow](perfErr)
	case posErr != nil:
		snap.Rows = entity.FailedOutcome[[]entity.RankedRow](posErr)
	default:
		rows, err := e.ranker.Rank(totals, order, snap.Summaries.Data)
		if err != nil {
			snap.Rows = entity.FailedOutcome[[]entity.RankedRow](err)
		} else {
			snap.Rows = entity.ReadyOutcome(rows)
		}
	}

	logger.Debug("recompute pass finished",
		zap.Bool("stale", !e.IsCurrent(stamp)),
		zap.Int("positions", len(snap.Positions.Data)),
		zap.Int("accounts", len(snap.Totals.Data)))
	return snap
}

func (e *Engine) valuePositions(ctx context.Context, meta Metadata) ([]entity.ValuedPosition, error) {
	indexed, err := fetcher.FetchAll(ctx, e.cfg.PageSize, e.indexer.PositionsPage)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch open positions")
	}
	if len(indexed) == 0 {
		return nil, nil
	}

	keys := make([]common.Hash, len(indexed))
	for i, record := range indexed {
		keys[i] = record.Key
	}

	// The indexer lags the chain; the batched reader is authoritative for the
	// final valuation inputs.
	tuples, err := e.batch.Execute(ctx, keys, e.reader.PositionInfo)
	if err != nil {
		return nil, errors.Wrap(err, "batched position read failed")
	}
	records, err := clients.ParsePositionTuples(tuples)
	if err != nil {
		return nil, err
	}

	tokens := make([]entity.Token, 0, len(meta.Tokens))
	for _, token := range meta.Tokens {
		tokens = append(tokens, token)
	}
	prices, err := e.prices.Snapshots(ctx, tokens)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch price snapshots")
	}

	universe := valuation.Universe{Markets: meta.Markets, Tokens: meta.Tokens, Prices: prices}
	opts := valuation.Options{IncludePnlInLeverage: e.cfg.IncludePnlInLeverage}
	return e.valuer.ValueAll(records, universe, opts)
}
