// Package valuation derives risk and PnL metrics for open positions from raw
// position records and live price snapshots. Every computation here is a pure
// function of its inputs: identical inputs always produce identical outputs.
package valuation

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpstats/internal/entity"
	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

var (
	// ErrPriceNotFound means a required token price is absent from the current
	// snapshot set. The whole valuation pass aborts: ranking over a partially
	// priced universe would compare incomplete data.
	ErrPriceNotFound = errors.New("token price not found")

	// ErrEmptyPosition marks a record that holds no position (never increased,
	// or zero size) and is excluded from valuation output.
	ErrEmptyPosition = errors.New("position is empty")
)

// Constants are the protocol-wide parameters valuation depends on.
type Constants struct {
	MinCollateralUsd    fixed.Value // UsdScale, absolute floor
	MinCollateralFactor fixed.Value // UsdScale, maintenance fraction of size
	MaxLeverageBps      fixed.Value // BpsScale
	// Position fee factors at UsdScale, picked by whether closing improves
	// pool balance.
	PositionFeeFactorPositive fixed.Value
	PositionFeeFactorNegative fixed.Value
}

// Options are caller-supplied valuation toggles.
type Options struct {
	// IncludePnlInLeverage adds unrealized PnL to the leverage divisor.
	IncludePnlInLeverage bool
}

// Universe is the market/token/price context a valuation pass runs against.
type Universe struct {
	Markets map[common.Address]entity.Market
	Tokens  map[common.Address]entity.Token
	Prices  map[common.Address]entity.PriceSnapshot
}

// marketContext is the fully resolved metadata for one record.
type marketContext struct {
	market     entity.Market
	index      entity.Token
	long       entity.Token
	short      entity.Token
	collateral entity.Token
}

// Engine values positions against protocol constants.
type Engine struct {
	constants Constants
	logger    *zap.Logger
}

// NewEngine creates a valuation engine.
func NewEngine(constants Constants, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.L()
	}
	return &Engine{constants: constants, logger: logger}
}

// ValueEach returns one Valuation per input record, in input order. Records
// whose market or token metadata cannot be resolved are tagged unavailable
// ("cannot value yet"), as are empty records. A missing price aborts the pass
// with ErrPriceNotFound.
func (e *Engine) ValueEach(records []entity.RawPositionRecord, universe Universe, opts Options) ([]entity.Valuation, error) {
	out := make([]entity.Valuation, 0, len(records))
	for _, record := range records {
		mctx, ok := resolveContext(universe, record)
		if !ok {
			e.logger.Debug("position lacks resolvable market context",
				zap.String("key", record.Key.Hex()),
				zap.String("market", record.Market.Hex()))
			out = append(out, entity.UnavailableValuation("market context not resolved"))
			continue
		}

		valued, err := e.value(record, mctx, universe.Prices, opts)
		if err != nil {
			if errors.Is(err, ErrEmptyPosition) {
				out = append(out, entity.UnavailableValuation("position is empty"))
				continue
			}
			return nil, err
		}
		out = append(out, entity.ReadyValuation(&valued))
	}
	return out, nil
}

// ValueAll values every record, dropping the ones that cannot be valued.
func (e *Engine) ValueAll(records []entity.RawPositionRecord, universe Universe, opts Options) ([]entity.ValuedPosition, error) {
	valuations, err := e.ValueEach(records, universe, opts)
	if err != nil {
		return nil, err
	}

	out := make([]entity.ValuedPosition, 0, len(valuations))
	for _, v := range valuations {
		if v.State == entity.ValuationReady {
			out = append(out, *v.Position)
		}
	}
	return out, nil
}

func resolveContext(u Universe, record entity.RawPositionRecord) (marketContext, bool) {
	market, ok := u.Markets[record.Market]
	if !ok {
		return marketContext{}, false
	}
	index, ok := u.Tokens[market.IndexToken]
	if !ok {
		return marketContext{}, false
	}
	long, ok := u.Tokens[market.LongToken]
	if !ok {
		return marketContext{}, false
	}
	short, ok := u.Tokens[market.ShortToken]
	if !ok {
		return marketContext{}, false
	}
	collateral, ok := u.Tokens[record.CollateralToken]
	if !ok {
		return marketContext{}, false
	}
	return marketContext{market: market, index: index, long: long, short: short, collateral: collateral}, true
}

func price(prices map[common.Address]entity.PriceSnapshot, token entity.Token) (entity.PriceSnapshot, error) {
	snap, ok := prices[token.Address]
	if !ok {
		return entity.PriceSnapshot{}, errors.Wrapf(ErrPriceNotFound, "token %s (%s)", token.Symbol, token.Address.Hex())
	}
	return snap, nil
}

// value derives every metric for one position. Steps follow the protocol's
// valuation order; see the returned ValuedPosition for field semantics.
func (e *Engine) value(record entity.RawPositionRecord, mctx marketContext, prices map[common.Address]entity.PriceSnapshot, opts Options) (entity.ValuedPosition, error) {
	if record.IsEmpty() {
		return entity.ValuedPosition{}, errors.Wrapf(ErrEmptyPosition, "position %s never increased", record.Key.Hex())
	}

	sizeInTokens := fixed.New(record.SizeInTokens, mctx.index.Decimals)
	if sizeInTokens.IsZero() {
		// entry price is undefined without size; the position is excluded.
		return entity.ValuedPosition{}, errors.Wrapf(ErrEmptyPosition, "position %s has zero size", record.Key.Hex())
	}

	indexPrice, err := price(prices, mctx.index)
	if err != nil {
		return entity.ValuedPosition{}, err
	}
	longPrice, err := price(prices, mctx.long)
	if err != nil {
		return entity.ValuedPosition{}, err
	}
	shortPrice, err := price(prices, mctx.short)
	if err != nil {
		return entity.ValuedPosition{}, err
	}
	collateralPrice, err := price(prices, mctx.collateral)
	if err != nil {
		return entity.ValuedPosition{}, err
	}

	// A long exits by selling the index and is valued at the lower price;
	// a short exits by buying and is valued at the higher one.
	markPrice := indexPrice.Max
	if record.IsLong {
		markPrice = indexPrice.Min
	}

	entryPrice := record.SizeInUsd.DivTo(sizeInTokens, mctx.index.PriceScale())

	collateralAmount := fixed.New(record.CollateralAmount, mctx.collateral.Decimals)
	collateralUsd := collateralAmount.MulTo(collateralPrice.Min, entity.UsdScale)

	pendingBorrowingFee := record.PendingBorrowingFeeUsd
	fundingFeeAmount := fixed.New(record.FundingFeeAmount, mctx.collateral.Decimals)
	pendingFundingFee := fundingFeeAmount.MulTo(collateralPrice.Min, entity.UsdScale)

	claimableLong := fixed.New(record.ClaimableLongTokenAmount, mctx.long.Decimals).
		MulTo(longPrice.Min, entity.UsdScale)
	claimableShort := fixed.New(record.ClaimableShortTokenAmount, mctx.short.Decimals).
		MulTo(shortPrice.Min, entity.UsdScale)
	claimableFundingFee := claimableLong.Add(claimableShort)

	// Claimable amounts are informational only, never netted against value.
	totalPendingFees := pendingBorrowingFee.Add(pendingFundingFee)

	feeFactor := e.constants.PositionFeeFactorNegative
	if record.ClosingImprovesBalance {
		feeFactor = e.constants.PositionFeeFactorPositive
	}
	closingFee := record.SizeInUsd.MulTo(feeFactor, entity.UsdScale)

	// Negative remaining collateral signals insolvency and stays negative.
	remainingCollateral := collateralUsd.Sub(totalPendingFees)

	priceDelta := markPrice.Sub(entryPrice)
	pnl := priceDelta.MulTo(sizeInTokens, entity.UsdScale)
	if !record.IsLong {
		pnl = pnl.Neg()
	}

	pnlBps := fixed.Zero(entity.BpsScale)
	if !collateralUsd.IsZero() {
		pnlBps = pnl.DivTo(collateralUsd, entity.BpsScale)
	}

	netValue := collateralUsd.Add(pnl).Sub(totalPendingFees).Sub(closingFee)

	pnlAfterFees := pnl.Sub(totalPendingFees).Sub(closingFee)
	pnlAfterFeesBps := fixed.Zero(entity.BpsScale)
	if basis := collateralUsd.Add(closingFee); !basis.IsZero() {
		pnlAfterFeesBps = pnlAfterFees.DivTo(basis, entity.BpsScale)
	}

	var leverage *fixed.Value
	divisor := collateralUsd.Sub(totalPendingFees)
	if opts.IncludePnlInLeverage {
		divisor = divisor.Add(pnl)
	}
	if divisor.Sign() > 0 {
		lev := record.SizeInUsd.DivTo(divisor, entity.BpsScale)
		leverage = &lev
	}

	isLowCollateral := leverage != nil && leverage.Cmp(e.constants.MaxLeverageBps) > 0

	liquidationPrice := e.liquidationPrice(record, entryPrice, sizeInTokens, collateralUsd, totalPendingFees, closingFee, mctx.index.PriceScale())

	return entity.ValuedPosition{
		Record:                 record,
		Market:                 mctx.market,
		MarkPrice:              markPrice,
		EntryPrice:             entryPrice,
		CollateralUsd:          collateralUsd,
		PendingBorrowingFeeUsd: pendingBorrowingFee,
		PendingFundingFeeUsd:   pendingFundingFee,
		ClaimableFundingFeeUsd: claimableFundingFee,
		TotalPendingFeesUsd:    totalPendingFees,
		ClosingFeeUsd:          closingFee,
		RemainingCollateralUsd: remainingCollateral,
		Pnl:                    pnl,
		PnlBps:                 pnlBps,
		NetValue:               netValue,
		PnlAfterFees:           pnlAfterFees,
		PnlAfterFeesBps:        pnlAfterFeesBps,
		Leverage:               leverage,
		IsLowCollateral:        isLowCollateral,
		LiquidationPrice:       liquidationPrice,
	}, nil
}

// liquidationPrice solves for the mark price at which remaining collateral
// after fees and PnL hits the protocol's maintenance floor. Returns nil when
// no positive price can liquidate the position.
func (e *Engine) liquidationPrice(record entity.RawPositionRecord, entryPrice, sizeInTokens, collateralUsd, totalPendingFees, closingFee fixed.Value, priceScale int32) *fixed.Value {
	maintenance := record.SizeInUsd.MulTo(e.constants.MinCollateralFactor, entity.UsdScale)
	floor := e.constants.MinCollateralUsd.Max(maintenance)

	remaining := collateralUsd.Sub(totalPendingFees).Sub(closingFee)

	// Solve remaining + pnl(price) = floor for price:
	// long:  price = entry + (floor - remaining) / sizeInTokens
	// short: price = entry - (floor - remaining) / sizeInTokens
	delta := floor.Sub(remaining).DivTo(sizeInTokens, priceScale)

	var liq fixed.Value
	if record.IsLong {
		liq = entryPrice.Add(delta)
	} else {
		liq = entryPrice.Sub(delta)
	}
	if liq.Sign() <= 0 {
		return nil
	}
	return &liq
}
