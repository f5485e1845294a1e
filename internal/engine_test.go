package internal

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpstats/config"
	"github.com/vadiminshakov/perpstats/internal/clients"
	"github.com/vadiminshakov/perpstats/internal/entity"
	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

var (
	wethAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	usdcAddr   = common.HexToAddress("0x1000000000000000000000000000000000000002")
	marketAddr = common.HexToAddress("0x2000000000000000000000000000000000000001")
	trader     = common.HexToAddress("0x3000000000000000000000000000000000000001")
)

func usd(human string) fixed.Value {
	d, _ := decimal.NewFromString(human)
	return fixed.New(d.Shift(entity.UsdScale).BigInt(), entity.UsdScale)
}

func testMetadata() Metadata {
	return Metadata{
		Markets: map[common.Address]entity.Market{
			marketAddr: {
				Address:    marketAddr,
				Name:       "WETH/USD",
				IndexToken: wethAddr,
				LongToken:  wethAddr,
				ShortToken: usdcAddr,
			},
		},
		Tokens: map[common.Address]entity.Token{
			wethAddr: {Address: wethAddr, Symbol: "WETH", Decimals: 18},
			usdcAddr: {Address: usdcAddr, Symbol: "USDC", Decimals: 6},
		},
	}
}

type fakeIndexer struct {
	positions   []entity.RawPositionRecord
	performance []entity.PerformanceRecord
	perfErr     error
}

func (f *fakeIndexer) PositionsPage(ctx context.Context, pageSize, offset int) ([]entity.RawPositionRecord, error) {
	if offset >= len(f.positions) {
		return nil, nil
	}
	return f.positions, nil
}

func (f *fakeIndexer) PerformancePage(ctx context.Context, period entity.Period, since time.Time, pageSize, offset int) ([]entity.PerformanceRecord, error) {
	if f.perfErr != nil {
		return nil, f.perfErr
	}
	if offset >= len(f.performance) {
		return nil, nil
	}
	return f.performance, nil
}

type fakeReader struct{}

func (f *fakeReader) PositionInfo(ctx context.Context, keys []common.Hash) ([]clients.PositionTuple, error) {
	out := make([]clients.PositionTuple, len(keys))
	for i, key := range keys {
		out[i] = clients.PositionTuple{
			"key":                       key.Hex(),
			"account":                   trader.Hex(),
			"market":                    marketAddr.Hex(),
			"collateralToken":           usdcAddr.Hex(),
			"isLong":                    true,
			"sizeInUsd":                 "2500" + zeros(30),
			"sizeInTokens":              "2" + zeros(18),
			"collateralAmount":          "1000" + zeros(6),
			"borrowingFeeUsd":           "0",
			"fundingFeeAmount":          "0",
			"claimableLongTokenAmount":  "0",
			"claimableShortTokenAmount": "0",
			"closingImprovesBalance":    false,
			"increasedAtBlock":          "18000000",
			"decreasedAtBlock":          "0",
			"increasedAt":               "1700000000",
		}
	}
	return out, nil
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

type fakePrices struct {
	missing bool
}

func (f *fakePrices) Snapshots(ctx context.Context, tokens []entity.Token) (map[common.Address]entity.PriceSnapshot, error) {
	out := make(map[common.Address]entity.PriceSnapshot, len(tokens))
	for _, token := range tokens {
		if f.missing && token.Address == usdcAddr {
			continue
		}
		price := "1"
		if token.Address == wethAddr {
			price = "1300"
		}
		d, _ := decimal.NewFromString(price)
		scale := token.PriceScale()
		v := fixed.New(d.Shift(scale).BigInt(), scale)
		out[token.Address] = entity.PriceSnapshot{Min: v, Max: v}
	}
	return out, nil
}

func perfRecord() entity.PerformanceRecord {
	return entity.PerformanceRecord{
		Account:          trader,
		Period:           entity.PeriodTotal,
		Wins:             3,
		Losses:           1,
		TotalPnl:         usd("400"),
		TotalCollateral:  usd("1000"),
		MaxCollateral:    usd("1000"),
		CumsumSize:       usd("5000"),
		CumsumCollateral: usd("1000"),
		SumMaxSize:       usd("2500"),
		ClosedCount:      4,
		BorrowingFeeUsd:  usd("10"),
		FundingFeeUsd:    usd("5"),
		PositionFeeUsd:   usd("5"),
		PriceImpactUsd:   usd("0"),
	}
}

func indexedPosition() entity.RawPositionRecord {
	return entity.RawPositionRecord{
		Key:              common.HexToHash("0xaa"),
		Account:          trader,
		Market:           marketAddr,
		CollateralToken:  usdcAddr,
		IsLong:           true,
		SizeInUsd:        usd("2500"),
		SizeInTokens:     new(big.Int).Mul(big.NewInt(2), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
		CollateralAmount: big.NewInt(1000_000000),
		IncreasedAtBlock: 18000000,
	}
}

func newTestEngine(t *testing.T, indexer IndexerSource, prices *fakePrices) *Engine {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return NewEngine(cfg, indexer, &fakeReader{}, prices, zap.NewNop())
}

func TestRecomputeFullPass(t *testing.T) {
	indexer := &fakeIndexer{
		positions:   []entity.RawPositionRecord{indexedPosition()},
		performance: []entity.PerformanceRecord{perfRecord()},
	}
	engine := newTestEngine(t, indexer, &fakePrices{})

	snap := engine.Recompute(context.Background(), testMetadata(), entity.PeriodTotal, time.Unix(0, 0))
	require.NotNil(t, snap)
	assert.True(t, engine.IsCurrent(snap.Stamp))

	require.NoError(t, snap.Positions.Err)
	require.Len(t, snap.Positions.Data, 1)
	p := snap.Positions.Data[0]
	// entry 1250, mark 1300, long: pnl = 100
	assert.True(t, p.Pnl.Equal(usd("100")), "pnl: got %s", p.Pnl)

	require.NoError(t, snap.Totals.Err)
	require.Len(t, snap.Totals.Data, 1)

	require.NoError(t, snap.Summaries.Err)
	require.Len(t, snap.Summaries.Data, 1)

	require.NoError(t, snap.Rows.Err)
	require.Len(t, snap.Rows.Data, 1)
	row := snap.Rows.Data[0]
	assert.Equal(t, 1, row.Rank)
	assert.Equal(t, trader, row.Account)

	// realized = 400-10-5-5 = 380; unrealized = 100 - closing fee 1.75
	assert.True(t, row.AbsoluteProfit.Equal(usd("478.25")), "absolute profit: got %s", row.AbsoluteProfit)
}

func TestRecomputeNewPassSupersedesOld(t *testing.T) {
	indexer := &fakeIndexer{
		positions:   []entity.RawPositionRecord{indexedPosition()},
		performance: []entity.PerformanceRecord{perfRecord()},
	}
	engine := newTestEngine(t, indexer, &fakePrices{})

	first := engine.Recompute(context.Background(), testMetadata(), entity.PeriodTotal, time.Unix(0, 0))
	second := engine.Recompute(context.Background(), testMetadata(), entity.PeriodTotal, time.Unix(0, 0))

	assert.False(t, engine.IsCurrent(first.Stamp), "stale pass must be discarded by the caller")
	assert.True(t, engine.IsCurrent(second.Stamp))
}

func TestRecomputeMissingPriceFailsPositionOutputs(t *testing.T) {
	indexer := &fakeIndexer{
		positions:   []entity.RawPositionRecord{indexedPosition()},
		performance: []entity.PerformanceRecord{perfRecord()},
	}
	engine := newTestEngine(t, indexer, &fakePrices{missing: true})

	snap := engine.Recompute(context.Background(), testMetadata(), entity.PeriodTotal, time.Unix(0, 0))

	assert.Error(t, snap.Positions.Err)
	assert.Error(t, snap.Summaries.Err)
	assert.Error(t, snap.Rows.Err, "ranking cannot proceed over unpriced positions")
	assert.NoError(t, snap.Totals.Err, "performance totals do not depend on prices")
}

func TestRecomputePerfFetchFailureFailsTotalsAndRows(t *testing.T) {
	indexer := &fakeIndexer{
		positions: []entity.RawPositionRecord{indexedPosition()},
		perfErr:   errors.New("indexer down"),
	}
	engine := newTestEngine(t, indexer, &fakePrices{})

	snap := engine.Recompute(context.Background(), testMetadata(), entity.PeriodTotal, time.Unix(0, 0))

	assert.NoError(t, snap.Positions.Err)
	assert.Error(t, snap.Totals.Err)
	assert.Error(t, snap.Rows.Err)
}

func TestRecomputeNoPositions(t *testing.T) {
	indexer := &fakeIndexer{performance: []entity.PerformanceRecord{perfRecord()}}
	engine := newTestEngine(t, indexer, &fakePrices{})

	snap := engine.Recompute(context.Background(), testMetadata(), entity.PeriodTotal, time.Unix(0, 0))

	require.NoError(t, snap.Positions.Err)
	assert.Empty(t, snap.Positions.Data)
	require.NoError(t, snap.Rows.Err)
	require.Len(t, snap.Rows.Data, 1, "accounts with only closed positions still rank")
}
