package entity

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

// Period classifies the reporting window of a performance record.
type Period int

const (
	PeriodHourly Period = iota
	PeriodDaily
	PeriodTotal
)

func (p Period) String() string {
	switch p {
	case PeriodHourly:
		return "hourly"
	case PeriodDaily:
		return "daily"
	case PeriodTotal:
		return "total"
	default:
		return "unknown"
	}
}

// PerformanceRecord is one indexer row: one account's closed-trading stats for
// one reporting period. All USD fields are at UsdScale.
type PerformanceRecord struct {
	ID        string
	Account   common.Address
	Period    Period
	Timestamp int64

	Wins   int64
	Losses int64

	TotalPnl         fixed.Value
	TotalCollateral  fixed.Value
	MaxCollateral    fixed.Value
	CumsumSize       fixed.Value
	CumsumCollateral fixed.Value
	SumMaxSize       fixed.Value
	ClosedCount      int64

	BorrowingFeeUsd fixed.Value
	FundingFeeUsd   fixed.Value
	PositionFeeUsd  fixed.Value
	PriceImpactUsd  fixed.Value
}

// PerformanceTotal accumulates every PerformanceRecord returned for one
// account within a single aggregation pass. Rebuilt from scratch each pass,
// never patched incrementally.
type PerformanceTotal struct {
	Account common.Address

	Wins   int64
	Losses int64

	TotalPnl         fixed.Value
	TotalCollateral  fixed.Value
	MaxCollateral    fixed.Value
	CumsumSize       fixed.Value
	CumsumCollateral fixed.Value
	SumMaxSize       fixed.Value
	ClosedCount      int64

	BorrowingFeeUsd fixed.Value
	FundingFeeUsd   fixed.Value
	PositionFeeUsd  fixed.Value
	PriceImpactUsd  fixed.Value
}

// NewPerformanceTotal returns a zeroed total for the account.
func NewPerformanceTotal(account common.Address) *PerformanceTotal {
	return &PerformanceTotal{
		Account:          account,
		TotalPnl:         fixed.Zero(UsdScale),
		TotalCollateral:  fixed.Zero(UsdScale),
		MaxCollateral:    fixed.Zero(UsdScale),
		CumsumSize:       fixed.Zero(UsdScale),
		CumsumCollateral: fixed.Zero(UsdScale),
		SumMaxSize:       fixed.Zero(UsdScale),
		BorrowingFeeUsd:  fixed.Zero(UsdScale),
		FundingFeeUsd:    fixed.Zero(UsdScale),
		PositionFeeUsd:   fixed.Zero(UsdScale),
		PriceImpactUsd:   fixed.Zero(UsdScale),
	}
}

// Merge adds a record into the total. Every numeric field is summed except
// MaxCollateral, which keeps the running maximum.
func (t *PerformanceTotal) Merge(r PerformanceRecord) {
	t.Wins += r.Wins
	t.Losses += r.Losses
	t.TotalPnl = t.TotalPnl.Add(r.TotalPnl)
	t.TotalCollateral = t.TotalCollateral.Add(r.TotalCollateral)
	t.MaxCollateral = t.MaxCollateral.Max(r.MaxCollateral)
	t.CumsumSize = t.CumsumSize.Add(r.CumsumSize)
	t.CumsumCollateral = t.CumsumCollateral.Add(r.CumsumCollateral)
	t.SumMaxSize = t.SumMaxSize.Add(r.SumMaxSize)
	t.ClosedCount += r.ClosedCount
	t.BorrowingFeeUsd = t.BorrowingFeeUsd.Add(r.BorrowingFeeUsd)
	t.FundingFeeUsd = t.FundingFeeUsd.Add(r.FundingFeeUsd)
	t.PositionFeeUsd = t.PositionFeeUsd.Add(r.PositionFeeUsd)
	t.PriceImpactUsd = t.PriceImpactUsd.Add(r.PriceImpactUsd)
}
