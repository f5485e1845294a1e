package entity

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

// OpenPositionSummary folds every currently open ValuedPosition of one
// account. Rebuilt from scratch each aggregation pass.
type OpenPositionSummary struct {
	Account common.Address

	UnrealizedPnl          fixed.Value
	SumMaxSize             fixed.Value
	PendingBorrowingFeeUsd fixed.Value
	PendingFundingFeeUsd   fixed.Value
	ClosingFeeUsd          fixed.Value
	OpenCount              int64
}

// NewOpenPositionSummary returns a zeroed summary for the account.
func NewOpenPositionSummary(account common.Address) *OpenPositionSummary {
	return &OpenPositionSummary{
		Account:                account,
		UnrealizedPnl:          fixed.Zero(UsdScale),
		SumMaxSize:             fixed.Zero(UsdScale),
		PendingBorrowingFeeUsd: fixed.Zero(UsdScale),
		PendingFundingFeeUsd:   fixed.Zero(UsdScale),
		ClosingFeeUsd:          fixed.Zero(UsdScale),
	}
}

// UnrealizedAfterFees returns unrealized PnL net of pending and closing fees.
func (s *OpenPositionSummary) UnrealizedAfterFees() fixed.Value {
	return s.UnrealizedPnl.
		Sub(s.PendingBorrowingFeeUsd).
		Sub(s.PendingFundingFeeUsd).
		Sub(s.ClosingFeeUsd)
}

// RankedRow is one final leaderboard entry. Rank is positional: assigned from
// the sorted order, never stored anywhere else.
type RankedRow struct {
	Rank    int
	Account common.Address

	AbsoluteProfit  fixed.Value     // UsdScale
	RelativeProfit  decimal.Decimal // ratio of absolute profit to max collateral
	AverageSize     fixed.Value     // UsdScale
	AverageLeverage decimal.Decimal // notional over collateral

	Wins   int64
	Losses int64
}
