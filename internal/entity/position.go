package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

// RawPositionRecord is a position exactly as fetched from the indexer or the
// batched on-chain reader. It is never mutated; a refresh produces a new
// record that supersedes this one. Token-denominated amounts are raw on-chain
// units (*big.Int): their scale is the owning token's decimal count, which is
// only known once market metadata is resolved during valuation.
type RawPositionRecord struct {
	Key             common.Hash
	Account         common.Address
	Market          common.Address
	CollateralToken common.Address
	IsLong          bool

	SizeInUsd    fixed.Value // UsdScale
	SizeInTokens *big.Int    // index token units

	CollateralAmount *big.Int // collateral token units

	PendingBorrowingFeeUsd    fixed.Value // UsdScale
	FundingFeeAmount          *big.Int    // collateral token units
	ClaimableLongTokenAmount  *big.Int    // long token units
	ClaimableShortTokenAmount *big.Int    // short token units

	// Whether closing the position would move the pool toward balance; picks
	// the discounted branch of the position-fee schedule.
	ClosingImprovesBalance bool

	IncreasedAtBlock uint64
	DecreasedAtBlock uint64
	IncreasedAtTime  int64
}

// IsEmpty reports whether the record describes a slot that has never held a
// position.
func (r *RawPositionRecord) IsEmpty() bool { return r.IncreasedAtBlock == 0 }

// ValuedPosition is the fully derived view of one open position. It is
// immutable and recomputed wholesale whenever the raw record or any input
// price changes.
type ValuedPosition struct {
	Record RawPositionRecord
	Market Market

	MarkPrice  fixed.Value // index token price scale
	EntryPrice fixed.Value // index token price scale

	CollateralUsd          fixed.Value // UsdScale
	PendingBorrowingFeeUsd fixed.Value
	PendingFundingFeeUsd   fixed.Value
	ClaimableFundingFeeUsd fixed.Value
	TotalPendingFeesUsd    fixed.Value
	ClosingFeeUsd          fixed.Value

	// CollateralUsd minus total pending fees; negative means insolvent.
	RemainingCollateralUsd fixed.Value

	Pnl             fixed.Value // UsdScale
	PnlBps          fixed.Value // BpsScale, zero when collateral is zero
	NetValue        fixed.Value
	PnlAfterFees    fixed.Value
	PnlAfterFeesBps fixed.Value

	Leverage         *fixed.Value // BpsScale, nil when net collateral <= 0
	IsLowCollateral  bool
	LiquidationPrice *fixed.Value // index price scale, nil when price alone cannot liquidate
}

// ValuationState tags the lifecycle of an asynchronous valuation.
type ValuationState int

const (
	// ValuationPending means inputs are still streaming in.
	ValuationPending ValuationState = iota
	// ValuationReady means Position carries a complete valuation.
	ValuationReady
	// ValuationUnavailable means the position cannot be valued; Reason says why.
	ValuationUnavailable
)

// Valuation is the tagged variant handed to presentation callers so they must
// handle each state explicitly instead of probing nullable fields.
type Valuation struct {
	State    ValuationState
	Position *ValuedPosition // set only when State == ValuationReady
	Reason   string          // set only when State == ValuationUnavailable
}

// PendingValuation returns a Valuation in the pending state.
func PendingValuation() Valuation { return Valuation{State: ValuationPending} }

// ReadyValuation wraps a completed valuation.
func ReadyValuation(p *ValuedPosition) Valuation {
	return Valuation{State: ValuationReady, Position: p}
}

// UnavailableValuation marks a position that cannot be valued.
func UnavailableValuation(reason string) Valuation {
	return Valuation{State: ValuationUnavailable, Reason: reason}
}
