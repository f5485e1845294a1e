package leaderboard

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpstats/internal/entity"
	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

// DataIntegrityError reports a zero divisor encountered while building a
// leaderboard row. It aborts the whole ranking pass: a board with silently
// missing rows would misrank everyone below them.
type DataIntegrityError struct {
	Account common.Address
	Field   string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: zero %s for account %s", e.Field, e.Account.Hex())
}

// Ranker combines performance totals with open-position summaries into
// ranked leaderboard rows.
type Ranker struct {
	logger *zap.Logger
}

// NewRanker creates a ranker.
func NewRanker(logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.L()
	}
	return &Ranker{logger: logger}
}

// Rank builds one row per account in totals, in the given account order, then
// sorts by absolute profit descending. The sort is stable: tied accounts keep
// their input order. Ranks are dense 1-based positions in the sorted order.
// Accounts with no open positions get a zero-valued summary.
func (r *Ranker) Rank(totals map[common.Address]*entity.PerformanceTotal, order []common.Address, summaries map[common.Address]*entity.OpenPositionSummary) ([]entity.RankedRow, error) {
	rows := make([]entity.RankedRow, 0, len(order))
	for _, account := range order {
		total, ok := totals[account]
		if !ok {
			continue
		}
		summary := summaries[account]
		if summary == nil {
			summary = entity.NewOpenPositionSummary(account)
		}

		row, err := buildRow(total, summary)
		if err != nil {
			r.logger.Error("ranking pass aborted", zap.String("account", account.Hex()), zap.Error(err))
			return nil, err
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].AbsoluteProfit.Cmp(rows[j].AbsoluteProfit) > 0
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

func buildRow(total *entity.PerformanceTotal, summary *entity.OpenPositionSummary) (entity.RankedRow, error) {
	realizedPnl := total.TotalPnl.
		Sub(total.BorrowingFeeUsd).
		Sub(total.FundingFeeUsd).
		Sub(total.PositionFeeUsd).
		Add(total.PriceImpactUsd)

	unrealizedPnl := summary.UnrealizedAfterFees()

	absoluteProfit := realizedPnl.Add(unrealizedPnl)

	if total.MaxCollateral.IsZero() {
		return entity.RankedRow{}, &DataIntegrityError{Account: total.Account, Field: "max collateral"}
	}
	relativeProfit := absoluteProfit.Decimal().Div(total.MaxCollateral.Decimal())

	positionCount := total.ClosedCount + summary.OpenCount
	if positionCount == 0 {
		return entity.RankedRow{}, &DataIntegrityError{Account: total.Account, Field: "position count"}
	}
	sizeSum := total.SumMaxSize.Add(summary.SumMaxSize)
	averageSize := sizeSum.DivTo(fixed.FromInt64(positionCount, 0), entity.UsdScale)

	if total.CumsumCollateral.IsZero() {
		return entity.RankedRow{}, &DataIntegrityError{Account: total.Account, Field: "cumulative collateral"}
	}
	averageLeverage := total.CumsumSize.Decimal().Div(total.CumsumCollateral.Decimal())

	return entity.RankedRow{
		Account:         total.Account,
		AbsoluteProfit:  absoluteProfit,
		RelativeProfit:  relativeProfit,
		AverageSize:     averageSize,
		AverageLeverage: averageLeverage,
		Wins:            total.Wins,
		Losses:          total.Losses,
	}, nil
}
