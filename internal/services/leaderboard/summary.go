// Package leaderboard folds open positions into per-account summaries and
// combines them with closed-trading totals into ranked rows.
package leaderboard

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/vadiminshakov/perpstats/internal/entity"
)

// SummarizeOpen folds every open ValuedPosition into per-account summaries.
// Summaries are created lazily on the first position seen for an account and
// rebuilt from scratch each pass.
func SummarizeOpen(positions []entity.ValuedPosition) map[common.Address]*entity.OpenPositionSummary {
	summaries := make(map[common.Address]*entity.OpenPositionSummary)
	for _, p := range positions {
		account := p.Record.Account
		summary, ok := summaries[account]
		if !ok {
			summary = entity.NewOpenPositionSummary(account)
			summaries[account] = summary
		}

		summary.OpenCount++
		summary.UnrealizedPnl = summary.UnrealizedPnl.Add(p.Pnl)
		summary.SumMaxSize = summary.SumMaxSize.Add(p.Record.SizeInUsd)
		summary.PendingBorrowingFeeUsd = summary.PendingBorrowingFeeUsd.Add(p.PendingBorrowingFeeUsd)
		summary.PendingFundingFeeUsd = summary.PendingFundingFeeUsd.Add(p.PendingFundingFeeUsd)
		summary.ClosingFeeUsd = summary.ClosingFeeUsd.Add(p.ClosingFeeUsd)
	}
	return summaries
}
