// Package perf folds per-account performance-period records into cumulative
// per-account totals.
package perf

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpstats/internal/entity"
)

// Aggregator accumulates performance records grouped by account.
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates a performance aggregator.
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.L()
	}
	return &Aggregator{logger: logger}
}

// Aggregate folds the records of one aggregation pass into per-account
// totals. Accounts are keyed by their case-normalized address; the returned
// order lists accounts by first appearance so downstream ranking stays stable
// across ties. The indexer is expected to return at most one record per
// account per period; a second record for an account already seen is a data
// anomaly that is logged and then merged defensively rather than dropped.
func (a *Aggregator) Aggregate(records []entity.PerformanceRecord) (map[common.Address]*entity.PerformanceTotal, []common.Address) {
	totals := make(map[common.Address]*entity.PerformanceTotal, len(records))
	order := make([]common.Address, 0, len(records))
	for _, record := range records {
		// common.Address is the canonical byte form, so mixed-case source
		// strings collapse to one key at parse time; nothing extra needed here.
		account := record.Account

		total, seen := totals[account]
		if !seen {
			total = entity.NewPerformanceTotal(account)
			totals[account] = total
			order = append(order, account)
		} else {
			a.logger.Warn("duplicate performance period for account, merging defensively",
				zap.String("account", account.Hex()),
				zap.String("period", record.Period.String()),
				zap.String("record_id", record.ID))
		}
		total.Merge(record)
	}
	return totals, order
}
