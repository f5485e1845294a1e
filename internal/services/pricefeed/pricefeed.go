// Package pricefeed adapts exchange market-data APIs into the PriceSnapshot
// map the valuation engine consumes.
package pricefeed

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/perpstats/internal/entity"
	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

// SnapshotSource supplies current price snapshots for a set of tokens.
type SnapshotSource interface {
	Snapshots(ctx context.Context, tokens []entity.Token) (map[common.Address]entity.PriceSnapshot, error)
}

// quoteSymbol is appended to a token symbol to form an exchange pair symbol.
const quoteSymbol = "USDT"

// toPrice converts an exchange decimal price into the token's fixed price
// scale, truncating sub-scale digits.
func toPrice(d decimal.Decimal, token entity.Token) fixed.Value {
	scale := token.PriceScale()
	return fixed.New(d.Shift(scale).BigInt(), scale)
}
