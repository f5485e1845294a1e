package pricefeed

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/perpstats/internal/entity"
)

// HyperliquidSource builds price snapshots from the Hyperliquid public Info
// API. Mids carry no spread, so Min and Max coincide.
type HyperliquidSource struct {
	info *hyperliquid.Info
}

// NewHyperliquidSource creates a Hyperliquid-backed snapshot source.
func NewHyperliquidSource(info *hyperliquid.Info) *HyperliquidSource {
	return &HyperliquidSource{info: info}
}

func (s *HyperliquidSource) Snapshots(ctx context.Context, tokens []entity.Token) (map[common.Address]entity.PriceSnapshot, error) {
	if s.info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}

	mids, err := s.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch hyperliquid mids")
	}

	out := make(map[common.Address]entity.PriceSnapshot, len(tokens))
	for _, token := range tokens {
		// mids are keyed by base coin, e.g. "BTC"
		mid, ok := mids[token.Symbol]
		if !ok || mid == "" {
			return nil, errors.Errorf("hyperliquid API returned empty mid price for %s", token.Symbol)
		}
		d, err := decimal.NewFromString(mid)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid mid price for %s", token.Symbol)
		}

		price := toPrice(d, token)
		out[token.Address] = entity.PriceSnapshot{Min: price, Max: price}
	}
	return out, nil
}
