package pricefeed

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/perpstats/internal/entity"
)

// BybitSource builds price snapshots from Bybit spot tickers.
type BybitSource struct {
	client *bybit.Client
}

// NewBybitSource creates a Bybit-backed snapshot source.
func NewBybitSource(client *bybit.Client) *BybitSource {
	return &BybitSource{client: client}
}

func (s *BybitSource) Snapshots(ctx context.Context, tokens []entity.Token) (map[common.Address]entity.PriceSnapshot, error) {
	out := make(map[common.Address]entity.PriceSnapshot, len(tokens))
	for _, token := range tokens {
		symbol := bybit.SymbolV5(token.Symbol + quoteSymbol)

		result, err := s.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   &symbol,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch ticker for %s", symbol)
		}
		if len(result.Result.Spot.List) == 0 {
			return nil, errors.Errorf("bybit API returned empty ticker for %s", symbol)
		}

		item := result.Result.Spot.List[0]
		bid, err := decimal.NewFromString(item.Bid1Price)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid bid price for %s", symbol)
		}
		ask, err := decimal.NewFromString(item.Ask1Price)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid ask price for %s", symbol)
		}

		out[token.Address] = entity.PriceSnapshot{
			Min: toPrice(bid, token),
			Max: toPrice(ask, token),
		}
	}
	return out, nil
}
