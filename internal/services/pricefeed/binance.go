package pricefeed

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/perpstats/internal/entity"
)

// BinanceSource builds price snapshots from Binance book tickers: the best
// bid becomes the Min price, the best ask the Max.
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource creates a Binance-backed snapshot source.
func NewBinanceSource(client *binance.Client) *BinanceSource {
	return &BinanceSource{client: client}
}

func (s *BinanceSource) Snapshots(ctx context.Context, tokens []entity.Token) (map[common.Address]entity.PriceSnapshot, error) {
	out := make(map[common.Address]entity.PriceSnapshot, len(tokens))
	for _, token := range tokens {
		symbol := token.Symbol + quoteSymbol

		tickers, err := s.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch book ticker for %s", symbol)
		}
		if len(tickers) == 0 {
			return nil, errors.Errorf("binance API returned empty book ticker for %s", symbol)
		}

		bid, err := decimal.NewFromString(tickers[0].BidPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid bid price for %s", symbol)
		}
		ask, err := decimal.NewFromString(tickers[0].AskPrice)
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
