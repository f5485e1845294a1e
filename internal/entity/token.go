package entity

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

// UsdScale is the fixed-point scale shared by every USD-denominated value.
const UsdScale int32 = 30

// BpsScale is the scale used for basis-point ratios (divisor 10000).
const BpsScale int32 = 4

// Token describes an ERC-20 token the protocol trades or collateralizes with.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals int32
}

// PriceScale returns the scale token prices are expressed at, chosen so that
// amount(Decimals) * price(PriceScale) lands exactly on UsdScale.
func (t Token) PriceScale() int32 { return UsdScale - t.Decimals }

// PriceSnapshot brackets a token price at a point in time. Min is used when
// the valued flow sells the token, Max when it buys.
type PriceSnapshot struct {
	Min fixed.Value
	Max fixed.Value
}

// Market describes a perpetual market: the index token the price feed tracks
// plus the long/short backing tokens.
type Market struct {
	Address    common.Address
	Name       string
	IndexToken common.Address
	LongToken  common.Address
	ShortToken common.Address
}
