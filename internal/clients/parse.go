package clients

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vadiminshakov/perpstats/internal/entity"
	"github.com/vadiminshakov/perpstats/pkg/fixed"
)

// ParseError reports a malformed field in an externally supplied record.
// Loosely-typed data is rejected at this boundary instead of propagating
// inward.
type ParseError struct {
	Field string
	Value any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse: invalid %s value %v", e.Field, e.Value)
}

// PositionTuple is the loosely-typed position+fees tuple returned per key by
// the batched on-chain reader. Numeric fields arrive as base-10 integer
// strings in raw on-chain units.
type PositionTuple map[string]any

// ParsePositionTuple converts one reader tuple into a strongly-typed
// RawPositionRecord, rejecting malformed fields with a ParseError.
func ParsePositionTuple(t PositionTuple) (entity.RawPositionRecord, error) {
	var record entity.RawPositionRecord
	var err error

	if record.Key, err = hashField(t, "key"); err != nil {
		return entity.RawPositionRecord{}, err
	}
	if record.Account, err = addressField(t, "account"); err != nil {
		return entity.RawPositionRecord{}, err
	}
	if record.Market, err = addressField(t, "market"); err != nil {
		return entity.RawPositionRecord{}, err
	}
	if record.CollateralToken, err = addressField(t, "collateralToken"); err != nil {
		return entity.RawPositionRecord{}, err
	}
	if record.IsLong, err = boolField(t, "isLong"); err != nil {
		return entity.RawPositionRecord{}, err
	}

	sizeInUsd, err := bigField(t, "sizeInUsd")
	if err != nil {
		return entity.RawPositionRecord{}, err
	}
	record.SizeInUsd = fixed.New(sizeInUsd, entity.UsdScale)

	if record.SizeInTokens, err = bigField(t, "sizeInTokens"); err != nil {
		return entity.RawPositionRecord{}, err
	}
	if record.CollateralAmount, err = bigField(t, "collateralAmount"); err != nil {
		return entity.RawPositionRecord{}, err
	}

	borrowingFee, err := bigField(t, "borrowingFeeUsd")
	if err != nil {
		return entity.RawPositionRecord{}, err
	}
	record.PendingBorrowingFeeUsd = fixed.New(borrowingFee, entity.UsdScale)

	if record.FundingFeeAmount, err = bigField(t, "fundingFeeAmount"); err != nil {
		return entity.RawPositionRecord{}, err
	}
	if record.ClaimableLongTokenAmount, err = bigField(t, "claimableLongTokenAmount"); err != nil {
		return entity.RawPositionRecord{}, err
	}
	if record.ClaimableShortTokenAmount, err = bigField(t, "claimableShortTokenAmount"); err != nil {
		return entity.RawPositionRecord{}, err
	}

	if record.ClosingImprovesBalance, err = boolField(t, "closingImprovesBalance"); err != nil {
		return entity.RawPositionRecord{}, err
	}

	if record.IncreasedAtBlock, err = uintField(t, "increasedAtBlock"); err != nil {
		return entity.RawPositionRecord{}, err
	}
	if record.DecreasedAtBlock, err = uintField(t, "decreasedAtBlock"); err != nil {
		return entity.RawPositionRecord{}, err
	}

	increasedAt, err := uintField(t, "increasedAt")
	if err != nil {
		return entity.RawPositionRecord{}, err
	}
	record.IncreasedAtTime = int64(increasedAt)

	return record, nil
}

// ParsePositionTuples parses a whole reader response, failing on the first
// malformed tuple.
func ParsePositionTuples(tuples []PositionTuple) ([]entity.RawPositionRecord, error) {
	records := make([]entity.RawPositionRecord, 0, len(tuples))
	for _, t := range tuples {
		record, err := ParsePositionTuple(t)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func stringField(t PositionTuple, field string) (string, error) {
	v, ok := t[field]
	if !ok {
		return "", &ParseError{Field: field, Value: "<missing>"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ParseError{Field: field, Value: v}
	}
	return s, nil
}

func addressField(t PositionTuple, field string) (common.Address, error) {
	s, err := stringField(t, field)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, &ParseError{Field: field, Value: s}
	}
	return common.HexToAddress(s), nil
}

func hashField(t PositionTuple, field string) (common.Hash, error) {
	s, err := stringField(t, field)
	if err != nil {
		return common.Hash{}, err
	}
	b, err := parseHex32(s)
	if err != nil {
		return common.Hash{}, &ParseError{Field: field, Value: s}
	}
	return b, nil
}

func parseHex32(s string) (common.Hash, error) {
	if len(s) != 66 || s[:2] != "0x" {
		return common.Hash{}, fmt.Errorf("not a 32-byte hex string")
	}
	for _, c := range s[2:] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return common.Hash{}, fmt.Errorf("not a hex string")
		}
	}
	return common.HexToHash(s), nil
}

func boolField(t PositionTuple, field string) (bool, error) {
	v, ok := t[field]
	if !ok {
		return false, &ParseError{Field: field, Value: "<missing>"}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ParseError{Field: field, Value: v}
	}
	return b, nil
}

func bigField(t PositionTuple, field string) (*big.Int, error) {
	s, err := stringField(t, field)
	if err != nil {
		return nil, err
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, &ParseError{Field: field, Value: s}
	}
	return i, nil
}

func uintField(t PositionTuple, field string) (uint64, error) {
	s, err := stringField(t, field)
	if err != nil {
		return 0, err
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok || i.Sign() < 0 || !i.IsUint64() {
		return 0, &ParseError{Field: field, Value: s}
	}
	return i.Uint64(), nil
}
