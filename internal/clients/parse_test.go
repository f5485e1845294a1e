package clients

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/perpstats/internal/entity"
)

func validTuple() PositionTuple {
	return PositionTuple{
		"key":                       "0x00000000000000000000000000000000000000000000000000000000000000aa",
		"account":                   "0x3000000000000000000000000000000000000001",
		"market":                    "0x2000000000000000000000000000000000000001",
		"collateralToken":           "0x1000000000000000000000000000000000000002",
		"isLong":                    true,
		"sizeInUsd":                 "2500000000000000000000000000000000",
		"sizeInTokens":              "2000000000000000000",
		"collateralAmount":          "1000000000",
		"borrowingFeeUsd":           "0",
		"fundingFeeAmount":          "0",
		"claimableLongTokenAmount":  "0",
		"claimableShortTokenAmount": "0",
		"closingImprovesBalance":    false,
		"increasedAtBlock":          "18000000",
		"decreasedAtBlock":          "0",
		"increasedAt":               "1700000000",
	}
}

func TestParsePositionTuple(t *testing.T) {
	record, err := ParsePositionTuple(validTuple())
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0x3000000000000000000000000000000000000001"), record.Account)
	assert.True(t, record.IsLong)
	assert.Equal(t, int32(entity.UsdScale), record.SizeInUsd.Scale())
	assert.Equal(t, "2000000000000000000", record.SizeInTokens.String())
	assert.Equal(t, uint64(18000000), record.IncreasedAtBlock)
	assert.False(t, record.IsEmpty())
}

func TestParsePositionTupleRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"missing field", "account", nil},
		{"bad address", "market", "not-an-address"},
		{"bad hash", "key", "0x1234"},
		{"non-numeric amount", "sizeInUsd", "12.5"},
		{"numeric type confusion", "sizeInTokens", 42},
		{"bool type confusion", "isLong", "true"},
		{"negative block", "increasedAtBlock", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tuple := validTuple()
			if tt.value == nil {
				delete(tuple, tt.field)
			} else {
				tuple[tt.field] = tt.value
			}

			_, err := ParsePositionTuple(tuple)
			require.Error(t, err)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.field, parseErr.Field)
		})
	}
}

func TestParsePositionTuplesFailsOnFirstBadRecord(t *testing.T) {
	bad := validTuple()
	bad["account"] = "oops"

	records, err := ParsePositionTuples([]PositionTuple{validTuple(), bad})
	assert.Nil(t, records)
	assert.Error(t, err)
}

func TestParseEmptySlot(t *testing.T) {
	tuple := validTuple()
	tuple["increasedAtBlock"] = "0"

	record, err := ParsePositionTuple(tuple)
	require.NoError(t, err)
	assert.True(t, record.IsEmpty(), "a never-increased slot parses fine and is skipped later")
}
