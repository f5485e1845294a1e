package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/perpstats/internal/entity"
	"github.com/vadiminshakov/perpstats/pkg/fixed"
	"github.com/vadiminshakov/perpstats/pkg/retrier"
)

const (
	defaultTimeout = 30 * time.Second

	// server-assigned sort keys
	orderBySize      = "sizeInUsd"
	orderByTimestamp = "timestamp"
	orderDescending  = "desc"
)

// IndexerClient queries the protocol indexer over HTTP. Transport-level
// retries live here, outside the fetch core: by the time a page call returns
// to the fetcher, its failure is final.
type IndexerClient struct {
	baseURL    string
	httpClient *http.Client
	retrier    *retrier.Retrier
}

// NewIndexerClient creates an indexer client for the given base URL.
func NewIndexerClient(baseURL string) *IndexerClient {
	return &IndexerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retrier:    retrier.New(),
	}
}

type indexerQuery struct {
	Entity         string `json:"entity"`
	PageSize       int    `json:"pageSize"`
	Offset         int    `json:"offset"`
	OrderBy        string `json:"orderBy"`
	OrderDirection string `json:"orderDirection"`
	Period         string `json:"period,omitempty"`
	SinceTimestamp int64  `json:"sinceTimestamp,omitempty"`
}

type indexerResponse struct {
	Data  []json.RawMessage `json:"data"`
	Error string            `json:"error,omitempty"`
}

type positionRow struct {
	Key                       string `json:"key"`
	Account                   string `json:"account"`
	Market                    string `json:"market"`
	CollateralToken           string `json:"collateralToken"`
	IsLong                    bool   `json:"isLong"`
	SizeInUsd                 string `json:"sizeInUsd"`
	SizeInTokens              string `json:"sizeInTokens"`
	CollateralAmount          string `json:"collateralAmount"`
	BorrowingFeeUsd           string `json:"borrowingFeeUsd"`
	FundingFeeAmount          string `json:"fundingFeeAmount"`
	ClaimableLongTokenAmount  string `json:"claimableLongTokenAmount"`
	ClaimableShortTokenAmount string `json:"claimableShortTokenAmount"`
	ClosingImprovesBalance    bool   `json:"closingImprovesBalance"`
	IncreasedAtBlock          string `json:"increasedAtBlock"`
	DecreasedAtBlock          string `json:"decreasedAtBlock"`
	IncreasedAt               string `json:"increasedAt"`
}

type performanceRow struct {
	ID               string `json:"id"`
	Account          string `json:"account"`
	Period           string `json:"period"`
	Timestamp        int64  `json:"timestamp"`
	Wins             int64  `json:"wins"`
	Losses           int64  `json:"losses"`
	TotalPnl         string `json:"totalPnl"`
	TotalCollateral  string `json:"totalCollateral"`
	MaxCollateral    string `json:"maxCollateral"`
	CumsumSize       string `json:"cumsumSize"`
	CumsumCollateral string `json:"cumsumCollateral"`
	SumMaxSize       string `json:"sumMaxSize"`
	ClosedCount      int64  `json:"closedCount"`
	BorrowingFeeUsd  string `json:"borrowingFeeUsd"`
	FundingFeeUsd    string `json:"fundingFeeUsd"`
	PositionFeeUsd   string `json:"positionFeeUsd"`
	PriceImpactUsd   string `json:"priceImpactUsd"`
}

// PositionsPage returns one page of open positions, sorted by the indexer by
// size descending.
func (c *IndexerClient) PositionsPage(ctx context.Context, pageSize, offset int) ([]entity.RawPositionRecord, error) {
	raw, err := c.query(ctx, indexerQuery{
		Entity:         "positions",
		PageSize:       pageSize,
		Offset:         offset,
		OrderBy:        orderBySize,
		OrderDirection: orderDescending,
	})
	if err != nil {
		return nil, err
	}

	records := make([]entity.RawPositionRecord, 0, len(raw))
	for _, msg := range raw {
		var row positionRow
		if err := json.Unmarshal(msg, &row); err != nil {
			return nil, errors.Wrap(err, "failed to decode position row")
		}
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// PerformancePage returns one page of account performance records for the
// given period classification, restricted to records at or after since.
func (c *IndexerClient) PerformancePage(ctx context.Context, period entity.Period, since time.Time, pageSize, offset int) ([]entity.PerformanceRecord, error) {
	raw, err := c.query(ctx, indexerQuery{
		Entity:         "accountPerformances",
		PageSize:       pageSize,
		Offset:         offset,
		OrderBy:        orderByTimestamp,
		OrderDirection: orderDescending,
		Period:         period.String(),
		SinceTimestamp: since.Unix(),
	})
	if err != nil {
		return nil, err
	}

	records := make([]entity.PerformanceRecord, 0, len(raw))
	for _, msg := range raw {
		var row performanceRow
		if err := json.Unmarshal(msg, &row); err != nil {
			return nil, errors.Wrap(err, "failed to decode performance row")
		}
		record, err := row.toRecord(period)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *IndexerClient) query(ctx context.Context, q indexerQuery) ([]json.RawMessage, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode indexer query")
	}

	return retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) ([]json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "failed to build indexer request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "indexer request failed")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read indexer response")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("indexer returned status %d: %s", resp.StatusCode, string(respBody))
		}

		var decoded indexerResponse
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return nil, errors.Wrap(err, "failed to decode indexer response")
		}
		if decoded.Error != "" {
			return nil, errors.Errorf("indexer error: %s", decoded.Error)
		}
		return decoded.Data, nil
	})
}

func (r positionRow) toRecord() (entity.RawPositionRecord, error) {
	t := PositionTuple{
		"key":                       r.Key,
		"account":                   r.Account,
		"market":                    r.Market,
		"collateralToken":           r.CollateralToken,
		"isLong":                    r.IsLong,
		"sizeInUsd":                 r.SizeInUsd,
		"sizeInTokens":              r.SizeInTokens,
		"collateralAmount":          r.CollateralAmount,
		"borrowingFeeUsd":           r.BorrowingFeeUsd,
		"fundingFeeAmount":          r.FundingFeeAmount,
		"claimableLongTokenAmount":  r.ClaimableLongTokenAmount,
		"claimableShortTokenAmount": r.ClaimableShortTokenAmount,
		"closingImprovesBalance":    r.ClosingImprovesBalance,
		"increasedAtBlock":          r.IncreasedAtBlock,
		"decreasedAtBlock":          r.DecreasedAtBlock,
		"increasedAt":               r.IncreasedAt,
	}
	return ParsePositionTuple(t)
}

func (r performanceRow) toRecord(period entity.Period) (entity.PerformanceRecord, error) {
	if !common.IsHexAddress(r.Account) {
		return entity.PerformanceRecord{}, &ParseError{Field: "account", Value: r.Account}
	}

	usd := func(field, s string) (fixed.Value, error) {
		v, err := fixed.FromString(s, entity.UsdScale)
		if err != nil {
			return fixed.Value{}, &ParseError{Field: field, Value: s}
		}
		return v, nil
	}

	record := entity.PerformanceRecord{
		ID:          r.ID,
		Account:     common.HexToAddress(r.Account),
		Period:      period,
		Timestamp:   r.Timestamp,
		Wins:        r.Wins,
		Losses:      r.Losses,
		ClosedCount: r.ClosedCount,
	}

	var err error
	if record.TotalPnl, err = usd("totalPnl", r.TotalPnl); err != nil {
		return entity.PerformanceRecord{}, err
	}
	if record.TotalCollateral, err = usd("totalCollateral", r.TotalCollateral); err != nil {
		return entity.PerformanceRecord{}, err
	}
	if record.MaxCollateral, err = usd("maxCollateral", r.MaxCollateral); err != nil {
		return entity.PerformanceRecord{}, err
	}
	if record.CumsumSize, err = usd("cumsumSize", r.CumsumSize); err != nil {
		return entity.PerformanceRecord{}, err
	}
	if record.CumsumCollateral, err = usd("cumsumCollateral", r.CumsumCollateral); err != nil {
		return entity.PerformanceRecord{}, err
	}
	if record.SumMaxSize, err = usd("sumMaxSize", r.SumMaxSize); err != nil {
		return entity.PerformanceRecord{}, err
	}
	if record.BorrowingFeeUsd, err = usd("borrowingFeeUsd", r.BorrowingFeeUsd); err != nil {
		return entity.PerformanceRecord{}, err
	}
	if record.FundingFeeUsd, err = usd("fundingFeeUsd", r.FundingFeeUsd); err != nil {
		return entity.PerformanceRecord{}, err
	}
	if record.PositionFeeUsd, err = usd("positionFeeUsd", r.PositionFeeUsd); err != nil {
		return entity.PerformanceRecord{}, err
	}
	if record.PriceImpactUsd, err = usd("priceImpactUsd", r.PriceImpactUsd); err != nil {
		return entity.PerformanceRecord{}, err
	}
	return record, nil
}
