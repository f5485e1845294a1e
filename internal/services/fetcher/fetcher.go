// Package fetcher provides the paginated "fetch everything" primitive shared
// by every list-shaped indexer data source.
package fetcher

import (
	"context"

	"github.com/pkg/errors"
)

// DefaultPageSize is the page size the indexer serves.
const DefaultPageSize = 1000

// PageFunc retrieves one page of records at the given offset. A nil or empty
// result signals data exhaustion.
type PageFunc[T any] func(ctx context.Context, pageSize, offset int) ([]T, error)

// FetchAll calls fn with increasing offsets until it returns an empty page,
// concatenating the results. The first failed page call fails the whole fetch;
// there is no retry layer here and no partial result. Records keep the
// server-assigned order; FetchAll never re-sorts.
func FetchAll[T any](ctx context.Context, pageSize int, fn PageFunc[T]) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []T
	for offset := 0; ; offset += pageSize {
		page, err := fn(ctx, pageSize, offset)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch page at offset %d", offset)
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
	}
}
