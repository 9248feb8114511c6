package inspirehub

import (
	"context"
	"iter"
)

// PageFunc fetches a single page of items T.
type PageFunc[T any] func(context.Context, PageParams) ([]T, error)

// iterate returns an iterator that walks through all pages using the
// provided fetcher. It stops after the first short page.
func iterate[T any](ctx context.Context, limit int, fetch PageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		params := PageParams{Offset: 0, Limit: limit}

		for {
			items, err := fetch(ctx, params)
			if err != nil {
				yield(*new(T), err)
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			if len(items) < params.Limit || len(items) == 0 {
				return
			}
			params.Offset += len(items)
		}
	}
}
