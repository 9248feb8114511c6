package inspirehub

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// DefaultPageSize is used when a feed is created with a non-positive size.
const DefaultPageSize = 10

var (
	// ErrLoadInFlight is returned by [Feed.LoadPage] while another load runs.
	ErrLoadInFlight = errors.New("page load already in flight")
	// ErrFeedMoved is returned by [Feed.LoadPage] when [Feed.Reset] or
	// [Feed.Seek] ran while the page was loading. The page is dropped.
	ErrFeedMoved = errors.New("feed moved during page load")
)

// Mode selects how a loaded page is merged into the feed view.
type Mode int

const (
	// ModeAppend concatenates the page to the current view (infinite scroll).
	ModeAppend Mode = iota
	// ModeReplace replaces the current view with the page (page navigation).
	ModeReplace
)

func (m Mode) String() string {
	if m == ModeReplace {
		return "replace"
	}
	return "append"
}

// Cursor is the pagination state of a feed.
type Cursor struct {
	PageSize int
	Offset   int
	HasMore  bool
}

// Feed pages through a listing with offset/limit requests and keeps the
// merged view. Callers should not start a load while [Feed.Loading] is
// true; a concurrent load fails with [ErrLoadInFlight].
type Feed[T any] struct {
	fetch PageFunc[T]

	mu      sync.Mutex
	cursor  Cursor
	items   []T
	loading bool
	// gen changes on Reset and Seek; a load started under an older
	// generation is discarded.
	gen uint64
}

// NewFeed returns a feed positioned at offset zero.
func NewFeed[T any](pageSize int, fetch PageFunc[T]) *Feed[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Feed[T]{
		fetch:  fetch,
		cursor: Cursor{PageSize: pageSize, HasMore: true},
	}
}

// LoadPage requests the page at the current offset and merges it into
// the view according to mode. On success HasMore reports whether the
// page was full and the offset moves past the returned items. On error,
// or when the feed was reset or moved meanwhile, the cursor and view are
// left untouched.
func (f *Feed[T]) LoadPage(ctx context.Context, mode Mode) ([]T, error) {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return nil, ErrLoadInFlight
	}
	f.loading = true
	gen := f.gen
	params := PageParams{Offset: f.cursor.Offset, Limit: f.cursor.PageSize}
	f.mu.Unlock()

	items, err := f.fetch(ctx, params)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.loading = false
	if err != nil {
		return nil, err
	}
	if gen != f.gen {
		return nil, ErrFeedMoved
	}

	f.cursor.HasMore = len(items) == f.cursor.PageSize
	f.cursor.Offset += len(items)

	switch mode {
	case ModeReplace:
		f.items = append([]T(nil), items...)
	default:
		f.items = append(f.items, items...)
	}

	return f.view(), nil
}

// Reset moves the cursor back to the first page and empties the view,
// e.g. after a filter change.
func (f *Feed[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.cursor.Offset = 0
	f.cursor.HasMore = true
	f.items = nil
}

// Seek positions the cursor at the zero-based page for navigation in
// [ModeReplace]. The view is kept until the next load.
func (f *Feed[T]) Seek(page int) {
	if page < 0 {
		page = 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.cursor.Offset = page * f.cursor.PageSize
	f.cursor.HasMore = true
}

// Cursor returns a copy of the pagination state.
func (f *Feed[T]) Cursor() Cursor {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cursor
}

// Items returns a copy of the current view.
func (f *Feed[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.view()
}

// Loading reports whether a page load is in flight.
func (f *Feed[T]) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loading
}

// All iterates every item from the first page on, independent of the
// feed's cursor.
func (f *Feed[T]) All(ctx context.Context) iter.Seq2[T, error] {
	f.mu.Lock()
	size := f.cursor.PageSize
	f.mu.Unlock()

	return iterate(ctx, size, f.fetch)
}

func (f *Feed[T]) view() []T {
	return append([]T(nil), f.items...)
}
