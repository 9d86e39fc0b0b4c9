package tulip

// paginator.go turns the offset-paged records endpoint into one lazy
// sequence of records.
//
// Pages are requested strictly one after another: offset N+1 is only known
// once page N has been consumed. Iteration stops when
//
//   - a page comes back empty,
//   - fewer records have been yielded than the offset reached (short page),
//   - the limit check fails, or
//   - a request fails (the error is kept in Err).
//
// The limit check runs before each record is yielded and compares the
// number of records already yielded against Limit with ">", so a stream
// with Limit L yields up to L+1 records. Callers relying on the exact
// count should keep that in mind.

import (
	"context"
	"iter"
)

// Page size bounds accepted by the records endpoint.
const (
	MinChunkSize = 1
	MaxChunkSize = 100
)

// StreamOptions configures Table.Stream. Start from DefaultStreamOptions;
// a zero ChunkSize is rejected like any other out of range value.
type StreamOptions struct {
	Filters          []Filter
	SortBy           string
	SortAsc          bool
	FilterAggregator FilterAggregator
	ChunkSize        int
	Limit            *int // nil streams everything
}

// DefaultStreamOptions returns options sorted by _updatedAt descending,
// combining filters with "all", in pages of MaxChunkSize, unbounded.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		SortBy:           DefaultSortBy,
		FilterAggregator: AggregateAll,
		ChunkSize:        MaxChunkSize,
	}
}

// Limit returns a pointer to n, for StreamOptions.Limit.
func Limit(n int) *int { return &n }

// RecordIterator pulls records page by page. Use it like bufio.Scanner:
//
//	it, err := table.Stream(tulip.DefaultStreamOptions())
//	if err != nil { ... }
//	for it.Next(ctx) {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil { ... }
//
// An iterator is single use; call Stream again to start over.
type RecordIterator struct {
	table *Table
	opts  StreamOptions

	offset  int
	yielded int
	page    []Record
	pos     int
	started bool
	pages   int

	cur  Record
	err  error
	done bool
}

// Stream returns an iterator over the table's records. It fails with
// *InvalidPageSizeError before any request when ChunkSize is outside
// [MinChunkSize, MaxChunkSize].
func (t *Table) Stream(opts StreamOptions) (*RecordIterator, error) {
	if opts.ChunkSize < MinChunkSize || opts.ChunkSize > MaxChunkSize {
		return nil, &InvalidPageSizeError{Size: opts.ChunkSize}
	}
	return &RecordIterator{table: t, opts: opts}, nil
}

// Next advances to the next record, fetching a new page when needed.
// It returns false once the stream is exhausted or a request failed.
func (it *RecordIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}

	for {
		if it.pos < len(it.page) {
			if it.opts.Limit != nil && it.yielded > *it.opts.Limit {
				// Skip the rest of this page; the page-end checks below
				// decide whether another request is made.
				it.pos = len(it.page)
				continue
			}
			it.cur = it.page[it.pos]
			it.pos++
			it.yielded++
			return true
		}

		if it.started {
			it.offset += it.opts.ChunkSize
			if it.yielded < it.offset {
				return it.finish(nil)
			}
		}

		page, err := it.table.Records(ctx, ListOptions{
			Limit:            it.opts.ChunkSize,
			Offset:           it.offset,
			Filters:          it.opts.Filters,
			SortBy:           it.opts.SortBy,
			SortAsc:          it.opts.SortAsc,
			FilterAggregator: it.opts.FilterAggregator,
		})
		it.pages++
		if err != nil {
			return it.finish(err)
		}
		if len(page) == 0 {
			return it.finish(nil)
		}
		it.started = true
		it.page = page
		it.pos = 0
	}
}

func (it *RecordIterator) finish(err error) bool {
	it.err = err
	it.done = true
	it.cur = nil
	it.page = nil
	return false
}

// Record returns the record produced by the last successful Next.
func (it *RecordIterator) Record() Record { return it.cur }

// Err returns the first request error, if any.
func (it *RecordIterator) Err() error { return it.err }

// Pages returns the number of page requests issued so far.
func (it *RecordIterator) Pages() int { return it.pages }

// All drains the iterator into a slice.
func (it *RecordIterator) All(ctx context.Context) ([]Record, error) {
	var out []Record
	for it.Next(ctx) {
		out = append(out, it.Record())
	}
	return out, it.Err()
}

// Seq adapts the iterator to a range-over-func sequence. A request failure
// is yielded once as (nil, err) and ends the sequence.
func (it *RecordIterator) Seq(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for it.Next(ctx) {
			if !yield(it.Record(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}
