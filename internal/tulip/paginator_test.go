package tulip

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
)

func TestStream_YieldsEveryRecordOnce(t *testing.T) {
	tests := []struct {
		name      string
		records   int
		chunk     int
		wantPages int
	}{
		{"short last page", 250, 100, 3},
		{"exact multiple needs an empty page", 200, 100, 3},
		{"single short page", 7, 100, 1},
		{"empty table", 0, 100, 1},
		{"chunk of one", 3, 1, 4},
		{"small chunks", 10, 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := pagedTable(tt.records)
			opts := DefaultStreamOptions()
			opts.ChunkSize = tt.chunk

			it, err := NewTable(api, "t").Stream(opts)
			if err != nil {
				t.Fatalf("Stream: %v", err)
			}
			records := mustDrain(t, it)

			if len(records) != tt.records {
				t.Fatalf("got %d records, want %d", len(records), tt.records)
			}
			seen := make(map[string]bool)
			for i, id := range recordIDs(records) {
				if seen[id] {
					t.Errorf("record %s yielded twice", id)
				}
				seen[id] = true
				if want := "r" + strconv.Itoa(i); id != want {
					t.Errorf("record %d = %s, want %s", i, id, want)
				}
			}
			if got := api.count(http.MethodGet); got != tt.wantPages {
				t.Errorf("page requests = %d, want %d", got, tt.wantPages)
			}
			if it.Pages() != tt.wantPages {
				t.Errorf("Pages() = %d, want %d", it.Pages(), tt.wantPages)
			}
		})
	}
}

func TestStream_LimitYieldsOneExtraRecord(t *testing.T) {
	for limit, want := range map[int]int{0: 1, 1: 2, 2: 3, 5: 6} {
		t.Run("limit "+strconv.Itoa(limit), func(t *testing.T) {
			opts := DefaultStreamOptions()
			opts.Limit = Limit(limit)

			it, err := NewTable(pagedTable(50), "t").Stream(opts)
			if err != nil {
				t.Fatalf("Stream: %v", err)
			}
			if got := len(mustDrain(t, it)); got != want {
				t.Errorf("got %d records, want %d", got, want)
			}
		})
	}
}

func TestStream_LimitStopsPaging(t *testing.T) {
	api := pagedTable(10)
	opts := DefaultStreamOptions()
	opts.ChunkSize = 2
	opts.Limit = Limit(1)

	it, err := NewTable(api, "t").Stream(opts)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	records := mustDrain(t, it)

	if got := recordIDs(records); len(got) != 2 || got[0] != "r0" || got[1] != "r1" {
		t.Errorf("records = %v, want [r0 r1]", got)
	}
	// The first page was full, so one more page is fetched and discarded.
	if got := api.count(http.MethodGet); got != 2 {
		t.Errorf("page requests = %d, want 2", got)
	}
}

func TestStream_RejectsChunkSizeBeforeRequesting(t *testing.T) {
	for _, size := range []int{0, -1, 101, 1000} {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			api := pagedTable(5)
			opts := DefaultStreamOptions()
			opts.ChunkSize = size

			_, err := NewTable(api, "t").Stream(opts)
			if !errors.Is(err, ErrInvalidPageSize) {
				t.Fatalf("expected ErrInvalidPageSize, got %v", err)
			}
			var pe *InvalidPageSizeError
			if !errors.As(err, &pe) || pe.Size != size {
				t.Errorf("error = %#v, want size %d", err, size)
			}
			if n := len(api.Calls()); n != 0 {
				t.Errorf("made %d requests, want 0", n)
			}
		})
	}
}

func TestStream_AcceptsBoundaryChunkSizes(t *testing.T) {
	for _, size := range []int{MinChunkSize, MaxChunkSize} {
		opts := DefaultStreamOptions()
		opts.ChunkSize = size
		if _, err := NewTable(pagedTable(1), "t").Stream(opts); err != nil {
			t.Errorf("chunk size %d rejected: %v", size, err)
		}
	}
}

func TestStream_QueryParameters(t *testing.T) {
	api := pagedTable(0)
	opts := DefaultStreamOptions()
	opts.ChunkSize = 25
	opts.SortBy = "name"
	opts.SortAsc = true
	opts.FilterAggregator = AggregateAny
	opts.Filters = []Filter{
		{Field: "status", FunctionType: FilterEqual, Arg: StringValue("open")},
		{Field: "count", FunctionType: FilterGreaterThan, Arg: IntValue(3)},
	}

	it, err := NewTable(api, "my table").Stream(opts)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	mustDrain(t, it)

	calls := api.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	call := calls[0]
	if call.Path != "tables/my%20table/records" {
		t.Errorf("path = %q", call.Path)
	}

	want := map[string]string{
		"limit":                  "25",
		"offset":                 "0",
		"sortBy":                 "name",
		"sortDir":                "asc",
		"filterAggregator":       "any",
		"filters.0.field":        "status",
		"filters.0.functionType": "equal",
		"filters.0.arg":          "open",
		"filters.1.field":        "count",
		"filters.1.functionType": "greaterThan",
		"filters.1.arg":          "3",
	}
	for k, v := range want {
		if got := call.Query.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
}

func TestStream_DefaultQuery(t *testing.T) {
	api := pagedTable(0)
	it, err := NewTable(api, "t").Stream(DefaultStreamOptions())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	mustDrain(t, it)

	q := api.Calls()[0].Query
	if q.Get("sortBy") != "_updatedAt" || q.Get("sortDir") != "desc" || q.Get("filterAggregator") != "all" {
		t.Errorf("default query = %v", q)
	}
}

func TestStream_OffsetsAdvanceByChunk(t *testing.T) {
	api := pagedTable(7)
	opts := DefaultStreamOptions()
	opts.ChunkSize = 3

	it, err := NewTable(api, "t").Stream(opts)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	mustDrain(t, it)

	var offsets []string
	for _, c := range api.Calls() {
		offsets = append(offsets, c.Query.Get("offset"))
	}
	if len(offsets) != 3 || offsets[0] != "0" || offsets[1] != "3" || offsets[2] != "6" {
		t.Errorf("offsets = %v, want [0 3 6]", offsets)
	}
}

func TestStream_RequestErrorEndsStream(t *testing.T) {
	inner := pagedTable(10)
	api := &fakeRequester{handle: func(call fakeCall) (any, error) {
		if call.Query.Get("offset") == "2" {
			return nil, apiError(call.Method, call.Path, http.StatusInternalServerError)
		}
		return inner.handle(call)
	}}

	opts := DefaultStreamOptions()
	opts.ChunkSize = 2
	it, err := NewTable(api, "t").Stream(opts)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	records, err := it.All(context.Background())
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records before the failure, want 2", len(records))
	}
	if it.Next(context.Background()) {
		t.Error("Next returned true after a failure")
	}
	if n := len(api.Calls()); n != 2 {
		t.Errorf("made %d requests, want 2", n)
	}
}

func TestStream_IndependentCursors(t *testing.T) {
	table := NewTable(pagedTable(5), "t")

	a, _ := table.Stream(DefaultStreamOptions())
	b, _ := table.Stream(DefaultStreamOptions())

	ctx := context.Background()
	a.Next(ctx)
	a.Next(ctx)

	if got := len(mustDrain(t, b)); got != 5 {
		t.Errorf("second cursor yielded %d records, want 5", got)
	}
	if got := len(mustDrain(t, a)); got != 3 {
		t.Errorf("first cursor yielded %d remaining records, want 3", got)
	}
}

func TestStream_Seq(t *testing.T) {
	it, err := NewTable(pagedTable(30), "t").Stream(DefaultStreamOptions())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var ids []string
	for rec, err := range it.Seq(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, rec.ID())
		if len(ids) == 4 {
			break
		}
	}
	if len(ids) != 4 || ids[3] != "r3" {
		t.Errorf("ids = %v", ids)
	}
}

func TestStream_SeqYieldsError(t *testing.T) {
	api := &fakeRequester{handle: func(call fakeCall) (any, error) {
		return nil, apiError(call.Method, call.Path, http.StatusUnauthorized)
	}}
	it, _ := NewTable(api, "t").Stream(DefaultStreamOptions())

	var errs []error
	for rec, err := range it.Seq(context.Background()) {
		if rec != nil {
			t.Errorf("unexpected record %v", rec)
		}
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrUnauthorized) {
		t.Errorf("errors = %v, want one ErrUnauthorized", errs)
	}
}

func TestStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	it, _ := NewTable(pagedTable(5), "t").Stream(DefaultStreamOptions())
	if it.Next(ctx) {
		t.Fatal("Next returned true on a cancelled context")
	}
	if !errors.Is(it.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", it.Err())
	}
}
