package tulip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"testing"
)

// fakeCall is one request seen by a fakeRequester.
type fakeCall struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// fakeRequester answers requests from a handler function. Responses go
// through JSON so decoding matches the real client.
type fakeRequester struct {
	mu     sync.Mutex
	calls  []fakeCall
	handle func(call fakeCall) (any, error)
}

func (f *fakeRequester) Request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := f.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || resp == nil {
		return nil
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (f *fakeRequester) RequestExpectNothing(ctx context.Context, method, path string, query url.Values, body any) error {
	_, err := f.do(ctx, method, path, query, body)
	return err
}

func (f *fakeRequester) do(ctx context.Context, method, path string, query url.Values, body any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := fakeCall{Method: method, Path: path, Query: query}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		call.Body = b
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.handle == nil {
		return nil, nil
	}
	return f.handle(call)
}

func (f *fakeRequester) Calls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

func (f *fakeRequester) count(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// apiError builds the error the client would return for status.
func apiError(method, path string, status int) error {
	return &APIError{
		Kind:       classifyStatus(status),
		Method:     method,
		URL:        path,
		StatusCode: status,
	}
}

// pagedTable serves n records with ids "r0".."r{n-1}" from the records
// endpoint, honouring limit and offset.
func pagedTable(n int) *fakeRequester {
	return &fakeRequester{handle: func(call fakeCall) (any, error) {
		if call.Method != http.MethodGet {
			return nil, apiError(call.Method, call.Path, http.StatusNotFound)
		}
		limit, _ := strconv.Atoi(call.Query.Get("limit"))
		offset, _ := strconv.Atoi(call.Query.Get("offset"))

		page := []map[string]any{}
		for i := offset; i < offset+limit && i < n; i++ {
			page = append(page, map[string]any{"id": "r" + strconv.Itoa(i), "n": i})
		}
		return page, nil
	}}
}

func recordIDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID()
	}
	return ids
}

func mustDrain(t *testing.T, it *RecordIterator) []Record {
	t.Helper()
	records, err := it.All(context.Background())
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	return records
}
