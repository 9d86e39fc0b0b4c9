package tulip

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func staticRecords(records ...map[string]any) *fakeRequester {
	return &fakeRequester{handle: func(call fakeCall) (any, error) {
		if call.Query.Get("offset") != "0" {
			return []map[string]any{}, nil
		}
		return records, nil
	}}
}

func TestCachedTable_Lookup(t *testing.T) {
	api := staticRecords(
		map[string]any{"id": "a", "n": 1},
		map[string]any{"id": "b", "n": 2},
		map[string]any{"id": "b", "n": 3},
		map[string]any{"n": 4},
	)

	c, err := NewCachedTable(context.Background(), NewTable(api, "t"), nil)
	if err != nil {
		t.Fatalf("NewCachedTable: %v", err)
	}
	if c.Len() != 4 {
		t.Errorf("Len = %d, want 4", c.Len())
	}

	rec, err := c.Record("a")
	if err != nil {
		t.Fatalf("Record(a): %v", err)
	}
	if !rec["n"].Equal(IntValue(1)) {
		t.Errorf("record a = %v", rec)
	}

	tests := []struct {
		id   string
		want error
	}{
		{"b", ErrDuplicateID},
		{"zzz", ErrRecordNotFound},
		{"", ErrRecordNotFound},
	}
	for _, tt := range tests {
		_, err := c.Record(tt.id)
		if !errors.Is(err, tt.want) {
			t.Errorf("Record(%q) err = %v, want %v", tt.id, err, tt.want)
		}
		var cacheErr *CacheError
		if !errors.As(err, &cacheErr) || cacheErr.RecordID != tt.id {
			t.Errorf("Record(%q) err = %#v, want *CacheError", tt.id, err)
		}
	}
}

func TestCachedTable_SendsFilters(t *testing.T) {
	api := staticRecords()
	filters := []Filter{{Field: "status", FunctionType: FilterEqual, Arg: StringValue("open")}}

	if _, err := NewCachedTable(context.Background(), NewTable(api, "t"), filters); err != nil {
		t.Fatalf("NewCachedTable: %v", err)
	}

	q := api.Calls()[0].Query
	if q.Get("filters.0.field") != "status" || q.Get("filters.0.arg") != "open" {
		t.Errorf("query = %v", q)
	}
}

func TestCachedTable_RefreshKeepsOldRecordsOnFailure(t *testing.T) {
	fail := false
	api := &fakeRequester{handle: func(call fakeCall) (any, error) {
		if fail {
			return nil, apiError(call.Method, call.Path, http.StatusInternalServerError)
		}
		if call.Query.Get("offset") != "0" {
			return []map[string]any{}, nil
		}
		return []map[string]any{{"id": "a"}}, nil
	}}

	c, err := NewCachedTable(context.Background(), NewTable(api, "t"), nil)
	if err != nil {
		t.Fatalf("NewCachedTable: %v", err)
	}

	fail = true
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrInternal) {
		t.Fatalf("Refresh err = %v, want ErrInternal", err)
	}
	if _, err := c.Record("a"); err != nil {
		t.Errorf("previous records lost: %v", err)
	}
}

func TestCachedTable_RecordsIsACopy(t *testing.T) {
	c, err := NewCachedTable(context.Background(), NewTable(staticRecords(map[string]any{"id": "a"}), "t"), nil)
	if err != nil {
		t.Fatalf("NewCachedTable: %v", err)
	}
	records := c.Records()
	records[0] = nil
	if _, err := c.Record("a"); err != nil {
		t.Errorf("cache mutated through Records(): %v", err)
	}
}

func TestTableLink_Requests(t *testing.T) {
	api := &fakeRequester{}
	link := NewTableLink(api, "parts to orders")
	ctx := context.Background()

	if err := link.Link(ctx, "p1", "o1"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := link.Unlink(ctx, "p1", "o1"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	calls := api.Calls()
	want := []struct{ method, path string }{
		{http.MethodPut, "tableLinks/parts%20to%20orders/link"},
		{http.MethodPut, "tableLinks/parts%20to%20orders/unlink"},
	}
	for i, w := range want {
		if calls[i].Method != w.method || calls[i].Path != w.path {
			t.Errorf("call %d = %s %s, want %s %s", i, calls[i].Method, calls[i].Path, w.method, w.path)
		}
		if string(calls[i].Body) != `{"leftRecord":"p1","rightRecord":"o1"}` {
			t.Errorf("call %d body = %s", i, calls[i].Body)
		}
	}
}

func TestTableLink_WrapsErrors(t *testing.T) {
	api := &fakeRequester{handle: func(call fakeCall) (any, error) {
		return nil, apiError(call.Method, call.Path, http.StatusNotFound)
	}}
	err := NewTableLink(api, "l").Link(context.Background(), "a", "b")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMachine_SendEventBody(t *testing.T) {
	api := &fakeRequester{}
	err := NewMachine(api, "m1").SendEvent(context.Background(), map[string]Value{
		"temp":  FloatValue(21.5),
		"state": StringValue("RUNNING"),
	})
	if err != nil {
		t.Fatalf("SendEvent: %v", err)
	}

	calls := api.Calls()
	if len(calls) != 1 || calls[0].Method != http.MethodPost || calls[0].Path != AttributesReportPath {
		t.Fatalf("calls = %+v", calls)
	}
	want := `{"attributes":[` +
		`{"machineId":"m1","attributeId":"state","value":"RUNNING"},` +
		`{"machineId":"m1","attributeId":"temp","value":21.5}]}`
	if string(calls[0].Body) != want {
		t.Errorf("body = %s\nwant %s", calls[0].Body, want)
	}
}

func TestTable_RequestShapes(t *testing.T) {
	api := &fakeRequester{handle: func(call fakeCall) (any, error) {
		return map[string]any{"id": "r 1"}, nil
	}}
	table := NewTable(api, "my table")
	ctx := context.Background()

	if _, err := table.Record(ctx, "r 1"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := table.UpdateRecord(ctx, "r 1", Record{"n": IntValue(1)}); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	if _, err := table.DeleteRecord(ctx, "r 1"); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if _, err := table.IncrementColumn(ctx, "r 1", "n", IntValue(2)); err != nil {
		t.Fatalf("IncrementColumn: %v", err)
	}

	calls := api.Calls()
	want := []struct{ method, path, body string }{
		{http.MethodGet, "tables/my%20table/records/r%201", ""},
		{http.MethodPut, "tables/my%20table/records/r%201", `{"n":1}`},
		{http.MethodDelete, "tables/my%20table/records/r%201", ""},
		{http.MethodPatch, "tables/my%20table/records/r%201/increment", `{"fieldName":"n","value":2}`},
	}
	for i, w := range want {
		c := calls[i]
		if c.Method != w.method || c.Path != w.path || string(c.Body) != w.body {
			t.Errorf("call %d = %s %s %s, want %s %s %s", i, c.Method, c.Path, c.Body, w.method, w.path, w.body)
		}
	}
}
