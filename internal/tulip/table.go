package tulip

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// Table is a handle for one table. It holds no state besides its id and is
// safe for concurrent use.
type Table struct {
	api    Requester
	id     string
	logger *slog.Logger
}

// NewTable returns a handle for the table with the given id.
func NewTable(api Requester, id string) *Table {
	return &Table{api: api, id: id, logger: slog.Default()}
}

// ID returns the table id.
func (t *Table) ID() string { return t.id }

// WithLogger returns a copy of t that logs ingestion diagnostics to l.
func (t *Table) WithLogger(l *slog.Logger) *Table {
	cp := *t
	cp.logger = l
	return &cp
}

func (t *Table) basePath() string {
	return "tables/" + url.PathEscape(t.id)
}

func (t *Table) recordsPath() string {
	return t.basePath() + "/records"
}

func (t *Table) recordPath(recordID string) string {
	return t.recordsPath() + "/" + url.PathEscape(recordID)
}

// Details fetches the table's metadata and schema.
func (t *Table) Details(ctx context.Context) (*TableDetails, error) {
	var d TableDetails
	if err := t.api.Request(ctx, http.MethodGet, t.basePath(), nil, nil, &d); err != nil {
		return nil, fmt.Errorf("get table %s: %w", t.id, err)
	}
	return &d, nil
}

// ColumnTypes fetches the schema and returns its name to type mapping.
func (t *Table) ColumnTypes(ctx context.Context) (ColumnTypes, error) {
	d, err := t.Details(ctx)
	if err != nil {
		return nil, err
	}
	return d.ColumnTypes(), nil
}

// TableUpdate describes changes applied by Table.Update. Empty Label and
// Description leave the current values in place.
type TableUpdate struct {
	Label         string
	Description   string
	Deleted       bool
	NewColumns    []Column
	HideColumns   []string
	UnhideColumns []string
}

type tableUpdateBody struct {
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Deleted     bool     `json:"deleted"`
	Columns     []Column `json:"columns"`
}

// Update reads the current schema, merges the requested changes into it and
// writes the whole table back. Existing columns are never removed.
func (t *Table) Update(ctx context.Context, u TableUpdate) (*TableDetails, error) {
	d, err := t.Details(ctx)
	if err != nil {
		return nil, err
	}

	if u.Label != "" {
		d.Label = u.Label
	}
	if u.Description != "" {
		d.Description = u.Description
	}

	hide := toSet(u.HideColumns)
	unhide := toSet(u.UnhideColumns)
	for i := range d.Columns {
		if hide[d.Columns[i].Name] {
			d.Columns[i].Hidden = true
		}
		if unhide[d.Columns[i].Name] {
			d.Columns[i].Hidden = false
		}
	}
	d.Columns = append(d.Columns, u.NewColumns...)

	body := tableUpdateBody{
		Label:       d.Label,
		Description: d.Description,
		Deleted:     u.Deleted,
		Columns:     d.Columns,
	}

	var updated TableDetails
	if err := t.api.Request(ctx, http.MethodPut, t.basePath(), nil, body, &updated); err != nil {
		return nil, fmt.Errorf("update table %s: %w", t.id, err)
	}
	return &updated, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

// Records fetches a single page of records.
func (t *Table) Records(ctx context.Context, opts ListOptions) ([]Record, error) {
	var records []Record
	if err := t.api.Request(ctx, http.MethodGet, t.recordsPath(), opts.query(), nil, &records); err != nil {
		return nil, fmt.Errorf("list records of table %s: %w", t.id, err)
	}
	return records, nil
}

// Record fetches one record by id.
func (t *Table) Record(ctx context.Context, recordID string) (Record, error) {
	var rec Record
	if err := t.api.Request(ctx, http.MethodGet, t.recordPath(recordID), nil, nil, &rec); err != nil {
		return nil, fmt.Errorf("get record %s: %w", recordID, err)
	}
	return rec, nil
}

// FirstRecord returns the first record matching filters in the given sort
// order, or nil when there is none.
func (t *Table) FirstRecord(ctx context.Context, filters []Filter, sortBy string, sortAsc bool) (Record, error) {
	records, err := t.Records(ctx, ListOptions{
		Limit:   1,
		Filters: filters,
		SortBy:  sortBy,
		SortAsc: sortAsc,
	})
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, nil
	}
	return records[0], nil
}

// UpdateRecord merges fields into an existing record. Columns not present
// in fields are left untouched.
func (t *Table) UpdateRecord(ctx context.Context, recordID string, fields Record) (Record, error) {
	if fields == nil {
		fields = Record{}
	}
	var rec Record
	if err := t.api.Request(ctx, http.MethodPut, t.recordPath(recordID), nil, fields, &rec); err != nil {
		return nil, fmt.Errorf("update record %s: %w", recordID, err)
	}
	return rec, nil
}

// DeleteRecord deletes a record and returns it as the API reported it.
func (t *Table) DeleteRecord(ctx context.Context, recordID string) (Record, error) {
	var rec Record
	if err := t.api.Request(ctx, http.MethodDelete, t.recordPath(recordID), nil, nil, &rec); err != nil {
		return nil, fmt.Errorf("delete record %s: %w", recordID, err)
	}
	return rec, nil
}

type incrementBody struct {
	FieldName string `json:"fieldName"`
	Value     Value  `json:"value"`
}

// IncrementColumn adds value to one numeric column of a record.
func (t *Table) IncrementColumn(ctx context.Context, recordID, column string, value Value) (Record, error) {
	var rec Record
	path := t.recordPath(recordID) + "/increment"
	if err := t.api.Request(ctx, http.MethodPatch, path, nil, incrementBody{FieldName: column, Value: value}, &rec); err != nil {
		return nil, fmt.Errorf("increment %s of record %s: %w", column, recordID, err)
	}
	return rec, nil
}

// Coalesce returns def when v is falsy (null, zero, empty) and v otherwise.
func Coalesce(v, def Value) Value {
	if !v.Truthy() {
		return def
	}
	return v
}
