package tulip

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// ColumnType is the declared semantic type of a table column.
type ColumnType string

// The coercible column types. Schemas may contain other types; they only
// fail once a value has to be coerced into them.
const (
	TypeString    ColumnType = "string"
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
)

// ColumnTypes maps column names to their declared types.
type ColumnTypes map[string]ColumnType

// DataType is the column's "dataType" object.
type DataType struct {
	Type ColumnType `json:"type"`
}

// Column describes one column of a table schema. Fields the API sends that
// are not modelled here are kept and written back unchanged.
type Column struct {
	Name        string
	DataType    DataType
	Hidden      bool
	Label       string
	Description string

	extra map[string]json.RawMessage
}

var columnKnownFields = []string{"name", "dataType", "hidden", "label", "description"}

func (c *Column) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var col Column
	decode := map[string]any{
		"name":        &col.Name,
		"dataType":    &col.DataType,
		"hidden":      &col.Hidden,
		"label":       &col.Label,
		"description": &col.Description,
	}
	for key, dst := range decode {
		msg, ok := raw[key]
		if !ok || string(msg) == "null" {
			continue
		}
		if err := json.Unmarshal(msg, dst); err != nil {
			return fmt.Errorf("column field %q: %w", key, err)
		}
	}

	for _, key := range columnKnownFields {
		delete(raw, key)
	}
	if len(raw) > 0 {
		col.extra = raw
	}

	*c = col
	return nil
}

func (c Column) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.extra)+5)
	for k, v := range c.extra {
		out[k] = v
	}
	out["name"] = c.Name
	out["dataType"] = c.DataType
	out["hidden"] = c.Hidden
	if c.Label != "" {
		out["label"] = c.Label
	}
	if c.Description != "" {
		out["description"] = c.Description
	}
	return json.Marshal(out)
}

// TableDetails is a table's metadata and schema.
type TableDetails struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
}

// ColumnTypes returns the name to type mapping for all columns.
func (d *TableDetails) ColumnTypes() ColumnTypes {
	types := make(ColumnTypes, len(d.Columns))
	for _, col := range d.Columns {
		types[col.Name] = col.DataType.Type
	}
	return types
}

// ColumnNames returns the column names in schema order.
func (d *TableDetails) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name
	}
	return names
}

// Common filter function types.
const (
	FilterEqual        = "equal"
	FilterNotEqual     = "notEqual"
	FilterContains     = "contains"
	FilterNotContains  = "notContains"
	FilterStartsWith   = "startsWith"
	FilterGreaterThan  = "greaterThan"
	FilterLessThan     = "lessThan"
	FilterIsNull       = "isNull"
	FilterIsNotNull    = "isNotNull"
	FilterIsBlank      = "blank"
	FilterIsNotBlank   = "notBlank"
	FilterGreaterEqual = "greaterThanOrEqual"
	FilterLessEqual    = "lessThanOrEqual"
)

// Filter narrows a record query on one field.
type Filter struct {
	Field        string `json:"field"`
	FunctionType string `json:"functionType"`
	Arg          Value  `json:"arg"`
}

// FilterAggregator combines a set of filters.
type FilterAggregator string

const (
	AggregateAll FilterAggregator = "all" // AND
	AggregateAny FilterAggregator = "any" // OR
)

// DefaultSortBy is the sort column used when none is given.
const DefaultSortBy = "_updatedAt"

// ListOptions selects one page of records.
type ListOptions struct {
	Limit            int // zero means MaxChunkSize
	Offset           int
	Filters          []Filter
	SortBy           string
	SortAsc          bool
	FilterAggregator FilterAggregator
}

// query encodes the options the way the records endpoint expects them.
func (o ListOptions) query() url.Values {
	limit := o.Limit
	if limit == 0 {
		limit = MaxChunkSize
	}
	sortBy := o.SortBy
	if sortBy == "" {
		sortBy = DefaultSortBy
	}
	agg := o.FilterAggregator
	if agg == "" {
		agg = AggregateAll
	}
	sortDir := "desc"
	if o.SortAsc {
		sortDir = "asc"
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(o.Offset))
	q.Set("sortBy", sortBy)
	q.Set("sortDir", sortDir)
	q.Set("filterAggregator", string(agg))
	for i, f := range o.Filters {
		prefix := "filters." + strconv.Itoa(i) + "."
		q.Set(prefix+"field", f.Field)
		q.Set(prefix+"functionType", f.FunctionType)
		q.Set(prefix+"arg", f.Arg.String())
	}
	return q
}
