package tulip

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
)

// ExportCSV streams the records selected by opts to w as CSV and returns
// the number of data rows written.
//
// The header comes from the first record in opts' sort order: "id" first,
// then the remaining field names sorted. Fields missing from a later
// record are written empty; fields not in the header fail the export with
// *ColumnError. An empty selection fails with ErrEmptyTable.
func ExportCSV(ctx context.Context, t *Table, w io.Writer, opts StreamOptions) (int, error) {
	it, err := t.Stream(opts)
	if err != nil {
		return 0, err
	}

	firstPage, err := t.Records(ctx, ListOptions{
		Limit:            1,
		Filters:          opts.Filters,
		SortBy:           opts.SortBy,
		SortAsc:          opts.SortAsc,
		FilterAggregator: opts.FilterAggregator,
	})
	if err != nil {
		return 0, err
	}
	if len(firstPage) == 0 {
		return 0, ErrEmptyTable
	}

	header := exportHeader(firstPage[0])
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	written := 0
	row := make([]string, len(header))
	for it.Next(ctx) {
		for i := range row {
			row[i] = ""
		}
		for name, v := range it.Record() {
			i, ok := index[name]
			if !ok {
				return written, &ColumnError{Column: name, Source: "record"}
			}
			row[i] = v.String()
		}
		if err := cw.Write(row); err != nil {
			return written, fmt.Errorf("write csv row: %w", err)
		}
		written++
	}
	if err := it.Err(); err != nil {
		return written, err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, fmt.Errorf("flush csv: %w", err)
	}
	return written, nil
}

func exportHeader(rec Record) []string {
	names := make([]string, 0, len(rec))
	for name := range rec {
		if name != "id" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := rec["id"]; ok {
		names = append([]string{"id"}, names...)
	}
	return names
}
