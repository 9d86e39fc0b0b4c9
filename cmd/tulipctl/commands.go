package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/JonMunkholm/tulipapi/internal/tulip"
)

var errUsage = errors.New("invalid arguments")

// filterFlag collects repeated -filter field:functionType:arg values.
type filterFlag []tulip.Filter

func (f *filterFlag) String() string {
	parts := make([]string, len(*f))
	for i, fl := range *f {
		parts[i] = fl.Field + ":" + fl.FunctionType + ":" + fl.Arg.String()
	}
	return strings.Join(parts, ",")
}

func (f *filterFlag) Set(s string) error {
	field, rest, ok := strings.Cut(s, ":")
	if !ok || field == "" {
		return fmt.Errorf("filter %q must look like field:functionType[:arg]", s)
	}
	fn, arg, _ := strings.Cut(rest, ":")
	if fn == "" {
		return fmt.Errorf("filter %q has no function type", s)
	}
	*f = append(*f, tulip.Filter{Field: field, FunctionType: fn, Arg: tulip.StringValue(arg)})
	return nil
}

func newFlagSet(a *app, name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	auth := fs.String("auth", "", "basic auth token (overrides TULIP_* credentials)")
	return fs, auth
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func runUploadCSV(ctx context.Context, a *app, args []string) error {
	fs, auth := newFlagSet(a, "upload-csv")
	tableID := fs.String("table", "", "table id")
	file := fs.String("file", "", "CSV file, - for stdin")
	randomID := fs.Bool("random-id", false, "give every row a random id")
	warn := fs.Bool("warn", false, "log and skip rows the API rejects")
	concurrency := fs.Int("concurrency", 1, "records created in parallel")
	charset := fs.String("charset", "", "input charset: utf-8 (default), windows-1252, latin1, latin9")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *tableID == "" || *file == "" {
		return fmt.Errorf("%w: -table and -file are required", errUsage)
	}

	enc, err := tulip.LookupCharset(*charset)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	client, err := a.client(*auth)
	if err != nil {
		return err
	}
	defer client.Close()

	uploader := tulip.NewCSVUploader(client.Table(*tableID))
	uploader.Charset = enc
	opts := tulip.IngestOptions{
		CreateRandomID: *randomID,
		WarnOnFailure:  *warn,
		Concurrency:    *concurrency,
	}

	var created int
	if *file == "-" {
		created, err = uploader.Upload(ctx, os.Stdin, opts)
	} else {
		created, err = uploader.UploadFile(ctx, *file, opts)
	}
	fmt.Fprintf(a.stdout, "created %d records\n", created)
	return err
}

func runExportCSV(ctx context.Context, a *app, args []string) error {
	fs, auth := newFlagSet(a, "export-csv")
	tableID := fs.String("table", "", "table id")
	out := fs.String("out", "", "output file (default stdout)")
	sortBy := fs.String("sort-by", tulip.DefaultSortBy, "sort column")
	asc := fs.Bool("asc", false, "sort ascending")
	limit := fs.Int("limit", -1, "stop after about this many records (-1 for all)")
	chunk := fs.Int("chunk", tulip.MaxChunkSize, "records per page (1-100)")
	var filters filterFlag
	fs.Var(&filters, "filter", "field:functionType:arg, repeatable")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *tableID == "" {
		return fmt.Errorf("%w: -table is required", errUsage)
	}

	opts := tulip.DefaultStreamOptions()
	opts.Filters = filters
	opts.SortBy = *sortBy
	opts.SortAsc = *asc
	opts.ChunkSize = *chunk
	if *limit >= 0 {
		opts.Limit = tulip.Limit(*limit)
	}

	client, err := a.client(*auth)
	if err != nil {
		return err
	}
	defer client.Close()

	w := a.stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create %s: %w", *out, err)
		}
		defer f.Close()
		w = f
	}

	n, err := tulip.ExportCSV(ctx, client.Table(*tableID), w, opts)
	if err != nil {
		return err
	}
	a.logger.Info("export finished", "table", *tableID, "records", n)
	return nil
}

func runIncrement(ctx context.Context, a *app, args []string) error {
	fs, auth := newFlagSet(a, "increment")
	tableID := fs.String("table", "", "table id")
	column := fs.String("column", "", "numeric column to increment")
	by := fs.Float64("by", 1, "amount to add")
	var filters filterFlag
	fs.Var(&filters, "filter", "field:functionType:arg, repeatable")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *tableID == "" || *column == "" {
		return fmt.Errorf("%w: -table and -column are required", errUsage)
	}

	client, err := a.client(*auth)
	if err != nil {
		return err
	}
	defer client.Close()

	table := client.Table(*tableID)
	types, err := table.ColumnTypes(ctx)
	if err != nil {
		return err
	}
	colType, ok := types[*column]
	if !ok {
		return &tulip.ColumnError{Column: *column, Source: "-column flag"}
	}
	switch colType {
	case tulip.TypeFloat:
	case tulip.TypeInteger:
		if *by != math.Trunc(*by) {
			return fmt.Errorf("%w: -by %v is fractional but column %s is an integer", errUsage, *by, *column)
		}
	default:
		return fmt.Errorf("%w: column %s is %s, not numeric", errUsage, *column, colType)
	}
	delta, err := tulip.Coerce(tulip.FloatValue(*by), colType)
	if err != nil {
		return err
	}

	// Collect ids first: incrementing bumps _updatedAt, which would
	// reorder the pages still to be read.
	opts := tulip.DefaultStreamOptions()
	opts.Filters = filters
	it, err := table.Stream(opts)
	if err != nil {
		return err
	}
	records, err := it.All(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if _, err := table.IncrementColumn(ctx, rec.ID(), *column, delta); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.stdout, "incremented %d records\n", len(records))
	return nil
}

func runGetTable(ctx context.Context, a *app, args []string) error {
	fs, auth := newFlagSet(a, "get-table")
	tableID := fs.String("table", "", "table id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *tableID == "" {
		return fmt.Errorf("%w: -table is required", errUsage)
	}

	client, err := a.client(*auth)
	if err != nil {
		return err
	}
	defer client.Close()

	d, err := client.Table(*tableID).Details(ctx)
	if err != nil {
		return err
	}
	return printJSON(a, d)
}

func runGetRecord(ctx context.Context, a *app, args []string) error {
	fs, auth := newFlagSet(a, "get-record")
	tableID := fs.String("table", "", "table id")
	recordID := fs.String("id", "", "record id")
	cached := fs.Bool("cached", false, "load the whole table and look the record up locally")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *tableID == "" || *recordID == "" {
		return fmt.Errorf("%w: -table and -id are required", errUsage)
	}

	client, err := a.client(*auth)
	if err != nil {
		return err
	}
	defer client.Close()

	table := client.Table(*tableID)
	var rec tulip.Record
	if *cached {
		cache, err := tulip.NewCachedTable(ctx, table, nil)
		if err != nil {
			return err
		}
		rec, err = cache.Record(*recordID)
		if err != nil {
			return err
		}
	} else {
		rec, err = table.Record(ctx, *recordID)
		if err != nil {
			return err
		}
	}
	return printJSON(a, rec)
}

func runLink(ctx context.Context, a *app, args []string) error {
	fs, auth := newFlagSet(a, "link")
	linkID := fs.String("link", "", "table link id")
	left := fs.String("left", "", "left record id")
	right := fs.String("right", "", "right record id")
	unlink := fs.Bool("unlink", false, "remove the link instead")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *linkID == "" || *left == "" || *right == "" {
		return fmt.Errorf("%w: -link, -left and -right are required", errUsage)
	}

	client, err := a.client(*auth)
	if err != nil {
		return err
	}
	defer client.Close()

	link := client.TableLink(*linkID)
	if *unlink {
		return link.Unlink(ctx, *left, *right)
	}
	return link.Link(ctx, *left, *right)
}

func runReport(ctx context.Context, a *app, args []string) error {
	fs, auth := newFlagSet(a, "report")
	machineID := fs.String("machine", "", "machine id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *machineID == "" || fs.NArg() == 0 {
		return fmt.Errorf("%w: -machine and at least one attr=value are required", errUsage)
	}

	attributes, err := parseAttributes(fs.Args())
	if err != nil {
		return err
	}

	client, err := a.client(*auth)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Machine(*machineID).SendEvent(ctx, attributes); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "reported %d attributes\n", len(attributes))
	return nil
}

// parseAttributes reads attr=value pairs. Values that parse as JSON keep
// their type; anything else is sent as text.
func parseAttributes(pairs []string) (map[string]tulip.Value, error) {
	out := make(map[string]tulip.Value, len(pairs))
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: attribute %q must look like id=value", errUsage, p)
		}
		var v tulip.Value
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = tulip.StringValue(raw)
		}
		out[key] = v
	}
	return out, nil
}

func printJSON(a *app, v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
