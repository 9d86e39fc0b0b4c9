package tulip

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// ErrNoHeader is returned when a CSV input has no header row.
var ErrNoHeader = errors.New("csv has no header row")

// CSVUploader creates table records from CSV rows. The header row names
// the columns; every name must exist in the table schema. Header cells are
// trimmed and NFC-normalized before they are matched.
type CSVUploader struct {
	Table *Table

	// Charset decodes the input before parsing. Nil means UTF-8.
	Charset encoding.Encoding
}

// LookupCharset looks up a single-byte input charset by name. "" and "utf-8"
// return nil.
func LookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", name)
}

// NewCSVUploader returns an uploader for t.
func NewCSVUploader(t *Table) *CSVUploader {
	return &CSVUploader{Table: t}
}

// UploadFile opens path and uploads it. See Upload.
func (u *CSVUploader) UploadFile(ctx context.Context, path string, opts IngestOptions) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return u.upload(ctx, f, size, opts)
}

// Upload reads CSV from r and creates one record per data row, coercing
// each cell to its column's type. The header is validated against the
// schema before any row is read; rows are read lazily. Returns the number
// of records created.
func (u *CSVUploader) Upload(ctx context.Context, r io.Reader, opts IngestOptions) (int, error) {
	return u.upload(ctx, r, 0, opts)
}

func (u *CSVUploader) upload(ctx context.Context, r io.Reader, size int64, opts IngestOptions) (int, error) {
	start := time.Now()

	details, err := u.Table.Details(ctx)
	if err != nil {
		return 0, err
	}
	types := details.ColumnTypes()

	in, counter := wrapCSVInput(r, size, u.Charset)
	rows, err := newCSVRowSource(in)
	if err != nil {
		return 0, err
	}
	for _, field := range rows.header {
		if _, ok := types[field]; !ok {
			return 0, &ColumnError{Column: field, Source: "csv header"}
		}
	}

	created, err := u.Table.Ingest(ctx, rows, types, opts)

	u.Table.logger.Info("csv upload finished",
		slog.String("table", u.Table.id),
		slog.Int("rows", rows.line),
		slog.Int("created", created),
		slog.Int64("bytes", counter.Count()),
		slog.Int("progress", counter.Progress()),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ok", err == nil),
	)
	return created, err
}

// csvRowSource yields each data row as a record of string values keyed by
// the header.
type csvRowSource struct {
	reader *csv.Reader
	header []string
	line   int // data rows read
	cur    Record
	err    error
}

func newCSVRowSource(r io.Reader) (*csvRowSource, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	fields := make([]string, len(header))
	for i, h := range header {
		fields[i] = norm.NFC.String(strings.TrimSpace(h))
	}
	return &csvRowSource{reader: cr, header: fields}, nil
}

func (s *csvRowSource) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.cur = nil
		return false
	}

	row, err := s.reader.Read()
	if err == io.EOF {
		s.cur = nil
		return false
	}
	if err != nil {
		s.err = fmt.Errorf("read csv row %d: %w", s.line+1, err)
		s.cur = nil
		return false
	}
	s.line++

	rec := make(Record, len(s.header))
	for i, name := range s.header {
		rec[name] = StringValue(row[i])
	}
	s.cur = rec
	return true
}

func (s *csvRowSource) Record() Record { return s.cur }

func (s *csvRowSource) Err() error { return s.err }
