package tulip

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RecordSource yields records one at a time. *RecordIterator, the CSV row
// reader and *SliceSource implement it.
type RecordSource interface {
	Next(ctx context.Context) bool
	Record() Record
	Err() error
}

// SliceSource is a RecordSource over an in-memory slice.
type SliceSource struct {
	records []Record
	pos     int
	cur     Record
}

// NewSliceSource returns a source yielding records in order.
func NewSliceSource(records ...Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next(ctx context.Context) bool {
	if ctx.Err() != nil || s.pos >= len(s.records) {
		s.cur = nil
		return false
	}
	s.cur = s.records[s.pos]
	s.pos++
	return true
}

func (s *SliceSource) Record() Record { return s.cur }

func (s *SliceSource) Err() error { return nil }

// IngestOptions controls CreateRecords and Ingest.
type IngestOptions struct {
	// CreateRandomID replaces every record's id with a fresh random one.
	CreateRandomID bool

	// WarnOnFailure logs records the API rejects as malformed and carries
	// on. Every other failure still aborts the batch.
	WarnOnFailure bool

	// Concurrency > 1 sends up to that many creates at once.
	Concurrency int
}

// NewRecordID returns a random 128-bit id as 32 lowercase hex characters.
func NewRecordID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

func prepareRecord(rec Record, createRandomID bool) (Record, error) {
	out := rec.Clone()
	if createRandomID {
		out["id"] = StringValue(NewRecordID())
	}
	if _, ok := out["id"]; !ok {
		return nil, ErrMissingID
	}
	return out, nil
}

// CreateRecord creates one record and returns it as stored. Either rec has
// an id or createRandomID is set; otherwise it fails with ErrMissingID.
// rec itself is never modified.
func (t *Table) CreateRecord(ctx context.Context, rec Record, createRandomID bool) (Record, error) {
	prepared, err := prepareRecord(rec, createRandomID)
	if err != nil {
		return nil, err
	}
	return t.postRecord(ctx, prepared)
}

func (t *Table) postRecord(ctx context.Context, rec Record) (Record, error) {
	var created Record
	if err := t.api.Request(ctx, http.MethodPost, t.recordsPath(), nil, rec, &created); err != nil {
		return nil, fmt.Errorf("create record in table %s: %w", t.id, err)
	}
	return created, nil
}

// ingestTally accumulates results of one CreateRecords call. Concurrent
// creates update it under mu.
type ingestTally struct {
	mu      sync.Mutex
	created int
	failed  int
}

// CreateRecords creates every record from src, one request per record, and
// returns how many were created. Records already created stay created when
// the batch aborts.
//
// A record rejected as malformed is logged with its payload; with
// WarnOnFailure the batch continues, otherwise that error is returned. Any
// other failure aborts the batch.
func (t *Table) CreateRecords(ctx context.Context, src RecordSource, opts IngestOptions) (int, error) {
	var tally ingestTally
	var err error
	if opts.Concurrency > 1 {
		err = t.createConcurrent(ctx, src, opts, &tally)
	} else {
		err = t.createSequential(ctx, src, opts, &tally)
	}

	if opts.WarnOnFailure && tally.failed > 0 {
		t.logger.Warn("failed to create records",
			slog.String("table", t.id),
			slog.Int("failed", tally.failed),
			slog.Int("created", tally.created),
		)
	}
	return tally.created, err
}

func (t *Table) createSequential(ctx context.Context, src RecordSource, opts IngestOptions, tally *ingestTally) error {
	for src.Next(ctx) {
		if err := t.createOne(ctx, src.Record(), opts, tally); err != nil {
			return err
		}
	}
	if err := src.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func (t *Table) createConcurrent(ctx context.Context, src RecordSource, opts IngestOptions, tally *ingestTally) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for gctx.Err() == nil && src.Next(gctx) {
		rec := src.Record()
		g.Go(func() error {
			return t.createOne(gctx, rec, opts, tally)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := src.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// createOne creates rec and records the outcome. It returns an error only
// when the batch must stop.
func (t *Table) createOne(ctx context.Context, rec Record, opts IngestOptions, tally *ingestTally) error {
	prepared, err := prepareRecord(rec, opts.CreateRandomID)
	if err != nil {
		return err
	}

	_, err = t.postRecord(ctx, prepared)

	tally.mu.Lock()
	defer tally.mu.Unlock()

	switch {
	case err == nil:
		tally.created++
		return nil
	case errors.Is(err, ErrMalformedRequest):
		tally.failed++
		t.logger.Warn("there was an issue creating the record",
			slog.String("table", t.id),
			slog.String("record", recordJSON(prepared)),
			slog.Any("error", err),
		)
		if opts.WarnOnFailure {
			return nil
		}
		return err
	default:
		return err
	}
}

func recordJSON(rec Record) string {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Sprintf("%v", map[string]Value(rec))
	}
	return string(b)
}

// coercingSource coerces each record of src before handing it out. The
// first coercion failure ends the stream and is reported by Err.
type coercingSource struct {
	src   RecordSource
	types ColumnTypes
	cur   Record
	err   error
}

func (c *coercingSource) Next(ctx context.Context) bool {
	if c.err != nil || !c.src.Next(ctx) {
		c.cur = nil
		return false
	}
	rec, err := CoerceRecord(c.src.Record(), c.types)
	if err != nil {
		c.err = err
		c.cur = nil
		return false
	}
	c.cur = rec
	return true
}

func (c *coercingSource) Record() Record { return c.cur }

func (c *coercingSource) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.src.Err()
}

// Ingest coerces every record from src to types and creates it. Coercion
// failures always abort, whatever WarnOnFailure says.
func (t *Table) Ingest(ctx context.Context, src RecordSource, types ColumnTypes, opts IngestOptions) (int, error) {
	return t.CreateRecords(ctx, &coercingSource{src: src, types: types}, opts)
}
