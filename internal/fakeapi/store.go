package fakeapi

// store.go holds the emulator's state: tables with their records, table
// links and received attribute reports. All methods are safe for
// concurrent use.

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/tulipapi/internal/tulip"
)

var (
	errTableNotFound  = errors.New("table not found")
	errRecordNotFound = errors.New("record not found")
	errLinkNotFound   = errors.New("table link not found")
)

// invalidError is a request the emulator rejects with 400.
type invalidError struct {
	msg string
}

func (e *invalidError) Error() string { return e.msg }

func invalidf(format string, args ...any) error {
	return &invalidError{msg: fmt.Sprintf(format, args...)}
}

type storedRecord struct {
	fields  tulip.Record
	updated int64 // stands in for _updatedAt
}

type table struct {
	details tulip.TableDetails
	records []*storedRecord
	byID    map[string]*storedRecord
	deleted bool
}

// Link is a relation between records of two tables.
type Link struct {
	ID           string `json:"id" yaml:"id"`
	LeftTableID  string `json:"leftTableId" yaml:"left_table"`
	RightTableID string `json:"rightTableId" yaml:"right_table"`
}

type linkState struct {
	Link
	pairs map[[2]string]bool
}

// Store is the in-memory state behind a Server.
type Store struct {
	mu      sync.RWMutex
	tables  map[string]*table
	links   map[string]*linkState
	reports []tulip.AttributeReport
	clock   int64

	listRequests map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tables:       make(map[string]*table),
		links:        make(map[string]*linkState),
		listRequests: make(map[string]int),
	}
}

func (s *Store) tick() int64 {
	s.clock++
	return s.clock
}

// CreateTable adds a table with optional initial records. An existing
// table with the same id is replaced.
func (s *Store) CreateTable(d tulip.TableDetails, records ...tulip.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &table{details: d, byID: make(map[string]*storedRecord)}
	s.tables[d.ID] = t
	for _, rec := range records {
		if err := s.insertLocked(t, rec); err != nil {
			return fmt.Errorf("seed table %s: %w", d.ID, err)
		}
	}
	return nil
}

// CreateLink registers a table link.
func (s *Store) CreateLink(l Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[l.ID] = &linkState{Link: l, pairs: make(map[[2]string]bool)}
}

// Records returns a snapshot of a table's records in insertion order.
func (s *Store) Records(tableID string) []tulip.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[tableID]
	if !ok {
		return nil
	}
	out := make([]tulip.Record, len(t.records))
	for i, r := range t.records {
		out[i] = r.fields.Clone()
	}
	return out
}

// LinkedPairs returns the linked (left, right) record id pairs, sorted.
func (s *Store) LinkedPairs(linkID string) [][2]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.links[linkID]
	if !ok {
		return nil
	}
	out := make([][2]string, 0, len(l.pairs))
	for p := range l.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Reports returns every attribute report received, in arrival order.
func (s *Store) Reports() []tulip.AttributeReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]tulip.AttributeReport(nil), s.reports...)
}

// ListRequests returns how many record pages were served for a table.
func (s *Store) ListRequests(tableID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequests[tableID]
}

func (s *Store) liveTable(id string) (*table, error) {
	t, ok := s.tables[id]
	if !ok || t.deleted {
		return nil, errTableNotFound
	}
	return t, nil
}

// Details returns a table's metadata and schema.
func (s *Store) Details(tableID string) (tulip.TableDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.liveTable(tableID)
	if err != nil {
		return tulip.TableDetails{}, err
	}
	d := t.details
	d.Columns = append([]tulip.Column(nil), t.details.Columns...)
	return d, nil
}

// UpdateTable replaces label, description and columns. Removing a column
// that exists is rejected.
func (s *Store) UpdateTable(tableID, label, description string, deleted bool, columns []tulip.Column) (tulip.TableDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.liveTable(tableID)
	if err != nil {
		return tulip.TableDetails{}, err
	}

	incoming := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return tulip.TableDetails{}, invalidf("column without name")
		}
		if incoming[c.Name] {
			return tulip.TableDetails{}, invalidf("duplicate column %q", c.Name)
		}
		incoming[c.Name] = true
	}
	for _, c := range t.details.Columns {
		if !incoming[c.Name] {
			return tulip.TableDetails{}, invalidf("column %q cannot be removed", c.Name)
		}
	}

	t.details.Label = label
	t.details.Description = description
	t.details.Columns = columns
	t.deleted = deleted

	d := t.details
	d.Columns = append([]tulip.Column(nil), columns...)
	return d, nil
}

// Query selects a page of records.
type Query struct {
	Limit      int
	Offset     int
	SortBy     string
	SortAsc    bool
	Aggregator tulip.FilterAggregator
	Filters    []tulip.Filter
}

// List returns one page of matching records.
func (s *Store) List(tableID string, q Query) ([]tulip.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.liveTable(tableID)
	if err != nil {
		return nil, err
	}
	s.listRequests[tableID]++

	if q.Limit < tulip.MinChunkSize || q.Limit > tulip.MaxChunkSize {
		return nil, invalidf("limit must be between %d and %d", tulip.MinChunkSize, tulip.MaxChunkSize)
	}
	if q.Offset < 0 {
		return nil, invalidf("offset must be non-negative")
	}

	matched := make([]*storedRecord, 0, len(t.records))
	for _, r := range t.records {
		if matchAll(r.fields, q.Filters, q.Aggregator) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		var c int
		if q.SortBy == "" || q.SortBy == tulip.DefaultSortBy {
			c = cmpInt(matched[i].updated, matched[j].updated)
		} else {
			c = compareValues(matched[i].fields[q.SortBy], matched[j].fields[q.SortBy])
		}
		if q.SortAsc {
			return c < 0
		}
		return c > 0
	})

	if q.Offset >= len(matched) {
		return []tulip.Record{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]tulip.Record, 0, end-q.Offset)
	for _, r := range matched[q.Offset:end] {
		out = append(out, r.fields.Clone())
	}
	return out, nil
}

// Get returns one record.
func (s *Store) Get(tableID, recordID string) (tulip.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.liveTable(tableID)
	if err != nil {
		return nil, err
	}
	r, ok := t.byID[recordID]
	if !ok {
		return nil, errRecordNotFound
	}
	return r.fields.Clone(), nil
}

// Insert creates a record after validating it against the schema.
func (s *Store) Insert(tableID string, rec tulip.Record) (tulip.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.liveTable(tableID)
	if err != nil {
		return nil, err
	}
	if err := s.insertLocked(t, rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *Store) insertLocked(t *table, rec tulip.Record) error {
	idVal, ok := rec["id"]
	if !ok || idVal.IsNull() {
		return invalidf("record id is required")
	}
	id, isString := idVal.AsString()
	if !isString || id == "" {
		return invalidf("record id must be a non-empty string")
	}
	if _, exists := t.byID[id]; exists {
		return invalidf("record %q already exists", id)
	}
	if err := validateFields(t.details, rec); err != nil {
		return err
	}

	stored := &storedRecord{fields: rec.Clone(), updated: s.tick()}
	t.records = append(t.records, stored)
	t.byID[id] = stored
	return nil
}

// Update merges fields into a record.
func (s *Store) Update(tableID, recordID string, fields tulip.Record) (tulip.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.liveTable(tableID)
	if err != nil {
		return nil, err
	}
	r, ok := t.byID[recordID]
	if !ok {
		return nil, errRecordNotFound
	}
	if v, ok := fields["id"]; ok && v.String() != recordID {
		return nil, invalidf("record id cannot be changed")
	}
	if err := validateFields(t.details, fields); err != nil {
		return nil, err
	}

	for k, v := range fields {
		r.fields[k] = v
	}
	r.updated = s.tick()
	return r.fields.Clone(), nil
}

// Delete removes a record and returns it.
func (s *Store) Delete(tableID, recordID string) (tulip.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.liveTable(tableID)
	if err != nil {
		return nil, err
	}
	r, ok := t.byID[recordID]
	if !ok {
		return nil, errRecordNotFound
	}

	delete(t.byID, recordID)
	for i, candidate := range t.records {
		if candidate == r {
			t.records = append(t.records[:i], t.records[i+1:]...)
			break
		}
	}
	return r.fields, nil
}

// Increment adds delta to a numeric column; null counts as zero.
func (s *Store) Increment(tableID, recordID, column string, delta tulip.Value) (tulip.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.liveTable(tableID)
	if err != nil {
		return nil, err
	}
	r, ok := t.byID[recordID]
	if !ok {
		return nil, errRecordNotFound
	}

	colType, ok := t.details.ColumnTypes()[column]
	if !ok {
		return nil, invalidf("column %q does not exist", column)
	}

	current := r.fields[column]
	switch colType {
	case tulip.TypeInteger:
		d, ok := delta.AsInt()
		if !ok {
			return nil, invalidf("increment of integer column %q must be an integer", column)
		}
		cur, _ := current.AsInt()
		r.fields[column] = tulip.Int64Value(cur + d)
	case tulip.TypeFloat:
		d, ok := delta.AsFloat()
		if !ok {
			return nil, invalidf("increment of float column %q must be a number", column)
		}
		cur, _ := current.AsFloat()
		r.fields[column] = tulip.FloatValue(cur + d)
	default:
		return nil, invalidf("column %q of type %s cannot be incremented", column, colType)
	}

	r.updated = s.tick()
	return r.fields.Clone(), nil
}

// LinkDetails returns a link definition.
func (s *Store) LinkDetails(linkID string) (Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.links[linkID]
	if !ok {
		return Link{}, errLinkNotFound
	}
	return l.Link, nil
}

// SetLinked links or unlinks two records.
func (s *Store) SetLinked(linkID, left, right string, linked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[linkID]
	if !ok {
		return errLinkNotFound
	}
	if left == "" || right == "" {
		return invalidf("leftRecord and rightRecord are required")
	}
	if err := s.requireRecordLocked(l.LeftTableID, left); err != nil {
		return err
	}
	if err := s.requireRecordLocked(l.RightTableID, right); err != nil {
		return err
	}

	pair := [2]string{left, right}
	if linked {
		l.pairs[pair] = true
	} else {
		delete(l.pairs, pair)
	}
	return nil
}

func (s *Store) requireRecordLocked(tableID, recordID string) error {
	t, err := s.liveTable(tableID)
	if err != nil {
		return err
	}
	if _, ok := t.byID[recordID]; !ok {
		return errRecordNotFound
	}
	return nil
}

// Report stores attribute reports.
func (s *Store) Report(reports []tulip.AttributeReport) error {
	for i, r := range reports {
		if r.MachineID == "" || r.AttributeID == "" {
			return invalidf("attribute %d needs machineId and attributeId", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, reports...)
	return nil
}

// validateFields checks every field exists and holds a value of its
// column's type.
func validateFields(d tulip.TableDetails, rec tulip.Record) error {
	types := d.ColumnTypes()
	for name, v := range rec {
		if name == "id" {
			continue
		}
		colType, ok := types[name]
		if !ok {
			return invalidf("column %q does not exist", name)
		}
		if v.IsNull() {
			continue
		}
		if !acceptsValue(colType, v) {
			return invalidf("value %s is not a valid %s for column %q", v.GoString(), colType, name)
		}
	}
	return nil
}

func acceptsValue(t tulip.ColumnType, v tulip.Value) bool {
	switch t {
	case tulip.TypeString:
		return v.Kind() == tulip.KindString
	case tulip.TypeInteger:
		return v.Kind() == tulip.KindInt
	case tulip.TypeFloat:
		return v.Kind() == tulip.KindInt || v.Kind() == tulip.KindFloat
	case tulip.TypeBoolean:
		return v.Kind() == tulip.KindBool
	case tulip.TypeTimestamp:
		s, ok := v.AsString()
		if !ok {
			return false
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	}
	return true
}

func matchAll(rec tulip.Record, filters []tulip.Filter, agg tulip.FilterAggregator) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		ok := matchFilter(rec[f.Field], f)
		if agg == tulip.AggregateAny && ok {
			return true
		}
		if agg != tulip.AggregateAny && !ok {
			return false
		}
	}
	return agg != tulip.AggregateAny
}

// matchFilter compares a field with a filter argument. Arguments arrive as
// query text, so comparisons are made on the field's text rendering unless
// both sides are numeric.
func matchFilter(field tulip.Value, f tulip.Filter) bool {
	arg := f.Arg.String()
	text := field.String()

	switch f.FunctionType {
	case tulip.FilterEqual:
		return !field.IsNull() && text == arg
	case tulip.FilterNotEqual:
		return field.IsNull() || text != arg
	case tulip.FilterContains:
		return strings.Contains(text, arg)
	case tulip.FilterNotContains:
		return !strings.Contains(text, arg)
	case tulip.FilterStartsWith:
		return strings.HasPrefix(text, arg)
	case tulip.FilterIsNull:
		return field.IsNull()
	case tulip.FilterIsNotNull:
		return !field.IsNull()
	case tulip.FilterIsBlank:
		return field.IsNull() || text == ""
	case tulip.FilterIsNotBlank:
		return !field.IsNull() && text != ""
	case tulip.FilterGreaterThan, tulip.FilterLessThan, tulip.FilterGreaterEqual, tulip.FilterLessEqual:
		if field.IsNull() {
			return false
		}
		c := compareValues(field, argAs(field, arg))
		switch f.FunctionType {
		case tulip.FilterGreaterThan:
			return c > 0
		case tulip.FilterLessThan:
			return c < 0
		case tulip.FilterGreaterEqual:
			return c >= 0
		default:
			return c <= 0
		}
	}
	return false
}

// argAs reinterprets a text argument as a number when the field is numeric.
func argAs(field tulip.Value, arg string) tulip.Value {
	if _, numeric := field.AsFloat(); numeric {
		if v, err := tulip.Coerce(tulip.StringValue(arg), tulip.TypeFloat); err == nil {
			return v
		}
	}
	return tulip.StringValue(arg)
}

// compareValues orders null first, then numbers, then everything else by
// text.
func compareValues(a, b tulip.Value) int {
	if a.IsNull() || b.IsNull() {
		switch {
		case a.IsNull() && b.IsNull():
			return 0
		case a.IsNull():
			return -1
		default:
			return 1
		}
	}
	af, aNum := a.AsFloat()
	bf, bNum := b.AsFloat()
	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(a.String(), b.String())
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
