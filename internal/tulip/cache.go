package tulip

import (
	"context"
	"sync"
)

// CachedTable holds every record matching a filter set in memory. Only use
// it for small tables. Reads are safe while Refresh runs.
type CachedTable struct {
	table   *Table
	filters []Filter

	mu      sync.RWMutex
	records []Record
}

// NewCachedTable loads the table's records matching filters.
func NewCachedTable(ctx context.Context, t *Table, filters []Filter) (*CachedTable, error) {
	c := &CachedTable{table: t, filters: filters}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh reloads all records. On failure the previous records are kept.
func (c *CachedTable) Refresh(ctx context.Context) error {
	opts := DefaultStreamOptions()
	opts.Filters = c.filters

	it, err := c.table.Stream(opts)
	if err != nil {
		return err
	}
	records, err := it.All(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.records = records
	c.mu.Unlock()
	return nil
}

// Records returns a copy of the cached record list.
func (c *CachedTable) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Record(nil), c.records...)
}

// Len returns the number of cached records.
func (c *CachedTable) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Record returns the cached record with the given id. It fails with a
// *CacheError matching ErrRecordNotFound or ErrDuplicateID.
func (c *CachedTable) Record(id string) (Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var found Record
	matches := 0
	for _, rec := range c.records {
		if rec.HasID() && rec.ID() == id {
			found = rec
			matches++
		}
	}

	switch matches {
	case 1:
		return found, nil
	case 0:
		return nil, &CacheError{RecordID: id, Kind: ErrRecordNotFound}
	default:
		return nil, &CacheError{RecordID: id, Kind: ErrDuplicateID}
	}
}
