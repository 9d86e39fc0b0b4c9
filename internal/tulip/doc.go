// Package tulip is a client for the Tulip tables API.
//
// It covers tables (typed rows), table links (record-to-record relations)
// and machine attribute reports. Everything goes through one authenticated
// [Client]; tables, links and machines are cheap handles on top of it.
//
// # Client
//
// [NewClient] resolves credentials once, in priority order: an explicit
// token, an API key and secret pair, then the TULIP_AUTH value captured by
// the caller's configuration. Requests share a bounded pool of slots
// ([SlotLimiter]) sized by Config.Concurrency and may be rate limited.
// Nothing is retried; every non-success status becomes an [*APIError]:
//
//	rec, err := client.Table("abc").Record(ctx, "r1")
//	if errors.Is(err, tulip.ErrNotFound) {
//	    ...
//	}
//
// # Values
//
// Record fields are [Value]s, a closed sum type over null, string, integer,
// float, boolean, object and array. JSON numbers without a fraction decode
// as integers.
//
// # Streaming
//
// [Table.Stream] pages through a table with offset/limit requests, one page
// at a time, and exposes the result as a pull iterator:
//
//	it, err := table.Stream(tulip.DefaultStreamOptions())
//	if err != nil {
//	    return err
//	}
//	for it.Next(ctx) {
//	    use(it.Record())
//	}
//	return it.Err()
//
// A Limit of L yields up to L+1 records.
//
// # Ingestion
//
// [Table.CreateRecords] creates records one request at a time, optionally
// in parallel. With WarnOnFailure, records the API rejects as malformed are
// logged and skipped; any other failure stops the batch. [Table.Ingest]
// first coerces each record to the schema's column types with [Coerce],
// and [CSVUploader] feeds it rows from a CSV file.
//
// # Error Handling
//
// [MapError] turns any error from this package into a [UserMessage] with a
// code for support reference.
package tulip
