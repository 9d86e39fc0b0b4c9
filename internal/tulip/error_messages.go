package tulip

// error_messages.go maps library errors to short operator-facing messages
// with a stable code to quote in bug reports.
//
// # Authentication (AUTH001-AUTH099)
//
//	AUTH001 - No credentials: nothing to authenticate with
//	          Action: Set TULIP_AUTH, or TULIP_API_KEY and TULIP_API_SECRET
//	AUTH002 - Unauthorized: the API rejected the credentials (401/403)
//	          Action: Check the key has access to this instance and table
//
// # Requests (REQ001-REQ099)
//
//	REQ001 - Malformed request: the API rejected the payload (400/422)
//	REQ002 - Not found: table, record or link does not exist (404)
//	REQ003 - Server error: the API failed internally (500)
//	REQ004 - Unknown response: the API answered with an unexpected status
//	REQ005 - Invalid page size: chunk size outside 1..100
//
// # Data (DATA001-DATA099)
//
//	DATA001 - Unknown column: a field or CSV header is not in the schema
//	DATA002 - Unsupported column type: the column type cannot be coerced
//	DATA003 - Invalid value: a value could not be converted to its column type
//	DATA004 - Missing id: a record has no id and random ids are off
//	DATA005 - Empty table: nothing to export
//
// # Cache (CACHE001-CACHE099)
//
//	CACHE001 - Record not cached
//	CACHE002 - Duplicate id in cache
//
// # Files (FILE001-FILE099)
//
//	FILE001 - No header row
//	FILE002 - Invalid CSV (ragged rows, bad quoting)
//
// # Network (NET001-NET099)
//
//	NET001 - Request cancelled
//	NET002 - Request timed out
//	NET003 - All request slots busy
//
// # Default (ERR000)
//
// Kinds are matched with errors.Is/As in table order; the first match wins.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
)

// UserMessage is the operator-facing rendering of an error.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // for support reference
}

type errorKind struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func isCSVParseError(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe)
}

func isCoercionFailure(err error) bool {
	var ce *CoercionError
	return errors.As(err, &ce) && !errors.Is(err, ErrUnsupportedColumnType)
}

var errorKinds = []errorKind{
	{is(ErrNoCredentials), UserMessage{
		Message: "No API credentials were provided",
		Action:  "Set TULIP_AUTH, or TULIP_API_KEY and TULIP_API_SECRET",
		Code:    "AUTH001",
	}},
	{is(ErrUnauthorized), UserMessage{
		Message: "The API rejected the credentials",
		Action:  "Check the API key has access to this instance and table",
		Code:    "AUTH002",
	}},
	{is(ErrMalformedRequest), UserMessage{
		Message: "The API rejected the request as malformed",
		Action:  "Check the record values match the column types",
		Code:    "REQ001",
	}},
	{is(ErrNotFound), UserMessage{
		Message: "The table, record or link was not found",
		Action:  "Verify the id is correct",
		Code:    "REQ002",
	}},
	{is(ErrInternal), UserMessage{
		Message: "The API failed with an internal error",
		Action:  "Try again later",
		Code:    "REQ003",
	}},
	{is(ErrUnknownResponse), UserMessage{
		Message: "The API answered with an unexpected status",
		Action:  "Check the instance address",
		Code:    "REQ004",
	}},
	{is(ErrInvalidPageSize), UserMessage{
		Message: "Chunk size must be between 1 and 100",
		Action:  "Pick a chunk size in range",
		Code:    "REQ005",
	}},
	{is(ErrUnknownColumn), UserMessage{
		Message: "A column is not part of the table",
		Action:  "Rename or drop the column so it matches the table schema",
		Code:    "DATA001",
	}},
	{is(ErrUnsupportedColumnType), UserMessage{
		Message: "The column type cannot be filled from text",
		Action:  "Leave this column out of the upload",
		Code:    "DATA002",
	}},
	{isCoercionFailure, UserMessage{
		Message: "A value does not match its column type",
		Action:  "Fix the value so it parses as the column type",
		Code:    "DATA003",
	}},
	{is(ErrMissingID), UserMessage{
		Message: "A record has no id",
		Action:  "Add an id column or enable random ids",
		Code:    "DATA004",
	}},
	{is(ErrEmptyTable), UserMessage{
		Message: "The table has no matching records",
		Action:  "Check the filters",
		Code:    "DATA005",
	}},
	{is(ErrRecordNotFound), UserMessage{
		Message: "The record is not in the cache",
		Action:  "Refresh the cache or check the id",
		Code:    "CACHE001",
	}},
	{is(ErrDuplicateID), UserMessage{
		Message: "Several cached records share this id",
		Action:  "Deduplicate the table",
		Code:    "CACHE002",
	}},
	{is(ErrNoHeader), UserMessage{
		Message: "The CSV file is empty",
		Action:  "Add a header row naming the columns",
		Code:    "FILE001",
	}},
	{isCSVParseError, UserMessage{
		Message: "The file is not a valid CSV",
		Action:  "Ensure every row has the same number of columns",
		Code:    "FILE002",
	}},
	{is(context.Canceled), UserMessage{
		Message: "The operation was cancelled",
		Action:  "Run it again when ready",
		Code:    "NET001",
	}},
	{is(context.DeadlineExceeded), UserMessage{
		Message: "The request timed out",
		Action:  "Check connectivity or raise TULIP_TIMEOUT",
		Code:    "NET002",
	}},
	{is(ErrPoolExhausted), UserMessage{
		Message: "Too many requests in flight",
		Action:  "Lower the concurrency",
		Code:    "NET003",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for details",
	Code:    "ERR000",
}

// MapError returns the user message for the first matching error kind, or
// the ERR000 fallback. A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, k := range errorKinds {
		if k.match(err) {
			return k.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
