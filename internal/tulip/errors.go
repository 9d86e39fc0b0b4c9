package tulip

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Match with errors.Is; the typed errors below carry the
// details and unwrap to one of these.
var (
	ErrNoCredentials         = errors.New("no credentials found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrMalformedRequest      = errors.New("malformed request")
	ErrNotFound              = errors.New("resource not found")
	ErrInternal              = errors.New("internal error")
	ErrUnknownResponse       = errors.New("unknown response")
	ErrInvalidPageSize       = errors.New("invalid page size")
	ErrUnsupportedColumnType = errors.New("unsupported column type")
	ErrUnknownColumn         = errors.New("unknown column")
	ErrDuplicateID           = errors.New("duplicate record id")
	ErrRecordNotFound        = errors.New("record not found")
	ErrMissingID             = errors.New("missing record id")
	ErrEmptyTable            = errors.New("table has no records")
)

// APIError describes a request the API answered with a non-success status.
type APIError struct {
	Kind         error // one of the transport sentinels
	Method       string
	URL          string
	StatusCode   int
	RequestBody  []byte
	ResponseBody []byte
}

func (e *APIError) Error() string {
	switch e.Kind {
	case ErrUnauthorized:
		return fmt.Sprintf("the %s request to %s was not able to authenticate using the given credentials (status %d)",
			e.Method, e.URL, e.StatusCode)
	case ErrMalformedRequest:
		return fmt.Sprintf("the %s request to %s was malformed (status %d)", e.Method, e.URL, e.StatusCode)
	case ErrNotFound:
		return fmt.Sprintf("the %s request to %s did not find the requested resource (status %d)",
			e.Method, e.URL, e.StatusCode)
	case ErrInternal:
		return fmt.Sprintf("the %s request to %s resulted in an internal error (status %d), request body: %s",
			e.Method, e.URL, e.StatusCode, e.RequestBody)
	default:
		return fmt.Sprintf("the %s request to %s resulted in an unknown response (status %d)",
			e.Method, e.URL, e.StatusCode)
	}
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// classifyStatus maps an HTTP status to a transport sentinel.
// Returns nil for success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrMalformedRequest
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusInternalServerError:
		return ErrInternal
	default:
		return ErrUnknownResponse
	}
}

// InvalidPageSizeError is returned when a stream is requested with a chunk
// size outside [MinChunkSize, MaxChunkSize].
type InvalidPageSizeError struct {
	Size int
}

func (e *InvalidPageSizeError) Error() string {
	return fmt.Sprintf("chunk size must be between %d and %d, %d is invalid", MinChunkSize, MaxChunkSize, e.Size)
}

func (e *InvalidPageSizeError) Unwrap() error {
	return ErrInvalidPageSize
}

// CoercionError reports a value that could not be converted to its
// column's declared type.
type CoercionError struct {
	Column string
	Type   ColumnType
	Value  Value
	Err    error
}

func (e *CoercionError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("coerce %s to %s: %v", e.Value.GoString(), e.Type, e.Err)
	}
	return fmt.Sprintf("coerce column %q value %s to %s: %v", e.Column, e.Value.GoString(), e.Type, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// ColumnError reports a field name that does not exist in the table schema.
type ColumnError struct {
	Column string
	Source string // "record" or "csv header"
}

func (e *ColumnError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("column %q not found in table", e.Column)
	}
	return fmt.Sprintf("column %q found in %s, but not in table", e.Column, e.Source)
}

func (e *ColumnError) Unwrap() error {
	return ErrUnknownColumn
}

// CacheError reports a lookup failure in a CachedTable.
type CacheError struct {
	RecordID string
	Kind     error // ErrRecordNotFound or ErrDuplicateID
}

func (e *CacheError) Error() string {
	if e.Kind == ErrDuplicateID {
		return fmt.Sprintf("multiple records were found with the id %q", e.RecordID)
	}
	return fmt.Sprintf("no record found with the id %q", e.RecordID)
}

func (e *CacheError) Unwrap() error {
	return e.Kind
}
