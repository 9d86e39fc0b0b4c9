package tulip

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// TimestampLayout is how coerced timestamps are rendered.
const TimestampLayout = "2006-01-02T15:04:05Z"

var errNotNumeric = errors.New("not a number")

// Coerce converts v into the representation the API expects for a column
// of type t:
//
//	string     v rendered as text
//	integer    text parsed as a float then truncated ("3.7" -> 3)
//	float      text parsed, numbers widened
//	boolean    truthiness ("" and 0 are false, any other text is true)
//	timestamp  free-form date text, offset dropped, as TimestampLayout
//
// An unknown t fails with ErrUnsupportedColumnType. Values that cannot be
// converted fail with *CoercionError.
func Coerce(v Value, t ColumnType) (Value, error) {
	switch t {
	case TypeString:
		if v.Kind() == KindString {
			return v, nil
		}
		return StringValue(v.String()), nil

	case TypeInteger:
		i, err := toInteger(v)
		if err != nil {
			return Value{}, &CoercionError{Type: t, Value: v, Err: err}
		}
		return Int64Value(i), nil

	case TypeFloat:
		f, err := toFloat(v)
		if err != nil {
			return Value{}, &CoercionError{Type: t, Value: v, Err: err}
		}
		return FloatValue(f), nil

	case TypeBoolean:
		return BoolValue(v.Truthy()), nil

	case TypeTimestamp:
		ts, err := toTimestamp(v)
		if err != nil {
			return Value{}, &CoercionError{Type: t, Value: v, Err: err}
		}
		return StringValue(ts), nil
	}

	return Value{}, &CoercionError{Type: t, Value: v, Err: ErrUnsupportedColumnType}
}

func toInteger(v Value) (int64, error) {
	switch v.Kind() {
	case KindInt:
		i, _ := v.AsInt()
		return i, nil
	case KindBool:
		if b, _ := v.AsBool(); b {
			return 1, nil
		}
		return 0, nil
	case KindString, KindFloat:
		f, err := toFloat(v)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%s cannot be an integer", formatFloat(f))
		}
		if f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, fmt.Errorf("%s overflows int64", formatFloat(f))
		}
		return int64(math.Trunc(f)), nil
	}
	return 0, errNotNumeric
}

func toFloat(v Value) (float64, error) {
	switch v.Kind() {
	case KindInt, KindFloat:
		f, _ := v.AsFloat()
		return f, nil
	case KindBool:
		if b, _ := v.AsBool(); b {
			return 1, nil
		}
		return 0, nil
	case KindString:
		s, _ := v.AsString()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, errNotNumeric
		}
		return f, nil
	}
	return 0, errNotNumeric
}

func toTimestamp(v Value) (string, error) {
	s, ok := v.AsString()
	if !ok {
		return "", fmt.Errorf("%s is not date text", v.Kind())
	}
	parsed, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return "", err
	}
	// Keep the wall clock as written and label it UTC.
	wall := time.Date(parsed.Year(), parsed.Month(), parsed.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(), 0, time.UTC)
	return wall.Format(TimestampLayout), nil
}

// CoerceRecord returns a new record with every field coerced to its column
// type. All field names are checked against types before any value is
// touched; the first unknown name (in sorted order) fails with
// *ColumnError.
func CoerceRecord(rec Record, types ColumnTypes) (Record, error) {
	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := types[name]; !ok {
			return nil, &ColumnError{Column: name, Source: "record"}
		}
	}

	out := make(Record, len(rec))
	for _, name := range names {
		v, err := Coerce(rec[name], types[name])
		if err != nil {
			var ce *CoercionError
			if errors.As(err, &ce) {
				ce.Column = name
			}
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}
