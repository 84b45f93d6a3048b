package paging

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout renders TIME values; fractional seconds appear only when set.
const TimeLayout = "15:04:05.999999"

// maxSafeInt is the largest integer a JSON number (IEEE 754 double) holds
// exactly.
const maxSafeInt = 1<<53 - 1

// CleanValue converts engine values into JSON-friendly ones.
//
// Arbitrary precision integers and decimals become float64 and lose
// precision beyond 2^53. 64-bit integers inside the safe range are kept
// as-is. Byte slices become strings. Nested lists and structs are cleaned
// recursively; maps get string keys.
func CleanValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case big.Int:
		f, _ := new(big.Float).SetInt(&x).Float64()
		return f
	case int64:
		if x > maxSafeInt || x < -maxSafeInt {
			return float64(x)
		}
		return x
	case uint64:
		if x > maxSafeInt {
			return float64(x)
		}
		return x
	case []byte:
		return string(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = CleanValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = CleanValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = CleanValue(item)
		}
		return out
	default:
		if f, ok := asFloater(v); ok {
			return f.Float64()
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[fmt.Sprint(iter.Key().Interface())] = CleanValue(iter.Value().Interface())
			}
			return out
		}
		return v
	}
}

// CleanTyped is CleanValue informed by the engine's column type. The
// driver scans UUID as 16 raw bytes and TIME as a time.Time on the zero
// date; both are rendered as the engine prints them.
func CleanTyped(v any, columnType string) any {
	switch strings.ToUpper(strings.TrimSpace(columnType)) {
	case "UUID":
		if id, ok := asUUID(v); ok {
			return id.String()
		}
	case "TIME":
		if t, ok := v.(time.Time); ok {
			return t.Format(TimeLayout)
		}
	case "TIME WITH TIME ZONE", "TIMETZ":
		if t, ok := v.(time.Time); ok {
			return t.Format(TimeLayout + "Z07:00")
		}
	}
	return CleanValue(v)
}

func asUUID(v any) (uuid.UUID, bool) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, true
	case [16]byte:
		return uuid.UUID(x), true
	case []byte:
		id, err := uuid.FromBytes(x)
		return id, err == nil
	case string:
		id, err := uuid.Parse(x)
		return id, err == nil
	}
	// Named 16-byte arrays, such as driver UUID types.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Len() == 16 && rv.Type().Elem().Kind() == reflect.Uint8 {
		var id uuid.UUID
		reflect.Copy(reflect.ValueOf(id[:]), rv)
		return id, true
	}
	return uuid.UUID{}, false
}

type floater interface {
	Float64() float64
}

// asFloater also finds Float64 methods declared on a pointer receiver, as
// on driver decimal types scanned by value.
func asFloater(v any) (floater, bool) {
	if f, ok := v.(floater); ok {
		return f, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	f, ok := ptr.Interface().(floater)
	return f, ok
}
