package tuple

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tuannm99/novarel/internal/alias/bx"
)

// Value is implemented by composite attribute values (relations) that
// carry their own hash and equality.
type Value interface {
	HashValue() uint64
	EqualValue(other any) bool
}

const nilHash uint64 = 0x9e3779b97f4a7c15

// Normalize folds the integer kinds into int64 and float32 into float64 so
// that equal numbers hash and compare equal whatever Go type built them.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

// HashValue hashes a normalized attribute value.
func HashValue(v any) uint64 {
	var buf [9]byte
	switch x := v.(type) {
	case nil:
		return nilHash
	case string:
		d := xxhash.New()
		_, _ = d.WriteString("s")
		_, _ = d.WriteString(x)
		return d.Sum64()
	case int64:
		buf[0] = 'i'
		bx.PutU64(buf[1:], uint64(x))
		return xxhash.Sum64(buf[:])
	case float64:
		if x == 0 {
			x = 0 // -0 and +0 are equal
		}
		buf[0] = 'f'
		bx.PutU64(buf[1:], math.Float64bits(x))
		return xxhash.Sum64(buf[:])
	case bool:
		buf[0] = 'b'
		if x {
			buf[1] = 1
		}
		return xxhash.Sum64(buf[:2])
	case time.Time:
		buf[0] = 't'
		bx.PutU64(buf[1:], uint64(x.UnixNano()))
		return xxhash.Sum64(buf[:])
	case []byte:
		d := xxhash.New()
		_, _ = d.WriteString("y")
		_, _ = d.Write(x)
		return d.Sum64()
	case Tuple:
		return x.Hash()
	case Value:
		return x.HashValue()
	}
	return xxhash.Sum64String(fmt.Sprintf("%T:%v", v, v))
}

// EqualValues reports whether two normalized attribute values are equal.
func EqualValues(a, b any) bool {
	switch x := a.(type) {
	case Tuple:
		y, ok := b.(Tuple)
		return ok && x.Equal(y)
	case Value:
		return x.EqualValue(b)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
