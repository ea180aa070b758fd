package relation

import (
	"cmp"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/tuannm99/novarel/internal/tuple"
)

// Compare orders two attribute values of the same class: numbers
// (mixing ints and floats), strings, bools (false first) and times.
func Compare(a, b any) (int, error) {
	a, b = tuple.Normalize(a), tuple.Normalize(b)
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y), nil
		}
		if _, ok := b.(float64); ok {
			return cmp.Compare(float64(x), b.(float64)), nil
		}
	case float64:
		if isNumber(b) {
			y, err := cast.ToFloat64E(b)
			if err != nil {
				return 0, err
			}
			return cmp.Compare(x, y), nil
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmp.Compare(boolRank(x), boolRank(y)), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrOperandMismatch, a, b)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// compareTuples orders tuples on attrs, falling back to the printed form
// for values Compare cannot order.
func compareTuples(a, b tuple.Tuple, attrs []string) int {
	for _, at := range attrs {
		x, y := a.MustGet(at), b.MustGet(at)
		c, err := Compare(x, y)
		if err != nil {
			c = cmp.Compare(tuple.FormatValue(x), tuple.FormatValue(y))
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// lexCompare orders tuples on attrs and reports incomparable values.
func lexCompare(a, b tuple.Tuple, attrs []string) (int, error) {
	for _, at := range attrs {
		c, err := Compare(a.MustGet(at), b.MustGet(at))
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}
