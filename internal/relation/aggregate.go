package relation

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
	"github.com/tuannm99/novarel/internal/tuple"
)

// ValueFunc computes the aggregated value of one tuple. A nil ValueFunc
// reads the only attribute of a unary relation.
type ValueFunc func(t tuple.Tuple) any

// Attr is the ValueFunc reading attribute name.
func Attr(name string) ValueFunc {
	return func(t tuple.Tuple) any { return t.MustGet(name) }
}

type Agg int

const (
	AggCount Agg = iota
	AggSum
	AggAvg
	AggMax
	AggMin
	AggAll
	AggAny
)

func (a Agg) String() string {
	return [...]string{"COUNT", "SUM", "AVG", "MAX", "MIN", "ALL", "ANY"}[a]
}

// Summary is one aggregate column of Summarize.
type Summary struct {
	Agg  Agg
	Expr ValueFunc
}

func (s Summary) apply(r *Relation) (any, error) {
	switch s.Agg {
	case AggCount:
		if s.Expr != nil {
			return nil, fmt.Errorf("%w: COUNT takes no expression", ErrInvalidOperation)
		}
		return Count(r)
	case AggSum:
		return Sum(r, s.Expr)
	case AggAvg:
		return Avg(r, s.Expr)
	case AggMax:
		return Max(r, s.Expr)
	case AggMin:
		return Min(r, s.Expr)
	case AggAll:
		return All(r, s.Expr)
	case AggAny:
		return Any(r, s.Expr)
	}
	return nil, fmt.Errorf("%w: unknown aggregate %d", ErrInvalidOperation, int(s.Agg))
}

func values(r *Relation, expr ValueFunc) ([]any, error) {
	if expr == nil {
		if len(r.heading) != 1 {
			return nil, fmt.Errorf("%w: aggregate over %v needs an expression", ErrInvalidOperation, r.heading)
		}
		expr = Attr(r.heading[0])
	}
	// a view may yield a row twice; fold over the set
	ts, err := r.Tuples()
	if err != nil {
		return nil, err
	}
	out := make([]any, len(ts))
	for i, t := range ts {
		out[i] = tuple.Normalize(expr(t))
	}
	return out, nil
}

func Count(r *Relation) (int, error) { return r.Count() }

// Sum stays int64 while every value is an integer.
func Sum(r *Relation, expr ValueFunc) (any, error) {
	vals, err := values(r, expr)
	if err != nil {
		return nil, err
	}
	var (
		isum    int64
		fsum    float64
		isFloat bool
	)
	for _, v := range vals {
		switch x := v.(type) {
		case int64:
			isum += x
		case float64:
			isFloat = true
			fsum += x
		default:
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, fmt.Errorf("%w: sum of %T", ErrOperandMismatch, v)
			}
			isFloat = true
			fsum += f
		}
	}
	if isFloat {
		return fsum + float64(isum), nil
	}
	return isum, nil
}

// Avg of an empty relation is an error.
func Avg(r *Relation, expr ValueFunc) (float64, error) {
	vals, err := values(r, expr)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("%w: average of an empty relation", ErrInvalidOperation)
	}
	var sum float64
	for _, v := range vals {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, fmt.Errorf("%w: average of %T", ErrOperandMismatch, v)
		}
		sum += f
	}
	return sum / float64(len(vals)), nil
}

var maxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// seed returns the fold start for Max (low) or Min (high), chosen from a
// sample value.
func seed(sample any, low bool) any {
	switch sample.(type) {
	case time.Time:
		if low {
			return time.Time{}
		}
		return maxTime
	case float64:
		if low {
			return -math.MaxFloat64
		}
		return math.MaxFloat64
	case string, bool:
		return nil
	}
	if low {
		return int64(math.MinInt64)
	}
	return int64(math.MaxInt64)
}

func extreme(r *Relation, expr ValueFunc, low bool) (any, error) {
	vals, err := values(r, expr)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return seed(nil, low), nil
	}
	best := seed(vals[0], low)
	if best == nil {
		best = vals[0]
	}
	for _, v := range vals {
		c, err := Compare(v, best)
		if err != nil {
			return nil, err
		}
		if (low && c > 0) || (!low && c < 0) {
			best = v
		}
	}
	return best, nil
}

// Max of an empty relation is the smallest int64.
func Max(r *Relation, expr ValueFunc) (any, error) { return extreme(r, expr, true) }

// Min of an empty relation is the largest int64.
func Min(r *Relation, expr ValueFunc) (any, error) { return extreme(r, expr, false) }

func All(r *Relation, expr ValueFunc) (bool, error) {
	vals, err := values(r, expr)
	if err != nil {
		return false, err
	}
	for _, v := range vals {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return false, fmt.Errorf("%w: ALL over %T", ErrOperandMismatch, v)
		}
		if !b {
			return false, nil
		}
	}
	return true, nil
}

func Any(r *Relation, expr ValueFunc) (bool, error) {
	vals, err := values(r, expr)
	if err != nil {
		return false, err
	}
	for _, v := range vals {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return false, fmt.Errorf("%w: ANY over %T", ErrOperandMismatch, v)
		}
		if b {
			return true, nil
		}
	}
	return false, nil
}
