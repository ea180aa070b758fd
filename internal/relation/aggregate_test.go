package relation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tuannm99/novarel/internal/tuple"
)

func TestAggregates_Numeric(t *testing.T) {
	sp := shipments(t)

	n, err := Count(sp)
	require.NoError(t, err)
	require.Equal(t, 12, n)

	sum, err := Sum(sp, Attr("QTY"))
	require.NoError(t, err)
	require.Equal(t, int64(3100), sum)

	avg, err := Avg(sp, Attr("QTY"))
	require.NoError(t, err)
	require.InDelta(t, 3100.0/12, avg, 1e-9)

	hi, err := Max(sp, Attr("QTY"))
	require.NoError(t, err)
	require.Equal(t, int64(400), hi)

	lo, err := Min(sp, Attr("QTY"))
	require.NoError(t, err)
	require.Equal(t, int64(100), lo)
}

func TestAggregates_DefaultExpression(t *testing.T) {
	q, err := Project(shipments(t), "QTY")
	require.NoError(t, err)

	sum, err := Sum(q, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1000), sum)

	_, err = Sum(shipments(t), nil)
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestAggregates_FloatSum(t *testing.T) {
	r := rel(t, []string{"X"}, []any{1}, []any{2.5})
	sum, err := Sum(r, nil)
	require.NoError(t, err)
	require.Equal(t, 3.5, sum)
}

func TestAggregates_Empty(t *testing.T) {
	empty := rel(t, []string{"X"})

	_, err := Avg(empty, nil)
	require.ErrorIs(t, err, ErrInvalidOperation)

	sum, err := Sum(empty, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), sum)

	hi, err := Max(empty, nil)
	require.NoError(t, err)
	require.Equal(t, int64(math.MinInt64), hi)

	lo, err := Min(empty, nil)
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), lo)

	all, err := All(empty, nil)
	require.NoError(t, err)
	require.True(t, all)

	anyv, err := Any(empty, nil)
	require.NoError(t, err)
	require.False(t, anyv)
}

func TestAggregates_Dates(t *testing.T) {
	d1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	r := rel(t, []string{"D"}, []any{d1}, []any{d2})

	hi, err := Max(r, nil)
	require.NoError(t, err)
	require.True(t, d2.Equal(hi.(time.Time)))

	lo, err := Min(r, nil)
	require.NoError(t, err)
	require.True(t, d1.Equal(lo.(time.Time)))
}

func TestAggregates_Booleans(t *testing.T) {
	r := rel(t, []string{"K", "OK"}, []any{1, true}, []any{2, false})

	all, err := All(r, Attr("OK"))
	require.NoError(t, err)
	require.False(t, all)

	anyv, err := Any(r, Attr("OK"))
	require.NoError(t, err)
	require.True(t, anyv)

	_, err = All(r, func(tuple.Tuple) any { return "maybe" })
	require.ErrorIs(t, err, ErrOperandMismatch)
}

func TestAggregates_Strings(t *testing.T) {
	hi, err := Max(suppliers(t), Attr("SNAME"))
	require.NoError(t, err)
	require.Equal(t, "Smith", hi)
}

func TestAggregates_ViewRepeatsRow(t *testing.T) {
	v, err := NewView([]string{"A"}, NoArg(func() ([]tuple.Tuple, error) {
		return []tuple.Tuple{tuple.Of("A", 5), tuple.Of("A", 5), tuple.Of("A", 1)}, nil
	}))
	require.NoError(t, err)

	n, err := Count(v)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	sum, err := Sum(v, nil)
	require.NoError(t, err)
	require.Equal(t, int64(6), sum)

	avg, err := Avg(v, nil)
	require.NoError(t, err)
	require.InDelta(t, 3.0, avg, 1e-9)

	ok, err := All(v, func(tp tuple.Tuple) any { return tp.MustGet("A").(int64) > 0 })
	require.NoError(t, err)
	require.True(t, ok)
}
