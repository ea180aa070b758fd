package relation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuannm99/novarel/internal/tuple"
)

func TestAnd_JoinLaws(t *testing.T) {
	s, p, sp := suppliers(t), parts(t), shipments(t)

	ab, err := And(s, sp)
	require.NoError(t, err)
	ba, err := And(sp, s)
	require.NoError(t, err)
	requireRelEqual(t, ab, ba)
	require.Equal(t, 12, mustCount(t, ab))
	require.Equal(t, []string{"CITY", "P#", "QTY", "S#", "SNAME", "STATUS"}, ab.Heading())

	left, err := And(ab, p)
	require.NoError(t, err)
	spp, err := And(sp, p)
	require.NoError(t, err)
	right, err := And(s, spp)
	require.NoError(t, err)
	requireRelEqual(t, left, right)
}

func TestAnd_IntersectionAndProduct(t *testing.T) {
	a := rel(t, []string{"X"}, []any{1}, []any{2}, []any{3})
	b := rel(t, []string{"X"}, []any{2}, []any{3}, []any{4})
	j, err := And(a, b)
	require.NoError(t, err)
	requireRelEqual(t, rel(t, []string{"X"}, []any{2}, []any{3}), j)

	c := rel(t, []string{"Y"}, []any{"a"}, []any{"b"})
	j, err = And(a, c)
	require.NoError(t, err)
	require.Equal(t, 6, mustCount(t, j))
}

func TestAnd_TwoProbeViewsRejected(t *testing.T) {
	v := func() *Relation {
		r, err := NewView([]string{"A"}, OneArg(func(p tuple.Tuple) ([]tuple.Tuple, error) {
			return []tuple.Tuple{p}, nil
		}))
		require.NoError(t, err)
		return r
	}
	_, err := And(v(), v())
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestAnd_NoArgDrivesOneArg(t *testing.T) {
	nums, err := NewView([]string{"N"}, NoArg(func() ([]tuple.Tuple, error) {
		return []tuple.Tuple{tuple.Of("N", 1), tuple.Of("N", 2)}, nil
	}))
	require.NoError(t, err)
	double, err := NewView([]string{"N", "D"}, OneArg(func(p tuple.Tuple) ([]tuple.Tuple, error) {
		n := p.MustGet("N").(int64)
		return []tuple.Tuple{tuple.Of("N", n, "D", 2*n)}, nil
	}))
	require.NoError(t, err)

	j, err := And(double, nums)
	require.NoError(t, err)
	requireRelEqual(t, rel(t, []string{"N", "D"}, []any{1, 2}, []any{2, 4}), j)
}

func TestOrMinus_Laws(t *testing.T) {
	sp := shipments(t)

	u, err := Or(sp, sp)
	require.NoError(t, err)
	requireRelEqual(t, sp, u)

	d, err := Minus(sp, sp)
	require.NoError(t, err)
	require.Equal(t, sp.Heading(), d.Heading())
	require.Equal(t, 0, mustCount(t, d))

	a := rel(t, []string{"X"}, []any{1}, []any{2})
	b := rel(t, []string{"X"}, []any{2}, []any{3})
	ab, err := Or(a, b)
	require.NoError(t, err)
	ba, err := Or(b, a)
	require.NoError(t, err)
	requireRelEqual(t, ab, ba)
	require.Equal(t, 3, mustCount(t, ab))

	diff, err := Minus(a, b)
	require.NoError(t, err)
	requireRelEqual(t, rel(t, []string{"X"}, []any{1}), diff)

	_, err = Or(a, sp)
	require.ErrorIs(t, err, ErrOperandMismatch)
	_, err = Minus(a, sp)
	require.ErrorIs(t, err, ErrOperandMismatch)
}

func TestRemove_KeyInference(t *testing.T) {
	sp := shipments(t)

	qty, err := Remove(sp, "S#", "P#")
	require.NoError(t, err)
	requireRelEqual(t, rel(t, []string{"QTY"}, []any{100}, []any{200}, []any{300}, []any{400}), qty)
	require.Nil(t, qty.Constraints()["PK"].Attributes())

	s, err := Remove(suppliers(t), "CITY")
	require.NoError(t, err)
	require.Equal(t, []string{"S#"}, s.Constraints()["PK"].Attributes())

	_, err = Remove(sp, "NOPE")
	require.ErrorIs(t, err, ErrHeading)
}

func TestProject_Identity(t *testing.T) {
	sp := shipments(t)
	p, err := Project(sp, sp.Heading()...)
	require.NoError(t, err)
	requireRelEqual(t, sp, p)

	cities, err := Project(suppliers(t), "CITY")
	require.NoError(t, err)
	require.Equal(t, 3, mustCount(t, cities))
}

func TestRename(t *testing.T) {
	s := suppliers(t)
	r, err := Rename(s, map[string]string{"S#": "SNO", "CITY": "TOWN"})
	require.NoError(t, err)
	require.Equal(t, []string{"SNAME", "SNO", "STATUS", "TOWN"}, r.Heading())
	require.Equal(t, []string{"SNO"}, r.Constraints()["PK"].Attributes())
	require.Equal(t, 5, mustCount(t, r))

	_, err = Rename(s, map[string]string{"S#": "CITY"})
	require.ErrorIs(t, err, ErrHeading)
	_, err = Rename(s, map[string]string{"S#": ""})
	require.ErrorIs(t, err, ErrHeading)
	_, err = Rename(s, map[string]string{"NOPE": "X"})
	require.ErrorIs(t, err, ErrHeading)
}
