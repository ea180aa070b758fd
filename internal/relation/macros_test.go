package relation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuannm99/novarel/internal/tuple"
)

func qty(tp tuple.Tuple) int64 { return tp.MustGet("QTY").(int64) }

func TestRestrict_QuantityOver300(t *testing.T) {
	sp := shipments(t)

	big, err := Restrict(sp, func(tp tuple.Tuple) bool { return qty(tp) > 300 })
	require.NoError(t, err)
	fourHundred, err := Restrict(sp, func(tp tuple.Tuple) bool { return qty(tp) == 400 })
	require.NoError(t, err)

	require.Equal(t, mustCount(t, fourHundred), mustCount(t, big))
	require.Equal(t, 3, mustCount(t, big))
	require.Equal(t, sp.Heading(), big.Heading())
	require.Equal(t, []string{"P#", "S#"}, big.Constraints()["PK"].Attributes())
}

func TestRestrictExpr(t *testing.T) {
	sp := shipments(t)

	big, err := RestrictExpr(sp, `t["QTY"] > 300 && t["S#"] != "S2"`)
	require.NoError(t, err)
	requireRelEqual(t, rel(t, []string{"S#", "P#", "QTY"},
		[]any{"S1", "P3", 400}, []any{"S4", "P5", 400}), big)

	_, err = RestrictExpr(sp, `t["QTY"] >`)
	require.Error(t, err)

	_, err = RestrictExpr(sp, `t["QTY"]`)
	require.ErrorIs(t, err, ErrOperandMismatch)

	require.NoError(t, CheckExpr(`t.CITY == "Paris"`))
}

func TestExtend(t *testing.T) {
	p := parts(t)
	grams, err := Extend(p, []string{"GMWT"}, func(tp tuple.Tuple) map[string]any {
		return map[string]any{"GMWT": tp.MustGet("WEIGHT").(int64) * 454}
	})
	require.NoError(t, err)
	require.Equal(t, 6, mustCount(t, grams))
	one, err := Restrict(grams, func(tp tuple.Tuple) bool { return tp.MustGet("P#") == "P1" })
	require.NoError(t, err)
	tp, err := one.ToTuple()
	require.NoError(t, err)
	require.Equal(t, int64(12*454), tp.MustGet("GMWT"))

	_, err = Extend(p, []string{"CITY"}, func(tuple.Tuple) map[string]any { return map[string]any{"CITY": "x"} })
	require.ErrorIs(t, err, ErrHeading)

	_, err = Extend(p, []string{"A"}, func(tuple.Tuple) map[string]any { return map[string]any{"B": 1} })
	require.ErrorIs(t, err, ErrHeading)
}

func TestSemijoinSemiminus(t *testing.T) {
	s, sp := suppliers(t), shipments(t)

	active, err := Semijoin(s, sp)
	require.NoError(t, err)
	require.Equal(t, s.Heading(), active.Heading())
	require.Equal(t, 4, mustCount(t, active))

	idle, err := Semiminus(s, sp)
	require.NoError(t, err)
	tp, err := idle.ToTuple()
	require.NoError(t, err)
	require.Equal(t, "S5", tp.MustGet("S#"))
}

func TestSummarize(t *testing.T) {
	sp := shipments(t)
	keys, err := Project(suppliers(t), "S#")
	require.NoError(t, err)

	sum, err := Summarize(sp, keys, map[string]Summary{
		"TOTAL": {Agg: AggSum, Expr: Attr("QTY")},
		"N":     {Agg: AggCount},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"N", "S#", "TOTAL"}, sum.Heading())

	want := rel(t, []string{"S#", "TOTAL", "N"},
		[]any{"S1", 1300, 6}, []any{"S2", 700, 2}, []any{"S3", 200, 1},
		[]any{"S4", 900, 3}, []any{"S5", 0, 0})
	requireRelEqual(t, want, sum)

	_, err = Summarize(sp, keys, map[string]Summary{"N": {Agg: AggCount, Expr: Attr("QTY")}})
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestGroupUngroup_RoundTrip(t *testing.T) {
	sp := shipments(t)

	g, err := Group(sp, []string{"P#", "QTY"}, "PQ")
	require.NoError(t, err)
	require.Equal(t, []string{"PQ", "S#"}, g.Heading())
	require.Equal(t, 4, mustCount(t, g))

	s1, err := Restrict(g, func(tp tuple.Tuple) bool { return tp.MustGet("S#") == "S1" })
	require.NoError(t, err)
	tp, err := s1.ToTuple()
	require.NoError(t, err)
	nested := tp.MustGet("PQ").(*Relation)
	require.Equal(t, []string{"P#", "QTY"}, nested.Heading())
	require.Equal(t, 6, mustCount(t, nested))

	back, err := Ungroup(g, "PQ")
	require.NoError(t, err)
	requireRelEqual(t, sp, back)
}

func TestUngroup_EdgeCases(t *testing.T) {
	empty, err := New([]string{"K", "G"}, nil)
	require.NoError(t, err)
	out, err := Ungroup(empty, "G")
	require.NoError(t, err)
	require.Equal(t, []string{"K"}, out.Heading())
	require.Equal(t, 0, mustCount(t, out))

	mixed := rel(t, []string{"K", "G"},
		[]any{1, rel(t, []string{"A"}, []any{1})},
		[]any{2, rel(t, []string{"B"}, []any{1})})
	_, err = Ungroup(mixed, "G")
	require.ErrorIs(t, err, ErrOperandMismatch)

	notRel := rel(t, []string{"K", "G"}, []any{1, "x"})
	_, err = Ungroup(notRel, "G")
	require.ErrorIs(t, err, ErrOperandMismatch)
}

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	s := suppliers(t)

	w, err := Wrap(s, []string{"SNAME", "CITY"}, "INFO")
	require.NoError(t, err)
	require.Equal(t, []string{"INFO", "S#", "STATUS"}, w.Heading())

	ts := mustTuples(t, w)
	info := ts[0].MustGet("INFO").(tuple.Tuple)
	require.Equal(t, []string{"CITY", "SNAME"}, info.Attributes())

	back, err := Unwrap(w, "INFO")
	require.NoError(t, err)
	requireRelEqual(t, s, back)
}

func TestDivideSimple(t *testing.T) {
	sp := shipments(t)
	pp, err := Project(sp, "S#", "P#")
	require.NoError(t, err)

	p1p2 := rel(t, []string{"P#"}, []any{"P1"}, []any{"P2"})
	q, err := DivideSimple(pp, p1p2)
	require.NoError(t, err)
	requireRelEqual(t, rel(t, []string{"S#"}, []any{"S1"}, []any{"S2"}), q)

	allParts, err := Project(parts(t), "P#")
	require.NoError(t, err)
	q, err = DivideSimple(pp, allParts)
	require.NoError(t, err)
	requireRelEqual(t, rel(t, []string{"S#"}, []any{"S1"}), q)
}

func TestDivide_Todd(t *testing.T) {
	// pairs of suppliers (A) and suppliers (B) where A supplies every part B does
	sp := shipments(t)
	a, err := Project(suppliers(t), "S#")
	require.NoError(t, err)
	a, err = Rename(a, map[string]string{"S#": "A"})
	require.NoError(t, err)
	b, err := Rename(a, map[string]string{"A": "B"})
	require.NoError(t, err)

	m, err := Project(sp, "S#", "P#")
	require.NoError(t, err)
	ma, err := Rename(m, map[string]string{"S#": "A"})
	require.NoError(t, err)
	mb, err := Rename(m, map[string]string{"S#": "B"})
	require.NoError(t, err)

	q, err := Divide(a, b, ma, mb)
	require.NoError(t, err)

	s3, err := Restrict(q, func(tp tuple.Tuple) bool { return tp.MustGet("B") == "S3" })
	require.NoError(t, err)
	// S3 only supplies P2; S1, S2, S3 and S4 all do
	require.Equal(t, 4, mustCount(t, s3))

	s2, err := Restrict(q, func(tp tuple.Tuple) bool { return tp.MustGet("B") == "S2" })
	require.NoError(t, err)
	requireRelEqual(t, rel(t, []string{"A", "B"}, []any{"S1", "S2"}, []any{"S2", "S2"}), s2)
}

func TestGenerate(t *testing.T) {
	g, err := Generate(map[string]any{"PI": 3.14, "NAME": "pi"})
	require.NoError(t, err)
	tp, err := g.ToTuple()
	require.NoError(t, err)
	require.True(t, tp.Equal(tuple.Of("PI", 3.14, "NAME", "pi")))
}

func TestTClose(t *testing.T) {
	edges := rel(t, []string{"MAJOR", "MINOR"},
		[]any{"P1", "P2"}, []any{"P1", "P3"}, []any{"P2", "P3"},
		[]any{"P2", "P4"}, []any{"P3", "P5"}, []any{"P4", "P6"})

	c, err := TClose(edges)
	require.NoError(t, err)
	require.Equal(t, 11, mustCount(t, c))
	ok, err := c.Contains(tuple.Of("MAJOR", "P1", "MINOR", "P6"))
	require.NoError(t, err)
	require.True(t, ok)

	cc, err := TClose(c)
	require.NoError(t, err)
	requireRelEqual(t, c, cc)

	_, err = TClose(shipments(t))
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestQuota(t *testing.T) {
	sp := shipments(t)

	top, err := Quota(sp, 2, []string{"QTY"}, false)
	require.NoError(t, err)
	// three rows tie on 400
	require.Equal(t, 3, mustCount(t, top))

	low, err := Quota(sp, 1, []string{"QTY"}, true)
	require.NoError(t, err)
	require.Equal(t, 2, mustCount(t, low))
	for _, tp := range mustTuples(t, low) {
		require.Equal(t, int64(100), qty(tp))
	}

	_, err = Quota(sp, 1, []string{"NOPE"}, true)
	require.ErrorIs(t, err, ErrHeading)

	_, err = Quota(sp, 1, nil, true)
	require.ErrorIs(t, err, ErrInvalidOperation)
}
