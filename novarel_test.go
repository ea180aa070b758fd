package novarel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuannm99/novarel"
)

func TestFacade_SuppliersAndShipments(t *testing.T) {
	ctx := context.Background()
	db, err := novarel.Open(ctx, novarel.Options{})
	require.NoError(t, err)
	defer func() { _ = db.Close(ctx) }()

	s, err := db.NewRelation([]string{"S#", "CITY"}, [][]any{{"S1", "London"}, {"S2", "Paris"}},
		novarel.WithConstraints(map[string]novarel.Constraint{"PK": novarel.Key("S#")}))
	require.NoError(t, err)
	require.NoError(t, db.Define("S", s))

	sp, err := db.NewRelation([]string{"S#", "P#", "QTY"}, [][]any{
		{"S1", "P1", 300}, {"S1", "P2", 200}, {"S2", "P1", 400},
	}, novarel.WithConstraints(map[string]novarel.Constraint{
		"PK":  novarel.Key("S#", "P#"),
		"fkS": novarel.ForeignKey("S", map[string]string{"S#": "S#"}),
	}))
	require.NoError(t, err)
	require.NoError(t, db.Define("SP", sp))

	spr, err := db.Get("SP")
	require.NoError(t, err)
	sr, err := db.Get("S")
	require.NoError(t, err)

	totals, err := novarel.Summarize(spr, sr, map[string]novarel.Summary{
		"TOTAL": {Agg: novarel.AggSum, Expr: novarel.Attr("QTY")},
	})
	require.NoError(t, err)
	ok, err := totals.Contains(novarel.TupleOf("S#", "S1", "CITY", "London", "TOTAL", 500))
	require.NoError(t, err)
	require.True(t, ok)

	big, err := novarel.RestrictExpr(spr, `t["QTY"] > 300`)
	require.NoError(t, err)
	n, err := novarel.Count(big)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = db.Delete("S", func(t novarel.Tuple) bool { return t.MustGet("S#") == "S2" })
	require.ErrorIs(t, err, novarel.ErrConstraintViolation)
}
