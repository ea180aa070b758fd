package relation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuannm99/novarel/internal/tuple"
)

// Date's suppliers and parts.

func suppliers(t *testing.T) *Relation {
	t.Helper()
	r, err := New([]string{"S#", "SNAME", "STATUS", "CITY"}, [][]any{
		{"S1", "Smith", 20, "London"},
		{"S2", "Jones", 10, "Paris"},
		{"S3", "Blake", 30, "Paris"},
		{"S4", "Clark", 20, "London"},
		{"S5", "Adams", 30, "Athens"},
	}, WithConstraints(map[string]Constraint{"PK": Key("S#")}))
	require.NoError(t, err)
	return r
}

func parts(t *testing.T) *Relation {
	t.Helper()
	r, err := New([]string{"P#", "PNAME", "COLOR", "WEIGHT", "CITY"}, [][]any{
		{"P1", "Nut", "Red", 12, "London"},
		{"P2", "Bolt", "Green", 17, "Paris"},
		{"P3", "Screw", "Blue", 17, "Oslo"},
		{"P4", "Screw", "Red", 14, "London"},
		{"P5", "Cam", "Blue", 12, "Paris"},
		{"P6", "Cog", "Red", 19, "London"},
	}, WithConstraints(map[string]Constraint{"PK": Key("P#")}))
	require.NoError(t, err)
	return r
}

var spRows = [][]any{
	{"S1", "P1", 300}, {"S1", "P2", 200}, {"S1", "P3", 400},
	{"S1", "P4", 200}, {"S1", "P5", 100}, {"S1", "P6", 100},
	{"S2", "P1", 300}, {"S2", "P2", 400},
	{"S3", "P2", 200},
	{"S4", "P2", 200}, {"S4", "P4", 300}, {"S4", "P5", 400},
}

// shipments has no foreign keys; the engine package tests those.
func shipments(t *testing.T) *Relation {
	t.Helper()
	r, err := New([]string{"S#", "P#", "QTY"}, spRows,
		WithConstraints(map[string]Constraint{"PK": Key("S#", "P#")}))
	require.NoError(t, err)
	return r
}

func rel(t *testing.T, heading []string, rows ...[]any) *Relation {
	t.Helper()
	r, err := New(heading, rows)
	require.NoError(t, err)
	return r
}

func requireRelEqual(t *testing.T, want, got *Relation) {
	t.Helper()
	require.True(t, want.Equal(got), "want %s\n got %s", want, got)
}

func mustTuples(t *testing.T, r *Relation) []tuple.Tuple {
	t.Helper()
	ts, err := r.Tuples()
	require.NoError(t, err)
	return ts
}

func mustCount(t *testing.T, r *Relation) int {
	t.Helper()
	n, err := Count(r)
	require.NoError(t, err)
	return n
}
