// Package novarel is an embeddable relational algebra engine: relations as
// sets of tuples, the algebra over them, declared constraints and a small
// transactional database of named relvars.
package novarel

import (
	"context"

	"github.com/tuannm99/novarel/internal/engine"
	"github.com/tuannm99/novarel/internal/relation"
	"github.com/tuannm99/novarel/internal/storage"
	"github.com/tuannm99/novarel/internal/tuple"
)

type (
	Tuple      = tuple.Tuple
	Relation   = relation.Relation
	View       = relation.View
	Constraint = relation.Constraint
	Option     = relation.Option
	Summary    = relation.Summary
	Agg        = relation.Agg
	ValueFunc  = relation.ValueFunc

	Database = engine.Database
	Options  = engine.Options
	ViewFunc = engine.ViewFunc
	Store    = storage.Store

	ConstraintError = relation.ConstraintError
)

var (
	ErrHeading             = relation.ErrHeading
	ErrConstraintViolation = relation.ErrConstraintViolation
	ErrInvalidOperation    = relation.ErrInvalidOperation
	ErrOperandMismatch     = relation.ErrOperandMismatch
	ErrArity               = relation.ErrArity
	ErrStopScan            = relation.ErrStopScan

	ErrTxActive = engine.ErrTxActive
	ErrNoTx     = engine.ErrNoTx
	ErrNoRelvar = engine.ErrNoRelvar
	ErrReserved = engine.ErrReserved
)

// Tuples and relations.
var (
	NewTuple      = tuple.New
	TupleOf       = tuple.Of
	New           = relation.New
	FromTuples    = relation.FromTuples
	FromTuple     = relation.FromTuple
	FromTupleList = relation.FromTupleList
	NewView       = relation.NewView
	NoArg         = relation.NoArg
	OneArg        = relation.OneArg
	DEE           = relation.DEE
	DUM           = relation.DUM

	WithConstraints = relation.WithConstraints
	WithResolver    = relation.WithResolver
	WithName        = relation.WithName
	Deferred        = relation.Deferred
)

// Operators.
var (
	And          = relation.And
	Or           = relation.Or
	Minus        = relation.Minus
	Remove       = relation.Remove
	Rename       = relation.Rename
	Project      = relation.Project
	Compose      = relation.Compose
	Restrict     = relation.Restrict
	RestrictExpr = relation.RestrictExpr
	Extend       = relation.Extend
	Semijoin     = relation.Semijoin
	Semiminus    = relation.Semiminus
	Summarize    = relation.Summarize
	Group        = relation.Group
	Ungroup      = relation.Ungroup
	Wrap         = relation.Wrap
	Unwrap       = relation.Unwrap
	DivideSimple = relation.DivideSimple
	Divide       = relation.Divide
	Generate     = relation.Generate
	TClose       = relation.TClose
	Quota        = relation.Quota
)

// Aggregates.
var (
	Attr  = relation.Attr
	Count = relation.Count
	Sum   = relation.Sum
	Avg   = relation.Avg
	Max   = relation.Max
	Min   = relation.Min
	All   = relation.All
	Any   = relation.Any
)

const (
	AggCount = relation.AggCount
	AggSum   = relation.AggSum
	AggAvg   = relation.AggAvg
	AggMax   = relation.AggMax
	AggMin   = relation.AggMin
	AggAll   = relation.AggAll
	AggAny   = relation.AggAny
)

// Constraints.
var (
	Key        = relation.Key
	ForeignKey = relation.ForeignKey
	Check      = relation.Check
	Assertion  = relation.Assertion
	Expr       = relation.Expr
)

// Open opens a database. The zero Options keep everything in memory.
func Open(ctx context.Context, opts Options) (*Database, error) {
	return engine.Open(ctx, opts)
}
