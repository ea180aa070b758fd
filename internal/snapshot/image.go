package snapshot

import (
	"encoding/gob"
	"fmt"
	"sort"
	"time"

	"github.com/tuannm99/novarel/internal/relation"
	"github.com/tuannm99/novarel/internal/tuple"
)

// Image is the persisted form of a committed frame.
type Image struct {
	Version int
	SavedAt time.Time
	Relvars []RelvarImage
}

type RelvarImage struct {
	Name        string
	Heading     []string
	Rows        [][]any
	Constraints []ConstraintImage
}

type ConstraintImage struct {
	Name    string
	Kind    string
	Attrs   []string
	Ref     string
	Mapping map[string]string
	Expr    string
}

// TupleValue and RelationValue stand in for nested attribute values.
type TupleValue struct {
	Attrs  []string
	Values []any
}

type RelationValue struct {
	Heading []string
	Rows    [][]any
}

func init() {
	gob.Register(time.Time{})
	gob.Register(TupleValue{})
	gob.Register(RelationValue{})
}

// Capture converts materialized relvars into an image. skipped lists the
// constraints that only exist as Go closures.
func Capture(relvars map[string]*relation.Relation) (img Image, skipped []string, err error) {
	names := make([]string, 0, len(relvars))
	for n := range relvars {
		names = append(names, n)
	}
	sort.Strings(names)

	img.Version = int(versionU16)
	img.SavedAt = time.Now().UTC()
	for _, name := range names {
		r := relvars[name]
		if r.IsComputed() {
			continue
		}
		ri := RelvarImage{Name: name, Heading: r.Heading()}
		ri.Rows, err = captureRows(r)
		if err != nil {
			return Image{}, nil, fmt.Errorf("capture %s: %w", name, err)
		}
		cs := r.Constraints()
		cnames := make([]string, 0, len(cs))
		for cn := range cs {
			cnames = append(cnames, cn)
		}
		sort.Strings(cnames)
		for _, cn := range cnames {
			c := cs[cn]
			if !c.Persistable() {
				skipped = append(skipped, name+"."+cn)
				continue
			}
			ri.Constraints = append(ri.Constraints, ConstraintImage{
				Name:    cn,
				Kind:    c.Kind().String(),
				Attrs:   c.Attributes(),
				Ref:     c.Ref(),
				Mapping: c.Mapping(),
				Expr:    c.Expression(),
			})
		}
		img.Relvars = append(img.Relvars, ri)
	}
	return img, skipped, nil
}

func captureRows(r *relation.Relation) ([][]any, error) {
	heading := r.Heading()
	ts, err := r.Tuples()
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(ts))
	for _, t := range ts {
		row := make([]any, len(heading))
		for i, a := range heading {
			v, err := encodeValue(t.MustGet(a))
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", a, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case tuple.Tuple:
		tv := TupleValue{Attrs: x.Attributes()}
		for _, a := range tv.Attrs {
			ev, err := encodeValue(x.MustGet(a))
			if err != nil {
				return nil, err
			}
			tv.Values = append(tv.Values, ev)
		}
		return tv, nil
	case *relation.Relation:
		rows, err := captureRows(x)
		if err != nil {
			return nil, err
		}
		return RelationValue{Heading: x.Heading(), Rows: rows}, nil
	}
	return v, nil
}

func decodeValue(v any) (any, error) {
	switch x := v.(type) {
	case TupleValue:
		m := make(map[string]any, len(x.Attrs))
		for i, a := range x.Attrs {
			dv, err := decodeValue(x.Values[i])
			if err != nil {
				return nil, err
			}
			m[a] = dv
		}
		return tuple.New(m), nil
	case RelationValue:
		rows, err := decodeRows(x.Rows)
		if err != nil {
			return nil, err
		}
		return relation.New(x.Heading, rows)
	}
	return v, nil
}

func decodeRows(rows [][]any) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = make([]any, len(row))
		for j, v := range row {
			dv, err := decodeValue(v)
			if err != nil {
				return nil, err
			}
			out[i][j] = dv
		}
	}
	return out, nil
}

// Constraint rebuilds the declared constraint.
func (ci ConstraintImage) Constraint() (relation.Constraint, error) {
	switch ci.Kind {
	case relation.KindCandidateKey.String():
		return relation.Key(ci.Attrs...), nil
	case relation.KindForeignKey.String():
		return relation.ForeignKey(ci.Ref, ci.Mapping), nil
	case relation.KindPredicate.String():
		if ci.Expr == "" {
			return relation.Constraint{}, fmt.Errorf("%w: predicate %s has no expression", ErrBadRecord, ci.Name)
		}
		return relation.Expr(ci.Expr), nil
	}
	return relation.Constraint{}, fmt.Errorf("%w: constraint kind %q", ErrBadRecord, ci.Kind)
}

// Relation rebuilds the relvar. Pass Deferred when its constraints refer
// to relvars that are not loaded yet.
func (ri RelvarImage) Relation(opts ...relation.Option) (*relation.Relation, error) {
	rows, err := decodeRows(ri.Rows)
	if err != nil {
		return nil, err
	}
	cs := make(map[string]relation.Constraint, len(ri.Constraints))
	for _, ci := range ri.Constraints {
		c, err := ci.Constraint()
		if err != nil {
			return nil, err
		}
		cs[ci.Name] = c
	}
	base := []relation.Option{relation.WithName(ri.Name)}
	if len(cs) > 0 {
		base = append(base, relation.WithConstraints(cs))
	}
	opts = append(base, opts...)
	return relation.New(ri.Heading, rows, opts...)
}
