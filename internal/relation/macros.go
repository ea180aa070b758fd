package relation

import (
	"fmt"
	"slices"
	"sort"

	"github.com/tuannm99/novarel/internal/tuple"
)

func viewResult(heading []string, v View) *Relation {
	return &Relation{
		heading:     heading,
		view:        &computed{view: v},
		kinds:       map[string]string{},
		constraints: map[string]Constraint{"PK": Key()},
	}
}

func singleton(t tuple.Tuple) *Relation {
	out := mustResult(t.Attributes())
	out.mat.add(t)
	return out
}

// tempName returns base, or base with underscores appended, so that it is
// not in heading.
func tempName(heading []string, base string) string {
	for slices.Contains(heading, base) {
		base += "_"
	}
	return base
}

// Project keeps attrs.
func Project(r *Relation, attrs ...string) (*Relation, error) {
	if err := requireAttrs(r.heading, attrs); err != nil {
		return nil, err
	}
	return Remove(r, minus(r.heading, attrs)...)
}

// Compose joins and drops the shared attributes.
func Compose(r1, r2 *Relation) (*Relation, error) {
	j, err := And(r1, r2)
	if err != nil {
		return nil, err
	}
	return Remove(j, intersect(r1.heading, r2.heading)...)
}

// restrict joins r with a probe-driven relation that yields one empty
// tuple where pred holds and nothing elsewhere.
func restrict(r *Relation, pred func(t tuple.Tuple) (bool, error)) (*Relation, error) {
	filter := viewResult(r.heading, OneArg(func(p tuple.Tuple) ([]tuple.Tuple, error) {
		ok, err := pred(p)
		if err != nil || !ok {
			return nil, err
		}
		return []tuple.Tuple{{}}, nil
	}))
	out, err := And(r, filter)
	if err != nil {
		return nil, err
	}
	out.constraints = keepKeys(r)
	return out, nil
}

func Restrict(r *Relation, pred func(t tuple.Tuple) bool) (*Relation, error) {
	return restrict(r, func(t tuple.Tuple) (bool, error) { return pred(t), nil })
}

// RestrictExpr restricts r by a CEL boolean over the map variable `t`.
func RestrictExpr(r *Relation, src string) (*Relation, error) {
	prg, err := compileRestrict(src)
	if err != nil {
		return nil, err
	}
	return restrict(r, func(t tuple.Tuple) (bool, error) { return evalRestrict(prg, t) })
}

// extend joins r with a probe-driven relation adding attrs computed by fn.
func extend(r *Relation, attrs []string, fn func(t tuple.Tuple) (map[string]any, error)) (*Relation, error) {
	added, err := normalizeHeading(attrs)
	if err != nil {
		return nil, err
	}
	if clash := intersect(added, r.heading); len(clash) > 0 {
		return nil, fmt.Errorf("%w: extension attributes %v already in heading", ErrHeading, clash)
	}
	ext := viewResult(union(r.heading, added), OneArg(func(p tuple.Tuple) ([]tuple.Tuple, error) {
		m, err := fn(p)
		if err != nil {
			return nil, err
		}
		got := tuple.New(m)
		if !slices.Equal(got.Attributes(), added) {
			return nil, fmt.Errorf("%w: extension returned %v, want %v", ErrHeading, got.Attributes(), added)
		}
		return []tuple.Tuple{p.Merge(got)}, nil
	}))
	out, err := And(r, ext)
	if err != nil {
		return nil, err
	}
	out.constraints = keepKeys(r)
	return out, nil
}

// Extend adds attrs to every tuple with values from fn. fn must return
// exactly attrs.
func Extend(r *Relation, attrs []string, fn func(t tuple.Tuple) map[string]any) (*Relation, error) {
	return extend(r, attrs, func(t tuple.Tuple) (map[string]any, error) { return fn(t), nil })
}

// Semijoin keeps the tuples of r1 with a match in r2.
func Semijoin(r1, r2 *Relation) (*Relation, error) {
	j, err := And(r1, r2)
	if err != nil {
		return nil, err
	}
	return Remove(j, minus(r2.heading, r1.heading)...)
}

// Semiminus keeps the tuples of r1 with no match in r2.
func Semiminus(r1, r2 *Relation) (*Relation, error) {
	s, err := Semijoin(r1, r2)
	if err != nil {
		return nil, err
	}
	return Minus(r1, s)
}

// Summarize extends each tuple of r2 with aggregates over its matching
// tuples of r1.
func Summarize(r1, r2 *Relation, aggs map[string]Summary) (*Relation, error) {
	names := make([]string, 0, len(aggs))
	for n := range aggs {
		names = append(names, n)
	}
	sort.Strings(names)
	return extend(r2, names, func(t tuple.Tuple) (map[string]any, error) {
		sub, err := And(r1, singleton(t))
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(names))
		for _, n := range names {
			v, err := aggs[n].apply(sub)
			if err != nil {
				return nil, fmt.Errorf("summarize %s: %w", n, err)
			}
			m[n] = v
		}
		return m, nil
	})
}

// Group nests attrs into a relation-valued attribute name, one row per
// distinct value of the remaining attributes.
func Group(r *Relation, attrs []string, name string) (*Relation, error) {
	if err := requireAttrs(r.heading, attrs); err != nil {
		return nil, err
	}
	rest := minus(r.heading, attrs)
	ext, err := extend(r, []string{name}, func(t tuple.Tuple) (map[string]any, error) {
		sub, err := And(r, singleton(t.Project(rest...)))
		if err != nil {
			return nil, err
		}
		nested, err := Remove(sub, rest...)
		if err != nil {
			return nil, err
		}
		return map[string]any{name: nested}, nil
	})
	if err != nil {
		return nil, err
	}
	return Project(ext, append(slices.Clone(rest), name)...)
}

// Ungroup flattens the relation-valued attribute name. Every nested
// relation must share one heading; empty input drops name.
func Ungroup(r *Relation, name string) (*Relation, error) {
	if err := requireAttrs(r.heading, []string{name}); err != nil {
		return nil, err
	}
	outer := minus(r.heading, []string{name})
	var flat *Relation
	err := r.Scan(func(t tuple.Tuple) error {
		nested, ok := t.MustGet(name).(*Relation)
		if !ok {
			return fmt.Errorf("%w: attribute %q is not relation-valued", ErrOperandMismatch, name)
		}
		if flat == nil {
			if clash := intersect(nested.heading, append(slices.Clone(outer), name)); len(clash) > 0 {
				return fmt.Errorf("%w: nested attributes %v clash with outer heading", ErrHeading, clash)
			}
			flat = mustResult(union(nested.heading, []string{name}))
		} else if !sameHeading(flat.heading, union(nested.heading, []string{name})) {
			return fmt.Errorf("%w: nested headings differ under %q", ErrOperandMismatch, name)
		}
		tag := tuple.Of(name, nested)
		return nested.Scan(func(u tuple.Tuple) error {
			flat.mat.add(u.Merge(tag))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if flat == nil {
		return Remove(r, name)
	}
	return Compose(r, flat)
}

// Wrap packs attrs into a tuple-valued attribute name.
func Wrap(r *Relation, attrs []string, name string) (*Relation, error) {
	if err := requireAttrs(r.heading, attrs); err != nil {
		return nil, err
	}
	ext, err := extend(r, []string{name}, func(t tuple.Tuple) (map[string]any, error) {
		return map[string]any{name: t.Project(attrs...)}, nil
	})
	if err != nil {
		return nil, err
	}
	return Remove(ext, attrs...)
}

// Unwrap spreads the tuple-valued attribute name back into attributes.
func Unwrap(r *Relation, name string) (*Relation, error) {
	if err := requireAttrs(r.heading, []string{name}); err != nil {
		return nil, err
	}
	var inner []string
	seen := false
	err := r.Scan(func(t tuple.Tuple) error {
		w, ok := t.MustGet(name).(tuple.Tuple)
		if !ok {
			return fmt.Errorf("%w: attribute %q is not tuple-valued", ErrOperandMismatch, name)
		}
		inner, seen = w.Attributes(), true
		return ErrStopScan
	})
	if err != nil {
		return nil, err
	}
	if !seen {
		return Remove(r, name)
	}
	ext, err := extend(r, inner, func(t tuple.Tuple) (map[string]any, error) {
		w, ok := t.MustGet(name).(tuple.Tuple)
		if !ok || !slices.Equal(w.Attributes(), inner) {
			return nil, fmt.Errorf("%w: wrapped tuples differ under %q", ErrOperandMismatch, name)
		}
		return w.Map(), nil
	})
	if err != nil {
		return nil, err
	}
	return Remove(ext, name)
}

func supersetFilter(g1, g2 string) func(t tuple.Tuple) (bool, error) {
	return func(t tuple.Tuple) (bool, error) {
		a, ok1 := t.MustGet(g1).(*Relation)
		b, ok2 := t.MustGet(g2).(*Relation)
		if !ok1 || !ok2 {
			return false, fmt.Errorf("%w: group attributes are not relations", ErrOperandMismatch)
		}
		return b.IsSubset(a)
	}
}

// DivideSimple keeps the tuples of r1 over its non-shared attributes whose
// group of shared values covers all of r2.
func DivideSimple(r1, r2 *Relation) (*Relation, error) {
	shared := intersect(r1.heading, r2.heading)
	all := union(r1.heading, r2.heading)
	g1 := tempName(all, "_g1")
	g2 := tempName(append(all, g1), "_g2")

	a, err := Group(r1, shared, g1)
	if err != nil {
		return nil, err
	}
	b, err := Group(r2, shared, g2)
	if err != nil {
		return nil, err
	}
	j, err := And(a, b)
	if err != nil {
		return nil, err
	}
	kept, err := restrict(j, supersetFilter(g1, g2))
	if err != nil {
		return nil, err
	}
	return Remove(kept, g1, g2)
}

// Divide is Todd's division: pairs of r1 and r2 tuples where everything
// r4 relates to the r2 tuple, r3 also relates to the r1 tuple.
func Divide(r1, r2, r3, r4 *Relation) (*Relation, error) {
	all := union(union(r1.heading, r2.heading), union(r3.heading, r4.heading))
	g1 := tempName(all, "_g1")
	g2 := tempName(append(all, g1), "_g2")

	groupBy := func(r, mediator *Relation, name string) (*Relation, error) {
		return extend(r, []string{name}, func(t tuple.Tuple) (map[string]any, error) {
			g, err := Compose(singleton(t), mediator)
			if err != nil {
				return nil, err
			}
			return map[string]any{name: g}, nil
		})
	}
	a, err := groupBy(r1, r3, g1)
	if err != nil {
		return nil, err
	}
	b, err := groupBy(r2, r4, g2)
	if err != nil {
		return nil, err
	}
	j, err := And(a, b)
	if err != nil {
		return nil, err
	}
	kept, err := restrict(j, supersetFilter(g1, g2))
	if err != nil {
		return nil, err
	}
	return Remove(kept, g1, g2)
}

// Generate builds a one-row constant relation.
func Generate(values map[string]any) (*Relation, error) {
	attrs := make([]string, 0, len(values))
	for a := range values {
		attrs = append(attrs, a)
	}
	return Extend(DEE(), attrs, func(tuple.Tuple) map[string]any { return values })
}

// TClose is the transitive closure of a binary relation, computed by
// joining the relation with itself until nothing new appears.
func TClose(r *Relation) (*Relation, error) {
	if len(r.heading) != 2 {
		return nil, fmt.Errorf("%w: transitive closure needs a binary relation, got %v", ErrInvalidOperation, r.heading)
	}
	x, y := r.heading[0], r.heading[1]
	z := tempName(r.heading, "_Z")

	cur, err := r.Materialize()
	if err != nil {
		return nil, err
	}
	for {
		step, err := Rename(cur, map[string]string{y: z, x: y})
		if err != nil {
			return nil, err
		}
		hop, err := Compose(cur, step)
		if err != nil {
			return nil, err
		}
		hop, err = Rename(hop, map[string]string{z: y})
		if err != nil {
			return nil, err
		}
		next, err := Or(cur, hop)
		if err != nil {
			return nil, err
		}
		if next.Equal(cur) {
			next.constraints = keepKeys(r)
			return next, nil
		}
		cur = next
	}
}

// Quota keeps the tuples with fewer than limit peers ranked strictly
// ahead of them on attrs (smaller when ascending). Ties share a rank, so
// more than limit tuples can come back.
func Quota(r *Relation, limit int, attrs []string, ascending bool) (*Relation, error) {
	if len(attrs) == 0 {
		return nil, fmt.Errorf("%w: quota needs at least one ranking attribute", ErrInvalidOperation)
	}
	if err := requireAttrs(r.heading, attrs); err != nil {
		return nil, err
	}
	rows, err := r.Tuples()
	if err != nil {
		return nil, err
	}
	rank := tempName(r.heading, "_q")
	ext, err := extend(r, []string{rank}, func(t tuple.Tuple) (map[string]any, error) {
		n := 0
		for _, u := range rows {
			c, err := lexCompare(u, t, attrs)
			if err != nil {
				return nil, err
			}
			if (ascending && c < 0) || (!ascending && c > 0) {
				n++
			}
		}
		return map[string]any{rank: n}, nil
	})
	if err != nil {
		return nil, err
	}
	kept, err := restrict(ext, func(t tuple.Tuple) (bool, error) {
		return t.MustGet(rank).(int64) < int64(limit), nil
	})
	if err != nil {
		return nil, err
	}
	return Remove(kept, rank)
}
