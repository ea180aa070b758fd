package relation

import (
	"fmt"
	"maps"

	"github.com/tuannm99/novarel/internal/tuple"
)

// joinOrder picks the driving operand. Stored relations drive views, the
// smaller of two stored relations drives, and a NoArg view may drive a
// OneArg one. Two OneArg views cannot be joined.
func joinOrder(r1, r2 *Relation) (driver, probed *Relation, err error) {
	switch {
	case r1.mat != nil && r2.mat != nil:
		if len(r2.mat.rows) < len(r1.mat.rows) {
			return r2, r1, nil
		}
		return r1, r2, nil
	case r1.mat != nil:
		driver, probed = r1, r2
	case r2.mat != nil:
		driver, probed = r2, r1
	case r1.IsOneArg() && r2.IsOneArg():
		return nil, nil, fmt.Errorf("%w: cannot join two probe-driven views %v and %v", ErrInvalidOperation, r1.heading, r2.heading)
	case r1.IsOneArg():
		driver, probed = r2, r1
	default:
		driver, probed = r1, r2
	}
	// probing a NoArg view per driver row would re-run it every time
	if probed.view != nil && !probed.IsOneArg() {
		probed, err = probed.Materialize()
		if err != nil {
			return nil, nil, err
		}
	}
	return driver, probed, nil
}

// And is the natural join. Equal headings give intersection, disjoint
// headings give the cartesian product. On a shared attribute the probed
// side's value is kept.
func And(r1, r2 *Relation) (*Relation, error) {
	driver, probed, err := joinOrder(r1, r2)
	if err != nil {
		return nil, err
	}
	out := mustResult(union(r1.heading, r2.heading))
	err = driver.Scan(func(t tuple.Tuple) error {
		return probed.scanProbe(t, func(u tuple.Tuple) error {
			m := t.Merge(u)
			if m.Len() != len(out.heading) {
				return fmt.Errorf("%w: joined tuple %s does not match heading %v", ErrHeading, m, out.heading)
			}
			out.mat.add(m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Or is the union of two relations with the same heading.
func Or(r1, r2 *Relation) (*Relation, error) {
	if !sameHeading(r1.heading, r2.heading) {
		return nil, fmt.Errorf("%w: union of %v and %v", ErrOperandMismatch, r1.heading, r2.heading)
	}
	out := mustResult(r1.heading)
	add := func(t tuple.Tuple) error {
		out.mat.add(t)
		return nil
	}
	if err := r1.Scan(add); err != nil {
		return nil, err
	}
	if err := r2.Scan(add); err != nil {
		return nil, err
	}
	return out, nil
}

// Minus keeps the tuples of r1 with no match in r2.
func Minus(r1, r2 *Relation) (*Relation, error) {
	if !sameHeading(r1.heading, r2.heading) {
		return nil, fmt.Errorf("%w: difference of %v and %v", ErrOperandMismatch, r1.heading, r2.heading)
	}
	probed := r2
	if r2.view != nil && !r2.IsOneArg() {
		var err error
		if probed, err = r2.Materialize(); err != nil {
			return nil, err
		}
	}
	out := mustResult(r1.heading)
	out.constraints = keysOnly(r1.constraints)
	err := r1.Scan(func(t tuple.Tuple) error {
		found := false
		err := probed.ScanProbe(t, func(tuple.Tuple) error {
			found = true
			return ErrStopScan
		})
		if err != nil {
			return err
		}
		if !found {
			out.mat.add(t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove projects away attrs. Keys disjoint from attrs carry over.
func Remove(r *Relation, attrs ...string) (*Relation, error) {
	if err := requireAttrs(r.heading, attrs); err != nil {
		return nil, err
	}
	keep := minus(r.heading, attrs)
	out := mustResult(keep)
	out.constraints = keysAfterRemove(r.constraints, attrs)
	err := r.Scan(func(t tuple.Tuple) error {
		out.mat.add(t.Project(keep...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rename maps old attribute names to new ones, all at once. Key
// constraints follow the rename. A renamed view remembers the mapping so
// probes reach it under the original names.
func Rename(r *Relation, m map[string]string) (*Relation, error) {
	var old []string
	for o := range m {
		old = append(old, o)
	}
	if err := requireAttrs(r.heading, old); err != nil {
		return nil, err
	}
	renamed := make([]string, len(r.heading))
	for i, a := range r.heading {
		if n, ok := m[a]; ok {
			a = n
		}
		renamed[i] = a
	}
	heading, err := normalizeHeading(renamed)
	if err != nil {
		return nil, err
	}

	if r.view != nil {
		composed := map[string]string{}
		for _, a := range r.heading {
			orig := a
			for o, cur := range r.view.renames {
				if cur == a {
					orig = o
				}
			}
			n := a
			if to, ok := m[a]; ok {
				n = to
			}
			if orig != n {
				composed[orig] = n
			}
		}
		return &Relation{
			heading:     heading,
			view:        &computed{view: r.view.view, renames: composed},
			kinds:       map[string]string{},
			constraints: renameKeys(r.constraints, m),
		}, nil
	}

	out := mustResult(heading)
	out.constraints = renameKeys(r.constraints, m)
	out.kinds = map[string]string{}
	for a, k := range r.kinds {
		if n, ok := m[a]; ok {
			a = n
		}
		out.kinds[a] = k
	}
	for _, t := range r.mat.rows {
		out.mat.add(t.Rename(m))
	}
	return out, nil
}

// keepKeys returns a copy of the candidate keys, used when an operator
// preserves r's heading.
func keepKeys(r *Relation) map[string]Constraint { return maps.Clone(keysOnly(r.constraints)) }
