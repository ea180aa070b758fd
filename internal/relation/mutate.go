package relation

import (
	"fmt"
	"maps"
	"slices"

	"github.com/tuannm99/novarel/internal/tuple"
)

func (r *Relation) mutable() error {
	if r.view != nil {
		return fmt.Errorf("%w: cannot mutate a computed relation %v", ErrInvalidOperation, r.heading)
	}
	return nil
}

// addRows appends tuples without checking constraints. A malformed tuple
// aborts the batch with the body restored.
func (r *Relation) addRows(ts []tuple.Tuple) error {
	oldLen := len(r.mat.rows)
	oldKinds := maps.Clone(r.kinds)
	for _, t := range ts {
		if err := r.checkTuple(t); err != nil {
			r.restore(r.mat.rows[:oldLen], oldKinds)
			return err
		}
		if r.mat.add(t) {
			r.learnKinds(t)
		}
	}
	return nil
}

func (r *Relation) restore(rows []tuple.Tuple, kinds map[string]string) {
	r.mat.rebuild(slices.Clone(rows))
	r.kinds = kinds
}

// Insert adds tuples as one batch and returns how many were new. Rows
// already present are skipped. If a constraint fails afterwards the batch
// is removed again and a *ConstraintError is returned.
func (r *Relation) Insert(ts ...tuple.Tuple) (int, error) {
	if err := r.mutable(); err != nil {
		return 0, err
	}
	oldRows := r.mat.rows
	oldLen := len(oldRows)
	oldKinds := maps.Clone(r.kinds)
	if err := r.addRows(ts); err != nil {
		return 0, err
	}
	added := len(r.mat.rows) - oldLen
	if added == 0 {
		return 0, nil
	}
	if err := r.CheckConstraints(); err != nil {
		r.restore(r.mat.rows[:oldLen], oldKinds)
		return 0, err
	}
	return added, nil
}

// InsertValues inserts one row listed in Heading() order.
func (r *Relation) InsertValues(vals ...any) (int, error) {
	if len(vals) != len(r.heading) {
		return 0, fmt.Errorf("%w: %d values for %d attributes", ErrHeading, len(vals), len(r.heading))
	}
	return r.Insert(tuple.FromSorted(slices.Clone(r.heading), slices.Clone(vals)))
}

// Delete removes rows matching pred. On a constraint failure the rows come
// back and the error is returned.
func (r *Relation) Delete(pred func(t tuple.Tuple) bool) (int, error) {
	if err := r.mutable(); err != nil {
		return 0, err
	}
	return r.replace(func(t tuple.Tuple) (tuple.Tuple, bool, error) {
		return tuple.Tuple{}, pred(t), nil
	}, false)
}

// DeleteTuples removes the given rows if present.
func (r *Relation) DeleteTuples(ts ...tuple.Tuple) (int, error) {
	if err := r.mutable(); err != nil {
		return 0, err
	}
	gone := newStore()
	for _, t := range ts {
		gone.add(t)
	}
	return r.replace(func(t tuple.Tuple) (tuple.Tuple, bool, error) {
		return tuple.Tuple{}, gone.find(t) >= 0, nil
	}, false)
}

// Update replaces every row matching pred with the row overlaid by fn's
// result. Deletion and insertion are one batch: a constraint failure
// restores every original row.
func (r *Relation) Update(pred func(t tuple.Tuple) bool, fn func(t tuple.Tuple) map[string]any) (int, error) {
	if err := r.mutable(); err != nil {
		return 0, err
	}
	return r.replace(func(t tuple.Tuple) (tuple.Tuple, bool, error) {
		if !pred(t) {
			return tuple.Tuple{}, false, nil
		}
		changes := fn(t)
		for a := range changes {
			if !slices.Contains(r.heading, a) {
				return tuple.Tuple{}, false, fmt.Errorf("%w: update of unknown attribute %q", ErrHeading, a)
			}
		}
		return t.Merge(tuple.New(changes)), true, nil
	}, true)
}

// replace rebuilds the body. edit reports whether a row is affected and,
// when keep is set, the row that takes its place.
func (r *Relation) replace(edit func(t tuple.Tuple) (tuple.Tuple, bool, error), keep bool) (int, error) {
	oldRows := r.mat.rows
	oldKinds := maps.Clone(r.kinds)

	var kept, added []tuple.Tuple
	n := 0
	for _, t := range oldRows {
		nt, hit, err := edit(t)
		if err != nil {
			return 0, err
		}
		if !hit {
			kept = append(kept, t)
			continue
		}
		n++
		if keep {
			added = append(added, nt)
		}
	}
	if n == 0 {
		return 0, nil
	}

	r.mat.rebuild(kept)
	if err := r.addRows(added); err != nil {
		r.restore(oldRows, oldKinds)
		return 0, err
	}
	if err := r.CheckConstraints(); err != nil {
		r.restore(oldRows, oldKinds)
		return 0, err
	}
	return n, nil
}
