package relation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tuannm99/novarel/internal/tuple"
)

// Scan calls fn for every tuple of r. Each call starts from the beginning;
// fn may return ErrStopScan to end early. A OneArg view cannot be scanned
// without a probe.
func (r *Relation) Scan(fn func(t tuple.Tuple) error) error {
	return stopOK(r.scan(fn))
}

func (r *Relation) scan(fn func(t tuple.Tuple) error) error {
	if r.mat != nil {
		rows := r.mat.rows
		for _, t := range rows {
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	}
	v := r.view
	if v.view.oneArg {
		return fmt.Errorf("%w: full scan of a probe-driven view %v", ErrInvalidOperation, r.heading)
	}
	ts, err := v.view.all()
	if err != nil {
		return err
	}
	for _, t := range ts {
		if err := fn(t.Rename(v.renames)); err != nil {
			return err
		}
	}
	return nil
}

// ScanProbe calls fn for every tuple of r that agrees with probe on the
// attributes they share. With nothing shared it is a full scan, except
// that a OneArg view is called with the empty probe.
func (r *Relation) ScanProbe(probe tuple.Tuple, fn func(t tuple.Tuple) error) error {
	return stopOK(r.scanProbe(probe, fn))
}

func (r *Relation) scanProbe(probe tuple.Tuple, fn func(t tuple.Tuple) error) error {
	common := intersect(r.heading, probe.Attributes())
	if len(common) == 0 && !r.IsOneArg() {
		return r.scan(fn)
	}
	if r.mat != nil {
		rows := r.mat.rows
		for _, pos := range r.mat.lookup(probe, common) {
			if err := fn(rows[pos]); err != nil {
				return err
			}
		}
		return nil
	}

	v := r.view
	p := probe.Project(common...)
	if !v.view.oneArg {
		ts, err := v.view.all()
		if err != nil {
			return err
		}
		for _, t := range ts {
			t = t.Rename(v.renames)
			if !t.EqualOn(p, common) {
				continue
			}
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	}

	ts, err := v.view.probe(p.Rename(inverse(v.renames)))
	if err != nil {
		return err
	}
	for _, t := range ts {
		if err := fn(t.Rename(v.renames)); err != nil {
			return err
		}
	}
	return nil
}

func stopOK(err error) error {
	if errors.Is(err, ErrStopScan) {
		return nil
	}
	return err
}

func inverse(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// Tuples returns the body sorted by attribute values.
func (r *Relation) Tuples() ([]tuple.Tuple, error) {
	var out []tuple.Tuple
	err := r.Scan(func(t tuple.Tuple) error {
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if r.mat == nil {
		out = dedupe(out)
	}
	sort.SliceStable(out, func(i, j int) bool { return compareTuples(out[i], out[j], r.heading) < 0 })
	return out, nil
}

func dedupe(ts []tuple.Tuple) []tuple.Tuple {
	s := newStore()
	for _, t := range ts {
		s.add(t)
	}
	return s.rows
}

// Count returns the number of rows; views are scanned.
func (r *Relation) Count() (int, error) {
	if r.mat != nil {
		return len(r.mat.rows), nil
	}
	ts, err := r.Tuples()
	return len(ts), err
}
