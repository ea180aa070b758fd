package relation

import (
	"github.com/tuannm99/novarel/internal/tuple"
)

// store is a materialized body: rows plus two hash indexes. byRow maps a
// full tuple hash to row positions for duplicate suppression; index maps
// attribute -> value hash -> row positions for probes. Buckets are verified
// by equality since hashes can collide.
type store struct {
	rows  []tuple.Tuple
	byRow map[uint64][]int
	index map[string]map[uint64][]int
}

func newStore() *store {
	return &store{
		byRow: map[uint64][]int{},
		index: map[string]map[uint64][]int{},
	}
}

func (s *store) find(t tuple.Tuple) int {
	for _, pos := range s.byRow[t.Hash()] {
		if s.rows[pos].Equal(t) {
			return pos
		}
	}
	return -1
}

// add appends t unless an equal row exists.
func (s *store) add(t tuple.Tuple) bool {
	if s.find(t) >= 0 {
		return false
	}
	pos := len(s.rows)
	s.rows = append(s.rows, t)
	s.byRow[t.Hash()] = append(s.byRow[t.Hash()], pos)
	for _, a := range t.Attributes() {
		v, _ := t.Get(a)
		idx := s.index[a]
		if idx == nil {
			idx = map[uint64][]int{}
			s.index[a] = idx
		}
		h := tuple.HashValue(v)
		idx[h] = append(idx[h], pos)
	}
	return true
}

// rebuild resets the body to rows, renumbering positions.
func (s *store) rebuild(rows []tuple.Tuple) {
	s.rows = make([]tuple.Tuple, 0, len(rows))
	s.byRow = make(map[uint64][]int, len(rows))
	s.index = map[string]map[uint64][]int{}
	for _, t := range rows {
		s.add(t)
	}
}

// lookup returns the positions of rows agreeing with probe on common. It
// starts from the shortest posting list among the probed attributes and
// keeps only rows present in all of them.
func (s *store) lookup(probe tuple.Tuple, common []string) []int {
	var best []int
	for i, a := range common {
		v, _ := probe.Get(a)
		post := s.index[a][tuple.HashValue(v)]
		if len(post) == 0 {
			return nil
		}
		if i == 0 || len(post) < len(best) {
			best = post
		}
	}
	out := make([]int, 0, len(best))
	for _, pos := range best {
		if s.rows[pos].EqualOn(probe, common) {
			out = append(out, pos)
		}
	}
	return out
}

func (s *store) containsAll(o *store) bool {
	for _, t := range o.rows {
		if s.find(t) < 0 {
			return false
		}
	}
	return true
}
