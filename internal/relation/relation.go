package relation

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/tuannm99/novarel/internal/tuple"
)

// View is the body of a computed relation. A NoArg view produces its whole
// body on every scan. A OneArg view receives a probe holding the attributes
// the caller shares with it and returns only the matching tuples.
type View struct {
	oneArg bool
	all    func() ([]tuple.Tuple, error)
	probe  func(tuple.Tuple) ([]tuple.Tuple, error)
}

func NoArg(fn func() ([]tuple.Tuple, error)) View { return View{all: fn} }

func OneArg(fn func(probe tuple.Tuple) ([]tuple.Tuple, error)) View {
	return View{oneArg: true, probe: fn}
}

func (v View) IsOneArg() bool { return v.oneArg }

type computed struct {
	view View
	// original attribute name -> current name, filled by Rename
	renames map[string]string
}

// Resolver looks up relvars by name for foreign keys.
type Resolver interface {
	Relvar(name string) (*Relation, error)
}

type ResolverFunc func(name string) (*Relation, error)

func (f ResolverFunc) Relvar(name string) (*Relation, error) { return f(name) }

// Guard is an unlisted check installed by a database on a referenced relvar.
type Guard func(r *Relation) error

// Relation is a heading plus either a materialized body (rows with a hash
// index) or a computed view. Exactly one of mat and view is set.
type Relation struct {
	name    string
	heading []string
	mat     *store
	view    *computed

	// attribute -> value class, fixed by the first row
	kinds map[string]string

	constraints map[string]Constraint
	checks      map[string]checkFunc
	guards      map[string]Guard
	resolver    Resolver
	deferred    bool
}

type Option func(*Relation)

// WithConstraints replaces the default all-attribute key.
func WithConstraints(cs map[string]Constraint) Option {
	return func(r *Relation) { r.constraints = maps.Clone(cs) }
}

func WithResolver(res Resolver) Option {
	return func(r *Relation) { r.resolver = res }
}

func WithName(name string) Option {
	return func(r *Relation) { r.name = name }
}

// Deferred postpones constraint binding and checking until Rebind.
func Deferred() Option {
	return func(r *Relation) { r.deferred = true }
}

func newRelation(heading []string, opts []Option) (*Relation, error) {
	h, err := normalizeHeading(heading)
	if err != nil {
		return nil, err
	}
	r := &Relation{
		heading:     h,
		kinds:       map[string]string{},
		constraints: map[string]Constraint{"PK": Key()},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// New builds a materialized relation. Each row lists values in heading
// order. Duplicate rows collapse silently.
func New(heading []string, rows [][]any, opts ...Option) (*Relation, error) {
	r, err := newRelation(heading, opts)
	if err != nil {
		return nil, err
	}
	ts := make([]tuple.Tuple, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(heading) {
			return nil, fmt.Errorf("%w: row has %d values for %d attributes", ErrHeading, len(row), len(heading))
		}
		m := make(map[string]any, len(row))
		for i, a := range heading {
			m[a] = row[i]
		}
		ts = append(ts, tuple.New(m))
	}
	return r.init(ts)
}

func FromTuples(heading []string, ts []tuple.Tuple, opts ...Option) (*Relation, error) {
	r, err := newRelation(heading, opts)
	if err != nil {
		return nil, err
	}
	return r.init(ts)
}

// FromTuple builds a one-row relation whose heading is t's attributes.
func FromTuple(t tuple.Tuple, opts ...Option) (*Relation, error) {
	return FromTuples(t.Attributes(), []tuple.Tuple{t}, opts...)
}

// FromTupleList takes the heading from the first tuple.
func FromTupleList(ts []tuple.Tuple, opts ...Option) (*Relation, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: empty tuple list", ErrInvalidOperation)
	}
	return FromTuples(ts[0].Attributes(), ts, opts...)
}

func NewView(heading []string, v View, opts ...Option) (*Relation, error) {
	r, err := newRelation(heading, opts)
	if err != nil {
		return nil, err
	}
	r.view = &computed{view: v}
	if !r.deferred {
		if err := r.bind(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DEE is the nullary relation with one empty tuple.
func DEE() *Relation {
	r := mustResult(nil)
	r.mat.add(tuple.Tuple{})
	return r
}

// DUM is the nullary relation with no tuples.
func DUM() *Relation { return mustResult(nil) }

func (r *Relation) init(ts []tuple.Tuple) (*Relation, error) {
	r.mat = newStore()
	if r.deferred {
		if err := r.addRows(ts); err != nil {
			return nil, err
		}
		return r, nil
	}
	if err := r.bind(); err != nil {
		return nil, err
	}
	if _, err := r.Insert(ts...); err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		if err := r.CheckConstraints(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// mustResult builds an operator result. Results carry the all-attribute
// key, which holds for any set, so they skip binding.
func mustResult(heading []string) *Relation {
	return &Relation{
		heading:     heading,
		mat:         newStore(),
		kinds:       map[string]string{},
		constraints: map[string]Constraint{"PK": Key()},
	}
}

func (r *Relation) Name() string { return r.name }

// SetName labels the relation in constraint errors.
func (r *Relation) SetName(name string) { r.name = name }

// Heading returns a copy of the sorted attribute names.
func (r *Relation) Heading() []string { return slices.Clone(r.heading) }

func (r *Relation) Degree() int { return len(r.heading) }

func (r *Relation) IsComputed() bool { return r.view != nil }

// IsDeferred reports whether the declared constraints are still unbound.
func (r *Relation) IsDeferred() bool { return r.deferred }

// IsOneArg reports whether the relation is a probe-driven view.
func (r *Relation) IsOneArg() bool { return r.view != nil && r.view.view.oneArg }

func (r *Relation) Constraints() map[string]Constraint { return maps.Clone(r.constraints) }

// Clone copies a materialized relation. Tuples are shared; the index and
// constraint bindings are duplicated. A view copy shares its producer.
func (r *Relation) Clone() *Relation {
	c := *r
	if r.view != nil {
		c.constraints = maps.Clone(r.constraints)
		c.checks = maps.Clone(r.checks)
		c.guards = maps.Clone(r.guards)
		return &c
	}
	c.mat = newStore()
	c.mat.rebuild(r.mat.rows)
	c.kinds = maps.Clone(r.kinds)
	c.constraints = maps.Clone(r.constraints)
	c.checks = maps.Clone(r.checks)
	c.guards = maps.Clone(r.guards)
	return &c
}

// Materialize returns r itself when it is stored, otherwise a stored copy
// of the view's current body.
func (r *Relation) Materialize() (*Relation, error) {
	if r.mat != nil {
		return r, nil
	}
	out := mustResult(r.heading)
	err := r.Scan(func(t tuple.Tuple) error {
		out.mat.add(t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.constraints = keysOnly(r.constraints)
	return out, nil
}

func (r *Relation) checkTuple(t tuple.Tuple) error {
	if t.Len() != len(r.heading) {
		return fmt.Errorf("%w: tuple %s does not match heading %v", ErrHeading, t, r.heading)
	}
	for _, a := range r.heading {
		v, ok := t.Get(a)
		if !ok {
			return fmt.Errorf("%w: tuple %s does not match heading %v", ErrHeading, t, r.heading)
		}
		k := kindOf(v)
		if k == "" {
			continue
		}
		if want, ok := r.kinds[a]; ok && want != k {
			return fmt.Errorf("%w: attribute %q holds %s, got %s", ErrHeading, a, want, k)
		}
	}
	return nil
}

func (r *Relation) learnKinds(t tuple.Tuple) {
	for _, a := range r.heading {
		if _, ok := r.kinds[a]; ok {
			continue
		}
		if k := kindOf(t.MustGet(a)); k != "" {
			r.kinds[a] = k
		}
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case int64, float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case time.Time:
		return "time"
	case tuple.Tuple:
		return "tuple"
	case *Relation:
		return "relation"
	}
	return reflect.TypeOf(v).String()
}

// HashValue lets a relation be an attribute value.
func (r *Relation) HashValue() uint64 {
	h := tuple.HashValue(strings.Join(r.heading, "\x00"))
	m, err := r.Materialize()
	if err != nil {
		return h
	}
	for _, t := range m.mat.rows {
		h ^= t.Hash()
	}
	return h
}

func (r *Relation) EqualValue(other any) bool {
	o, ok := other.(*Relation)
	return ok && r.Equal(o)
}

// Equal compares headings and bodies. Views are materialized first; a view
// that fails to scan is unequal to everything.
func (r *Relation) Equal(o *Relation) bool {
	if r == o {
		return true
	}
	if o == nil || !sameHeading(r.heading, o.heading) {
		return false
	}
	a, err := r.Materialize()
	if err != nil {
		return false
	}
	b, err := o.Materialize()
	if err != nil {
		return false
	}
	if len(a.mat.rows) != len(b.mat.rows) {
		return false
	}
	return a.mat.containsAll(b.mat)
}

// IsSubset reports whether every tuple of r is in o. Headings must match.
func (r *Relation) IsSubset(o *Relation) (bool, error) {
	if !sameHeading(r.heading, o.heading) {
		return false, fmt.Errorf("%w: %v vs %v", ErrOperandMismatch, r.heading, o.heading)
	}
	a, err := r.Materialize()
	if err != nil {
		return false, err
	}
	b, err := o.Materialize()
	if err != nil {
		return false, err
	}
	if len(a.mat.rows) > len(b.mat.rows) {
		return false, nil
	}
	return b.mat.containsAll(a.mat), nil
}

func (r *Relation) IsProperSubset(o *Relation) (bool, error) {
	ok, err := r.IsSubset(o)
	if err != nil || !ok {
		return false, err
	}
	return !r.Equal(o), nil
}

func (r *Relation) IsSuperset(o *Relation) (bool, error) { return o.IsSubset(r) }

// Contains reports whether t is a row of r.
func (r *Relation) Contains(t tuple.Tuple) (bool, error) {
	if r.mat != nil {
		return r.mat.find(t) >= 0, nil
	}
	found := false
	err := r.ScanProbe(t, func(u tuple.Tuple) error {
		found = true
		return ErrStopScan
	})
	return found, err
}

// ToTuple returns the only row of r.
func (r *Relation) ToTuple() (tuple.Tuple, error) {
	ts, err := r.Tuples()
	if err != nil {
		return tuple.Tuple{}, err
	}
	if len(ts) != 1 {
		return tuple.Tuple{}, fmt.Errorf("%w: relation has %d rows, want exactly 1", ErrInvalidOperation, len(ts))
	}
	return ts[0], nil
}

func (r *Relation) String() string {
	var b strings.Builder
	b.WriteString("{")
	b.WriteString(strings.Join(r.heading, ", "))
	b.WriteString("}")
	ts, err := r.Tuples()
	if err != nil {
		b.WriteString(" <view>")
		return b.String()
	}
	b.WriteString(" [")
	for i, t := range ts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteString("]")
	return b.String()
}
